// Package gmp реализует тонкий адаптер поверх Greenbone Management Protocol
// (GMP) — XML-команды по TLS-соединению к удалённому GVM. Адаптер — внешний
// коллаборатор ядра (spec §4.2): типизированные операции, retry только на
// connect, проверка status-кода каждого ответа.
package gmp

// Status — непрозрачная строка статуса GMP. Никогда не перекодируется в
// closed enum на проводе — движок жизненного цикла трактует множества
// терминальных/ошибочных статусов как предикаты.
type Status string

const (
	StatusNew                     Status = "New"
	StatusRequested               Status = "Requested"
	StatusQueued                  Status = "Queued"
	StatusRunning                 Status = "Running"
	StatusStopRequested           Status = "Stop Requested"
	StatusStopped                 Status = "Stopped"
	StatusDone                    Status = "Done"
	StatusDeleteRequested         Status = "Delete Requested"
	StatusUltimateDeleteRequested Status = "Ultimate Delete Requested"
	StatusInterrupted             Status = "Interrupted"
)

var terminalStatuses = map[Status]bool{
	StatusDone:        true,
	StatusStopped:     true,
	StatusInterrupted: true,
}

var errorTerminalStatuses = map[Status]bool{
	StatusStopped:     true,
	StatusInterrupted: true,
}

// IsTerminal сообщает, завершён ли скан при данном статусе GMP.
func IsTerminal(s string) bool {
	return terminalStatuses[Status(s)]
}

// IsErrorTerminal сообщает, является ли терминальный статус ошибочным.
func IsErrorTerminal(s string) bool {
	return errorTerminalStatuses[Status(s)]
}
