package gmp

import "context"

// Scanner, ScanConfig и PortList описывают именованные ресурсы GMP,
// разрешаемые по имени в идентификатор при создании задачи/target-а.
type Scanner struct {
	ID   string
	Name string
}

type ScanConfig struct {
	ID   string
	Name string
}

type PortList struct {
	ID   string
	Name string
}

// CreateTargetOptions параметры создания GMP target-а (spec §4.4 шаг 3).
type CreateTargetOptions struct {
	Name                string
	Hosts               string
	PortListID          string // используется, если не пусто
	DefaultPortListName string // используется, когда PortListID пуст
	AliveTest           string // опциональное переопределение, может быть пустым
}

// CreateTaskOptions параметры создания GMP task-а (spec §4.4 шаг 4).
type CreateTaskOptions struct {
	Name         string
	TargetID     string
	ConfigID     string
	ScannerID    string
	ConfigName   string // используется для разрешения ConfigID, если он пуст
	ScannerName  string // используется для разрешения ScannerID, если он пуст
}

// Session — операции над одной GMP-сессией, полученной через Adapter.Connect.
// Каждая операция валидирует статус-код ответа и возвращает ошибку с текстом
// сервера при неуспехе; повторные попытки внутри сессии не выполняются.
type Session interface {
	GetScanners(ctx context.Context) ([]Scanner, error)
	GetScanConfigs(ctx context.Context) ([]ScanConfig, error)
	GetPortLists(ctx context.Context) ([]PortList, error)

	CreatePortList(ctx context.Context, name, tcpPortList string) (id string, err error)
	DeletePortList(ctx context.Context, id string) error

	CreateTarget(ctx context.Context, opts CreateTargetOptions) (id string, err error)
	DeleteTarget(ctx context.Context, id string) error

	CreateTask(ctx context.Context, opts CreateTaskOptions) (id string, err error)
	StartTask(ctx context.Context, id string) (reportID string, err error)
	StopTask(ctx context.Context, id string) error
	DeleteTask(ctx context.Context, id string) error
	GetTaskStatus(ctx context.Context, id string) (status string, progress int, err error)

	GetReportXML(ctx context.Context, reportID string) (string, error)

	// Close освобождает транспорт сессии на всех путях выхода.
	Close() error
}

// Adapter устанавливает GMP-сессию к одному probe, с ограниченным числом
// попыток переподключения (только на connect — операции внутри сессии не
// повторяются молча, см. spec §4.2).
type Adapter interface {
	Connect(ctx context.Context) (Session, error)
}
