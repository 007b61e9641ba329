package domain

import "time"

// Target запись каталога целей, источник истины — внешний сервис или
// ручное создание. Деактивируется, но никогда не удаляется.
type Target struct {
	ExternalID         string
	Host               string
	Ports              []int
	ScanType           ScanType
	ScanConfig         string
	Criticality        Criticality
	ScanFrequencyHours int
	Enabled            bool
	Tags               map[string]string

	LastScanAt *time.Time
	NextScanAt *time.Time
	LastScanID string

	GVMTargetID   string
	GVMPortListID string

	SyncedAt  time.Time
	CreatedAt time.Time
}

// DueAt сообщает, готова ли цель к сканированию к моменту now.
func (t *Target) DueAt(now time.Time) bool {
	if !t.Enabled || t.NextScanAt == nil {
		return false
	}
	return !t.NextScanAt.After(now)
}
