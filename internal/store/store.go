// Package store реализует хранилище сканов и каталога целей поверх
// встраиваемой реляционной базы (modernc.org/sqlite), с семантикой
// единственного писателя и WAL-журналированием для читателей.
package store

import (
	"context"
	"time"

	"scanhub/internal/domain"
)

// Store — контракт слоя хранения (операции из §4.1). Методы обновления
// соответствуют конкретным шагам движка жизненного цикла, а не общему
// произвольному patch — так каждый шаг персистирует ровно те поля,
// которые он сам вычислил.
type Store interface {
	InsertScan(ctx context.Context, scan *domain.Scan) error
	GetScan(ctx context.Context, scanID string) (*domain.Scan, error)
	ListScans(ctx context.Context) ([]*domain.Scan, error)
	CountActivePerProbe(ctx context.Context) (map[string]int, error)

	UpdateScanPortList(ctx context.Context, scanID, gvmPortListID string) error
	UpdateScanTarget(ctx context.Context, scanID, gvmTargetID string) error
	UpdateScanTask(ctx context.Context, scanID, gvmTaskID string) error
	UpdateScanStarted(ctx context.Context, scanID, gvmReportID string, startedAt time.Time) error
	UpdateScanPoll(ctx context.Context, scanID, gvmStatus string, gvmProgress int) error
	UpdateScanCompleted(ctx context.Context, scanID string, completedAt time.Time, errMsg string) error
	UpdateScanReport(ctx context.Context, scanID, reportXML string, summary *domain.Summary) error
	UpdateScanError(ctx context.Context, scanID string, errMsg string) error

	UpsertTarget(ctx context.Context, target *domain.Target) error
	InsertManualTarget(ctx context.Context, target *domain.Target) error
	DeactivateMissing(ctx context.Context, seenIDs []string) error
	GetDueTargets(ctx context.Context, now time.Time) ([]*domain.Target, error)
	UpdateTargetGVMIDs(ctx context.Context, externalID, gvmTargetID, gvmPortListID string) error
	UpdateTargetSchedule(ctx context.Context, externalID, scanID string, frequencyHours int, now time.Time) error
	ListTargets(ctx context.Context) ([]*domain.Target, error)
	GetTarget(ctx context.Context, externalID string) (*domain.Target, error)
}
