// Package scheduler выбирает просроченные цели каталога и заводит для
// них новые сканы. Грунтован на ScanScheduler.check_and_schedule из
// target_sync.py.
package scheduler

import (
	"context"
	"time"

	"scanhub/internal/domain"
	"scanhub/internal/lifecycle"
	"scanhub/pkg/config"
	"scanhub/pkg/logger"
	"scanhub/pkg/metrics"
)

// Store — подмножество store.Store, нужное планировщику.
type Store interface {
	GetDueTargets(ctx context.Context, now time.Time) ([]*domain.Target, error)
	UpdateTargetSchedule(ctx context.Context, externalID, scanID string, frequencyHours int, now time.Time) error
}

// Engine — подмножество lifecycle.Engine, нужное планировщику.
type Engine interface {
	CreateScan(ctx context.Context, params lifecycle.CreateScanParams) (*domain.Scan, error)
	StartScan(ctx context.Context, scanID string)
}

// Scheduler крутит периодический цикл над каталогом целей.
type Scheduler struct {
	store  Store
	engine Engine
	cfg    config.SchedulerConfig
}

// New создаёт планировщик.
func New(store Store, engine Engine, cfg config.SchedulerConfig) *Scheduler {
	return &Scheduler{store: store, engine: engine, cfg: cfg}
}

// Run крутит цикл планировщика до отмены контекста.
func (s *Scheduler) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		logger.Log.Info("scheduler disabled")
		return
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now()
	targets, err := s.store.GetDueTargets(ctx, now)
	if err != nil {
		logger.Log.Error("scheduler: get_due_targets failed", "error", err)
		return
	}

	metrics.Get().SetSchedulerDueTargets(len(targets))

	for _, target := range targets {
		s.scheduleOne(ctx, target, now)
	}
}

// scheduleOne создаёт скан, связывает его с внешним ID цели, обновляет
// расписание и запускает выполнение. Ошибка изолируется — не прерывает
// обработку остальных целей.
func (s *Scheduler) scheduleOne(ctx context.Context, target *domain.Target, now time.Time) {
	scan, err := s.engine.CreateScan(ctx, lifecycle.CreateScanParams{
		Target:           target.Host,
		ScanType:         target.ScanType,
		Ports:            target.Ports,
		ExternalTargetID: target.ExternalID,
	})
	if err != nil {
		logger.Log.Error("scheduler: create scan failed", "external_id", target.ExternalID, "error", err)
		return
	}

	if err := s.store.UpdateTargetSchedule(ctx, target.ExternalID, scan.ScanID, target.ScanFrequencyHours, now); err != nil {
		logger.Log.Error("scheduler: update target schedule failed", "external_id", target.ExternalID, "error", err)
		return
	}

	s.engine.StartScan(ctx, scan.ScanID)
}
