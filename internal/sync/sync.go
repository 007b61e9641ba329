// Package sync периодически подтягивает каталог целей из внешнего
// источника и поддерживает его в актуальном состоянии. Грунтован на
// TargetSync из target_sync.py.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"scanhub/internal/domain"
	"scanhub/pkg/apperror"
	"scanhub/pkg/client"
	"scanhub/pkg/config"
	"scanhub/pkg/logger"
	"scanhub/pkg/metrics"
)

// Store — подмножество store.Store, нужное синхронизации.
type Store interface {
	UpsertTarget(ctx context.Context, target *domain.Target) error
	DeactivateMissing(ctx context.Context, seenIDs []string) error
}

type sourceTarget struct {
	ID                 string            `json:"id"`
	Host               string            `json:"host"`
	Ports              []int             `json:"ports"`
	ScanType           string            `json:"scan_type"`
	Criticality        string            `json:"criticality"`
	ScanFrequencyHours int               `json:"scan_frequency_hours"`
	Enabled            *bool             `json:"enabled"`
	Tags               map[string]string `json:"tags"`
}

type sourceResponse struct {
	Targets []sourceTarget `json:"targets"`
}

// Sync выполняет периодические циклы синхронизации каталога.
type Sync struct {
	store  Store
	cfg    config.SourceConfig
	client *client.HTTPClient
}

// New создаёт цикл синхронизации. Если cfg.URL пуст, Run возвращает сразу
// без какой-либо работы — отсутствие внешнего источника является штатным.
func New(store Store, cfg config.SourceConfig, retry config.RetryConfig) *Sync {
	return &Sync{
		store:  store,
		cfg:    cfg,
		client: client.New(client.FromRetryConfig(cfg.Timeout, retry)),
	}
}

// Run крутит цикл синхронизации до отмены контекста.
func (s *Sync) Run(ctx context.Context) {
	if s.cfg.URL == "" {
		logger.Log.Info("target sync disabled: no source.url configured")
		return
	}

	ticker := time.NewTicker(s.cfg.SyncInterval)
	defer ticker.Stop()

	s.syncOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.syncOnce(ctx)
		}
	}
}

func (s *Sync) syncOnce(ctx context.Context) {
	targets, err := s.fetch(ctx)
	if err != nil {
		logger.Log.Error("target sync: fetch failed", "error", err)
		metrics.Get().RecordTargetSync("error")
		return
	}

	seenIDs := make([]string, 0, len(targets))
	now := time.Now()

	for _, t := range targets {
		if t.ID == "" || t.Host == "" {
			logger.Log.Warn("target sync: skipping invalid entry", "id", t.ID, "host", t.Host)
			continue
		}
		if t.Enabled != nil && !*t.Enabled {
			continue
		}

		target := &domain.Target{
			ExternalID:         t.ID,
			Host:               t.Host,
			Ports:              t.Ports,
			ScanType:           domain.ScanType(orDefault(t.ScanType, string(domain.ScanTypeFull))),
			Criticality:        domain.Criticality(orDefault(t.Criticality, string(domain.CriticalityMedium))),
			ScanFrequencyHours: orDefaultInt(t.ScanFrequencyHours, 24),
			Enabled:            true,
			Tags:               t.Tags,
			SyncedAt:           now,
			CreatedAt:          now,
		}

		if err := s.store.UpsertTarget(ctx, target); err != nil {
			logger.Log.Error("target sync: upsert failed", "external_id", t.ID, "error", err)
			continue
		}
		seenIDs = append(seenIDs, t.ID)
	}

	if err := s.store.DeactivateMissing(ctx, seenIDs); err != nil {
		logger.Log.Error("target sync: deactivate missing failed", "error", err)
		metrics.Get().RecordTargetSync("error")
		return
	}

	metrics.Get().RecordTargetSync("success")
}

func (s *Sync) fetch(ctx context.Context) ([]sourceTarget, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if s.cfg.Authorization != "" {
		req.Header.Set("Authorization", s.cfg.Authorization)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeSyncError, "source request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, apperror.New(apperror.CodeSyncError, fmt.Sprintf("source returned status %d", resp.StatusCode))
	}

	var body sourceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeSyncError, "decode source response failed")
	}
	return body.Targets, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orDefaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
