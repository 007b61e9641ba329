// Package callback рассылает уведомления о завершении сканирования на
// внешний URL. Грунтован на send_callback из target_sync.py.
package callback

import (
	"bytes"
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

// Store — подмножество store.Store, нужное диспетчеру.
type Store interface {
	GetScan(ctx context.Context, scanID string) (*domain.Scan, error)
}

// Dispatcher рассылает завершённые сканы на настроенный callback_url.
type Dispatcher struct {
	store  Store
	cfg    config.CallbackConfig
	client *client.HTTPClient
}

// New создаёт диспетчер. Если cfg.URL пуст, Dispatch становится no-op.
func New(store Store, cfg config.CallbackConfig, retry config.RetryConfig) *Dispatcher {
	return &Dispatcher{store: store, cfg: cfg, client: client.New(client.FromRetryConfig(cfg.Timeout, retry))}
}

type payload struct {
	ExternalTargetID string          `json:"external_target_id"`
	ScanID           string          `json:"scan_id"`
	ProbeName        string          `json:"probe_name"`
	Host             string          `json:"host"`
	GVMStatus        string          `json:"gvm_status"`
	CompletedAt      string          `json:"completed_at,omitempty"`
	Summary          *domain.Summary `json:"summary,omitempty"`
}

// Dispatch собирает и отправляет payload для завершённого скана.
// Любая ошибка только логируется и не распространяется вызывающему коду,
// как требует контракт диспетчера (§4.8).
func (d *Dispatcher) Dispatch(ctx context.Context, scanID string) {
	if d.cfg.URL == "" {
		return
	}

	scan, err := d.store.GetScan(ctx, scanID)
	if err != nil {
		logger.Log.Error("callback: scan lookup failed", "scan_id", scanID, "error", err)
		metrics.Get().RecordCallbackDispatch("error")
		return
	}

	body := payload{
		ExternalTargetID: scan.ExternalTargetID,
		ScanID:           scan.ScanID,
		ProbeName:        scan.ProbeName,
		Host:             scan.Target,
		GVMStatus:        scan.GVMStatus,
		Summary:          scan.Summary,
	}
	if scan.CompletedAt != nil {
		body.CompletedAt = scan.CompletedAt.Format(time.RFC3339)
	}

	if err := d.send(ctx, body); err != nil {
		logger.Log.Error("callback: dispatch failed", "scan_id", scanID, "error", err)
		metrics.Get().RecordCallbackDispatch("error")
		return
	}

	metrics.Get().RecordCallbackDispatch("success")
}

func (d *Dispatcher) send(ctx context.Context, body payload) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.URL, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.cfg.Authorization != "" {
		req.Header.Set("Authorization", d.cfg.Authorization)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeCallbackError, "callback request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return apperror.New(apperror.CodeCallbackError, fmt.Sprintf("callback returned status %d", resp.StatusCode))
	}
	return nil
}
