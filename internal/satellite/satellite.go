// Package satellite предоставляет справочный HTTP-клиент для
// альтернативного паттерна "satellite" (spec.md §1): вместо прямого
// GMP-подключения хаб мог бы отправлять задания на сателлит, стоящий рядом
// с probe-ом, и получать результат через вебхук. Движок жизненного цикла
// (internal/lifecycle) этим клиентом не пользуется — он разговаривает с
// probe-ом по GMP напрямую (§4.2–§4.4); этот пакет существует только для
// операторов, которые фронтируют probe сателлитом, и покрыт только
// собственными тестами.
package satellite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"scanhub/pkg/apperror"
	"scanhub/pkg/client"
)

// JobRequest задание на сканирование, отправляемое сателлиту.
type JobRequest struct {
	JobID    string `json:"job_id"`
	Target   string `json:"target"`
	ScanType string `json:"scan_type"`
	Ports    []int  `json:"ports,omitempty"`
}

// JobResponse подтверждение приёма задания сателлитом.
type JobResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// WebhookResult результат сканирования, который сателлит присылает обратно
// на настроенный у него central-webhook после завершения.
type WebhookResult struct {
	JobID       string         `json:"job_id"`
	ProbeID     string         `json:"probe_id"`
	Status      string         `json:"status"`
	CompletedAt string         `json:"completed_at"`
	Error       string         `json:"error,omitempty"`
	Summary     map[string]int `json:"summary,omitempty"`
}

// Client обёртка над HTTP-контрактом сателлита: отправка задания и приём
// результата, который пришёл на локально зарегистрированный webhook-обработчик.
type Client struct {
	baseURL string
	token   string
	http    *client.HTTPClient
}

// New создаёт клиент сателлита. baseURL — адрес самого сателлита
// (например http://probe-1.local:9100), token — Bearer-токен, если сателлит
// настроен требовать авторизацию на входящих заданиях.
func New(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    client.New(&client.Config{Timeout: timeout, MaxAttempts: 1}),
	}
}

// PostJob отправляет задание сателлиту и возвращает его подтверждение приёма.
func (c *Client) PostJob(ctx context.Context, job JobRequest) (*JobResponse, error) {
	encoded, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal job: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/jobs", bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeGVMConnectionError, "satellite job submission failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, apperror.New(apperror.CodeGVMConnectionError, fmt.Sprintf("satellite returned status %d", resp.StatusCode))
	}

	var out JobResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode job response: %w", err)
	}
	return &out, nil
}

// WebhookHandler возвращает обработчик для регистрации на стороне хаба —
// сателлит присылает сюда WebhookResult по завершении задания; onResult
// вызывается один раз на каждый разобранный результат.
func WebhookHandler(onResult func(ctx context.Context, result WebhookResult)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var result WebhookResult
		if err := json.NewDecoder(r.Body).Decode(&result); err != nil {
			http.Error(w, "invalid webhook payload", http.StatusBadRequest)
			return
		}
		onResult(r.Context(), result)
		w.WriteHeader(http.StatusAccepted)
	}
}
