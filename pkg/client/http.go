// Package client предоставляет исходящий HTTP-клиент с таймаутом и
// экспоненциальным backoff-повтором — используется синхронизацией каталога
// целей и диспетчером callback-уведомлений.
package client

import (
	"math"
	"net/http"
	"time"

	"scanhub/pkg/config"
	"scanhub/pkg/logger"
)

// Config конфигурация HTTP-клиента.
type Config struct {
	Timeout           time.Duration
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// DefaultConfig возвращает конфигурацию по умолчанию.
func DefaultConfig() *Config {
	return &Config{
		Timeout:           30 * time.Second,
		MaxAttempts:       1,
		InitialBackoff:    time.Second,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2,
	}
}

// FromRetryConfig строит Config из timeout и cfg.Retry общей конфигурации.
func FromRetryConfig(timeout time.Duration, retry config.RetryConfig) *Config {
	cfg := DefaultConfig()
	cfg.Timeout = timeout
	if retry.MaxAttempts > 0 {
		cfg.MaxAttempts = retry.MaxAttempts
	}
	if retry.InitialBackoff > 0 {
		cfg.InitialBackoff = retry.InitialBackoff
	}
	if retry.MaxBackoff > 0 {
		cfg.MaxBackoff = retry.MaxBackoff
	}
	if retry.BackoffMultiplier > 0 {
		cfg.BackoffMultiplier = retry.BackoffMultiplier
	}
	return cfg
}

// HTTPClient обёртка над http.Client с ограниченным числом повторов при
// ошибках транспорта (не при HTTP 4xx/5xx — те интерпретирует вызывающий код).
type HTTPClient struct {
	cfg    *Config
	client *http.Client
}

// New создаёт HTTP-клиент. Если cfg равен nil, используется DefaultConfig.
func New(cfg *Config) *HTTPClient {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &HTTPClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Do выполняет запрос, повторяя его при ошибках транспорта до MaxAttempts
// раз с экспоненциальным backoff. Тело запроса должно поддерживать
// повторное чтение (GetBody), иначе повтор не выполняется.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	attempts := c.cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	backoff := c.cfg.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := c.client.Do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if attempt == attempts {
			break
		}
		if req.Body != nil {
			if req.GetBody == nil {
				break
			}
			body, bodyErr := req.GetBody()
			if bodyErr != nil {
				break
			}
			req.Body = body
		}

		logger.Log.Warn("http client: retrying request", "attempt", attempt, "error", err)

		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(backoff):
		}

		backoff = time.Duration(math.Min(float64(backoff)*c.cfg.BackoffMultiplier, float64(c.cfg.MaxBackoff)))
	}

	return nil, lastErr
}
