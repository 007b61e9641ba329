// Package httpserver содержит обёртку над net/http.Server с тем же
// жизненным циклом, что и pkg/server's GRPCServer: побочные горутины для
// метрик/Swagger, сигнальное graceful-завершение, аудит-записи старта и
// остановки.
package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scanhub/internal/api/openapi"
	"scanhub/pkg/audit"
	"scanhub/pkg/config"
	"scanhub/pkg/logger"
	"scanhub/pkg/metrics"
	"scanhub/pkg/ratelimit"
	"scanhub/pkg/swagger"
	"scanhub/pkg/telemetry"
)

// Server обёртка над http.Server с тем же набором побочных сервисов, что и
// GRPCServer учителя.
type Server struct {
	httpServer  *http.Server
	config      *config.Config
	telemetry   *telemetry.Provider
	rateLimiter ratelimit.Limiter
	auditLogger audit.Logger
}

// Options дополнительные зависимости, собранные вызывающей стороной (main).
type Options struct {
	RateLimiter ratelimit.Limiter
	AuditLogger audit.Logger
}

// New создаёт HTTP-сервер поверх готового маршрутизатора.
func New(cfg *config.Config, handler http.Handler, opts *Options) *Server {
	if opts == nil {
		opts = &Options{}
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
			Handler:      handler,
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
		},
		config:      cfg,
		rateLimiter: opts.RateLimiter,
		auditLogger: opts.AuditLogger,
	}
}

// Run запускает сервер и блокируется до получения сигнала остановки или
// фатальной ошибки прослушивания.
func (s *Server) Run() error {
	ctx := context.Background()

	if s.config.Tracing.Enabled {
		tp, err := telemetry.Init(ctx, telemetry.Config{
			Enabled:     s.config.Tracing.Enabled,
			Endpoint:    s.config.Tracing.Endpoint,
			ServiceName: s.config.Tracing.ServiceName,
			Version:     s.config.App.Version,
			Environment: s.config.App.Environment,
			SampleRate:  s.config.Tracing.SampleRate,
		})
		if err != nil {
			logger.Log.Warn("Failed to init telemetry", "error", err)
		} else {
			s.telemetry = tp
			logger.Log.Info("Telemetry initialized",
				"endpoint", s.config.Tracing.Endpoint,
				"sample_rate", s.config.Tracing.SampleRate,
			)
		}
	}

	if s.config.Metrics.Enabled {
		go func() {
			logger.Log.Info("Starting metrics server",
				"port", s.config.Metrics.Port,
				"path", s.config.Metrics.Path,
			)
			if err := metrics.StartMetricsServer(s.config.Metrics.Port); err != nil {
				logger.Log.Error("Metrics server failed", "error", err)
			}
		}()
	}

	if s.config.Swagger.Enabled {
		go func() {
			swaggerCfg := &swagger.Config{
				Title:    s.config.Swagger.Title,
				BasePath: "/swagger",
			}

			server := swagger.NewServer(swaggerCfg, openapi.MustGetSpec())
			if err := server.Start(s.config.Swagger.Port); err != nil {
				logger.Log.Error("Swagger server failed", "error", err)
			}
		}()
		logger.Log.Info("Swagger UI started", "port", s.config.Swagger.Port)
	}

	if m := metrics.Get(); m != nil {
		m.SetServiceInfo(s.config.App.Version, s.config.App.Environment)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info("Starting HTTP server",
			"service", s.config.App.Name,
			"addr", s.httpServer.Addr,
			"environment", s.config.App.Environment,
			"version", s.config.App.Version,
		)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	if s.auditLogger != nil {
		entry := audit.NewEntry().
			Service(s.config.App.Name).
			Method("httpserver.Start").
			Action(audit.ActionCreate).
			Outcome(audit.OutcomeSuccess).
			Meta("addr", s.httpServer.Addr).
			Meta("version", s.config.App.Version).
			Meta("environment", s.config.App.Environment).
			Build()
		if err := s.auditLogger.Log(ctx, entry); err != nil {
			logger.Log.Warn("Failed to log audit entry", "error", err)
		}
	}

	return s.waitForShutdown(errCh)
}

func (s *Server) waitForShutdown(errCh chan error) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Log.Info("Received shutdown signal", "signal", sig)
	}

	if s.auditLogger != nil {
		entry := audit.NewEntry().
			Service(s.config.App.Name).
			Method("httpserver.Shutdown").
			Action(audit.ActionUpdate).
			Outcome(audit.OutcomeSuccess).
			Meta("reason", "signal").
			Build()
		if err := s.auditLogger.Log(context.Background(), entry); err != nil {
			logger.Log.Warn("Failed to log audit entry", "error", err)
		}
	}

	shutdownTimeout := s.config.HTTP.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if s.telemetry != nil {
		if err := s.telemetry.Shutdown(ctx); err != nil {
			logger.Log.Warn("Failed to shutdown telemetry", "error", err)
		}
	}

	if s.rateLimiter != nil {
		if err := s.rateLimiter.Close(); err != nil {
			logger.Log.Warn("Failed to close rate limiter", "error", err)
		}
	}

	if s.auditLogger != nil {
		if err := s.auditLogger.Close(); err != nil {
			logger.Log.Warn("Failed to close audit logger", "error", err)
		}
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		logger.Log.Warn("Forcing server close", "error", err)
		return s.httpServer.Close()
	}

	logger.Log.Info("Server stopped gracefully")
	return nil
}
