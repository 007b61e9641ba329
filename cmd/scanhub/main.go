package main

import (
	"context"

	"scanhub/internal/api"
	"scanhub/internal/hub"
	"scanhub/migrations"
	"scanhub/pkg/audit"
	"scanhub/pkg/config"
	"scanhub/pkg/database"
	"scanhub/pkg/httpserver"
	"scanhub/pkg/logger"
	"scanhub/pkg/metrics"
	"scanhub/pkg/middleware"
	"scanhub/pkg/passhash"
	"scanhub/pkg/ratelimit"
)

func main() {
	cfg, err := config.LoadWithServiceDefaults("scanhub", 8080)
	if err != nil {
		logger.Fatal("failed to load config", "error", err)
	}

	logger.InitWithConfig(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})

	metrics.InitMetrics(cfg.Metrics.Namespace, cfg.App.Name)

	ctx := context.Background()

	db, err := database.NewSQLiteDB(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal("failed to open database", "error", err)
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db.Conn(), &cfg.Database, migrations.FS, "."); err != nil {
		logger.Fatal("failed to run migrations", "error", err)
	}

	h := hub.New(db, cfg)
	go h.Run(ctx)

	var jwtManager *passhash.JWTManager
	if cfg.AuthEnabled() {
		jwtManager = passhash.NewJWTManager(&passhash.JWTConfig{
			SecretKey:          cfg.Auth.Secret,
			AccessTokenExpiry:  cfg.Auth.TokenExpiry,
			RefreshTokenExpiry: cfg.Auth.TokenExpiry * 24,
			Issuer:             cfg.Auth.Issuer,
		})
	}

	var rateLimiter ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		rateLimiter, err = ratelimit.New(&ratelimit.Config{
			Requests:        cfg.RateLimit.Requests,
			Window:          cfg.RateLimit.Window,
			Strategy:        cfg.RateLimit.Strategy,
			Backend:         cfg.RateLimit.Backend,
			BurstSize:       cfg.RateLimit.BurstSize,
			CleanupInterval: cfg.RateLimit.CleanupInterval,
			RedisAddr:       cfg.RateLimit.RedisAddr,
		})
		if err != nil {
			logger.Log.Warn("failed to create rate limiter, continuing without it", "error", err)
			rateLimiter = nil
		}
	}

	var auditLogger audit.Logger
	if cfg.Audit.Enabled {
		auditLogger, err = audit.New(&audit.Config{
			Enabled:         cfg.Audit.Enabled,
			Backend:         cfg.Audit.Backend,
			FilePath:        cfg.Audit.FilePath,
			BufferSize:      cfg.Audit.BufferSize,
			FlushPeriod:     cfg.Audit.FlushPeriod,
			ExcludeMethods:  cfg.Audit.ExcludeMethods,
			IncludeRequest:  cfg.Audit.IncludeRequest,
			IncludeResponse: cfg.Audit.IncludeResponse,
		})
		if err != nil {
			logger.Log.Warn("failed to create audit logger, continuing without it", "error", err)
			auditLogger = nil
		} else {
			audit.SetGlobal(auditLogger)
		}
	}

	auditExclude := map[string]bool{"/health": true, "/metrics": true}
	for _, route := range cfg.Audit.ExcludeMethods {
		auditExclude[route] = true
	}

	mw := middleware.Default(&middleware.ServerConfig{
		ServiceName:   cfg.App.Name,
		EnableTracing: cfg.Tracing.Enabled,
		EnableAudit:   cfg.Audit.Enabled && auditLogger != nil,
		RateLimiter:   rateLimiter,
		AuditLogger:   auditLogger,
		AuditExclude:  auditExclude,
		Auth:          &cfg.Auth,
		JWTManager:    jwtManager,
	})

	handler := api.NewHandler(h, cfg, jwtManager)

	srv := httpserver.New(cfg, handler.Routes(mw), &httpserver.Options{
		RateLimiter: rateLimiter,
		AuditLogger: auditLogger,
	})

	logger.Info("Starting Scan Hub",
		"addr", cfg.HTTP.Port,
		"environment", cfg.App.Environment,
		"version", cfg.App.Version,
	)

	if err := srv.Run(); err != nil {
		logger.Fatal("server failed", "error", err)
	}
}
