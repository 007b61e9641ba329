package middleware

import (
	"scanhub/pkg/audit"
	"scanhub/pkg/config"
	"scanhub/pkg/passhash"
	"scanhub/pkg/ratelimit"
)

// ServerConfig собирает зависимости, нужные цепочке middleware верхнего уровня.
type ServerConfig struct {
	ServiceName   string
	EnableTracing bool
	EnableAudit   bool
	RateLimiter   ratelimit.Limiter
	AuditLogger   audit.Logger
	AuditExclude  map[string]bool
	KeyExtractor  ratelimit.KeyExtractor
	Auth          *config.AuthConfig
	JWTManager    *passhash.JWTManager
}

// Default строит цепочку middleware в фиксированном порядке: Recovery ->
// RateLimit -> Tracing -> Metrics -> Logging -> Auth -> Audit. Recovery идёт
// первым, чтобы паника в любом из нижестоящих слоёв тоже перехватывалась.
// Audit идёт последним, чтобы логировать итоговый статус ответа.
func Default(cfg *ServerConfig) Middleware {
	mws := []Middleware{Recovery()}

	if cfg.RateLimiter != nil {
		mws = append(mws, RateLimit(cfg.RateLimiter, cfg.KeyExtractor))
	}

	if cfg.EnableTracing {
		mws = append(mws, Tracing())
	}

	mws = append(mws, Metrics(), Logging())

	if cfg.Auth != nil && cfg.Auth.Secret != "" && cfg.JWTManager != nil {
		mws = append(mws, Auth(cfg.JWTManager, cfg.Auth.ExemptRoutes))
	}

	if cfg.EnableAudit && cfg.AuditLogger != nil {
		mws = append(mws, Audit(&AuditConfig{
			ServiceName:   cfg.ServiceName,
			ExcludeRoutes: cfg.AuditExclude,
			Logger:        cfg.AuditLogger,
		}))
	}

	return Chain(mws...)
}
