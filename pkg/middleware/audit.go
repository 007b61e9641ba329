package middleware

import (
	"context"
	"net/http"
	"time"

	"scanhub/pkg/apperror"
	"scanhub/pkg/audit"
	"scanhub/pkg/logger"
)

// AuditConfig конфигурация аудит middleware.
type AuditConfig struct {
	ServiceName   string
	ExcludeRoutes map[string]bool
	Logger        audit.Logger
}

// Audit логирует каждый запрос как событие аудита: кто, что, когда и с
// каким результатом. Действие определяется по HTTP-методу маршрута, а не
// по подстрокам в его имени.
func Audit(cfg *AuditConfig) Middleware {
	if cfg.Logger == nil {
		cfg.Logger = audit.Get()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := r.Pattern
			if route == "" {
				route = r.URL.Path
			}

			if cfg.ExcludeRoutes != nil && cfg.ExcludeRoutes[route] {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()

			userID, username := extractUserInfo(r.Context())
			requestID := r.Header.Get("X-Request-Id")

			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)

			duration := time.Since(start)

			builder := audit.NewEntry().
				Service(cfg.ServiceName).
				Method(r.Method + " " + route).
				Action(methodToAction(r.Method)).
				User(userID, username).
				Client(clientIP(r), r.UserAgent()).
				RequestID(requestID).
				Duration(duration)

			if rec.status >= 400 {
				builder.Outcome(audit.OutcomeFailure).
					Error(string(apperror.CodeInternal), http.StatusText(rec.status))
			} else {
				builder.Outcome(audit.OutcomeSuccess)
			}

			entry := builder.Build()

			go func() {
				if logErr := cfg.Logger.Log(context.Background(), entry); logErr != nil {
					logger.Log.Warn("failed to write audit log", "error", logErr)
				}
			}()
		})
	}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

func extractUserInfo(ctx context.Context) (userID, username string) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return "", ""
	}
	return claims.UserID, claims.Username
}

// methodToAction сопоставляет HTTP-метод действию аудита.
func methodToAction(method string) audit.Action {
	switch method {
	case http.MethodPost:
		return audit.ActionCreate
	case http.MethodGet, http.MethodHead:
		return audit.ActionRead
	case http.MethodPut, http.MethodPatch:
		return audit.ActionUpdate
	case http.MethodDelete:
		return audit.ActionDelete
	default:
		return audit.ActionRead
	}
}
