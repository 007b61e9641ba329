package middleware

import (
	"context"
	"net/http"
	"strings"

	"scanhub/pkg/apperror"
	"scanhub/pkg/passhash"
)

type contextKey string

const claimsContextKey contextKey = "scanhub.claims"

// ClaimsFromContext извлекает JWT claims, установленные Auth middleware.
func ClaimsFromContext(ctx context.Context) (*passhash.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*passhash.Claims)
	return claims, ok
}

// Auth проверяет bearer-токен для всех маршрутов, кроме перечисленных в
// exemptRoutes. Если manager равен nil (секрет не сконфигурирован),
// middleware пропускает запросы без проверки.
func Auth(manager *passhash.JWTManager, exemptRoutes []string) Middleware {
	exempt := make(map[string]bool, len(exemptRoutes))
	for _, route := range exemptRoutes {
		exempt[route] = true
	}

	return func(next http.Handler) http.Handler {
		if manager == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if exempt[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				WriteError(w, apperror.New(apperror.CodeUnauthenticated, "missing bearer token"))
				return
			}

			claims, err := manager.ValidateToken(token)
			if err != nil {
				WriteError(w, apperror.Wrap(err, apperror.CodeUnauthenticated, "invalid bearer token"))
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
