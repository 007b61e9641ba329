package middleware

import (
	"net/http"
	"time"

	"scanhub/pkg/logger"
)

// Logging логирует каждый обработанный запрос: метод, маршрут,
// длительность и итоговый статус.
func Logging() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)

			duration := time.Since(start)

			if rec.status >= 500 {
				logger.Log.Error("http request failed",
					"method", r.Method,
					"path", r.URL.Path,
					"status", rec.status,
					"duration_ms", duration.Milliseconds(),
				)
			} else {
				logger.Log.Info("http request completed",
					"method", r.Method,
					"path", r.URL.Path,
					"status", rec.status,
					"duration_ms", duration.Milliseconds(),
				)
			}
		})
	}
}
