package middleware

import (
	"net/http"
	"strconv"
	"time"

	"scanhub/pkg/metrics"
)

// Metrics записывает метрики запросов: счётчик, гистограмму длительности
// и количество запросов в работе, с разбивкой по маршруту и методу.
func Metrics() Middleware {
	m := metrics.Get()
	tracker := metrics.NewRequestTracker(m.HTTPRequestsInFlight)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := r.Pattern
			if route == "" {
				route = r.URL.Path
			}

			tracker.Start(route)
			defer tracker.End(route)

			start := time.Now()

			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)

			duration := time.Since(start)
			m.RecordHTTPRequest(route, r.Method, strconv.Itoa(rec.status), duration)
		})
	}
}
