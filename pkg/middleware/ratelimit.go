package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"scanhub/pkg/apperror"
	"scanhub/pkg/logger"
	"scanhub/pkg/ratelimit"
)

// headerKeyExtractor извлекает заголовки запроса в map[string]string, с
// ключами в нижнем регистре, в том виде, в котором их ожидает
// ratelimit.KeyExtractor (подобие gRPC metadata).
func headerKeyExtractor(r *http.Request) map[string]string {
	md := make(map[string]string, len(r.Header))
	for k, v := range r.Header {
		if len(v) > 0 && v[0] != "" {
			md[strings.ToLower(k)] = v[0]
		}
	}
	return md
}

// RateLimit ограничивает частоту запросов через переданный ratelimit.Limiter.
func RateLimit(limiter ratelimit.Limiter, keyExtractor ratelimit.KeyExtractor) Middleware {
	if keyExtractor == nil {
		keyExtractor = ratelimit.DefaultKeyExtractor
	}

	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			md := headerKeyExtractor(r)

			route := r.Pattern
			if route == "" {
				route = r.URL.Path
			}
			key := keyExtractor(ctx, route, md)

			allowed, err := limiter.Allow(ctx, key)
			if err != nil {
				logger.Log.Warn("rate limit check failed", "error", err, "key", key)
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				limitInfo, infoErr := limiter.GetInfo(ctx, key)
				if infoErr != nil {
					logger.Log.Warn("failed to get rate limit info", "error", infoErr, "key", key)
					limitInfo = &ratelimit.LimitInfo{
						Limit:   0,
						ResetAt: time.Now().Add(time.Minute),
					}
				}

				logger.Log.Warn("rate limit exceeded", "key", key, "limit", limitInfo.Limit)

				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limitInfo.Limit))
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("X-RateLimit-Reset", limitInfo.ResetAt.Format(time.RFC3339))

				WriteError(w, apperror.New(apperror.CodeRateLimitExceeded,
					fmt.Sprintf("rate limit exceeded: %d requests per %v", limitInfo.Limit, time.Until(limitInfo.ResetAt))))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
