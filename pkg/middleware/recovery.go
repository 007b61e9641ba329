package middleware

import (
	"net/http"

	"scanhub/pkg/apperror"
	"scanhub/pkg/logger"
)

// Recovery перехватывает панику в обработчике и превращает её в ответ 500,
// вместо того чтобы уронить процесс целиком.
func Recovery() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Log.Error("panic recovered",
						"method", r.Method,
						"path", r.URL.Path,
						"panic", rec,
					)
					WriteError(w, apperror.New(apperror.CodeInternal, "internal server error"))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
