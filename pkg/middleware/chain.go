// Package middleware содержит цепочку http middleware, выполняющую ту же
// роль для REST API, что gRPC-интерсепторы играли в сервисах на базе gRPC:
// восстановление после паники, rate limiting, трейсинг, метрики, логирование,
// аутентификация и аудит — в фиксированном порядке.
package middleware

import "net/http"

// Middleware оборачивает http.Handler дополнительным поведением.
type Middleware func(http.Handler) http.Handler

// Chain объединяет middleware в одну цепочку. Первый элемент выполняется
// снаружи (первым видит запрос, последним видит ответ).
func Chain(mws ...Middleware) Middleware {
	return func(final http.Handler) http.Handler {
		h := final
		for i := len(mws) - 1; i >= 0; i-- {
			h = mws[i](h)
		}
		return h
	}
}
