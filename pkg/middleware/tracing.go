package middleware

import (
	"scanhub/pkg/telemetry"
)

// Tracing оборачивает запрос в span через OpenTelemetry.
func Tracing() Middleware {
	return Middleware(telemetry.HTTPMiddleware())
}
