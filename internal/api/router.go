// Package api реализует REST-обработчики поверх ядра Scan Hub, используя
// net/http.ServeMux с шаблонами маршрутов Go 1.22+ — без сторонней
// библиотеки маршрутизации, как и остальной стек.
package api

import (
	"net/http"

	"scanhub/internal/hub"
	"scanhub/pkg/config"
	"scanhub/pkg/metrics"
	"scanhub/pkg/middleware"
	"scanhub/pkg/passhash"
)

// Handler агрегирует зависимости REST-обработчиков.
type Handler struct {
	hub        *hub.Hub
	cfg        *config.Config
	jwtManager *passhash.JWTManager
}

// NewHandler создаёт обработчик поверх Hub, конфигурации и (опционально)
// JWT-менеджера для /auth/token — nil, если авторизация отключена.
func NewHandler(h *hub.Hub, cfg *config.Config, jwtManager *passhash.JWTManager) *Handler {
	return &Handler{hub: h, cfg: cfg, jwtManager: jwtManager}
}

// Mux строит маршрутизатор с полной поверхностью REST API (§6) плюс
// дополнительные экспорт-эндпоинты.
func (h *Handler) Mux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /scans", h.submitScan)
	mux.HandleFunc("GET /scans/{id}", h.getScan)
	mux.HandleFunc("GET /scans/{id}/report", h.getScanReport)
	mux.HandleFunc("GET /scans/{id}/report.pdf", h.getScanReportPDF)
	mux.HandleFunc("GET /scans", h.listScans)

	mux.HandleFunc("GET /probes", h.listProbes)

	mux.HandleFunc("GET /targets", h.listTargets)
	mux.HandleFunc("POST /targets", h.createTarget)
	mux.HandleFunc("GET /targets/{external_id}", h.getTarget)
	mux.HandleFunc("GET /targets/export.xlsx", h.exportTargetsXLSX)

	mux.HandleFunc("GET /health", h.health)
	mux.Handle("GET /metrics", metrics.Get().Handler())

	mux.HandleFunc("GET /openapi.json", h.openAPISpec)
	mux.HandleFunc("GET /docs", h.docsUI)
	mux.HandleFunc("GET /docs/openapi.json", h.openAPISpec)

	mux.HandleFunc("POST /auth/token", h.issueToken)

	return mux
}

// Routes возвращает маршрутизатор обёрнутый стандартной цепочкой middleware.
func (h *Handler) Routes(mw middleware.Middleware) http.Handler {
	return mw(h.Mux())
}
