package api

import (
	"net/http"

	"scanhub/internal/api/openapi"
	"scanhub/pkg/swagger"
)

// openAPISpec отдаёт спецификацию REST-поверхности Scan Hub.
func (h *Handler) openAPISpec(w http.ResponseWriter, r *http.Request) {
	openapi.Handler().ServeHTTP(w, r)
}

// docsUI отдаёт Swagger UI, указывающий на /openapi.json.
func (h *Handler) docsUI(w http.ResponseWriter, r *http.Request) {
	title := h.cfg.Swagger.Title
	if title == "" {
		title = "Scan Hub API"
	}

	cfg := &swagger.Config{
		Title:                    title,
		BasePath:                 "/docs",
		SpecPath:                 "/openapi.json",
		DeepLinking:              true,
		DocExpansion:             "list",
		DefaultModelsExpandDepth: 1,
	}
	swagger.NewHandler(cfg, openapi.MustGetSpec()).ServeHTTP(w, r)
}
