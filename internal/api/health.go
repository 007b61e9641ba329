package api

import (
	"net/http"

	"scanhub/pkg/middleware"
)

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	status := h.hub.Registry.Health(r.Context())

	code := http.StatusOK
	if status.Overall != "healthy" {
		code = http.StatusServiceUnavailable
	}
	middleware.WriteJSON(w, code, status)
}
