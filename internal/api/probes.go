package api

import (
	"net/http"

	"scanhub/pkg/middleware"
)

type probeView struct {
	Name        string `json:"name"`
	ActiveScans int    `json:"active_scans"`
}

type probeListResponse struct {
	Probes []probeView `json:"probes"`
}

func (h *Handler) listProbes(w http.ResponseWriter, r *http.Request) {
	counts, err := h.hub.Store.CountActivePerProbe(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	views := make([]probeView, 0, len(h.hub.Registry.Names()))
	for _, name := range h.hub.Registry.Names() {
		views = append(views, probeView{Name: name, ActiveScans: counts[name]})
	}
	middleware.WriteJSON(w, http.StatusOK, probeListResponse{Probes: views})
}
