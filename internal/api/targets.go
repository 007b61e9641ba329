package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"scanhub/internal/domain"
	"scanhub/pkg/apperror"
	"scanhub/pkg/middleware"
)

type createTargetRequest struct {
	ExternalID         string            `json:"id,omitempty"`
	Host               string            `json:"host"`
	Ports              []int             `json:"ports,omitempty"`
	ScanType           string            `json:"scan_type,omitempty"`
	ScanConfig         string            `json:"scan_config,omitempty"`
	Criticality        string            `json:"criticality,omitempty"`
	ScanFrequencyHours int               `json:"scan_frequency_hours,omitempty"`
	Tags               map[string]string `json:"tags,omitempty"`
}

func (req createTargetRequest) Validate() error {
	if !domain.ValidateTargetHost(req.Host) {
		return apperror.New(apperror.CodeValidationError, "invalid host")
	}
	return nil
}

type targetView struct {
	ExternalID         string            `json:"external_id"`
	Host               string            `json:"host"`
	Ports              []int             `json:"ports,omitempty"`
	ScanType           string            `json:"scan_type"`
	ScanConfig         string            `json:"scan_config,omitempty"`
	Criticality        string            `json:"criticality"`
	ScanFrequencyHours int               `json:"scan_frequency_hours"`
	Enabled            bool              `json:"enabled"`
	Tags               map[string]string `json:"tags,omitempty"`
	LastScanAt         *time.Time        `json:"last_scan_at,omitempty"`
	NextScanAt         *time.Time        `json:"next_scan_at,omitempty"`
	LastScanID         string            `json:"last_scan_id,omitempty"`
}

func toTargetView(t *domain.Target) targetView {
	return targetView{
		ExternalID:         t.ExternalID,
		Host:               t.Host,
		Ports:              t.Ports,
		ScanType:           string(t.ScanType),
		ScanConfig:         t.ScanConfig,
		Criticality:        string(t.Criticality),
		ScanFrequencyHours: t.ScanFrequencyHours,
		Enabled:            t.Enabled,
		Tags:               t.Tags,
		LastScanAt:         t.LastScanAt,
		NextScanAt:         t.NextScanAt,
		LastScanID:         t.LastScanID,
	}
}

func (h *Handler) createTarget(w http.ResponseWriter, r *http.Request) {
	var req createTargetRequest
	if !middleware.DecodeAndValidate(w, r, &req) {
		return
	}

	externalID := req.ExternalID
	if externalID == "" {
		externalID = uuid.NewString()
	}

	scanType := domain.ScanType(req.ScanType)
	if scanType == "" {
		scanType = domain.ScanTypeFull
	}
	criticality := domain.Criticality(req.Criticality)
	if criticality == "" {
		criticality = domain.CriticalityMedium
	}
	frequency := req.ScanFrequencyHours
	if frequency <= 0 {
		frequency = 24
	}

	now := time.Now()
	target := &domain.Target{
		ExternalID:         externalID,
		Host:               req.Host,
		Ports:              req.Ports,
		ScanType:           scanType,
		ScanConfig:         req.ScanConfig,
		Criticality:        criticality,
		ScanFrequencyHours: frequency,
		Enabled:            true,
		Tags:               req.Tags,
		SyncedAt:           now,
		CreatedAt:          now,
	}

	if err := h.hub.Store.InsertManualTarget(r.Context(), target); err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, toTargetView(target))
}

func (h *Handler) getTarget(w http.ResponseWriter, r *http.Request) {
	target, err := h.hub.Store.GetTarget(r.Context(), r.PathValue("external_id"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, toTargetView(target))
}

type targetListResponse struct {
	Total   int          `json:"total"`
	Targets []targetView `json:"targets"`
}

func (h *Handler) listTargets(w http.ResponseWriter, r *http.Request) {
	targets, err := h.hub.Store.ListTargets(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	views := make([]targetView, 0, len(targets))
	for _, t := range targets {
		views = append(views, toTargetView(t))
	}
	middleware.WriteJSON(w, http.StatusOK, targetListResponse{Total: len(views), Targets: views})
}
