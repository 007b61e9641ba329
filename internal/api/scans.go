package api

import (
	"net/http"
	"time"

	"scanhub/internal/domain"
	"scanhub/internal/lifecycle"
	"scanhub/pkg/apperror"
	"scanhub/pkg/middleware"
)

type submitScanRequest struct {
	Target    string `json:"target"`
	ScanType  string `json:"scan_type"`
	Ports     []int  `json:"ports,omitempty"`
	ProbeName string `json:"probe_name,omitempty"`
	Name      string `json:"name,omitempty"`
}

func (req submitScanRequest) Validate() error {
	if req.Target == "" {
		return apperror.New(apperror.CodeValidationError, "target is required")
	}
	if req.ScanType != string(domain.ScanTypeFull) && req.ScanType != string(domain.ScanTypeDirected) {
		return apperror.New(apperror.CodeValidationError, "scan_type must be full or directed")
	}
	return nil
}

type submitScanResponse struct {
	ScanID    string `json:"scan_id"`
	ProbeName string `json:"probe_name"`
	Message   string `json:"message"`
}

func (h *Handler) submitScan(w http.ResponseWriter, r *http.Request) {
	var req submitScanRequest
	if !middleware.DecodeAndValidate(w, r, &req) {
		return
	}

	scan, err := h.hub.Engine.CreateScan(r.Context(), lifecycle.CreateScanParams{
		Target:    req.Target,
		ScanType:  domain.ScanType(req.ScanType),
		Ports:     req.Ports,
		ProbeName: req.ProbeName,
		Name:      req.Name,
	})
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	h.hub.Engine.StartScan(r.Context(), scan.ScanID)

	middleware.WriteJSON(w, http.StatusOK, submitScanResponse{
		ScanID:    scan.ScanID,
		ProbeName: scan.ProbeName,
		Message:   "scan submitted",
	})
}

type scanView struct {
	ScanID      string     `json:"scan_id"`
	ProbeName   string     `json:"probe_name"`
	GVMStatus   string     `json:"gvm_status"`
	GVMProgress int        `json:"gvm_progress"`
	Target      string     `json:"target"`
	ScanType    string     `json:"scan_type"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

func toScanView(scan *domain.Scan) scanView {
	return scanView{
		ScanID:      scan.ScanID,
		ProbeName:   scan.ProbeName,
		GVMStatus:   scan.GVMStatus,
		GVMProgress: scan.GVMProgress,
		Target:      scan.Target,
		ScanType:    string(scan.ScanType),
		CreatedAt:   scan.CreatedAt,
		StartedAt:   scan.StartedAt,
		CompletedAt: scan.CompletedAt,
		Error:       scan.Error,
	}
}

func (h *Handler) getScan(w http.ResponseWriter, r *http.Request) {
	scan, err := h.hub.Engine.GetScan(r.Context(), r.PathValue("id"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, toScanView(scan))
}

type scanReportResponse struct {
	ScanID    string          `json:"scan_id"`
	ReportXML string          `json:"report_xml"`
	Summary   *domain.Summary `json:"summary"`
}

func (h *Handler) getScanReport(w http.ResponseWriter, r *http.Request) {
	scan, err := h.hub.Engine.GetScan(r.Context(), r.PathValue("id"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if scan.GVMStatus != "Done" {
		middleware.WriteError(w, apperror.New(apperror.CodeConflict, "report not available until scan is done"))
		return
	}
	middleware.WriteJSON(w, http.StatusOK, scanReportResponse{
		ScanID:    scan.ScanID,
		ReportXML: scan.ReportXML,
		Summary:   scan.Summary,
	})
}

type scanListResponse struct {
	Total int        `json:"total"`
	Scans []scanView `json:"scans"`
}

func (h *Handler) listScans(w http.ResponseWriter, r *http.Request) {
	scans, err := h.hub.Engine.ListScans(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	views := make([]scanView, 0, len(scans))
	for _, scan := range scans {
		views = append(views, toScanView(scan))
	}
	middleware.WriteJSON(w, http.StatusOK, scanListResponse{Total: len(views), Scans: views})
}
