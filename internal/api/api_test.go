package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"scanhub/internal/domain"
	"scanhub/internal/hub"
	"scanhub/migrations"
	"scanhub/pkg/config"
	"scanhub/pkg/database"
)

type dbAdapter struct{ conn *sql.DB }

func (d *dbAdapter) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.conn.ExecContext(ctx, query, args...)
}
func (d *dbAdapter) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.conn.QueryContext(ctx, query, args...)
}
func (d *dbAdapter) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return d.conn.QueryRowContext(ctx, query, args...)
}
func (d *dbAdapter) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return d.conn.BeginTx(ctx, opts)
}
func (d *dbAdapter) Close() error                          { return d.conn.Close() }
func (d *dbAdapter) PingContext(ctx context.Context) error { return d.conn.PingContext(ctx) }

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	conn, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })

	ctx := context.Background()
	require.NoError(t, database.RunMigrations(ctx, conn, &config.DatabaseConfig{AutoMigrate: true}, migrations.FS, "."))

	cfg := &config.Config{
		Scan:      config.ScanConfig{PollInterval: time.Millisecond, MaxDuration: time.Second},
		Scheduler: config.SchedulerConfig{Enabled: false},
	}
	h := hub.New(&dbAdapter{conn: conn}, cfg)
	return NewHandler(h, cfg, nil)
}

func doJSON(t *testing.T, mux http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reqBody *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(encoded)
	} else {
		reqBody = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHealth_NoProbesIsHealthy(t *testing.T) {
	h := newTestHandler(t)
	rec := doJSON(t, h.Mux(), http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateAndGetTarget(t *testing.T) {
	h := newTestHandler(t)
	mux := h.Mux()

	rec := doJSON(t, mux, http.MethodPost, "/targets", createTargetRequest{Host: "10.0.0.1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created targetView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, "10.0.0.1", created.Host)
	require.Equal(t, "full", created.ScanType)
	require.Equal(t, "medium", created.Criticality)
	require.Equal(t, 24, created.ScanFrequencyHours)
	require.NotEmpty(t, created.ExternalID)

	rec = doJSON(t, mux, http.MethodGet, "/targets/"+created.ExternalID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got targetView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, created.ExternalID, got.ExternalID)
}

func TestCreateTarget_InvalidHostRejected(t *testing.T) {
	h := newTestHandler(t)
	rec := doJSON(t, h.Mux(), http.MethodPost, "/targets", createTargetRequest{Host: ""})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestGetTarget_NotFound(t *testing.T) {
	h := newTestHandler(t)
	rec := doJSON(t, h.Mux(), http.MethodGet, "/targets/missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListTargets_Empty(t *testing.T) {
	h := newTestHandler(t)
	rec := doJSON(t, h.Mux(), http.MethodGet, "/targets", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listResp targetListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	require.Equal(t, 0, listResp.Total)
}

func TestListProbes_EmptyRegistry(t *testing.T) {
	h := newTestHandler(t)
	rec := doJSON(t, h.Mux(), http.MethodGet, "/probes", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listResp probeListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	require.Empty(t, listResp.Probes)
}

func TestSubmitScan_NoProbesConfigured(t *testing.T) {
	h := newTestHandler(t)
	rec := doJSON(t, h.Mux(), http.MethodPost, "/scans", submitScanRequest{Target: "10.0.0.1", ScanType: "full"})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitScan_InvalidScanTypeRejected(t *testing.T) {
	h := newTestHandler(t)
	rec := doJSON(t, h.Mux(), http.MethodPost, "/scans", submitScanRequest{Target: "10.0.0.1", ScanType: "bogus"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestGetScan_NotFound(t *testing.T) {
	h := newTestHandler(t)
	rec := doJSON(t, h.Mux(), http.MethodGet, "/scans/missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListScans_Empty(t *testing.T) {
	h := newTestHandler(t)
	rec := doJSON(t, h.Mux(), http.MethodGet, "/scans", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listResp scanListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	require.Equal(t, 0, listResp.Total)
}

func TestGetScanReport_NotDoneReturnsConflict(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()

	inserted := &domain.Scan{
		ScanID:    "scan-pending",
		ProbeName: "probe-a",
		Target:    "10.0.0.1",
		ScanType:  domain.ScanTypeFull,
		GVMStatus: "Running",
		CreatedAt: time.Now(),
	}
	require.NoError(t, h.hub.Store.InsertScan(ctx, inserted))

	rec := doJSON(t, h.Mux(), http.MethodGet, "/scans/scan-pending/report", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestAuthToken_DisabledReturnsUnimplemented(t *testing.T) {
	h := newTestHandler(t)
	rec := doJSON(t, h.Mux(), http.MethodPost, "/auth/token", tokenRequest{Username: "alice"})
	require.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestOpenAPISpecServed(t *testing.T) {
	h := newTestHandler(t)
	rec := doJSON(t, h.Mux(), http.MethodGet, "/openapi.json", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "json")
}

func TestDocsUIServed(t *testing.T) {
	h := newTestHandler(t)
	rec := doJSON(t, h.Mux(), http.MethodGet, "/docs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
