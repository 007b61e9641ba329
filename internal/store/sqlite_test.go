package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"scanhub/internal/domain"
	"scanhub/migrations"
	"scanhub/pkg/apperror"
	"scanhub/pkg/config"
	"scanhub/pkg/database"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	conn, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })

	ctx := context.Background()
	err = database.RunMigrations(ctx, conn, &config.DatabaseConfig{AutoMigrate: true}, migrations.FS, ".")
	require.NoError(t, err)

	return New(&sqlDBAdapter{conn: conn})
}

// sqlDBAdapter reduces *sql.DB to the database.DB interface used by the store.
type sqlDBAdapter struct {
	conn *sql.DB
}

func (d *sqlDBAdapter) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.conn.ExecContext(ctx, query, args...)
}
func (d *sqlDBAdapter) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.conn.QueryContext(ctx, query, args...)
}
func (d *sqlDBAdapter) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return d.conn.QueryRowContext(ctx, query, args...)
}
func (d *sqlDBAdapter) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return d.conn.BeginTx(ctx, opts)
}
func (d *sqlDBAdapter) Close() error                          { return d.conn.Close() }
func (d *sqlDBAdapter) PingContext(ctx context.Context) error { return d.conn.PingContext(ctx) }

func sampleScan(id, probe string) *domain.Scan {
	return &domain.Scan{
		ScanID:    id,
		ProbeName: probe,
		Name:      "test scan",
		Target:    "10.0.0.1",
		ScanType:  domain.ScanTypeFull,
		Ports:     []int{22, 80, 443},
		GVMStatus: "Requested",
		CreatedAt: time.Now().UTC(),
	}
}

func TestInsertAndGetScan(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	scan := sampleScan("scan-1", "probe-a")
	require.NoError(t, s.InsertScan(ctx, scan))

	got, err := s.GetScan(ctx, "scan-1")
	require.NoError(t, err)
	require.Equal(t, "probe-a", got.ProbeName)
	require.Equal(t, "10.0.0.1", got.Target)
	require.Equal(t, []int{22, 80, 443}, got.Ports)
	require.False(t, got.IsTerminal())
}

func TestGetScan_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetScan(context.Background(), "missing")
	require.ErrorIs(t, err, apperror.ErrScanNotFound)
}

func TestListScans_OrderedByCreatedAtDesc(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	older := sampleScan("scan-old", "probe-a")
	older.CreatedAt = time.Now().Add(-time.Hour).UTC()
	newer := sampleScan("scan-new", "probe-a")
	newer.CreatedAt = time.Now().UTC()

	require.NoError(t, s.InsertScan(ctx, older))
	require.NoError(t, s.InsertScan(ctx, newer))

	scans, err := s.ListScans(ctx)
	require.NoError(t, err)
	require.Len(t, scans, 2)
	require.Equal(t, "scan-new", scans[0].ScanID)
	require.Equal(t, "scan-old", scans[1].ScanID)
}

func TestCountActivePerProbe_ExcludesCompleted(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	active := sampleScan("scan-active", "probe-a")
	require.NoError(t, s.InsertScan(ctx, active))

	completed := sampleScan("scan-done", "probe-a")
	require.NoError(t, s.InsertScan(ctx, completed))
	require.NoError(t, s.UpdateScanCompleted(ctx, "scan-done", time.Now().UTC(), ""))

	counts, err := s.CountActivePerProbe(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, counts["probe-a"])
}

func TestScanUpdateSequence(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	scan := sampleScan("scan-seq", "probe-a")
	require.NoError(t, s.InsertScan(ctx, scan))

	require.NoError(t, s.UpdateScanPortList(ctx, "scan-seq", "pl-1"))
	require.NoError(t, s.UpdateScanTarget(ctx, "scan-seq", "tgt-1"))
	require.NoError(t, s.UpdateScanTask(ctx, "scan-seq", "task-1"))
	require.NoError(t, s.UpdateScanStarted(ctx, "scan-seq", "report-1", time.Now().UTC()))
	require.NoError(t, s.UpdateScanPoll(ctx, "scan-seq", "Running", 50))

	summary := &domain.Summary{HostsScanned: 1, VulnsHigh: 2, VulnsMedium: 3, VulnsLow: 4, VulnsLog: 5}
	require.NoError(t, s.UpdateScanReport(ctx, "scan-seq", "<report/>", summary))
	require.NoError(t, s.UpdateScanCompleted(ctx, "scan-seq", time.Now().UTC(), ""))

	got, err := s.GetScan(ctx, "scan-seq")
	require.NoError(t, err)
	require.Equal(t, "pl-1", got.GVMPortListID)
	require.Equal(t, "tgt-1", got.GVMTargetID)
	require.Equal(t, "task-1", got.GVMTaskID)
	require.Equal(t, "report-1", got.GVMReportID)
	require.NotNil(t, got.StartedAt)
	require.Equal(t, "<report/>", got.ReportXML)
	require.NotNil(t, got.Summary)
	require.Equal(t, 2, got.Summary.VulnsHigh)
	require.True(t, got.IsTerminal())
}

func sampleTarget(id string) *domain.Target {
	now := time.Now().UTC()
	return &domain.Target{
		ExternalID:         id,
		Host:               "10.0.0.2",
		Ports:              []int{80},
		ScanType:           domain.ScanTypeFull,
		Criticality:        domain.CriticalityHigh,
		ScanFrequencyHours: 24,
		Enabled:            true,
		Tags:               map[string]string{"env": "prod"},
		SyncedAt:           now,
		CreatedAt:          now,
	}
}

func TestUpsertTarget_InsertThenUpdate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	target := sampleTarget("ext-1")
	require.NoError(t, s.UpsertTarget(ctx, target))

	target.Host = "10.0.0.99"
	require.NoError(t, s.UpsertTarget(ctx, target))

	got, err := s.GetTarget(ctx, "ext-1")
	require.NoError(t, err)
	require.Equal(t, "10.0.0.99", got.Host)
}

func TestInsertManualTarget_RejectsDuplicate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	target := sampleTarget("ext-dup")
	require.NoError(t, s.InsertManualTarget(ctx, target))

	err := s.InsertManualTarget(ctx, sampleTarget("ext-dup"))
	require.Error(t, err)
	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, apperror.CodeAlreadyExists, appErr.Code)
}

func TestDeactivateMissing(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertTarget(ctx, sampleTarget("keep")))
	require.NoError(t, s.UpsertTarget(ctx, sampleTarget("drop")))

	require.NoError(t, s.DeactivateMissing(ctx, []string{"keep"}))

	kept, err := s.GetTarget(ctx, "keep")
	require.NoError(t, err)
	require.True(t, kept.Enabled)

	dropped, err := s.GetTarget(ctx, "drop")
	require.NoError(t, err)
	require.False(t, dropped.Enabled)
}

func TestGetDueTargets_SkipsTargetsWithActiveScan(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	due := sampleTarget("due-1")
	require.NoError(t, s.UpsertTarget(ctx, due))
	require.NoError(t, s.UpdateTargetSchedule(ctx, "due-1", "", 0, time.Now().Add(-time.Hour).UTC()))

	busy := sampleTarget("due-2")
	require.NoError(t, s.UpsertTarget(ctx, busy))
	require.NoError(t, s.UpdateTargetSchedule(ctx, "due-2", "", 0, time.Now().Add(-time.Hour).UTC()))

	scan := sampleScan("scan-for-due-2", "probe-a")
	scan.ExternalTargetID = "due-2"
	require.NoError(t, s.InsertScan(ctx, scan))

	due1, err := s.GetTarget(ctx, "due-1")
	require.NoError(t, err)
	require.True(t, due1.DueAt(time.Now().UTC()))

	targets, err := s.GetDueTargets(ctx, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, targets, 1)
	require.Equal(t, "due-1", targets[0].ExternalID)
}

func TestUpsertTarget_SetsInitialNextScanAt(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertTarget(ctx, sampleTarget("fresh-sync")))

	targets, err := s.GetDueTargets(ctx, time.Now().Add(time.Minute).UTC())
	require.NoError(t, err)
	require.Len(t, targets, 1)
	require.Equal(t, "fresh-sync", targets[0].ExternalID)
}

func TestInsertManualTarget_SetsInitialNextScanAt(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertManualTarget(ctx, sampleTarget("fresh-manual")))

	targets, err := s.GetDueTargets(ctx, time.Now().Add(time.Minute).UTC())
	require.NoError(t, err)
	require.Len(t, targets, 1)
	require.Equal(t, "fresh-manual", targets[0].ExternalID)
}

func TestGetTarget_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetTarget(context.Background(), "missing")
	require.ErrorIs(t, err, apperror.ErrTargetNotFound)
}
