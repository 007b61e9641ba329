package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"scanhub/internal/domain"
	"scanhub/internal/gmp"
	"scanhub/pkg/apperror"
	"scanhub/pkg/config"
)

type memStore struct {
	mu    sync.Mutex
	scans map[string]*domain.Scan
}

func newMemStore() *memStore {
	return &memStore{scans: make(map[string]*domain.Scan)}
}

func (m *memStore) InsertScan(ctx context.Context, scan *domain.Scan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *scan
	m.scans[scan.ScanID] = &cp
	return nil
}

func (m *memStore) GetScan(ctx context.Context, scanID string) (*domain.Scan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scans[scanID]
	if !ok {
		return nil, apperror.ErrScanNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) ListScans(ctx context.Context) ([]*domain.Scan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Scan, 0, len(m.scans))
	for _, s := range m.scans {
		cp := *s
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memStore) UpdateScanPortList(ctx context.Context, scanID, id string) error {
	return m.mutate(scanID, func(s *domain.Scan) { s.GVMPortListID = id })
}
func (m *memStore) UpdateScanTarget(ctx context.Context, scanID, id string) error {
	return m.mutate(scanID, func(s *domain.Scan) { s.GVMTargetID = id })
}
func (m *memStore) UpdateScanTask(ctx context.Context, scanID, id string) error {
	return m.mutate(scanID, func(s *domain.Scan) { s.GVMTaskID = id })
}
func (m *memStore) UpdateScanStarted(ctx context.Context, scanID, reportID string, startedAt time.Time) error {
	return m.mutate(scanID, func(s *domain.Scan) { s.GVMReportID = reportID; s.StartedAt = &startedAt })
}
func (m *memStore) UpdateScanPoll(ctx context.Context, scanID, status string, progress int) error {
	return m.mutate(scanID, func(s *domain.Scan) { s.GVMStatus = status; s.GVMProgress = progress })
}
func (m *memStore) UpdateScanCompleted(ctx context.Context, scanID string, completedAt time.Time, errMsg string) error {
	return m.mutate(scanID, func(s *domain.Scan) { s.CompletedAt = &completedAt; s.Error = errMsg })
}
func (m *memStore) UpdateScanReport(ctx context.Context, scanID, xml string, summary *domain.Summary) error {
	return m.mutate(scanID, func(s *domain.Scan) { s.ReportXML = xml; s.Summary = summary })
}
func (m *memStore) UpdateScanError(ctx context.Context, scanID, errMsg string) error {
	return m.mutate(scanID, func(s *domain.Scan) { s.Error = errMsg })
}

func (m *memStore) mutate(scanID string, fn func(*domain.Scan)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scans[scanID]
	if !ok {
		return apperror.ErrScanNotFound
	}
	fn(s)
	return nil
}

type fakeRegistry struct {
	adapter    gmp.Adapter
	missingErr error
}

func (r *fakeRegistry) GetClient(name string) (gmp.Adapter, error) {
	if r.missingErr != nil {
		return nil, r.missingErr
	}
	return r.adapter, nil
}

type fixedSelector struct{ name string }

func (f fixedSelector) Select(ctx context.Context, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	return f.name, nil
}

type fakeAdapter struct {
	session  gmp.Session
	connErr  error
}

func (a *fakeAdapter) Connect(ctx context.Context) (gmp.Session, error) {
	if a.connErr != nil {
		return nil, a.connErr
	}
	return a.session, nil
}

// scriptedSession drives GetTaskStatus through a fixed sequence of statuses,
// repeating the last one once the script is exhausted.
type scriptedSession struct {
	statuses []string
	idx      int

	deletedTask, deletedTarget, deletedPortList bool
	stoppedTask                                 bool
	reportXML                                   string
	reportErr                                   error
	statusErr                                   error
}

func (s *scriptedSession) GetScanners(ctx context.Context) ([]gmp.Scanner, error) { return nil, nil }
func (s *scriptedSession) GetScanConfigs(ctx context.Context) ([]gmp.ScanConfig, error) {
	return nil, nil
}
func (s *scriptedSession) GetPortLists(ctx context.Context) ([]gmp.PortList, error) { return nil, nil }
func (s *scriptedSession) CreatePortList(ctx context.Context, name, tcpPortList string) (string, error) {
	return "pl-1", nil
}
func (s *scriptedSession) DeletePortList(ctx context.Context, id string) error {
	s.deletedPortList = true
	return nil
}
func (s *scriptedSession) CreateTarget(ctx context.Context, opts gmp.CreateTargetOptions) (string, error) {
	return "tgt-1", nil
}
func (s *scriptedSession) DeleteTarget(ctx context.Context, id string) error {
	s.deletedTarget = true
	return nil
}
func (s *scriptedSession) CreateTask(ctx context.Context, opts gmp.CreateTaskOptions) (string, error) {
	return "task-1", nil
}
func (s *scriptedSession) StartTask(ctx context.Context, id string) (string, error) {
	return "report-1", nil
}
func (s *scriptedSession) StopTask(ctx context.Context, id string) error {
	s.stoppedTask = true
	return nil
}
func (s *scriptedSession) DeleteTask(ctx context.Context, id string) error {
	s.deletedTask = true
	return nil
}
func (s *scriptedSession) GetTaskStatus(ctx context.Context, id string) (string, int, error) {
	if s.statusErr != nil {
		return "", 0, s.statusErr
	}
	status := s.statuses[s.idx]
	if s.idx < len(s.statuses)-1 {
		s.idx++
	}
	return status, 100, nil
}
func (s *scriptedSession) GetReportXML(ctx context.Context, reportID string) (string, error) {
	return s.reportXML, s.reportErr
}
func (s *scriptedSession) Close() error { return nil }

func testConfig() config.ScanConfig {
	return config.ScanConfig{
		PollInterval:        time.Millisecond,
		MaxDuration:         time.Second,
		CleanupAfterReport:  true,
		DefaultPortListName: "All IANA assigned TCP",
		DefaultScanConfig:   "Full and fast",
		DefaultScanner:      "OpenVAS Default",
	}
}

func TestCreateScan_ValidatesTarget(t *testing.T) {
	e := New(newMemStore(), &fakeRegistry{}, fixedSelector{name: "probe-a"}, testConfig(), nil)
	_, err := e.CreateScan(context.Background(), CreateScanParams{Target: ""})
	require.Error(t, err)
	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, apperror.CodeValidationError, appErr.Code)
}

func TestCreateScan_DirectedRequiresPorts(t *testing.T) {
	e := New(newMemStore(), &fakeRegistry{}, fixedSelector{name: "probe-a"}, testConfig(), nil)
	_, err := e.CreateScan(context.Background(), CreateScanParams{Target: "10.0.0.1", ScanType: domain.ScanTypeDirected})
	require.Error(t, err)
	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, apperror.CodeValidationError, appErr.Code)
}

func TestCreateScan_FullScanClearsPorts(t *testing.T) {
	e := New(newMemStore(), &fakeRegistry{}, fixedSelector{name: "probe-a"}, testConfig(), nil)
	scan, err := e.CreateScan(context.Background(), CreateScanParams{
		Target: "10.0.0.1", ScanType: domain.ScanTypeFull, Ports: []int{80},
	})
	require.NoError(t, err)
	require.Nil(t, scan.Ports)
	require.Equal(t, "probe-a", scan.ProbeName)
	require.Equal(t, string(gmp.StatusNew), scan.GVMStatus)
}

func TestRunScan_SucceedsToDone(t *testing.T) {
	store := newMemStore()
	session := &scriptedSession{statuses: []string{"Running", "Done"}, reportXML: "<report/>"}
	registry := &fakeRegistry{adapter: &fakeAdapter{session: session}}

	var hookCalled sync.WaitGroup
	hookCalled.Add(1)
	e := New(store, registry, fixedSelector{name: "probe-a"}, testConfig(), func(ctx context.Context, scanID string) {
		hookCalled.Done()
	})

	scan, err := e.CreateScan(context.Background(), CreateScanParams{Target: "10.0.0.1", ScanType: domain.ScanTypeFull})
	require.NoError(t, err)

	e.StartScan(context.Background(), scan.ScanID)
	hookCalled.Wait()

	got, err := e.GetScan(context.Background(), scan.ScanID)
	require.NoError(t, err)
	require.True(t, got.IsTerminal())
	require.Equal(t, "Done", got.GVMStatus)
	require.Empty(t, got.Error)
	require.Equal(t, "<report/>", got.ReportXML)
	require.True(t, session.deletedTask)
	require.True(t, session.deletedTarget)
}

func TestRunScan_ConnectionFailureMarksError(t *testing.T) {
	store := newMemStore()
	registry := &fakeRegistry{adapter: &fakeAdapter{connErr: apperror.New(apperror.CodeGVMConnectionError, "dial failed")}}

	done := make(chan struct{})
	e := New(store, registry, fixedSelector{name: "probe-a"}, testConfig(), func(ctx context.Context, scanID string) {
		close(done)
	})

	scan, err := e.CreateScan(context.Background(), CreateScanParams{Target: "10.0.0.1", ScanType: domain.ScanTypeFull})
	require.NoError(t, err)

	e.StartScan(context.Background(), scan.ScanID)
	<-done

	got, err := e.GetScan(context.Background(), scan.ScanID)
	require.NoError(t, err)
	require.True(t, got.IsTerminal())
	require.Contains(t, got.Error, "connection failure")
}

func TestRunScan_TimeoutStopsTask(t *testing.T) {
	store := newMemStore()
	session := &scriptedSession{statuses: []string{"Running"}}
	registry := &fakeRegistry{adapter: &fakeAdapter{session: session}}

	cfg := testConfig()
	cfg.MaxDuration = 0 // immediately over budget once started

	done := make(chan struct{})
	e := New(store, registry, fixedSelector{name: "probe-a"}, cfg, func(ctx context.Context, scanID string) {
		close(done)
	})

	scan, err := e.CreateScan(context.Background(), CreateScanParams{Target: "10.0.0.1", ScanType: domain.ScanTypeFull})
	require.NoError(t, err)

	e.StartScan(context.Background(), scan.ScanID)
	<-done

	got, err := e.GetScan(context.Background(), scan.ScanID)
	require.NoError(t, err)
	require.True(t, got.IsTerminal())
	require.Contains(t, got.Error, "exceeded maximum duration")
	require.True(t, session.stoppedTask)
}

func TestRunScan_PollErrorMarksErrorInsteadOfCompleting(t *testing.T) {
	store := newMemStore()
	session := &scriptedSession{statuses: []string{"Running"}, statusErr: errors.New("connection reset")}
	registry := &fakeRegistry{adapter: &fakeAdapter{session: session}}

	done := make(chan struct{})
	e := New(store, registry, fixedSelector{name: "probe-a"}, testConfig(), func(ctx context.Context, scanID string) {
		close(done)
	})

	scan, err := e.CreateScan(context.Background(), CreateScanParams{Target: "10.0.0.1", ScanType: domain.ScanTypeFull})
	require.NoError(t, err)

	e.StartScan(context.Background(), scan.ScanID)
	<-done

	got, err := e.GetScan(context.Background(), scan.ScanID)
	require.NoError(t, err)
	require.True(t, got.IsTerminal())
	require.Contains(t, got.Error, "connection reset")
	require.NotEqual(t, string(gmp.StatusDone), got.GVMStatus)
	require.NotEqual(t, string(gmp.StatusStopped), got.GVMStatus)
	require.True(t, session.deletedTask)
	require.True(t, session.deletedTarget)
}
