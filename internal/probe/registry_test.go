package probe

import (
	"context"
	"errors"
	"testing"

	"scanhub/internal/gmp"
	"scanhub/pkg/apperror"
	"scanhub/pkg/config"
)

type fakeSession struct {
	getScannersErr error
}

func (s *fakeSession) GetScanners(ctx context.Context) ([]gmp.Scanner, error) {
	if s.getScannersErr != nil {
		return nil, s.getScannersErr
	}
	return []gmp.Scanner{{ID: "1", Name: "default"}}, nil
}
func (s *fakeSession) GetScanConfigs(ctx context.Context) ([]gmp.ScanConfig, error) { return nil, nil }
func (s *fakeSession) GetPortLists(ctx context.Context) ([]gmp.PortList, error)     { return nil, nil }
func (s *fakeSession) CreatePortList(ctx context.Context, name, tcpPortList string) (string, error) {
	return "", nil
}
func (s *fakeSession) DeletePortList(ctx context.Context, id string) error { return nil }
func (s *fakeSession) CreateTarget(ctx context.Context, opts gmp.CreateTargetOptions) (string, error) {
	return "", nil
}
func (s *fakeSession) DeleteTarget(ctx context.Context, id string) error { return nil }
func (s *fakeSession) CreateTask(ctx context.Context, opts gmp.CreateTaskOptions) (string, error) {
	return "", nil
}
func (s *fakeSession) StartTask(ctx context.Context, id string) (string, error) { return "", nil }
func (s *fakeSession) StopTask(ctx context.Context, id string) error           { return nil }
func (s *fakeSession) DeleteTask(ctx context.Context, id string) error         { return nil }
func (s *fakeSession) GetTaskStatus(ctx context.Context, id string) (string, int, error) {
	return "", 0, nil
}
func (s *fakeSession) GetReportXML(ctx context.Context, reportID string) (string, error) {
	return "", nil
}
func (s *fakeSession) Close() error { return nil }

type fakeAdapter struct {
	session   *fakeSession
	connErr   error
}

func (a *fakeAdapter) Connect(ctx context.Context) (gmp.Session, error) {
	if a.connErr != nil {
		return nil, a.connErr
	}
	return a.session, nil
}

func TestRegistry_NamesPreservesConfigOrder(t *testing.T) {
	r := NewRegistry([]config.ProbeConfig{{Name: "b"}, {Name: "a"}, {Name: "c"}}, nil)
	got := r.Names()
	want := []string{"b", "a", "c"}
	for i, name := range want {
		if got[i] != name {
			t.Fatalf("Names()[%d] = %q, want %q", i, got[i], name)
		}
	}
}

func TestRegistry_GetClient_NotFound(t *testing.T) {
	r := NewRegistry([]config.ProbeConfig{{Name: "a"}}, nil)
	_, err := r.GetClient("missing")
	if !errors.Is(err, apperror.ErrProbeNotFound) {
		t.Fatalf("expected ErrProbeNotFound, got %v", err)
	}
	// the shared singleton must not have been mutated by the lookup
	if err != apperror.ErrProbeNotFound {
		t.Fatalf("expected the exact singleton pointer to be returned unmodified")
	}
}

func TestRegistry_GetClient_Found(t *testing.T) {
	r := NewRegistry([]config.ProbeConfig{{Name: "a"}}, nil)
	client, err := r.GetClient("a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client == nil {
		t.Fatal("expected non-nil client")
	}
}

func TestRegistry_Health_AllHealthy(t *testing.T) {
	r := &Registry{
		names: []string{"a", "b"},
		adapter: map[string]gmp.Adapter{
			"a": &fakeAdapter{session: &fakeSession{}},
			"b": &fakeAdapter{session: &fakeSession{}},
		},
	}
	h := r.Health(context.Background())
	if h.Overall != "healthy" {
		t.Fatalf("Overall = %q, want healthy", h.Overall)
	}
	if len(h.Probes) != 2 {
		t.Fatalf("expected 2 probe statuses, got %d", len(h.Probes))
	}
}

func TestRegistry_Health_Degraded(t *testing.T) {
	r := &Registry{
		names: []string{"a", "b"},
		adapter: map[string]gmp.Adapter{
			"a": &fakeAdapter{session: &fakeSession{}},
			"b": &fakeAdapter{connErr: errors.New("dial failed")},
		},
	}
	h := r.Health(context.Background())
	if h.Overall != "degraded" {
		t.Fatalf("Overall = %q, want degraded", h.Overall)
	}
	if h.Probes["a"] != "connected" {
		t.Fatalf("Probes[a] = %q, want connected", h.Probes["a"])
	}
	if h.Probes["b"] == "connected" {
		t.Fatal("Probes[b] should reflect the connect failure")
	}
}
