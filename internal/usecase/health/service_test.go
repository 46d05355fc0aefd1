package health

import (
	"context"
	"errors"
	"testing"
)

// --- Mocks ---

type mockUpstream struct {
	err error
}

func (m *mockUpstream) HealthCheck(_ context.Context) error { return m.err }

type mockCache struct {
	err error
}

func (m *mockCache) Ping(_ context.Context) error { return m.err }

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(&mockUpstream{}, &mockCache{})
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if r.Checks["dataset"] != CheckOK {
		t.Errorf("expected dataset %q, got %q", CheckOK, r.Checks["dataset"])
	}
	if r.Checks["cache"] != CheckOK {
		t.Errorf("expected cache %q, got %q", CheckOK, r.Checks["cache"])
	}
}

func TestCheck_DatasetError(t *testing.T) {
	svc := New(&mockUpstream{err: errors.New("404")}, &mockCache{})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["dataset"] != CheckError {
		t.Errorf("expected dataset %q, got %q", CheckError, r.Checks["dataset"])
	}
}

func TestCheck_CacheError(t *testing.T) {
	svc := New(&mockUpstream{}, &mockCache{err: errors.New("conn refused")})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["cache"] != CheckError {
		t.Errorf("expected cache %q, got %q", CheckError, r.Checks["cache"])
	}
	if r.Checks["dataset"] != CheckOK {
		t.Errorf("expected dataset %q, got %q", CheckOK, r.Checks["dataset"])
	}
}

func TestCheck_NoCache(t *testing.T) {
	svc := New(&mockUpstream{}, nil)
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if _, ok := r.Checks["cache"]; ok {
		t.Error("cache check should be absent when cache is nil")
	}
}
