package dataset

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tenderfilter/internal/domain"
	"github.com/kailas-cloud/tenderfilter/internal/transport/httpx"
)

func newTestClient(url string) *Client {
	return NewClient(&Config{
		URL:     url,
		Timeout: 2 * time.Second,
		Logger:  zap.NewNop(),
	})
}

func TestFetch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if r.URL.Path != "/tenders.json" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"title": "Road construction", "description": "Build a highway", "ref": "T-1"},
			{"title": "IT services", "description": "Software support", "ref": "T-2"}
		]`))
	}))
	defer server.Close()

	tenders, err := newTestClient(server.URL + "/tenders.json").Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(tenders) != 2 {
		t.Fatalf("expected 2 tenders, got %d", len(tenders))
	}
	if tenders[0].Title() != "Road construction" {
		t.Errorf("Title() = %q", tenders[0].Title())
	}
	if !strings.Contains(string(tenders[1].Raw()), `"ref": "T-2"`) {
		t.Errorf("raw record lost extra fields: %s", tenders[1].Raw())
	}
}

func TestFetch_EmptyArray(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	tenders, err := newTestClient(server.URL).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(tenders) != 0 {
		t.Errorf("expected no tenders, got %d", len(tenders))
	}
}

func TestFetch_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"not found", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}},
		{"not json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>oops</html>"))
		}},
		{"object instead of array", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"tenders": []}`))
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(tc.handler)
			defer server.Close()

			_, err := newTestClient(server.URL).Fetch(context.Background())
			if !errors.Is(err, domain.ErrUpstreamFailure) {
				t.Fatalf("expected ErrUpstreamFailure, got %v", err)
			}
		})
	}
}

func TestFetch_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Fetch(context.Background())
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d", statusErr.StatusCode)
	}
}

func TestFetch_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	c := NewClient(&Config{URL: server.URL, Timeout: 50 * time.Millisecond})
	_, err := c.Fetch(context.Background())
	if !errors.Is(err, domain.ErrUpstreamFailure) {
		t.Fatalf("expected ErrUpstreamFailure, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded in chain, got %v", err)
	}
}

func TestFetch_BodyTooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"title":"` + strings.Repeat("x", 200) + `"}]`))
	}))
	defer server.Close()

	c := NewClient(&Config{URL: server.URL, MaxBodyBytes: 64})
	_, err := c.Fetch(context.Background())
	if !errors.Is(err, errBodyTooLarge) {
		t.Fatalf("expected errBodyTooLarge, got %v", err)
	}
}

func TestFetch_BreakerOpens(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewClient(&Config{
		URL:     server.URL,
		Breaker: httpx.NewCircuitBreaker("dataset", time.Minute, 2),
	})

	for range 2 {
		_, _ = c.Fetch(context.Background())
	}
	_, err := c.Fetch(context.Background())
	if !errors.Is(err, httpx.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if !errors.Is(err, domain.ErrUpstreamFailure) {
		t.Errorf("open breaker must still map to ErrUpstreamFailure, got %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("expected 2 upstream hits, got %d", hits.Load())
	}
}

func TestHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("unexpected method: %s", r.Method)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if err := newTestClient(server.URL).HealthCheck(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHealthCheck_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	if err := newTestClient(server.URL).HealthCheck(context.Background()); err == nil {
		t.Fatal("expected error for 404")
	}
}

func TestFetch_CanceledRequestsDoNotOpenBreaker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	c := NewClient(&Config{
		URL:     server.URL,
		Breaker: httpx.NewCircuitBreaker("dataset", 30*time.Second, 5),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := range 5 {
		_, err := c.Fetch(ctx)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("call %d: expected context.Canceled, got %v", i, err)
		}
	}

	tenders, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatalf("breaker opened on canceled requests: %v", err)
	}
	if len(tenders) != 0 {
		t.Errorf("expected empty list, got %d", len(tenders))
	}
}

func TestErrorType(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{context.Canceled, "canceled"},
		{context.DeadlineExceeded, "timeout"},
		{&StatusError{StatusCode: 502}, "status"},
		{errBodyTooLarge, "body_too_large"},
		{errDecode, "decode"},
		{errors.New("connection reset"), "transport"},
	}
	for _, tt := range tests {
		if got := errorType(tt.err); got != tt.want {
			t.Errorf("errorType(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
