package tsdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-ingest/internal/classify"
	"github.com/nerrad567/gray-logic-ingest/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-ingest/internal/infrastructure/tsdb"
	"github.com/nerrad567/gray-logic-ingest/internal/point"
)

// fakeServer is a minimal InfluxDB 1.x /write endpoint.
type fakeServer struct {
	mu       sync.Mutex
	requests []*http.Request
	bodies   []string

	status int
	body   string
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/ping":
		w.WriteHeader(http.StatusNoContent)
		return
	case "/write":
	default:
		http.NotFound(w, r)
		return
	}

	data, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.requests = append(f.requests, r)
	f.bodies = append(f.bodies, string(data))
	status, body := f.status, f.body
	f.mu.Unlock()

	if status == 0 {
		status = http.StatusNoContent
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func newFake(t *testing.T, status int, body string) (*fakeServer, *tsdb.Client) {
	t.Helper()
	fake := &fakeServer{status: status, body: body}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := tsdb.Connect(context.Background(), config.HTTPTransportConfig{
		URL:      srv.URL + "/",
		Username: "writer",
		Password: "secret",
		Timeout:  2,
	})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return fake, client
}

func testBatch(t *testing.T, dest point.Destination) *point.Batch {
	t.Helper()
	p, err := point.New("energy",
		map[string]string{"device_id": "meter-01"},
		map[string]any{"power_watts": 230.5},
		time.Unix(1700000000, 0),
	)
	if err != nil {
		t.Fatalf("point.New() error = %v", err)
	}
	return point.NewBatch(dest, p)
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect(t *testing.T) {
	_, client := newFake(t, 0, "")

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
}

func TestConnect_InvalidURL(t *testing.T) {
	_, err := tsdb.Connect(context.Background(), config.HTTPTransportConfig{URL: "http://127.0.0.1:59999"})
	if !errors.Is(err, tsdb.ErrConnectionFailed) {
		t.Fatalf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestHealthCheck_Cancelled(t *testing.T) {
	_, client := newFake(t, 0, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := client.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() should return error for cancelled context")
	}
}

func TestClose(t *testing.T) {
	_, client := newFake(t, 0, "")

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}

	err := client.Send(context.Background(), testBatch(t, point.Destination{Database: "db"}))
	if !errors.Is(err, tsdb.ErrNotConnected) {
		t.Errorf("Send() after Close error = %v, want ErrNotConnected", err)
	}
}

// =============================================================================
// Send Tests
// =============================================================================

func TestSend_Request(t *testing.T) {
	fake, client := newFake(t, 0, "")

	dest := point.Destination{
		Database:        "graylogic",
		RetentionPolicy: "one_week",
		Consistency:     point.ConsistencyQuorum,
		Precision:       point.PrecisionSecond,
	}
	if err := client.Send(context.Background(), testBatch(t, dest)); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()

	if len(fake.requests) != 1 {
		t.Fatalf("requests = %d, want 1", len(fake.requests))
	}
	req := fake.requests[0]

	q := req.URL.Query()
	want := map[string]string{"db": "graylogic", "rp": "one_week", "precision": "s", "consistency": "quorum"}
	for k, v := range want {
		if got := q.Get(k); got != v {
			t.Errorf("query %s = %q, want %q", k, got, v)
		}
	}
	if user, pass, ok := req.BasicAuth(); !ok || user != "writer" || pass != "secret" {
		t.Errorf("BasicAuth() = %q, %q, %v", user, pass, ok)
	}
	if wantBody := "energy,device_id=meter-01 power_watts=230.5 1700000000\n"; fake.bodies[0] != wantBody {
		t.Errorf("body = %q, want %q", fake.bodies[0], wantBody)
	}
}

func TestSend_CoarsePrecisionTimestamps(t *testing.T) {
	tests := []struct {
		precision point.Precision
		wantBody  string
	}{
		{point.PrecisionMinute, "energy,device_id=meter-01 power_watts=230.5 28333333\n"},
		{point.PrecisionHour, "energy,device_id=meter-01 power_watts=230.5 472222\n"},
	}

	for _, tt := range tests {
		t.Run(string(tt.precision), func(t *testing.T) {
			fake, client := newFake(t, 0, "")

			dest := point.Destination{Database: "graylogic", Precision: tt.precision}
			if err := client.Send(context.Background(), testBatch(t, dest)); err != nil {
				t.Fatalf("Send() error = %v", err)
			}

			fake.mu.Lock()
			defer fake.mu.Unlock()
			if got := fake.requests[0].URL.Query().Get("precision"); got != string(tt.precision) {
				t.Errorf("precision = %q, want %q", got, tt.precision)
			}
			if fake.bodies[0] != tt.wantBody {
				t.Errorf("body = %q, want %q", fake.bodies[0], tt.wantBody)
			}
		})
	}
}

func TestSend_OmitsEmptyRetentionPolicy(t *testing.T) {
	fake, client := newFake(t, 0, "")

	if err := client.Send(context.Background(), testBatch(t, point.Destination{Database: "db"})); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	q := fake.requests[0].URL.Query()
	if q.Has("rp") {
		t.Error("rp should be omitted when empty")
	}
	if q.Get("precision") != "ns" || q.Get("consistency") != "one" {
		t.Errorf("defaults = precision %q consistency %q", q.Get("precision"), q.Get("consistency"))
	}
}

func TestSend_EmptyBatch(t *testing.T) {
	fake, client := newFake(t, 0, "")

	if err := client.Send(context.Background(), point.NewBatch(point.Destination{Database: "db"})); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.requests) != 0 {
		t.Errorf("requests = %d, want 0", len(fake.requests))
	}
}

func TestSend_ServerErrorsAreClassifiable(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   classify.Kind
	}{
		{"database not found", http.StatusNotFound, `{"error":"database not found: \"graylogic\""}`, classify.DatabaseNotFound},
		{"field type conflict", http.StatusBadRequest, `{"error":"partial write: field type conflict: input field \"v\" on measurement \"cpu\" is type integer"}`, classify.FieldTypeConflict},
		{"cache full", http.StatusInternalServerError, `{"error":"engine: cache-max-memory-size exceeded: (1073741824/1073741824)"}`, classify.CacheMaxMemoryExceeded},
		{"auth", http.StatusUnauthorized, `{"error":"authorization failed"}`, classify.AuthorizationFailed},
		{"plain text", http.StatusServiceUnavailable, "upstream unavailable\n", classify.Generic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, client := newFake(t, tt.status, tt.body)

			err := client.Send(context.Background(), testBatch(t, point.Destination{Database: "graylogic"}))
			if !errors.Is(err, tsdb.ErrWriteFailed) {
				t.Fatalf("Send() error = %v, want ErrWriteFailed", err)
			}
			if got := classify.Error(err).Kind; got != tt.kind {
				t.Errorf("classify.Error(%q).Kind = %v, want %v", err, got, tt.kind)
			}
			if strings.Contains(err.Error(), `{"error"`) {
				t.Errorf("error text should carry the extracted message, got %q", err)
			}
		})
	}
}

// =============================================================================
// Integration Tests
// =============================================================================

func TestSend_Integration(t *testing.T) {
	if os.Getenv("RUN_INTEGRATION") == "" {
		t.Skip("RUN_INTEGRATION not set, skipping integration test")
	}
	url := os.Getenv("TSDB_URL")
	if url == "" {
		url = "http://127.0.0.1:8428"
	}

	client, err := tsdb.Connect(context.Background(), config.HTTPTransportConfig{URL: url})
	if err != nil {
		t.Skipf("TSDB not available: %v", err)
	}
	defer client.Close()

	if err := client.Send(context.Background(), testBatch(t, point.Destination{Database: "graylogic_test"})); err != nil {
		t.Errorf("Send() error = %v", err)
	}
}
