package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-ingest/internal/api"
	"github.com/nerrad567/gray-logic-ingest/internal/classify"
	"github.com/nerrad567/gray-logic-ingest/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-ingest/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-ingest/internal/point"
)

// writeConfig writes a YAML config into a temp dir and points GRAYLOGIC_CONFIG at it.
func writeConfig(t *testing.T, content string) {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "test-config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("GRAYLOGIC_CONFIG", configPath)
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("GRAYLOGIC_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingDatabasePath verifies run fails validation when the
// dead-letter store is enabled without a path.
func TestRun_MissingDatabasePath(t *testing.T) {
	writeConfig(t, `
database:
  enabled: true
  path: ""
ingest:
  enabled: false
api:
  enabled: false
`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with empty database path")
	}
}

// TestRun_UnreachableTransport verifies run fails when the write endpoint is down.
func TestRun_UnreachableTransport(t *testing.T) {
	writeConfig(t, `
database:
  enabled: false
transport:
  type: http
  http:
    url: "http://127.0.0.1:1"
    timeout: 1
ingest:
  enabled: false
api:
  enabled: false
logging:
  level: error
  format: text
`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail when the transport cannot be reached")
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("GRAYLOGIC_CONFIG", "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/config.yaml"
	t.Setenv("GRAYLOGIC_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

// TestBatchConfig verifies the YAML batch section maps onto the pipeline config.
func TestBatchConfig(t *testing.T) {
	called := false
	hook := func(*point.Batch, classify.Outcome) { called = true }

	got := batchConfig(config.BatchConfig{
		ActionThreshold:     500,
		FlushIntervalMS:     2000,
		JitterWindowMS:      250,
		RetryBufferCapacity: 10,
		RetryIntervalMS:     1500,
		MaxAttempts:         3,
	}, point.ConsistencyQuorum, hook)

	if got.ActionThreshold != 500 {
		t.Errorf("ActionThreshold = %d, want 500", got.ActionThreshold)
	}
	if got.FlushInterval != 2*time.Second {
		t.Errorf("FlushInterval = %v, want 2s", got.FlushInterval)
	}
	if got.JitterWindow != 250*time.Millisecond {
		t.Errorf("JitterWindow = %v, want 250ms", got.JitterWindow)
	}
	if got.RetryBufferCapacity != 10 {
		t.Errorf("RetryBufferCapacity = %d, want 10", got.RetryBufferCapacity)
	}
	if got.RetryInterval != 1500*time.Millisecond {
		t.Errorf("RetryInterval = %v, want 1.5s", got.RetryInterval)
	}
	if got.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", got.MaxAttempts)
	}
	if got.Consistency != point.ConsistencyQuorum {
		t.Errorf("Consistency = %q, want quorum", got.Consistency)
	}
	if err := got.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}

	got.FailureHook(nil, classify.Outcome{})
	if !called {
		t.Error("FailureHook was not passed through")
	}
}

// TestOpenTransport_MQTTWithoutBroker verifies the mqtt transport needs a client.
func TestOpenTransport_MQTTWithoutBroker(t *testing.T) {
	cfg := &config.Config{Transport: config.TransportConfig{Type: config.TransportMQTT}}

	if _, _, err := openTransport(context.Background(), cfg, nil, logging.Discard()); err == nil {
		t.Fatal("openTransport() should fail without an MQTT client")
	}
}

// TestOpenTransport_UnknownType verifies unknown transport types are rejected.
func TestOpenTransport_UnknownType(t *testing.T) {
	cfg := &config.Config{Transport: config.TransportConfig{Type: "carrier-pigeon"}}

	if _, _, err := openTransport(context.Background(), cfg, nil, logging.Discard()); err == nil {
		t.Fatal("openTransport() should fail for an unknown type")
	}
}

// TestLogFailureHook verifies the fallback hook tolerates real batches.
func TestLogFailureHook(t *testing.T) {
	p, err := point.New("energy", map[string]string{"device_id": "meter-01"},
		map[string]any{"power_watts": 230.5}, time.Unix(1700000000, 0))
	if err != nil {
		t.Fatalf("point.New() error = %v", err)
	}
	b := point.NewBatch(point.Destination{Database: "graylogic"}, p)

	hook := logFailureHook(logging.Discard())
	hook(b, classify.Message("database not found: graylogic"))
}

type stubChecker struct{ err error }

func (s stubChecker) HealthCheck(context.Context) error { return s.err }

// TestHealthCheck verifies the first failing component is reported by name.
func TestHealthCheck(t *testing.T) {
	ctx := context.Background()

	if err := healthCheck(ctx, map[string]api.HealthChecker{"db": stubChecker{}}); err != nil {
		t.Errorf("healthCheck() healthy = %v", err)
	}

	boom := errors.New("boom")
	err := healthCheck(ctx, map[string]api.HealthChecker{
		"db":        stubChecker{},
		"transport": stubChecker{err: boom},
	})
	if !errors.Is(err, boom) {
		t.Errorf("healthCheck() = %v, want wrapped boom", err)
	}
}
