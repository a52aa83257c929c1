package tsdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-ingest/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-ingest/internal/lineproto"
	"github.com/nerrad567/gray-logic-ingest/internal/point"
)

// Default timeouts for TSDB operations.
const (
	defaultConnectTimeout = 10 * time.Second
	defaultWriteTimeout   = 5 * time.Second

	// maxErrorBody bounds how much of an error response is read.
	maxErrorBody = 64 << 10
)

// Client writes batches to an InfluxDB 1.x compatible /write endpoint
// (InfluxDB 1.x, VictoriaMetrics) as line protocol over HTTP.
//
// Client implements batch.Transport. Each Send is a single POST; batching,
// retry and failure routing belong to the write pipeline.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	url        string
	username   string
	password   string
	httpClient *http.Client
	encoder    *lineproto.Encoder

	connected bool
	mu        sync.RWMutex
}

// Connect creates a client and verifies the server answers GET /ping.
//
// Parameters:
//   - ctx: Context for cancellation (used for the ping)
//   - cfg: HTTP transport configuration
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: ErrConnectionFailed if the server cannot be reached
func Connect(ctx context.Context, cfg config.HTTPTransportConfig) (*Client, error) {
	c := New(cfg)

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	if err := c.HealthCheck(pingCtx); err != nil {
		return nil, fmt.Errorf("%w: health check failed: %w", ErrConnectionFailed, err)
	}

	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return c, nil
}

// New creates a client without contacting the server.
func New(cfg config.HTTPTransportConfig) *Client {
	timeout := defaultWriteTimeout
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}

	return &Client{
		url:        strings.TrimRight(cfg.URL, "/"),
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: &http.Client{Timeout: timeout},
		encoder:    lineproto.NewEncoder(cfg.MaxLineBytes),
		connected:  true,
	}
}

// Close marks the client disconnected and releases idle connections.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	c.httpClient.CloseIdleConnections()
	return nil
}

// HealthCheck verifies the server is alive via GET /ping.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/ping", nil)
	if err != nil {
		return fmt.Errorf("tsdb health check: %w", err)
	}
	c.authenticate(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tsdb health check: %w", err)
	}
	defer resp.Body.Close()
	// Drain body to allow connection reuse
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tsdb health check: status %d", resp.StatusCode)
	}
	return nil
}

// IsConnected returns the current connection state.
//
// Note: This reflects the last known state. For reliability,
// use HealthCheck which performs an active ping.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Send writes one batch with a single POST /write.
//
// The destination maps to the db, rp, precision and consistency query
// parameters. A non-2xx response becomes an error carrying the server's
// message, so the pipeline can classify it.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - b: Batch to write; empty batches are a no-op
//
// Returns:
//   - error: ErrNotConnected, ErrWriteFailed wrapping the server message, or nil
func (c *Client) Send(ctx context.Context, b *point.Batch) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	if b.Len() == 0 {
		return nil
	}

	var body bytes.Buffer
	if err := c.encoder.Encode(&body, b); err != nil {
		// The server would reject it the same way; keep the wording classifiable.
		return fmt.Errorf("%w: unable to parse batch: %w", ErrWriteFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.writeURL(b.Destination()), &body)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	c.authenticate(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return fmt.Errorf("%w: HTTP %d: %s", ErrWriteFailed, resp.StatusCode, errorMessage(raw))
}

// writeURL builds the /write URL for a destination.
func (c *Client) writeURL(dest point.Destination) string {
	q := url.Values{}
	q.Set("db", dest.Database)
	if dest.RetentionPolicy != "" {
		q.Set("rp", dest.RetentionPolicy)
	}
	q.Set("precision", string(dest.Precision.OrDefault()))
	q.Set("consistency", string(dest.Consistency.OrDefault()))
	return c.url + "/write?" + q.Encode()
}

func (c *Client) authenticate(req *http.Request) {
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
}

// errorMessage extracts {"error": "..."} from an InfluxDB error body,
// falling back to the raw text.
func errorMessage(raw []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(raw))
}
