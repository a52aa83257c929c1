package influxdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-ingest/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-ingest/internal/point"
)

// Default timeouts for InfluxDB operations.
const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second
	defaultHTTPTimeout    = 5
)

// Client writes batches through the official influxdb-client-go v2 library.
//
// Client implements batch.Transport using the blocking write API, so every
// Send is one HTTP request and its error is returned to the pipeline. The
// library's own batching and retry are not used.
//
// Destinations map onto the v2 write API as bucket "database/retention_policy"
// (or just "database"), which InfluxDB 2.x resolves through its 1.x DBRP
// mappings and InfluxDB 1.8+ accepts natively. Consistency has no v2
// equivalent and is not sent.
//
// Precision is a client option in influxdb-client-go, so one underlying
// client is kept per precision.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	cfg config.InfluxDBTransportConfig

	// clients holds one library client per wire precision.
	clients map[time.Duration]influxdb2.Client

	// connected tracks current connection state.
	connected bool
	mu        sync.RWMutex
}

// Connect creates the client and verifies the server with a ping.
//
// Parameters:
//   - cfg: InfluxDB transport configuration
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: ErrConnectionFailed if the server is unreachable or unhealthy
func Connect(cfg config.InfluxDBTransportConfig) (*Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}

	c := &Client{
		cfg:       cfg,
		clients:   make(map[time.Duration]influxdb2.Client),
		connected: true,
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()

	healthy, err := c.clientFor(time.Nanosecond).Ping(ctx)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		c.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	return c, nil
}

// clientFor returns the library client for a wire precision, creating it
// on first use.
func (c *Client) clientFor(precision time.Duration) influxdb2.Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cl, ok := c.clients[precision]; ok {
		return cl
	}

	// #nosec G115 -- timeout validated positive in Connect
	cl := influxdb2.NewClientWithOptions(
		c.cfg.URL,
		c.cfg.Token,
		influxdb2.DefaultOptions().
			SetPrecision(precision).
			SetHTTPRequestTimeout(uint(c.cfg.Timeout)).
			SetUseGZip(c.cfg.GZip),
	)
	c.clients[precision] = cl
	return cl
}

// Close shuts down every underlying client.
//
// Returns:
//   - error: nil (InfluxDB client Close doesn't return errors)
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.connected = false
	for p, cl := range c.clients {
		cl.Close()
		delete(c.clients, p)
	}
	return nil
}

// HealthCheck verifies the InfluxDB connection is alive and functioning.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	healthy, err := c.clientFor(time.Nanosecond).Ping(checkCtx)
	if err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("influxdb health check failed: server not healthy")
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

// Send writes one batch with a single blocking write.
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

	dest := b.Destination()
	wire, truncate := wirePrecision(dest.Precision)

	pts := make([]*write.Point, 0, b.Len())
	for _, p := range b.Points() {
		ts := p.Time()
		if truncate > 0 && !ts.IsZero() {
			ts = ts.Truncate(truncate)
		}
		pts = append(pts, write.NewPoint(p.Name(), p.TagMap(), p.Fields(), ts))
	}

	writeAPI := c.clientFor(wire).WriteAPIBlocking(c.cfg.Org, Bucket(dest))
	if err := writeAPI.WritePoint(ctx, pts...); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}

// Bucket returns the v2 bucket name for a destination.
func Bucket(dest point.Destination) string {
	if dest.RetentionPolicy == "" {
		return dest.Database
	}
	return dest.Database + "/" + dest.RetentionPolicy
}

// wirePrecision maps a point precision onto the precisions the v2 write API
// accepts (ns, us, ms, s). Minute and hour timestamps are sent in seconds,
// truncated to their unit.
func wirePrecision(p point.Precision) (wire, truncate time.Duration) {
	switch p.OrDefault() {
	case point.PrecisionMinute:
		return time.Second, time.Minute
	case point.PrecisionHour:
		return time.Second, time.Hour
	default:
		return p.Duration(), 0
	}
}
