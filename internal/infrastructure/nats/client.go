package nats

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	natsio "github.com/nats-io/nats.go"

	"github.com/nerrad567/gray-logic-ingest/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-ingest/internal/lineproto"
	"github.com/nerrad567/gray-logic-ingest/internal/point"
)

const (
	defaultTimeout       = 5
	defaultReconnectWait = 2 * time.Second
	defaultFlushTimeout  = 5 * time.Second
)

// Logger is the logging surface the client needs for connection events.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// conn is the part of *natsio.Conn the client uses.
type conn interface {
	PublishMsg(msg *natsio.Msg) error
	FlushWithContext(ctx context.Context) error
	IsConnected() bool
	Drain() error
}

// Client publishes batches to a NATS server.
//
// Client implements batch.Transport.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	conn    conn
	prefix  string
	encoder *lineproto.Encoder

	logger Logger
	closed bool
	mu     sync.RWMutex
}

// Connect dials the server named by cfg.URL.
//
// The connection reconnects forever after it is first established; only the
// initial dial can fail.
//
// Parameters:
//   - cfg: NATS transport configuration
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: ErrConnectionFailed if the server cannot be reached
func Connect(cfg config.NATSTransportConfig) (*Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	c := &Client{
		prefix:  cfg.SubjectPrefix,
		encoder: lineproto.NewEncoder(0).Nanoseconds(),
	}

	nc, err := natsio.Connect(cfg.URL, c.buildOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	c.conn = nc
	return c, nil
}

// newClient wraps an existing connection.
func newClient(cn conn, prefix string) *Client {
	return &Client{
		conn:    cn,
		prefix:  prefix,
		encoder: lineproto.NewEncoder(0).Nanoseconds(),
	}
}

// buildOptions converts configuration into nats.go connection options.
func (c *Client) buildOptions(cfg config.NATSTransportConfig) []natsio.Option {
	opts := []natsio.Option{
		natsio.Timeout(time.Duration(cfg.Timeout) * time.Second),
		natsio.MaxReconnects(-1),
		natsio.ReconnectWait(defaultReconnectWait),
		natsio.DisconnectErrHandler(func(_ *natsio.Conn, err error) {
			if l := c.getLogger(); l != nil {
				l.Warn("NATS disconnected", "error", err)
			}
		}),
		natsio.ReconnectHandler(func(nc *natsio.Conn) {
			if l := c.getLogger(); l != nil {
				l.Info("NATS reconnected", "url", nc.ConnectedUrlRedacted())
			}
		}),
	}

	if cfg.Name != "" {
		opts = append(opts, natsio.Name(cfg.Name))
	}
	if cfg.Username != "" && cfg.Password != "" {
		opts = append(opts, natsio.UserInfo(cfg.Username, cfg.Password))
	}
	if cfg.Token != "" {
		opts = append(opts, natsio.Token(cfg.Token))
	}

	return opts
}

// SetLogger sets the logger for connection events.
func (c *Client) SetLogger(logger Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger = logger
}

func (c *Client) getLogger() Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logger
}

// Close drains pending messages and closes the connection.
// Safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if err := c.conn.Drain(); err != nil {
		return fmt.Errorf("draining NATS connection: %w", err)
	}
	return nil
}

// HealthCheck verifies the connection with a flush round-trip.
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

	checkCtx, cancel := withDeadline(ctx)
	defer cancel()

	if err := c.conn.FlushWithContext(checkCtx); err != nil {
		return fmt.Errorf("nats health check failed: %w", err)
	}
	return nil
}

// IsConnected reports whether the client is open and currently connected.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed && c.conn.IsConnected()
}

// Send publishes one batch and waits for the server to acknowledge it.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - b: Batch to publish; empty batches are a no-op
//
// Returns:
//   - error: ErrNotConnected, ErrPublishFailed (encoding failures read
//     "unable to parse" so they are not retried), or nil
func (c *Client) Send(ctx context.Context, b *point.Batch) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	if b.Len() == 0 {
		return nil
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	var buf bytes.Buffer
	if err := c.encoder.Encode(&buf, b); err != nil {
		return fmt.Errorf("%w: unable to parse batch: %w", ErrPublishFailed, err)
	}

	if err := c.conn.PublishMsg(message(c.prefix, b.Destination(), buf.Bytes())); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	flushCtx, cancel := withDeadline(ctx)
	defer cancel()

	if err := c.conn.FlushWithContext(flushCtx); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// Subject returns the publish subject for a destination.
//
// Dots and whitespace inside database or retention policy names would split
// or break subject tokens, so they are replaced with underscores.
func Subject(prefix string, dest point.Destination) string {
	prefix = strings.TrimSuffix(prefix, ".")
	subject := prefix + "." + subjectToken(dest.Database)
	if dest.RetentionPolicy != "" {
		subject += "." + subjectToken(dest.RetentionPolicy)
	}
	return subject
}

var tokenReplacer = strings.NewReplacer(".", "_", " ", "_", "\t", "_", "*", "_", ">", "_")

func subjectToken(s string) string {
	return tokenReplacer.Replace(s)
}

// withDeadline returns ctx unchanged if it has a deadline, otherwise a copy
// bounded by defaultFlushTimeout. FlushWithContext rejects contexts without one.
func withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, defaultFlushTimeout)
}

// Message headers describing the payload's destination. Payload timestamps
// are always nanoseconds, so consumers need no precision setting of their own.
const (
	HeaderDatabase        = "Graylogic-Database"
	HeaderRetentionPolicy = "Graylogic-Retention-Policy"
	HeaderPrecision       = "Graylogic-Precision"
	HeaderConsistency     = "Graylogic-Consistency"
)

// message builds the NATS message for one encoded batch.
func message(prefix string, dest point.Destination, payload []byte) *natsio.Msg {
	msg := natsio.NewMsg(Subject(prefix, dest))
	msg.Data = payload
	msg.Header.Set(HeaderDatabase, dest.Database)
	if dest.RetentionPolicy != "" {
		msg.Header.Set(HeaderRetentionPolicy, dest.RetentionPolicy)
	}
	msg.Header.Set(HeaderPrecision, string(point.PrecisionNanosecond))
	msg.Header.Set(HeaderConsistency, string(dest.Consistency.OrDefault()))
	return msg
}
