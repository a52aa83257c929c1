package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nerrad567/gray-logic-ingest/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-ingest/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-ingest/internal/lineproto"
	"github.com/nerrad567/gray-logic-ingest/internal/point"
)

// writeTimeout bounds a synchronous write when batching is disabled.
const writeTimeout = 10 * time.Second

var (
	// messagesReceived tracks ingest messages by result
	messagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graylogic_ingest_mqtt_messages_total",
			Help: "Total number of MQTT telemetry messages received",
		},
		[]string{"result"},
	)
)

// BatchWriter is the part of batch.Writer the handler needs.
type BatchWriter interface {
	WriteBatch(ctx context.Context, b *point.Batch) error
}

// Logger is satisfied by *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Handler decodes MQTT telemetry and submits it to a writer.
//
// Thread Safety: Handle is safe for concurrent use; paho calls it from its
// own goroutines.
type Handler struct {
	writer      BatchWriter
	contentType string
	precision   point.Precision
	consistency point.Consistency
	logger      Logger
	now         func() time.Time
}

// NewHandler creates a Handler.
//
// Parameters:
//   - writer: Destination for decoded batches (normally *batch.Writer)
//   - contentType: config.ContentTypeJSON or config.ContentTypeLineProtocol
//   - precision: Timestamp precision of incoming data and of the written batches
//   - consistency: Write consistency for ingested batches
//   - logger: Receives per-message diagnostics
//
// Returns:
//   - *Handler: Ready to pass to mqtt.Client.Subscribe
//   - error: ErrUnsupportedContentType for an unknown content type
func NewHandler(writer BatchWriter, contentType string, precision point.Precision, consistency point.Consistency, logger Logger) (*Handler, error) {
	switch contentType {
	case config.ContentTypeJSON, config.ContentTypeLineProtocol:
	case "":
		contentType = config.ContentTypeJSON
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedContentType, contentType)
	}

	return &Handler{
		writer:      writer,
		contentType: contentType,
		precision:   precision.OrDefault(),
		consistency: consistency,
		logger:      logger,
		now:         time.Now,
	}, nil
}

// Handle is an mqtt.MessageHandler. Errors are returned for the MQTT client
// to log; the message is not redelivered.
func (h *Handler) Handle(topic string, payload []byte) error {
	database, retentionPolicy, err := mqtt.Topics{}.ParseIngest(topic)
	if err != nil {
		messagesReceived.WithLabelValues("rejected").Inc()
		return err
	}

	pts, err := h.decode(payload)
	if err != nil {
		messagesReceived.WithLabelValues("rejected").Inc()
		return fmt.Errorf("topic %s: %w", topic, err)
	}

	dest := point.Destination{
		Database:        database,
		RetentionPolicy: retentionPolicy,
		Consistency:     h.consistency,
		Precision:       h.precision,
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := h.writer.WriteBatch(ctx, point.NewBatch(dest, pts...)); err != nil {
		messagesReceived.WithLabelValues("write_failed").Inc()
		h.logger.Warn("ingest write failed",
			"destination", dest.String(),
			"points", len(pts),
			"error", err,
		)
		return err
	}

	messagesReceived.WithLabelValues("accepted").Inc()
	h.logger.Debug("ingested telemetry",
		"destination", dest.String(),
		"points", len(pts),
	)
	return nil
}

func (h *Handler) decode(payload []byte) ([]*point.Point, error) {
	if h.contentType == config.ContentTypeLineProtocol {
		pts, err := lineproto.Parse(payload, h.precision)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		if len(pts) == 0 {
			return nil, fmt.Errorf("%w: no points", ErrInvalidPayload)
		}
		return pts, nil
	}
	return decodeJSON(payload, h.precision, h.now())
}
