// Package lineproto converts between point batches and InfluxDB line protocol
// using github.com/influxdata/line-protocol.
package lineproto

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	protocol "github.com/influxdata/line-protocol"

	"github.com/nerrad567/gray-logic-ingest/internal/point"
)

// ErrEncode indicates a point could not be rendered as line protocol.
var ErrEncode = errors.New("lineproto: encode failed")

// ErrDecode indicates a payload was not valid line protocol.
var ErrDecode = errors.New("lineproto: decode failed")

// metric adapts a point to protocol.Metric. The timestamp is truncated to
// unit; untimed metrics report no timestamp at all.
type metric struct {
	p       *point.Point
	unit    time.Duration
	untimed bool
}

func (m metric) Time() time.Time {
	if m.untimed {
		return time.Time{}
	}
	return m.p.Time().Truncate(m.unit)
}

func (m metric) Name() string    { return m.p.Name() }

func (m metric) TagList() []*protocol.Tag {
	tags := m.p.Tags()
	out := make([]*protocol.Tag, 0, len(tags))
	for _, t := range tags {
		out = append(out, &protocol.Tag{Key: t.Key, Value: t.Value})
	}
	return out
}

func (m metric) FieldList() []*protocol.Field {
	fields := m.p.Fields()
	out := make([]*protocol.Field, 0, len(fields))
	for _, k := range m.p.FieldKeys() {
		out = append(out, &protocol.Field{Key: k, Value: fields[k]})
	}
	return out
}

// Encoder writes batches as newline-terminated line protocol.
type Encoder struct {
	maxLineBytes int
	nanos        bool
}

// NewEncoder returns an Encoder. maxLineBytes > 0 caps each line; longer
// points fail to encode.
func NewEncoder(maxLineBytes int) *Encoder {
	return &Encoder{maxLineBytes: maxLineBytes}
}

// Nanoseconds makes e write every timestamp in nanoseconds, still truncated
// to the batch precision. For transports that cannot tell the consumer which
// precision a payload uses.
func (e *Encoder) Nanoseconds() *Encoder {
	e.nanos = true
	return e
}

// Encode writes every point of b to w with timestamps in the batch precision
// (or nanoseconds, see Nanoseconds).
//
// Returns:
//   - error: ErrEncode wrapping the first point that could not be written
func (e *Encoder) Encode(w io.Writer, b *point.Batch) error {
	unit := b.Destination().Precision.OrDefault().Duration()
	if e.nanos || unit < time.Minute {
		return e.encode(w, b, unit)
	}
	return e.encodeCoarse(w, b, unit)
}

func (e *Encoder) newProtocolEncoder(w io.Writer) *protocol.Encoder {
	enc := protocol.NewEncoder(w)
	enc.SetFieldSortOrder(protocol.SortFields)
	enc.SetFieldTypeSupport(protocol.UintSupport)
	enc.FailOnFieldErr(true)
	if e.maxLineBytes > 0 {
		enc.SetMaxLineBytes(e.maxLineBytes)
	}
	return enc
}

// encode covers the units the protocol encoder knows: ns, u, ms and s.
func (e *Encoder) encode(w io.Writer, b *point.Batch, unit time.Duration) error {
	enc := e.newProtocolEncoder(w)
	if !e.nanos {
		enc.SetPrecision(unit)
	}
	for i, p := range b.Points() {
		if _, err := enc.Encode(metric{p: p, unit: unit}); err != nil {
			return fmt.Errorf("%w: point %d (%s): %w", ErrEncode, i, p.Name(), err)
		}
	}
	return nil
}

// encodeCoarse writes minute and hour timestamps. The protocol encoder has
// no such units, so lines are encoded untimed and stampWriter appends the
// timestamp in front of each line terminator.
func (e *Encoder) encodeCoarse(w io.Writer, b *point.Batch, unit time.Duration) error {
	sw := &stampWriter{w: w}
	enc := e.newProtocolEncoder(sw)
	for i, p := range b.Points() {
		sw.stamp = sw.stamp[:0]
		if !p.Time().IsZero() {
			ts := p.Time().Truncate(unit).Unix() / int64(unit/time.Second)
			sw.stamp = append(sw.stamp, ' ')
			sw.stamp = strconv.AppendInt(sw.stamp, ts, 10)
		}
		sw.stamp = append(sw.stamp, '\n')
		if e.maxLineBytes > 0 {
			enc.SetMaxLineBytes(max(e.maxLineBytes-len(sw.stamp)+1, 1))
		}
		if _, err := enc.Encode(metric{p: p, unit: unit, untimed: true}); err != nil {
			return fmt.Errorf("%w: point %d (%s): %w", ErrEncode, i, p.Name(), err)
		}
	}
	return nil
}

// stampWriter replaces each bare line terminator written by the protocol
// encoder with stamp. The encoder writes a line's terminator in a Write of
// its own, and no other Write of it is a lone newline.
type stampWriter struct {
	w     io.Writer
	stamp []byte
}

func (s *stampWriter) Write(p []byte) (int, error) {
	if len(p) == 1 && p[0] == '\n' {
		if _, err := s.w.Write(s.stamp); err != nil {
			return 0, err
		}
		return 1, nil
	}
	return s.w.Write(p)
}

// Marshal renders b with no line length limit.
func Marshal(b *point.Batch) ([]byte, error) {
	var buf bytes.Buffer
	if err := NewEncoder(0).Encode(&buf, b); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Parse decodes line protocol into points. Timestamps in data are read in
// the given precision and the returned points carry it. Lines without a
// timestamp get the parse time.
//
// Returns:
//   - []*point.Point: Decoded points in input order
//   - error: ErrDecode on malformed input or unsupported values
func Parse(data []byte, precision point.Precision) ([]*point.Point, error) {
	precision = precision.OrDefault()

	handler := protocol.NewMetricHandler()
	handler.SetTimePrecision(precision.Duration())

	metrics, err := protocol.NewParser(handler).Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	out := make([]*point.Point, 0, len(metrics))
	for _, m := range metrics {
		tags := make(map[string]string, len(m.TagList()))
		for _, t := range m.TagList() {
			tags[t.Key] = t.Value
		}
		fields := make(map[string]any, len(m.FieldList()))
		for _, f := range m.FieldList() {
			fields[f.Key] = f.Value
		}

		p, err := point.New(m.Name(), tags, fields, m.Time())
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecode, err)
		}
		out = append(out, p.WithPrecision(precision))
	}
	return out, nil
}
