package point

import (
	"fmt"
	"strings"
	"time"
)

// Precision is the timestamp resolution sent with a write.
// Values match the InfluxDB 1.x "precision" query parameter.
type Precision string

// Supported precisions.
const (
	PrecisionNanosecond  Precision = "ns"
	PrecisionMicrosecond Precision = "u"
	PrecisionMillisecond Precision = "ms"
	PrecisionSecond      Precision = "s"
	PrecisionMinute      Precision = "m"
	PrecisionHour        Precision = "h"
)

// AllPrecisions returns every supported precision, finest first.
func AllPrecisions() []Precision {
	return []Precision{
		PrecisionNanosecond,
		PrecisionMicrosecond,
		PrecisionMillisecond,
		PrecisionSecond,
		PrecisionMinute,
		PrecisionHour,
	}
}

// Duration returns the precision as a time.Duration unit.
// An empty precision is treated as nanoseconds.
func (p Precision) Duration() time.Duration {
	switch p {
	case PrecisionMicrosecond:
		return time.Microsecond
	case PrecisionMillisecond:
		return time.Millisecond
	case PrecisionSecond:
		return time.Second
	case PrecisionMinute:
		return time.Minute
	case PrecisionHour:
		return time.Hour
	default:
		return time.Nanosecond
	}
}

// OrDefault returns p, or nanosecond precision if p is empty.
func (p Precision) OrDefault() Precision {
	if p == "" {
		return PrecisionNanosecond
	}
	return p
}

// ParsePrecision converts a config or query string to a Precision.
// Accepts the wire values plus the common spellings "us" and "µs".
func ParsePrecision(s string) (Precision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ns", "n":
		return PrecisionNanosecond, nil
	case "u", "us", "µs":
		return PrecisionMicrosecond, nil
	case "ms":
		return PrecisionMillisecond, nil
	case "s":
		return PrecisionSecond, nil
	case "m":
		return PrecisionMinute, nil
	case "h":
		return PrecisionHour, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPrecision, s)
	}
}

// Consistency is the server-side acknowledgement requirement for a write.
// It is passed through to the transport and never enforced locally.
type Consistency string

// Supported consistency levels.
const (
	ConsistencyAll    Consistency = "all"
	ConsistencyAny    Consistency = "any"
	ConsistencyOne    Consistency = "one"
	ConsistencyQuorum Consistency = "quorum"
)

// OrDefault returns c, or ConsistencyOne if c is empty.
func (c Consistency) OrDefault() Consistency {
	if c == "" {
		return ConsistencyOne
	}
	return c
}

// ParseConsistency converts a config string (any case) to a Consistency.
// An empty string yields ConsistencyOne.
func ParseConsistency(s string) (Consistency, error) {
	switch c := Consistency(strings.ToLower(strings.TrimSpace(s))); c {
	case "":
		return ConsistencyOne, nil
	case ConsistencyAll, ConsistencyAny, ConsistencyOne, ConsistencyQuorum:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidConsistency, s)
	}
}

// Destination identifies where a batch is written.
// It is comparable and used as a grouping key by the write pipeline.
type Destination struct {
	Database        string
	RetentionPolicy string
	Consistency     Consistency
	Precision       Precision
}

// String renders the destination for logs, e.g. "graylogic/autogen".
func (d Destination) String() string {
	if d.RetentionPolicy == "" {
		return d.Database
	}
	return d.Database + "/" + d.RetentionPolicy
}
