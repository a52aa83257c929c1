package point

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Tag is a single indexed key/value pair on a point.
type Tag struct {
	Key   string
	Value string
}

// Point is one immutable time-series sample.
//
// Field values are always one of int64, float64, string or bool; New
// normalises the other Go integer and float kinds and rejects anything else.
type Point struct {
	measurement string
	tags        []Tag // sorted by key
	fields      map[string]any
	time        time.Time
	precision   Precision
}

// New builds a point with nanosecond precision.
//
// Parameters:
//   - measurement: The measurement name (required)
//   - tags: Indexed key/value pairs (may be nil)
//   - fields: Typed values (at least one)
//   - t: Sample time; the zero time lets the server assign one
//
// Returns:
//   - *Point: The immutable point
//   - error: ErrEmptyMeasurement, ErrNoFields, ErrInvalidTag or ErrInvalidField
func New(measurement string, tags map[string]string, fields map[string]any, t time.Time) (*Point, error) {
	if measurement == "" {
		return nil, ErrEmptyMeasurement
	}
	if len(fields) == 0 {
		return nil, ErrNoFields
	}

	sortedTags := make([]Tag, 0, len(tags))
	for k, v := range tags {
		if k == "" {
			return nil, fmt.Errorf("%w: empty key on measurement %q", ErrInvalidTag, measurement)
		}
		sortedTags = append(sortedTags, Tag{Key: k, Value: v})
	}
	sort.Slice(sortedTags, func(i, j int) bool { return sortedTags[i].Key < sortedTags[j].Key })

	normalised := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == "" {
			return nil, fmt.Errorf("%w: empty key on measurement %q", ErrInvalidField, measurement)
		}
		nv, err := normaliseField(v)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %w", ErrInvalidField, k, err)
		}
		normalised[k] = nv
	}

	return &Point{
		measurement: measurement,
		tags:        sortedTags,
		fields:      normalised,
		time:        t,
		precision:   PrecisionNanosecond,
	}, nil
}

// normaliseField maps supported Go kinds onto the four field types.
func normaliseField(v any) (any, error) {
	switch val := v.(type) {
	case int64, string, bool:
		return val, nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil, fmt.Errorf("non-finite float %v", val)
		}
		return val, nil
	case float32:
		return normaliseField(float64(val))
	case int:
		return int64(val), nil
	case int8:
		return int64(val), nil
	case int16:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case uint8:
		return int64(val), nil
	case uint16:
		return int64(val), nil
	case uint32:
		return int64(val), nil
	case uint:
		if uint64(val) > math.MaxInt64 {
			return nil, fmt.Errorf("unsigned value %d overflows int64", val)
		}
		return int64(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("unsigned value %d overflows int64", val)
		}
		return int64(val), nil
	default:
		return nil, fmt.Errorf("unsupported type %T", v)
	}
}

// WithPrecision returns a copy of the point carrying precision pr.
func (p *Point) WithPrecision(pr Precision) *Point {
	cpy := *p
	cpy.precision = pr.OrDefault()
	return &cpy
}

// Name returns the measurement name.
func (p *Point) Name() string {
	return p.measurement
}

// Tags returns the tags sorted by key.
func (p *Point) Tags() []Tag {
	out := make([]Tag, len(p.tags))
	copy(out, p.tags)
	return out
}

// TagMap returns the tags as a fresh map.
func (p *Point) TagMap() map[string]string {
	out := make(map[string]string, len(p.tags))
	for _, t := range p.tags {
		out[t.Key] = t.Value
	}
	return out
}

// Fields returns a fresh copy of the field map.
func (p *Point) Fields() map[string]any {
	out := make(map[string]any, len(p.fields))
	for k, v := range p.fields {
		out[k] = v
	}
	return out
}

// FieldKeys returns the field keys in sorted order.
func (p *Point) FieldKeys() []string {
	keys := make([]string, 0, len(p.fields))
	for k := range p.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Time returns the sample timestamp (zero if unset).
func (p *Point) Time() time.Time {
	return p.time
}

// Precision returns the point's timestamp precision.
func (p *Point) Precision() Precision {
	return p.precision
}

// String renders the point for debugging. It is not line protocol.
func (p *Point) String() string {
	return fmt.Sprintf("%s%v %v %d", p.measurement, p.tags, p.fields, p.time.UnixNano())
}
