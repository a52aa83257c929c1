package point_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-ingest/internal/point"
)

func TestNew_NormalisesFields(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	p, err := point.New("energy",
		map[string]string{"device_id": "meter-01", "area": "plant"},
		map[string]any{
			"i":   42,
			"i32": int32(7),
			"u16": uint16(3),
			"f32": float32(1.5),
			"f":   2.25,
			"s":   "ok",
			"b":   true,
		},
		ts,
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	fields := p.Fields()
	want := map[string]any{
		"i":   int64(42),
		"i32": int64(7),
		"u16": int64(3),
		"f32": float64(1.5),
		"f":   2.25,
		"s":   "ok",
		"b":   true,
	}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("field %q = %#v, want %#v", k, fields[k], v)
		}
	}

	if p.Name() != "energy" {
		t.Errorf("Name() = %q, want energy", p.Name())
	}
	if !p.Time().Equal(ts) {
		t.Errorf("Time() = %v, want %v", p.Time(), ts)
	}
	if p.Precision() != point.PrecisionNanosecond {
		t.Errorf("Precision() = %q, want ns", p.Precision())
	}
}

func TestNew_TagsSortedByKey(t *testing.T) {
	p, err := point.New("m",
		map[string]string{"zone": "z", "area": "a", "device": "d"},
		map[string]any{"v": 1.0},
		time.Time{},
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tags := p.Tags()
	keys := []string{tags[0].Key, tags[1].Key, tags[2].Key}
	if keys[0] != "area" || keys[1] != "device" || keys[2] != "zone" {
		t.Errorf("tag order = %v, want [area device zone]", keys)
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		measurement string
		tags        map[string]string
		fields      map[string]any
		wantErr     error
	}{
		{
			name:    "empty measurement",
			fields:  map[string]any{"v": 1},
			wantErr: point.ErrEmptyMeasurement,
		},
		{
			name:        "no fields",
			measurement: "m",
			wantErr:     point.ErrNoFields,
		},
		{
			name:        "empty tag key",
			measurement: "m",
			tags:        map[string]string{"": "x"},
			fields:      map[string]any{"v": 1},
			wantErr:     point.ErrInvalidTag,
		},
		{
			name:        "empty field key",
			measurement: "m",
			fields:      map[string]any{"": 1},
			wantErr:     point.ErrInvalidField,
		},
		{
			name:        "unsupported type",
			measurement: "m",
			fields:      map[string]any{"v": []int{1}},
			wantErr:     point.ErrInvalidField,
		},
		{
			name:        "NaN",
			measurement: "m",
			fields:      map[string]any{"v": math.NaN()},
			wantErr:     point.ErrInvalidField,
		},
		{
			name:        "uint64 overflow",
			measurement: "m",
			fields:      map[string]any{"v": uint64(math.MaxUint64)},
			wantErr:     point.ErrInvalidField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := point.New(tt.measurement, tt.tags, tt.fields, time.Time{})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("New() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPoint_AccessorsReturnCopies(t *testing.T) {
	tags := map[string]string{"device_id": "a"}
	fields := map[string]any{"v": 1.0}
	p, err := point.New("m", tags, fields, time.Time{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// Mutating the constructor inputs must not leak into the point.
	tags["device_id"] = "b"
	fields["v"] = 2.0

	got := p.Fields()
	got["v"] = 3.0
	tagSlice := p.Tags()
	tagSlice[0].Value = "c"

	if p.Fields()["v"] != 1.0 {
		t.Errorf("field v = %v, want 1.0", p.Fields()["v"])
	}
	if p.TagMap()["device_id"] != "a" {
		t.Errorf("tag device_id = %q, want a", p.TagMap()["device_id"])
	}
}

func TestPoint_WithPrecision(t *testing.T) {
	p, err := point.New("m", nil, map[string]any{"v": 1}, time.Time{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ms := p.WithPrecision(point.PrecisionMillisecond)
	if ms.Precision() != point.PrecisionMillisecond {
		t.Errorf("Precision() = %q, want ms", ms.Precision())
	}
	if p.Precision() != point.PrecisionNanosecond {
		t.Errorf("original precision changed to %q", p.Precision())
	}
}

func TestBatch_CopiesPoints(t *testing.T) {
	p1, _ := point.New("m", nil, map[string]any{"v": 1}, time.Time{})
	p2, _ := point.New("m", nil, map[string]any{"v": 2}, time.Time{})

	pts := []*point.Point{p1, nil, p2}
	b := point.NewBatch(point.Destination{Database: "db"}, pts...)
	pts[0] = p2

	if b.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", b.Len())
	}
	got := b.Points()
	if got[0] != p1 || got[1] != p2 {
		t.Error("batch points changed after caller mutated input slice")
	}

	got[0] = nil
	if b.Points()[0] != p1 {
		t.Error("batch points changed after caller mutated Points() result")
	}
}

func TestParsePrecision(t *testing.T) {
	tests := []struct {
		input   string
		want    point.Precision
		wantErr bool
	}{
		{input: "", want: point.PrecisionNanosecond},
		{input: "ns", want: point.PrecisionNanosecond},
		{input: "us", want: point.PrecisionMicrosecond},
		{input: "u", want: point.PrecisionMicrosecond},
		{input: "MS", want: point.PrecisionMillisecond},
		{input: "s", want: point.PrecisionSecond},
		{input: "h", want: point.PrecisionHour},
		{input: "days", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := point.ParsePrecision(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePrecision(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParsePrecision(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestPrecision_Duration(t *testing.T) {
	if point.PrecisionSecond.Duration() != time.Second {
		t.Errorf("s.Duration() = %v", point.PrecisionSecond.Duration())
	}
	if point.Precision("").Duration() != time.Nanosecond {
		t.Errorf("empty.Duration() = %v", point.Precision("").Duration())
	}
}

func TestParseConsistency(t *testing.T) {
	tests := []struct {
		input   string
		want    point.Consistency
		wantErr bool
	}{
		{input: "", want: point.ConsistencyOne},
		{input: "ALL", want: point.ConsistencyAll},
		{input: "any", want: point.ConsistencyAny},
		{input: "Quorum", want: point.ConsistencyQuorum},
		{input: "most", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := point.ParseConsistency(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseConsistency(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseConsistency(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDestination_String(t *testing.T) {
	if got := (point.Destination{Database: "db"}).String(); got != "db" {
		t.Errorf("String() = %q, want db", got)
	}
	if got := (point.Destination{Database: "db", RetentionPolicy: "rp"}).String(); got != "db/rp" {
		t.Errorf("String() = %q, want db/rp", got)
	}
}
