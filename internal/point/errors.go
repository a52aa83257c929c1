package point

import "errors"

// Sentinel errors for point construction.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, point.ErrInvalidField) {
//	    // Reject the sample
//	}
var (
	// ErrEmptyMeasurement indicates a point was built without a measurement name.
	ErrEmptyMeasurement = errors.New("point: measurement is required")

	// ErrNoFields indicates a point was built without any fields.
	ErrNoFields = errors.New("point: at least one field is required")

	// ErrInvalidField indicates a field value has an unsupported type or an empty key.
	ErrInvalidField = errors.New("point: invalid field")

	// ErrInvalidTag indicates a tag has an empty key.
	ErrInvalidTag = errors.New("point: invalid tag")

	// ErrInvalidPrecision indicates an unrecognised precision string.
	ErrInvalidPrecision = errors.New("point: invalid precision")

	// ErrInvalidConsistency indicates an unrecognised consistency level.
	ErrInvalidConsistency = errors.New("point: invalid consistency level")
)
