// Package point defines the immutable write-side data model for Gray Logic Ingest.
//
// A Point is a single time-series sample (measurement, tags, typed fields,
// timestamp, precision). A Batch is an ordered group of points bound for one
// Destination (database, retention policy, consistency level, precision).
//
// # Immutability
//
// Constructors copy their inputs and accessors return copies, so a Point or
// Batch can be handed across goroutines without further synchronisation.
// Ownership of a Batch passes to the write pipeline when it is submitted.
//
// # Usage
//
//	p, err := point.New("energy",
//	    map[string]string{"device_id": "meter-01"},
//	    map[string]any{"power_watts": 230.5, "phase": 1},
//	    time.Now(),
//	)
//	if err != nil {
//	    return err
//	}
//
//	b := point.NewBatch(point.Destination{Database: "graylogic"}, p)
package point
