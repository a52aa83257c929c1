// Package tsdb provides the HTTP line-protocol transport for Gray Logic Ingest.
//
// It writes to any server exposing the InfluxDB 1.x /write endpoint
// (InfluxDB 1.x, VictoriaMetrics) and implements batch.Transport.
// Line protocol is encoded with package lineproto.
//
// # Usage
//
//	client, err := tsdb.Connect(ctx, cfg.Transport.HTTP)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	w := batch.New(client, batch.WithDatabase("graylogic"))
//
// # Error Handling
//
// Send returns ErrWriteFailed wrapping the server's error text, for example
// "tsdb: write failed: HTTP 404: database not found: \"graylogic\"". The
// write pipeline classifies that text to decide between retry and failure.
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
package tsdb
