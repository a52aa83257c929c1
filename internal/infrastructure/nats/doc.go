// Package nats provides the NATS transport for Gray Logic Ingest.
//
// Batches are encoded as line protocol and published as one message per
// batch on "<subject_prefix>.<database>[.<retention_policy>]". Every publish
// is followed by a flush round-trip, so a failed send surfaces as an error
// from Send rather than being lost in the client's outbound buffer.
//
// Timestamps are always written in nanoseconds (truncated to the batch's
// precision), and the Graylogic-* headers carry database, retention policy,
// precision and consistency for consumers that honour them.
//
// The transport only guarantees the server accepted the message. The write
// to the time-series server is done by whatever consumes the subject.
//
// # Usage
//
//	client, err := nats.Connect(cfg.Transport.NATS)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	w := batch.New(client, batch.WithDatabase("graylogic"))
package nats
