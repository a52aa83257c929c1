// Package api implements the admin HTTP API for Gray Logic Ingest.
//
// This package provides:
//   - Health of the writer's infrastructure (transport, MQTT, database)
//   - Writer statistics and a manual flush trigger
//   - Dead-letter listing, inspection, deletion and replay
//   - The Prometheus scrape endpoint at /metrics
//   - Middleware stack (request ID, logging, recovery, body limit)
//
// # Routes
//
//	GET    /api/v1/health
//	GET    /api/v1/stats
//	POST   /api/v1/flush
//	GET    /api/v1/deadletters?kind=&database=&limit=&offset=
//	GET    /api/v1/deadletters/{id}
//	DELETE /api/v1/deadletters/{id}
//	POST   /api/v1/deadletters/{id}/replay
//	GET    /metrics
//
// # Security
//
// The API has no authentication and binds to 127.0.0.1 by default. Expose
// it only on trusted networks.
package api
