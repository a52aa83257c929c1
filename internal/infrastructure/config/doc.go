// Package config loads the service configuration from YAML (gopkg.in/yaml.v3).
//
// Load starts from defaults, overlays the file, then applies
// GRAYLOGIC_INGEST_* environment overrides (broker credentials, transport
// tokens, API port) and validates the result. Keep secrets in the
// environment or a .env file rather than in the YAML, and keep the file
// itself at 0600.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//		return err
//	}
//	if cfg.UsesMQTT() {
//		// connect the broker
//	}
package config
