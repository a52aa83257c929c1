// Package database owns the service's SQLite file (github.com/mattn/go-sqlite3).
//
// Its only tenant is the dead-letter table, where batches the write pipeline
// gave up on wait for inspection or replay. It is opened only when
// database.enabled is set.
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//		return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//		return err
//	}
//
// Migrations are YYYYMMDD_HHMMSS_name.up.sql / .down.sql pairs applied in
// version order, each in its own transaction, and recorded in
// schema_migrations. Schema changes are additive: new columns are nullable
// or carry a default.
package database
