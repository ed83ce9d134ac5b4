// Package database owns the SQLite connection and schema migrations
// for Helios Core.
//
// Open applies WAL mode, a busy timeout and foreign keys through the
// connection string, limits the pool to a single writer connection and
// restricts the file to owner-only permissions. Migrate runs the
// embedded up scripts in version order, one transaction each, and
// records them in schema_migrations.
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations stay additive: new columns are nullable or defaulted, and
// columns are never dropped or renamed once shipped, so an older binary
// can still read a newer database file.
package database
