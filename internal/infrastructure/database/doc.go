// Package database manages the SQLite connection and schema migrations for
// Medtrack Core.
//
// It opens the database with foreign keys enabled, an optional WAL journal,
// and a busy timeout, and restricts the connection pool to a single
// connection to match SQLite's single-writer model. Migrations are embedded
// SQL files (YYYYMMDD_HHMMSS_description.up.sql / .down.sql) applied in
// version order, each in its own transaction, tracked in schema_migrations.
package database
