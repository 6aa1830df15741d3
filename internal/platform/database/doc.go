// Package database provides SQL implementations of the persistence
// interfaces defined in internal/store. The same queries run on PostgreSQL
// (through the pgx stdlib driver) and on SQLite (through modernc.org/sqlite);
// sqlx rebinds placeholders for whichever driver the *sqlx.DB was opened with.
// Schema changes are embedded goose migrations, one directory per dialect.
package database
