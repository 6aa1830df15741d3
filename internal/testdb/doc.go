// Package testdb provides utilities specifically for database testing.
//
// Open gives each test its own migrated SQLite database under t.TempDir(),
// so store, queue, dispatcher and scanner tests exercise real SQL and real
// uniqueness constraints without an external server. OpenPostgres runs the
// same migrations against the database named by TASKNOTIFY_TEST_DATABASE_URL
// and skips the test when that variable is unset.
//
// Users and tasks belong to the task service and the engine never writes
// them, so the fixture helpers here insert them directly.
package testdb
