// Package storage is the key-value persistence primitive behind the reminder
// service.
//
// Each key holds one opaque value (the reminder service stores a serialized
// list under a single key). Drivers:
//   - file:   one JSON file per key under a directory, replaced atomically
//   - sqlite: a kv table in a SQLite database (modernc.org/sqlite, no cgo)
//   - memory: process-local map, for tests and dry runs
package storage
