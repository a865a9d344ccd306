// Package kv is the device-local key/value store that survives restarts.
//
// Two implementations satisfy Repository:
//
//   - SQLiteRepository: a single "kv" table in an SQLite file opened with
//     Open, which applies the embedded goose migrations. The pool is limited
//     to one connection, so reads and writes on the same key are ordered.
//   - MemoryRepository: a mutex-guarded map for tests and ephemeral sessions.
//
// Get returns (nil, nil) for a missing key. WithinTx runs a group of
// operations atomically.
package kv
