// Package store provides SQLite-backed storage for run history and for the
// in-process application's persisted todo list.
//
// Tables:
//   - runs: one row per suite run (counts and exit code once finished)
//   - case_results: one row per case, keyed by (run_id, seq)
//   - app_storage: opaque blobs keyed by namespace, see AppStorage
//
// # Ordering
//
// Case rows are always read ORDER BY seq ASC, the runner's logical clock.
// Runs are listed newest first by start time, ties broken by id COLLATE BINARY
// so listings are stable.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
package store
