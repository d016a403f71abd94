// Package store provides SQLite-backed durable history for the engine.
//
// The store is append-only and holds:
//   - Fact batches: every batch ingested by the state service, for replay
//   - Task runs: one row per finished task with its trail and outcome
//   - Snapshots: periodic copies of the state table
//
// # Ordering
//
// Every table carries an AUTOINCREMENT seq and every query orders by it.
// Engine times (recorded_at, started_at, taken_at) are informational; two
// rows with the same engine time still have a stable order.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
