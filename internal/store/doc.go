// Package store provides SQLite-backed durable storage for documents, their
// snapshot history and pipeline runs.
//
// # Guarantees
//
// Single writer per document:
//   - A partial UNIQUE index on runs(document_id) over pending/running rows
//   - CreateRun checks and inserts inside one transaction
//
// Atomic step commit:
//   - CommitStep writes the before-snapshot, the new body and metadata, and
//     the run's progress in one transaction
//   - The commit is refused if the body changed since the step read it
//
// Terminal runs are immutable:
//   - Every run UPDATE is guarded by status IN ('pending', 'running')
//
// Deterministic ordering:
//   - Documents: last_action_at ASC, id ASC
//   - Runs: created_at ASC, id ASC
//   - Snapshots: seq ASC
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
