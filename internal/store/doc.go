// Package store provides SQLite-backed durable storage for phone records and
// the cached remote credentials.
//
// Tables:
//   - phones: one row per ingested phone (phone, state, purchase_id,
//     failed_to_upload, failed_to_clear)
//   - cashier_tokens: cashier bearer token by email
//   - admin_tokens: admin bearer token and company id by email
//
// # Transition Discipline
//
// Records are never deleted. Every state change goes through ApplyUploadOutcome
// or ApplyRemovalOutcome, each a single UPDATE keyed by the record's primary key
// (phone) or its unique purchase id, and guarded by the expected source state.
// A guard miss surfaces as ErrIllegalTransition; the schema's CHECK constraints
// back the same rules up at the database level.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - One open connection: all writes from concurrent workers are serialized
package store
