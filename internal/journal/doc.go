// Package journal provides a SQLite-backed, append-only log of what stores
// did: every reduced mutation and every emitted event, in step order.
//
// The journal is an audit trail for inspection with `flux trace`. It is never
// read back into a store; state is not persisted.
//
// # Ordering
//
// Entries carry the store's step number. Reads return entries ORDER BY
// step ASC, id ASC so a mutation is always listed before the events its
// reduce step produced.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait on lock contention
//   - single open connection: SQLite allows one writer
package journal
