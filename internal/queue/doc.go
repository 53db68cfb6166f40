// Package queue persists per-project generation jobs in SQLite and exposes
// the lease/heartbeat/claim state machine that schedules them.
//
// Every mutation runs in an immediate transaction, so concurrent callers
// racing on one project see at most one winner. A project has at most one
// running item with a fresh lease; a worker that disappears without calling
// Complete or Fail is recovered lazily by the next ClaimNext once its lease
// has expired. There is no background sweeper.
//
// The database is treated as transient storage for in-flight jobs rather than
// a long-term archive. Schema changes bump the version in schema.go; users
// clear the database to adopt the new schema.
package queue
