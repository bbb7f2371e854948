// Package store provides SQLite-backed durable storage for notebook session
// traces.
//
// The store is an append-only log with:
//   - Sessions: one row per recorded session, with its resolved seed document
//   - Commands: every command applied to the session's notebook
//   - Events: every transition the notebook emitted
//
// Store implements session.Sink, so a real-time session records itself by
// passing the store to session.WithSink.
//
// # Logical Time
//
// Commands and events are ordered by seq, assigned by the session, never by
// wall-clock columns. at_ns is informational: the scheduler offset at which a
// row was produced. A command's after_events pins it between events, which is
// what replay relies on.
//
// # Idempotency
//
// (session_id, seq) is the primary key of commands and events. Writes use
// ON CONFLICT DO NOTHING, so recording the same row twice is harmless.
//
// # Schema Versions
//
// schema.sql creates the tables. Indexes added later are migrations keyed by
// PRAGMA user_version; Open applies the missing ones in one transaction, so
// databases recorded by older builds stay readable.
package store
