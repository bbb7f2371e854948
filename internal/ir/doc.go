// Package ir provides the shared value types of the notebook simulator.
//
// It holds cells, snapshots and events, plus the canonical JSON and hashing
// used to compare traces. ir imports no other internal package.
//
// JSON tags are snake_case. Events are ordered by Seq; Event.At is a
// scheduler offset, virtual in tests and replay.
package ir
