// Package session drives a notebook from a stream of commands.
//
// A Command is one notebook operation in serializable form. Apply executes a
// command against a Notebook directly; Session does the same in real time,
// owning the notebook on an engine.Loop and recording every command and event
// to a Sink. Replay and Verify re-execute a Recording in virtual time and
// check that it produces the recorded trace.
package session
