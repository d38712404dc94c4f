// Package runstate owns the mutable record threaded through one screening run.
//
// A State is created per submission, advanced by exactly one workflow
// executor, and frozen once it reaches a terminal phase. Each stage writes only
// its own output slot, and writes are rejected outside the stage's phase so a
// misbehaving adapter cannot corrupt neighbouring outputs. Readers outside the
// executor (diagnostics endpoints, the CLI) work from Snapshot copies.
package runstate
