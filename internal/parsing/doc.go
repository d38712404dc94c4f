// Package parsing implements the parse stage: every submitted resume is sent
// to the parse worker on its own, through a bounded worker pool, and the
// profiles that come back are stored in submission order.
//
// Parsing is best-effort. A record whose call fails, times out, or returns an
// unusable profile is dropped with a warning; the stage itself never fails.
package parsing
