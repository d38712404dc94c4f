// Package taskclient sends task envelopes to remote workers and normalizes
// every way a call can go wrong into a single TransportError taxonomy.
//
// A Client is stateless between calls. Each call is bounded by a per-call
// timeout and by the caller's context (the run deadline). Retries are off
// unless a Policy with more than one attempt is configured, and only failures
// that can plausibly succeed on a second try are retried: timeouts,
// unreachable workers, and 408/429/5xx responses.
package taskclient
