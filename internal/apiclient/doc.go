// Package apiclient talks to a running screener daemon over its HTTP API.
//
// The CLI uses it to submit tasks, follow status streams, and read run
// snapshots and daemon health.
package apiclient
