// Package daemon hosts the screener orchestrator process.
//
// The Daemon guards single-instance execution with a file lock and serves the
// HTTP surface: task submission, the capability card, per-run and global
// progress streams, run diagnostics, health, and Prometheus metrics.
package daemon
