// Command screener runs the screening orchestrator daemon and talks to it.
//
// `screener serve` starts the daemon in the foreground. The remaining
// commands (submit, watch, inspect, status, test-notify) are clients of a
// running daemon's HTTP API; config manages the TOML configuration file.
package main
