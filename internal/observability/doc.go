// Package observability wires OpenTelemetry tracing for the daemon. When
// tracing is disabled a no-op provider is installed so instrumented code
// never needs to check.
package observability
