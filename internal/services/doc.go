// Package services defines shared utilities consumed by the pipeline stage
// adapters and the worker clients.
//
// Key responsibilities:
//   - Context helpers that stamp task IDs, stage names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that keep failure
//     classification consistent from the worker call up to the HTTP response.
//
// Use these helpers when wiring new stage logic so operational behaviour (error
// handling, observability, retries) stays uniform across the pipeline.
package services
