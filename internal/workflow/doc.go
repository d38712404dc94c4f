// Package workflow drives one screening run through the parse, match, and
// schedule stages.
//
// The Executor owns the run's phase transitions. Before each stage starts it
// records the stage's status label on the run state and publishes it, so an
// observer always sees the label of the stage that is about to run. A stage
// that returns a failure ends the run immediately; the outputs of earlier
// stages stay on the state for diagnostics. Parse failures never end a run:
// the parse stage drops bad records and reports them as warnings, and the
// executor moves on to matching unconditionally.
//
// Each run carries a request id, an optional deadline covering every worker
// call, a tracing span per stage, Prometheus stage metrics, and ntfy
// notifications when the run completes or fails.
package workflow
