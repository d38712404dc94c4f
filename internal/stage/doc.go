// Package stage defines the contract between the workflow executor and the
// per-stage worker adapters, plus the helpers adapters share for failure
// classification and worker readiness probes.
package stage
