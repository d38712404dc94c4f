// Package gateway accepts screening tasks, runs them to completion, and
// shapes the outcome for the caller.
//
// A submission is validated, given its own run state and progress channel,
// and executed synchronously. Only two failures reach the caller: a malformed
// request, or the stage that ended the run with its detail. A task id that
// is still running is rejected so two runs never share a progress channel.
// Finished runs are kept for a while so operators can inspect them.
package gateway
