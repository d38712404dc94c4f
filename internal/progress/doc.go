// Package progress carries human-readable status labels from a running
// pipeline to observers.
//
// A Channel holds only the latest value. Publishing never blocks, and a slow
// observer skips intermediate labels rather than delaying the pipeline. The
// Hub keeps one channel per run plus a global channel that mirrors whichever
// run published last, for clients that predate per-run streams.
package progress
