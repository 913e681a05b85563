// Package localexecutor provides a concrete, in-process implementation of
// the executor.Executor interface.
//
// # How It Works
//
// A single loop goroutine owns the scheduler. It hands Ready instances to
// at most Workers goroutines, and each worker reports back over one
// results channel. The loop never blocks on a worker: it waits on either a
// result or cancellation of the run context.
//
// Cancelling the context aborts the run: everything not yet dispatched is
// skipped, running instances are killed through their own context, and
// their failures are still recorded before Execute returns.
package localexecutor
