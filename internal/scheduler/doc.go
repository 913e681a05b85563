// Package scheduler decides which job instances run, which are skipped, and
// in what order ready instances are handed to workers.
//
// # How It Works
//
// The scheduler is event-driven. It never polls the graph; it reacts to
// exactly two inputs from the executor loop:
//
//  1. Start: every template without upstream jobs is admitted; every other
//     instance is marked Blocked.
//  2. Complete: a running instance reached Succeeded or Failed.
//
// Whenever the last sibling of a template reaches a terminal state, the
// template's aggregate outcome is recorded in the run context and every
// dependent template whose upstreams are now all resolved is admitted.
//
// # Admission
//
// Admission is per instance:
//   - an upstream template that did not succeed skips the instance, unless
//     the job sets continue_on_failure
//   - a condition that evaluates false skips the instance
//   - a condition that cannot be evaluated (ConditionError) skips the
//     instance and is logged at error level
//   - otherwise the instance becomes Ready and joins the dispatch queue
//
// # Thread-Safety
//
// A Scheduler is NOT safe for concurrent use. It is owned by the executor
// loop goroutine; workers report back to that loop over a channel.
package scheduler
