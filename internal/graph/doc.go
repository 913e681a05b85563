// Package graph provides a unified, high-level interface over the execution
// plan and the mutable instance state of a single run.
//
// # Why Graph Package Exists
//
// The Graph interface is a facade that combines the immutable plan
// (dag.Plan) and the mutable state (nodestore.Store) into one API, so the
// scheduler and executor never coordinate two stores by hand.
//
//   - **Unified API:** One interface instead of a plan plus a store
//   - **Validation:** Every transition goes through node.CanTransition
//   - **Event hooks:** Every transition is fanned out to events.Observer
//
// # Lifecycle
//
//  1. **Created** by the session factory with the plan, a fresh node store and observers
//  2. **Mutated** by the scheduler (admission, skips) and executor (running, results)
//  3. **Queried** by the result aggregator and the status server
//  4. **Discarded** when the session ends
package graph
