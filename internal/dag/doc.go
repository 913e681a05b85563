// Package dag turns a loaded pipeline descriptor into an immutable,
// validated execution plan.
//
// Build is the only entry point. It registers every job template in a
// topology store, validates the graph eagerly (names, references,
// self-cycles, cycles), compiles every gating condition, and expands every
// matrix into concrete instances. Either the whole descriptor is accepted
// and a complete Plan is returned, or nothing is: callers never observe a
// partially validated graph.
package dag
