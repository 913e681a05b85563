// internal/nodeid/doc.go

/*
Package nodeid provides a structured, type-safe representation for job
instance identifiers.

A job without a matrix has exactly one instance whose identifier is the job
name, e.g. `build`. A matrix job has one instance per axis combination,
identified by the job name followed by its bindings in axis declaration
order, e.g. `build[os=linux,python=3.11]`.

Instance identity is an external contract: log lines, published outputs, and
audit records are all keyed by it. This package centralizes the formatting
and parsing so the canonical form is produced in exactly one place.
*/
package nodeid
