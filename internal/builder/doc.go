// Package builder turns a scheduled job instance into a fully-resolved
// steprunner.Request.
//
// # Why Builder Exists
//
// The builder is the bridge between the declarative descriptor and a
// runnable process environment. Everything an instance reads from the rest
// of the run (trigger attributes, matrix values, upstream outputs, secrets)
// is resolved here, once, before the runner starts. Runners receive plain
// maps and never touch the run context.
//
// # Environment
//
// Lowest precedence first:
//
//   - pipeline env
//   - job env
//   - PIPEGRID_RUN_ID, PIPEGRID_PIPELINE, PIPEGRID_JOB, PIPEGRID_INSTANCE
//   - PIPEGRID_BRANCH, PIPEGRID_COMMIT, PIPEGRID_REF, PIPEGRID_EVENT
//   - MATRIX_<AXIS> for every bound axis
//   - NEEDS_<JOB>_<KEY> for outputs of single-instance upstream jobs, and
//     NEEDS_<JOB>_<VALUES>_<KEY> for each instance of a matrix upstream
//
// Names are upper-cased and every character outside [A-Z0-9_] becomes '_'.
// Secrets are resolved separately so runners can mask them.
package builder
