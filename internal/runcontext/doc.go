// Package runcontext holds the state shared by every job instance of one
// pipeline run: the trigger attributes, the environment, secret handles,
// outputs published by completed instances, and the aggregate outcome of
// each resolved template.
//
// A Context is created at run start and discarded at run end. Nothing here
// is global; two runs in the same process never see each other's outputs.
//
// Outputs and results are write-once. Publishing a key twice is a
// programming-contract violation and fails with DuplicateOutputError rather
// than silently replacing a value a dependent may already have read.
package runcontext
