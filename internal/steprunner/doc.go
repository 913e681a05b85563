// Package steprunner executes the steps of one job instance.
//
// Steps run in declaration order. A `run` step is a shell script executed
// with `sh -c` in its own process group, so cancellation and timeouts kill
// the script and every child it started. A `uses` step invokes a Go action
// from the registry.
//
// # Outputs
//
// A shell step publishes outputs by appending to the file named by
// $PIPEGRID_OUTPUT, one `key=value` per line, or a multi-line value as
//
//	key<<DELIM
//	line one
//	line two
//	DELIM
//
// An action publishes outputs through its return value. Outputs of all
// steps are merged; a later step overrides an earlier one. Which keys reach
// the run context is decided by the job's declared outputs, not here.
//
// # Environment
//
// A step sees, lowest precedence first: the runner's process environment,
// the request environment built for the instance, the job's secrets, and
// the step's own env. Step env values and `with` inputs are expanded with
// ${NAME} against that environment.
package steprunner
