// Package condition compiles and evaluates job gating expressions.
//
// Expressions use HCL native syntax, restricted to a closed set of forms:
// string, number and bool literals, references into the run scope,
// parentheses, `==`, `!=`, `&&`, `||` and `!`. Anything else (function
// calls, conditionals, arithmetic, `for` expressions, interpolation) is
// rejected when the expression is compiled, so a descriptor that loads
// cleanly can only ever evaluate to a boolean or a ConditionError.
//
// References are resolved through a Scope. The roots are:
//
//	trigger.branch, trigger.commit, trigger.ref, trigger.event, trigger.repository
//	branch, commit, ref, event          (aliases for the trigger fields)
//	env.NAME
//	matrix.AXIS
//	needs.JOB.result                    ("success", "failure" or "skipped")
//	needs.JOB.outputs.KEY
//	needs.JOB["axis=value"].outputs.KEY (one matrix sibling)
//
// Evaluation is pure: the same expression and the same scope contents always
// produce the same result.
package condition
