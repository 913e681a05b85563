// Package registry provides the central "glue" between `uses` steps and the
// compiled Go actions that implement them.
//
// The Registry stores mappings between the string identifiers used in
// descriptors (e.g., `uses = "print"`) and the Go functions and input types
// that implement each action. Inputs are declared as struct fields tagged
// `pipegrid:"name[,optional]"`; the `with` map of a step is decoded into
// that struct through go-cty, so "200" reaches an int field and "true"
// reaches a bool field.
//
// During startup the registry is populated and then validated, and every
// pipeline is checked against it before a run starts, so a misspelled
// action or input is a descriptor error rather than a mid-run failure.
package registry
