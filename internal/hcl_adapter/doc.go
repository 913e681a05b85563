// Package hcl_adapter loads pipeline descriptors written in HCL and
// translates them into the format-agnostic config model.
//
// Strings are HCL templates, so shell variables inside run scripts are
// written as $NAME or escaped as $${NAME}.
package hcl_adapter
