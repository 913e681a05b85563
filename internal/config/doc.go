// Package config defines the format-agnostic pipeline descriptor model and
// the Loader interface implemented by each descriptor format.
//
// A `config.Pipeline` is the single source of truth for the `dag` package.
// Concrete loaders live in separate packages (hcl_adapter, yaml_adapter) and
// all translate into the same model, so nothing downstream knows which
// format a pipeline was written in.
package config
