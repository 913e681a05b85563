// Package yaml_adapter loads pipeline descriptors written in YAML, JSON or
// JSONC (JSON with comments and trailing commas) and translates them into
// the format-agnostic config model.
//
// Mapping order is significant: jobs keep the order they are written in and
// matrix axes keep theirs, so documents are decoded through yaml.Node
// rather than into Go maps.
package yaml_adapter
