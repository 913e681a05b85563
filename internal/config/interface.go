package config

import "context"

// Loader is the interface for a format-specific descriptor loader.
type Loader interface {
	// Load reads descriptor files from the given paths and translates them
	// into the format-agnostic model.
	Load(ctx context.Context, paths ...string) (*Pipeline, error)
}
