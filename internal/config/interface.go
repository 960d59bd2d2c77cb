package config

import "context"

// Loader is the interface for a format-specific configuration loader.
type Loader interface {
	// Load reads the file at path on top of Default. An empty path returns
	// Default unchanged.
	Load(ctx context.Context, path string) (*Model, error)
}
