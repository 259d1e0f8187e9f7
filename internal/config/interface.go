package config

import "context"

// Loader is the interface for a format-specific configuration loader.
type Loader interface {
	// Load reads family configuration from the given paths and translates it
	// into the format-agnostic model. With no paths the built-in family is used.
	Load(ctx context.Context, paths ...string) (*Family, error)
}

// FixtureLoader reads a simulated CAD world from disk.
type FixtureLoader interface {
	LoadFixture(ctx context.Context, path string) (*Fixture, error)
}
