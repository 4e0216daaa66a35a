package config

import (
	"fmt"
	"path/filepath"

	"traderboard/pkg/confkit"
	venuepkg "traderboard/pkg/venue"
)

// MustLoadVenue loads etc/venue.yaml from the project root and panics on error.
// It isolates venue config so tests that only need providers do not have to
// assemble a full application config.
func MustLoadVenue() *venuepkg.Config {
	root := confkit.MustProjectRoot()
	path := filepath.Join(root, "etc", "venue.yaml")
	cfg, err := venuepkg.LoadConfig(path)
	if err != nil {
		panic(fmt.Errorf("load venue config %s: %w", path, err))
	}
	return cfg
}

// MustBuildVenueProviders loads venue config from the default path and builds
// provider instances; returns the map and default provider name.
func MustBuildVenueProviders() (map[string]venuepkg.Provider, string) {
	cfg := MustLoadVenue()
	providers, err := cfg.BuildProviders()
	if err != nil {
		panic(err)
	}
	return providers, cfg.Default
}
