package app

import (
	"github.com/zappabad/stockpond/internal/config"
	"github.com/zappabad/stockpond/internal/market"
	"github.com/zappabad/stockpond/internal/playback/clock"
)

// Options tune how an App is assembled beyond the loaded configuration.
type Options struct {
	// Catalog overrides the catalog named by the configuration.
	Catalog market.Catalog
	// Clock overrides the playback clock.
	Clock clock.Clock
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() config.Config {
	return config.Default()
}
