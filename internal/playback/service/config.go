package service

import "time"

// Config holds configuration for the playback controller.
type Config struct {
	// TickInterval is the initial time between playback steps.
	TickInterval time.Duration `yaml:"tick_interval" split_words:"true"`
	// SpeedPresets is the cycle used by NextSpeed.
	SpeedPresets []time.Duration `yaml:"speed_presets" split_words:"true"`
	// FetchTimeout bounds a single series request.
	FetchTimeout time.Duration `yaml:"fetch_timeout" split_words:"true"`
	// QuoteInterval is how often selected symbols are re-quoted while
	// playback is stopped. Negative disables quotes.
	QuoteInterval time.Duration `yaml:"quote_interval" split_words:"true"`
	// EventBuffer is the size of the events channel.
	EventBuffer int `yaml:"event_buffer" split_words:"true"`
	// DropEvents determines whether the events channel drops on overflow.
	DropEvents bool `yaml:"drop_events" split_words:"true"`
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		TickInterval:  time.Second,
		SpeedPresets:  []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second},
		FetchTimeout:  30 * time.Second,
		QuoteInterval: 30 * time.Minute,
		EventBuffer:   1024,
		DropEvents:    true,
	}
}
