package service

// Config holds configuration for the notice service.
type Config struct {
	// History is how many notices are kept for Latest.
	History int `yaml:"history" split_words:"true"`
	// SubscriberBuffer is the default channel size for Subscribe. A full
	// subscriber misses notices.
	SubscriberBuffer int `yaml:"subscriber_buffer" split_words:"true"`
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		History:          100,
		SubscriberBuffer: 64,
	}
}
