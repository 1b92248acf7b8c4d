package refresh

import "time"

// Config controls the periodic refresh loop.
type Config struct {
	Interval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Interval: 15 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = defaults.Interval
	}
	return c
}
