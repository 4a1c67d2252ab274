// Package scheduler dispatches run tasks to a bounded worker pool.
package scheduler

// DefaultMaxConcurrent bounds in-flight tasks across all runs when no
// explicit ceiling is configured.
const DefaultMaxConcurrent = 4

// Config defines the scheduler configuration.
type Config struct {
	// MaxConcurrent is the maximum number of in-flight tasks across all runs.
	MaxConcurrent int `yaml:"max_concurrent"`
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() *Config {
	return &Config{MaxConcurrent: DefaultMaxConcurrent}
}

func (c *Config) maxConcurrent() int {
	if c == nil || c.MaxConcurrent <= 0 {
		return DefaultMaxConcurrent
	}
	return c.MaxConcurrent
}
