package core

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sarchlab/z80exec/timing/cache"
)

// Config holds harness parameters.
type Config struct {
	// ClockHz is the simulated clock frequency, used only to convert ticks
	// into wall time. Default: 3.58 MHz.
	ClockHz uint64 `json:"clock_hz"`

	// MaxTicks bounds Run. Default: 10,000,000 ticks.
	MaxTicks uint64 `json:"max_ticks"`

	// EvalCache puts a memo in front of the control unit.
	EvalCache bool `json:"eval_cache"`

	// CacheSets is the number of memo sets. Default: 256.
	CacheSets int `json:"cache_sets"`

	// CacheWays is the memo associativity. Default: 4.
	CacheWays int `json:"cache_ways"`
}

// DefaultConfig returns the default harness configuration.
func DefaultConfig() *Config {
	memo := cache.DefaultConfig()
	return &Config{
		ClockHz:   3_580_000,
		MaxTicks:  10_000_000,
		EvalCache: true,
		CacheSets: memo.Sets,
		CacheWays: memo.Ways,
	}
}

// LoadConfig loads a Config from a JSON file. Missing fields keep their
// defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read core config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse core config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a Config to a JSON file.
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize core config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write core config file: %w", err)
	}

	return nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.ClockHz == 0 {
		return fmt.Errorf("clock_hz must be > 0")
	}
	if c.MaxTicks == 0 {
		return fmt.Errorf("max_ticks must be > 0")
	}
	if c.EvalCache {
		if err := c.CacheConfig().Validate(); err != nil {
			return err
		}
	}
	return nil
}

// CacheConfig returns the memo geometry.
func (c *Config) CacheConfig() cache.Config {
	return cache.Config{Sets: c.CacheSets, Ways: c.CacheWays}
}

// Duration converts a tick count into simulated time.
func (c *Config) Duration(ticks uint64) time.Duration {
	return time.Duration(float64(ticks) / float64(c.ClockHz) * float64(time.Second))
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
