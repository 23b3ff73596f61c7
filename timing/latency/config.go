package latency

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sarchlab/z80exec/insts"
)

// TimingConfig holds the parameters of the reference timing table.
type TimingConfig struct {
	// PrefixTStates is the cost of one CB, ED, DD or FD prefix byte.
	// Default: 4 T-states.
	PrefixTStates uint64 `json:"prefix_tstates"`

	// AckWaitStates is added to every maskable interrupt response. The
	// documented part inserts 2 automatic wait states into the acknowledge
	// cycle; the execute model does not. Default: 0.
	AckWaitStates uint64 `json:"ack_wait_states"`

	// Overrides replaces the timing of individual classes, keyed by class
	// name (for example "Djnz").
	Overrides map[string]Timing `json:"overrides,omitempty"`
}

// DefaultTimingConfig returns the configuration matching the execute model.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		PrefixTStates: 4,
		AckWaitStates: 0,
	}
}

// LoadConfig loads a TimingConfig from a JSON file.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	config := DefaultTimingConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a TimingConfig to a JSON file.
func (c *TimingConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize timing config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timing config file: %w", err)
	}

	return nil
}

// Validate checks the configuration.
func (c *TimingConfig) Validate() error {
	if c.PrefixTStates == 0 {
		return fmt.Errorf("prefix_tstates must be > 0")
	}
	for name, t := range c.Overrides {
		if _, ok := classByName(name); !ok {
			return fmt.Errorf("unknown class %q in overrides", name)
		}
		if t.Base == 0 {
			return fmt.Errorf("override %s: base must be > 0", name)
		}
	}
	return nil
}

// Clone returns a deep copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	clone := *c
	if c.Overrides != nil {
		clone.Overrides = make(map[string]Timing, len(c.Overrides))
		for k, v := range c.Overrides {
			clone.Overrides[k] = v
		}
	}
	return &clone
}

func classByName(name string) (insts.Class, bool) {
	for c := insts.Class(0); c < insts.NumClasses; c++ {
		if c.String() == name {
			return c, true
		}
	}
	return 0, false
}
