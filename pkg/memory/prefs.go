package memory

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Preferences controls skip and retry behavior across runs.
type Preferences struct {
	SkipAlreadyInstalled bool `toml:"skip_already_installed"`
	AutoRetryFailed      bool `toml:"auto_retry_failed"`
	MaxRetryAttempts     int  `toml:"max_retry_attempts"`
}

// DefaultPreferences returns the out-of-box preference set.
func DefaultPreferences() Preferences {
	return Preferences{
		SkipAlreadyInstalled: true,
		AutoRetryFailed:      true,
		MaxRetryAttempts:     3,
	}
}

// LoadPreferences reads a TOML preferences file, applying defaults for a
// missing file or absent keys.
func LoadPreferences(path string) (Preferences, error) {
	p := DefaultPreferences()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("read preferences: %w", err)
	}

	if _, err := toml.Decode(string(data), &p); err != nil {
		return DefaultPreferences(), fmt.Errorf("parse preferences %s: %w", path, err)
	}
	if p.MaxRetryAttempts < 0 {
		p.MaxRetryAttempts = 0
	}
	return p, nil
}
