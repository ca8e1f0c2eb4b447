package counter

import (
	"fmt"
	"math"
	"time"
)

// MaxWindowSize caps the smoothing window. At typical browser frame rates
// (~8 fps) anything larger lags a full rep behind the body.
const MaxWindowSize = 120

// Config holds the tunable thresholds of the rep counter.
type Config struct {
	// FlexionThreshold is the smoothed knee angle (degrees) below which a rep
	// is in progress.
	FlexionThreshold float64 `yaml:"flexion_threshold"`
	// ExtensionThreshold is the smoothed knee angle (degrees) above which a rep
	// is complete.
	ExtensionThreshold float64 `yaml:"extension_threshold"`
	// Debounce is the minimum time between two counted reps.
	Debounce time.Duration `yaml:"debounce"`
	// WindowSize is the number of raw samples averaged.
	WindowSize int `yaml:"window_size"`
}

// DefaultConfig returns squat defaults.
func DefaultConfig() Config {
	return Config{
		FlexionThreshold:   85,
		ExtensionThreshold: 165,
		Debounce:           700 * time.Millisecond,
		WindowSize:         5,
	}
}

// Validate rejects configurations the state machine cannot run safely.
func (c Config) Validate() error {
	if math.IsNaN(c.FlexionThreshold) || math.IsInf(c.FlexionThreshold, 0) ||
		math.IsNaN(c.ExtensionThreshold) || math.IsInf(c.ExtensionThreshold, 0) {
		return fmt.Errorf("thresholds must be finite")
	}
	if c.FlexionThreshold <= 0 || c.FlexionThreshold >= 180 {
		return fmt.Errorf("flexion_threshold %.1f must be within (0, 180)", c.FlexionThreshold)
	}
	if c.ExtensionThreshold <= 0 || c.ExtensionThreshold >= 180 {
		return fmt.Errorf("extension_threshold %.1f must be within (0, 180)", c.ExtensionThreshold)
	}
	if c.FlexionThreshold >= c.ExtensionThreshold {
		return fmt.Errorf("flexion_threshold %.1f must be below extension_threshold %.1f",
			c.FlexionThreshold, c.ExtensionThreshold)
	}
	if c.Debounce < 0 {
		return fmt.Errorf("debounce %s must not be negative", c.Debounce)
	}
	if c.WindowSize < 1 || c.WindowSize > MaxWindowSize {
		return fmt.Errorf("window_size %d must be within [1, %d]", c.WindowSize, MaxWindowSize)
	}
	return nil
}
