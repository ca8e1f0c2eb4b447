package counter

import (
	"math"
	"testing"
	"time"
)

// TestDefaultConfigValid guards the shipped defaults.
func TestDefaultConfigValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

// TestValidateRejects covers each class of invalid configuration. These must
// fail at setup time, before any frame is processed.
func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"flexion equals extension", func(c *Config) { c.FlexionThreshold = c.ExtensionThreshold }},
		{"flexion above extension", func(c *Config) { c.FlexionThreshold, c.ExtensionThreshold = 170, 90 }},
		{"zero flexion", func(c *Config) { c.FlexionThreshold = 0 }},
		{"extension at 180", func(c *Config) { c.ExtensionThreshold = 180 }},
		{"NaN threshold", func(c *Config) { c.FlexionThreshold = math.NaN() }},
		{"infinite threshold", func(c *Config) { c.ExtensionThreshold = math.Inf(1) }},
		{"negative debounce", func(c *Config) { c.Debounce = -time.Second }},
		{"zero window", func(c *Config) { c.WindowSize = 0 }},
		{"huge window", func(c *Config) { c.WindowSize = MaxWindowSize + 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
			if _, err := New(cfg); err == nil {
				t.Error("New accepted invalid config")
			}
		})
	}
}

// TestValidateAcceptsZeroDebounce verifies that debounce may be disabled.
func TestValidateAcceptsZeroDebounce(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Debounce = 0
	cfg.WindowSize = 1
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
