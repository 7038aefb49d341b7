package dispatch

import (
	"fmt"

	"github.com/sevaops/seva/core/match"
)

// Config defines assignment-related settings.
type Config struct {
	// MinScore is the single auto-assign confidence floor. The source system
	// used several inconsistent values for this; one configurable knob
	// replaces them all.
	MinScore float64 `json:"min_score"`
	// NotifyTimeoutSeconds bounds the best-effort notification call.
	NotifyTimeoutSeconds int `json:"notify_timeout_seconds"`
	// BatchMaxCount caps how many pending requests one batch run processes.
	BatchMaxCount int                `json:"batch_max_count"`
	Finder        match.FinderConfig `json:"finder"`
	Tuner         TunerConfig        `json:"tuner"`
}

// TunerConfig shapes the advisory threshold tuner: a rolling window of
// winning scores whose configured quantile is surfaced as a suggested floor.
type TunerConfig struct {
	Window   int     `json:"window"`
	Quantile float64 `json:"quantile"`
}

// SetDefaults applies sane defaults.
func (c *TunerConfig) SetDefaults() {
	if c.Window <= 0 {
		c.Window = 100
	}
	if c.Quantile <= 0 || c.Quantile >= 1 {
		c.Quantile = 0.1
	}
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.MinScore <= 0 {
		c.MinScore = 0.6
	}
	if c.NotifyTimeoutSeconds <= 0 {
		c.NotifyTimeoutSeconds = 5
	}
	if c.BatchMaxCount <= 0 {
		c.BatchMaxCount = 20
	}
	c.Finder.SetDefaults()
	c.Tuner.SetDefaults()
}

// Validate checks the configured values.
func (c Config) Validate() error {
	if c.MinScore < 0 || c.MinScore > 1 {
		return fmt.Errorf("min_score must be within [0,1], got %f", c.MinScore)
	}
	return nil
}
