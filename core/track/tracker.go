// Package track answers proximity questions for the UI collaborators:
// where is my counterpart, how fresh is that sample and how far away are they.
package track

import (
	"context"
	"fmt"
	"time"

	"github.com/sevaops/seva/core/model"
	"github.com/sevaops/seva/core/store"
)

// Config holds freshness settings for live tracking.
type Config struct {
	// StalenessThresholdSeconds is the age beyond which a sample is flagged
	// stale. Stale samples are still returned, annotated, never omitted.
	StalenessThresholdSeconds int `json:"staleness_threshold_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.StalenessThresholdSeconds <= 0 {
		c.StalenessThresholdSeconds = 120
	}
}

// TrackedLocation is a location sample annotated with freshness.
type TrackedLocation struct {
	Location model.Location `json:"location"`
	Stale    bool           `json:"stale"`
	// Age is how old the sample was when read ("last seen 3m ago").
	Age time.Duration `json:"age"`
}

// Tracker reads counterpart locations from the store's location feed.
type Tracker struct {
	store     store.Store
	threshold time.Duration
}

// NewTracker creates a Tracker.
func NewTracker(st store.Store, cfg Config) *Tracker {
	cfg.SetDefaults()
	return &Tracker{store: st, threshold: time.Duration(cfg.StalenessThresholdSeconds) * time.Second}
}

// CounterpartLocation returns the freshest sample for the user, annotated
// with staleness. Missing samples return store.ErrNotFound; staleness itself
// is informational and never an error.
func (t *Tracker) CounterpartLocation(ctx context.Context, userID string) (TrackedLocation, error) {
	loc, err := t.store.LatestLocation(ctx, userID)
	if err != nil {
		return TrackedLocation{}, fmt.Errorf("latest location for %s: %w", userID, err)
	}
	now := time.Now()
	return TrackedLocation{
		Location: loc,
		Stale:    loc.IsStale(now, t.threshold),
		Age:      loc.Age(now),
	}, nil
}

// DistanceETA returns the distance in meters between two users' freshest
// samples and a rough walking ETA.
func (t *Tracker) DistanceETA(ctx context.Context, userA, userB string) (float64, time.Duration, error) {
	a, err := t.CounterpartLocation(ctx, userA)
	if err != nil {
		return 0, 0, err
	}
	b, err := t.CounterpartLocation(ctx, userB)
	if err != nil {
		return 0, 0, err
	}
	d := a.Location.DistanceTo(b.Location)
	return d, model.ETAWalking(d), nil
}
