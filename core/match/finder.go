package match

import (
	"context"
	"fmt"

	"github.com/sevaops/seva/core/model"
	"github.com/sevaops/seva/core/store"
)

// FinderConfig bounds the candidate search.
type FinderConfig struct {
	// RadiusMeters is the maximum search radius around the request.
	RadiusMeters float64 `json:"radius_meters"`
	// Limit caps the number of raw candidates returned.
	Limit int `json:"limit"`
}

// SetDefaults applies sane defaults.
func (c *FinderConfig) SetDefaults() {
	if c.RadiusMeters <= 0 {
		c.RadiusMeters = 5000
	}
	if c.Limit <= 0 {
		c.Limit = 10
	}
}

// Finder retrieves raw match candidates for a request. It does not rank;
// ordering beyond the store's stable listing is the scorer's job.
type Finder struct {
	store store.Store
	cfg   FinderConfig
}

// NewFinder creates a Finder over the given store.
func NewFinder(st store.Store, cfg FinderConfig) *Finder {
	cfg.SetDefaults()
	return &Finder{store: st, cfg: cfg}
}

// Candidates returns the volunteers within radius that plausibly serve the
// request type, each annotated with its distance to the request. An empty
// slice is a valid terminal outcome meaning nobody is in range.
func (f *Finder) Candidates(ctx context.Context, req model.Request) ([]model.MatchCandidate, error) {
	skills := RequiredSkills(req.Type)
	vols, err := f.store.FindVolunteersNear(ctx, req.Lat, req.Lon, f.cfg.RadiusMeters, skills, f.cfg.Limit)
	if err != nil {
		return nil, fmt.Errorf("find volunteers near request %s: %w", req.ID, err)
	}
	cands := make([]model.MatchCandidate, 0, len(vols))
	for _, v := range vols {
		cands = append(cands, model.MatchCandidate{
			Volunteer:      v,
			DistanceMeters: model.Haversine(req.Lat, req.Lon, v.Lat, v.Lon),
		})
	}
	return cands, nil
}
