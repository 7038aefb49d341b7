// Package simulator generates synthetic volunteers and requests to exercise
// the matching engine under load, for demos and capacity checks.
package simulator

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/sevaops/seva/core/dispatch"
	"github.com/sevaops/seva/core/model"
)

var simRng = rand.New(rand.NewSource(time.Now().UnixNano()))

// Config holds parameters for the simulator.
type Config struct {
	Volunteers int
	Requests   int
	// CenterLat/CenterLon anchor the simulated area.
	CenterLat float64
	CenterLon float64
	// SpreadMeters scatters actors uniformly within this radius.
	SpreadMeters float64
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Volunteers <= 0 {
		c.Volunteers = 50
	}
	if c.Requests <= 0 {
		c.Requests = 20
	}
	if c.CenterLat == 0 && c.CenterLon == 0 {
		// Sangam area, Prayagraj.
		c.CenterLat = 25.4358
		c.CenterLon = 81.8463
	}
	if c.SpreadMeters <= 0 {
		c.SpreadMeters = 3000
	}
}

var skillPool = [][]string{
	{"first aid", "cpr"},
	{"crowd control"},
	{"navigation", "local language"},
	{"cleaning"},
	{"search", "communication"},
	{},
}

var requestTypes = []model.RequestType{
	model.RequestMedical, model.RequestEmergency, model.RequestLostPerson,
	model.RequestSanitation, model.RequestCrowdManagement, model.RequestGuidance,
	model.RequestGeneral,
}

var priorities = []model.Priority{model.PriorityLow, model.PriorityMedium, model.PriorityHigh}

// Seeder is the subset of store behaviour the simulator needs to plant actors.
type Seeder interface {
	PutRequest(r model.Request)
	PutVolunteer(v model.Volunteer)
}

// Result summarises one simulated load run.
type Result struct {
	Volunteers int
	Requests   int
	Assigned   int
	Skipped    int
}

// Run seeds the store with random volunteers and requests, then drains the
// pending pool through batch auto-assign.
func Run(ctx context.Context, cfg Config, seeder Seeder, mgr *dispatch.AssignmentManager) (Result, error) {
	cfg.SetDefaults()
	if seeder == nil || mgr == nil {
		return Result{}, fmt.Errorf("simulator requires a seeder and a manager")
	}

	now := time.Now()
	for i := 0; i < cfg.Volunteers; i++ {
		lat, lon := scatter(cfg)
		seeder.PutVolunteer(model.Volunteer{
			ID:            fmt.Sprintf("vol%04d", i+1),
			Name:          fmt.Sprintf("Volunteer %d", i+1),
			Skills:        skillPool[simRng.Intn(len(skillPool))],
			Lat:           lat,
			Lon:           lon,
			LocationAt:    now,
			RatingAverage: 2.5 + simRng.Float64()*2.5,
			IsActive:      true,
			Availability:  model.StatusAvailable,
		})
	}
	for i := 0; i < cfg.Requests; i++ {
		lat, lon := scatter(cfg)
		seeder.PutRequest(model.Request{
			ID:          fmt.Sprintf("req%04d", i+1),
			RequesterID: fmt.Sprintf("pil%04d", i+1),
			Type:        requestTypes[simRng.Intn(len(requestTypes))],
			Priority:    priorities[simRng.Intn(len(priorities))],
			Lat:         lat,
			Lon:         lon,
			Status:      model.RequestPending,
			CreatedAt:   now.Add(-time.Duration(i) * time.Second),
		})
	}

	res, err := mgr.BatchAutoAssign(ctx, cfg.Requests, mgr.MinScore())
	if err != nil {
		return Result{}, fmt.Errorf("batch assign: %w", err)
	}
	return Result{
		Volunteers: cfg.Volunteers,
		Requests:   cfg.Requests,
		Assigned:   res.AssignedCount,
		Skipped:    res.FailedCount,
	}, nil
}

// scatter picks a point uniformly within SpreadMeters of the center.
func scatter(cfg Config) (float64, float64) {
	// Meters-to-degrees approximation is fine at city scale.
	r := cfg.SpreadMeters * simRng.Float64()
	theta := 2 * math.Pi * simRng.Float64()
	dLat := r * math.Cos(theta) / 111320.0
	dLon := r * math.Sin(theta) / 111320.0
	return cfg.CenterLat + dLat, cfg.CenterLon + dLon
}
