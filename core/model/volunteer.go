package model

import (
	"strings"
	"time"
)

// AvailabilityStatus is the derived availability of a volunteer. It is a
// cache of assignment state and is periodically repaired by the reconciler.
type AvailabilityStatus string

const (
	StatusAvailable AvailabilityStatus = "available"
	StatusBusy      AvailabilityStatus = "busy"
	StatusOnDuty    AvailabilityStatus = "on_duty"
	StatusOffline   AvailabilityStatus = "offline"
)

// Volunteer represents a responder registered for the event.
type Volunteer struct {
	ID            string             `json:"id"`
	Name          string             `json:"name,omitempty"`
	Skills        []string           `json:"skills"`
	Lat           float64            `json:"lat"`
	Lon           float64            `json:"lon"`
	LocationAt    time.Time          `json:"location_at"`
	RatingAverage float64            `json:"rating_average"` // 0..5
	IsActive      bool               `json:"is_active"`
	Availability  AvailabilityStatus `json:"availability_status"`
}

// HasSkill reports whether the volunteer lists a skill matching tag.
// Matching is case-insensitive and accepts substring containment in either
// direction, so "first aid" serves a required "aid" and vice versa.
func (v Volunteer) HasSkill(tag string) bool {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return false
	}
	for _, s := range v.Skills {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if strings.Contains(s, tag) || strings.Contains(tag, s) {
			return true
		}
	}
	return false
}

// Location returns the volunteer's last known position as a Location sample.
func (v Volunteer) Location() Location {
	return Location{UserID: v.ID, Lat: v.Lat, Lon: v.Lon, UpdatedAt: v.LocationAt}
}

// Assignable reports whether the volunteer may be offered work at all.
// Busy and offline volunteers stay assignable: the scorer penalises their
// availability instead of excluding them, so a high-urgency request can
// still reach someone already engaged.
func (v Volunteer) Assignable() bool {
	return v.IsActive
}
