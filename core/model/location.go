package model

import (
	"math"
	"time"
)

const earthRadiusMeters = 6371000.0

// WalkingSpeedKmh is the assumed pace for ETA estimates. This is a rough
// on-foot figure for a crowded venue, not a routing computation.
const WalkingSpeedKmh = 5.0

// Location is a single position sample for a user.
type Location struct {
	UserID    string    `json:"user_id"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Haversine returns the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	la1 := lat1 * math.Pi / 180
	la2 := lat2 * math.Pi / 180
	dLa := (lat2 - lat1) * math.Pi / 180
	dLo := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLa/2)*math.Sin(dLa/2) +
		math.Cos(la1)*math.Cos(la2)*math.Sin(dLo/2)*math.Sin(dLo/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// DistanceTo returns the distance in meters from l to other.
func (l Location) DistanceTo(other Location) float64 {
	return Haversine(l.Lat, l.Lon, other.Lat, other.Lon)
}

// Age returns how old the sample is at now.
func (l Location) Age(now time.Time) time.Duration {
	return now.Sub(l.UpdatedAt)
}

// IsStale reports whether the sample is older than threshold at now.
// Staleness is informational: stale samples are still shown, annotated with
// their age, never dropped.
func (l Location) IsStale(now time.Time, threshold time.Duration) bool {
	return l.Age(now) > threshold
}

// ETAWalking estimates the time to cover distanceMeters on foot.
func ETAWalking(distanceMeters float64) time.Duration {
	if distanceMeters <= 0 {
		return 0
	}
	hours := (distanceMeters / 1000) / WalkingSpeedKmh
	return time.Duration(hours * float64(time.Hour))
}

// Newest returns the more recent of two samples by UpdatedAt. When several
// samples exist for a user only the newest is current; arrival order of
// realtime pushes is irrelevant.
func Newest(a, b Location) Location {
	if b.UpdatedAt.After(a.UpdatedAt) {
		return b
	}
	return a
}
