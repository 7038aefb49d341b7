package model

// MatchCandidate is an ephemeral pairing of a volunteer with a request,
// carrying the score breakdown. It is never persisted.
type MatchCandidate struct {
	Volunteer         Volunteer
	DistanceMeters    float64
	SkillScore        float64
	DistanceScore     float64
	AvailabilityScore float64
	UrgencyBonus      float64
	// FinalScore is the weighted sum of the components, clamped to [0,1].
	FinalScore float64
}
