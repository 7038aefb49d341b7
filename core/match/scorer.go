package match

import (
	"strings"

	"github.com/sevaops/seva/core/model"
)

// Scorer converts a candidate/request pair into a bounded match score using
// a weighted sum of skill, distance, availability and urgency components.
type Scorer struct {
	SkillWeight        float64
	DistanceWeight     float64
	AvailabilityWeight float64
	UrgencyWeight      float64
}

// NewScorer returns a scorer with the reference weights.
func NewScorer() Scorer {
	return Scorer{
		SkillWeight:        0.4,
		DistanceWeight:     0.3,
		AvailabilityWeight: 0.2,
		UrgencyWeight:      0.1,
	}
}

// Score fills in the component scores and FinalScore of the candidate.
// FinalScore is always clamped to [0,1].
func (s Scorer) Score(cand model.MatchCandidate, req model.Request) model.MatchCandidate {
	cand.SkillScore = skillMatch(cand.Volunteer, req.Type)
	cand.DistanceScore = distanceScore(cand.DistanceMeters)
	cand.AvailabilityScore = availabilityScore(cand.Volunteer)
	cand.UrgencyBonus = urgencyBonus(req.Priority)

	score := s.SkillWeight*cand.SkillScore +
		s.DistanceWeight*cand.DistanceScore +
		s.AvailabilityWeight*cand.AvailabilityScore +
		s.UrgencyWeight*cand.UrgencyBonus
	cand.FinalScore = clamp01(score)
	return cand
}

// ScoreAll scores every candidate, preserving input order.
func (s Scorer) ScoreAll(cands []model.MatchCandidate, req model.Request) []model.MatchCandidate {
	out := make([]model.MatchCandidate, len(cands))
	for i, c := range cands {
		out[i] = s.Score(c, req)
	}
	return out
}

// skillMatch measures how much of the volunteer's declared skill set serves
// the request type: matched volunteer skills over total declared skills, so a
// single relevant skill scores a full 1.0 and unrelated skills dilute the
// ratio. Types with no mapping score a neutral 0.7 baseline; volunteers with
// no declared skills a 0.3 low-confidence floor.
func skillMatch(v model.Volunteer, t model.RequestType) float64 {
	required := RequiredSkills(t)
	if len(required) == 0 {
		return 0.7
	}
	if len(v.Skills) == 0 {
		return 0.3
	}
	matched := 0
	for _, skill := range v.Skills {
		if skillServes(skill, required) {
			matched++
		}
	}
	score := float64(matched) / float64(len(v.Skills))
	// Skills literally naming the request type earn a small bonus each.
	typeStr := strings.ToLower(string(t))
	for _, skill := range v.Skills {
		if strings.Contains(strings.ToLower(skill), typeStr) {
			score += 0.1
		}
	}
	if score > 1 {
		score = 1
	}
	return score
}

// skillServes reports whether one declared skill covers any of the required
// tags. Matching is case-insensitive substring containment in either
// direction, mirroring Volunteer.HasSkill.
func skillServes(skill string, required []string) bool {
	skill = strings.ToLower(strings.TrimSpace(skill))
	if skill == "" {
		return false
	}
	for _, tag := range required {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if strings.Contains(skill, tag) || strings.Contains(tag, skill) {
			return true
		}
	}
	return false
}

// distanceScore is a step function of the distance in meters. It is
// monotonically non-increasing with distance.
func distanceScore(meters float64) float64 {
	switch {
	case meters <= 1000:
		return 1.0
	case meters <= 3000:
		return 0.8
	case meters <= 5000:
		return 0.6
	case meters <= 10000:
		return 0.4
	default:
		return 0.2
	}
}

// availabilityScore starts from the volunteer's availability status and adds
// a rating bonus. Busy volunteers keep a non-zero base so that high-urgency
// requests can still reach them; on_duty is a refinement of busy and scores
// the same base.
func availabilityScore(v model.Volunteer) float64 {
	var base float64
	switch v.Availability {
	case model.StatusAvailable:
		base = 1.0
	case model.StatusBusy, model.StatusOnDuty:
		base = 0.3
	case model.StatusOffline:
		base = 0.1
	default:
		base = 0.5
	}
	score := base + v.RatingAverage/5*0.2
	if score > 1 {
		score = 1
	}
	return score
}

func urgencyBonus(p model.Priority) float64 {
	switch p {
	case model.PriorityHigh:
		return 1.0
	case model.PriorityMedium:
		return 0.7
	case model.PriorityLow:
		return 0.4
	default:
		return 0.5
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
