package match

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sevaops/seva/core/model"
)

func TestScoreIdealMedicalCandidate(t *testing.T) {
	// High-priority medical request, available 5-star medic 500m away.
	req := model.Request{ID: "r1", Type: model.RequestMedical, Priority: model.PriorityHigh}
	cand := model.MatchCandidate{
		Volunteer: model.Volunteer{
			ID:            "v1",
			Skills:        []string{"medical", "first aid", "doctor", "nurse"},
			Availability:  model.StatusAvailable,
			RatingAverage: 5,
			IsActive:      true,
		},
		DistanceMeters: 500,
	}
	got := NewScorer().Score(cand, req)
	assert.InDelta(t, 1.0, got.SkillScore, 0.001)
	assert.Equal(t, 1.0, got.DistanceScore)
	assert.Equal(t, 1.0, got.AvailabilityScore)
	assert.Equal(t, 1.0, got.UrgencyBonus)
	assert.InDelta(t, 1.0, got.FinalScore, 0.001)
}

func TestScoreSingleSkillMedicalCandidate(t *testing.T) {
	// One declared skill that serves the request must score a full skill
	// match; a narrow skill set is not penalized.
	req := model.Request{ID: "r1", Type: model.RequestMedical, Priority: model.PriorityHigh}
	cand := model.MatchCandidate{
		Volunteer: model.Volunteer{
			ID:            "v1",
			Skills:        []string{"medical"},
			Availability:  model.StatusAvailable,
			RatingAverage: 5,
			IsActive:      true,
		},
		DistanceMeters: 500,
	}
	got := NewScorer().Score(cand, req)
	assert.InDelta(t, 1.0, got.SkillScore, 0.001)
	assert.InDelta(t, 1.0, got.FinalScore, 0.001)
}

func TestSkillMatchUnrelatedSkillsDilute(t *testing.T) {
	// One of three declared skills serves the request.
	v := model.Volunteer{Skills: []string{"first aid", "cooking", "photography"}}
	got := skillMatch(v, model.RequestMedical)
	assert.InDelta(t, 1.0/3.0, got, 0.001)
}

func TestSkillMatchBaselines(t *testing.T) {
	// No mapping for general requests: neutral baseline.
	got := skillMatch(model.Volunteer{Skills: []string{"anything"}}, model.RequestGeneral)
	assert.Equal(t, 0.7, got)

	// Mapped type but volunteer declares nothing: low-confidence floor.
	got = skillMatch(model.Volunteer{}, model.RequestMedical)
	assert.Equal(t, 0.3, got)
}

func TestSkillMatchTypeNameBonus(t *testing.T) {
	// One of two declared skills matched, plus 0.1 for the skill containing
	// the literal type string.
	v := model.Volunteer{Skills: []string{"sanitation work", "cooking"}}
	got := skillMatch(v, model.RequestSanitation)
	assert.InDelta(t, 0.5+0.1, got, 0.001)
}

func TestSkillMatchCapped(t *testing.T) {
	v := model.Volunteer{Skills: []string{"medical", "first aid", "doctor", "nurse", "medical emergency", "medical camp"}}
	got := skillMatch(v, model.RequestMedical)
	assert.Equal(t, 1.0, got)
}

func TestDistanceScoreMonotonicallyNonIncreasing(t *testing.T) {
	distances := []float64{0, 250, 999, 1000, 1001, 2500, 3000, 4999, 5000, 7500, 10000, 10001, 50000}
	prev := 1.1
	for _, d := range distances {
		got := distanceScore(d)
		if got > prev {
			t.Fatalf("distanceScore increased at %fm: %f > %f", d, got, prev)
		}
		prev = got
	}
	assert.Equal(t, 1.0, distanceScore(1000))
	assert.Equal(t, 0.8, distanceScore(3000))
	assert.Equal(t, 0.6, distanceScore(5000))
	assert.Equal(t, 0.4, distanceScore(10000))
	assert.Equal(t, 0.2, distanceScore(10001))
}

func TestAvailabilityScore(t *testing.T) {
	cases := []struct {
		status model.AvailabilityStatus
		rating float64
		want   float64
	}{
		{model.StatusAvailable, 0, 1.0},
		{model.StatusAvailable, 5, 1.0}, // capped
		{model.StatusBusy, 0, 0.3},
		{model.StatusBusy, 5, 0.5},
		{model.StatusOffline, 0, 0.1},
		{"", 0, 0.5},
		// on_duty is busy with extra detail, not a better state.
		{model.StatusOnDuty, 0, 0.3},
		{model.StatusOnDuty, 2.5, 0.4},
	}
	for _, c := range cases {
		v := model.Volunteer{Availability: c.status, RatingAverage: c.rating}
		assert.InDelta(t, c.want, availabilityScore(v), 0.001, "status %q rating %f", c.status, c.rating)
	}
}

func TestFinalScoreAlwaysClamped(t *testing.T) {
	priorities := []model.Priority{model.PriorityLow, model.PriorityMedium, model.PriorityHigh, ""}
	statuses := []model.AvailabilityStatus{model.StatusAvailable, model.StatusBusy, model.StatusOffline, model.StatusOnDuty, ""}
	types := []model.RequestType{model.RequestMedical, model.RequestGeneral, model.RequestGuidance, "unknown_type"}
	distances := []float64{0, 999, 5000, 100000}
	ratings := []float64{0, 2.5, 5}

	s := NewScorer()
	for _, p := range priorities {
		for _, st := range statuses {
			for _, ty := range types {
				for _, d := range distances {
					for _, r := range ratings {
						cand := model.MatchCandidate{
							Volunteer:      model.Volunteer{Skills: []string{"medical", "medical help"}, Availability: st, RatingAverage: r},
							DistanceMeters: d,
						}
						got := s.Score(cand, model.Request{Type: ty, Priority: p})
						if got.FinalScore < 0 || got.FinalScore > 1 {
							t.Fatalf("final score out of range: %f (%v %v %v %f %f)", got.FinalScore, p, st, ty, d, r)
						}
					}
				}
			}
		}
	}
}

func TestScoreAllPreservesOrder(t *testing.T) {
	req := model.Request{Type: model.RequestGeneral, Priority: model.PriorityLow}
	cands := []model.MatchCandidate{
		{Volunteer: model.Volunteer{ID: "a"}, DistanceMeters: 100},
		{Volunteer: model.Volunteer{ID: "b"}, DistanceMeters: 9000},
	}
	got := NewScorer().ScoreAll(cands, req)
	assert.Equal(t, "a", got[0].Volunteer.ID)
	assert.Equal(t, "b", got[1].Volunteer.ID)
	assert.Greater(t, got[0].FinalScore, got[1].FinalScore)
}
