package match

import "github.com/sevaops/seva/core/model"

// requiredSkills maps a request type to the volunteer skill tags that
// plausibly serve it. Types without an entry (general) accept any active
// volunteer in range and score a neutral skill baseline.
var requiredSkills = map[model.RequestType][]string{
	model.RequestMedical:         {"medical", "first aid", "doctor", "nurse"},
	model.RequestEmergency:       {"emergency", "medical", "first aid", "rescue"},
	model.RequestLostPerson:      {"search", "communication", "crowd"},
	model.RequestSanitation:      {"sanitation", "cleaning", "hygiene"},
	model.RequestCrowdManagement: {"crowd control", "security", "queue"},
	model.RequestGuidance:        {"guidance", "navigation", "local knowledge", "language"},
}

// RequiredSkills returns the skill tags mapped to the request type, or nil
// when the type has no mapping.
func RequiredSkills(t model.RequestType) []string {
	return requiredSkills[t]
}
