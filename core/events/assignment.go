package events

import (
	"time"

	"github.com/sevaops/seva/core/model"
)

// AssignmentEvent is published when the orchestrator commits an assignment.
type AssignmentEvent struct {
	Assignment model.Assignment
	Score      float64
}

// TransitionEvent is published for each assignment state change.
type TransitionEvent struct {
	AssignmentID string
	VolunteerID  string
	From         model.AssignmentStatus
	To           model.AssignmentStatus
	At           time.Time
}

// RepairEvent is published when the reconciler corrects a volunteer's
// availability status.
type RepairEvent struct {
	VolunteerID string
	From        model.AvailabilityStatus
	To          model.AvailabilityStatus
	At          time.Time
}
