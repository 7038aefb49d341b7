package model

import (
	"fmt"
	"time"
)

// AssignmentStatus tracks an assignment through its state machine.
type AssignmentStatus string

const (
	AssignmentPending    AssignmentStatus = "pending"
	AssignmentAccepted   AssignmentStatus = "accepted"
	AssignmentInProgress AssignmentStatus = "in_progress"
	AssignmentCompleted  AssignmentStatus = "completed"
	AssignmentCancelled  AssignmentStatus = "cancelled"
)

// AssignmentMethod records how the assignment was made.
type AssignmentMethod string

const (
	MethodAuto   AssignmentMethod = "auto"
	MethodManual AssignmentMethod = "manual"
)

// Assignment links a request to a volunteer. RequestID and VolunteerID are
// immutable after creation; only Status and the stamped timestamps change.
type Assignment struct {
	ID                 string           `json:"id"`
	RequestID          string           `json:"request_id"`
	VolunteerID        string           `json:"volunteer_id"`
	Status             AssignmentStatus `json:"status"`
	Method             AssignmentMethod `json:"method"`
	MatchScore         float64          `json:"match_score"`
	AssignedAt         time.Time        `json:"assigned_at"`
	AcceptedAt         *time.Time       `json:"accepted_at,omitempty"`
	StartedAt          *time.Time       `json:"started_at,omitempty"`
	CompletedAt        *time.Time       `json:"completed_at,omitempty"`
	CompletionLocation *Location        `json:"completion_location,omitempty"`
}

// IsActive reports whether the assignment still occupies its volunteer.
func (a Assignment) IsActive() bool {
	switch a.Status {
	case AssignmentPending, AssignmentAccepted, AssignmentInProgress:
		return true
	}
	return false
}

// IsTerminal reports whether the assignment can never change state again.
func (a Assignment) IsTerminal() bool {
	return a.Status == AssignmentCompleted || a.Status == AssignmentCancelled
}

// assignmentTransitions enumerates the legal forward moves. The
// pending -> in_progress fast path covers auto-assigned tasks the volunteer
// starts without an explicit accept.
var assignmentTransitions = map[AssignmentStatus][]AssignmentStatus{
	AssignmentPending:    {AssignmentAccepted, AssignmentInProgress, AssignmentCancelled},
	AssignmentAccepted:   {AssignmentInProgress, AssignmentCancelled},
	AssignmentInProgress: {AssignmentCompleted},
}

// CanTransition reports whether moving from the current status to target is
// legal. Terminal states have no outgoing transitions and nothing moves
// backward.
func (a Assignment) CanTransition(target AssignmentStatus) bool {
	for _, next := range assignmentTransitions[a.Status] {
		if next == target {
			return true
		}
	}
	return false
}

// Validate checks referential fields set at creation time.
func (a Assignment) Validate() error {
	if a.RequestID == "" || a.VolunteerID == "" {
		return fmt.Errorf("assignment requires request and volunteer ids")
	}
	if a.Method != MethodAuto && a.Method != MethodManual {
		return fmt.Errorf("assignment %s: unknown method %q", a.ID, a.Method)
	}
	return nil
}
