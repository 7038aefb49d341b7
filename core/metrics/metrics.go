package metrics

import (
	"time"

	"github.com/sevaops/seva/core/model"
)

// AssignmentRecord represents one committed assignment to be recorded.
type AssignmentRecord struct {
	AssignmentID string
	RequestID    string
	VolunteerID  string
	RequestType  model.RequestType
	Priority     model.Priority
	Method       model.AssignmentMethod
	Score        float64
	AssignedAt   time.Time
}

// MetricsSink records committed assignments for observability purposes.
type MetricsSink interface {
	RecordAssignment(recs []AssignmentRecord) error
}

// TransitionRecord captures one assignment state change.
type TransitionRecord struct {
	AssignmentID string
	VolunteerID  string
	From         model.AssignmentStatus
	To           model.AssignmentStatus
	Time         time.Time
}

// TransitionRecorder is implemented by sinks able to record state changes.
type TransitionRecorder interface {
	RecordTransition(rec TransitionRecord) error
}

// RepairRecord captures one corrective write made by the reconciler.
type RepairRecord struct {
	VolunteerID string
	From        model.AvailabilityStatus
	To          model.AvailabilityStatus
	Time        time.Time
}

// RepairRecorder is implemented by sinks able to record reconciler repairs.
type RepairRecorder interface {
	RecordRepairs(recs []RepairRecord) error
}

// RejectionRecord captures an auto-assign attempt that committed nothing.
type RejectionRecord struct {
	RequestID string
	Reason    string
	BestScore float64
	Time      time.Time
}

// RejectionRecorder is implemented by sinks able to record rejected attempts.
type RejectionRecorder interface {
	RecordRejection(rec RejectionRecord) error
}

// FloorRecorder is implemented by sinks able to expose the tuner's advisory
// confidence floor.
type FloorRecorder interface {
	RecordSuggestedFloor(v float64) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordAssignment([]AssignmentRecord) error { return nil }
func (NopSink) RecordTransition(TransitionRecord) error   { return nil }
func (NopSink) RecordRepairs([]RepairRecord) error        { return nil }
func (NopSink) RecordRejection(RejectionRecord) error     { return nil }
func (NopSink) RecordSuggestedFloor(float64) error        { return nil }
