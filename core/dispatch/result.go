package dispatch

// Reason codes for auto-assign outcomes that committed nothing.
const (
	ReasonNotPending     = "request_not_pending"
	ReasonNoCandidates   = "no_candidates_found"
	ReasonBelowThreshold = "score_below_threshold"
	ReasonWriteConflict  = "assignment_write_conflict"
	ReasonStoreError     = "store_error"
)

// AssignResult is the outcome of one auto-assign attempt.
type AssignResult struct {
	RequestID    string  `json:"request_id"`
	Assigned     bool    `json:"assigned"`
	VolunteerID  string  `json:"volunteer_id,omitempty"`
	AssignmentID string  `json:"assignment_id,omitempty"`
	Score        float64 `json:"score,omitempty"`
	// Reason is set when Assigned is false.
	Reason string `json:"reason,omitempty"`
}

// BatchResult aggregates the per-request outcomes of one batch run.
type BatchResult struct {
	AssignedCount int            `json:"assigned_count"`
	FailedCount   int            `json:"failed_count"`
	Details       []AssignResult `json:"details"`
}
