package dispatch

import (
	"errors"
	"fmt"

	"github.com/sevaops/seva/core/model"
)

var (
	// ErrRequestNotFound is returned when the request id resolves to nothing.
	ErrRequestNotFound = errors.New("dispatch: request not found")
	// ErrRequestNotPending is returned when auto-assign is attempted on a
	// request that already left the pending state. No writes are performed.
	ErrRequestNotPending = errors.New("dispatch: request is not pending")
	// ErrNoCandidates is returned when nobody is in range for the request.
	ErrNoCandidates = errors.New("dispatch: no candidates found")
	// ErrWriteConflict is returned when the commit lost its race and the
	// one fresh-read retry lost again. The caller should refresh and decide
	// against current state rather than blindly resubmit.
	ErrWriteConflict = errors.New("dispatch: assignment write conflict")
	// ErrAssignmentNotFound is returned for unknown assignment ids.
	ErrAssignmentNotFound = errors.New("dispatch: assignment not found")
)

// ScoreBelowThresholdError reports that the best candidate scored under the
// configured confidence floor. It carries the score so the caller can offer
// a manual override.
type ScoreBelowThresholdError struct {
	Score     float64
	Threshold float64
}

func (e *ScoreBelowThresholdError) Error() string {
	return fmt.Sprintf("dispatch: best score %.2f below threshold %.2f", e.Score, e.Threshold)
}

// InvalidTransitionError reports an illegal state machine move.
type InvalidTransitionError struct {
	AssignmentID string
	From         model.AssignmentStatus
	To           model.AssignmentStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("dispatch: assignment %s cannot move %s -> %s", e.AssignmentID, e.From, e.To)
}
