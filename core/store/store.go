package store

import (
	"context"

	"github.com/sevaops/seva/core/events"
	"github.com/sevaops/seva/core/model"
)

// Table names used in change events emitted by the store implementations.
const (
	TableRequests    = "requests"
	TableVolunteers  = "volunteers"
	TableAssignments = "assignments"
	TableLocations   = "locations"
)

// ChangeDispatcher receives a tagged change event for every successful write.
// Dispatch must not block: it may be invoked while store locks are held, so
// implementations drop rather than wait on slow consumers.
type ChangeDispatcher interface {
	Dispatch(ev events.ChangeEvent)
}

// Store abstracts the hosted data layer consumed by the matching engine.
// Implementations must provide the conditional-write semantics documented on
// each method; the engine relies on them instead of client-side locking.
type Store interface {
	GetRequest(ctx context.Context, id string) (model.Request, error)
	// ListPendingRequests returns up to limit pending requests, oldest first.
	ListPendingRequests(ctx context.Context, limit int) ([]model.Request, error)
	// UpdateRequestStatus writes status only if the stored status still equals
	// expectedPrior. A mismatch returns ErrConflict and writes nothing.
	UpdateRequestStatus(ctx context.Context, id string, status, expectedPrior model.RequestStatus) error

	GetVolunteer(ctx context.Context, id string) (model.Volunteer, error)
	ListActiveVolunteers(ctx context.Context) ([]model.Volunteer, error)
	// FindVolunteersNear returns up to limit active volunteers within
	// radiusMeters of the given point. When requiredSkills is non-empty only
	// volunteers matching at least one skill tag are returned. An empty result
	// is a valid outcome, not an error.
	FindVolunteersNear(ctx context.Context, lat, lon, radiusMeters float64, requiredSkills []string, limit int) ([]model.Volunteer, error)
	UpdateVolunteerStatus(ctx context.Context, id string, status model.AvailabilityStatus) error

	// CreateAssignment atomically inserts the assignment, moves the request
	// from expectedRequestStatus to assigned and the volunteer to busy.
	// It returns ErrConflict when the request status no longer matches and
	// ErrVolunteerBusy when the volunteer already holds an active assignment.
	CreateAssignment(ctx context.Context, a model.Assignment, expectedRequestStatus model.RequestStatus) (model.Assignment, error)
	GetAssignment(ctx context.Context, id string) (model.Assignment, error)
	UpdateAssignment(ctx context.Context, a model.Assignment) error
	GetActiveAssignmentsForVolunteer(ctx context.Context, volunteerID string) ([]model.Assignment, error)
	GetAssignmentsForRequest(ctx context.Context, requestID string) ([]model.Assignment, error)
	// ActiveAssignmentCountByVolunteer returns the number of active assignments
	// per volunteer id, for volunteers that have at least one.
	ActiveAssignmentCountByVolunteer(ctx context.Context) (map[string]int, error)

	RecordLocation(ctx context.Context, loc model.Location) error
	// LatestLocation returns the most recent sample by UpdatedAt for the user,
	// or ErrNotFound when none exists.
	LatestLocation(ctx context.Context, userID string) (model.Location, error)
}
