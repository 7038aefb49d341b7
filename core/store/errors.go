package store

import "errors"

var (
	// ErrNotFound is returned when the referenced record does not exist.
	ErrNotFound = errors.New("store: record not found")
	// ErrConflict is returned when a conditional write loses its race: the
	// stored state no longer matches the expected prior state.
	ErrConflict = errors.New("store: conditional write conflict")
	// ErrVolunteerBusy is returned by CreateAssignment when the volunteer
	// already holds an assignment in an active status. One active assignment
	// per volunteer is enforced here, at the data layer, not by call ordering.
	ErrVolunteerBusy = errors.New("store: volunteer already has an active assignment")
)
