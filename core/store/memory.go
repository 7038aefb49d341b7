package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sevaops/seva/core/events"
	"github.com/sevaops/seva/core/model"
)

// MemoryStore is a thread-safe in-memory Store used for tests and local runs.
// It honours the same conditional-write contract as the durable backends.
type MemoryStore struct {
	mu          sync.RWMutex
	requests    map[string]model.Request
	volunteers  map[string]model.Volunteer
	assignments map[string]model.Assignment
	locations   map[string][]model.Location
	changes     ChangeDispatcher
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests:    map[string]model.Request{},
		volunteers:  map[string]model.Volunteer{},
		assignments: map[string]model.Assignment{},
		locations:   map[string][]model.Location{},
	}
}

// SetChangeFeed installs the dispatcher that receives a change event for
// every successful write. Pass nil to stop emitting.
func (s *MemoryStore) SetChangeFeed(d ChangeDispatcher) {
	s.mu.Lock()
	s.changes = d
	s.mu.Unlock()
}

// emit pushes a change event to the feed, if one is installed. Callers hold
// s.mu; the dispatcher contract requires Dispatch not to block.
func (s *MemoryStore) emit(kind events.ChangeKind, table, id string, rec any) {
	if s.changes == nil {
		return
	}
	s.changes.Dispatch(events.ChangeEvent{
		Kind:      kind,
		Table:     table,
		RecordID:  id,
		Record:    rec,
		Timestamp: time.Now(),
	})
}

// PutRequest inserts or replaces a request. Seeding helper, not part of Store.
func (s *MemoryStore) PutRequest(r model.Request) {
	s.mu.Lock()
	s.requests[r.ID] = r
	s.emit(events.ChangeInsert, TableRequests, r.ID, r)
	s.mu.Unlock()
}

// PutVolunteer inserts or replaces a volunteer. Seeding helper, not part of Store.
func (s *MemoryStore) PutVolunteer(v model.Volunteer) {
	s.mu.Lock()
	s.volunteers[v.ID] = v
	s.emit(events.ChangeInsert, TableVolunteers, v.ID, v)
	s.mu.Unlock()
}

func (s *MemoryStore) GetRequest(_ context.Context, id string) (model.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return model.Request{}, ErrNotFound
	}
	return r, nil
}

func (s *MemoryStore) ListPendingRequests(_ context.Context, limit int) ([]model.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []model.Request
	for _, r := range s.requests {
		if r.Status == model.RequestPending {
			res = append(res, r)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (s *MemoryStore) UpdateRequestStatus(_ context.Context, id string, status, expectedPrior model.RequestStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return ErrNotFound
	}
	if r.Status != expectedPrior {
		return ErrConflict
	}
	r.Status = status
	s.requests[id] = r
	s.emit(events.ChangeUpdate, TableRequests, id, r)
	return nil
}

func (s *MemoryStore) GetVolunteer(_ context.Context, id string) (model.Volunteer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.volunteers[id]
	if !ok {
		return model.Volunteer{}, ErrNotFound
	}
	return v, nil
}

func (s *MemoryStore) ListActiveVolunteers(_ context.Context) ([]model.Volunteer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []model.Volunteer
	for _, v := range s.volunteers {
		if v.IsActive {
			res = append(res, v)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (s *MemoryStore) FindVolunteersNear(_ context.Context, lat, lon, radiusMeters float64, requiredSkills []string, limit int) ([]model.Volunteer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []model.Volunteer
	for _, v := range s.volunteers {
		if !v.Assignable() {
			continue
		}
		if model.Haversine(lat, lon, v.Lat, v.Lon) > radiusMeters {
			continue
		}
		if len(requiredSkills) > 0 && !matchesAny(v, requiredSkills) {
			continue
		}
		res = append(res, v)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func matchesAny(v model.Volunteer, tags []string) bool {
	for _, t := range tags {
		if v.HasSkill(strings.TrimSpace(t)) {
			return true
		}
	}
	return false
}

func (s *MemoryStore) UpdateVolunteerStatus(_ context.Context, id string, status model.AvailabilityStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.volunteers[id]
	if !ok {
		return ErrNotFound
	}
	v.Availability = status
	s.volunteers[id] = v
	s.emit(events.ChangeUpdate, TableVolunteers, id, v)
	return nil
}

func (s *MemoryStore) CreateAssignment(_ context.Context, a model.Assignment, expectedRequestStatus model.RequestStatus) (model.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[a.RequestID]
	if !ok {
		return model.Assignment{}, ErrNotFound
	}
	if r.Status != expectedRequestStatus {
		return model.Assignment{}, ErrConflict
	}
	v, ok := s.volunteers[a.VolunteerID]
	if !ok {
		return model.Assignment{}, ErrNotFound
	}
	for _, existing := range s.assignments {
		if existing.VolunteerID == a.VolunteerID && existing.IsActive() {
			return model.Assignment{}, ErrVolunteerBusy
		}
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = model.AssignmentPending
	}
	s.assignments[a.ID] = a
	r.Status = model.RequestAssigned
	s.requests[r.ID] = r
	v.Availability = model.StatusBusy
	s.volunteers[v.ID] = v
	s.emit(events.ChangeInsert, TableAssignments, a.ID, a)
	s.emit(events.ChangeUpdate, TableRequests, r.ID, r)
	s.emit(events.ChangeUpdate, TableVolunteers, v.ID, v)
	return a, nil
}

func (s *MemoryStore) GetAssignment(_ context.Context, id string) (model.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assignments[id]
	if !ok {
		return model.Assignment{}, ErrNotFound
	}
	return a, nil
}

func (s *MemoryStore) UpdateAssignment(_ context.Context, a model.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.assignments[a.ID]
	if !ok {
		return ErrNotFound
	}
	// Referential fields are immutable after creation.
	a.RequestID = cur.RequestID
	a.VolunteerID = cur.VolunteerID
	s.assignments[a.ID] = a
	s.emit(events.ChangeUpdate, TableAssignments, a.ID, a)
	return nil
}

func (s *MemoryStore) GetActiveAssignmentsForVolunteer(_ context.Context, volunteerID string) ([]model.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []model.Assignment
	for _, a := range s.assignments {
		if a.VolunteerID == volunteerID && a.IsActive() {
			res = append(res, a)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].AssignedAt.Before(res[j].AssignedAt) })
	return res, nil
}

func (s *MemoryStore) GetAssignmentsForRequest(_ context.Context, requestID string) ([]model.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []model.Assignment
	for _, a := range s.assignments {
		if a.RequestID == requestID {
			res = append(res, a)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].AssignedAt.Before(res[j].AssignedAt) })
	return res, nil
}

func (s *MemoryStore) ActiveAssignmentCountByVolunteer(_ context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int)
	for _, a := range s.assignments {
		if a.IsActive() {
			counts[a.VolunteerID]++
		}
	}
	return counts, nil
}

func (s *MemoryStore) RecordLocation(_ context.Context, loc model.Location) error {
	s.mu.Lock()
	s.locations[loc.UserID] = append(s.locations[loc.UserID], loc)
	s.emit(events.ChangeInsert, TableLocations, loc.UserID, loc)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) LatestLocation(_ context.Context, userID string) (model.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	samples := s.locations[userID]
	if len(samples) == 0 {
		return model.Location{}, ErrNotFound
	}
	latest := samples[0]
	for _, l := range samples[1:] {
		latest = model.Newest(latest, l)
	}
	return latest, nil
}
