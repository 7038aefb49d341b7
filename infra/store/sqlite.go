package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/sevaops/seva/core/events"
	"github.com/sevaops/seva/core/model"
	corestore "github.com/sevaops/seva/core/store"
)

// SQLiteStore is a durable Store backed by a SQLite database. Conditional
// writes use single UPDATE statements guarded by the expected prior value, so
// the store works correctly with concurrent writers without client locks.
type SQLiteStore struct {
	db      *sql.DB
	changes corestore.ChangeDispatcher
}

var _ corestore.Store = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS requests (
    id           TEXT PRIMARY KEY,
    requester_id TEXT,
    type         TEXT NOT NULL,
    priority     TEXT NOT NULL,
    lat          REAL NOT NULL,
    lon          REAL NOT NULL,
    status       TEXT NOT NULL,
    created_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_requests_status ON requests(status, created_at);

CREATE TABLE IF NOT EXISTS volunteers (
    id             TEXT PRIMARY KEY,
    name           TEXT,
    skills         TEXT NOT NULL DEFAULT '[]',
    lat            REAL NOT NULL,
    lon            REAL NOT NULL,
    location_at    TEXT,
    rating_average REAL NOT NULL DEFAULT 0,
    is_active      INTEGER NOT NULL DEFAULT 1,
    availability   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS assignments (
    id                  TEXT PRIMARY KEY,
    request_id          TEXT NOT NULL,
    volunteer_id        TEXT NOT NULL,
    status              TEXT NOT NULL,
    method              TEXT NOT NULL,
    match_score         REAL NOT NULL DEFAULT 0,
    assigned_at         TEXT NOT NULL,
    accepted_at         TEXT,
    started_at          TEXT,
    completed_at        TEXT,
    completion_location TEXT
);
CREATE INDEX IF NOT EXISTS idx_assignments_request ON assignments(request_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_assignments_one_active
    ON assignments(volunteer_id)
    WHERE status IN ('pending', 'accepted', 'in_progress');

CREATE TABLE IF NOT EXISTS locations (
    user_id    TEXT NOT NULL,
    lat        REAL NOT NULL,
    lon        REAL NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_locations_user ON locations(user_id, updated_at);
`

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single writer keeps the busy-handler out of the picture; SQLite
	// serialises writes anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// SetChangeFeed installs the dispatcher that receives a change event for
// every successful write. Pass nil to stop emitting. Not safe to call
// concurrently with writes.
func (s *SQLiteStore) SetChangeFeed(d corestore.ChangeDispatcher) { s.changes = d }

// emit pushes a change event to the feed, if one is installed. Updates made
// by guarded statements do not reload the row, so rec may be nil there.
func (s *SQLiteStore) emit(kind events.ChangeKind, table, id string, rec any) {
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

func (s *SQLiteStore) GetRequest(ctx context.Context, id string) (model.Request, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, requester_id, type, priority, lat, lon, status, created_at
         FROM requests WHERE id = ?`, id)
	return scanRequest(row)
}

func (s *SQLiteStore) ListPendingRequests(ctx context.Context, limit int) ([]model.Request, error) {
	if limit <= 0 {
		limit = -1 // SQLite treats a negative LIMIT as unbounded.
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, requester_id, type, priority, lat, lon, status, created_at
         FROM requests WHERE status = ? ORDER BY created_at LIMIT ?`,
		string(model.RequestPending), limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

func (s *SQLiteStore) UpdateRequestStatus(ctx context.Context, id string, status, expectedPrior model.RequestStatus) error {
	out, err := s.db.ExecContext(ctx,
		`UPDATE requests SET status = ? WHERE id = ? AND status = ?`,
		string(status), id, string(expectedPrior))
	if err != nil {
		return err
	}
	n, err := out.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Distinguish a missing row from a status mismatch.
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM requests WHERE id = ?)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return corestore.ErrNotFound
		}
		return corestore.ErrConflict
	}
	s.emit(events.ChangeUpdate, corestore.TableRequests, id, nil)
	return nil
}

// PutRequest inserts or replaces a request. Seeding helper, not part of Store.
func (s *SQLiteStore) PutRequest(ctx context.Context, r model.Request) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO requests (id, requester_id, type, priority, lat, lon, status, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.RequesterID, string(r.Type), string(r.Priority), r.Lat, r.Lon,
		string(r.Status), encodeTime(r.CreatedAt))
	if err == nil {
		s.emit(events.ChangeInsert, corestore.TableRequests, r.ID, r)
	}
	return err
}

func (s *SQLiteStore) GetVolunteer(ctx context.Context, id string) (model.Volunteer, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, skills, lat, lon, location_at, rating_average, is_active, availability
         FROM volunteers WHERE id = ?`, id)
	return scanVolunteer(row)
}

func (s *SQLiteStore) ListActiveVolunteers(ctx context.Context) ([]model.Volunteer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, skills, lat, lon, location_at, rating_average, is_active, availability
         FROM volunteers WHERE is_active = 1 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.Volunteer
	for rows.Next() {
		v, err := scanVolunteer(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	return res, rows.Err()
}

func (s *SQLiteStore) FindVolunteersNear(ctx context.Context, lat, lon, radiusMeters float64, requiredSkills []string, limit int) ([]model.Volunteer, error) {
	// Prefilter with a bounding box in SQL, then apply the exact great-circle
	// distance and skill matching in Go. Skill matching is bidirectional
	// substring containment, which SQL LIKE cannot express both ways.
	dLat := radiusMeters / 111320.0
	dLon := radiusMeters / (111320.0 * math.Max(math.Cos(lat*math.Pi/180), 0.01))
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, skills, lat, lon, location_at, rating_average, is_active, availability
         FROM volunteers
         WHERE is_active = 1 AND lat BETWEEN ? AND ? AND lon BETWEEN ? AND ?
         ORDER BY id`,
		lat-dLat, lat+dLat, lon-dLon, lon+dLon)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.Volunteer
	for rows.Next() {
		v, err := scanVolunteer(rows)
		if err != nil {
			return nil, err
		}
		if model.Haversine(lat, lon, v.Lat, v.Lon) > radiusMeters {
			continue
		}
		if len(requiredSkills) > 0 && !matchesAny(v, requiredSkills) {
			continue
		}
		res = append(res, v)
		if limit > 0 && len(res) == limit {
			break
		}
	}
	return res, rows.Err()
}

func matchesAny(v model.Volunteer, tags []string) bool {
	for _, t := range tags {
		if v.HasSkill(strings.TrimSpace(t)) {
			return true
		}
	}
	return false
}

func (s *SQLiteStore) UpdateVolunteerStatus(ctx context.Context, id string, status model.AvailabilityStatus) error {
	out, err := s.db.ExecContext(ctx,
		`UPDATE volunteers SET availability = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return err
	}
	n, err := out.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return corestore.ErrNotFound
	}
	s.emit(events.ChangeUpdate, corestore.TableVolunteers, id, nil)
	return nil
}

// PutVolunteer inserts or replaces a volunteer. Seeding helper, not part of Store.
func (s *SQLiteStore) PutVolunteer(ctx context.Context, v model.Volunteer) error {
	skills, err := json.Marshal(v.Skills)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO volunteers (id, name, skills, lat, lon, location_at, rating_average, is_active, availability)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.Name, string(skills), v.Lat, v.Lon, encodeTime(v.LocationAt),
		v.RatingAverage, boolToInt(v.IsActive), string(v.Availability))
	if err == nil {
		s.emit(events.ChangeInsert, corestore.TableVolunteers, v.ID, v)
	}
	return err
}

func (s *SQLiteStore) CreateAssignment(ctx context.Context, a model.Assignment, expectedRequestStatus model.RequestStatus) (model.Assignment, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = model.AssignmentPending
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Assignment{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM volunteers WHERE id = ?)`, a.VolunteerID).Scan(&exists); err != nil {
		return model.Assignment{}, err
	}
	if !exists {
		return model.Assignment{}, corestore.ErrNotFound
	}

	// Guard the request transition first; a stale caller sees ErrConflict
	// before any row is written.
	out, err := tx.ExecContext(ctx,
		`UPDATE requests SET status = ? WHERE id = ? AND status = ?`,
		string(model.RequestAssigned), a.RequestID, string(expectedRequestStatus))
	if err != nil {
		return model.Assignment{}, err
	}
	n, err := out.RowsAffected()
	if err != nil {
		return model.Assignment{}, err
	}
	if n == 0 {
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM requests WHERE id = ?)`, a.RequestID).Scan(&exists); err != nil {
			return model.Assignment{}, err
		}
		if !exists {
			return model.Assignment{}, corestore.ErrNotFound
		}
		return model.Assignment{}, corestore.ErrConflict
	}

	var loc any
	if a.CompletionLocation != nil {
		b, err := json.Marshal(a.CompletionLocation)
		if err != nil {
			return model.Assignment{}, err
		}
		loc = string(b)
	}
	// The partial unique index rejects a second active assignment for the
	// same volunteer.
	_, err = tx.ExecContext(ctx,
		`INSERT INTO assignments (id, request_id, volunteer_id, status, method, match_score,
            assigned_at, accepted_at, started_at, completed_at, completion_location)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.RequestID, a.VolunteerID, string(a.Status), string(a.Method), a.MatchScore,
		encodeTime(a.AssignedAt), encodeTimePtr(a.AcceptedAt), encodeTimePtr(a.StartedAt),
		encodeTimePtr(a.CompletedAt), loc)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Assignment{}, corestore.ErrVolunteerBusy
		}
		return model.Assignment{}, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE volunteers SET availability = ? WHERE id = ?`,
		string(model.StatusBusy), a.VolunteerID); err != nil {
		return model.Assignment{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Assignment{}, err
	}
	s.emit(events.ChangeInsert, corestore.TableAssignments, a.ID, a)
	s.emit(events.ChangeUpdate, corestore.TableRequests, a.RequestID, nil)
	s.emit(events.ChangeUpdate, corestore.TableVolunteers, a.VolunteerID, nil)
	return a, nil
}

func (s *SQLiteStore) GetAssignment(ctx context.Context, id string) (model.Assignment, error) {
	row := s.db.QueryRowContext(ctx, selectAssignment+` WHERE id = ?`, id)
	return scanAssignment(row)
}

func (s *SQLiteStore) UpdateAssignment(ctx context.Context, a model.Assignment) error {
	var loc any
	if a.CompletionLocation != nil {
		b, err := json.Marshal(a.CompletionLocation)
		if err != nil {
			return err
		}
		loc = string(b)
	}
	// request_id and volunteer_id are immutable after creation and stay out
	// of the SET list.
	out, err := s.db.ExecContext(ctx,
		`UPDATE assignments SET status = ?, method = ?, match_score = ?, assigned_at = ?,
            accepted_at = ?, started_at = ?, completed_at = ?, completion_location = ?
         WHERE id = ?`,
		string(a.Status), string(a.Method), a.MatchScore, encodeTime(a.AssignedAt),
		encodeTimePtr(a.AcceptedAt), encodeTimePtr(a.StartedAt), encodeTimePtr(a.CompletedAt),
		loc, a.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return corestore.ErrVolunteerBusy
		}
		return err
	}
	n, err := out.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return corestore.ErrNotFound
	}
	s.emit(events.ChangeUpdate, corestore.TableAssignments, a.ID, nil)
	return nil
}

const selectAssignment = `SELECT id, request_id, volunteer_id, status, method, match_score,
    assigned_at, accepted_at, started_at, completed_at, completion_location FROM assignments`

var activeStatuses = []any{
	string(model.AssignmentPending), string(model.AssignmentAccepted), string(model.AssignmentInProgress),
}

func (s *SQLiteStore) GetActiveAssignmentsForVolunteer(ctx context.Context, volunteerID string) ([]model.Assignment, error) {
	args := append([]any{volunteerID}, activeStatuses...)
	rows, err := s.db.QueryContext(ctx,
		selectAssignment+` WHERE volunteer_id = ? AND status IN (?, ?, ?) ORDER BY assigned_at`, args...)
	if err != nil {
		return nil, err
	}
	return collectAssignments(rows)
}

func (s *SQLiteStore) GetAssignmentsForRequest(ctx context.Context, requestID string) ([]model.Assignment, error) {
	rows, err := s.db.QueryContext(ctx,
		selectAssignment+` WHERE request_id = ? ORDER BY assigned_at`, requestID)
	if err != nil {
		return nil, err
	}
	return collectAssignments(rows)
}

func (s *SQLiteStore) ActiveAssignmentCountByVolunteer(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT volunteer_id, COUNT(*) FROM assignments WHERE status IN (?, ?, ?) GROUP BY volunteer_id`,
		activeStatuses...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	counts := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

func (s *SQLiteStore) RecordLocation(ctx context.Context, loc model.Location) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO locations (user_id, lat, lon, updated_at) VALUES (?, ?, ?, ?)`,
		loc.UserID, loc.Lat, loc.Lon, encodeTime(loc.UpdatedAt))
	if err == nil {
		s.emit(events.ChangeInsert, corestore.TableLocations, loc.UserID, loc)
	}
	return err
}

func (s *SQLiteStore) LatestLocation(ctx context.Context, userID string) (model.Location, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, lat, lon, updated_at FROM locations
         WHERE user_id = ? ORDER BY updated_at DESC LIMIT 1`, userID)
	var loc model.Location
	var updated string
	if err := row.Scan(&loc.UserID, &loc.Lat, &loc.Lon, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Location{}, corestore.ErrNotFound
		}
		return model.Location{}, err
	}
	loc.UpdatedAt = decodeTime(updated)
	return loc, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (model.Request, error) {
	var r model.Request
	var typ, prio, status, created string
	err := row.Scan(&r.ID, &r.RequesterID, &typ, &prio, &r.Lat, &r.Lon, &status, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Request{}, corestore.ErrNotFound
		}
		return model.Request{}, err
	}
	r.Type = model.RequestType(typ)
	r.Priority = model.Priority(prio)
	r.Status = model.RequestStatus(status)
	r.CreatedAt = decodeTime(created)
	return r, nil
}

func scanVolunteer(row rowScanner) (model.Volunteer, error) {
	var v model.Volunteer
	var skills, availability string
	var locatedAt sql.NullString
	var active int
	err := row.Scan(&v.ID, &v.Name, &skills, &v.Lat, &v.Lon, &locatedAt,
		&v.RatingAverage, &active, &availability)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Volunteer{}, corestore.ErrNotFound
		}
		return model.Volunteer{}, err
	}
	if err := json.Unmarshal([]byte(skills), &v.Skills); err != nil {
		return model.Volunteer{}, fmt.Errorf("volunteer %s: decode skills: %w", v.ID, err)
	}
	if locatedAt.Valid {
		v.LocationAt = decodeTime(locatedAt.String)
	}
	v.IsActive = active != 0
	v.Availability = model.AvailabilityStatus(availability)
	return v, nil
}

func scanAssignment(row rowScanner) (model.Assignment, error) {
	var a model.Assignment
	var status, method, assigned string
	var accepted, started, completed, loc sql.NullString
	err := row.Scan(&a.ID, &a.RequestID, &a.VolunteerID, &status, &method, &a.MatchScore,
		&assigned, &accepted, &started, &completed, &loc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Assignment{}, corestore.ErrNotFound
		}
		return model.Assignment{}, err
	}
	a.Status = model.AssignmentStatus(status)
	a.Method = model.AssignmentMethod(method)
	a.AssignedAt = decodeTime(assigned)
	a.AcceptedAt = decodeTimePtr(accepted)
	a.StartedAt = decodeTimePtr(started)
	a.CompletedAt = decodeTimePtr(completed)
	if loc.Valid {
		var l model.Location
		if err := json.Unmarshal([]byte(loc.String), &l); err != nil {
			return model.Assignment{}, fmt.Errorf("assignment %s: decode location: %w", a.ID, err)
		}
		a.CompletionLocation = &l
	}
	return a, nil
}

func collectAssignments(rows *sql.Rows) ([]model.Assignment, error) {
	defer func() { _ = rows.Close() }()
	var res []model.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func encodeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func encodeTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return encodeTime(*t)
}

func decodeTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func decodeTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := decodeTime(s.String)
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
