package assignments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sevaops/seva/core/model"
	"github.com/sevaops/seva/core/store"
)

func seed(t *testing.T) *store.MemoryStore {
	t.Helper()
	st := store.NewMemoryStore()
	st.PutRequest(model.Request{ID: "r1", Status: model.RequestPending, CreatedAt: time.Now()})
	st.PutVolunteer(model.Volunteer{ID: "v1", IsActive: true, Availability: model.StatusAvailable})
	if _, err := st.CreateAssignment(context.Background(), model.Assignment{
		RequestID: "r1", VolunteerID: "v1", Method: model.MethodAuto, AssignedAt: time.Now(),
	}, model.RequestPending); err != nil {
		t.Fatalf("seed assignment: %v", err)
	}
	return st
}

func TestHandlerByRequest(t *testing.T) {
	h := NewHandler(seed(t), "secret")
	req := httptest.NewRequest(http.MethodGet, "/api/assignments?request_id=r1", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var got []model.Assignment
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].VolunteerID != "v1" {
		t.Fatalf("unexpected body: %+v", got)
	}
}

func TestHandlerByVolunteer(t *testing.T) {
	h := NewHandler(seed(t), "")
	req := httptest.NewRequest(http.MethodGet, "/api/assignments?volunteer_id=v1", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var got []model.Assignment
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].RequestID != "r1" {
		t.Fatalf("unexpected body: %+v", got)
	}
}

func TestHandlerAuth(t *testing.T) {
	h := NewHandler(seed(t), "secret")
	req := httptest.NewRequest(http.MethodGet, "/api/assignments?request_id=r1", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestHandlerRequiresExactlyOneFilter(t *testing.T) {
	h := NewHandler(seed(t), "")
	for _, target := range []string{
		"/api/assignments",
		"/api/assignments?request_id=r1&volunteer_id=v1",
	} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, rr.Code)
		}
	}
}
