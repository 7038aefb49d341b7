// Package assignments exposes a small read-only HTTP API over assignment
// history, for coordinator dashboards and support tooling.
package assignments

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sevaops/seva/core/store"
)

// NewHandler returns an HTTP handler serving GET /api/assignments.
// Requests must include an Authorization header with "Bearer <token>" when
// token is non-empty. Exactly one of request_id or volunteer_id is required;
// volunteer_id returns only the volunteer's active assignments.
func NewHandler(st store.Store, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token != "" {
			auth := r.Header.Get("Authorization")
			if auth != "Bearer "+token {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		reqID := r.URL.Query().Get("request_id")
		volID := r.URL.Query().Get("volunteer_id")
		if (reqID == "") == (volID == "") {
			http.Error(w, "exactly one of request_id or volunteer_id is required", http.StatusBadRequest)
			return
		}

		var (
			out any
			err error
		)
		if reqID != "" {
			out, err = st.GetAssignmentsForRequest(r.Context(), reqID)
		} else {
			out, err = st.GetActiveAssignmentsForVolunteer(r.Context(), volID)
		}
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			http.Error(w, "query error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(out); err != nil {
			http.Error(w, "encode error", http.StatusInternalServerError)
		}
	})
}
