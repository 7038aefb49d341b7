// Package export serializes assignment history for reporting tools.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/sevaops/seva/core/model"
)

// WriteJSON writes the assignments to w in JSON format.
func WriteJSON(w io.Writer, assignments []model.Assignment) error {
	enc := json.NewEncoder(w)
	return enc.Encode(assignments)
}

// WriteCSV writes the assignments to w in CSV format with a header row.
func WriteCSV(w io.Writer, assignments []model.Assignment) error {
	cw := csv.NewWriter(w)
	header := []string{"id", "request_id", "volunteer_id", "status", "method", "match_score", "assigned_at", "completed_at"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, a := range assignments {
		completed := ""
		if a.CompletedAt != nil {
			completed = a.CompletedAt.UTC().Format(time.RFC3339)
		}
		rec := []string{
			a.ID,
			a.RequestID,
			a.VolunteerID,
			string(a.Status),
			string(a.Method),
			strconv.FormatFloat(a.MatchScore, 'f', 3, 64),
			a.AssignedAt.UTC().Format(time.RFC3339),
			completed,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
