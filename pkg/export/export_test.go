package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/sevaops/seva/core/model"
)

func sample() []model.Assignment {
	done := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	return []model.Assignment{{
		ID: "a1", RequestID: "r1", VolunteerID: "v1",
		Status: model.AssignmentCompleted, Method: model.MethodAuto,
		MatchScore: 0.875, AssignedAt: done.Add(-time.Hour), CompletedAt: &done,
	}}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sample()); err != nil {
		t.Fatalf("write json: %v", err)
	}
	var got []model.Assignment
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a1" {
		t.Fatalf("unexpected output: %+v", got)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sample()); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header plus one row, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "id,request_id") {
		t.Fatalf("missing header: %s", lines[0])
	}
	if !strings.Contains(lines[1], "0.875") || !strings.Contains(lines[1], "2026-03-01T12:30:00Z") {
		t.Fatalf("unexpected row: %s", lines[1])
	}
}
