package model

import (
	"fmt"
	"time"
)

// RequestType categorises what kind of help a pilgrim is asking for.
type RequestType string

const (
	RequestMedical         RequestType = "medical"
	RequestEmergency       RequestType = "emergency"
	RequestLostPerson      RequestType = "lost_person"
	RequestSanitation      RequestType = "sanitation"
	RequestCrowdManagement RequestType = "crowd_management"
	RequestGuidance        RequestType = "guidance"
	RequestGeneral         RequestType = "general"
)

// Priority expresses how urgent a request is.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// RequestStatus tracks a request through its lifecycle.
type RequestStatus string

const (
	RequestPending    RequestStatus = "pending"
	RequestAssigned   RequestStatus = "assigned"
	RequestInProgress RequestStatus = "in_progress"
	RequestCompleted  RequestStatus = "completed"
	RequestCancelled  RequestStatus = "cancelled"
)

// Request represents a pilgrim's call for help.
type Request struct {
	ID          string        `json:"id"`
	RequesterID string        `json:"requester_id"`
	Type        RequestType   `json:"type"`
	Priority    Priority      `json:"priority"`
	Lat         float64       `json:"lat"`
	Lon         float64       `json:"lon"`
	Status      RequestStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Validate checks that the request carries usable coordinates and a status.
func (r Request) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("request id is required")
	}
	if r.Lat < -90 || r.Lat > 90 || r.Lon < -180 || r.Lon > 180 {
		return fmt.Errorf("request %s: coordinates out of range", r.ID)
	}
	if r.Status == "" {
		return fmt.Errorf("request %s: status is required", r.ID)
	}
	return nil
}

// IsOpen reports whether the request can still be matched or worked on.
func (r Request) IsOpen() bool {
	return r.Status == RequestPending || r.Status == RequestAssigned || r.Status == RequestInProgress
}
