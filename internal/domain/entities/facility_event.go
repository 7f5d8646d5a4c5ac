package entities

import (
	"time"

	"github.com/google/uuid"
)

// FacilityEventType names what happened to a facility
type FacilityEventType string

const (
	FacilityEventTypeReviewSubmitted FacilityEventType = "review_submitted"
	FacilityEventTypeUpdated         FacilityEventType = "facility_updated"
	FacilityEventTypeDeleted         FacilityEventType = "facility_deleted"
)

// FacilityEvent is published once a facility change is committed. Review
// events carry the new score; update events list the changed fields.
type FacilityEvent struct {
	ID         string            `json:"id"`
	Type       FacilityEventType `json:"type"`
	FacilityID string            `json:"facility_id"`
	OccurredAt time.Time         `json:"occurred_at"`

	ReviewID      string  `json:"review_id,omitempty"`
	InTheTowScore float64 `json:"in_the_tow_score,omitempty"`
	NumRatings    int     `json:"num_ratings,omitempty"`

	Changed map[string]interface{} `json:"changed,omitempty"`
}

// NewFacilityEvent creates an event of type t for facilityID
func NewFacilityEvent(facilityID string, t FacilityEventType, changed map[string]interface{}) *FacilityEvent {
	return &FacilityEvent{
		ID:         uuid.NewString(),
		Type:       t,
		FacilityID: facilityID,
		OccurredAt: time.Now().UTC(),
		Changed:    changed,
	}
}

// NewReviewSubmittedEvent snapshots facility right after reviewID was counted
func NewReviewSubmittedEvent(facility *Facility, reviewID string) *FacilityEvent {
	e := NewFacilityEvent(facility.ID, FacilityEventTypeReviewSubmitted, nil)
	e.ReviewID = reviewID
	e.InTheTowScore = facility.InTheTowScore
	e.NumRatings = facility.NumRatings
	return e
}
