package entities

import "time"

// Review is a driver's report on a single visit to a facility.
// UserDisplayName is copied from the author at creation and never follows later renames.
type Review struct {
	ID               string     `json:"id" db:"id" bson:"_id"`
	UserID           string     `json:"user_id" db:"user_id" bson:"user_id"`
	UserDisplayName  string     `json:"user_display_name" db:"user_display_name" bson:"user_display_name"`
	FacilityID       string     `json:"facility_id" db:"facility_id" bson:"facility_id"`
	Rating           int        `json:"rating" db:"rating" bson:"rating"`
	Safety           *int       `json:"safety,omitempty" db:"safety" bson:"safety,omitempty"`
	ReviewText       string     `json:"review_text,omitempty" db:"review_text" bson:"review_text,omitempty"`
	Photos           []string   `json:"photos" db:"photos" bson:"photos"`
	AppointmentTime  *time.Time `json:"appointment_time,omitempty" db:"appointment_time" bson:"appointment_time,omitempty"`
	StartTime        *time.Time `json:"start_time,omitempty" db:"start_time" bson:"start_time,omitempty"`
	EndTime          *time.Time `json:"end_time,omitempty" db:"end_time" bson:"end_time,omitempty"`
	HasLumper        *bool      `json:"has_lumper,omitempty" db:"has_lumper" bson:"has_lumper,omitempty"`
	OvernightParking *bool      `json:"overnight_parking,omitempty" db:"overnight_parking" bson:"overnight_parking,omitempty"`
	QuestionIDs      []string   `json:"question_ids" db:"question_ids" bson:"question_ids"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at" bson:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at" bson:"updated_at"`
}

// DockDuration returns the whole minutes spent at the dock.
// ok is false unless both start and end times are recorded.
func (r *Review) DockDuration() (minutes int, ok bool) {
	if r.StartTime == nil || r.EndTime == nil {
		return 0, false
	}
	return int(r.EndTime.Sub(*r.StartTime) / time.Minute), true
}

// OnTime reports whether the driver started at or before the appointment.
// ok is false unless both appointment and start times are recorded.
func (r *Review) OnTime() (onTime bool, ok bool) {
	if r.AppointmentTime == nil || r.StartTime == nil {
		return false, false
	}
	return !r.StartTime.After(*r.AppointmentTime), true
}

// ReviewView is a review as rendered to clients: photo tokens resolved to URLs
// and, where requested, the facility summary attached.
type ReviewView struct {
	*Review
	PhotoURLs []string         `json:"photo_urls,omitempty"`
	Facility  *FacilitySummary `json:"facility,omitempty"`
}
