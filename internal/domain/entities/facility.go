package entities

import (
	"time"
)

// Facility represents a warehouse or dock location reviewed by drivers
type Facility struct {
	ID            string    `json:"id" db:"id" bson:"_id"`
	Name          string    `json:"name" db:"name" bson:"name"`
	Address       Address   `json:"address" db:"-" bson:"address"`
	PhoneNumber   string    `json:"phone_number,omitempty" db:"phone_number" bson:"phone_number,omitempty"`
	GooglePlaceID string    `json:"google_place_id,omitempty" db:"google_place_id" bson:"google_place_id,omitempty"`
	PhotoRefs     []string  `json:"photo_refs" db:"photo_refs" bson:"photo_refs"`
	ReviewIDs     []string  `json:"review_ids" db:"review_ids" bson:"review_ids"`
	FacilityStats `bson:",inline"`
	Version       int64     `json:"-" db:"version" bson:"version"`
	CreatedAt     time.Time `json:"created_at" db:"created_at" bson:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at" bson:"updated_at"`
}

// FacilityStats holds the running aggregates maintained on every review submission.
// Each mean is paired with its count; the fields are never recomputed from review history on read.
type FacilityStats struct {
	NumRatings                   int     `json:"num_ratings" db:"num_ratings" bson:"num_ratings"`
	AvgRating                    float64 `json:"avg_rating" db:"avg_rating" bson:"avg_rating"`
	NumSafetyReports             int     `json:"num_safety_reports" db:"num_safety_reports" bson:"num_safety_reports"`
	SafetyScore                  float64 `json:"safety_score" db:"safety_score" bson:"safety_score"`
	NumTimeReports               int     `json:"num_time_reports" db:"num_time_reports" bson:"num_time_reports"`
	AvgTimeAtDock                float64 `json:"avg_time_at_dock" db:"avg_time_at_dock" bson:"avg_time_at_dock"`
	NumAppointmentsReported      int     `json:"num_appointments_reported" db:"num_appointments_reported" bson:"num_appointments_reported"`
	AppointmentsOnTimeCount      int     `json:"appointments_on_time_count" db:"appointments_on_time_count" bson:"appointments_on_time_count"`
	AppointmentsOnTimePercentage float64 `json:"appointments_on_time_percentage" db:"appointments_on_time_percentage" bson:"appointments_on_time_percentage"`
	HasLumper                    *bool   `json:"has_lumper,omitempty" db:"has_lumper" bson:"has_lumper,omitempty"`
	OvernightParking             *bool   `json:"overnight_parking,omitempty" db:"overnight_parking" bson:"overnight_parking,omitempty"`
	InTheTowScore                float64 `json:"in_the_tow_score" db:"in_the_tow_score" bson:"in_the_tow_score"`
}

// Address represents a physical address
type Address struct {
	Street  string `json:"street" db:"street" bson:"street"`
	City    string `json:"city" db:"city" bson:"city"`
	State   string `json:"state" db:"state" bson:"state"`
	ZipCode string `json:"zip_code" db:"zip_code" bson:"zip_code"`
}

// FacilitySummary is the slim projection shown next to a review.
type FacilitySummary struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	City          string  `json:"city"`
	State         string  `json:"state"`
	InTheTowScore float64 `json:"in_the_tow_score"`
}

// Summary returns the slim projection of f.
func (f *Facility) Summary() FacilitySummary {
	return FacilitySummary{
		ID:            f.ID,
		Name:          f.Name,
		City:          f.Address.City,
		State:         f.Address.State,
		InTheTowScore: f.InTheTowScore,
	}
}

// ActiveFacility pairs a facility with its activity count.
type ActiveFacility struct {
	Facility *Facility `json:"facility"`
	Activity float64   `json:"activity"`
}
