package scoring

import (
	"github.com/inthetow/backend/internal/domain/entities"
)

// Observation is the part of a review that feeds facility aggregates.
// Nil fields were not reported and leave their aggregate untouched.
type Observation struct {
	Rating           int
	Safety           *int
	DockMinutes      *int
	OnTime           *bool
	HasLumper        *bool
	OvernightParking *bool
}

// ObservationFromReview extracts the aggregate inputs of a review
func ObservationFromReview(r *entities.Review) Observation {
	obs := Observation{
		Rating:           r.Rating,
		Safety:           r.Safety,
		HasLumper:        r.HasLumper,
		OvernightParking: r.OvernightParking,
	}
	if minutes, ok := r.DockDuration(); ok {
		obs.DockMinutes = &minutes
	}
	if onTime, ok := r.OnTime(); ok {
		obs.OnTime = &onTime
	}
	return obs
}

// ApplyReview folds one observation into the running aggregates. It does not touch
// InTheTowScore; call Rescore once the recent ratings are known.
func ApplyReview(stats *entities.FacilityStats, obs Observation) {
	stats.AvgRating = incrementalMean(stats.AvgRating, stats.NumRatings, float64(obs.Rating))
	stats.NumRatings++

	if obs.Safety != nil {
		stats.SafetyScore = incrementalMean(stats.SafetyScore, stats.NumSafetyReports, float64(*obs.Safety))
		stats.NumSafetyReports++
	}

	if obs.DockMinutes != nil {
		stats.AvgTimeAtDock = incrementalMean(stats.AvgTimeAtDock, stats.NumTimeReports, float64(*obs.DockMinutes))
		stats.NumTimeReports++
	}

	if obs.OnTime != nil {
		stats.NumAppointmentsReported++
		if *obs.OnTime {
			stats.AppointmentsOnTimeCount++
		}
		stats.AppointmentsOnTimePercentage = float64(stats.AppointmentsOnTimeCount) / float64(stats.NumAppointmentsReported) * 100
	}

	if obs.HasLumper != nil {
		v := *obs.HasLumper
		stats.HasLumper = &v
	}
	if obs.OvernightParking != nil {
		v := *obs.OvernightParking
		stats.OvernightParking = &v
	}
}

// Rescore recomputes InTheTowScore from the current aggregates and the newest ratings
func Rescore(stats *entities.FacilityStats, recent []int) {
	stats.InTheTowScore = ComputeScore(InputFromStats(*stats, recent))
}

func incrementalMean(oldAvg float64, oldCount int, value float64) float64 {
	return (oldAvg*float64(oldCount) + value) / float64(oldCount+1)
}
