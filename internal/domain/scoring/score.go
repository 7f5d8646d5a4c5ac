package scoring

import (
	"math"

	"github.com/inthetow/backend/internal/domain/entities"
)

const (
	ratingMin = 1
	ratingMax = 5

	dockTimeMidpoint = 240
	dockTimeSlope    = 0.012

	neutralPrior = 0.5

	weightRating   = 0.15
	weightRecent   = 0.40
	weightDockTime = 0.40
	weightSafety   = 0.05

	// RecentRatingsWindow is how many of the newest ratings feed the recency component
	RecentRatingsWindow = 5
)

// ScoreInput is everything the score depends on. AppointmentsOnTimePercentage and
// OvernightParking are carried for callers but do not influence the result.
type ScoreInput struct {
	AvgRating                    float64
	NumRatings                   int
	RecentRatings                []int
	AvgTimeAtDock                float64
	AppointmentsOnTimePercentage float64
	OvernightParking             *bool
	SafetyScore                  float64
	NumSafetyReports             int
	NumTimeReports               int
}

// ScoreBreakdown exposes the intermediate values of a score computation
type ScoreBreakdown struct {
	Rating             float64            `json:"rating"`
	Recent             float64            `json:"recent"`
	DockTime           float64            `json:"dock_time"`
	Safety             float64            `json:"safety"`
	RatingConfidence   float64            `json:"rating_confidence"`
	SafetyConfidence   float64            `json:"safety_confidence"`
	DockTimeConfidence float64            `json:"dock_time_confidence"`
	Contributions      map[string]float64 `json:"contributions"`
	WeightedSum        float64            `json:"weighted_sum"`
	Score              float64            `json:"score"`
}

// InputFromStats builds a ScoreInput from facility aggregates and its newest ratings.
func InputFromStats(stats entities.FacilityStats, recent []int) ScoreInput {
	return ScoreInput{
		AvgRating:                    stats.AvgRating,
		NumRatings:                   stats.NumRatings,
		RecentRatings:                recent,
		AvgTimeAtDock:                stats.AvgTimeAtDock,
		AppointmentsOnTimePercentage: stats.AppointmentsOnTimePercentage,
		OvernightParking:             stats.OvernightParking,
		SafetyScore:                  stats.SafetyScore,
		NumSafetyReports:             stats.NumSafetyReports,
		NumTimeReports:               stats.NumTimeReports,
	}
}

// ComputeScore returns the InTheTow score in [0, 100].
func ComputeScore(in ScoreInput) float64 {
	return Breakdown(in).Score
}

// Breakdown computes the score and keeps every intermediate value.
func Breakdown(in ScoreInput) ScoreBreakdown {
	b := ScoreBreakdown{
		RatingConfidence:   Confidence(in.NumRatings),
		SafetyConfidence:   Confidence(in.NumSafetyReports),
		DockTimeConfidence: Confidence(in.NumTimeReports),
	}

	rating := NormalizeLinear(ratingMin, ratingMax, in.AvgRating)
	safety := NormalizeLinear(ratingMin, ratingMax, in.SafetyScore)
	dock := NormalizeLogistic(in.AvgTimeAtDock, dockTimeMidpoint, dockTimeSlope)

	b.Rating = Blend(neutralPrior, b.RatingConfidence, rating)
	b.Safety = Blend(neutralPrior, b.SafetyConfidence, safety)
	b.DockTime = Blend(neutralPrior, b.DockTimeConfidence, dock)
	b.Recent = recentComponent(in.RecentRatings)

	b.Contributions = map[string]float64{
		"rating":    weightRating * b.Rating,
		"recent":    weightRecent * b.Recent,
		"dock_time": weightDockTime * b.DockTime,
		"safety":    weightSafety * b.Safety,
	}
	b.WeightedSum = b.Contributions["rating"] + b.Contributions["recent"] +
		b.Contributions["dock_time"] + b.Contributions["safety"]

	b.Score = clamp(Blend(neutralPrior, b.RatingConfidence, b.WeightedSum)*100, 0, 100)
	return b
}

// recentComponent is the linearly normalized mean of the newest ratings.
// With no ratings yet the component is neutral.
func recentComponent(ratings []int) float64 {
	if len(ratings) == 0 {
		return neutralPrior
	}
	if len(ratings) > RecentRatingsWindow {
		ratings = ratings[:RecentRatingsWindow]
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	return NormalizeLinear(ratingMin, ratingMax, float64(sum)/float64(len(ratings)))
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo + (hi-lo)*neutralPrior
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
