package providers

import "context"

// ActivityScore is one entry of the activity leaderboard
type ActivityScore struct {
	FacilityID string
	Score      float64
}

// ActivityTracker maintains a ranked counter of facility activity
type ActivityTracker interface {
	Increment(ctx context.Context, facilityID string, amount float64) error

	// Top returns the n most active facilities, highest first
	Top(ctx context.Context, n int) ([]ActivityScore, error)
}
