package services_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/inthetow/backend/internal/adapters/database"
	"github.com/inthetow/backend/internal/application/services"
	"github.com/inthetow/backend/internal/domain/entities"
	"github.com/inthetow/backend/internal/domain/scoring"
	apperrors "github.com/inthetow/backend/pkg/errors"
)

func newFacility(id, name string) *entities.Facility {
	return &entities.Facility{
		ID:        id,
		Name:      name,
		Address:   entities.Address{Street: "1 Dock Rd", City: "Reno", State: "NV", ZipCode: "89502"},
		PhotoRefs: []string{},
		ReviewIDs: []string{},
		Version:   1,
	}
}

const mockAny = mock.Anything

func facilityWithRatings(n int) interface{} {
	return mock.MatchedBy(func(f *entities.Facility) bool { return f.NumRatings == n })
}

func storedReview(t *testing.T, repo *fakeReviewRepo, id, facilityID string, rating int, opts ...func(*entities.Review)) *entities.Review {
	t.Helper()
	r := &entities.Review{
		ID:         id,
		UserID:     "u-1",
		FacilityID: facilityID,
		Rating:     rating,
		CreatedAt:  time.Now(),
	}
	for _, opt := range opts {
		opt(r)
	}
	require.NoError(t, repo.Create(context.Background(), r))
	return r
}

func TestAggregateService_ApplyReview_RunningMeans(t *testing.T) {
	ctx := context.Background()
	facilities := newFakeFacilityRepo(newFacility("f-1", "Acme"))
	reviews := &fakeReviewRepo{}
	svc := services.NewAggregateService(facilities, reviews, nil, nil, services.AggregateConfig{})

	_, err := svc.ApplyReview(ctx, storedReview(t, reviews, "r-1", "f-1", 4))
	require.NoError(t, err)
	updated, err := svc.ApplyReview(ctx, storedReview(t, reviews, "r-2", "f-1", 2))
	require.NoError(t, err)

	stored := facilities.get("f-1")
	assert.Equal(t, 2, stored.NumRatings)
	assert.InDelta(t, 3.0, stored.AvgRating, 1e-9)
	assert.Equal(t, []string{"r-1", "r-2"}, stored.ReviewIDs)
	assert.Equal(t, int64(3), stored.Version)

	expected := scoring.ComputeScore(scoring.InputFromStats(stored.FacilityStats, []int{2, 4}))
	assert.InDelta(t, expected, stored.InTheTowScore, 1e-9)
	assert.Equal(t, stored.InTheTowScore, updated.InTheTowScore)
	assert.Equal(t, stored.Version, updated.Version)
}

func TestAggregateService_ApplyReview_RetriesConflicts(t *testing.T) {
	facilities := newFakeFacilityRepo(newFacility("f-1", "Acme"))
	facilities.injectConflicts = 2
	reviews := &fakeReviewRepo{}
	svc := services.NewAggregateService(facilities, reviews, nil, nil, services.AggregateConfig{MaxAttempts: 5})

	_, err := svc.ApplyReview(context.Background(), storedReview(t, reviews, "r-1", "f-1", 5))
	require.NoError(t, err)

	assert.Equal(t, 3, facilities.aggregateWrites)
	assert.Equal(t, 1, facilities.get("f-1").NumRatings)
}

func TestAggregateService_ApplyReview_GivesUpAfterMaxAttempts(t *testing.T) {
	facilities := newFakeFacilityRepo(newFacility("f-1", "Acme"))
	facilities.injectConflicts = 100
	reviews := &fakeReviewRepo{}
	svc := services.NewAggregateService(facilities, reviews, nil, nil, services.AggregateConfig{MaxAttempts: 4})

	_, err := svc.ApplyReview(context.Background(), storedReview(t, reviews, "r-1", "f-1", 5))

	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
	assert.Equal(t, 4, facilities.aggregateWrites)
	assert.Equal(t, 0, facilities.get("f-1").NumRatings)
}

func TestAggregateService_ApplyReview_MissingFacility(t *testing.T) {
	reviews := &fakeReviewRepo{}
	svc := services.NewAggregateService(newFakeFacilityRepo(), reviews, nil, nil, services.AggregateConfig{})

	_, err := svc.ApplyReview(context.Background(), storedReview(t, reviews, "r-1", "missing", 3))

	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestAggregateService_ApplyReview_ConcurrentSubmissions(t *testing.T) {
	facilities := newFakeFacilityRepo(newFacility("f-1", "Acme"))
	reviews := &fakeReviewRepo{}
	svc := services.NewAggregateService(facilities, reviews, nil, nil, services.AggregateConfig{})

	const n = 20
	pending := make([]*entities.Review, n)
	sum := 0
	for i := 0; i < n; i++ {
		rating := i%5 + 1
		sum += rating
		pending[i] = storedReview(t, reviews, fmt.Sprintf("r-%d", i), "f-1", rating)
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range pending {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.ApplyReview(context.Background(), pending[i])
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	stored := facilities.get("f-1")
	assert.Equal(t, n, stored.NumRatings)
	assert.Len(t, stored.ReviewIDs, n)
	assert.InDelta(t, float64(sum)/n, stored.AvgRating, 1e-9)
	assert.Equal(t, int64(n+1), stored.Version)
}

func TestAggregateService_ApplyReview_StaleCachedFacility(t *testing.T) {
	ctx := context.Background()
	facilities := newFakeFacilityRepo(newFacility("f-1", "Acme"))
	cached := database.NewCachedFacilityAdapter(facilities, NewMockCacheProvider())
	reviews := &fakeReviewRepo{}
	svc := services.NewAggregateService(cached, reviews, nil, nil, services.AggregateConfig{MaxAttempts: 3})

	f, err := cached.GetByID(ctx, "f-1")
	require.NoError(t, err)
	require.Equal(t, int64(1), f.Version)
	facilities.bump("f-1")

	updated, err := svc.ApplyReview(ctx, storedReview(t, reviews, "r-1", "f-1", 4))
	require.NoError(t, err)

	assert.Equal(t, int64(3), updated.Version)
	assert.Equal(t, 1, facilities.aggregateWrites)
	assert.Equal(t, []string{"r-1"}, facilities.get("f-1").ReviewIDs)
}

func TestAggregateService_ApplyReview_AlreadyLinkedReview(t *testing.T) {
	ctx := context.Background()
	facilities := newFakeFacilityRepo(newFacility("f-1", "Acme"))
	reviews := &fakeReviewRepo{}
	svc := services.NewAggregateService(facilities, reviews, nil, nil, services.AggregateConfig{})

	r := storedReview(t, reviews, "r-1", "f-1", 4)
	_, err := svc.ApplyReview(ctx, r)
	require.NoError(t, err)
	_, err = svc.ApplyReview(ctx, r)
	require.NoError(t, err)

	stored := facilities.get("f-1")
	assert.Equal(t, 1, stored.NumRatings)
	assert.Equal(t, []string{"r-1"}, stored.ReviewIDs)
	assert.Equal(t, 1, facilities.aggregateWrites)
}

func TestAggregateService_ApplyReview_RecentWindowUsesLinkedReviews(t *testing.T) {
	ctx := context.Background()
	facilities := newFakeFacilityRepo(newFacility("f-1", "Acme"))
	reviews := &fakeReviewRepo{}
	svc := services.NewAggregateService(facilities, reviews, nil, nil, services.AggregateConfig{})

	_, err := svc.ApplyReview(ctx, storedReview(t, reviews, "r-1", "f-1", 4))
	require.NoError(t, err)
	// stored but never folded in, e.g. its apply failed
	storedReview(t, reviews, "r-2", "f-1", 1)
	_, err = svc.ApplyReview(ctx, storedReview(t, reviews, "r-3", "f-1", 5))
	require.NoError(t, err)

	stored := facilities.get("f-1")
	expected := scoring.ComputeScore(scoring.InputFromStats(stored.FacilityStats, []int{5, 4}))
	assert.InDelta(t, expected, stored.InTheTowScore, 1e-9)
}

func TestAggregateService_ApplyReview_ReindexesFacility(t *testing.T) {
	facilities := newFakeFacilityRepo(newFacility("f-1", "Acme"))
	reviews := &fakeReviewRepo{}
	search := new(MockSearchRepo)
	search.On("Index", mockAny, facilityWithRatings(1)).Return(nil).Once()

	svc := services.NewAggregateService(facilities, reviews, search, nil, services.AggregateConfig{})
	_, err := svc.ApplyReview(context.Background(), storedReview(t, reviews, "r-1", "f-1", 4))

	require.NoError(t, err)
	search.AssertExpectations(t)
}

func TestAggregateService_Rebuild_MatchesIncrementalUpdates(t *testing.T) {
	ctx := context.Background()
	facilities := newFakeFacilityRepo(newFacility("f-1", "Acme"))
	reviews := &fakeReviewRepo{}
	svc := services.NewAggregateService(facilities, reviews, nil, nil, services.AggregateConfig{})

	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	end := start.Add(95 * time.Minute)
	safety := 4
	timed := func(r *entities.Review) {
		r.StartTime, r.EndTime, r.Safety = &start, &end, &safety
	}
	for i, rating := range []int{5, 3, 4, 1, 2, 5, 4} {
		var opts []func(*entities.Review)
		if i%2 == 0 {
			opts = append(opts, timed)
		}
		r := storedReview(t, reviews, fmt.Sprintf("r-%d", i), "f-1", rating, opts...)
		_, err := svc.ApplyReview(ctx, r)
		require.NoError(t, err)
	}
	incremental := facilities.get("f-1")
	assert.Equal(t, 4, incremental.NumTimeReports)

	rebuilt, err := svc.Rebuild(ctx, "f-1")
	require.NoError(t, err)

	assert.Equal(t, incremental.ReviewIDs, rebuilt.ReviewIDs)
	assert.Equal(t, incremental.NumRatings, rebuilt.NumRatings)
	assert.Equal(t, incremental.NumTimeReports, rebuilt.NumTimeReports)
	assert.InDelta(t, incremental.AvgRating, rebuilt.AvgRating, 1e-9)
	assert.InDelta(t, incremental.AvgTimeAtDock, rebuilt.AvgTimeAtDock, 1e-9)
	assert.InDelta(t, incremental.InTheTowScore, rebuilt.InTheTowScore, 1e-9)
	assert.Equal(t, rebuilt.Version, facilities.get("f-1").Version)
}

func TestAggregateService_RebuildAll(t *testing.T) {
	ctx := context.Background()
	facilities := newFakeFacilityRepo(newFacility("f-1", "Acme"), newFacility("f-2", "Bolt"), newFacility("f-3", "Crate"))
	reviews := &fakeReviewRepo{}
	storedReview(t, reviews, "r-1", "f-1", 5)
	storedReview(t, reviews, "r-2", "f-3", 2)
	storedReview(t, reviews, "r-3", "f-3", 4)
	svc := services.NewAggregateService(facilities, reviews, nil, nil, services.AggregateConfig{})

	n, err := svc.RebuildAll(ctx, 2)
	require.NoError(t, err)

	assert.Equal(t, 3, n)
	assert.Equal(t, 1, facilities.get("f-1").NumRatings)
	assert.Zero(t, facilities.get("f-2").NumRatings)
	assert.InDelta(t, 3.0, facilities.get("f-3").AvgRating, 1e-9)
	assert.Equal(t, []string{"r-2", "r-3"}, facilities.get("f-3").ReviewIDs)
}

func TestAggregateService_Rebuild_KeepsConcurrentlyAppliedReview(t *testing.T) {
	ctx := context.Background()
	facilities := newFakeFacilityRepo(newFacility("f-1", "Acme"))
	reviews := &fakeReviewRepo{}
	svc := services.NewAggregateService(facilities, reviews, nil, nil, services.AggregateConfig{MaxAttempts: 3})
	_, err := svc.ApplyReview(ctx, storedReview(t, reviews, "r-1", "f-1", 4))
	require.NoError(t, err)

	// a second process applies r-2 after the replay snapshot was listed
	other := services.NewAggregateService(facilities, reviews, nil, nil, services.AggregateConfig{})
	reviews.afterList = func() {
		_, err := other.ApplyReview(ctx, storedReview(t, reviews, "r-2", "f-1", 2))
		require.NoError(t, err)
	}

	rebuilt, err := svc.Rebuild(ctx, "f-1")
	require.NoError(t, err)

	stored := facilities.get("f-1")
	assert.Equal(t, 2, stored.NumRatings)
	assert.Equal(t, []string{"r-1", "r-2"}, stored.ReviewIDs)
	assert.Len(t, stored.ReviewIDs, stored.NumRatings)
	assert.InDelta(t, 3.0, stored.AvgRating, 1e-9)
	assert.Equal(t, stored.Version, rebuilt.Version)
}

func TestAggregateService_Rebuild_ConflictLeavesFacilityUntouched(t *testing.T) {
	ctx := context.Background()
	facilities := newFakeFacilityRepo(newFacility("f-1", "Acme"))
	reviews := &fakeReviewRepo{}
	svc := services.NewAggregateService(facilities, reviews, nil, nil, services.AggregateConfig{MaxAttempts: 2})
	_, err := svc.ApplyReview(ctx, storedReview(t, reviews, "r-1", "f-1", 4))
	require.NoError(t, err)
	before := facilities.get("f-1")

	facilities.injectConflicts = 10
	_, err = svc.Rebuild(ctx, "f-1")

	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
	after := facilities.get("f-1")
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, before.FacilityStats, after.FacilityStats)
	assert.Equal(t, before.ReviewIDs, after.ReviewIDs)
}
