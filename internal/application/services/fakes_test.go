package services_test

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/inthetow/backend/internal/domain/entities"
	"github.com/inthetow/backend/internal/domain/providers"
	"github.com/inthetow/backend/internal/domain/repositories"
	apperrors "github.com/inthetow/backend/pkg/errors"
)

func cloneFacility(f *entities.Facility) *entities.Facility {
	c := *f
	c.ReviewIDs = append([]string{}, f.ReviewIDs...)
	c.PhotoRefs = append([]string{}, f.PhotoRefs...)
	return &c
}

// fakeFacilityRepo keeps facilities in memory and enforces version-conditional aggregate writes
type fakeFacilityRepo struct {
	mu         sync.Mutex
	facilities map[string]*entities.Facility

	// injectConflicts makes the next n aggregate writes fail as if another writer won
	injectConflicts int
	aggregateWrites int
}

func newFakeFacilityRepo(facilities ...*entities.Facility) *fakeFacilityRepo {
	r := &fakeFacilityRepo{facilities: map[string]*entities.Facility{}}
	for _, f := range facilities {
		r.facilities[f.ID] = cloneFacility(f)
	}
	return r
}

func (r *fakeFacilityRepo) Create(ctx context.Context, f *entities.Facility) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.facilities[f.ID] = cloneFacility(f)
	return nil
}

func (r *fakeFacilityRepo) GetByID(ctx context.Context, id string) (*entities.Facility, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.facilities[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("facility with id %s not found", id))
	}
	return cloneFacility(f), nil
}

func (r *fakeFacilityRepo) GetByIDs(ctx context.Context, ids []string) ([]*entities.Facility, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*entities.Facility{}
	for _, id := range ids {
		if f, ok := r.facilities[id]; ok {
			out = append(out, cloneFacility(f))
		}
	}
	// storage order, not request order
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeFacilityRepo) Update(ctx context.Context, f *entities.Facility) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.facilities[f.ID]
	if !ok {
		return apperrors.NewNotFoundError("facility not found")
	}
	stored.Name = f.Name
	stored.Address = f.Address
	stored.PhoneNumber = f.PhoneNumber
	stored.GooglePlaceID = f.GooglePlaceID
	return nil
}

func (r *fakeFacilityRepo) UpdateAggregates(ctx context.Context, id string, expectedVersion int64, stats entities.FacilityStats, reviewID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aggregateWrites++
	if r.injectConflicts > 0 {
		r.injectConflicts--
		return apperrors.NewConflictError("injected conflict")
	}
	f, ok := r.facilities[id]
	if !ok || f.Version != expectedVersion {
		return apperrors.NewConflictError("version mismatch")
	}
	f.FacilityStats = stats
	f.ReviewIDs = append(f.ReviewIDs, reviewID)
	f.Version++
	return nil
}

func (r *fakeFacilityRepo) ReplaceAggregates(ctx context.Context, id string, expectedVersion int64, stats entities.FacilityStats, reviewIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aggregateWrites++
	if r.injectConflicts > 0 {
		r.injectConflicts--
		return apperrors.NewConflictError("injected conflict")
	}
	f, ok := r.facilities[id]
	if !ok || f.Version != expectedVersion {
		return apperrors.NewConflictError("version mismatch")
	}
	f.FacilityStats = stats
	f.ReviewIDs = append([]string{}, reviewIDs...)
	f.Version++
	return nil
}

// bump simulates a write that bypasses any cache in front of the repo
func (r *fakeFacilityRepo) bump(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.facilities[id].Version++
}

func (r *fakeFacilityRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.facilities[id]; !ok {
		return apperrors.NewNotFoundError("facility not found")
	}
	delete(r.facilities, id)
	return nil
}

func (r *fakeFacilityRepo) List(ctx context.Context, filter repositories.FacilityFilter) ([]*entities.Facility, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*entities.Facility{}
	for _, f := range r.facilities {
		out = append(out, cloneFacility(f))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if filter.Offset >= len(out) {
		return []*entities.Facility{}, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *fakeFacilityRepo) Search(ctx context.Context, params repositories.SearchParams) ([]*entities.Facility, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q := strings.ToLower(params.Query)
	out := []*entities.Facility{}
	for _, f := range r.facilities {
		if strings.Contains(strings.ToLower(f.Name), q) || strings.Contains(strings.ToLower(f.Address.City), q) {
			out = append(out, cloneFacility(f))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeFacilityRepo) get(id string) *entities.Facility {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.facilities[id]
	if !ok {
		return nil
	}
	return cloneFacility(f)
}

// fakeReviewRepo keeps reviews in insertion order; later inserts are newer
type fakeReviewRepo struct {
	mu      sync.Mutex
	reviews []*entities.Review
	deleted []string

	// afterList runs once, after the next List call has taken its snapshot
	afterList func()
}

func (r *fakeReviewRepo) Create(ctx context.Context, review *entities.Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *review
	r.reviews = append(r.reviews, &c)
	return nil
}

func (r *fakeReviewRepo) GetByID(ctx context.Context, id string) (*entities.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rv := range r.reviews {
		if rv.ID == id {
			c := *rv
			return &c, nil
		}
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("review with id %s not found", id))
}

func (r *fakeReviewRepo) List(ctx context.Context, filter repositories.ReviewFilter) ([]*entities.Review, error) {
	out := r.list(filter)
	if hook := r.takeAfterList(); hook != nil {
		hook()
	}
	return out, nil
}

func (r *fakeReviewRepo) takeAfterList() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	hook := r.afterList
	r.afterList = nil
	return hook
}

func (r *fakeReviewRepo) list(filter repositories.ReviewFilter) []*entities.Review {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*entities.Review{}
	for _, rv := range r.reviews {
		if filter.FacilityID != "" && rv.FacilityID != filter.FacilityID {
			continue
		}
		if filter.UserID != "" && rv.UserID != filter.UserID {
			continue
		}
		c := *rv
		out = append(out, &c)
	}
	if !filter.Ascending {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

func (r *fakeReviewRepo) RecentRatings(ctx context.Context, facilityID string, reviewIDs []string, n int) ([]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []int{}
	for i := len(r.reviews) - 1; i >= 0 && len(out) < n; i-- {
		if r.reviews[i].FacilityID == facilityID && slices.Contains(reviewIDs, r.reviews[i].ID) {
			out = append(out, r.reviews[i].Rating)
		}
	}
	return out, nil
}

func (r *fakeReviewRepo) AppendQuestion(ctx context.Context, reviewID, questionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rv := range r.reviews {
		if rv.ID == reviewID {
			rv.QuestionIDs = append(rv.QuestionIDs, questionID)
			return nil
		}
	}
	return apperrors.NewNotFoundError("review not found")
}

func (r *fakeReviewRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, rv := range r.reviews {
		if rv.ID == id {
			r.reviews = append(r.reviews[:i], r.reviews[i+1:]...)
			r.deleted = append(r.deleted, id)
			return nil
		}
	}
	return apperrors.NewNotFoundError("review not found")
}

func (r *fakeReviewRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reviews)
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*entities.User
}

func newFakeUserRepo(users ...*entities.User) *fakeUserRepo {
	r := &fakeUserRepo{users: map[string]*entities.User{}}
	for _, u := range users {
		c := *u
		r.users[u.ID] = &c
	}
	return r
}

func (r *fakeUserRepo) Create(ctx context.Context, user *entities.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return apperrors.NewConflictError("an account with this email already exists")
		}
	}
	c := *user
	r.users[user.ID] = &c
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*entities.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("user with id %s not found", id))
	}
	c := *u
	c.ReviewIDs = append([]string{}, u.ReviewIDs...)
	return &c, nil
}

func (r *fakeUserRepo) GetByIDs(ctx context.Context, ids []string) ([]*entities.User, error) {
	out := []*entities.User{}
	for _, id := range ids {
		if u, err := r.GetByID(ctx, id); err == nil {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == strings.ToLower(email) {
			c := *u
			return &c, nil
		}
	}
	return nil, apperrors.NewNotFoundError("user not found")
}

func (r *fakeUserRepo) Update(ctx context.Context, user *entities.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.users[user.ID]
	if !ok {
		return apperrors.NewNotFoundError("user not found")
	}
	stored.DisplayName = user.DisplayName
	stored.CompanyName = user.CompanyName
	stored.ProfilePicture = user.ProfilePicture
	return nil
}

func (r *fakeUserRepo) AppendReview(ctx context.Context, userID, reviewID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return apperrors.NewNotFoundError("user not found")
	}
	u.ReviewIDs = append(u.ReviewIDs, reviewID)
	return nil
}

func (r *fakeUserRepo) RemoveReview(ctx context.Context, userID, reviewID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return apperrors.NewNotFoundError("user not found")
	}
	kept := []string{}
	for _, id := range u.ReviewIDs {
		if id != reviewID {
			kept = append(kept, id)
		}
	}
	u.ReviewIDs = kept
	return nil
}

type fakeQuestionRepo struct {
	mu        sync.Mutex
	questions []*entities.Question
}

func (r *fakeQuestionRepo) Create(ctx context.Context, q *entities.Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *q
	r.questions = append(r.questions, &c)
	return nil
}

func (r *fakeQuestionRepo) GetByID(ctx context.Context, id string) (*entities.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range r.questions {
		if q.ID == id {
			c := *q
			return &c, nil
		}
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("question with id %s not found", id))
}

func (r *fakeQuestionRepo) ListByReview(ctx context.Context, reviewID string) ([]*entities.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*entities.Question{}
	for _, q := range r.questions {
		if q.ReviewID == reviewID {
			c := *q
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *fakeQuestionRepo) SetAnswer(ctx context.Context, id, answer string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range r.questions {
		if q.ID == id {
			a := answer
			q.AnswerText = &a
			return nil
		}
	}
	return apperrors.NewNotFoundError("question not found")
}

// MockMediaStore is a testify mock of providers.MediaStore
type MockMediaStore struct {
	mock.Mock
}

func (m *MockMediaStore) Store(ctx context.Context, data []byte, contentType string) (string, error) {
	args := m.Called(ctx, data, contentType)
	return args.String(0), args.Error(1)
}

func (m *MockMediaStore) URLFor(ctx context.Context, token string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, token, ttl)
	return args.String(0), args.Error(1)
}

// MockSearchRepo is a testify mock of repositories.FacilitySearchRepository
type MockSearchRepo struct {
	mock.Mock
}

func (m *MockSearchRepo) Search(ctx context.Context, params repositories.SearchParams) ([]*entities.Facility, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Facility), args.Error(1)
}

func (m *MockSearchRepo) Index(ctx context.Context, facility *entities.Facility) error {
	return m.Called(ctx, facility).Error(0)
}

func (m *MockSearchRepo) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type fakeActivityTracker struct {
	mu     sync.Mutex
	counts map[string]float64
}

func newFakeActivityTracker() *fakeActivityTracker {
	return &fakeActivityTracker{counts: map[string]float64{}}
}

func (t *fakeActivityTracker) Increment(ctx context.Context, facilityID string, amount float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[facilityID] += amount
	return nil
}

func (t *fakeActivityTracker) Top(ctx context.Context, n int) ([]providers.ActivityScore, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := []providers.ActivityScore{}
	for id, c := range t.counts {
		out = append(out, providers.ActivityScore{FacilityID: id, Score: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (t *fakeActivityTracker) get(id string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[id]
}

// MockEventBus fans published events out to in-process subscribers
type MockEventBus struct {
	mu          sync.Mutex
	subscribers []mockSubscriber
	published   []*entities.FacilityEvent
	publishErr  error
}

type mockSubscriber struct {
	ch    chan *entities.FacilityEvent
	types []entities.FacilityEventType
}

func NewMockEventBus() *MockEventBus {
	return &MockEventBus{}
}

func (m *MockEventBus) Publish(ctx context.Context, event *entities.FacilityEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, event)
	for _, sub := range m.subscribers {
		if len(sub.types) > 0 && !slices.Contains(sub.types, event.Type) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
		}
	}
	return nil
}

func (m *MockEventBus) Subscribe(ctx context.Context, types ...entities.FacilityEventType) (<-chan *entities.FacilityEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan *entities.FacilityEvent, 10)
	m.subscribers = append(m.subscribers, mockSubscriber{ch: ch, types: types})
	return ch, nil
}

func (m *MockEventBus) Close() error {
	return nil
}

func (m *MockEventBus) subscriberCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscribers)
}

func (m *MockEventBus) events() []*entities.FacilityEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*entities.FacilityEvent{}, m.published...)
}

// MockCacheProvider for testing
type MockCacheProvider struct {
	mu      sync.Mutex
	data    map[string][]byte
	deleted []string
}

func NewMockCacheProvider() *MockCacheProvider {
	return &MockCacheProvider{data: map[string][]byte{}}
}

func (m *MockCacheProvider) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, providers.ErrCacheMiss
}

func (m *MockCacheProvider) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MockCacheProvider) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *MockCacheProvider) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok, nil
}

func (m *MockCacheProvider) DeletePattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.data {
		if strings.HasPrefix(key, prefix) {
			delete(m.data, key)
			m.deleted = append(m.deleted, key)
		}
	}
	return nil
}

func (m *MockCacheProvider) GetMulti(ctx context.Context, keys []string) (map[string][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string][]byte{}
	for _, k := range keys {
		if v, ok := m.data[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *MockCacheProvider) SetMulti(ctx context.Context, items map[string][]byte, expirationSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range items {
		m.data[k] = v
	}
	return nil
}

func (m *MockCacheProvider) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}
