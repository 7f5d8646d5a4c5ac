package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/inthetow/backend/internal/adapters/media"
	"github.com/inthetow/backend/internal/api/handlers"
	"github.com/inthetow/backend/internal/api/middleware"
	"github.com/inthetow/backend/internal/application/services"
	"github.com/inthetow/backend/internal/domain/entities"
	"github.com/inthetow/backend/internal/domain/repositories"
	apperrors "github.com/inthetow/backend/pkg/errors"
)

type errorResponse struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func asUser(req *http.Request, userID string) *http.Request {
	return req.WithContext(middleware.WithUserID(req.Context(), userID))
}

func TestFacilityHandler_GetFacility_MapsErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		kind    string
		message string
	}{
		{"not found", apperrors.NewNotFoundError("facility with id f-9 not found"), http.StatusNotFound, "NOT_FOUND", "facility with id f-9 not found"},
		{"conflict", apperrors.NewConflictError("facility changed concurrently"), http.StatusConflict, "CONFLICT", "facility changed concurrently"},
		{"external", apperrors.NewExternalError("failed to store photo", errors.New("s3 down")), http.StatusBadGateway, "EXTERNAL", "failed to store photo"},
		{"internal hides details", apperrors.NewInternalError("pq: connection refused", nil), http.StatusInternalServerError, "INTERNAL", "internal server error"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "INTERNAL", "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockFacilityService)
			svc.On("GetByID", mock.Anything, "f-9").Return(nil, tt.err)
			mux := http.NewServeMux()
			mux.HandleFunc("GET /api/facilities/{id}", handlers.NewFacilityHandler(svc).GetFacility)

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/facilities/f-9", nil))

			assert.Equal(t, tt.status, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tt.kind, body.Error.Kind)
			assert.Equal(t, tt.message, body.Error.Message)
		})
	}
}

func TestFacilityHandler_ListFacilities(t *testing.T) {
	svc := new(MockFacilityService)
	svc.On("List", mock.Anything, repositories.FacilityFilter{State: "NV", Limit: 10, Offset: 20}).
		Return([]*entities.Facility{{ID: "f-1", Name: "Acme"}}, nil)
	h := handlers.NewFacilityHandler(svc)

	rec := httptest.NewRecorder()
	h.ListFacilities(rec, httptest.NewRequest(http.MethodGet, "/api/facilities?state=NV&limit=10&offset=20", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Facilities []entities.Facility `json:"facilities"`
		Count      int                 `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "Acme", body.Facilities[0].Name)

	rec = httptest.NewRecorder()
	h.ListFacilities(rec, httptest.NewRequest(http.MethodGet, "/api/facilities?limit=ten", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFacilityHandler_UpdateFacility_RejectsAggregateFields(t *testing.T) {
	svc := new(MockFacilityService)
	mux := http.NewServeMux()
	mux.HandleFunc("PATCH /api/facilities/{id}", handlers.NewFacilityHandler(svc).UpdateFacility)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/api/facilities/f-1",
		strings.NewReader(`{"in_the_tow_score": 100}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestReviewHandler_CreateReview_JSON(t *testing.T) {
	svc := new(MockReviewService)
	svc.On("Create", mock.Anything, "u-1", mock.MatchedBy(func(in services.CreateReviewInput) bool {
		return in.FacilityID == "f-1" && in.Rating == 4 && in.Safety != nil && *in.Safety == 5
	})).Return(&entities.ReviewView{Review: &entities.Review{ID: "r-1", FacilityID: "f-1", Rating: 4}}, nil)
	h := handlers.NewReviewHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/reviews",
		strings.NewReader(`{"facility_id":"f-1","rating":4,"safety":5,"review_text":"Quick unload"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.CreateReview(rec, asUser(req, "u-1"))

	require.Equal(t, http.StatusCreated, rec.Code)
	var body entities.Review
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "r-1", body.ID)
	svc.AssertExpectations(t)
}

func TestReviewHandler_CreateReview_Multipart(t *testing.T) {
	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("review", `{"facility_id":"f-1","rating":3}`))
	for _, name := range []string{"dock.png", "gate.png"} {
		part, err := mw.CreateFormFile("photos", name)
		require.NoError(t, err)
		_, err = part.Write(png)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	svc := new(MockReviewService)
	svc.On("Create", mock.Anything, "u-1", mock.MatchedBy(func(in services.CreateReviewInput) bool {
		return in.Rating == 3 && len(in.Photos) == 2 &&
			in.Photos[0].Filename == "dock.png" && bytes.Equal(in.Photos[1].Data, png)
	})).Return(&entities.ReviewView{Review: &entities.Review{ID: "r-2"}}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/reviews", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	handlers.NewReviewHandler(svc).CreateReview(rec, asUser(req, "u-1"))

	assert.Equal(t, http.StatusCreated, rec.Code)
	svc.AssertExpectations(t)
}

func TestReviewHandler_CreateReview_TooManyPhotos(t *testing.T) {
	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("review", `{"facility_id":"f-1","rating":3}`))
	for i := 0; i <= services.MaxReviewPhotos; i++ {
		part, err := mw.CreateFormFile("photos", fmt.Sprintf("dock-%d.png", i))
		require.NoError(t, err)
		_, err = part.Write(png)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	svc := new(MockReviewService)
	req := httptest.NewRequest(http.MethodPost, "/api/reviews", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	handlers.NewReviewHandler(svc).CreateReview(rec, asUser(req, "u-1"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, fmt.Sprintf("at most %d photos may be attached", services.MaxReviewPhotos), decodeError(t, rec).Error.Message)
	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestReviewHandler_CreateReview_RequiresCaller(t *testing.T) {
	svc := new(MockReviewService)
	rec := httptest.NewRecorder()
	handlers.NewReviewHandler(svc).CreateReview(rec, httptest.NewRequest(http.MethodPost, "/api/reviews", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestReviewHandler_CreateReview_ValidationFromService(t *testing.T) {
	svc := new(MockReviewService)
	svc.On("Create", mock.Anything, "u-1", mock.Anything).
		Return(nil, apperrors.NewValidationError("rating must be at least 1"))

	req := httptest.NewRequest(http.MethodPost, "/api/reviews", strings.NewReader(`{"facility_id":"f-1"}`))
	rec := httptest.NewRecorder()
	handlers.NewReviewHandler(svc).CreateReview(rec, asUser(req, "u-1"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION", decodeError(t, rec).Error.Kind)
}

func TestReviewHandler_ListFacilityReviews(t *testing.T) {
	svc := new(MockReviewService)
	svc.On("ListByFacility", mock.Anything, "f-1", 5, 0).
		Return([]*entities.ReviewView{{Review: &entities.Review{ID: "r-2"}}, {Review: &entities.Review{ID: "r-1"}}}, nil)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/facilities/{id}/reviews", handlers.NewReviewHandler(svc).ListFacilityReviews)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/facilities/f-1/reviews?limit=5", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":2`)
}

func TestQuestionHandler_AskQuestion(t *testing.T) {
	svc := new(MockQuestionService)
	svc.On("Ask", mock.Anything, "r-1", "u-2", "Lumper fee?").
		Return(&entities.Question{ID: "q-1", ReviewID: "r-1", QuestionText: "Lumper fee?"}, nil)
	svc.On("Ask", mock.Anything, "r-1", "u-1", "Mine?").
		Return(nil, apperrors.NewForbiddenError("you cannot ask a question on your own review"))
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/reviews/{id}/questions", handlers.NewQuestionHandler(svc).AskQuestion)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodPost, "/api/reviews/r-1/questions",
		strings.NewReader(`{"question_text":"Lumper fee?"}`)), "u-2"))
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodPost, "/api/reviews/r-1/questions",
		strings.NewReader(`{"question_text":"Mine?"}`)), "u-1"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestQuestionHandler_AnswerQuestion(t *testing.T) {
	answer := "About $150"
	svc := new(MockQuestionService)
	svc.On("Answer", mock.Anything, "q-1", answer).
		Return(&entities.Question{ID: "q-1", AnswerText: &answer}, nil)
	mux := http.NewServeMux()
	mux.HandleFunc("PATCH /api/questions/{id}/answer", handlers.NewQuestionHandler(svc).AnswerQuestion)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodPatch, "/api/questions/q-1/answer",
		strings.NewReader(`{"answer_text":"About $150"}`)), "u-1"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"answer_text":"About $150"`)
}

func TestUserHandler_SignupAndLogin(t *testing.T) {
	svc := new(MockUserService)
	in := services.SignupInput{Email: "d@example.com", Password: "Str0ng!Pass", DisplayName: "Road Runner"}
	svc.On("Signup", mock.Anything, in).Return(&services.AuthResult{Email: "d@example.com", Token: "tok"}, nil)
	svc.On("Login", mock.Anything, services.LoginInput{Email: "d@example.com", Password: "nope"}).
		Return(nil, apperrors.NewUnauthorizedError("invalid email or password"))
	h := handlers.NewUserHandler(svc)

	rec := httptest.NewRecorder()
	h.Signup(rec, httptest.NewRequest(http.MethodPost, "/api/users/signup",
		strings.NewReader(`{"email":"d@example.com","password":"Str0ng!Pass","display_name":"Road Runner"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"email":"d@example.com","token":"tok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/users/login",
		strings.NewReader(`{"email":"d@example.com","password":"nope"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.Signup(rec, httptest.NewRequest(http.MethodPost, "/api/users/signup", strings.NewReader(`{"email":`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserHandler_MeHidesPasswordHash(t *testing.T) {
	svc := new(MockUserService)
	svc.On("Me", mock.Anything, "u-1").
		Return(&entities.User{ID: "u-1", Email: "d@example.com", PasswordHash: "$2a$10$secret"}, nil)

	rec := httptest.NewRecorder()
	handlers.NewUserHandler(svc).Me(rec, asUser(httptest.NewRequest(http.MethodGet, "/api/users/me", nil), "u-1"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestMediaHandler_ServeMedia(t *testing.T) {
	dir := t.TempDir()
	store, err := media.NewDiskStore(dir, "http://localhost/api/media", "media-key")
	require.NoError(t, err)
	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 16)...)
	token, err := store.Store(context.Background(), png, "image/png")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, token))
	require.NoError(t, err)

	signed, err := store.URLFor(context.Background(), token, time.Minute)
	require.NoError(t, err)
	path := strings.TrimPrefix(signed, "http://localhost")

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/media/{token}", handlers.NewMediaHandler(store).ServeMedia)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, png, rec.Body.Bytes())

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/media/"+token+"?exp=1&sig=00", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
