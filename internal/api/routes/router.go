package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/inthetow/backend/internal/api/handlers"
	"github.com/inthetow/backend/internal/api/middleware"
	"github.com/inthetow/backend/internal/domain/repositories"
	"github.com/inthetow/backend/internal/infrastructure/observability"
)

const readyTimeout = 2 * time.Second

// Handlers groups the HTTP handlers served by the router. Media may be nil when
// photos live in object storage.
type Handlers struct {
	Facility *handlers.FacilityHandler
	Review   *handlers.ReviewHandler
	Question *handlers.QuestionHandler
	User     *handlers.UserHandler
	Media    *handlers.MediaHandler
}

// Deps are the shared collaborators of the middleware chain. Cache and Metrics may be nil.
type Deps struct {
	Tokens         middleware.TokenValidator
	Facilities     repositories.FacilityRepository
	Users          repositories.UserRepository
	Cache          *middleware.CacheMiddleware
	Metrics        *observability.Metrics
	AllowedOrigins []string
	// Checks run by GET /ready, keyed by backend name
	Checks map[string]func(context.Context) error
}

// Router holds all route handlers
type Router struct {
	mux      *http.ServeMux
	handlers Handlers
	deps     Deps
}

// NewRouter creates a new router
func NewRouter(h Handlers, deps Deps) *Router {
	return &Router{
		mux:      http.NewServeMux(),
		handlers: h,
		deps:     deps,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	authed := middleware.RequireAuth(r.deps.Tokens)

	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.mux.HandleFunc("GET /ready", r.ready)

	// Users
	r.mux.HandleFunc("POST /api/users/signup", r.handlers.User.Signup)
	r.mux.HandleFunc("POST /api/users/login", r.handlers.User.Login)
	r.mux.HandleFunc("GET /api/users/me", authed(r.handlers.User.Me))
	r.mux.HandleFunc("PATCH /api/users/me", authed(r.handlers.User.UpdateMe))
	r.mux.HandleFunc("GET /api/users/{id}", r.handlers.User.GetUser)

	// Facilities
	r.mux.HandleFunc("GET /api/facilities", r.handlers.Facility.ListFacilities)
	r.mux.HandleFunc("GET /api/facilities/search", r.handlers.Facility.SearchFacilities)
	r.mux.HandleFunc("GET /api/facilities/active", r.handlers.Facility.ActiveFacilities)
	r.mux.HandleFunc("GET /api/facilities/{id}", r.handlers.Facility.GetFacility)
	r.mux.HandleFunc("GET /api/facilities/{id}/score", r.handlers.Facility.GetScore)
	r.mux.HandleFunc("GET /api/facilities/{id}/reviews", r.handlers.Review.ListFacilityReviews)
	r.mux.HandleFunc("POST /api/facilities", authed(r.handlers.Facility.CreateFacility))
	r.mux.HandleFunc("PATCH /api/facilities/{id}", authed(r.handlers.Facility.UpdateFacility))
	r.mux.HandleFunc("DELETE /api/facilities/{id}", authed(r.handlers.Facility.DeleteFacility))

	// Reviews
	r.mux.HandleFunc("GET /api/reviews", r.handlers.Review.ListReviews)
	r.mux.HandleFunc("POST /api/reviews", authed(r.handlers.Review.CreateReview))
	r.mux.HandleFunc("GET /api/reviews/mine", authed(r.handlers.Review.ListMyReviews))
	r.mux.HandleFunc("GET /api/reviews/{id}", r.handlers.Review.GetReview)

	// Questions
	r.mux.HandleFunc("POST /api/reviews/{id}/questions", authed(r.handlers.Question.AskQuestion))
	r.mux.HandleFunc("GET /api/reviews/{id}/questions", r.handlers.Question.ListQuestions)
	r.mux.HandleFunc("PATCH /api/questions/{id}/answer", authed(r.handlers.Question.AnswerQuestion))

	if r.handlers.Media != nil {
		r.mux.HandleFunc("GET /api/media/{token}", r.handlers.Media.ServeMedia)
	}

	// Last wrapper runs first. CORS is outermost so cache hits also get CORS headers.
	var handler http.Handler = r.mux
	handler = middleware.Loaders(r.deps.Facilities, r.deps.Users)(handler)
	handler = middleware.LoggingMiddleware(handler)
	if r.deps.Cache != nil {
		handler = r.deps.Cache.Middleware(handler)
	}
	handler = middleware.ObservabilityMiddleware(r.deps.Metrics)(handler)
	handler = middleware.ResponseOptimization(handler)
	handler = middleware.CORS(r.deps.AllowedOrigins)(handler)

	return handler
}

func (r *Router) ready(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), readyTimeout)
	defer cancel()

	status := make(map[string]string, len(r.deps.Checks))
	code := http.StatusOK
	for name, check := range r.deps.Checks {
		if err := check(ctx); err != nil {
			status[name] = err.Error()
			code = http.StatusServiceUnavailable
			continue
		}
		status[name] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(status)
}
