package middleware

import (
	"net/http"

	"github.com/inthetow/backend/internal/application/services"
	"github.com/inthetow/backend/internal/domain/repositories"
)

// Loaders attaches fresh per-request dataloaders so lookups batch and never outlive the request
func Loaders(facilities repositories.FacilityRepository, users repositories.UserRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := services.WithLoaders(r.Context(), services.NewLoaders(facilities, users))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
