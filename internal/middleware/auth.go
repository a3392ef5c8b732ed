package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	logpkg "github.com/otakon/companion/internal/logger"
	"github.com/otakon/companion/internal/models"
	"github.com/otakon/companion/internal/request"
)

// UserVerifier validates a bearer token and returns the authenticated user.
type UserVerifier interface {
	Verify(ctx context.Context, token string) (*models.User, error)
}

// Auth creates authentication middleware that validates bearer tokens and
// attaches the resulting user to the request context.
func Auth(verifier UserVerifier, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondErrorJSON(w, r, http.StatusUnauthorized, "Unauthorized", "Missing Authorization header", logger)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				respondErrorJSON(w, r, http.StatusUnauthorized, "Unauthorized", "Invalid Authorization header format", logger)
				return
			}

			user, err := verifier.Verify(r.Context(), parts[1])
			if err != nil {
				logger.Debug("token verification failed", zap.String("error", logpkg.SanitizeError(err)))
				respondErrorJSON(w, r, http.StatusUnauthorized, "Unauthorized", "Invalid or expired token", logger)
				return
			}

			ctx := request.WithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
