package middleware

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"boardsync-backend/pkg/auth"
)

// Authenticate validates the bearer token and stores the user in the
// request context. Requests without a valid token never reach a handler.
func Authenticate(jwtService *auth.JWTService, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if token == "" {
				http.Error(w, `{"error":"missing authorization token"}`, http.StatusUnauthorized)
				return
			}

			claims, err := jwtService.ValidateToken(token)
			if err != nil {
				logger.Debug("Token validation failed", zap.Error(err))
				http.Error(w, `{"error":"invalid authorization token"}`, http.StatusUnauthorized)
				return
			}

			user := &auth.UserContext{
				UserID:      claims.UserID,
				DisplayName: claims.DisplayName,
			}
			next.ServeHTTP(w, r.WithContext(auth.SetUserInContext(r.Context(), user)))
		})
	}
}
