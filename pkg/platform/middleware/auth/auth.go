// Package auth provides the middleware gate for admin endpoints. Admin access
// is granted by short-lived JWTs minted out of band by ops tooling; the
// middleware validates the token and requires the admin role claim.
package auth

import (
	"log/slog"
	"net/http"
	"strings"

	dErrors "siva/pkg/domain-errors"
	"siva/pkg/platform/httputil"
	"siva/pkg/requestcontext"
)

// RoleAdmin is the role claim required on tokens for admin endpoints.
const RoleAdmin = "admin"

// JWTValidator defines the interface for validating JWT tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator.
type JWTClaims struct {
	Subject string // actor identity, e.g. ops engineer email
	Role    string
	JTI     string
}

// RequireAdmin rejects requests without a valid Bearer token carrying the
// admin role. On success the actor subject is stored in the request context
// for audit attribution.
func RequireAdmin(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "admin access denied - missing token",
					"request_id", requestID,
					"path", r.URL.Path,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "admin access denied - invalid token",
					"request_id", requestID,
					"path", r.URL.Path,
					"error", err,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			if claims.Role != RoleAdmin {
				logger.WarnContext(ctx, "admin access denied - insufficient role",
					"request_id", requestID,
					"path", r.URL.Path,
					"subject", claims.Subject,
					"role", claims.Role,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "admin role required"))
				return
			}

			ctx = requestcontext.WithActor(ctx, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
