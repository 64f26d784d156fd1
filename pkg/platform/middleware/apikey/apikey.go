// Package apikey provides the middleware gate for tenant-facing endpoints.
// Tenants authenticate with bearer API keys of the form sk_<keyid>_<secret>;
// resolution (lookup, secret verification, status checks) is owned by the
// tenant service behind the TenantResolver interface.
package apikey

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	id "siva/pkg/domain"
	dErrors "siva/pkg/domain-errors"
	"siva/pkg/platform/httputil"
	"siva/pkg/requestcontext"
)

// Identity is the resolved caller of an API-key authenticated request.
type Identity struct {
	TenantID   id.TenantID
	TenantName string
	APIKeyID   id.APIKeyID
}

// TenantResolver verifies a raw API key and returns the tenant it belongs to.
// Implementations must return a domain error with CodeUnauthorized for any
// key that cannot be verified, without distinguishing unknown keys from
// wrong secrets.
type TenantResolver interface {
	ResolveAPIKey(ctx context.Context, rawKey string) (*Identity, error)
}

// RequireAPIKey rejects requests without a valid tenant API key. On success
// the tenant and key IDs are stored in the request context.
func RequireAPIKey(resolver TenantResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			rawKey := credentialFromRequest(r)
			if rawKey == "" {
				logger.WarnContext(ctx, "api key missing",
					"request_id", requestID,
					"path", r.URL.Path,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing API key"))
				return
			}

			identity, err := resolver.ResolveAPIKey(ctx, rawKey)
			if err != nil {
				if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
					logger.WarnContext(ctx, "api key rejected",
						"request_id", requestID,
						"path", r.URL.Path,
					)
				} else {
					logger.ErrorContext(ctx, "api key resolution failed",
						"request_id", requestID,
						"path", r.URL.Path,
						"error", err,
					)
				}
				httputil.WriteError(w, err)
				return
			}

			ctx = requestcontext.WithTenantID(ctx, identity.TenantID)
			ctx = requestcontext.WithAPIKeyID(ctx, identity.APIKeyID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// credentialFromRequest pulls the key from the Authorization header, or from
// X-API-Key for clients whose HTTP tooling reserves Authorization.
func credentialFromRequest(r *http.Request) string {
	if raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && raw != "" {
		return raw
	}
	return r.Header.Get("X-API-Key")
}
