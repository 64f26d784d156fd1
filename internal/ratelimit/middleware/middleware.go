// Package middleware applies rate limit verdicts at the HTTP boundary.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"siva/internal/ratelimit/models"
	dErrors "siva/pkg/domain-errors"
	"siva/pkg/platform/httputil"
	"siva/pkg/requestcontext"
)

// RateLimiter is the slice of the limiter service the middleware needs.
type RateLimiter interface {
	CheckIP(ctx context.Context, ip string, class models.EndpointClass) (*models.RateLimitResult, error)
	CheckBoth(ctx context.Context, ip, tenantID string, class models.EndpointClass) (*models.RateLimitResult, error)
}

type Middleware struct {
	limiter  RateLimiter
	logger   *slog.Logger
	disabled bool
}

type Option func(*Middleware)

// WithDisabled disables rate limiting entirely (for testing/demo mode).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func New(limiter RateLimiter, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		limiter: limiter,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// RateLimit enforces the per-IP budget for class. Limiter failures fail open:
// the request passes unmetered and the error is logged.
func (m *Middleware) RateLimit(class models.EndpointClass) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)

			result, err := m.limiter.CheckIP(ctx, ip, class)
			if err != nil {
				m.logger.ErrorContext(ctx, "rate limit check failed", "error", err, "class", class, "ip", ip)
				next.ServeHTTP(w, r)
				return
			}

			// Headers go on every response, allowed or not.
			addRateLimitHeaders(w, result)

			if !result.Allowed {
				writeRateLimited(w, result)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitTenant enforces the per-IP and per-tenant budgets for class.
// Mount inside the API key middleware so the tenant identity is resolved by
// the time the check runs.
func (m *Middleware) RateLimitTenant(class models.EndpointClass) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)
			tenantID := requestcontext.TenantID(ctx)

			var (
				result *models.RateLimitResult
				err    error
			)
			if tenantID.IsNil() {
				// No resolved tenant means the route is miswired; keep the
				// IP backstop rather than pooling callers in one bucket.
				m.logger.ErrorContext(ctx, "tenant rate limit without resolved tenant", "class", class, "path", r.URL.Path)
				result, err = m.limiter.CheckIP(ctx, ip, class)
			} else {
				result, err = m.limiter.CheckBoth(ctx, ip, tenantID.String(), class)
			}
			if err != nil {
				m.logger.ErrorContext(ctx, "rate limit check failed", "error", err, "class", class, "ip", ip)
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)

			if !result.Allowed {
				writeRateLimited(w, result)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimited(w http.ResponseWriter, result *models.RateLimitResult) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.RateLimitedResponse{
		Error:            string(dErrors.CodeRateLimited),
		ErrorDescription: "Too many requests. Please try again later.",
		RetryAfter:       result.RetryAfter,
	})
}
