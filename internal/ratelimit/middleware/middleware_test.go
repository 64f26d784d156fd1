package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"siva/internal/ratelimit/middleware"
	"siva/internal/ratelimit/models"
	id "siva/pkg/domain"
	"siva/pkg/requestcontext"
)

// stubLimiter returns canned verdicts and records how it was consulted.
type stubLimiter struct {
	result     *models.RateLimitResult
	err        error
	ipCalls    int
	bothCalls  int
	lastIP     string
	lastTenant string
	lastClass  models.EndpointClass
}

func (s *stubLimiter) CheckIP(_ context.Context, ip string, class models.EndpointClass) (*models.RateLimitResult, error) {
	s.ipCalls++
	s.lastIP = ip
	s.lastClass = class
	return s.result, s.err
}

func (s *stubLimiter) CheckBoth(_ context.Context, ip, tenantID string, class models.EndpointClass) (*models.RateLimitResult, error) {
	s.bothCalls++
	s.lastIP = ip
	s.lastTenant = tenantID
	s.lastClass = class
	return s.result, s.err
}

type MiddlewareSuite struct {
	suite.Suite
	resetAt time.Time
}

func TestMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(MiddlewareSuite))
}

func (s *MiddlewareSuite) SetupTest() {
	s.resetAt = time.Now().Add(time.Minute).Truncate(time.Second)
}

func (s *MiddlewareSuite) allowed() *models.RateLimitResult {
	return &models.RateLimitResult{Allowed: true, Limit: 5, Remaining: 4, ResetAt: s.resetAt}
}

func (s *MiddlewareSuite) denied() *models.RateLimitResult {
	return &models.RateLimitResult{Allowed: false, Limit: 5, Remaining: 0, ResetAt: s.resetAt, RetryAfter: 30}
}

func (s *MiddlewareSuite) newMiddleware(limiter *stubLimiter, opts ...middleware.Option) *middleware.Middleware {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return middleware.New(limiter, logger, opts...)
}

// serve pushes a request with client metadata (and optionally a tenant)
// through the given middleware chain into a recording handler.
func (s *MiddlewareSuite) serve(mw func(http.Handler) http.Handler, tenantID id.TenantID) (*httptest.ResponseRecorder, *bool) {
	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/os/siva/evaluate-deal", nil)
	ctx := requestcontext.WithClientMetadata(req.Context(), "203.0.113.7", "test-agent")
	if !tenantID.IsNil() {
		ctx = requestcontext.WithTenantID(ctx, tenantID)
	}
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	mw(next).ServeHTTP(rec, req)
	return rec, &nextCalled
}

func (s *MiddlewareSuite) TestRateLimitAllows() {
	limiter := &stubLimiter{result: s.allowed()}
	mw := s.newMiddleware(limiter)

	rec, nextCalled := s.serve(mw.RateLimit(models.ClassRead), id.TenantID{})

	s.True(*nextCalled)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(1, limiter.ipCalls)
	s.Equal("203.0.113.7", limiter.lastIP)
	s.Equal(models.ClassRead, limiter.lastClass)

	s.Equal("5", rec.Header().Get("X-RateLimit-Limit"))
	s.Equal("4", rec.Header().Get("X-RateLimit-Remaining"))
	s.Equal(s.resetAt.Unix(), mustParseInt(s.T(), rec.Header().Get("X-RateLimit-Reset")))
}

func (s *MiddlewareSuite) TestRateLimitDenies() {
	limiter := &stubLimiter{result: s.denied()}
	mw := s.newMiddleware(limiter)

	rec, nextCalled := s.serve(mw.RateLimit(models.ClassAdmin), id.TenantID{})

	s.False(*nextCalled)
	s.Equal(http.StatusTooManyRequests, rec.Code)
	s.Equal("30", rec.Header().Get("Retry-After"))
	s.Equal("5", rec.Header().Get("X-RateLimit-Limit"))
	s.Equal("0", rec.Header().Get("X-RateLimit-Remaining"))

	var body models.RateLimitedResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Equal("rate_limited", body.Error)
	s.Equal(30, body.RetryAfter)
	s.NotEmpty(body.ErrorDescription)
}

func (s *MiddlewareSuite) TestRateLimitFailsOpen() {
	limiter := &stubLimiter{err: errors.New("redis: connection refused")}
	mw := s.newMiddleware(limiter)

	rec, nextCalled := s.serve(mw.RateLimit(models.ClassRead), id.TenantID{})

	s.True(*nextCalled, "limiter outages must not block requests")
	s.Equal(http.StatusOK, rec.Code)
	s.Empty(rec.Header().Get("X-RateLimit-Limit"))
}

func (s *MiddlewareSuite) TestRateLimitTenantChecksBothBudgets() {
	limiter := &stubLimiter{result: s.allowed()}
	mw := s.newMiddleware(limiter)
	tenantID := id.NewTenantID()

	rec, nextCalled := s.serve(mw.RateLimitTenant(models.ClassEvaluate), tenantID)

	s.True(*nextCalled)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(1, limiter.bothCalls)
	s.Equal(0, limiter.ipCalls)
	s.Equal(tenantID.String(), limiter.lastTenant)
	s.Equal("203.0.113.7", limiter.lastIP)
}

func (s *MiddlewareSuite) TestRateLimitTenantFallsBackToIPWithoutTenant() {
	limiter := &stubLimiter{result: s.allowed()}
	mw := s.newMiddleware(limiter)

	_, nextCalled := s.serve(mw.RateLimitTenant(models.ClassEvaluate), id.TenantID{})

	s.True(*nextCalled)
	s.Equal(1, limiter.ipCalls)
	s.Equal(0, limiter.bothCalls)
}

func (s *MiddlewareSuite) TestRateLimitTenantDenies() {
	limiter := &stubLimiter{result: s.denied()}
	mw := s.newMiddleware(limiter)

	rec, nextCalled := s.serve(mw.RateLimitTenant(models.ClassEvaluate), id.NewTenantID())

	s.False(*nextCalled)
	s.Equal(http.StatusTooManyRequests, rec.Code)
	s.Equal("30", rec.Header().Get("Retry-After"))
}

func (s *MiddlewareSuite) TestDisabledSkipsChecks() {
	limiter := &stubLimiter{result: s.denied()}
	mw := s.newMiddleware(limiter, middleware.WithDisabled(true))

	rec, nextCalled := s.serve(mw.RateLimit(models.ClassAdmin), id.TenantID{})

	s.True(*nextCalled)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(0, limiter.ipCalls)
	s.Empty(rec.Header().Get("X-RateLimit-Limit"))
}

func mustParseInt(t *testing.T, raw string) int64 {
	t.Helper()
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		t.Fatalf("not an integer: %q", raw)
	}
	return v
}
