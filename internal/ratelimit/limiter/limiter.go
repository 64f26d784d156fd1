// Package limiter decides whether a request fits its per-tenant and per-IP
// budgets. The counter increments before the verdict, so a denied request
// still counts against the window it landed in.
package limiter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"siva/internal/audit"
	"siva/internal/ratelimit/config"
	ratelimitmetrics "siva/internal/ratelimit/metrics"
	"siva/internal/ratelimit/models"
	id "siva/pkg/domain"
	dErrors "siva/pkg/domain-errors"
	"siva/pkg/platform/device"
	"siva/pkg/requestcontext"
)

// CounterStore counts requests in fixed windows. Incr returns the count
// including the current request and the moment the window resets.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int, resetAt time.Time, err error)
}

// AuditPublisher records rate limit denials on the audit trail.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service enforces the per-class budgets from config against a counter store.
type Service struct {
	counters CounterStore
	config   *config.Config
	logger   *slog.Logger
	audit    AuditPublisher
	metrics  *ratelimitmetrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.audit = publisher
	}
}

func WithMetrics(m *ratelimitmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(counters CounterStore, opts ...Option) (*Service, error) {
	if counters == nil {
		return nil, errors.New("counter store is required")
	}

	s := &Service{
		counters: counters,
		config:   config.DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CheckIP enforces the per-IP budget for class.
func (s *Service) CheckIP(ctx context.Context, ip string, class models.EndpointClass) (*models.RateLimitResult, error) {
	limit, ok := s.config.GetIPLimit(class)
	if !ok {
		return s.denyUnconfigured(ctx, models.KeyKindIP, class), nil
	}
	return s.check(ctx, models.NewIPKey(ip, class), limit)
}

// CheckTenant enforces the per-tenant budget for class.
func (s *Service) CheckTenant(ctx context.Context, tenantID string, class models.EndpointClass) (*models.RateLimitResult, error) {
	limit, ok := s.config.GetTenantLimit(class)
	if !ok {
		return s.denyUnconfigured(ctx, models.KeyKindTenant, class), nil
	}
	return s.check(ctx, models.NewTenantKey(tenantID, class), limit)
}

// CheckBoth enforces the IP budget and then the tenant budget. The IP check
// runs first so a flood from one address is cut off before it drains the
// tenant's contractual quota.
func (s *Service) CheckBoth(ctx context.Context, ip, tenantID string, class models.EndpointClass) (*models.RateLimitResult, error) {
	ipRes, err := s.CheckIP(ctx, ip, class)
	if err != nil {
		return nil, err
	}
	if !ipRes.Allowed {
		return ipRes, nil
	}

	tenantRes, err := s.CheckTenant(ctx, tenantID, class)
	if err != nil {
		return nil, err
	}
	if !tenantRes.Allowed {
		return tenantRes, nil
	}

	return moreRestrictiveResult(ipRes, tenantRes), nil
}

func (s *Service) check(ctx context.Context, key models.CounterKey, limit config.Limit) (*models.RateLimitResult, error) {
	count, resetAt, err := s.counters.Incr(ctx, key.String(), limit.Window)
	if err != nil {
		s.metrics.IncrementStoreError()
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count request")
	}

	allowed := count <= limit.RequestsPerWindow
	s.metrics.ObserveCheck(key.Class, key.Kind, allowed)

	result := &models.RateLimitResult{
		Allowed:   allowed,
		Limit:     limit.RequestsPerWindow,
		Remaining: max(limit.RequestsPerWindow-count, 0),
		ResetAt:   resetAt,
	}
	if !allowed {
		result.RetryAfter = retryAfterSeconds(requestcontext.Now(ctx), resetAt)
		s.recordDenial(ctx, key, limit)
	}
	return result, nil
}

// denyUnconfigured is the default-deny path for classes with no budget of
// the requested kind.
func (s *Service) denyUnconfigured(ctx context.Context, kind models.KeyKind, class models.EndpointClass) *models.RateLimitResult {
	s.logger.ErrorContext(ctx, "no rate limit budget configured",
		"kind", kind,
		"class", class,
	)
	s.metrics.ObserveCheck(class, kind, false)
	return &models.RateLimitResult{
		Allowed:    false,
		ResetAt:    requestcontext.Now(ctx),
		RetryAfter: 60,
	}
}

func (s *Service) recordDenial(ctx context.Context, key models.CounterKey, limit config.Limit) {
	s.logger.WarnContext(ctx, "rate limit exceeded",
		"kind", key.Kind,
		"class", key.Class,
		"identifier", key.Identifier,
		"limit", limit.RequestsPerWindow,
		"window_seconds", int(limit.Window.Seconds()),
	)
	if s.audit == nil {
		return
	}

	event := audit.Event{
		Timestamp:    requestcontext.Now(ctx),
		Action:       string(audit.EventRateLimitExceeded),
		Subject:      key.Identifier,
		Reason:       fmt.Sprintf("%s budget for class %s exhausted: %d requests per %s", key.Kind, key.Class, limit.RequestsPerWindow, limit.Window),
		ClientIP:     requestcontext.ClientIP(ctx),
		ClientDevice: device.Display(requestcontext.UserAgent(ctx)),
	}
	if key.Kind == models.KeyKindTenant {
		if tenantID, err := id.ParseTenantID(key.Identifier); err == nil {
			event.TenantID = tenantID
		}
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to record rate limit denial on audit trail", "error", err)
	}
}

// retryAfterSeconds rounds up so a client sleeping the advertised time never
// lands inside the same window.
func retryAfterSeconds(now, resetAt time.Time) int {
	secs := int(math.Ceil(resetAt.Sub(now).Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// moreRestrictiveResult returns the result with fewer remaining requests, or
// the earlier reset when remaining counts are equal, so headers always show
// the budget closest to exhaustion.
func moreRestrictiveResult(a, b *models.RateLimitResult) *models.RateLimitResult {
	if a.Remaining < b.Remaining {
		return a
	}
	if b.Remaining < a.Remaining {
		return b
	}
	if a.ResetAt.Before(b.ResetAt) {
		return a
	}
	return b
}
