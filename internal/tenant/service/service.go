// Package service orchestrates tenant and API key management. It owns the
// error translation between store sentinels and domain errors, the audit
// trail for lifecycle changes, and the ResolveAPIKey choke point every
// authenticated request passes through.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"siva/internal/audit"
	tenantmetrics "siva/internal/tenant/metrics"
	"siva/internal/tenant/models"
	"siva/pkg/attrs"
	id "siva/pkg/domain"
	dErrors "siva/pkg/domain-errors"
	"siva/pkg/platform/device"
	"siva/pkg/platform/sentinel"
	"siva/pkg/requestcontext"
)

type TenantStore interface {
	CreateIfNameAvailable(ctx context.Context, tenant *models.Tenant) error
	FindByID(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error)
	// Execute runs validate then mutate while holding the store lock
	// (mutex or FOR UPDATE) so transitions cannot interleave.
	Execute(
		ctx context.Context,
		tenantID id.TenantID,
		validate func(*models.Tenant) error,
		mutate func(*models.Tenant),
	) (*models.Tenant, error)
}

type KeyStore interface {
	Create(ctx context.Context, key *models.APIKey) error
	FindByID(ctx context.Context, keyID id.APIKeyID) (*models.APIKey, error)
	ListByTenant(ctx context.Context, tenantID id.TenantID) ([]*models.APIKey, error)
	CountByTenant(ctx context.Context, tenantID id.TenantID) (int, error)
	Execute(
		ctx context.Context,
		tenantID id.TenantID,
		keyID id.APIKeyID,
		validate func(*models.APIKey) error,
		mutate func(*models.APIKey),
	) (*models.APIKey, error)
	TouchLastUsed(ctx context.Context, keyID id.APIKeyID, when time.Time) error
}

// AuditPublisher records tenant and key lifecycle changes on the audit trail.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service orchestrates tenant and API key management.
type Service struct {
	tenants TenantStore
	keys    KeyStore
	logger  *slog.Logger
	audit   AuditPublisher
	metrics *tenantmetrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.audit = publisher
	}
}

func WithMetrics(m *tenantmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service.
func New(tenants TenantStore, keys KeyStore, opts ...Option) *Service {
	s := &Service{tenants: tenants, keys: keys, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateTenant registers a new active tenant. The plan string is parsed
// here so transport layers stay free of tier taxonomy; empty defaults to
// trial.
func (s *Service) CreateTenant(ctx context.Context, name, plan string) (*models.Tenant, error) {
	parsedPlan, err := models.ParsePlan(strings.TrimSpace(plan))
	if err != nil {
		return nil, err
	}

	tenant, err := models.NewTenant(id.NewTenantID(), strings.TrimSpace(name), parsedPlan, requestcontext.Now(ctx))
	if err != nil {
		// Convert invariant violations to validation errors for API response
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	if err := s.tenants.CreateIfNameAvailable(ctx, tenant); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "tenant name must be unique")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create tenant")
	}

	s.logAudit(ctx, string(audit.EventTenantCreated),
		"tenant_id", tenant.ID.String(),
	)
	s.metrics.IncrementTenantCreated()
	return tenant, nil
}

// GetTenant fetches tenant metadata with its key count.
func (s *Service) GetTenant(ctx context.Context, tenantID id.TenantID) (*models.TenantDetails, error) {
	if err := requireTenantID(tenantID); err != nil {
		return nil, err
	}

	tenant, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		return nil, wrapTenantErr(err)
	}

	keyCount, err := s.keys.CountByTenant(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count API keys")
	}

	return &models.TenantDetails{Tenant: tenant, KeyCount: keyCount}, nil
}

// DeactivateTenant transitions a tenant to inactive status. From that moment
// every key the tenant holds stops authenticating; the key records themselves
// are untouched so reactivation restores access.
func (s *Service) DeactivateTenant(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	if err := requireTenantID(tenantID); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	tenant, err := s.tenants.Execute(ctx, tenantID,
		func(t *models.Tenant) error {
			if err := t.CanDeactivate(); err != nil {
				if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
					return dErrors.New(dErrors.CodeConflict, "tenant is already inactive")
				}
				return err
			}
			return nil
		},
		func(t *models.Tenant) {
			t.ApplyDeactivation(now)
		},
	)
	if err != nil {
		return nil, wrapTenantErr(err)
	}

	s.logAudit(ctx, string(audit.EventTenantDeactivated),
		"tenant_id", tenant.ID.String(),
	)
	return tenant, nil
}

// ReactivateTenant transitions a tenant back to active status.
func (s *Service) ReactivateTenant(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	if err := requireTenantID(tenantID); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	tenant, err := s.tenants.Execute(ctx, tenantID,
		func(t *models.Tenant) error {
			if err := t.CanReactivate(); err != nil {
				if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
					return dErrors.New(dErrors.CodeConflict, "tenant is already active")
				}
				return err
			}
			return nil
		},
		func(t *models.Tenant) {
			t.ApplyReactivation(now)
		},
	)
	if err != nil {
		return nil, wrapTenantErr(err)
	}

	s.logAudit(ctx, string(audit.EventTenantReactivated),
		"tenant_id", tenant.ID.String(),
	)
	return tenant, nil
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, event, args...)
	}
	if s.audit == nil {
		return
	}

	tenantID, _ := id.ParseTenantID(attrs.ExtractString(attributes, "tenant_id"))
	subject := attrs.ExtractString(attributes, "api_key_id")
	if subject == "" {
		subject = attrs.ExtractString(attributes, "tenant_id")
	}
	_ = s.audit.Emit(ctx, audit.Event{
		TenantID:     tenantID,
		Subject:      subject,
		Action:       event,
		ActorID:      requestcontext.Actor(ctx),
		ClientIP:     requestcontext.ClientIP(ctx),
		ClientDevice: device.Display(requestcontext.UserAgent(ctx)),
	})
}

func requireTenantID(tenantID id.TenantID) error {
	if tenantID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "tenant ID is required")
	}
	return nil
}

// wrapTenantErr translates store sentinels while passing through errors the
// Execute callbacks already shaped.
func wrapTenantErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "tenant not found")
	}
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "tenant store failure")
}
