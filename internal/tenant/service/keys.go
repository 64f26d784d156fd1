package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"siva/internal/audit"
	tenantmetrics "siva/internal/tenant/metrics"
	"siva/internal/tenant/models"
	"siva/internal/tenant/secrets"
	id "siva/pkg/domain"
	dErrors "siva/pkg/domain-errors"
	"siva/pkg/platform/sentinel"
	"siva/pkg/requestcontext"
)

// IssueAPIKey mints a credential for the tenant and returns the stored record
// together with the cleartext key (sk_<key id>_<secret>). The cleartext is
// available exactly once, here; only the bcrypt hash is persisted.
func (s *Service) IssueAPIKey(ctx context.Context, tenantID id.TenantID, label string) (*models.APIKey, string, error) {
	if err := requireTenantID(tenantID); err != nil {
		return nil, "", err
	}
	if _, err := s.tenants.FindByID(ctx, tenantID); err != nil {
		return nil, "", wrapTenantErr(err)
	}

	secret, err := secrets.Generate()
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate key secret")
	}
	secretHash, err := secrets.Hash(secret)
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash key secret")
	}

	key, err := models.NewAPIKey(id.NewAPIKeyID(), tenantID, strings.TrimSpace(label), secretHash, requestcontext.Now(ctx))
	if err != nil {
		// Convert invariant violations to validation errors for API response
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, "", dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, "", err
	}

	if err := s.keys.Create(ctx, key); err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to store API key")
	}

	s.logAudit(ctx, string(audit.EventAPIKeyIssued),
		"tenant_id", tenantID.String(),
		"api_key_id", key.ID.String(),
	)
	s.metrics.IncrementKeyIssued()
	return key, secrets.FormatAPIKey(key.ID, secret), nil
}

// ListAPIKeys returns the tenant's keys newest first. Secret hashes never
// serialize, so the records are safe to hand to the admin surface.
func (s *Service) ListAPIKeys(ctx context.Context, tenantID id.TenantID) ([]*models.APIKey, error) {
	if err := requireTenantID(tenantID); err != nil {
		return nil, err
	}
	if _, err := s.tenants.FindByID(ctx, tenantID); err != nil {
		return nil, wrapTenantErr(err)
	}

	keys, err := s.keys.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list API keys")
	}
	return keys, nil
}

// RevokeAPIKey retires a key permanently. The lookup is tenant-scoped so an
// admin operating on one tenant can never revoke another tenant's key.
func (s *Service) RevokeAPIKey(ctx context.Context, tenantID id.TenantID, keyID id.APIKeyID) (*models.APIKey, error) {
	if err := requireTenantID(tenantID); err != nil {
		return nil, err
	}
	if keyID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "API key ID is required")
	}

	now := requestcontext.Now(ctx)
	key, err := s.keys.Execute(ctx, tenantID, keyID,
		func(k *models.APIKey) error {
			if err := k.CanRevoke(); err != nil {
				if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
					return dErrors.New(dErrors.CodeConflict, "API key is already revoked")
				}
				return err
			}
			return nil
		},
		func(k *models.APIKey) {
			k.ApplyRevocation(now)
		},
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "API key not found")
		}
		var domainErr *dErrors.Error
		if errors.As(err, &domainErr) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke API key")
	}

	s.logAudit(ctx, string(audit.EventAPIKeyRevoked),
		"tenant_id", tenantID.String(),
		"api_key_id", key.ID.String(),
	)
	return key, nil
}

// ResolveAPIKey maps a presented credential to its tenant and key record as a
// single choke point for request authentication.
//
// Failure modes are deliberate:
//   - malformed input, unknown key ID, or secret mismatch → unauthorized;
//     the caller learns nothing about which part failed
//   - revoked key or inactive tenant → forbidden; these checks run only
//     after the secret verified, so lifecycle state is never disclosed to
//     callers who do not hold the credential
//
// The tenant status check is what makes deactivation an immediate
// enforcement boundary: no key of an inactive tenant authenticates, even
// when the key record itself is still active.
func (s *Service) ResolveAPIKey(ctx context.Context, presented string) (*models.Tenant, *models.APIKey, error) {
	start := time.Now()
	tenant, key, err := s.resolveAPIKey(ctx, presented)
	s.metrics.ObserveResolveKey(resolveOutcome(err), start)
	return tenant, key, err
}

func (s *Service) resolveAPIKey(ctx context.Context, presented string) (*models.Tenant, *models.APIKey, error) {
	keyID, secret, err := secrets.ParseAPIKey(presented)
	if err != nil {
		return nil, nil, dErrors.New(dErrors.CodeUnauthorized, "invalid API key")
	}

	key, err := s.keys.FindByID(ctx, keyID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, dErrors.New(dErrors.CodeUnauthorized, "invalid API key")
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve API key")
	}

	if err := secrets.Verify(secret, key.SecretHash); err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvalidInput) {
			return nil, nil, dErrors.New(dErrors.CodeUnauthorized, "invalid API key")
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify API key")
	}

	if !key.IsActive() {
		return nil, nil, dErrors.New(dErrors.CodeForbidden, "API key is revoked")
	}

	tenant, err := s.tenants.FindByID(ctx, key.TenantID)
	if err != nil {
		// A key without its tenant is a data integrity failure, not an
		// auth decision.
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load tenant for API key")
	}
	if !tenant.IsActive() {
		return nil, nil, dErrors.New(dErrors.CodeForbidden, "tenant is inactive")
	}

	if err := s.keys.TouchLastUsed(ctx, key.ID, requestcontext.Now(ctx)); err != nil {
		// Usage tracking never blocks authentication.
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to record API key usage",
				"api_key_id", key.ID.String(),
				"error", err,
			)
		}
	}
	return tenant, key, nil
}

func resolveOutcome(err error) string {
	switch {
	case err == nil:
		return tenantmetrics.ResolveOK
	case dErrors.HasCode(err, dErrors.CodeUnauthorized):
		return tenantmetrics.ResolveUnauthorized
	case dErrors.HasCode(err, dErrors.CodeForbidden):
		return tenantmetrics.ResolveForbidden
	default:
		return tenantmetrics.ResolveError
	}
}
