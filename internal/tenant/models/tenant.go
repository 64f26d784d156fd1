package models

import (
	"time"

	id "siva/pkg/domain"
	dErrors "siva/pkg/domain-errors"
)

// Tenant is the aggregate root for a tenant organization.
//
// Invariants:
//   - Name is non-empty and at most 128 characters
//   - Name is unique across tenants (enforced by the store, case-insensitive)
//   - Status transitions: active <-> inactive only (no other states)
//   - CreatedAt is immutable after construction
//
// # Cascade Invariant
//
// When a tenant is deactivated, authentication with any of its API keys MUST
// fail, even if the key itself has Status=active. This is enforced at the
// service layer (ResolveAPIKey) rather than by cascading status changes:
//   - Tenant deactivation is an immediate security boundary
//   - Keys do NOT need explicit revocation when the tenant is inactive
//   - ResolveAPIKey MUST check tenant.IsActive() before returning the key
//   - Reactivation restores access without touching key records
type Tenant struct {
	ID        id.TenantID  `json:"id"`
	Name      string       `json:"name"`
	Plan      Plan         `json:"plan"`
	Status    TenantStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// TenantDetails pairs a tenant with usage counts for the admin read surface.
type TenantDetails struct {
	Tenant   *Tenant `json:"tenant"`
	KeyCount int     `json:"key_count"`
}

func (t *Tenant) IsActive() bool {
	return t.Status == TenantStatusActive
}

// CanDeactivate checks if the tenant can transition to inactive status.
// Use with ApplyDeactivation inside store Execute callbacks.
func (t *Tenant) CanDeactivate() error {
	if !t.Status.CanTransitionTo(TenantStatusInactive) {
		return dErrors.New(dErrors.CodeInvariantViolation, "tenant is already inactive")
	}
	return nil
}

// ApplyDeactivation transitions the tenant to inactive status. Call
// CanDeactivate first to validate the transition.
func (t *Tenant) ApplyDeactivation(now time.Time) {
	t.Status = TenantStatusInactive
	t.UpdatedAt = now
}

// Deactivate validates and applies deactivation in one call.
func (t *Tenant) Deactivate(now time.Time) error {
	if err := t.CanDeactivate(); err != nil {
		return err
	}
	t.ApplyDeactivation(now)
	return nil
}

// CanReactivate checks if the tenant can transition to active status.
// Use with ApplyReactivation inside store Execute callbacks.
func (t *Tenant) CanReactivate() error {
	if !t.Status.CanTransitionTo(TenantStatusActive) {
		return dErrors.New(dErrors.CodeInvariantViolation, "tenant is already active")
	}
	return nil
}

// ApplyReactivation transitions the tenant to active status. Call
// CanReactivate first to validate the transition.
func (t *Tenant) ApplyReactivation(now time.Time) {
	t.Status = TenantStatusActive
	t.UpdatedAt = now
}

// Reactivate validates and applies reactivation in one call.
func (t *Tenant) Reactivate(now time.Time) error {
	if err := t.CanReactivate(); err != nil {
		return err
	}
	t.ApplyReactivation(now)
	return nil
}

func NewTenant(tenantID id.TenantID, name string, plan Plan, now time.Time) (*Tenant, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tenant name cannot be empty")
	}
	if len(name) > 128 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tenant name must be 128 characters or less")
	}
	if !plan.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "plan must be one of: trial, growth, enterprise")
	}
	return &Tenant{
		ID:        tenantID,
		Name:      name,
		Plan:      plan,
		Status:    TenantStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
