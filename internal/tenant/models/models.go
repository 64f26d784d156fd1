// Package models defines the tenant aggregate and the API key credentials
// issued to it. Tenants are the unit of access control for the scoring API:
// every evaluation request authenticates as exactly one tenant, and
// deactivating the tenant cuts off all of its keys at once.
package models

import (
	dErrors "siva/pkg/domain-errors"
)

// TenantStatus is the lifecycle state of a tenant.
type TenantStatus string

const (
	TenantStatusActive   TenantStatus = "active"
	TenantStatusInactive TenantStatus = "inactive"
)

// IsValid reports whether the status is a known lifecycle state.
func (s TenantStatus) IsValid() bool {
	return s == TenantStatusActive || s == TenantStatusInactive
}

// CanTransitionTo reports whether the status may move to target. Tenants
// only ever flip between active and inactive.
func (s TenantStatus) CanTransitionTo(target TenantStatus) bool {
	return s.IsValid() && target.IsValid() && s != target
}

// ParseTenantStatus validates a raw status string from storage or transport.
func ParseTenantStatus(raw string) (TenantStatus, error) {
	s := TenantStatus(raw)
	if !s.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "status must be one of: active, inactive")
	}
	return s, nil
}

// KeyStatus is the lifecycle state of an API key. Revocation is terminal:
// a revoked key is never reactivated, a replacement is issued instead.
type KeyStatus string

const (
	KeyStatusActive  KeyStatus = "active"
	KeyStatusRevoked KeyStatus = "revoked"
)

// IsValid reports whether the status is a known lifecycle state.
func (s KeyStatus) IsValid() bool {
	return s == KeyStatusActive || s == KeyStatusRevoked
}

// Plan names the commercial tier a tenant signed up for. Plans do not alter
// scoring behavior; they feed reporting and future quota differentiation.
type Plan string

const (
	PlanTrial      Plan = "trial"
	PlanGrowth     Plan = "growth"
	PlanEnterprise Plan = "enterprise"
)

// IsValid reports whether the plan is a known tier.
func (p Plan) IsValid() bool {
	return p == PlanTrial || p == PlanGrowth || p == PlanEnterprise
}

// ParsePlan validates a raw plan string. An empty plan defaults to trial so
// tenant creation works without callers knowing the tier taxonomy.
func ParsePlan(raw string) (Plan, error) {
	if raw == "" {
		return PlanTrial, nil
	}
	p := Plan(raw)
	if !p.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "plan must be one of: trial, growth, enterprise")
	}
	return p, nil
}
