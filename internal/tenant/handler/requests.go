package handler

import (
	"errors"
	"strings"
)

// CreateTenantRequest is the payload for POST /tenants.
type CreateTenantRequest struct {
	Name string `json:"name"`
	// Plan is optional; the service defaults an empty plan to trial.
	Plan string `json:"plan,omitempty"`
}

// Normalize trims whitespace and lowercases the plan.
func (r *CreateTenantRequest) Normalize() {
	if r == nil {
		return
	}
	r.Name = strings.TrimSpace(r.Name)
	r.Plan = strings.ToLower(strings.TrimSpace(r.Plan))
}

// Validate enforces shape constraints. Domain rules (plan taxonomy, name
// uniqueness) stay with the service.
func (r *CreateTenantRequest) Validate() error {
	if r == nil {
		return errors.New("request is required")
	}
	if r.Name == "" {
		return errors.New("name is required")
	}
	if len(r.Name) > 128 {
		return errors.New("name must be at most 128 characters")
	}
	return nil
}

// IssueKeyRequest is the payload for POST /tenants/{tenantID}/keys.
type IssueKeyRequest struct {
	Label string `json:"label"`
}

// Normalize trims whitespace.
func (r *IssueKeyRequest) Normalize() {
	if r == nil {
		return
	}
	r.Label = strings.TrimSpace(r.Label)
}

// Validate enforces shape constraints.
func (r *IssueKeyRequest) Validate() error {
	if r == nil {
		return errors.New("request is required")
	}
	if r.Label == "" {
		return errors.New("label is required")
	}
	if len(r.Label) > 128 {
		return errors.New("label must be at most 128 characters")
	}
	return nil
}
