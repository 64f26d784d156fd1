package models

import (
	"time"

	id "siva/pkg/domain"
	dErrors "siva/pkg/domain-errors"
)

// APIKey is the stored half of an issued credential. The cleartext secret
// is shown exactly once in the issuance response; only its bcrypt hash is
// retained here.
//
// Invariants:
//   - Label is non-empty and at most 128 characters
//   - SecretHash is non-empty
//   - Status transitions: active -> revoked only (revocation is terminal)
//   - TenantID is immutable after construction
type APIKey struct {
	ID         id.APIKeyID `json:"id"`
	TenantID   id.TenantID `json:"tenant_id"`
	Label      string      `json:"label"`
	SecretHash string      `json:"-"` // Never serialize - contains bcrypt hash
	Status     KeyStatus   `json:"status"`
	LastUsedAt *time.Time  `json:"last_used_at,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

func NewAPIKey(
	keyID id.APIKeyID,
	tenantID id.TenantID,
	label string,
	secretHash string,
	now time.Time,
) (*APIKey, error) {
	if label == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "key label cannot be empty")
	}
	if len(label) > 128 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "key label must be 128 characters or less")
	}
	if secretHash == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "secret hash cannot be empty")
	}
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tenant ID cannot be nil")
	}
	return &APIKey{
		ID:         keyID,
		TenantID:   tenantID,
		Label:      label,
		SecretHash: secretHash,
		Status:     KeyStatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func (k *APIKey) IsActive() bool {
	return k.Status == KeyStatusActive
}

// CanRevoke checks if the key can transition to revoked status.
// Use with ApplyRevocation inside store Execute callbacks.
func (k *APIKey) CanRevoke() error {
	if k.Status == KeyStatusRevoked {
		return dErrors.New(dErrors.CodeInvariantViolation, "API key is already revoked")
	}
	return nil
}

// ApplyRevocation transitions the key to revoked status. Call CanRevoke
// first to validate the transition.
func (k *APIKey) ApplyRevocation(now time.Time) {
	k.Status = KeyStatusRevoked
	k.UpdatedAt = now
}

// Revoke validates and applies revocation in one call.
func (k *APIKey) Revoke(now time.Time) error {
	if err := k.CanRevoke(); err != nil {
		return err
	}
	k.ApplyRevocation(now)
	return nil
}

// TouchUsage records that the key authenticated a request. UpdatedAt is left
// alone so usage tracking does not masquerade as a lifecycle change.
func (k *APIKey) TouchUsage(now time.Time) {
	k.LastUsedAt = &now
}
