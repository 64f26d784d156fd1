// Package domain defines typed identifiers shared across bounded contexts.
//
// Every aggregate gets its own UUID-backed ID type so the compiler rejects
// cross-entity assignment (a PolicyID can never be passed where a TenantID is
// expected). Parse functions are the single trust boundary for external ID
// input: they reject empty strings, malformed UUIDs, and the nil UUID.
package domain

import (
	"github.com/google/uuid"

	dErrors "siva/pkg/domain-errors"
)

// TenantID identifies a tenant organization consuming the scoring API.
type TenantID uuid.UUID

// PolicyID identifies a scoring policy version.
type PolicyID uuid.UUID

// APIKeyID identifies an issued API key (the public half of the credential).
type APIKeyID uuid.UUID

// EvaluationID identifies a single deal evaluation. Minted per request and
// carried into audit events so an evaluation can be traced end to end.
type EvaluationID uuid.UUID

// NewTenantID mints a random tenant ID.
func NewTenantID() TenantID { return TenantID(uuid.New()) }

// NewPolicyID mints a random policy ID.
func NewPolicyID() PolicyID { return PolicyID(uuid.New()) }

// NewAPIKeyID mints a random API key ID.
func NewAPIKeyID() APIKeyID { return APIKeyID(uuid.New()) }

// NewEvaluationID mints a random evaluation ID.
func NewEvaluationID() EvaluationID { return EvaluationID(uuid.New()) }

func (id TenantID) String() string     { return uuid.UUID(id).String() }
func (id PolicyID) String() string     { return uuid.UUID(id).String() }
func (id APIKeyID) String() string     { return uuid.UUID(id).String() }
func (id EvaluationID) String() string { return uuid.UUID(id).String() }

// IsNil reports whether the ID is the zero UUID.
func (id TenantID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id PolicyID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id APIKeyID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id EvaluationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// MarshalText renders IDs as canonical UUID strings so JSON, YAML, and
// log encoders all agree on the wire shape.
func (id TenantID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id PolicyID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id APIKeyID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id EvaluationID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

// UnmarshalText parses IDs through the same trust boundary as ParseX,
// so malformed or nil UUIDs are rejected during decoding too.
func (id *TenantID) UnmarshalText(text []byte) error {
	parsed, err := ParseTenantID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *PolicyID) UnmarshalText(text []byte) error {
	parsed, err := ParsePolicyID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *APIKeyID) UnmarshalText(text []byte) error {
	parsed, err := ParseAPIKeyID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *EvaluationID) UnmarshalText(text []byte) error {
	parsed, err := ParseEvaluationID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseTenantID parses and validates an external tenant ID.
func ParseTenantID(raw string) (TenantID, error) {
	parsed, err := parseUUID(raw, "tenant ID")
	if err != nil {
		return TenantID{}, err
	}
	return TenantID(parsed), nil
}

// ParsePolicyID parses and validates an external policy ID.
func ParsePolicyID(raw string) (PolicyID, error) {
	parsed, err := parseUUID(raw, "policy ID")
	if err != nil {
		return PolicyID{}, err
	}
	return PolicyID(parsed), nil
}

// ParseAPIKeyID parses and validates an external API key ID.
func ParseAPIKeyID(raw string) (APIKeyID, error) {
	parsed, err := parseUUID(raw, "API key ID")
	if err != nil {
		return APIKeyID{}, err
	}
	return APIKeyID(parsed), nil
}

// ParseEvaluationID parses and validates an external evaluation ID.
func ParseEvaluationID(raw string) (EvaluationID, error) {
	parsed, err := parseUUID(raw, "evaluation ID")
	if err != nil {
		return EvaluationID{}, err
	}
	return EvaluationID(parsed), nil
}

// parseUUID enforces the shared parsing invariant: valid, non-empty, non-nil.
func parseUUID(raw, kind string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" must not be the nil UUID")
	}
	return parsed, nil
}
