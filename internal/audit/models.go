package audit

import (
	"time"

	id "siva/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance.
	// These require tamper-proof storage and long retention (e.g., 7 years).
	// Examples: deal evaluations, policy activations.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring and forensics.
	// These feed into SIEM systems and alerting pipelines.
	// Examples: API key issuance, tenant deactivation, rate limit violations.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for debugging and operational visibility.
	// These can be sampled or aggregated with shorter retention.
	// Examples: policy drafts, tenant creation, routine configuration changes.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	// TenantID is the tenant the event concerns. Zero for platform-level
	// actions performed before any tenant is involved.
	TenantID id.TenantID
	// Subject identifies the entity acted on: a deal ID, policy ID, tenant
	// ID, or API key ID depending on the action.
	Subject string
	Action  string
	// Vertical and SubVertical carry the policy routing keys for
	// evaluation events.
	Vertical    string
	SubVertical string
	Decision    string
	Reason      string
	// RequestID is the correlation ID from the HTTP request context.
	RequestID string
	// ActorID tracks who performed the action: the admin subject for
	// control plane operations, the API key ID for evaluations.
	ActorID string
	// ClientIP is kept for security forensics on rate limit and key events.
	ClientIP string
	// ClientDevice is the parsed User-Agent display ("Chrome on Mac OS X")
	// for actions a human performs against the control plane.
	ClientDevice string
	// Detail carries action-specific context that has no column of its own,
	// like the score and policy version behind an evaluation decision.
	Detail string
}

type AuditEvent string

const (
	// Evaluation events
	EventDealEvaluated AuditEvent = "deal_evaluated"

	// Policy events
	EventPolicyCreated   AuditEvent = "policy_created"
	EventPolicyUpdated   AuditEvent = "policy_updated"
	EventPolicyActivated AuditEvent = "policy_activated"
	EventPolicyArchived  AuditEvent = "policy_archived"
	EventPolicySeeded    AuditEvent = "policy_seeded"

	// Tenant events
	EventTenantCreated     AuditEvent = "tenant_created"
	EventTenantDeactivated AuditEvent = "tenant_deactivated"
	EventTenantReactivated AuditEvent = "tenant_reactivated"

	// API key events
	EventAPIKeyIssued  AuditEvent = "api_key_issued"
	EventAPIKeyRevoked AuditEvent = "api_key_revoked"

	// Rate limit events
	EventRateLimitExceeded AuditEvent = "rate_limit_exceeded"
)

// eventCategories maps each audit event to its category.
// Compliance: legal/regulatory significance, long retention required.
// Security: security monitoring, SIEM integration, alerting.
// Operations: debugging, operational visibility, can be sampled.
var eventCategories = map[AuditEvent]EventCategory{
	// Compliance events - every scored deal and every change to the rules
	// that score deals must be reconstructible later.
	EventDealEvaluated:   CategoryCompliance,
	EventPolicyActivated: CategoryCompliance,
	EventPolicyArchived:  CategoryCompliance,

	// Security events - feed into SIEM and alerting
	EventTenantDeactivated: CategorySecurity,
	EventAPIKeyIssued:      CategorySecurity,
	EventAPIKeyRevoked:     CategorySecurity,
	EventRateLimitExceeded: CategorySecurity,

	// Operations events - routine activity, can be sampled
	EventPolicyCreated:     CategoryOperations,
	EventPolicyUpdated:     CategoryOperations,
	EventPolicySeeded:      CategoryOperations,
	EventTenantCreated:     CategoryOperations,
	EventTenantReactivated: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}
