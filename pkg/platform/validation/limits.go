// Package validation defines request size limits shared by handler DTOs.
// Limits live here rather than in individual handlers so the API surface
// has one place that answers "how big can this field be".
package validation

const (
	// MaxDealIDLength bounds the caller-supplied deal identifier. Deal IDs
	// are opaque references into the caller's CRM, not ours.
	MaxDealIDLength = 128

	// MaxVerticalLength and MaxSubVerticalLength bound policy routing keys.
	MaxVerticalLength    = 64
	MaxSubVerticalLength = 64

	// MaxRegionLength bounds the informational region field.
	MaxRegionLength = 64

	// MaxPolicyNameLength bounds human-readable policy names.
	MaxPolicyNameLength = 128

	// MaxTenantNameLength bounds human-readable tenant names.
	MaxTenantNameLength = 128

	// MaxEdgeCaseRules bounds the number of edge case rules a policy may
	// carry. The rule set is a small fixed vocabulary; anything larger is
	// a malformed request.
	MaxEdgeCaseRules = 16

	// MaxCustomerCount bounds the customer_count input. Values above this
	// are almost certainly unit errors (cents, not customers).
	MaxCustomerCount = 10_000_000

	// MaxARR bounds annual recurring revenue in whole dollars.
	MaxARR = 100_000_000_000
)
