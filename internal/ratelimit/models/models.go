// Package models defines the vocabulary of the rate limiting module:
// endpoint classes, counter keys, and check results.
package models

import (
	"strings"
	"time"
)

// EndpointClass categorizes endpoints for differentiated rate limiting.
type EndpointClass string

const (
	// ClassEvaluate: deal scoring (per tenant and per IP) - /api/os/siva/evaluate-deal
	ClassEvaluate EndpointClass = "evaluate"
	// ClassAdmin: control plane mutations (per IP) - POST/PUT under /admin
	ClassAdmin EndpointClass = "admin"
	// ClassRead: control plane reads (per IP) - GET under /admin
	ClassRead EndpointClass = "read"
)

// IsValid checks if the endpoint class is one of the supported enum values.
func (c EndpointClass) IsValid() bool {
	switch c {
	case ClassEvaluate, ClassAdmin, ClassRead:
		return true
	}
	return false
}

// String returns the string representation.
func (c EndpointClass) String() string {
	return string(c)
}

// KeyKind says what a counter key identifies.
type KeyKind string

const (
	KeyKindIP     KeyKind = "ip"
	KeyKindTenant KeyKind = "tenant"
)

// CounterKey addresses one rate limit counter. Kind and Class partition the
// keyspace so a tenant's budget and an IP's budget never share a counter.
type CounterKey struct {
	Kind       KeyKind
	Identifier string
	Class      EndpointClass
}

// NewIPKey builds the counter key for a client IP on an endpoint class.
func NewIPKey(ip string, class EndpointClass) CounterKey {
	return CounterKey{Kind: KeyKindIP, Identifier: ip, Class: class}
}

// NewTenantKey builds the counter key for a tenant on an endpoint class.
func NewTenantKey(tenantID string, class EndpointClass) CounterKey {
	return CounterKey{Kind: KeyKindTenant, Identifier: tenantID, Class: class}
}

// String renders the key as "ratelimit:<kind>:<identifier>:<class>". The
// identifier segment is sanitized so the rendered key always has exactly
// four segments.
func (k CounterKey) String() string {
	return "ratelimit:" + string(k.Kind) + ":" + SanitizeKeySegment(k.Identifier) + ":" + string(k.Class)
}

// SanitizeKeySegment escapes delimiter characters in rate limit key segments
// to prevent key collision attacks where caller-influenced identifiers
// containing ':' could manipulate adjacent rate limit buckets. IPv6 client
// addresses always contain ':', so this is the normal path for them.
//
// Example: "2001:db8::1" becomes "2001_db8__1", keeping it a single segment.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// RateLimitResult represents the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}
