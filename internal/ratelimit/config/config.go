// Package config holds the per-class request budgets consumed by the limiter.
package config

import (
	"time"

	platformcfg "siva/internal/platform/config"
	"siva/internal/ratelimit/models"
)

// Limit is one request budget: at most RequestsPerWindow requests per Window.
type Limit struct {
	RequestsPerWindow int
	Window            time.Duration
}

// Config maps endpoint classes to budgets. Tenant budgets apply to
// authenticated scoring traffic, IP budgets to every caller. A class absent
// from a map has no budget of that kind.
type Config struct {
	TenantLimits map[models.EndpointClass]Limit
	IPLimits     map[models.EndpointClass]Limit
}

// DefaultConfig returns the built-in budgets. Scoring is limited per tenant
// first (the contractual quota) and per IP as a backstop against a single
// misbehaving client behind a shared key.
func DefaultConfig() *Config {
	return &Config{
		TenantLimits: map[models.EndpointClass]Limit{
			models.ClassEvaluate: {RequestsPerWindow: 60, Window: time.Minute},
		},
		IPLimits: map[models.EndpointClass]Limit{
			models.ClassEvaluate: {RequestsPerWindow: 120, Window: time.Minute},
			models.ClassAdmin:    {RequestsPerWindow: 30, Window: time.Minute},
			models.ClassRead:     {RequestsPerWindow: 120, Window: time.Minute},
		},
	}
}

// FromPlatform builds the budget table from the environment-driven settings.
// Budgets of zero or less drop the class from the table entirely, which the
// limiter treats as deny; disable limiting with SIVA_RATELIMIT_ENABLED
// instead of zeroing budgets.
func FromPlatform(cfg platformcfg.RateLimitConfig) *Config {
	window := cfg.Window
	if window <= 0 {
		window = time.Minute
	}

	c := &Config{
		TenantLimits: make(map[models.EndpointClass]Limit),
		IPLimits:     make(map[models.EndpointClass]Limit),
	}
	if cfg.EvaluatePerTenant > 0 {
		c.TenantLimits[models.ClassEvaluate] = Limit{RequestsPerWindow: cfg.EvaluatePerTenant, Window: window}
	}
	if cfg.EvaluatePerIP > 0 {
		c.IPLimits[models.ClassEvaluate] = Limit{RequestsPerWindow: cfg.EvaluatePerIP, Window: window}
	}
	if cfg.AdminPerIP > 0 {
		c.IPLimits[models.ClassAdmin] = Limit{RequestsPerWindow: cfg.AdminPerIP, Window: window}
	}
	if cfg.ReadPerIP > 0 {
		c.IPLimits[models.ClassRead] = Limit{RequestsPerWindow: cfg.ReadPerIP, Window: window}
	}
	return c
}

// GetTenantLimit returns the per-tenant budget for class.
func (c *Config) GetTenantLimit(class models.EndpointClass) (Limit, bool) {
	limit, ok := c.TenantLimits[class]
	return limit, ok
}

// GetIPLimit returns the per-IP budget for class.
func (c *Config) GetIPLimit(class models.EndpointClass) (Limit, bool) {
	limit, ok := c.IPLimits[class]
	return limit, ok
}
