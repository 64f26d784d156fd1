package config

import (
	"testing"
	"time"

	platformcfg "siva/internal/platform/config"
	"siva/internal/ratelimit/models"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	tenant, ok := cfg.GetTenantLimit(models.ClassEvaluate)
	if !ok || tenant.RequestsPerWindow != 60 || tenant.Window != time.Minute {
		t.Errorf("unexpected evaluate tenant budget %+v ok=%v", tenant, ok)
	}
	if _, ok := cfg.GetTenantLimit(models.ClassAdmin); ok {
		t.Error("admin class must not carry a tenant budget")
	}

	ip, ok := cfg.GetIPLimit(models.ClassAdmin)
	if !ok || ip.RequestsPerWindow != 30 {
		t.Errorf("unexpected admin IP budget %+v ok=%v", ip, ok)
	}
	if _, ok := cfg.GetIPLimit(models.ClassEvaluate); !ok {
		t.Error("evaluate class must carry an IP budget")
	}
}

func TestFromPlatform(t *testing.T) {
	cfg := FromPlatform(platformcfg.RateLimitConfig{
		Window:            30 * time.Second,
		EvaluatePerTenant: 10,
		EvaluatePerIP:     20,
		AdminPerIP:        5,
		ReadPerIP:         40,
	})

	tenant, ok := cfg.GetTenantLimit(models.ClassEvaluate)
	if !ok || tenant.RequestsPerWindow != 10 || tenant.Window != 30*time.Second {
		t.Errorf("unexpected tenant budget %+v ok=%v", tenant, ok)
	}
	read, ok := cfg.GetIPLimit(models.ClassRead)
	if !ok || read.RequestsPerWindow != 40 {
		t.Errorf("unexpected read budget %+v ok=%v", read, ok)
	}
}

func TestFromPlatform_DropsNonPositiveBudgets(t *testing.T) {
	cfg := FromPlatform(platformcfg.RateLimitConfig{
		Window:            time.Minute,
		EvaluatePerTenant: 0,
		EvaluatePerIP:     -1,
		AdminPerIP:        30,
	})

	if _, ok := cfg.GetTenantLimit(models.ClassEvaluate); ok {
		t.Error("zero tenant budget must drop the class")
	}
	if _, ok := cfg.GetIPLimit(models.ClassEvaluate); ok {
		t.Error("negative IP budget must drop the class")
	}
	if _, ok := cfg.GetIPLimit(models.ClassAdmin); !ok {
		t.Error("positive budget must survive")
	}
}

func TestFromPlatform_DefaultsZeroWindow(t *testing.T) {
	cfg := FromPlatform(platformcfg.RateLimitConfig{EvaluatePerTenant: 60})

	tenant, ok := cfg.GetTenantLimit(models.ClassEvaluate)
	if !ok || tenant.Window != time.Minute {
		t.Errorf("expected window fallback to 1m, got %+v ok=%v", tenant, ok)
	}
}
