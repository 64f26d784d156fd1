// Package httptransport assembles the HTTP surface: the tenant-facing
// evaluation endpoint, the admin control plane, and the platform endpoints.
// It owns routing and middleware order only; request semantics live in the
// per-module handler packages.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	audithandler "siva/internal/audit/handler"
	evaluationhandler "siva/internal/evaluation/handler"
	platformmetrics "siva/internal/platform/metrics"
	policyhandler "siva/internal/policy/handler"
	ratelimitmw "siva/internal/ratelimit/middleware"
	ratelimitmodels "siva/internal/ratelimit/models"
	tenanthandler "siva/internal/tenant/handler"
	tenantmodels "siva/internal/tenant/models"
	"siva/pkg/platform/httputil"
	"siva/pkg/platform/middleware/apikey"
	"siva/pkg/platform/middleware/auth"
	"siva/pkg/platform/middleware/metadata"
	"siva/pkg/platform/middleware/request"
	"siva/pkg/platform/middleware/requesttime"
)

// readyTimeout bounds the combined readiness probe so a hung dependency
// cannot stall the orchestrator's health checking.
const readyTimeout = 2 * time.Second

// TenantService is the tenant surface the router needs: the admin handler
// operations plus credential resolution for the public API gate.
type TenantService interface {
	tenanthandler.Service
	ResolveAPIKey(ctx context.Context, presented string) (*tenantmodels.Tenant, *tenantmodels.APIKey, error)
}

// ReadyCheck reports whether one backing service is reachable. Name appears
// in the readiness response when the check fails.
type ReadyCheck struct {
	Name  string
	Check func(context.Context) error
}

// Deps carries everything the router mounts.
type Deps struct {
	Logger  *slog.Logger
	Metrics *platformmetrics.Metrics

	Evaluation evaluationhandler.Service
	Policies   policyhandler.Service
	Tenants    TenantService
	Audit      audithandler.Service

	// AdminAuth validates admin bearer tokens. Nil leaves the control plane
	// unmounted: without a signing secret no token could ever validate.
	AdminAuth auth.JWTValidator

	RateLimit *ratelimitmw.Middleware

	Readiness []ReadyCheck
}

// NewRouter builds the chi router with the full middleware chain. Request ID,
// request time, and client metadata run first so every later stage logs and
// audits with the same correlation values.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(request.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(deps.Metrics.Middleware)

	r.Get("/healthz", handleHealthz)
	r.Get("/readyz", handleReadyz(deps.Readiness))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/os/siva", func(r chi.Router) {
		r.Use(apikey.RequireAPIKey(identityResolver{deps.Tenants}, deps.Logger))
		r.Use(deps.RateLimit.RateLimitTenant(ratelimitmodels.ClassEvaluate))
		evaluationhandler.New(deps.Evaluation, deps.Logger).Register(r)
	})

	if deps.AdminAuth != nil {
		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireAdmin(deps.AdminAuth, deps.Logger))
			r.Use(adminRateLimit(deps.RateLimit))
			policyhandler.New(deps.Policies, deps.Logger).Register(r)
			tenanthandler.New(deps.Tenants, deps.Logger).Register(r)
			audithandler.New(deps.Audit, deps.Logger).Register(r)
		})
	}

	return r
}

// adminRateLimit splits the control plane into read and mutation budgets:
// GETs draw from the read class, everything else from the admin class.
func adminRateLimit(rl *ratelimitmw.Middleware) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		read := rl.RateLimit(ratelimitmodels.ClassRead)(next)
		mutate := rl.RateLimit(ratelimitmodels.ClassAdmin)(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				read.ServeHTTP(w, r)
				return
			}
			mutate.ServeHTTP(w, r)
		})
	}
}

// identityResolver adapts the tenant service's three-value resolution to the
// apikey middleware's Identity shape.
type identityResolver struct {
	tenants TenantService
}

func (a identityResolver) ResolveAPIKey(ctx context.Context, rawKey string) (*apikey.Identity, error) {
	tenant, key, err := a.tenants.ResolveAPIKey(ctx, rawKey)
	if err != nil {
		return nil, err
	}
	return &apikey.Identity{
		TenantID:   tenant.ID,
		TenantName: tenant.Name,
		APIKeyID:   key.ID,
	}, nil
}

type healthResponse struct {
	Status string `json:"status"`
}

type readyResponse struct {
	Status string `json:"status"`
	Failed string `json:"failed,omitempty"`
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// handleReadyz pings each configured backing service. An instance running on
// memory stores alone has no checks and is ready as soon as it serves.
func handleReadyz(checks []ReadyCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		for _, check := range checks {
			if err := check.Check(ctx); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, readyResponse{
					Status: "unavailable",
					Failed: check.Name,
				})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, readyResponse{Status: "ready"})
	}
}
