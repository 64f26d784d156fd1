// Package handler exposes tenant administration over HTTP: tenant lifecycle,
// API key issuance, and revocation. All routes are mounted behind admin
// authentication by the router.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"siva/internal/tenant/models"
	id "siva/pkg/domain"
	dErrors "siva/pkg/domain-errors"
	"siva/pkg/platform/httputil"
	"siva/pkg/requestcontext"
)

// Service defines the tenant operations the handler depends on.
type Service interface {
	CreateTenant(ctx context.Context, name, plan string) (*models.Tenant, error)
	GetTenant(ctx context.Context, tenantID id.TenantID) (*models.TenantDetails, error)
	DeactivateTenant(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error)
	ReactivateTenant(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error)
	IssueAPIKey(ctx context.Context, tenantID id.TenantID, label string) (*models.APIKey, string, error)
	ListAPIKeys(ctx context.Context, tenantID id.TenantID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, tenantID id.TenantID, keyID id.APIKeyID) (*models.APIKey, error)
}

// Handler wires tenant admin endpoints to the tenant service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a tenant handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts tenant endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/tenants", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/{tenantID}", h.HandleGet)
		r.Post("/{tenantID}/deactivate", h.HandleDeactivate)
		r.Post("/{tenantID}/reactivate", h.HandleReactivate)
		r.Route("/{tenantID}/keys", func(r chi.Router) {
			r.Post("/", h.HandleIssueKey)
			r.Get("/", h.HandleListKeys)
			r.Delete("/{keyID}", h.HandleRevokeKey)
		})
	})
}

// IssueKeyResponse carries the issued key record plus the cleartext
// credential. The cleartext is returned exactly once at issuance and is
// never retrievable again.
type IssueKeyResponse struct {
	Key    *models.APIKey `json:"key"`
	APIKey string         `json:"api_key"`
}

// ListKeysResponse envelopes a tenant's key list.
type ListKeysResponse struct {
	Keys []*models.APIKey `json:"keys"`
}

// HandleCreate handles POST /tenants.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateTenantRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, err.Error()))
		return
	}

	tenant, err := h.service.CreateTenant(ctx, req.Name, req.Plan)
	if err != nil {
		h.logger.ErrorContext(ctx, "tenant creation failed",
			"request_id", requestID,
			"name", req.Name,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, tenant)
}

// HandleGet handles GET /tenants/{tenantID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenantID, err := id.ParseTenantID(chi.URLParam(r, "tenantID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	details, err := h.service.GetTenant(ctx, tenantID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, details)
}

// HandleDeactivate handles POST /tenants/{tenantID}/deactivate.
func (h *Handler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "deactivate", h.service.DeactivateTenant)
}

// HandleReactivate handles POST /tenants/{tenantID}/reactivate.
func (h *Handler) HandleReactivate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "reactivate", h.service.ReactivateTenant)
}

func (h *Handler) transition(
	w http.ResponseWriter,
	r *http.Request,
	action string,
	apply func(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error),
) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	tenantID, err := id.ParseTenantID(chi.URLParam(r, "tenantID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	updated, err := apply(ctx, tenantID)
	if err != nil {
		h.logger.ErrorContext(ctx, "tenant transition failed",
			"request_id", requestID,
			"tenant_id", tenantID.String(),
			"action", action,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

// HandleIssueKey handles POST /tenants/{tenantID}/keys.
func (h *Handler) HandleIssueKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	tenantID, err := id.ParseTenantID(chi.URLParam(r, "tenantID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[IssueKeyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, err.Error()))
		return
	}

	key, cleartext, err := h.service.IssueAPIKey(ctx, tenantID, req.Label)
	if err != nil {
		h.logger.ErrorContext(ctx, "API key issuance failed",
			"request_id", requestID,
			"tenant_id", tenantID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, IssueKeyResponse{Key: key, APIKey: cleartext})
}

// HandleListKeys handles GET /tenants/{tenantID}/keys.
func (h *Handler) HandleListKeys(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenantID, err := id.ParseTenantID(chi.URLParam(r, "tenantID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	keys, err := h.service.ListAPIKeys(ctx, tenantID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if keys == nil {
		keys = []*models.APIKey{}
	}
	httputil.WriteJSON(w, http.StatusOK, ListKeysResponse{Keys: keys})
}

// HandleRevokeKey handles DELETE /tenants/{tenantID}/keys/{keyID}.
func (h *Handler) HandleRevokeKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	tenantID, err := id.ParseTenantID(chi.URLParam(r, "tenantID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	keyID, err := id.ParseAPIKeyID(chi.URLParam(r, "keyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	revoked, err := h.service.RevokeAPIKey(ctx, tenantID, keyID)
	if err != nil {
		h.logger.ErrorContext(ctx, "API key revocation failed",
			"request_id", requestID,
			"tenant_id", tenantID.String(),
			"api_key_id", keyID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, revoked)
}
