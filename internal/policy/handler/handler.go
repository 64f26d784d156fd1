// Package handler exposes policy administration over HTTP. All routes are
// mounted behind admin authentication by the router.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"siva/internal/policy"
	id "siva/pkg/domain"
	"siva/pkg/platform/httputil"
	"siva/pkg/requestcontext"
)

// Service defines the policy operations the handler depends on.
type Service interface {
	Create(ctx context.Context, params policy.CreateParams) (*policy.Policy, error)
	Get(ctx context.Context, policyID id.PolicyID) (*policy.Policy, error)
	List(ctx context.Context, vertical, status string) ([]*policy.Policy, error)
	Update(ctx context.Context, policyID id.PolicyID, params policy.UpdateParams) (*policy.Policy, error)
	Activate(ctx context.Context, policyID id.PolicyID) (*policy.Policy, error)
	Archive(ctx context.Context, policyID id.PolicyID) (*policy.Policy, error)
}

// Handler wires policy admin endpoints to the policy service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a policy handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts policy endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/policies", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)
		r.Get("/{policyID}", h.HandleGet)
		r.Put("/{policyID}", h.HandleUpdate)
		r.Post("/{policyID}/activate", h.HandleActivate)
		r.Post("/{policyID}/archive", h.HandleArchive)
	})
}

// ListPoliciesResponse envelopes the policy list.
type ListPoliciesResponse struct {
	Policies []*policy.Policy `json:"policies"`
}

// HandleCreate handles POST /policies.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreatePolicyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	req.Normalize()

	params, err := req.Params()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	created, err := h.service.Create(ctx, params)
	if err != nil {
		h.logger.ErrorContext(ctx, "policy creation failed",
			"request_id", requestID,
			"vertical", req.Vertical,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

// HandleList handles GET /policies with optional vertical and status filters.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	policies, err := h.service.List(ctx, query.Get("vertical"), query.Get("status"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if policies == nil {
		policies = []*policy.Policy{}
	}
	httputil.WriteJSON(w, http.StatusOK, ListPoliciesResponse{Policies: policies})
}

// HandleGet handles GET /policies/{policyID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	policyID, err := id.ParsePolicyID(chi.URLParam(r, "policyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	found, err := h.service.Get(ctx, policyID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, found)
}

// HandleUpdate handles PUT /policies/{policyID}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	policyID, err := id.ParsePolicyID(chi.URLParam(r, "policyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[UpdatePolicyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	req.Normalize()

	params, err := req.Params()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	updated, err := h.service.Update(ctx, policyID, params)
	if err != nil {
		h.logger.ErrorContext(ctx, "policy update failed",
			"request_id", requestID,
			"policy_id", policyID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

// HandleActivate handles POST /policies/{policyID}/activate.
func (h *Handler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "activate", h.service.Activate)
}

// HandleArchive handles POST /policies/{policyID}/archive.
func (h *Handler) HandleArchive(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "archive", h.service.Archive)
}

func (h *Handler) transition(
	w http.ResponseWriter,
	r *http.Request,
	action string,
	apply func(ctx context.Context, policyID id.PolicyID) (*policy.Policy, error),
) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	policyID, err := id.ParsePolicyID(chi.URLParam(r, "policyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	updated, err := apply(ctx, policyID)
	if err != nil {
		h.logger.ErrorContext(ctx, "policy transition failed",
			"request_id", requestID,
			"policy_id", policyID.String(),
			"action", action,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}
