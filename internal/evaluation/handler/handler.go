// Package handler exposes deal evaluation over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"siva/internal/evaluation"
	dErrors "siva/pkg/domain-errors"
	"siva/pkg/platform/httputil"
	"siva/pkg/requestcontext"
)

// Service defines the evaluation operations the handler depends on.
type Service interface {
	Evaluate(ctx context.Context, req evaluation.EvaluateRequest) (*evaluation.EvaluateResult, error)
}

// Handler wires the evaluate-deal endpoint to the evaluation service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an evaluation handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts evaluation endpoints on the router. The router decides
// the mount point and the middleware in front of it.
func (h *Handler) Register(r chi.Router) {
	r.Post("/evaluate-deal", h.HandleEvaluateDeal)
}

// HandleEvaluateDeal handles POST /evaluate-deal requests.
func (h *Handler) HandleEvaluateDeal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	tenantID := requestcontext.TenantID(ctx)
	if tenantID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[EvaluateDealRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	req.Normalize()

	result, err := h.service.Evaluate(ctx, evaluation.EvaluateRequest{
		TenantID:    tenantID,
		DealID:      req.DealID,
		Vertical:    req.Vertical,
		SubVertical: req.SubVertical,
		Region:      req.Region,
		Input:       req.Input(),
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "deal evaluation failed",
			"request_id", requestID,
			"tenant_id", tenantID,
			"deal_id", req.DealID,
			"vertical", req.Vertical,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "deal evaluated",
		"request_id", requestID,
		"tenant_id", tenantID,
		"deal_id", req.DealID,
		"decision", result.Outcome.Decision,
		"score", result.Outcome.Score,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusOK, FromResult(req, result))
}
