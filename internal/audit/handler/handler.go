// Package handler exposes the audit trail read surface. Events are
// append-only; the only operation is a filtered listing for admins.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"siva/internal/audit"
	id "siva/pkg/domain"
	dErrors "siva/pkg/domain-errors"
	"siva/pkg/platform/httputil"
	"siva/pkg/requestcontext"
)

// Service defines the audit operations the handler depends on.
type Service interface {
	List(ctx context.Context, filter audit.ListFilter) ([]audit.Event, error)
}

// Handler wires the audit query endpoint to the audit service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an audit handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts audit endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/audit/events", h.HandleList)
}

// EventResponse is the wire shape of a single audit event. Optional
// fields are omitted rather than serialized as zero values so security
// events and compliance events read cleanly side by side.
type EventResponse struct {
	Category     string    `json:"category"`
	Timestamp    time.Time `json:"timestamp"`
	TenantID     string    `json:"tenant_id,omitempty"`
	Subject      string    `json:"subject,omitempty"`
	Action       string    `json:"action"`
	Vertical     string    `json:"vertical,omitempty"`
	SubVertical  string    `json:"sub_vertical,omitempty"`
	Decision     string    `json:"decision,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	RequestID    string    `json:"request_id,omitempty"`
	ActorID      string    `json:"actor_id,omitempty"`
	ClientIP     string    `json:"client_ip,omitempty"`
	ClientDevice string    `json:"client_device,omitempty"`
	Detail       string    `json:"detail,omitempty"`
}

// ListEventsResponse envelopes the event listing, newest first.
type ListEventsResponse struct {
	Events []EventResponse `json:"events"`
}

// HandleList handles GET /audit/events. Filters arrive as query
// parameters: tenant_id, action, and limit, all optional.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	filter, err := filterFromQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	events, err := h.service.List(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "audit listing failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	out := make([]EventResponse, 0, len(events))
	for _, event := range events {
		out = append(out, fromEvent(event))
	}
	httputil.WriteJSON(w, http.StatusOK, ListEventsResponse{Events: out})
}

func filterFromQuery(r *http.Request) (audit.ListFilter, error) {
	var filter audit.ListFilter

	query := r.URL.Query()
	if raw := query.Get("tenant_id"); raw != "" {
		tenantID, err := id.ParseTenantID(raw)
		if err != nil {
			return audit.ListFilter{}, err
		}
		filter.TenantID = tenantID
	}
	filter.Action = query.Get("action")
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return audit.ListFilter{}, dErrors.New(dErrors.CodeInvalidInput, "limit must be an integer")
		}
		filter.Limit = limit
	}
	return filter, nil
}

func fromEvent(event audit.Event) EventResponse {
	resp := EventResponse{
		Category:     string(event.Category),
		Timestamp:    event.Timestamp,
		Subject:      event.Subject,
		Action:       event.Action,
		Vertical:     event.Vertical,
		SubVertical:  event.SubVertical,
		Decision:     event.Decision,
		Reason:       event.Reason,
		RequestID:    event.RequestID,
		ActorID:      event.ActorID,
		ClientIP:     event.ClientIP,
		ClientDevice: event.ClientDevice,
		Detail:       event.Detail,
	}
	if !event.TenantID.IsNil() {
		resp.TenantID = event.TenantID.String()
	}
	return resp
}
