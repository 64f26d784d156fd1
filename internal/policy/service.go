package policy

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"siva/internal/audit"
	"siva/internal/evaluation"
	"siva/internal/policy/metrics"
	"siva/pkg/attrs"
	id "siva/pkg/domain"
	dErrors "siva/pkg/domain-errors"
	"siva/pkg/platform/device"
	"siva/pkg/platform/sentinel"
	"siva/pkg/requestcontext"
)

// AuditPublisher records policy lifecycle changes on the audit trail.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service orchestrates policy management and resolution. It implements
// the evaluation service's PolicyResolver.
type Service struct {
	store   Store
	logger  *slog.Logger
	audit   AuditPublisher
	metrics *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.audit = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service.
func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateParams carries the fields for a new draft policy. Activate skips
// the draft stage and promotes the policy in the same request.
type CreateParams struct {
	Vertical      string
	SubVertical   string
	Name          string
	Weights       *evaluation.Weights
	Thresholds    *evaluation.Thresholds
	EdgeCaseRules map[evaluation.EdgeCase]evaluation.Decision
	Activate      bool
}

// UpdateParams carries the replaceable fields of an existing policy.
// Vertical and sub-vertical are routing keys and immutable after creation.
type UpdateParams struct {
	Name          string
	Weights       *evaluation.Weights
	Thresholds    *evaluation.Thresholds
	EdgeCaseRules map[evaluation.EdgeCase]evaluation.Decision
}

// Create registers a new draft policy at version 1.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Policy, error) {
	now := requestcontext.Now(ctx)

	p, err := NewPolicy(
		id.NewPolicyID(),
		strings.ToLower(strings.TrimSpace(params.Vertical)),
		strings.ToLower(strings.TrimSpace(params.SubVertical)),
		strings.TrimSpace(params.Name),
		params.Weights,
		params.Thresholds,
		params.EdgeCaseRules,
		now,
	)
	if err != nil {
		// Convert invariant violations to validation errors for API response
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	if err := s.store.Create(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "policy already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create policy")
	}

	s.logAudit(ctx, string(audit.EventPolicyCreated),
		"policy_id", p.ID.String(),
		"vertical", p.Vertical,
		"sub_vertical", p.SubVertical,
	)
	s.metrics.IncrementWrite("create")

	if params.Activate {
		return s.Activate(ctx, p.ID)
	}
	return p, nil
}

// Get fetches one policy by ID.
func (s *Service) Get(ctx context.Context, policyID id.PolicyID) (*Policy, error) {
	p, err := s.store.FindByID(ctx, policyID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "policy not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load policy")
	}
	return p, nil
}

// List returns policies, optionally filtered by vertical and status.
func (s *Service) List(ctx context.Context, vertical, status string) ([]*Policy, error) {
	filter := ListFilter{Vertical: strings.ToLower(strings.TrimSpace(vertical))}
	if raw := strings.ToLower(strings.TrimSpace(status)); raw != "" {
		parsed, err := ParseStatus(raw)
		if err != nil {
			return nil, err
		}
		filter.Status = parsed
	}

	policies, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list policies")
	}
	return policies, nil
}

// Update replaces a policy's name and configuration and bumps its version.
// Archived policies are immutable; active policies stay active, so an
// update to a live policy takes effect on the next evaluation.
func (s *Service) Update(ctx context.Context, policyID id.PolicyID, params UpdateParams) (*Policy, error) {
	p, err := s.Get(ctx, policyID)
	if err != nil {
		return nil, err
	}
	if p.Status == StatusArchived {
		return nil, dErrors.New(dErrors.CodeConflict, "archived policy cannot be modified")
	}

	err = p.ApplyUpdate(
		strings.TrimSpace(params.Name),
		params.Weights,
		params.Thresholds,
		params.EdgeCaseRules,
		requestcontext.Now(ctx),
	)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	if err := s.store.Update(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "policy not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update policy")
	}

	s.logAudit(ctx, string(audit.EventPolicyUpdated),
		"policy_id", p.ID.String(),
		"vertical", p.Vertical,
		"sub_vertical", p.SubVertical,
		"version", p.Version,
	)
	s.metrics.IncrementWrite("update")
	return p, nil
}

// Activate promotes a draft policy to active. The previously active policy
// for the same (vertical, sub_vertical) pair, if any, is archived in the
// same transaction, preserving the single-active invariant.
func (s *Service) Activate(ctx context.Context, policyID id.PolicyID) (*Policy, error) {
	p, err := s.Get(ctx, policyID)
	if err != nil {
		return nil, err
	}

	prev, err := s.store.FindActive(ctx, p.Vertical, p.SubVertical)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load active policy")
	}

	now := requestcontext.Now(ctx)
	if err := p.Activate(now); err != nil {
		return nil, dErrors.New(dErrors.CodeConflict, err.Error())
	}
	if prev != nil {
		if err := prev.Archive(now); err != nil {
			return nil, dErrors.New(dErrors.CodeConflict, err.Error())
		}
	}

	if err := s.store.SwapActive(ctx, p, prev); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "policy not found")
		case errors.Is(err, sentinel.ErrConflict):
			return nil, dErrors.New(dErrors.CodeConflict, "concurrent activation for this vertical, retry")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to activate policy")
		}
	}

	attributes := []any{
		"policy_id", p.ID.String(),
		"vertical", p.Vertical,
		"sub_vertical", p.SubVertical,
		"version", p.Version,
	}
	if prev != nil {
		attributes = append(attributes, "replaced_policy_id", prev.ID.String())
	}
	s.logAudit(ctx, string(audit.EventPolicyActivated), attributes...)
	s.metrics.IncrementWrite("activate")
	return p, nil
}

// Archive retires a policy. Evaluations for its pair fall back to the
// vertical-wide policy, or fail with policy_not_found if none is active.
func (s *Service) Archive(ctx context.Context, policyID id.PolicyID) (*Policy, error) {
	p, err := s.Get(ctx, policyID)
	if err != nil {
		return nil, err
	}

	if err := p.Archive(requestcontext.Now(ctx)); err != nil {
		return nil, dErrors.New(dErrors.CodeConflict, err.Error())
	}

	if err := s.store.Update(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "policy not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to archive policy")
	}

	s.logAudit(ctx, string(audit.EventPolicyArchived),
		"policy_id", p.ID.String(),
		"vertical", p.Vertical,
		"sub_vertical", p.SubVertical,
	)
	s.metrics.IncrementWrite("archive")
	return p, nil
}

// ResolveActive returns the configuration evaluations should score
// against: the active policy for (vertical, subVertical), falling back
// to the vertical-wide policy when the pair has none.
func (s *Service) ResolveActive(ctx context.Context, vertical, subVertical string) (*evaluation.ResolvedPolicy, error) {
	v := strings.ToLower(strings.TrimSpace(vertical))
	sv := strings.ToLower(strings.TrimSpace(subVertical))

	p, err := s.store.FindActive(ctx, v, sv)
	if err == nil {
		s.metrics.IncrementResolve(metrics.ResolveHit, v)
		return p.Resolved(), nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve policy")
	}

	if sv != "" {
		p, err = s.store.FindActive(ctx, v, "")
		if err == nil {
			s.logger.DebugContext(ctx, "policy resolution fell back to vertical",
				"vertical", v,
				"sub_vertical", sv,
			)
			s.metrics.IncrementResolve(metrics.ResolveFallback, v)
			return p.Resolved(), nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve policy")
		}
	}

	s.metrics.IncrementResolve(metrics.ResolveMiss, v)
	return nil, dErrors.New(dErrors.CodePolicyNotFound, "no active policy configured for vertical")
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, event, args...)
	}
	if s.audit == nil {
		return
	}
	_ = s.audit.Emit(ctx, audit.Event{
		Subject:      attrs.ExtractString(attributes, "policy_id"),
		Action:       event,
		Vertical:     attrs.ExtractString(attributes, "vertical"),
		SubVertical:  attrs.ExtractString(attributes, "sub_vertical"),
		ActorID:      requestcontext.Actor(ctx),
		ClientIP:     requestcontext.ClientIP(ctx),
		ClientDevice: device.Display(requestcontext.UserAgent(ctx)),
	})
}
