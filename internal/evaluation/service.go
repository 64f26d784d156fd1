package evaluation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"siva/internal/audit"
	"siva/internal/evaluation/metrics"
	id "siva/pkg/domain"
	dErrors "siva/pkg/domain-errors"
	"siva/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

// PolicyResolver supplies the active scoring policy for a vertical. A nil
// subVertical-specific policy falls back to the vertical-level default;
// resolution failure is reported as CodePolicyNotFound.
type PolicyResolver interface {
	ResolveActive(ctx context.Context, vertical, subVertical string) (*ResolvedPolicy, error)
}

// AuditPublisher records that an evaluation happened. Defined here to keep
// the module boundary explicit.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

var tracer = otel.Tracer("siva/internal/evaluation")

// Service wraps the pure scoring rules with policy resolution, metrics,
// tracing, and audit emission.
type Service struct {
	policies PolicyResolver
	logger   *slog.Logger
	audit    AuditPublisher
	metrics  *metrics.Metrics
}

type Option func(*Service)

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
func New(policies PolicyResolver, opts ...Option) *Service {
	s := &Service{policies: policies, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Evaluate resolves the active policy for the request's vertical and scores
// the deal against it. The scoring itself cannot fail; the only error paths
// are policy resolution and upstream validation.
func (s *Service) Evaluate(ctx context.Context, req EvaluateRequest) (*EvaluateResult, error) {
	start := time.Now()

	ctx, span := tracer.Start(ctx, "evaluation.Evaluate", trace.WithAttributes(
		attribute.String("deal.id", req.DealID),
		attribute.String("deal.vertical", req.Vertical),
		attribute.String("deal.sub_vertical", req.SubVertical),
	))
	defer span.End()

	resolveStart := time.Now()
	policy, err := s.policies.ResolveActive(ctx, req.Vertical, req.SubVertical)
	s.metrics.ObservePolicyResolveLatency(time.Since(resolveStart))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodePolicyNotFound) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve policy")
	}

	outcome := EvaluateDeal(req.Input, policy.Config)

	span.SetAttributes(
		attribute.String("evaluation.decision", string(outcome.Decision)),
		attribute.Float64("evaluation.score", outcome.Score),
		attribute.Int("evaluation.edge_cases", len(outcome.EdgeCasesTriggered)),
	)

	result := &EvaluateResult{
		EvaluationID: id.NewEvaluationID(),
		Outcome:      outcome,
		Policy:       *policy,
	}

	s.logger.InfoContext(ctx, "deal evaluated",
		"evaluation_id", result.EvaluationID,
		"deal_id", req.DealID,
		"vertical", req.Vertical,
		"sub_vertical", req.SubVertical,
		"policy_id", policy.PolicyID,
		"policy_version", policy.Version,
		"decision", outcome.Decision,
		"score", outcome.Score,
		"edge_cases", len(outcome.EdgeCasesTriggered),
	)

	s.emitAudit(ctx, req, result)
	s.metrics.IncrementOutcome(string(outcome.Decision), req.Vertical)
	for _, ec := range outcome.EdgeCasesTriggered {
		s.metrics.IncrementEdgeCase(string(ec))
	}
	s.metrics.ObserveEvaluateLatency(time.Since(start))

	return result, nil
}

// emitAudit records the evaluation. Audit failures are logged, never
// propagated: a scored deal must not be un-scored because the trail hiccuped.
func (s *Service) emitAudit(ctx context.Context, req EvaluateRequest, result *EvaluateResult) {
	if s.audit == nil {
		return
	}

	reason := ""
	if result.Outcome.OverrideReason != nil {
		reason = string(*result.Outcome.OverrideReason)
	}
	actor := ""
	if keyID := requestcontext.APIKeyID(ctx); !keyID.IsNil() {
		actor = keyID.String()
	}
	err := s.audit.Emit(ctx, audit.Event{
		TenantID:    req.TenantID,
		Subject:     req.DealID,
		Action:      string(audit.EventDealEvaluated),
		Vertical:    req.Vertical,
		SubVertical: req.SubVertical,
		Decision:    string(result.Outcome.Decision),
		Reason:      reason,
		ActorID:     actor,
		Detail:      fmt.Sprintf("score %.3f against policy v%d", result.Outcome.Score, result.Policy.Version),
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to emit evaluation audit event",
			"evaluation_id", result.EvaluationID,
			"deal_id", req.DealID,
			"error", err,
		)
	}
}
