// Package policy manages scoring policies: versioned, per-vertical
// configurations of weights, thresholds, and edge case rules that
// parameterize deal evaluation.
package policy

import (
	"fmt"
	"math"
	"time"

	"siva/internal/evaluation"
	id "siva/pkg/domain"
	dErrors "siva/pkg/domain-errors"
)

// Status is the lifecycle state of a policy.
type Status string

const (
	// StatusDraft marks a policy that can be edited freely and is never
	// served to evaluations.
	StatusDraft Status = "draft"
	// StatusActive marks the policy currently served for its
	// (vertical, sub_vertical) pair.
	StatusActive Status = "active"
	// StatusArchived marks a retired policy. Archived policies are kept
	// for explainability of past evaluations and are immutable.
	StatusArchived Status = "archived"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusActive, StatusArchived:
		return true
	}
	return false
}

// CanTransitionTo reports whether the lifecycle allows moving to target.
// Draft policies activate or archive; active policies archive; archived
// policies never come back.
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusDraft:
		return target == StatusActive || target == StatusArchived
	case StatusActive:
		return target == StatusArchived
	default:
		return false
	}
}

// ParseStatus validates an external status value.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "status must be one of draft, active, archived")
	}
	return s, nil
}

// WeightSumTolerance is how far a policy's weight sum may stray from 1.0.
// Weights are validated at write time so the scorer never has to care.
const WeightSumTolerance = 0.001

// Policy is the aggregate root for one versioned scoring configuration.
//
// Invariants:
//   - Vertical is non-empty and lowercase; SubVertical may be empty
//     (the vertical-wide fallback policy)
//   - Name is non-empty and at most 128 characters
//   - Version >= 1 and increases by one on every configuration update
//   - Weights, when set, are non-negative and sum to 1.0 within
//     WeightSumTolerance; nil means the standard defaults
//   - Thresholds, when set, lie in [0,1] with ApproveMin >= RejectMax;
//     nil means the standard defaults
//   - EdgeCaseRules values are REJECT or NEEDS_REVIEW only; an edge case
//     absent from the map is disabled for this policy
//   - Status transitions follow Status.CanTransitionTo
//   - At most one policy is active per (vertical, sub_vertical) pair;
//     the store enforces this during activation
type Policy struct {
	ID            id.PolicyID                                 `json:"id"`
	Vertical      string                                      `json:"vertical"`
	SubVertical   string                                      `json:"sub_vertical,omitempty"`
	Name          string                                      `json:"name"`
	Version       int                                         `json:"version"`
	Status        Status                                      `json:"status"`
	Weights       *evaluation.Weights                         `json:"weights,omitempty"`
	Thresholds    *evaluation.Thresholds                      `json:"thresholds,omitempty"`
	EdgeCaseRules map[evaluation.EdgeCase]evaluation.Decision `json:"edge_case_rules,omitempty"`
	CreatedAt     time.Time                                   `json:"created_at"`
	UpdatedAt     time.Time                                   `json:"updated_at"`
}

// NewPolicy constructs a draft policy at version 1.
func NewPolicy(
	policyID id.PolicyID,
	vertical string,
	subVertical string,
	name string,
	weights *evaluation.Weights,
	thresholds *evaluation.Thresholds,
	rules map[evaluation.EdgeCase]evaluation.Decision,
	now time.Time,
) (*Policy, error) {
	if vertical == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "policy vertical cannot be empty")
	}
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "policy name cannot be empty")
	}
	if len(name) > 128 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "policy name must be 128 characters or less")
	}
	if err := validateWeights(weights); err != nil {
		return nil, err
	}
	if err := validateThresholds(thresholds); err != nil {
		return nil, err
	}
	if err := validateRules(rules); err != nil {
		return nil, err
	}
	return &Policy{
		ID:            policyID,
		Vertical:      vertical,
		SubVertical:   subVertical,
		Name:          name,
		Version:       1,
		Status:        StatusDraft,
		Weights:       weights,
		Thresholds:    thresholds,
		EdgeCaseRules: rules,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// IsActive reports whether this policy is the one served to evaluations.
func (p *Policy) IsActive() bool {
	return p.Status == StatusActive
}

// Config resolves the policy into the fully defaulted configuration the
// scorer consumes. Nil weights and thresholds fall back to the standard
// defaults; a nil rule map disables every edge case.
func (p *Policy) Config() evaluation.PolicyConfig {
	config := evaluation.PolicyConfig{
		Weights:       evaluation.DefaultWeights(),
		Thresholds:    evaluation.DefaultThresholds(),
		EdgeCaseRules: make(map[evaluation.EdgeCase]evaluation.Decision, len(p.EdgeCaseRules)),
	}
	if p.Weights != nil {
		config.Weights = *p.Weights
	}
	if p.Thresholds != nil {
		config.Thresholds = *p.Thresholds
	}
	for ec, decision := range p.EdgeCaseRules {
		config.EdgeCaseRules[ec] = decision
	}
	return config
}

// Resolved pairs the policy's identity with its defaulted configuration
// in the shape the evaluation service consumes.
func (p *Policy) Resolved() *evaluation.ResolvedPolicy {
	return &evaluation.ResolvedPolicy{
		PolicyID:    p.ID,
		Name:        p.Name,
		Version:     p.Version,
		Vertical:    p.Vertical,
		SubVertical: p.SubVertical,
		Config:      p.Config(),
	}
}

// ApplyUpdate replaces the policy's name and scoring configuration and
// bumps the version. Archived policies are immutable.
func (p *Policy) ApplyUpdate(
	name string,
	weights *evaluation.Weights,
	thresholds *evaluation.Thresholds,
	rules map[evaluation.EdgeCase]evaluation.Decision,
	now time.Time,
) error {
	if p.Status == StatusArchived {
		return dErrors.New(dErrors.CodeInvariantViolation, "archived policy cannot be modified")
	}
	if name == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "policy name cannot be empty")
	}
	if len(name) > 128 {
		return dErrors.New(dErrors.CodeInvariantViolation, "policy name must be 128 characters or less")
	}
	if err := validateWeights(weights); err != nil {
		return err
	}
	if err := validateThresholds(thresholds); err != nil {
		return err
	}
	if err := validateRules(rules); err != nil {
		return err
	}
	p.Name = name
	p.Weights = weights
	p.Thresholds = thresholds
	p.EdgeCaseRules = rules
	p.Version++
	p.UpdatedAt = now
	return nil
}

// Activate transitions the policy to active.
func (p *Policy) Activate(now time.Time) error {
	if !p.Status.CanTransitionTo(StatusActive) {
		return dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("%s policy cannot be activated", p.Status))
	}
	p.Status = StatusActive
	p.UpdatedAt = now
	return nil
}

// Archive transitions the policy to archived.
func (p *Policy) Archive(now time.Time) error {
	if !p.Status.CanTransitionTo(StatusArchived) {
		return dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("%s policy cannot be archived", p.Status))
	}
	p.Status = StatusArchived
	p.UpdatedAt = now
	return nil
}

func validateWeights(w *evaluation.Weights) error {
	if w == nil {
		return nil
	}
	for _, v := range []float64{w.FinancialHealth, w.MarketPosition, w.DealTerms, w.RiskFactors} {
		if v < 0 {
			return dErrors.New(dErrors.CodeInvariantViolation, "policy weights must be non-negative")
		}
	}
	sum := w.FinancialHealth + w.MarketPosition + w.DealTerms + w.RiskFactors
	if math.Abs(sum-1.0) > WeightSumTolerance {
		return dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("policy weights must sum to 1.0, got %.3f", sum))
	}
	return nil
}

func validateThresholds(t *evaluation.Thresholds) error {
	if t == nil {
		return nil
	}
	if t.ApproveMin < 0 || t.ApproveMin > 1 || t.RejectMax < 0 || t.RejectMax > 1 {
		return dErrors.New(dErrors.CodeInvariantViolation, "policy thresholds must lie in [0,1]")
	}
	if t.ApproveMin < t.RejectMax {
		return dErrors.New(dErrors.CodeInvariantViolation, "approve threshold cannot be below reject threshold")
	}
	return nil
}

func validateRules(rules map[evaluation.EdgeCase]evaluation.Decision) error {
	for ec, decision := range rules {
		if _, err := evaluation.ParseEdgeCase(string(ec)); err != nil {
			return dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("unknown edge case in rules: %s", ec))
		}
		if decision != evaluation.DecisionReject && decision != evaluation.DecisionNeedsReview {
			return dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("edge case %s must map to REJECT or NEEDS_REVIEW", ec))
		}
	}
	return nil
}
