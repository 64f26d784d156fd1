// Package evaluation scores prospective deals and renders a three-way
// decision. The scoring rules are pure functions over a DealInput and a
// PolicyConfig; the Service wraps them with policy resolution, metrics,
// tracing, and audit emission.
package evaluation

import (
	"strings"

	id "siva/pkg/domain"
	dErrors "siva/pkg/domain-errors"
)

// Decision is the three-way outcome of an evaluation.
type Decision string

const (
	DecisionApprove     Decision = "APPROVE"
	DecisionNeedsReview Decision = "NEEDS_REVIEW"
	DecisionReject      Decision = "REJECT"
)

// ParseDecision validates an external decision value (used by policy
// configuration, where edge cases map to REJECT or NEEDS_REVIEW).
func ParseDecision(raw string) (Decision, error) {
	switch Decision(strings.ToUpper(strings.TrimSpace(raw))) {
	case DecisionApprove:
		return DecisionApprove, nil
	case DecisionNeedsReview:
		return DecisionNeedsReview, nil
	case DecisionReject:
		return DecisionReject, nil
	default:
		return "", dErrors.New(dErrors.CodeValidation, "decision must be one of APPROVE, NEEDS_REVIEW, REJECT")
	}
}

// CashFlowTrend describes the direction of a deal's cash flow.
type CashFlowTrend string

const (
	TrendPositive CashFlowTrend = "positive"
	TrendNegative CashFlowTrend = "negative"
	TrendNeutral  CashFlowTrend = "neutral"
)

// ParseCashFlowTrend validates an external trend value.
func ParseCashFlowTrend(raw string) (CashFlowTrend, error) {
	switch CashFlowTrend(strings.ToLower(strings.TrimSpace(raw))) {
	case TrendPositive:
		return TrendPositive, nil
	case TrendNegative:
		return TrendNegative, nil
	case TrendNeutral:
		return TrendNeutral, nil
	default:
		return "", dErrors.New(dErrors.CodeValidation, "cash_flow_trend must be one of positive, negative, neutral")
	}
}

// DealInput carries the financial facts of one prospective deal. Immutable
// for the duration of an evaluation.
type DealInput struct {
	// ARR is annual recurring revenue in currency units per year.
	ARR float64
	// GrossMargin is expected in [0,1] but only type-checked, not range-enforced.
	GrossMargin float64
	// CustomerCount is the number of paying customers.
	CustomerCount int
	// LargestCustomerShare is the revenue share of the largest customer, in [0,1].
	LargestCustomerShare float64
	CashFlowTrend        CashFlowTrend
}

// EdgeCase names a predicate over deal inputs that can force a decision
// independent of the numeric score.
type EdgeCase string

const (
	EdgeCaseMarginBelow20        EdgeCase = "margin_below_20_percent"
	EdgeCaseConcentrationAbove40 EdgeCase = "customer_concentration_above_40_percent"
	EdgeCaseNegativeCashFlow     EdgeCase = "negative_cash_flow_trend"
	EdgeCaseARRBelow100K         EdgeCase = "arr_below_100k"
	EdgeCaseNegativeGrowth       EdgeCase = "negative_growth"
)

// AllEdgeCases lists every known edge case in evaluation order.
// Order matters: the first triggered REJECT mapping wins.
func AllEdgeCases() []EdgeCase {
	return []EdgeCase{
		EdgeCaseMarginBelow20,
		EdgeCaseConcentrationAbove40,
		EdgeCaseNegativeCashFlow,
		EdgeCaseARRBelow100K,
		EdgeCaseNegativeGrowth,
	}
}

// ParseEdgeCase validates an external edge case identifier.
func ParseEdgeCase(raw string) (EdgeCase, error) {
	ec := EdgeCase(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range AllEdgeCases() {
		if ec == known {
			return ec, nil
		}
	}
	return "", dErrors.New(dErrors.CodeValidation, "unknown edge case identifier: "+raw)
}

// displayNames render edge case identifiers in generated reasoning.
var displayNames = map[EdgeCase]string{
	EdgeCaseMarginBelow20:        "gross margin below 20%",
	EdgeCaseConcentrationAbove40: "customer concentration above 40%",
	EdgeCaseNegativeCashFlow:     "negative cash flow trend",
	EdgeCaseARRBelow100K:         "ARR below $100k",
	EdgeCaseNegativeGrowth:       "negative growth signals",
}

// DisplayName returns the human-readable name used in reasoning text.
func (e EdgeCase) DisplayName() string {
	if name, ok := displayNames[e]; ok {
		return name
	}
	return string(e)
}

// Weights parameterize the combination of the four sub-scores.
// The scorer does not require them to sum to 1.0; policy writes are
// validated upstream, direct library callers are trusted.
type Weights struct {
	FinancialHealth float64 `json:"financial_health"`
	MarketPosition  float64 `json:"market_position"`
	DealTerms       float64 `json:"deal_terms"`
	RiskFactors     float64 `json:"risk_factors"`
}

// DefaultWeights returns the standard weight set (sums to 1.0).
func DefaultWeights() Weights {
	return Weights{
		FinancialHealth: 0.35,
		MarketPosition:  0.20,
		DealTerms:       0.25,
		RiskFactors:     0.20,
	}
}

// Thresholds bound the score-based decision bands. Scores at or above
// ApproveMin approve; scores strictly below RejectMax reject; everything
// between lands in NEEDS_REVIEW (both boundaries inclusive to review).
type Thresholds struct {
	ApproveMin float64 `json:"approve_min_score"`
	RejectMax  float64 `json:"reject_max_score"`
}

// DefaultThresholds returns the standard decision bands.
func DefaultThresholds() Thresholds {
	return Thresholds{ApproveMin: 0.85, RejectMax: 0.40}
}

// PolicyConfig is the fully resolved configuration for one evaluation.
// Defaulting happens at policy load time, never inside the scorer, so the
// scorer stays total: whatever values arrive here are used as-is.
type PolicyConfig struct {
	Weights    Weights
	Thresholds Thresholds
	// EdgeCaseRules maps edge case identifiers to the decision they force.
	// An edge case absent from the map is disabled even when its predicate
	// holds.
	EdgeCaseRules map[EdgeCase]Decision
}

// DefaultPolicyConfig returns the standard starting configuration for a
// new policy: default weights and thresholds, all edge cases mapped to
// NEEDS_REVIEW.
func DefaultPolicyConfig() PolicyConfig {
	rules := make(map[EdgeCase]Decision, len(AllEdgeCases()))
	for _, ec := range AllEdgeCases() {
		rules[ec] = DecisionNeedsReview
	}
	return PolicyConfig{
		Weights:       DefaultWeights(),
		Thresholds:    DefaultThresholds(),
		EdgeCaseRules: rules,
	}
}

// SubScores are the four component scores, each already clamped to [0,1].
type SubScores struct {
	FinancialHealth float64
	MarketPosition  float64
	DealTerms       float64
	RiskFactors     float64
}

// Outcome is the pure result of scoring one deal against one policy.
type Outcome struct {
	Decision  Decision
	Score     float64 // clamped to [0,1], rounded to 3 decimals
	SubScores SubScores
	// EdgeCasesTriggered lists triggered identifiers in evaluation order.
	EdgeCasesTriggered []EdgeCase
	// OverrideReason names the edge case that forced the decision, if any.
	OverrideReason *EdgeCase
	Reasoning      string
}

// ResolvedPolicy is what the policy resolver hands the evaluation service:
// the scoring configuration plus enough identity to echo in responses and
// audit events.
type ResolvedPolicy struct {
	PolicyID    id.PolicyID
	Name        string
	Version     int
	Vertical    string
	SubVertical string
	Config      PolicyConfig
}

// EvaluateRequest is the service-level request, already validated by the
// transport layer.
type EvaluateRequest struct {
	TenantID    id.TenantID
	DealID      string
	Vertical    string
	SubVertical string
	Region      string
	Input       DealInput
}

// EvaluateResult pairs the scoring outcome with the policy that produced it.
type EvaluateResult struct {
	EvaluationID id.EvaluationID
	Outcome      Outcome
	Policy       ResolvedPolicy
}
