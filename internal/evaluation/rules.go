package evaluation

import "math"

// This file is pure domain logic - no I/O, no side effects. Every function
// here is deterministic: the same input and policy always produce the same
// outcome, which is what makes the scorer property-testable.

// scoreFinancialHealth blends gross margin (60%) against an 80% margin
// target with ARR (40%) against a $1M scale target.
func scoreFinancialHealth(in DealInput) float64 {
	margin := math.Min(in.GrossMargin/0.80, 1)
	revenue := math.Min(in.ARR/1_000_000, 1)
	return clamp01(0.6*margin + 0.4*revenue)
}

// scoreMarketPosition blends customer breadth against a 50 customer target
// with revenue diversification (the inverse of largest-customer share).
func scoreMarketPosition(in DealInput) float64 {
	breadth := math.Min(float64(in.CustomerCount)/50, 1)
	diversification := 1 - in.LargestCustomerShare
	return clamp01(0.5*breadth + 0.5*diversification)
}

// scoreDealTerms bands the deal purely on ARR size.
func scoreDealTerms(in DealInput) float64 {
	switch {
	case in.ARR >= 250_000:
		return 0.8
	case in.ARR >= 100_000:
		return 0.5
	default:
		return 0.3
	}
}

// scoreRiskFactors starts at a neutral 0.5 and applies trend and
// concentration adjustments. Neutral trend and mid-range concentration
// leave the base untouched.
func scoreRiskFactors(in DealInput) float64 {
	score := 0.5
	switch in.CashFlowTrend {
	case TrendPositive:
		score += 0.3
	case TrendNegative:
		score -= 0.3
	}
	switch {
	case in.LargestCustomerShare < 0.20:
		score += 0.2
	case in.LargestCustomerShare > 0.50:
		score -= 0.2
	}
	return clamp01(score)
}

// ComputeSubScores evaluates all four components. Each is clamped to [0,1]
// before any weighting happens, so pathological inputs cannot leak out of
// range through one component.
func ComputeSubScores(in DealInput) SubScores {
	return SubScores{
		FinancialHealth: scoreFinancialHealth(in),
		MarketPosition:  scoreMarketPosition(in),
		DealTerms:       scoreDealTerms(in),
		RiskFactors:     scoreRiskFactors(in),
	}
}

// CombineScore folds the sub-scores with the policy weights, clamps, and
// rounds to 3 decimals. The rounded value is the score of record: decision
// thresholds compare against it, not the raw sum.
func CombineScore(s SubScores, w Weights) float64 {
	total := w.FinancialHealth*s.FinancialHealth +
		w.MarketPosition*s.MarketPosition +
		w.DealTerms*s.DealTerms +
		w.RiskFactors*s.RiskFactors
	return round3(clamp01(total))
}

// edgeCaseCheck pairs an identifier with its predicate.
type edgeCaseCheck struct {
	ID        EdgeCase
	Triggered func(DealInput) bool
}

// edgeCaseChecks holds every predicate in evaluation order. The order is
// part of the contract: override resolution picks the first match.
var edgeCaseChecks = []edgeCaseCheck{
	{EdgeCaseMarginBelow20, func(in DealInput) bool {
		return in.GrossMargin < 0.20
	}},
	{EdgeCaseConcentrationAbove40, func(in DealInput) bool {
		return in.LargestCustomerShare > 0.40
	}},
	{EdgeCaseNegativeCashFlow, func(in DealInput) bool {
		return in.CashFlowTrend == TrendNegative
	}},
	{EdgeCaseARRBelow100K, func(in DealInput) bool {
		return in.ARR < 100_000
	}},
	{EdgeCaseNegativeGrowth, func(in DealInput) bool {
		return in.ARR < 50_000 && in.CustomerCount < 3
	}},
}

// DetectEdgeCases returns the triggered edge cases in evaluation order. A
// case triggers only when its predicate holds and the policy has a rule for
// it; cases absent from the policy are disabled entirely.
func DetectEdgeCases(in DealInput, policy PolicyConfig) []EdgeCase {
	var triggered []EdgeCase
	for _, check := range edgeCaseChecks {
		if _, enabled := policy.EdgeCaseRules[check.ID]; !enabled {
			continue
		}
		if check.Triggered(in) {
			triggered = append(triggered, check.ID)
		}
	}
	return triggered
}

// ResolveDecision picks the final decision. Edge case overrides take
// precedence over the numeric score: the first triggered case mapped to
// REJECT wins outright, then the first mapped to NEEDS_REVIEW. Only when no
// override applies do the thresholds decide, using the rounded score.
//
// A score exactly at RejectMax is NEEDS_REVIEW, not REJECT: the reject band
// is strictly below the boundary.
func ResolveDecision(score float64, triggered []EdgeCase, policy PolicyConfig) (Decision, *EdgeCase) {
	for _, ec := range triggered {
		if policy.EdgeCaseRules[ec] == DecisionReject {
			reason := ec
			return DecisionReject, &reason
		}
	}
	for _, ec := range triggered {
		if policy.EdgeCaseRules[ec] == DecisionNeedsReview {
			reason := ec
			return DecisionNeedsReview, &reason
		}
	}
	switch {
	case score >= policy.Thresholds.ApproveMin:
		return DecisionApprove, nil
	case score < policy.Thresholds.RejectMax:
		return DecisionReject, nil
	default:
		return DecisionNeedsReview, nil
	}
}

// EvaluateDeal runs the full pipeline: sub-scores, weighted combination,
// edge case detection, decision resolution, and reasoning. It is total -
// it never returns an error, regardless of input values.
func EvaluateDeal(in DealInput, policy PolicyConfig) Outcome {
	subScores := ComputeSubScores(in)
	score := CombineScore(subScores, policy.Weights)
	triggered := DetectEdgeCases(in, policy)
	decision, override := ResolveDecision(score, triggered, policy)

	out := Outcome{
		Decision:           decision,
		Score:              score,
		SubScores:          subScores,
		EdgeCasesTriggered: triggered,
		OverrideReason:     override,
	}
	out.Reasoning = BuildReasoning(in, out)
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// round3 rounds half away from zero to 3 decimal places.
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
