package evaluation

import (
	"fmt"
	"strings"
)

// BuildReasoning renders the deterministic explanation for an outcome. The
// template is fixed: an override sentence when an edge case forced the
// decision, the calculated score, then commentary specific to the decision
// branch. No randomness, no clock, so identical inputs always produce the
// identical string.
func BuildReasoning(in DealInput, out Outcome) string {
	parts := make([]string, 0, 4)

	if out.OverrideReason != nil {
		parts = append(parts, fmt.Sprintf("Decision overridden by edge case: %s.", out.OverrideReason.DisplayName()))
	}
	parts = append(parts, fmt.Sprintf("Calculated score: %.1f%%.", out.Score*100))

	switch out.Decision {
	case DecisionApprove:
		parts = append(parts, approveCommentary(in)...)
	case DecisionReject:
		parts = append(parts, rejectCommentary(in)...)
	case DecisionNeedsReview:
		parts = append(parts, reviewCommentary(out))
	}

	return strings.Join(parts, " ")
}

func approveCommentary(in DealInput) []string {
	var parts []string
	if in.GrossMargin >= 0.60 {
		parts = append(parts, fmt.Sprintf("Strong gross margin of %.0f%% supports approval.", in.GrossMargin*100))
	}
	if in.ARR >= 250_000 {
		parts = append(parts, "ARR at or above $250k meets the preferred deal size.")
	}
	if len(parts) == 0 {
		parts = append(parts, "Overall deal profile meets the approval criteria.")
	}
	return parts
}

func rejectCommentary(in DealInput) []string {
	var parts []string
	if in.GrossMargin < 0.20 {
		parts = append(parts, fmt.Sprintf("Gross margin of %.0f%% is below the 20%% viability floor.", in.GrossMargin*100))
	}
	if in.CashFlowTrend == TrendNegative {
		parts = append(parts, "Cash flow trend is negative.")
	}
	if in.ARR < 100_000 {
		parts = append(parts, "ARR is below the $100k minimum deal size.")
	}
	if len(parts) == 0 {
		parts = append(parts, "Weighted score falls below the rejection threshold.")
	}
	return parts
}

func reviewCommentary(out Outcome) string {
	if len(out.EdgeCasesTriggered) == 0 {
		return "Score falls between the rejection and approval thresholds."
	}
	names := make([]string, len(out.EdgeCasesTriggered))
	for i, ec := range out.EdgeCasesTriggered {
		names[i] = ec.DisplayName()
	}
	return fmt.Sprintf("Flagged for review: %s.", strings.Join(names, ", "))
}
