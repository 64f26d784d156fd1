package evaluation

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

// =============================================================================
// Scoring Rules Test Suite
// =============================================================================
// Justification for unit tests: the scoring pipeline is pure functions with
// exact arithmetic contracts (sub-score formulas, clamping, rounding, override
// precedence, threshold boundaries). HTTP-level tests cannot pin down the
// boundary values precisely.

type ScoringRulesSuite struct {
	suite.Suite
}

func TestScoringRulesSuite(t *testing.T) {
	suite.Run(t, new(ScoringRulesSuite))
}

// rejectAllPolicy maps every edge case to REJECT.
func rejectAllPolicy() PolicyConfig {
	rules := make(map[EdgeCase]Decision)
	for _, ec := range AllEdgeCases() {
		rules[ec] = DecisionReject
	}
	return PolicyConfig{
		Weights:       DefaultWeights(),
		Thresholds:    DefaultThresholds(),
		EdgeCaseRules: rules,
	}
}

// noEdgeCasePolicy disables every edge case, leaving thresholds in charge.
func noEdgeCasePolicy() PolicyConfig {
	return PolicyConfig{
		Weights:       DefaultWeights(),
		Thresholds:    DefaultThresholds(),
		EdgeCaseRules: map[EdgeCase]Decision{},
	}
}

func (s *ScoringRulesSuite) TestScoreFinancialHealth() {
	tests := []struct {
		name string
		in   DealInput
		want float64
	}{
		{
			name: "margin and arr both at cap",
			in:   DealInput{ARR: 1_000_000, GrossMargin: 0.80},
			want: 1.0,
		},
		{
			name: "margin above cap does not exceed component max",
			in:   DealInput{ARR: 5_000_000, GrossMargin: 0.95},
			want: 1.0,
		},
		{
			name: "mid-range inputs blend 60/40",
			in:   DealInput{ARR: 500_000, GrossMargin: 0.40},
			want: 0.6*0.5 + 0.4*0.5,
		},
		{
			name: "zero inputs score zero",
			in:   DealInput{},
			want: 0.0,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.InDelta(tt.want, scoreFinancialHealth(tt.in), 1e-9)
		})
	}
}

func (s *ScoringRulesSuite) TestScoreMarketPosition() {
	tests := []struct {
		name string
		in   DealInput
		want float64
	}{
		{
			name: "fifty customers hits breadth cap",
			in:   DealInput{CustomerCount: 50, LargestCustomerShare: 0.0},
			want: 1.0,
		},
		{
			name: "customer count above cap does not exceed component max",
			in:   DealInput{CustomerCount: 500, LargestCustomerShare: 0.0},
			want: 1.0,
		},
		{
			name: "concentration halves the diversification term",
			in:   DealInput{CustomerCount: 25, LargestCustomerShare: 0.50},
			want: 0.5*0.5 + 0.5*0.5,
		},
		{
			name: "total concentration zeroes diversification",
			in:   DealInput{CustomerCount: 1, LargestCustomerShare: 1.0},
			want: 0.5 * (1.0 / 50),
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.InDelta(tt.want, scoreMarketPosition(tt.in), 1e-9)
		})
	}
}

// Deal terms is a step function on ARR; the boundaries are inclusive.
func (s *ScoringRulesSuite) TestScoreDealTerms() {
	tests := []struct {
		name string
		arr  float64
		want float64
	}{
		{"at 250k boundary", 250_000, 0.8},
		{"above 250k", 1_000_000, 0.8},
		{"just below 250k", 249_999.99, 0.5},
		{"at 100k boundary", 100_000, 0.5},
		{"just below 100k", 99_999.99, 0.3},
		{"zero arr", 0, 0.3},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.InDelta(tt.want, scoreDealTerms(DealInput{ARR: tt.arr}), 1e-9)
		})
	}
}

func (s *ScoringRulesSuite) TestScoreRiskFactors() {
	tests := []struct {
		name string
		in   DealInput
		want float64
	}{
		{
			name: "neutral trend mid concentration stays at base",
			in:   DealInput{CashFlowTrend: TrendNeutral, LargestCustomerShare: 0.30},
			want: 0.5,
		},
		{
			name: "positive trend low concentration clamps at one",
			in:   DealInput{CashFlowTrend: TrendPositive, LargestCustomerShare: 0.10},
			want: 1.0,
		},
		{
			name: "negative trend high concentration clamps at zero",
			in:   DealInput{CashFlowTrend: TrendNegative, LargestCustomerShare: 0.60},
			want: 0.0,
		},
		{
			name: "positive trend high concentration partially offsets",
			in:   DealInput{CashFlowTrend: TrendPositive, LargestCustomerShare: 0.60},
			want: 0.6,
		},
		{
			name: "concentration boundary at 0.20 gets no bonus",
			in:   DealInput{CashFlowTrend: TrendNeutral, LargestCustomerShare: 0.20},
			want: 0.5,
		},
		{
			name: "concentration boundary at 0.50 gets no penalty",
			in:   DealInput{CashFlowTrend: TrendNeutral, LargestCustomerShare: 0.50},
			want: 0.5,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.InDelta(tt.want, scoreRiskFactors(tt.in), 1e-9)
		})
	}
}

func (s *ScoringRulesSuite) TestCombineScore() {
	s.Run("weighted sum rounds to three decimals", func() {
		subScores := SubScores{
			FinancialHealth: 0.9625,
			MarketPosition:  0.95,
			DealTerms:       0.8,
			RiskFactors:     1.0,
		}
		s.InDelta(0.927, CombineScore(subScores, DefaultWeights()), 1e-9)
	})

	s.Run("overweight policy clamps before rounding", func() {
		subScores := SubScores{FinancialHealth: 1, MarketPosition: 1, DealTerms: 1, RiskFactors: 1}
		heavy := Weights{FinancialHealth: 1, MarketPosition: 1, DealTerms: 1, RiskFactors: 1}
		s.InDelta(1.0, CombineScore(subScores, heavy), 1e-9)
	})

	s.Run("zero weights score zero", func() {
		subScores := SubScores{FinancialHealth: 1, MarketPosition: 1, DealTerms: 1, RiskFactors: 1}
		s.InDelta(0.0, CombineScore(subScores, Weights{}), 1e-9)
	})
}

func (s *ScoringRulesSuite) TestDetectEdgeCases() {
	s.Run("predicates gate on policy rules", func() {
		in := DealInput{
			ARR:                  40_000,
			GrossMargin:          0.15,
			CustomerCount:        2,
			LargestCustomerShare: 0.60,
			CashFlowTrend:        TrendNegative,
		}
		triggered := DetectEdgeCases(in, noEdgeCasePolicy())
		s.Empty(triggered, "no rules configured means nothing triggers")

		triggered = DetectEdgeCases(in, rejectAllPolicy())
		s.Equal(AllEdgeCases(), triggered, "all five predicates hold for this input")
	})

	s.Run("omitted rule disables only that case", func() {
		in := DealInput{
			ARR:                  40_000,
			GrossMargin:          0.15,
			CustomerCount:        2,
			LargestCustomerShare: 0.60,
			CashFlowTrend:        TrendNegative,
		}
		policy := rejectAllPolicy()
		delete(policy.EdgeCaseRules, EdgeCaseMarginBelow20)

		triggered := DetectEdgeCases(in, policy)
		s.Equal([]EdgeCase{
			EdgeCaseConcentrationAbove40,
			EdgeCaseNegativeCashFlow,
			EdgeCaseARRBelow100K,
			EdgeCaseNegativeGrowth,
		}, triggered)
	})

	s.Run("boundary values do not trigger", func() {
		in := DealInput{
			ARR:                  100_000,
			GrossMargin:          0.20,
			CustomerCount:        3,
			LargestCustomerShare: 0.40,
			CashFlowTrend:        TrendNeutral,
		}
		s.Empty(DetectEdgeCases(in, rejectAllPolicy()))
	})

	s.Run("negative growth needs both low arr and low customer count", func() {
		policy := rejectAllPolicy()

		lowARROnly := DealInput{ARR: 40_000, GrossMargin: 0.5, CustomerCount: 10, CashFlowTrend: TrendNeutral}
		s.NotContains(DetectEdgeCases(lowARROnly, policy), EdgeCaseNegativeGrowth)

		lowCustomersOnly := DealInput{ARR: 200_000, GrossMargin: 0.5, CustomerCount: 2, CashFlowTrend: TrendNeutral}
		s.NotContains(DetectEdgeCases(lowCustomersOnly, policy), EdgeCaseNegativeGrowth)

		both := DealInput{ARR: 40_000, GrossMargin: 0.5, CustomerCount: 2, CashFlowTrend: TrendNeutral}
		s.Contains(DetectEdgeCases(both, policy), EdgeCaseNegativeGrowth)
	})
}

func (s *ScoringRulesSuite) TestResolveDecision() {
	s.Run("first reject mapping wins over later ones", func() {
		policy := rejectAllPolicy()
		triggered := []EdgeCase{EdgeCaseMarginBelow20, EdgeCaseNegativeCashFlow}

		decision, override := ResolveDecision(0.95, triggered, policy)
		s.Equal(DecisionReject, decision)
		s.Require().NotNil(override)
		s.Equal(EdgeCaseMarginBelow20, *override)
	})

	s.Run("reject mapping beats earlier needs review mapping", func() {
		policy := noEdgeCasePolicy()
		policy.EdgeCaseRules[EdgeCaseMarginBelow20] = DecisionNeedsReview
		policy.EdgeCaseRules[EdgeCaseNegativeCashFlow] = DecisionReject
		triggered := []EdgeCase{EdgeCaseMarginBelow20, EdgeCaseNegativeCashFlow}

		decision, override := ResolveDecision(0.95, triggered, policy)
		s.Equal(DecisionReject, decision)
		s.Require().NotNil(override)
		s.Equal(EdgeCaseNegativeCashFlow, *override, "reject scan runs before needs review scan")
	})

	s.Run("needs review mapping used when no reject mapping triggers", func() {
		policy := noEdgeCasePolicy()
		policy.EdgeCaseRules[EdgeCaseConcentrationAbove40] = DecisionNeedsReview
		triggered := []EdgeCase{EdgeCaseConcentrationAbove40}

		decision, override := ResolveDecision(0.95, triggered, policy)
		s.Equal(DecisionNeedsReview, decision)
		s.Require().NotNil(override)
		s.Equal(EdgeCaseConcentrationAbove40, *override)
	})

	s.Run("score at approve threshold approves", func() {
		decision, override := ResolveDecision(0.85, nil, noEdgeCasePolicy())
		s.Equal(DecisionApprove, decision)
		s.Nil(override)
	})

	s.Run("score exactly at reject threshold needs review", func() {
		decision, override := ResolveDecision(0.40, nil, noEdgeCasePolicy())
		s.Equal(DecisionNeedsReview, decision)
		s.Nil(override)
	})

	s.Run("score below reject threshold rejects", func() {
		decision, override := ResolveDecision(0.399, nil, noEdgeCasePolicy())
		s.Equal(DecisionReject, decision)
		s.Nil(override)
	})
}

// =============================================================================
// End-to-End Scenario Tests
// =============================================================================
// Justification: these pin the full pipeline (sub-scores, weighting, edge
// case gating, override precedence, reasoning) to exact expected scores.

func (s *ScoringRulesSuite) TestEvaluateDeal_Scenarios() {
	s.Run("strong deal with no edge rules approves", func() {
		in := DealInput{
			ARR:                  1_500_000,
			GrossMargin:          0.75,
			CustomerCount:        80,
			LargestCustomerShare: 0.10,
			CashFlowTrend:        TrendPositive,
		}
		out := EvaluateDeal(in, noEdgeCasePolicy())

		s.Equal(DecisionApprove, out.Decision)
		s.InDelta(0.927, out.Score, 1e-9)
		s.GreaterOrEqual(out.Score, 0.85)
		s.Empty(out.EdgeCasesTriggered)
		s.Nil(out.OverrideReason)
		s.Contains(out.Reasoning, "Calculated score: 92.7%.")
		s.Contains(out.Reasoning, "Strong gross margin")
		s.Contains(out.Reasoning, "ARR at or above $250k")
	})

	s.Run("weak deal with all reject rules rejects on first edge case", func() {
		in := DealInput{
			ARR:                  40_000,
			GrossMargin:          0.15,
			CustomerCount:        2,
			LargestCustomerShare: 0.60,
			CashFlowTrend:        TrendNegative,
		}
		out := EvaluateDeal(in, rejectAllPolicy())

		s.Equal(DecisionReject, out.Decision)
		s.InDelta(0.164, out.Score, 1e-9)
		s.Equal(AllEdgeCases(), out.EdgeCasesTriggered)
		s.Require().NotNil(out.OverrideReason)
		s.Equal(EdgeCaseMarginBelow20, *out.OverrideReason)
		s.Contains(out.Reasoning, "Decision overridden by edge case: gross margin below 20%.")
		s.Contains(out.Reasoning, "Calculated score: 16.4%.")
	})

	s.Run("weak deal with margin rule omitted falls to first review case", func() {
		in := DealInput{
			ARR:                  40_000,
			GrossMargin:          0.15,
			CustomerCount:        2,
			LargestCustomerShare: 0.60,
			CashFlowTrend:        TrendNegative,
		}
		policy := noEdgeCasePolicy()
		policy.EdgeCaseRules[EdgeCaseConcentrationAbove40] = DecisionNeedsReview
		policy.EdgeCaseRules[EdgeCaseNegativeCashFlow] = DecisionNeedsReview
		policy.EdgeCaseRules[EdgeCaseARRBelow100K] = DecisionNeedsReview
		policy.EdgeCaseRules[EdgeCaseNegativeGrowth] = DecisionNeedsReview

		out := EvaluateDeal(in, policy)

		s.Equal(DecisionNeedsReview, out.Decision)
		s.Require().NotNil(out.OverrideReason)
		s.Equal(EdgeCaseConcentrationAbove40, *out.OverrideReason)
		s.NotContains(out.EdgeCasesTriggered, EdgeCaseMarginBelow20, "omitted rule must not trigger")
		s.Len(out.EdgeCasesTriggered, 4)
	})

	s.Run("score landing exactly on reject boundary needs review", func() {
		// Weights concentrated on financial health so the final score can be
		// pinned exactly: 0.6*min(0/0.8,1) + 0.4*min(1_000_000/1_000_000,1) = 0.4.
		in := DealInput{
			ARR:                  1_000_000,
			GrossMargin:          0.0,
			CustomerCount:        10,
			LargestCustomerShare: 0.30,
			CashFlowTrend:        TrendNeutral,
		}
		policy := PolicyConfig{
			Weights:       Weights{FinancialHealth: 1},
			Thresholds:    DefaultThresholds(),
			EdgeCaseRules: map[EdgeCase]Decision{},
		}

		out := EvaluateDeal(in, policy)

		s.InDelta(0.400, out.Score, 1e-9)
		s.Equal(DecisionNeedsReview, out.Decision)
		s.Nil(out.OverrideReason)
		s.Contains(out.Reasoning, "Score falls between the rejection and approval thresholds.")
	})
}

// =============================================================================
// Property Tests
// =============================================================================
// Justification: the scorer promises clamping, determinism, monotonicity,
// override precedence, and totality for all type-valid inputs, including
// out-of-range values the transport layer would normally reject.

func (s *ScoringRulesSuite) TestEvaluateDeal_Properties() {
	extremes := []DealInput{
		{ARR: -1_000_000, GrossMargin: -5, CustomerCount: -10, LargestCustomerShare: -2, CashFlowTrend: TrendNegative},
		{ARR: 1e12, GrossMargin: 50, CustomerCount: 1_000_000, LargestCustomerShare: 10, CashFlowTrend: TrendPositive},
		{ARR: 0, GrossMargin: 0, CustomerCount: 0, LargestCustomerShare: 0, CashFlowTrend: TrendNeutral},
		{ARR: 99_999.999, GrossMargin: 0.1999, CustomerCount: 1, LargestCustomerShare: 0.4001, CashFlowTrend: TrendNegative},
	}

	s.Run("score stays within unit interval for extreme inputs", func() {
		for _, in := range extremes {
			out := EvaluateDeal(in, rejectAllPolicy())
			s.GreaterOrEqual(out.Score, 0.0)
			s.LessOrEqual(out.Score, 1.0)
		}
	})

	s.Run("evaluation is deterministic", func() {
		in := DealInput{
			ARR:                  420_000,
			GrossMargin:          0.55,
			CustomerCount:        17,
			LargestCustomerShare: 0.35,
			CashFlowTrend:        TrendPositive,
		}
		policy := rejectAllPolicy()
		first := EvaluateDeal(in, policy)
		for range 10 {
			s.Equal(first, EvaluateDeal(in, policy))
		}
	})

	s.Run("financial health never decreases as margin grows", func() {
		in := DealInput{ARR: 300_000, CustomerCount: 20, LargestCustomerShare: 0.25, CashFlowTrend: TrendNeutral}
		prev := -1.0
		for margin := 0.10; margin <= 0.90; margin += 0.05 {
			in.GrossMargin = margin
			got := scoreFinancialHealth(in)
			s.GreaterOrEqual(got, prev, "margin %.2f", margin)
			prev = got
		}
	})

	s.Run("reject override wins regardless of score", func() {
		// High score in every component except margin, which trips the
		// reject-mapped edge case.
		in := DealInput{
			ARR:                  5_000_000,
			GrossMargin:          0.15,
			CustomerCount:        200,
			LargestCustomerShare: 0.05,
			CashFlowTrend:        TrendPositive,
		}
		policy := noEdgeCasePolicy()
		policy.EdgeCaseRules[EdgeCaseMarginBelow20] = DecisionReject

		out := EvaluateDeal(in, policy)
		s.Equal(DecisionReject, out.Decision)
		s.Require().NotNil(out.OverrideReason)
		s.Equal(EdgeCaseMarginBelow20, *out.OverrideReason)
	})

	s.Run("decision is always one of the three values", func() {
		valid := map[Decision]bool{DecisionApprove: true, DecisionNeedsReview: true, DecisionReject: true}
		for _, in := range extremes {
			for _, policy := range []PolicyConfig{noEdgeCasePolicy(), rejectAllPolicy(), DefaultPolicyConfig()} {
				out := EvaluateDeal(in, policy)
				s.True(valid[out.Decision], "unexpected decision %q", out.Decision)
				s.NotEmpty(out.Reasoning)
			}
		}
	})
}
