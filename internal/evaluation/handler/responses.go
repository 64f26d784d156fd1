package handler

import (
	"siva/internal/evaluation"
)

// Disclaimer text returned with every evaluation. The risk disclaimer is
// only attached when at least one edge case triggered.
const (
	disclaimerGeneral = "This evaluation is produced by deterministic scoring rules configured by your organization and is not financial advice."
	disclaimerRisk    = "One or more risk indicators were detected for this deal. Review the flagged edge cases before proceeding."
)

// EvaluateDealResponse is the wire shape returned by evaluate-deal.
type EvaluateDealResponse struct {
	Decision           string            `json:"decision"`
	Score              float64           `json:"score"`
	Reasoning          string            `json:"reasoning"`
	EdgeCasesTriggered []string          `json:"edge_cases_triggered"`
	EvaluationDetails  EvaluationDetails `json:"evaluation_details"`
	Disclaimers        Disclaimers       `json:"disclaimers"`
}

// EvaluationDetails exposes how the decision was reached: the policy and
// parameters used, the component scores, and an echo of the scored input.
type EvaluationDetails struct {
	EvaluationID   string         `json:"evaluation_id"`
	OverrideReason *string        `json:"override_reason"`
	ThresholdsUsed ThresholdsUsed `json:"thresholds_used"`
	WeightsUsed    WeightsUsed    `json:"weights_used"`
	SubScores      SubScores      `json:"sub_scores"`
	Policy         PolicyDetails  `json:"policy"`
	Input          InputEcho      `json:"input"`
}

type ThresholdsUsed struct {
	ApproveMinScore float64 `json:"approve_min_score"`
	RejectMaxScore  float64 `json:"reject_max_score"`
}

type WeightsUsed struct {
	FinancialHealth float64 `json:"financial_health"`
	MarketPosition  float64 `json:"market_position"`
	DealTerms       float64 `json:"deal_terms"`
	RiskFactors     float64 `json:"risk_factors"`
}

type SubScores struct {
	FinancialHealth float64 `json:"financial_health"`
	MarketPosition  float64 `json:"market_position"`
	DealTerms       float64 `json:"deal_terms"`
	RiskFactors     float64 `json:"risk_factors"`
}

// PolicyDetails identifies the policy version that produced the decision,
// so results stay explainable after the policy is edited.
type PolicyDetails struct {
	PolicyID    string `json:"policy_id"`
	Name        string `json:"name"`
	Version     int    `json:"version"`
	Vertical    string `json:"vertical"`
	SubVertical string `json:"sub_vertical,omitempty"`
}

// InputEcho repeats the scored input back to the caller.
type InputEcho struct {
	DealID               string  `json:"deal_id"`
	Vertical             string  `json:"vertical"`
	SubVertical          string  `json:"sub_vertical,omitempty"`
	Region               string  `json:"region,omitempty"`
	ARR                  float64 `json:"arr"`
	GrossMargin          float64 `json:"gross_margin"`
	CustomerCount        int     `json:"customer_count"`
	LargestCustomerShare float64 `json:"largest_customer_revenue_share"`
	CashFlowTrend        string  `json:"cash_flow_trend"`
}

type Disclaimers struct {
	General string  `json:"general"`
	Risk    *string `json:"risk"`
}

// FromResult builds the wire response from the service result and the
// normalized request it answered.
func FromResult(req *EvaluateDealRequest, result *evaluation.EvaluateResult) EvaluateDealResponse {
	out := result.Outcome

	triggered := make([]string, 0, len(out.EdgeCasesTriggered))
	for _, ec := range out.EdgeCasesTriggered {
		triggered = append(triggered, string(ec))
	}

	var overrideReason *string
	if out.OverrideReason != nil {
		reason := string(*out.OverrideReason)
		overrideReason = &reason
	}

	var risk *string
	if len(out.EdgeCasesTriggered) > 0 {
		text := disclaimerRisk
		risk = &text
	}

	config := result.Policy.Config
	input := req.Input()

	return EvaluateDealResponse{
		Decision:           string(out.Decision),
		Score:              out.Score,
		Reasoning:          out.Reasoning,
		EdgeCasesTriggered: triggered,
		EvaluationDetails: EvaluationDetails{
			EvaluationID:   result.EvaluationID.String(),
			OverrideReason: overrideReason,
			ThresholdsUsed: ThresholdsUsed{
				ApproveMinScore: config.Thresholds.ApproveMin,
				RejectMaxScore:  config.Thresholds.RejectMax,
			},
			WeightsUsed: WeightsUsed{
				FinancialHealth: config.Weights.FinancialHealth,
				MarketPosition:  config.Weights.MarketPosition,
				DealTerms:       config.Weights.DealTerms,
				RiskFactors:     config.Weights.RiskFactors,
			},
			SubScores: SubScores{
				FinancialHealth: out.SubScores.FinancialHealth,
				MarketPosition:  out.SubScores.MarketPosition,
				DealTerms:       out.SubScores.DealTerms,
				RiskFactors:     out.SubScores.RiskFactors,
			},
			Policy: PolicyDetails{
				PolicyID:    result.Policy.PolicyID.String(),
				Name:        result.Policy.Name,
				Version:     result.Policy.Version,
				Vertical:    result.Policy.Vertical,
				SubVertical: result.Policy.SubVertical,
			},
			Input: InputEcho{
				DealID:               req.DealID,
				Vertical:             req.Vertical,
				SubVertical:          req.SubVertical,
				Region:               req.Region,
				ARR:                  input.ARR,
				GrossMargin:          input.GrossMargin,
				CustomerCount:        input.CustomerCount,
				LargestCustomerShare: input.LargestCustomerShare,
				CashFlowTrend:        string(input.CashFlowTrend),
			},
		},
		Disclaimers: Disclaimers{
			General: disclaimerGeneral,
			Risk:    risk,
		},
	}
}
