package handler

import (
	"fmt"
	"strings"

	"siva/internal/evaluation"
	dErrors "siva/pkg/domain-errors"
	"siva/pkg/platform/validation"
)

// EvaluateDealRequest is the wire shape of POST /api/os/siva/evaluate-deal.
// Fields are snake_case except subVertical, which stays camelCase for
// compatibility with existing API clients.
type EvaluateDealRequest struct {
	DealID      string    `json:"deal_id"`
	Vertical    string    `json:"vertical"`
	SubVertical string    `json:"subVertical"`
	Region      string    `json:"region"`
	DealData    *DealData `json:"deal_data"`

	// trend is the parsed cash flow trend, filled by Validate.
	trend evaluation.CashFlowTrend
}

// DealData carries the five financial inputs. Pointer fields distinguish
// absent from zero: a missing field is a validation error, a zero is a
// legitimate value.
type DealData struct {
	ARR                  *float64 `json:"arr"`
	GrossMargin          *float64 `json:"gross_margin"`
	CustomerCount        *int     `json:"customer_count"`
	LargestCustomerShare *float64 `json:"largest_customer_revenue_share"`
	CashFlowTrend        *string  `json:"cash_flow_trend"`
}

// Validate checks presence, types, and size limits. Gross margin and
// customer share are expected in [0,1] but only presence-checked; the
// scorer clamps, so out-of-range values degrade scores rather than fail.
func (r *EvaluateDealRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeValidation, "request is required")
	}
	if strings.TrimSpace(r.DealID) == "" {
		return dErrors.New(dErrors.CodeValidation, "deal_id is required")
	}
	if len(r.DealID) > validation.MaxDealIDLength {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("deal_id exceeds max length of %d", validation.MaxDealIDLength))
	}
	if strings.TrimSpace(r.Vertical) == "" {
		return dErrors.New(dErrors.CodeValidation, "vertical is required")
	}
	if len(r.Vertical) > validation.MaxVerticalLength {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("vertical exceeds max length of %d", validation.MaxVerticalLength))
	}
	if len(r.SubVertical) > validation.MaxSubVerticalLength {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("subVertical exceeds max length of %d", validation.MaxSubVerticalLength))
	}
	if len(r.Region) > validation.MaxRegionLength {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("region exceeds max length of %d", validation.MaxRegionLength))
	}

	if r.DealData == nil {
		return dErrors.New(dErrors.CodeValidation, "deal_data is required")
	}
	if r.DealData.ARR == nil {
		return dErrors.New(dErrors.CodeValidation, "deal_data.arr is required")
	}
	if *r.DealData.ARR < 0 {
		return dErrors.New(dErrors.CodeValidation, "deal_data.arr must be non-negative")
	}
	if *r.DealData.ARR > validation.MaxARR {
		return dErrors.New(dErrors.CodeValidation, "deal_data.arr exceeds supported range")
	}
	if r.DealData.GrossMargin == nil {
		return dErrors.New(dErrors.CodeValidation, "deal_data.gross_margin is required")
	}
	if r.DealData.CustomerCount == nil {
		return dErrors.New(dErrors.CodeValidation, "deal_data.customer_count is required")
	}
	if *r.DealData.CustomerCount < 0 {
		return dErrors.New(dErrors.CodeValidation, "deal_data.customer_count must be non-negative")
	}
	if *r.DealData.CustomerCount > validation.MaxCustomerCount {
		return dErrors.New(dErrors.CodeValidation, "deal_data.customer_count exceeds supported range")
	}
	if r.DealData.LargestCustomerShare == nil {
		return dErrors.New(dErrors.CodeValidation, "deal_data.largest_customer_revenue_share is required")
	}
	if r.DealData.CashFlowTrend == nil {
		return dErrors.New(dErrors.CodeValidation, "deal_data.cash_flow_trend is required")
	}

	trend, err := evaluation.ParseCashFlowTrend(*r.DealData.CashFlowTrend)
	if err != nil {
		return err
	}
	r.trend = trend
	return nil
}

// Normalize trims whitespace and lowercases routing keys. Policy lookups
// are case-insensitive by construction: everything is lowered on the way in.
func (r *EvaluateDealRequest) Normalize() {
	if r == nil {
		return
	}
	r.DealID = strings.TrimSpace(r.DealID)
	r.Vertical = strings.ToLower(strings.TrimSpace(r.Vertical))
	r.SubVertical = strings.ToLower(strings.TrimSpace(r.SubVertical))
	r.Region = strings.ToLower(strings.TrimSpace(r.Region))
}

// Input converts the validated payload into the service's domain input.
// Callers must run Validate first; the parsed trend lives there.
func (r *EvaluateDealRequest) Input() evaluation.DealInput {
	return evaluation.DealInput{
		ARR:                  *r.DealData.ARR,
		GrossMargin:          *r.DealData.GrossMargin,
		CustomerCount:        *r.DealData.CustomerCount,
		LargestCustomerShare: *r.DealData.LargestCustomerShare,
		CashFlowTrend:        r.trend,
	}
}
