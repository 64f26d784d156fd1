package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"siva/internal/evaluation"
	"siva/internal/policy"
	dErrors "siva/pkg/domain-errors"
)

// validate is shared across requests; validator.New is expensive and the
// instance is safe for concurrent use.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report wire field names in validation messages, not Go field names.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		e := verrs[0]
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s fails %s constraint", e.Field(), e.Tag()))
	}
	return dErrors.New(dErrors.CodeValidation, "invalid request")
}

// WeightsPayload is the wire shape of evaluation weights.
type WeightsPayload struct {
	FinancialHealth float64 `json:"financial_health" validate:"gte=0"`
	MarketPosition  float64 `json:"market_position" validate:"gte=0"`
	DealTerms       float64 `json:"deal_terms" validate:"gte=0"`
	RiskFactors     float64 `json:"risk_factors" validate:"gte=0"`
}

func (w *WeightsPayload) toDomain() *evaluation.Weights {
	if w == nil {
		return nil
	}
	return &evaluation.Weights{
		FinancialHealth: w.FinancialHealth,
		MarketPosition:  w.MarketPosition,
		DealTerms:       w.DealTerms,
		RiskFactors:     w.RiskFactors,
	}
}

// ThresholdsPayload is the wire shape of decision thresholds.
type ThresholdsPayload struct {
	ApproveMinScore float64 `json:"approve_min_score" validate:"gte=0,lte=1"`
	RejectMaxScore  float64 `json:"reject_max_score" validate:"gte=0,lte=1"`
}

func (t *ThresholdsPayload) toDomain() *evaluation.Thresholds {
	if t == nil {
		return nil
	}
	return &evaluation.Thresholds{
		ApproveMin: t.ApproveMinScore,
		RejectMax:  t.RejectMaxScore,
	}
}

func parseRules(raw map[string]string) (map[evaluation.EdgeCase]evaluation.Decision, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	rules := make(map[evaluation.EdgeCase]evaluation.Decision, len(raw))
	for rawCase, rawDecision := range raw {
		ec, err := evaluation.ParseEdgeCase(rawCase)
		if err != nil {
			return nil, err
		}
		decision, err := evaluation.ParseDecision(rawDecision)
		if err != nil {
			return nil, err
		}
		rules[ec] = decision
	}
	return rules, nil
}

// CreatePolicyRequest is the wire shape of POST /policies. Activate
// promotes the policy immediately instead of leaving it in draft.
type CreatePolicyRequest struct {
	Vertical      string             `json:"vertical" validate:"required,max=64"`
	SubVertical   string             `json:"sub_vertical" validate:"omitempty,max=64"`
	Name          string             `json:"name" validate:"required,max=128"`
	Weights       *WeightsPayload    `json:"weights"`
	Thresholds    *ThresholdsPayload `json:"thresholds"`
	EdgeCaseRules map[string]string  `json:"edge_case_rules" validate:"omitempty,max=16"`
	Activate      bool               `json:"activate"`
}

func (r *CreatePolicyRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeValidation, "request is required")
	}
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	return nil
}

func (r *CreatePolicyRequest) Normalize() {
	if r == nil {
		return
	}
	r.Vertical = strings.ToLower(strings.TrimSpace(r.Vertical))
	r.SubVertical = strings.ToLower(strings.TrimSpace(r.SubVertical))
	r.Name = strings.TrimSpace(r.Name)
}

// Params converts the payload into service parameters, parsing the edge
// case rule identifiers.
func (r *CreatePolicyRequest) Params() (policy.CreateParams, error) {
	rules, err := parseRules(r.EdgeCaseRules)
	if err != nil {
		return policy.CreateParams{}, err
	}
	return policy.CreateParams{
		Vertical:      r.Vertical,
		SubVertical:   r.SubVertical,
		Name:          r.Name,
		Weights:       r.Weights.toDomain(),
		Thresholds:    r.Thresholds.toDomain(),
		EdgeCaseRules: rules,
		Activate:      r.Activate,
	}, nil
}

// UpdatePolicyRequest is the wire shape of PUT /policies/{policyID}.
// Vertical and sub-vertical are immutable routing keys and not accepted.
type UpdatePolicyRequest struct {
	Name          string             `json:"name" validate:"required,max=128"`
	Weights       *WeightsPayload    `json:"weights"`
	Thresholds    *ThresholdsPayload `json:"thresholds"`
	EdgeCaseRules map[string]string  `json:"edge_case_rules" validate:"omitempty,max=16"`
}

func (r *UpdatePolicyRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeValidation, "request is required")
	}
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	return nil
}

func (r *UpdatePolicyRequest) Normalize() {
	if r == nil {
		return
	}
	r.Name = strings.TrimSpace(r.Name)
}

func (r *UpdatePolicyRequest) Params() (policy.UpdateParams, error) {
	rules, err := parseRules(r.EdgeCaseRules)
	if err != nil {
		return policy.UpdateParams{}, err
	}
	return policy.UpdateParams{
		Name:          r.Name,
		Weights:       r.Weights.toDomain(),
		Thresholds:    r.Thresholds.toDomain(),
		EdgeCaseRules: rules,
	}, nil
}
