package policy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"siva/internal/audit"
	"siva/internal/evaluation"
	id "siva/pkg/domain"
	dErrors "siva/pkg/domain-errors"
	"siva/pkg/platform/sentinel"
	"siva/pkg/requestcontext"
)

// SeedFile is the on-disk shape of a policy seed. Seeding gives a fresh
// deployment a working policy per vertical without any admin API calls.
type SeedFile struct {
	Policies []SeedPolicy `yaml:"policies"`
}

// SeedPolicy describes one policy to bootstrap. Absent weights or
// thresholds mean the standard defaults, same as the admin API.
type SeedPolicy struct {
	Vertical      string            `yaml:"vertical"`
	SubVertical   string            `yaml:"sub_vertical"`
	Name          string            `yaml:"name"`
	Weights       *SeedWeights      `yaml:"weights"`
	Thresholds    *SeedThresholds   `yaml:"thresholds"`
	EdgeCaseRules map[string]string `yaml:"edge_case_rules"`
}

type SeedWeights struct {
	FinancialHealth float64 `yaml:"financial_health"`
	MarketPosition  float64 `yaml:"market_position"`
	DealTerms       float64 `yaml:"deal_terms"`
	RiskFactors     float64 `yaml:"risk_factors"`
}

type SeedThresholds struct {
	ApproveMinScore float64 `yaml:"approve_min_score"`
	RejectMaxScore  float64 `yaml:"reject_max_score"`
}

// LoadSeedFile reads and parses a policy seed file.
func LoadSeedFile(path string) (*SeedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var file SeedFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &file, nil
}

func (sp SeedPolicy) config() (*evaluation.Weights, *evaluation.Thresholds, map[evaluation.EdgeCase]evaluation.Decision, error) {
	var weights *evaluation.Weights
	if sp.Weights != nil {
		weights = &evaluation.Weights{
			FinancialHealth: sp.Weights.FinancialHealth,
			MarketPosition:  sp.Weights.MarketPosition,
			DealTerms:       sp.Weights.DealTerms,
			RiskFactors:     sp.Weights.RiskFactors,
		}
	}
	var thresholds *evaluation.Thresholds
	if sp.Thresholds != nil {
		thresholds = &evaluation.Thresholds{
			ApproveMin: sp.Thresholds.ApproveMinScore,
			RejectMax:  sp.Thresholds.RejectMaxScore,
		}
	}
	var rules map[evaluation.EdgeCase]evaluation.Decision
	if len(sp.EdgeCaseRules) > 0 {
		rules = make(map[evaluation.EdgeCase]evaluation.Decision, len(sp.EdgeCaseRules))
		for rawCase, rawDecision := range sp.EdgeCaseRules {
			ec, err := evaluation.ParseEdgeCase(rawCase)
			if err != nil {
				return nil, nil, nil, err
			}
			decision, err := evaluation.ParseDecision(rawDecision)
			if err != nil {
				return nil, nil, nil, err
			}
			rules[ec] = decision
		}
	}
	return weights, thresholds, rules, nil
}

// Seed activates one policy per seeded (vertical, sub_vertical) pair that
// has no active policy yet. Pairs that already have one are skipped, so
// seeding is idempotent and never clobbers operator changes. Returns the
// number of policies activated.
func (s *Service) Seed(ctx context.Context, file *SeedFile) (int, error) {
	if file == nil {
		return 0, nil
	}

	seeded := 0
	now := requestcontext.Now(ctx)
	for _, sp := range file.Policies {
		vertical := strings.ToLower(strings.TrimSpace(sp.Vertical))
		subVertical := strings.ToLower(strings.TrimSpace(sp.SubVertical))

		_, err := s.store.FindActive(ctx, vertical, subVertical)
		if err == nil {
			continue
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return seeded, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check active policy")
		}

		weights, thresholds, rules, err := sp.config()
		if err != nil {
			return seeded, err
		}
		p, err := NewPolicy(id.NewPolicyID(), vertical, subVertical, strings.TrimSpace(sp.Name), weights, thresholds, rules, now)
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
				return seeded, dErrors.New(dErrors.CodeValidation, err.Error())
			}
			return seeded, err
		}
		if err := p.Activate(now); err != nil {
			return seeded, err
		}

		if err := s.store.Create(ctx, p); err != nil {
			// Another instance seeded this pair first.
			if errors.Is(err, sentinel.ErrConflict) {
				continue
			}
			return seeded, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store seeded policy")
		}

		s.logAudit(ctx, string(audit.EventPolicySeeded),
			"policy_id", p.ID.String(),
			"vertical", p.Vertical,
			"sub_vertical", p.SubVertical,
		)
		s.metrics.IncrementWrite("seed")
		seeded++
	}
	return seeded, nil
}
