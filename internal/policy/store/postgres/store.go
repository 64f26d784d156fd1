// Package postgres persists policies in the policies table.
//
// Schema:
//
//	CREATE TABLE policies (
//	    id              UUID PRIMARY KEY,
//	    vertical        TEXT        NOT NULL,
//	    sub_vertical    TEXT        NOT NULL DEFAULT '',
//	    name            TEXT        NOT NULL,
//	    version         INT         NOT NULL,
//	    status          TEXT        NOT NULL,
//	    weights         JSONB,
//	    thresholds      JSONB,
//	    edge_case_rules JSONB,
//	    created_at      TIMESTAMPTZ NOT NULL,
//	    updated_at      TIMESTAMPTZ NOT NULL
//	);
//	CREATE UNIQUE INDEX policies_single_active_idx
//	    ON policies (vertical, sub_vertical) WHERE status = 'active';
//	CREATE INDEX policies_pair_idx ON policies (vertical, sub_vertical);
//
// The partial unique index is the hard backstop for the single-active
// invariant: two concurrent activations for one pair cannot both commit.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"siva/internal/evaluation"
	"siva/internal/policy"
	id "siva/pkg/domain"
	"siva/pkg/platform/sentinel"
	txcontext "siva/pkg/platform/tx"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// execer joins an enclosing transaction when one is carried in the context.
func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const selectColumns = `id, vertical, sub_vertical, name, version, status, weights, thresholds, edge_case_rules, created_at, updated_at`

func (s *Store) Create(ctx context.Context, p *policy.Policy) error {
	query := `
		INSERT INTO policies (` + selectColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	weights, thresholds, rules, err := marshalConfig(p)
	if err != nil {
		return err
	}
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(p.ID),
		p.Vertical,
		p.SubVertical,
		p.Name,
		p.Version,
		string(p.Status),
		weights,
		thresholds,
		rules,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert policy: %w", err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, p *policy.Policy) error {
	return updatePolicy(ctx, s.execer(ctx), p)
}

func (s *Store) FindByID(ctx context.Context, policyID id.PolicyID) (*policy.Policy, error) {
	query := `SELECT ` + selectColumns + ` FROM policies WHERE id = $1`
	return scanPolicy(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(policyID)))
}

func (s *Store) FindActive(ctx context.Context, vertical, subVertical string) (*policy.Policy, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM policies
		WHERE vertical = $1 AND sub_vertical = $2 AND status = 'active'
	`
	return scanPolicy(s.execer(ctx).QueryRowContext(ctx, query, vertical, subVertical))
}

func (s *Store) List(ctx context.Context, filter policy.ListFilter) ([]*policy.Policy, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM policies
		WHERE ($1 = '' OR vertical = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY vertical, sub_vertical, version DESC, created_at DESC
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, filter.Vertical, string(filter.Status))
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	defer rows.Close()

	var policies []*policy.Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate policies: %w", err)
	}
	return policies, nil
}

func (s *Store) SwapActive(ctx context.Context, activated *policy.Policy, archived *policy.Policy) error {
	if tx, ok := txcontext.From(ctx); ok {
		return swapActive(ctx, tx, activated, archived)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin activation: %w", err)
	}
	if err := swapActive(ctx, tx, activated, archived); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit activation: %w", err)
	}
	return nil
}

// swapActive retires the old policy before promoting the new one so the
// single-active index never sees two live rows for the pair.
func swapActive(ctx context.Context, ex dbExecutor, activated, archived *policy.Policy) error {
	if archived != nil {
		if err := updatePolicy(ctx, ex, archived); err != nil {
			return err
		}
	}
	return updatePolicy(ctx, ex, activated)
}

func updatePolicy(ctx context.Context, ex dbExecutor, p *policy.Policy) error {
	query := `
		UPDATE policies
		SET name = $2, version = $3, status = $4,
		    weights = $5, thresholds = $6, edge_case_rules = $7,
		    updated_at = $8
		WHERE id = $1
	`

	weights, thresholds, rules, err := marshalConfig(p)
	if err != nil {
		return err
	}
	result, err := ex.ExecContext(ctx, query,
		uuid.UUID(p.ID),
		p.Name,
		p.Version,
		string(p.Status),
		weights,
		thresholds,
		rules,
		p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("update policy: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update policy: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row rowScanner) (*policy.Policy, error) {
	var (
		p             policy.Policy
		policyID      uuid.UUID
		status        string
		weightsRaw    []byte
		thresholdsRaw []byte
		rulesRaw      []byte
	)
	err := row.Scan(
		&policyID,
		&p.Vertical,
		&p.SubVertical,
		&p.Name,
		&p.Version,
		&status,
		&weightsRaw,
		&thresholdsRaw,
		&rulesRaw,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan policy: %w", err)
	}

	p.ID = id.PolicyID(policyID)
	p.Status = policy.Status(status)
	if len(weightsRaw) > 0 {
		var w evaluation.Weights
		if err := json.Unmarshal(weightsRaw, &w); err != nil {
			return nil, fmt.Errorf("decode policy weights: %w", err)
		}
		p.Weights = &w
	}
	if len(thresholdsRaw) > 0 {
		var t evaluation.Thresholds
		if err := json.Unmarshal(thresholdsRaw, &t); err != nil {
			return nil, fmt.Errorf("decode policy thresholds: %w", err)
		}
		p.Thresholds = &t
	}
	if len(rulesRaw) > 0 {
		rules := make(map[evaluation.EdgeCase]evaluation.Decision)
		if err := json.Unmarshal(rulesRaw, &rules); err != nil {
			return nil, fmt.Errorf("decode policy edge case rules: %w", err)
		}
		p.EdgeCaseRules = rules
	}
	return &p, nil
}

func marshalConfig(p *policy.Policy) (weights, thresholds, rules []byte, err error) {
	if p.Weights != nil {
		weights, err = json.Marshal(p.Weights)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("encode policy weights: %w", err)
		}
	}
	if p.Thresholds != nil {
		thresholds, err = json.Marshal(p.Thresholds)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("encode policy thresholds: %w", err)
		}
	}
	if len(p.EdgeCaseRules) > 0 {
		rules, err = json.Marshal(p.EdgeCaseRules)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("encode policy edge case rules: %w", err)
		}
	}
	return weights, thresholds, rules, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
