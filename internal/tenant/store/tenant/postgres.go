package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"siva/internal/tenant/models"
	id "siva/pkg/domain"
	"siva/pkg/platform/sentinel"
	txcontext "siva/pkg/platform/tx"
)

// PostgresStore persists tenants in the tenants table.
//
// Schema:
//
//	CREATE TABLE tenants (
//	    id         UUID PRIMARY KEY,
//	    name       TEXT        NOT NULL,
//	    plan       TEXT        NOT NULL,
//	    status     TEXT        NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL
//	);
//	CREATE UNIQUE INDEX tenants_name_lower_idx ON tenants (lower(name));
//
// The functional unique index is the hard backstop for case-insensitive
// name uniqueness: two concurrent creates for one name cannot both commit.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// execer joins an enclosing transaction when one is carried in the context.
func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const selectColumns = `id, name, plan, status, created_at, updated_at`

func (s *PostgresStore) CreateIfNameAvailable(ctx context.Context, tenant *models.Tenant) error {
	query := `
		INSERT INTO tenants (` + selectColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(tenant.ID),
		tenant.Name,
		string(tenant.Plan),
		string(tenant.Status),
		tenant.CreatedAt,
		tenant.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert tenant: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	query := `SELECT ` + selectColumns + ` FROM tenants WHERE id = $1`
	return scanTenant(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(tenantID)))
}

func (s *PostgresStore) FindByName(ctx context.Context, name string) (*models.Tenant, error) {
	query := `SELECT ` + selectColumns + ` FROM tenants WHERE lower(name) = lower($1)`
	return scanTenant(s.execer(ctx).QueryRowContext(ctx, query, name))
}

// Execute loads the tenant FOR UPDATE, runs validate then mutate, and writes
// the result back, all inside one transaction. Concurrent transitions for the
// same tenant serialize on the row lock.
func (s *PostgresStore) Execute(
	ctx context.Context,
	tenantID id.TenantID,
	validate func(*models.Tenant) error,
	mutate func(*models.Tenant),
) (*models.Tenant, error) {
	if tx, ok := txcontext.From(ctx); ok {
		return executeTenant(ctx, tx, tenantID, validate, mutate)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tenant transition: %w", err)
	}
	tenant, err := executeTenant(ctx, tx, tenantID, validate, mutate)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tenant transition: %w", err)
	}
	return tenant, nil
}

func executeTenant(
	ctx context.Context,
	tx *sql.Tx,
	tenantID id.TenantID,
	validate func(*models.Tenant) error,
	mutate func(*models.Tenant),
) (*models.Tenant, error) {
	query := `SELECT ` + selectColumns + ` FROM tenants WHERE id = $1 FOR UPDATE`
	tenant, err := scanTenant(tx.QueryRowContext(ctx, query, uuid.UUID(tenantID)))
	if err != nil {
		return nil, err
	}

	if validate != nil {
		if err := validate(tenant); err != nil {
			return nil, err
		}
	}
	if mutate != nil {
		mutate(tenant)
	}

	update := `
		UPDATE tenants
		SET name = $2, plan = $3, status = $4, updated_at = $5
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, update,
		uuid.UUID(tenant.ID),
		tenant.Name,
		string(tenant.Plan),
		string(tenant.Status),
		tenant.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("update tenant: %w", err)
	}
	return tenant, nil
}

// Count reports the number of stored tenants.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.execer(ctx).QueryRowContext(ctx, `SELECT count(*) FROM tenants`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count tenants: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTenant(row rowScanner) (*models.Tenant, error) {
	var (
		tenant   models.Tenant
		tenantID uuid.UUID
		plan     string
		status   string
	)
	err := row.Scan(
		&tenantID,
		&tenant.Name,
		&plan,
		&status,
		&tenant.CreatedAt,
		&tenant.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan tenant: %w", err)
	}

	tenant.ID = id.TenantID(tenantID)
	tenant.Plan = models.Plan(plan)
	tenant.Status = models.TenantStatus(status)
	return &tenant, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
