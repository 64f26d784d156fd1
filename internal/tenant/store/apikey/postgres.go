package apikey

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"siva/internal/tenant/models"
	id "siva/pkg/domain"
	"siva/pkg/platform/sentinel"
	txcontext "siva/pkg/platform/tx"
)

// PostgresStore persists API keys in the api_keys table.
//
// Schema:
//
//	CREATE TABLE api_keys (
//	    id           UUID PRIMARY KEY,
//	    tenant_id    UUID        NOT NULL REFERENCES tenants (id),
//	    label        TEXT        NOT NULL,
//	    secret_hash  TEXT        NOT NULL,
//	    status       TEXT        NOT NULL,
//	    last_used_at TIMESTAMPTZ,
//	    created_at   TIMESTAMPTZ NOT NULL,
//	    updated_at   TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX api_keys_tenant_idx ON api_keys (tenant_id);
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

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const selectColumns = `id, tenant_id, label, secret_hash, status, last_used_at, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, key *models.APIKey) error {
	query := `
		INSERT INTO api_keys (` + selectColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(key.ID),
		uuid.UUID(key.TenantID),
		key.Label,
		key.SecretHash,
		string(key.Status),
		key.LastUsedAt,
		key.CreatedAt,
		key.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, keyID id.APIKeyID) (*models.APIKey, error) {
	query := `SELECT ` + selectColumns + ` FROM api_keys WHERE id = $1`
	return scanKey(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(keyID)))
}

func (s *PostgresStore) FindByTenantAndID(ctx context.Context, tenantID id.TenantID, keyID id.APIKeyID) (*models.APIKey, error) {
	query := `SELECT ` + selectColumns + ` FROM api_keys WHERE id = $1 AND tenant_id = $2`
	return scanKey(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(keyID), uuid.UUID(tenantID)))
}

func (s *PostgresStore) ListByTenant(ctx context.Context, tenantID id.TenantID) ([]*models.APIKey, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM api_keys
		WHERE tenant_id = $1
		ORDER BY created_at DESC, id
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(tenantID))
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		key, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate api keys: %w", err)
	}
	return keys, nil
}

func (s *PostgresStore) CountByTenant(ctx context.Context, tenantID id.TenantID) (int, error) {
	var count int
	query := `SELECT count(*) FROM api_keys WHERE tenant_id = $1`
	if err := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(tenantID)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count api keys: %w", err)
	}
	return count, nil
}

// Execute loads the key FOR UPDATE scoped to the tenant, runs validate then
// mutate, and writes the result back inside one transaction.
func (s *PostgresStore) Execute(
	ctx context.Context,
	tenantID id.TenantID,
	keyID id.APIKeyID,
	validate func(*models.APIKey) error,
	mutate func(*models.APIKey),
) (*models.APIKey, error) {
	if tx, ok := txcontext.From(ctx); ok {
		return executeKey(ctx, tx, tenantID, keyID, validate, mutate)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin key transition: %w", err)
	}
	key, err := executeKey(ctx, tx, tenantID, keyID, validate, mutate)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit key transition: %w", err)
	}
	return key, nil
}

func executeKey(
	ctx context.Context,
	tx *sql.Tx,
	tenantID id.TenantID,
	keyID id.APIKeyID,
	validate func(*models.APIKey) error,
	mutate func(*models.APIKey),
) (*models.APIKey, error) {
	query := `SELECT ` + selectColumns + ` FROM api_keys WHERE id = $1 AND tenant_id = $2 FOR UPDATE`
	key, err := scanKey(tx.QueryRowContext(ctx, query, uuid.UUID(keyID), uuid.UUID(tenantID)))
	if err != nil {
		return nil, err
	}

	if validate != nil {
		if err := validate(key); err != nil {
			return nil, err
		}
	}
	if mutate != nil {
		mutate(key)
	}

	update := `
		UPDATE api_keys
		SET label = $2, status = $3, last_used_at = $4, updated_at = $5
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, update,
		uuid.UUID(key.ID),
		key.Label,
		string(key.Status),
		key.LastUsedAt,
		key.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("update api key: %w", err)
	}
	return key, nil
}

// TouchLastUsed records when the key last authenticated a request without
// rewriting the rest of the row.
func (s *PostgresStore) TouchLastUsed(ctx context.Context, keyID id.APIKeyID, when time.Time) error {
	query := `UPDATE api_keys SET last_used_at = $2 WHERE id = $1`
	result, err := s.execer(ctx).ExecContext(ctx, query, uuid.UUID(keyID), when)
	if err != nil {
		return fmt.Errorf("touch api key: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("touch api key: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanKey(row rowScanner) (*models.APIKey, error) {
	var (
		key      models.APIKey
		keyID    uuid.UUID
		tenantID uuid.UUID
		status   string
		lastUsed sql.NullTime
	)
	err := row.Scan(
		&keyID,
		&tenantID,
		&key.Label,
		&key.SecretHash,
		&status,
		&lastUsed,
		&key.CreatedAt,
		&key.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan api key: %w", err)
	}

	key.ID = id.APIKeyID(keyID)
	key.TenantID = id.TenantID(tenantID)
	key.Status = models.KeyStatus(status)
	if lastUsed.Valid {
		t := lastUsed.Time
		key.LastUsedAt = &t
	}
	return &key, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
