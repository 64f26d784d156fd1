// Package postgres persists the audit trail in the audit_events table.
//
// Schema:
//
//	CREATE TABLE audit_events (
//	    id          UUID PRIMARY KEY,
//	    category    TEXT        NOT NULL,
//	    timestamp   TIMESTAMPTZ NOT NULL,
//	    tenant_id   UUID,
//	    subject     TEXT        NOT NULL DEFAULT '',
//	    action      TEXT        NOT NULL,
//	    vertical    TEXT        NOT NULL DEFAULT '',
//	    sub_vertical TEXT       NOT NULL DEFAULT '',
//	    decision    TEXT        NOT NULL DEFAULT '',
//	    reason      TEXT        NOT NULL DEFAULT '',
//	    request_id  TEXT        NOT NULL DEFAULT '',
//	    actor_id    TEXT        NOT NULL DEFAULT '',
//	    client_ip   TEXT        NOT NULL DEFAULT '',
//	    client_device TEXT      NOT NULL DEFAULT '',
//	    detail      TEXT        NOT NULL DEFAULT ''
//	);
//	CREATE INDEX audit_events_timestamp_idx ON audit_events (timestamp DESC);
//	CREATE INDEX audit_events_tenant_idx ON audit_events (tenant_id, timestamp DESC);
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"siva/internal/audit"
	id "siva/pkg/domain"
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
}

// execer joins an enclosing transaction when one is carried in the context,
// so audit writes commit or roll back with the operation they describe.
func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	query := `
		INSERT INTO audit_events (
			id, category, timestamp, tenant_id, subject, action,
			vertical, sub_vertical, decision, reason,
			request_id, actor_id, client_ip, client_device, detail
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	var tenantID *uuid.UUID
	if !event.TenantID.IsNil() {
		tid := uuid.UUID(event.TenantID)
		tenantID = &tid
	}

	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.New(),
		string(event.Category),
		event.Timestamp,
		tenantID,
		event.Subject,
		event.Action,
		event.Vertical,
		event.SubVertical,
		event.Decision,
		event.Reason,
		event.RequestID,
		event.ActorID,
		event.ClientIP,
		event.ClientDevice,
		event.Detail,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

const selectColumns = `category, timestamp, tenant_id, subject, action,
	   vertical, sub_vertical, decision, reason,
	   request_id, actor_id, client_ip, client_device, detail`

func (s *Store) List(ctx context.Context, filter audit.ListFilter) ([]audit.Event, error) {
	query := `SELECT ` + selectColumns + ` FROM audit_events`

	var (
		args       []any
		conditions []string
	)
	if !filter.TenantID.IsNil() {
		args = append(args, uuid.UUID(filter.TenantID))
		conditions = append(conditions, fmt.Sprintf("tenant_id = $%d", len(args)))
	}
	if filter.Action != "" {
		args = append(args, filter.Action)
		conditions = append(conditions, fmt.Sprintf("action = $%d", len(args)))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	args = append(args, filter.Limit)
	query += fmt.Sprintf(" ORDER BY timestamp DESC LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return s.scanEvents(rows)
}

func (s *Store) scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event

	for rows.Next() {
		var (
			category         string
			event            audit.Event
			tenantIDNullable *uuid.UUID
		)

		err := rows.Scan(
			&category,
			&event.Timestamp,
			&tenantIDNullable,
			&event.Subject,
			&event.Action,
			&event.Vertical,
			&event.SubVertical,
			&event.Decision,
			&event.Reason,
			&event.RequestID,
			&event.ActorID,
			&event.ClientIP,
			&event.ClientDevice,
			&event.Detail,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}

		event.Category = audit.EventCategory(category)
		if tenantIDNullable != nil {
			event.TenantID = id.TenantID(*tenantIDNullable)
		}

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}

	return events, nil
}
