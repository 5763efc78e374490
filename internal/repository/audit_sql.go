package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"catalogsync-api/internal/model"
)

// SQLAuditRepository stores the audit trail in the catalog database.
type SQLAuditRepository struct {
	db      *sql.DB
	dialect dialect
}

const insertAuditEvent = `INSERT INTO audit_events (action, subject_type, target, payload, succeeded, occurred_at)
	VALUES (?, ?, ?, ?, ?, ?)`

func auditOccurredAt(ev *model.AuditEvent) time.Time {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	return ev.OccurredAt.UTC()
}

// InsertAuditEvent stores one event.
func (r *SQLAuditRepository) InsertAuditEvent(ctx context.Context, ev *model.AuditEvent) error {
	_, err := r.db.ExecContext(ctx, r.dialect.rebind(insertAuditEvent),
		string(ev.Action), string(ev.SubjectType), nullable(ev.Target), ev.Payload, ev.Succeeded, auditOccurredAt(ev))
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// InsertAuditEvents stores events in a single transaction.
func (r *SQLAuditRepository) InsertAuditEvents(ctx context.Context, events []model.AuditEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, r.dialect.rebind(insertAuditEvent))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := range events {
		ev := &events[i]
		_, err := stmt.ExecContext(ctx,
			string(ev.Action), string(ev.SubjectType), nullable(ev.Target), ev.Payload, ev.Succeeded, auditOccurredAt(ev))
		if err != nil {
			return fmt.Errorf("failed to insert audit event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListAuditEvents returns one page of events, newest first.
func (r *SQLAuditRepository) ListAuditEvents(ctx context.Context, perPage, page int) (*model.AuditLogPage, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_events`).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count audit events: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, r.dialect.rebind(`
		SELECT id, action, subject_type, target, payload, succeeded, occurred_at
		FROM audit_events
		ORDER BY occurred_at DESC, id DESC
		LIMIT ? OFFSET ?`), perPage, (page-1)*perPage)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	items := []model.AuditEvent{}
	for rows.Next() {
		var (
			ev                  model.AuditEvent
			action, subjectType string
			target              sql.NullString
		)
		if err := rows.Scan(&ev.ID, &action, &subjectType, &target, &ev.Payload, &ev.Succeeded, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		ev.Action = model.AuditAction(action)
		ev.SubjectType = model.SubjectType(subjectType)
		if target.Valid {
			ev.Target = model.StringPtr(target.String)
		}
		items = append(items, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit events: %w", err)
	}

	totalPages := model.TotalPages(total, perPage)
	return &model.AuditLogPage{
		Items:           items,
		CurrentPage:     page,
		TotalPages:      totalPages,
		PerPage:         perPage,
		Total:           total,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1,
	}, nil
}

// Ensure SQLAuditRepository implements AuditRepository
var _ AuditRepository = (*SQLAuditRepository)(nil)
