package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/violation-service/internal/domain"
	"github.com/spec-kit/violation-service/pkg/errorutil"
)

// AuditFilter captures audit log query parameters.
type AuditFilter struct {
	ActorID       *string
	Entity        *string
	EntityID      *string
	Action        *domain.AuditAction
	SensitiveOnly bool
	From          *time.Time
	To            *time.Time
	Limit         int
	Offset        int
}

// AuditRepository persists immutable audit events. Update and Delete
// always fail with an ImmutableRecordViolation; write-once is an
// enforced contract, not an omission.
type AuditRepository interface {
	Create(ctx context.Context, event *domain.AuditEvent) error
	ListWithFilter(ctx context.Context, filter AuditFilter) ([]domain.AuditEvent, error)
	CountByTicketAndAction(ctx context.Context, ticketID string, action domain.AuditAction) (int, error)
	Update(ctx context.Context, event *domain.AuditEvent) error
	Delete(ctx context.Context, id string) error
}

type auditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository builds repository.
func NewAuditRepository(pool *pgxpool.Pool) AuditRepository {
	return &auditRepository{pool: pool}
}

func (r *auditRepository) Create(ctx context.Context, event *domain.AuditEvent) error {
	const query = `
        INSERT INTO audit_events (actor_id, actor_name, actor_email, actor_role, action,
            entity, entity_id, description, data_before, data_after, ip, user_agent, sensitive)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        RETURNING id, created_at`
	return queryerFrom(ctx, r.pool).QueryRow(ctx, query,
		event.ActorID,
		event.ActorName,
		event.ActorEmail,
		event.ActorRole,
		event.Action,
		event.Entity,
		event.EntityID,
		event.Description,
		event.Before,
		event.After,
		event.IP,
		event.UserAgent,
		event.Sensitive,
	).Scan(&event.ID, &event.CreatedAt)
}

func (r *auditRepository) ListWithFilter(ctx context.Context, filter AuditFilter) ([]domain.AuditEvent, error) {
	base := `SELECT id, actor_id, actor_name, actor_email, actor_role, action, entity,
                    entity_id, description, data_before, data_after, ip, user_agent,
                    sensitive, created_at
             FROM audit_events`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.ActorID != nil {
		args = append(args, *filter.ActorID)
		clauses = append(clauses, fmt.Sprintf("actor_id=$%d", len(args)))
	}
	if filter.Entity != nil {
		args = append(args, *filter.Entity)
		clauses = append(clauses, fmt.Sprintf("entity=$%d", len(args)))
	}
	if filter.EntityID != nil {
		args = append(args, *filter.EntityID)
		clauses = append(clauses, fmt.Sprintf("entity_id=$%d", len(args)))
	}
	if filter.Action != nil {
		args = append(args, *filter.Action)
		clauses = append(clauses, fmt.Sprintf("action=$%d", len(args)))
	}
	if filter.SensitiveOnly {
		clauses = append(clauses, "sensitive=TRUE")
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := queryerFrom(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AuditEvent
	for rows.Next() {
		var event domain.AuditEvent
		if err := rows.Scan(
			&event.ID,
			&event.ActorID,
			&event.ActorName,
			&event.ActorEmail,
			&event.ActorRole,
			&event.Action,
			&event.Entity,
			&event.EntityID,
			&event.Description,
			&event.Before,
			&event.After,
			&event.IP,
			&event.UserAgent,
			&event.Sensitive,
			&event.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, event)
	}
	return result, rows.Err()
}

func (r *auditRepository) CountByTicketAndAction(ctx context.Context, ticketID string, action domain.AuditAction) (int, error) {
	const query = `
        SELECT COUNT(*) FROM audit_events
        WHERE entity='tickets' AND entity_id=$1 AND action=$2`
	var count int
	err := queryerFrom(ctx, r.pool).QueryRow(ctx, query, ticketID, action).Scan(&count)
	return count, err
}

func (r *auditRepository) Update(ctx context.Context, _ *domain.AuditEvent) error {
	return errorutil.NewImmutableRecordViolation("audit_events")
}

func (r *auditRepository) Delete(ctx context.Context, _ string) error {
	return errorutil.NewImmutableRecordViolation("audit_events")
}
