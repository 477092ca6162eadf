package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/violation-service/internal/domain"
	"github.com/spec-kit/violation-service/pkg/errorutil"
)

// TransitionRepository stores the append-only transition history.
// Update and Delete exist only to document the contract: they always
// fail with an ImmutableRecordViolation.
type TransitionRepository interface {
	Create(ctx context.Context, record *domain.TransitionRecord) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TransitionRecord, error)
	Update(ctx context.Context, record *domain.TransitionRecord) error
	Delete(ctx context.Context, id int64) error
}

type transitionRepository struct {
	pool *pgxpool.Pool
}

// NewTransitionRepository builds repository.
func NewTransitionRepository(pool *pgxpool.Pool) TransitionRepository {
	return &transitionRepository{pool: pool}
}

func (r *transitionRepository) Create(ctx context.Context, record *domain.TransitionRecord) error {
	const query = `
        INSERT INTO ticket_transitions (ticket_id, from_status, to_status, actor_id, justification, ip)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return queryerFrom(ctx, r.pool).QueryRow(ctx, query,
		record.TicketID,
		record.FromStatus,
		record.ToStatus,
		record.ActorID,
		record.Justification,
		record.IP,
	).Scan(&record.ID, &record.CreatedAt)
}

// ListByTicket returns transitions in commit order. The id column is a
// bigserial, so ordering by it is authoritative under contention where
// timestamps alone could tie.
func (r *transitionRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TransitionRecord, error) {
	const query = `
        SELECT id, ticket_id, from_status, to_status, actor_id, justification, ip, created_at
        FROM ticket_transitions WHERE ticket_id=$1 ORDER BY id ASC`
	rows, err := queryerFrom(ctx, r.pool).Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TransitionRecord
	for rows.Next() {
		var record domain.TransitionRecord
		if err := rows.Scan(
			&record.ID,
			&record.TicketID,
			&record.FromStatus,
			&record.ToStatus,
			&record.ActorID,
			&record.Justification,
			&record.IP,
			&record.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	return result, rows.Err()
}

func (r *transitionRepository) Update(ctx context.Context, _ *domain.TransitionRecord) error {
	return errorutil.NewImmutableRecordViolation("ticket_transitions")
}

func (r *transitionRepository) Delete(ctx context.Context, _ int64) error {
	return errorutil.NewImmutableRecordViolation("ticket_transitions")
}
