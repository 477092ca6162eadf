package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/violation-service/internal/domain"
)

// AttemptRepository stores integration delivery attempts. Rows are
// append-only per dispatch worker and need no cross-ticket coordination.
type AttemptRepository interface {
	Create(ctx context.Context, attempt *domain.IntegrationAttempt) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.IntegrationAttempt, error)
}

type attemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository builds repository.
func NewAttemptRepository(pool *pgxpool.Pool) AttemptRepository {
	return &attemptRepository{pool: pool}
}

func (r *attemptRepository) Create(ctx context.Context, attempt *domain.IntegrationAttempt) error {
	const query = `
        INSERT INTO integration_attempts (ticket_id, attempt_number, operation, endpoint,
            http_method, http_status, request_body, response_body, response_time_ms,
            succeeded, error_message)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        RETURNING id, created_at`
	return queryerFrom(ctx, r.pool).QueryRow(ctx, query,
		attempt.TicketID,
		attempt.AttemptNumber,
		attempt.Operation,
		attempt.Endpoint,
		attempt.HTTPMethod,
		attempt.HTTPStatus,
		attempt.RequestBody,
		attempt.ResponseBody,
		attempt.ResponseTimeMs,
		attempt.Succeeded,
		attempt.ErrorMessage,
	).Scan(&attempt.ID, &attempt.CreatedAt)
}

func (r *attemptRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.IntegrationAttempt, error) {
	const query = `
        SELECT id, ticket_id, attempt_number, operation, endpoint, http_method, http_status,
               request_body, response_body, response_time_ms, succeeded, error_message, created_at
        FROM integration_attempts WHERE ticket_id=$1 ORDER BY id ASC`
	rows, err := queryerFrom(ctx, r.pool).Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.IntegrationAttempt
	for rows.Next() {
		var attempt domain.IntegrationAttempt
		if err := rows.Scan(
			&attempt.ID,
			&attempt.TicketID,
			&attempt.AttemptNumber,
			&attempt.Operation,
			&attempt.Endpoint,
			&attempt.HTTPMethod,
			&attempt.HTTPStatus,
			&attempt.RequestBody,
			&attempt.ResponseBody,
			&attempt.ResponseTimeMs,
			&attempt.Succeeded,
			&attempt.ErrorMessage,
			&attempt.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, attempt)
	}
	return result, rows.Err()
}
