package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/violation-service/internal/domain"
	"github.com/spec-kit/violation-service/pkg/errorutil"
)

// AppealRepository encapsulates appeal persistence.
type AppealRepository interface {
	Create(ctx context.Context, appeal *domain.Appeal) error
	GetByID(ctx context.Context, id string) (*domain.Appeal, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Appeal, error)
	Count(ctx context.Context) (int, error)
	SaveRuling(ctx context.Context, appeal *domain.Appeal) error
}

type appealRepository struct {
	pool *pgxpool.Pool
}

// NewAppealRepository instantiates repository.
func NewAppealRepository(pool *pgxpool.Pool) AppealRepository {
	return &appealRepository{pool: pool}
}

const appealColumns = `id, protocol_number, ticket_id, filer_id, kind, grounds, status,
               outcome, ruling, judge_id, filed_at, judged_at, created_at, updated_at`

func (r *appealRepository) Create(ctx context.Context, appeal *domain.Appeal) error {
	const query = `
        INSERT INTO appeals (protocol_number, ticket_id, filer_id, kind, grounds, status, filed_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	return queryerFrom(ctx, r.pool).QueryRow(ctx, query,
		appeal.ProtocolNumber,
		appeal.TicketID,
		appeal.FilerID,
		appeal.Kind,
		appeal.Grounds,
		appeal.Status,
		appeal.FiledAt,
	).Scan(&appeal.ID, &appeal.CreatedAt, &appeal.UpdatedAt)
}

func (r *appealRepository) GetByID(ctx context.Context, id string) (*domain.Appeal, error) {
	query := `SELECT ` + appealColumns + ` FROM appeals WHERE id=$1`
	var appeal domain.Appeal
	if err := scanAppeal(queryerFrom(ctx, r.pool).QueryRow(ctx, query, id), &appeal); err != nil {
		if err == pgx.ErrNoRows {
			return nil, errorutil.NewNotFound("appeal", map[string]any{"id": id})
		}
		return nil, err
	}
	return &appeal, nil
}

func (r *appealRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Appeal, error) {
	query := `SELECT ` + appealColumns + ` FROM appeals WHERE ticket_id=$1 ORDER BY filed_at ASC`
	rows, err := queryerFrom(ctx, r.pool).Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Appeal
	for rows.Next() {
		var appeal domain.Appeal
		if err := scanAppeal(rows, &appeal); err != nil {
			return nil, err
		}
		result = append(result, appeal)
	}
	return result, rows.Err()
}

func (r *appealRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := queryerFrom(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM appeals`).Scan(&count)
	return count, err
}

func (r *appealRepository) SaveRuling(ctx context.Context, appeal *domain.Appeal) error {
	const query = `
        UPDATE appeals SET status=$1, outcome=$2, ruling=$3, judge_id=$4, judged_at=$5, updated_at=NOW()
        WHERE id=$6`
	cmd, err := queryerFrom(ctx, r.pool).Exec(ctx, query,
		appeal.Status,
		appeal.Outcome,
		appeal.Ruling,
		appeal.JudgeID,
		appeal.JudgedAt,
		appeal.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return errorutil.NewNotFound("appeal", map[string]any{"id": appeal.ID})
	}
	return nil
}

func scanAppeal(row pgx.Row, appeal *domain.Appeal) error {
	return row.Scan(
		&appeal.ID,
		&appeal.ProtocolNumber,
		&appeal.TicketID,
		&appeal.FilerID,
		&appeal.Kind,
		&appeal.Grounds,
		&appeal.Status,
		&appeal.Outcome,
		&appeal.Ruling,
		&appeal.JudgeID,
		&appeal.FiledAt,
		&appeal.JudgedAt,
		&appeal.CreatedAt,
		&appeal.UpdatedAt,
	)
}
