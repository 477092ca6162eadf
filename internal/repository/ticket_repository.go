package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/violation-service/internal/domain"
	"github.com/spec-kit/violation-service/pkg/errorutil"
)

// TicketFilter captures listing parameters.
type TicketFilter struct {
	MunicipalityID *string
	OfficerID      *string
	Statuses       []domain.TicketStatus
	VehiclePlate   *string
	OccurredFrom   *time.Time
	OccurredTo     *time.Time
	Limit          int
	Offset         int
}

// TicketRepository encapsulates ticket persistence. Status writes go
// through UpdateStatus only, which enforces the optimistic version
// check; the remaining setters are the dispatcher's narrowly scoped,
// status-preserving updates.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByNumber(ctx context.Context, number string) (*domain.Ticket, error)
	// GetForUpdate loads the ticket holding a row-level exclusive lock.
	// Meaningful only inside a TxManager transaction.
	GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	CountByMunicipalityAndYear(ctx context.Context, municipalityID string, year int) (int, error)
	UpdateFields(ctx context.Context, ticket *domain.Ticket) error
	UpdateStatus(ctx context.Context, ticket *domain.Ticket, next domain.TicketStatus) error
	StampSent(ctx context.Context, id string, at time.Time) error
	StampNotified(ctx context.Context, id string, at time.Time) error
	SetAuthorityRef(ctx context.Context, id, ref string) error
	SetIntegrationError(ctx context.Context, id string, message *string) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, number, municipality_id, violation_id, vehicle_plate, officer_id,
               creator_id, location, latitude, longitude, measured_speed, speed_limit,
               notes, status, amount, license_points, authority_ref, integration_error,
               occurred_on, sent_at, notified_at, version, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (number, municipality_id, violation_id, vehicle_plate, officer_id,
            creator_id, location, latitude, longitude, measured_speed, speed_limit, notes,
            status, amount, license_points, occurred_on)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
        RETURNING id, version, created_at, updated_at`
	return queryerFrom(ctx, r.pool).QueryRow(ctx, query,
		ticket.Number,
		ticket.MunicipalityID,
		ticket.ViolationID,
		ticket.VehiclePlate,
		ticket.OfficerID,
		ticket.CreatorID,
		ticket.Location,
		ticket.Latitude,
		ticket.Longitude,
		ticket.MeasuredSpeed,
		ticket.SpeedLimit,
		ticket.Notes,
		ticket.Status,
		ticket.Amount,
		ticket.LicensePoints,
		ticket.OccurredOn,
	).Scan(&ticket.ID, &ticket.Version, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, ticketColumns)
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetByNumber(ctx context.Context, number string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE number=$1`, ticketColumns)
	return r.fetchSingle(ctx, query, number)
}

func (r *ticketRepository) GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1 FOR UPDATE`, ticketColumns)
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	row := queryerFrom(ctx, r.pool).QueryRow(ctx, query, arg)
	ticket, err := scanTicketRow(row)
	if err == pgx.ErrNoRows {
		return nil, errorutil.NewNotFound("ticket", map[string]any{"id": arg})
	}
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := fmt.Sprintf(`SELECT %s FROM tickets`, ticketColumns)
	clauses := []string{"1=1"}
	args := []any{}

	if filter.MunicipalityID != nil {
		args = append(args, *filter.MunicipalityID)
		clauses = append(clauses, fmt.Sprintf("municipality_id=$%d", len(args)))
	}
	if filter.OfficerID != nil {
		args = append(args, *filter.OfficerID)
		clauses = append(clauses, fmt.Sprintf("officer_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.VehiclePlate != nil && strings.TrimSpace(*filter.VehiclePlate) != "" {
		args = append(args, strings.ToUpper(strings.TrimSpace(*filter.VehiclePlate)))
		clauses = append(clauses, fmt.Sprintf("vehicle_plate=$%d", len(args)))
	}
	if filter.OccurredFrom != nil {
		args = append(args, *filter.OccurredFrom)
		clauses = append(clauses, fmt.Sprintf("occurred_on >= $%d", len(args)))
	}
	if filter.OccurredTo != nil {
		args = append(args, *filter.OccurredTo)
		clauses = append(clauses, fmt.Sprintf("occurred_on <= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
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
	return scanTickets(rows)
}

func (r *ticketRepository) CountByMunicipalityAndYear(ctx context.Context, municipalityID string, year int) (int, error) {
	const query = `
        SELECT COUNT(*) FROM tickets
        WHERE municipality_id=$1 AND EXTRACT(YEAR FROM created_at)=$2`
	var count int
	err := queryerFrom(ctx, r.pool).QueryRow(ctx, query, municipalityID, year).Scan(&count)
	return count, err
}

// UpdateFields persists editable non-status fields.
func (r *ticketRepository) UpdateFields(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET violation_id=$1, vehicle_plate=$2, location=$3, latitude=$4,
            longitude=$5, measured_speed=$6, speed_limit=$7, notes=$8, amount=$9,
            license_points=$10, occurred_on=$11, updated_at=NOW()
        WHERE id=$12`
	cmd, err := queryerFrom(ctx, r.pool).Exec(ctx, query,
		ticket.ViolationID,
		ticket.VehiclePlate,
		ticket.Location,
		ticket.Latitude,
		ticket.Longitude,
		ticket.MeasuredSpeed,
		ticket.SpeedLimit,
		ticket.Notes,
		ticket.Amount,
		ticket.LicensePoints,
		ticket.OccurredOn,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return errorutil.NewNotFound("ticket", map[string]any{"id": ticket.ID})
	}
	return nil
}

// UpdateStatus moves the ticket to next, guarded by the optimistic
// version check. Zero rows affected means another transaction won the
// race since the ticket was loaded.
func (r *ticketRepository) UpdateStatus(ctx context.Context, ticket *domain.Ticket, next domain.TicketStatus) error {
	const query = `
        UPDATE tickets SET status=$1, version=version+1, updated_at=NOW()
        WHERE id=$2 AND version=$3`
	cmd, err := queryerFrom(ctx, r.pool).Exec(ctx, query, next, ticket.ID, ticket.Version)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return errorutil.NewConcurrentModification(ticket.ID)
	}
	ticket.Status = next
	ticket.Version++
	return nil
}

func (r *ticketRepository) StampSent(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE tickets SET sent_at=$1, updated_at=NOW() WHERE id=$2`
	_, err := queryerFrom(ctx, r.pool).Exec(ctx, query, at, id)
	return err
}

func (r *ticketRepository) StampNotified(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE tickets SET notified_at=$1, updated_at=NOW() WHERE id=$2`
	_, err := queryerFrom(ctx, r.pool).Exec(ctx, query, at, id)
	return err
}

func (r *ticketRepository) SetAuthorityRef(ctx context.Context, id, ref string) error {
	const query = `
        UPDATE tickets SET authority_ref=$1, integration_error=NULL, updated_at=NOW()
        WHERE id=$2`
	_, err := queryerFrom(ctx, r.pool).Exec(ctx, query, ref, id)
	return err
}

func (r *ticketRepository) SetIntegrationError(ctx context.Context, id string, message *string) error {
	const query = `UPDATE tickets SET integration_error=$1, updated_at=NOW() WHERE id=$2`
	_, err := queryerFrom(ctx, r.pool).Exec(ctx, query, message, id)
	return err
}

func scanTicketRow(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Number,
		&ticket.MunicipalityID,
		&ticket.ViolationID,
		&ticket.VehiclePlate,
		&ticket.OfficerID,
		&ticket.CreatorID,
		&ticket.Location,
		&ticket.Latitude,
		&ticket.Longitude,
		&ticket.MeasuredSpeed,
		&ticket.SpeedLimit,
		&ticket.Notes,
		&ticket.Status,
		&ticket.Amount,
		&ticket.LicensePoints,
		&ticket.AuthorityRef,
		&ticket.IntegrationErr,
		&ticket.OccurredOn,
		&ticket.SentAt,
		&ticket.NotifiedAt,
		&ticket.Version,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicketRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
