package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/violation-service/internal/domain"
	"github.com/spec-kit/violation-service/internal/events"
	"github.com/spec-kit/violation-service/internal/repository"
	"github.com/spec-kit/violation-service/pkg/errorutil"
)

// TicketService owns ticket creation and the non-status edits allowed
// while a ticket is still editable. Status changes are the workflow
// service's job, never this one's.
type TicketService struct {
	tickets    repository.TicketRepository
	audit      AuditRecorder
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	Audit      AuditRecorder
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		audit:      deps.Audit,
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	MunicipalityID string
	ViolationID    string
	VehiclePlate   string
	OfficerID      string
	Location       string
	Latitude       *float64
	Longitude      *float64
	MeasuredSpeed  *float64
	SpeedLimit     *float64
	Notes          string
	Amount         float64
	LicensePoints  int
	OccurredOn     time.Time
}

// TicketUpdateInput describes editable fields.
type TicketUpdateInput struct {
	ViolationID   *string
	VehiclePlate  *string
	Location      *string
	Latitude      *float64
	Longitude     *float64
	MeasuredSpeed *float64
	SpeedLimit    *float64
	Notes         *string
	Amount        *float64
	LicensePoints *int
	OccurredOn    *time.Time
}

// Create registers a new ticket in the initial draft state.
func (s *TicketService) Create(ctx context.Context, actor domain.Actor, input TicketCreateInput, auditCtx domain.AuditContext) (*domain.Ticket, error) {
	if input.MunicipalityID == "" || input.ViolationID == "" || input.VehiclePlate == "" {
		return nil, errorutil.NewValidationError("municipality_id, violation_id and vehicle_plate are required", nil)
	}

	number, err := s.nextTicketNumber(ctx, input.MunicipalityID)
	if err != nil {
		return nil, err
	}

	ticket := &domain.Ticket{
		Number:         number,
		MunicipalityID: input.MunicipalityID,
		ViolationID:    input.ViolationID,
		VehiclePlate:   strings.ToUpper(strings.TrimSpace(input.VehiclePlate)),
		OfficerID:      input.OfficerID,
		CreatorID:      actor.ID,
		Location:       strings.TrimSpace(input.Location),
		Latitude:       input.Latitude,
		Longitude:      input.Longitude,
		MeasuredSpeed:  input.MeasuredSpeed,
		SpeedLimit:     input.SpeedLimit,
		Notes:          strings.TrimSpace(input.Notes),
		Status:         domain.TicketStatusDraft,
		Amount:         input.Amount,
		LicensePoints:  input.LicensePoints,
		OccurredOn:     input.OccurredOn,
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}

	entityID := ticket.ID
	if _, err := s.audit.Record(ctx, AuditEventDraft{
		Actor:       actor,
		Action:      domain.AuditActionCreation,
		Entity:      "tickets",
		EntityID:    &entityID,
		Description: fmt.Sprintf("Ticket %s created", ticket.Number),
		After: map[string]any{
			"number":        ticket.Number,
			"status":        string(ticket.Status),
			"vehicle_plate": ticket.VehiclePlate,
			"amount":        ticket.Amount,
		},
		Context: auditCtx,
	}); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    actor,
		Payload: events.TicketCreatedPayload{
			Number:         ticket.Number,
			MunicipalityID: ticket.MunicipalityID,
			VehiclePlate:   ticket.VehiclePlate,
			Amount:         ticket.Amount,
		},
	})
	return ticket, nil
}

// Update edits non-status fields while the ticket is still editable.
func (s *TicketService) Update(ctx context.Context, actor domain.Actor, ticketID string, input TicketUpdateInput, auditCtx domain.AuditContext) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !ticket.IsEditable() {
		return nil, errorutil.NewConflict(
			fmt.Sprintf("ticket in status %s cannot be edited", ticket.Status.Label()),
			map[string]any{"status": string(ticket.Status)})
	}

	before, after := applyTicketUpdate(ticket, input)
	if len(after) == 0 {
		return ticket, nil
	}

	if err := s.tickets.UpdateFields(ctx, ticket); err != nil {
		return nil, err
	}

	entityID := ticket.ID
	if _, err := s.audit.Record(ctx, AuditEventDraft{
		Actor:       actor,
		Action:      domain.AuditActionUpdate,
		Entity:      "tickets",
		EntityID:    &entityID,
		Description: fmt.Sprintf("Ticket %s updated", ticket.Number),
		Before:      before,
		After:       after,
		Context:     auditCtx,
	}); err != nil {
		return nil, err
	}
	return ticket, nil
}

// Get loads a ticket and records the personal-data access.
func (s *TicketService) Get(ctx context.Context, actor domain.Actor, ticketID string, auditCtx domain.AuditContext) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if _, err := s.recordView(ctx, actor, ticket, auditCtx); err != nil {
		return nil, err
	}
	return ticket, nil
}

// List returns tickets matching the filter. Listings expose no
// personal data beyond the plate, so no view event is written.
func (s *TicketService) List(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	return s.tickets.ListWithFilter(ctx, filter)
}

func (s *TicketService) recordView(ctx context.Context, actor domain.Actor, ticket *domain.Ticket, auditCtx domain.AuditContext) (*domain.AuditEvent, error) {
	entityID := ticket.ID
	return s.audit.Record(ctx, AuditEventDraft{
		Actor:       actor,
		Action:      domain.AuditActionView,
		Entity:      "tickets",
		EntityID:    &entityID,
		Description: fmt.Sprintf("Ticket %s viewed", ticket.Number),
		Context:     auditCtx,
	})
}

// nextTicketNumber builds the sequential ticket number
// AI<year><municipality:4><seq:6>.
func (s *TicketService) nextTicketNumber(ctx context.Context, municipalityID string) (string, error) {
	year := time.Now().Year()
	count, err := s.tickets.CountByMunicipalityAndYear(ctx, municipalityID, year)
	if err != nil {
		return "", err
	}
	municipality := municipalityID
	if len(municipality) > 4 {
		municipality = municipality[:4]
	}
	return fmt.Sprintf("AI%d%04s%06d", year, municipality, count+1), nil
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func applyTicketUpdate(ticket *domain.Ticket, input TicketUpdateInput) (before, after map[string]any) {
	before = map[string]any{}
	after = map[string]any{}

	if input.ViolationID != nil && *input.ViolationID != ticket.ViolationID {
		before["violation_id"], after["violation_id"] = ticket.ViolationID, *input.ViolationID
		ticket.ViolationID = *input.ViolationID
	}
	if input.VehiclePlate != nil {
		plate := strings.ToUpper(strings.TrimSpace(*input.VehiclePlate))
		if plate != ticket.VehiclePlate {
			before["vehicle_plate"], after["vehicle_plate"] = ticket.VehiclePlate, plate
			ticket.VehiclePlate = plate
		}
	}
	if input.Location != nil && *input.Location != ticket.Location {
		before["location"], after["location"] = ticket.Location, *input.Location
		ticket.Location = *input.Location
	}
	if input.Latitude != nil {
		before["latitude"], after["latitude"] = ticket.Latitude, *input.Latitude
		ticket.Latitude = input.Latitude
	}
	if input.Longitude != nil {
		before["longitude"], after["longitude"] = ticket.Longitude, *input.Longitude
		ticket.Longitude = input.Longitude
	}
	if input.MeasuredSpeed != nil {
		before["measured_speed"], after["measured_speed"] = ticket.MeasuredSpeed, *input.MeasuredSpeed
		ticket.MeasuredSpeed = input.MeasuredSpeed
	}
	if input.SpeedLimit != nil {
		before["speed_limit"], after["speed_limit"] = ticket.SpeedLimit, *input.SpeedLimit
		ticket.SpeedLimit = input.SpeedLimit
	}
	if input.Notes != nil && *input.Notes != ticket.Notes {
		before["notes"], after["notes"] = ticket.Notes, *input.Notes
		ticket.Notes = *input.Notes
	}
	if input.Amount != nil && *input.Amount != ticket.Amount {
		before["amount"], after["amount"] = ticket.Amount, *input.Amount
		ticket.Amount = *input.Amount
	}
	if input.LicensePoints != nil && *input.LicensePoints != ticket.LicensePoints {
		before["license_points"], after["license_points"] = ticket.LicensePoints, *input.LicensePoints
		ticket.LicensePoints = *input.LicensePoints
	}
	if input.OccurredOn != nil && !input.OccurredOn.Equal(ticket.OccurredOn) {
		before["occurred_on"], after["occurred_on"] = ticket.OccurredOn, *input.OccurredOn
		ticket.OccurredOn = *input.OccurredOn
	}
	return before, after
}
