package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/violation-service/internal/api/dto"
	"github.com/spec-kit/violation-service/internal/auth"
	"github.com/spec-kit/violation-service/internal/domain"
	"github.com/spec-kit/violation-service/internal/repository"
	"github.com/spec-kit/violation-service/internal/service"
	apperrors "github.com/spec-kit/violation-service/pkg/errorutil"
)

// TicketsHandler manages ticket lifecycle endpoints.
type TicketsHandler struct {
	tickets  *service.TicketService
	workflow *service.WorkflowService
	attempts repository.AttemptRepository
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, workflow *service.WorkflowService, attempts repository.AttemptRepository) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, workflow: workflow, attempts: attempts}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	occurredOn, err := parseDate(req.OccurredOn)
	if err != nil {
		return apperrors.NewValidationError("occurred_on must be an RFC 3339 timestamp or a YYYY-MM-DD date", nil)
	}

	input := service.TicketCreateInput{
		MunicipalityID: req.MunicipalityID,
		ViolationID:    req.ViolationID,
		VehiclePlate:   req.VehiclePlate,
		OfficerID:      req.OfficerID,
		Location:       req.Location,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		MeasuredSpeed:  req.MeasuredSpeed,
		SpeedLimit:     req.SpeedLimit,
		Notes:          req.Notes,
		Amount:         req.Amount,
		LicensePoints:  req.LicensePoints,
		OccurredOn:     occurredOn,
	}
	ticket, err := h.tickets.Create(c.UserContext(), principal.Actor(), input, auditContext(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	filter := parseTicketQuery(c)
	tickets, err := h.tickets.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id. Reading a ticket is a personal data
// access, so the service records a view audit event.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	ticket, err := h.tickets.Get(c.UserContext(), principal.Actor(), c.Params("id"), auditContext(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// UpdateTicket PATCH /tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	input := service.TicketUpdateInput{
		ViolationID:   req.ViolationID,
		VehiclePlate:  req.VehiclePlate,
		Location:      req.Location,
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
		MeasuredSpeed: req.MeasuredSpeed,
		SpeedLimit:    req.SpeedLimit,
		Notes:         req.Notes,
		Amount:        req.Amount,
		LicensePoints: req.LicensePoints,
	}
	if req.OccurredOn != nil {
		occurredOn, err := parseDate(*req.OccurredOn)
		if err != nil {
			return apperrors.NewValidationError("occurred_on must be an RFC 3339 timestamp or a YYYY-MM-DD date", nil)
		}
		input.OccurredOn = &occurredOn
	}

	ticket, err := h.tickets.Update(c.UserContext(), principal.Actor(), c.Params("id"), input, auditContext(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// TransitionTicket POST /tickets/:id/transition.
func (h *TicketsHandler) TransitionTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if !domain.IsKnownStatus(req.Status) {
		return apperrors.NewValidationError("unknown status", fiber.Map{"status": string(req.Status)})
	}

	ticket, err := h.workflow.Transition(c.UserContext(), service.TransitionInput{
		TicketID:      c.Params("id"),
		Requested:     req.Status,
		Actor:         principal.Actor(),
		Justification: req.Justification,
		Context:       auditContext(c),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// CancelTicket POST /tickets/:id/cancel. Cancellation is a transition
// to cancelled with a mandatory justification.
func (h *TicketsHandler) CancelTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.CancelTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	justification := strings.TrimSpace(req.Justification)
	var justificationPtr *string
	if justification != "" {
		justificationPtr = &justification
	}
	ticket, err := h.workflow.Transition(c.UserContext(), service.TransitionInput{
		TicketID:      c.Params("id"),
		Requested:     domain.TicketStatusCancelled,
		Actor:         principal.Actor(),
		Justification: justificationPtr,
		Context:       auditContext(c),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// NextStatuses GET /tickets/:id/next-statuses.
func (h *TicketsHandler) NextStatuses(c *fiber.Ctx) error {
	statuses, err := h.workflow.NextStatuses(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": statuses})
}

// TransitionHistory GET /tickets/:id/transitions.
func (h *TicketsHandler) TransitionHistory(c *fiber.Ctx) error {
	records, err := h.workflow.History(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.TransitionResponse, 0, len(records))
	for i := range records {
		items = append(items, transitionResponse(&records[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// IntegrationAttempts GET /tickets/:id/integration-attempts.
func (h *TicketsHandler) IntegrationAttempts(c *fiber.Ctx) error {
	attempts, err := h.attempts.ListByTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.IntegrationAttemptResponse, 0, len(attempts))
	for i := range attempts {
		items = append(items, attemptResponse(&attempts[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func parseTicketQuery(c *fiber.Ctx) repository.TicketFilter {
	filter := repository.TicketFilter{Limit: 50}

	if v := c.Query("municipality_id"); v != "" {
		filter.MunicipalityID = &v
	}
	if v := c.Query("officer_id"); v != "" {
		filter.OfficerID = &v
	}
	if v := c.Query("vehicle_plate"); v != "" {
		filter.VehiclePlate = &v
	}
	if v := c.Query("status"); v != "" {
		for _, raw := range strings.Split(v, ",") {
			status := domain.TicketStatus(strings.TrimSpace(raw))
			if domain.IsKnownStatus(status) {
				filter.Statuses = append(filter.Statuses, status)
			}
		}
	}
	if v := c.Query("occurred_from"); v != "" {
		if t, err := parseDate(v); err == nil {
			filter.OccurredFrom = &t
		}
	}
	if v := c.Query("occurred_to"); v != "" {
		if t, err := parseDate(v); err == nil {
			filter.OccurredTo = &t
		}
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			filter.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			filter.Offset = n
		}
	}
	return filter
}

func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:             ticket.ID,
		Number:         ticket.Number,
		MunicipalityID: ticket.MunicipalityID,
		VehiclePlate:   ticket.VehiclePlate,
		Status:         ticket.Status,
		Amount:         ticket.Amount,
		OccurredOn:     ticket.OccurredOn,
		CreatedAt:      ticket.CreatedAt,
		UpdatedAt:      ticket.UpdatedAt,
	}
}

func ticketDetail(ticket *domain.Ticket) dto.TicketDetailResponse {
	return dto.TicketDetailResponse{
		ID:             ticket.ID,
		Number:         ticket.Number,
		MunicipalityID: ticket.MunicipalityID,
		ViolationID:    ticket.ViolationID,
		VehiclePlate:   ticket.VehiclePlate,
		OfficerID:      ticket.OfficerID,
		CreatorID:      ticket.CreatorID,
		Location:       ticket.Location,
		Latitude:       ticket.Latitude,
		Longitude:      ticket.Longitude,
		MeasuredSpeed:  ticket.MeasuredSpeed,
		SpeedLimit:     ticket.SpeedLimit,
		Notes:          ticket.Notes,
		Status:         ticket.Status,
		StatusLabel:    ticket.Status.Label(),
		Amount:         ticket.Amount,
		LicensePoints:  ticket.LicensePoints,
		AuthorityRef:   ticket.AuthorityRef,
		IntegrationErr: ticket.IntegrationErr,
		OccurredOn:     ticket.OccurredOn,
		SentAt:         ticket.SentAt,
		NotifiedAt:     ticket.NotifiedAt,
		NextStatuses:   domain.NextStatuses(ticket.Status),
		CreatedAt:      ticket.CreatedAt,
		UpdatedAt:      ticket.UpdatedAt,
	}
}

func transitionResponse(record *domain.TransitionRecord) dto.TransitionResponse {
	return dto.TransitionResponse{
		ID:            record.ID,
		FromStatus:    record.FromStatus,
		ToStatus:      record.ToStatus,
		ActorID:       record.ActorID,
		Justification: record.Justification,
		IP:            record.IP,
		CreatedAt:     record.CreatedAt,
	}
}

func attemptResponse(attempt *domain.IntegrationAttempt) dto.IntegrationAttemptResponse {
	return dto.IntegrationAttemptResponse{
		ID:             attempt.ID,
		AttemptNumber:  attempt.AttemptNumber,
		Operation:      attempt.Operation,
		Endpoint:       attempt.Endpoint,
		HTTPMethod:     attempt.HTTPMethod,
		HTTPStatus:     attempt.HTTPStatus,
		ResponseBody:   attempt.ResponseBody,
		ResponseTimeMs: attempt.ResponseTimeMs,
		Succeeded:      attempt.Succeeded,
		ErrorMessage:   attempt.ErrorMessage,
		CreatedAt:      attempt.CreatedAt,
	}
}
