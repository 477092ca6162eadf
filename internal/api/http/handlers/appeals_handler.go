package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/violation-service/internal/api/dto"
	"github.com/spec-kit/violation-service/internal/auth"
	"github.com/spec-kit/violation-service/internal/domain"
	"github.com/spec-kit/violation-service/internal/service"
	apperrors "github.com/spec-kit/violation-service/pkg/errorutil"
)

// AppealsHandler manages appeal endpoints.
type AppealsHandler struct {
	service *service.AppealService
}

// NewAppealsHandler constructs handler.
func NewAppealsHandler(appealService *service.AppealService) *AppealsHandler {
	return &AppealsHandler{service: appealService}
}

// FileAppeal POST /tickets/:id/appeals.
func (h *AppealsHandler) FileAppeal(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.FileAppealRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if !domain.IsKnownAppealKind(req.Kind) {
		return apperrors.NewValidationError("unknown appeal kind", fiber.Map{"kind": string(req.Kind)})
	}

	appeal, err := h.service.File(c.UserContext(), principal.Actor(), service.AppealFileInput{
		TicketID: c.Params("id"),
		Kind:     req.Kind,
		Grounds:  req.Grounds,
	}, auditContext(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": appealResponse(appeal)})
}

// JudgeAppeal POST /appeals/:id/judge.
func (h *AppealsHandler) JudgeAppeal(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.JudgeAppealRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Outcome != domain.AppealOutcomeGranted && req.Outcome != domain.AppealOutcomeDenied {
		return apperrors.NewValidationError("outcome must be granted or denied", nil)
	}

	appeal, err := h.service.Judge(c.UserContext(), principal.Actor(), service.AppealJudgeInput{
		AppealID: c.Params("id"),
		Outcome:  req.Outcome,
		Ruling:   req.Ruling,
	}, auditContext(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": appealResponse(appeal)})
}

// ListAppeals GET /tickets/:id/appeals.
func (h *AppealsHandler) ListAppeals(c *fiber.Ctx) error {
	appeals, err := h.service.ListByTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.AppealResponse, 0, len(appeals))
	for i := range appeals {
		items = append(items, appealResponse(&appeals[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func appealResponse(appeal *domain.Appeal) dto.AppealResponse {
	return dto.AppealResponse{
		ID:             appeal.ID,
		ProtocolNumber: appeal.ProtocolNumber,
		TicketID:       appeal.TicketID,
		FilerID:        appeal.FilerID,
		Kind:           appeal.Kind,
		Grounds:        appeal.Grounds,
		Status:         appeal.Status,
		Outcome:        appeal.Outcome,
		Ruling:         appeal.Ruling,
		JudgeID:        appeal.JudgeID,
		FiledAt:        appeal.FiledAt,
		JudgedAt:       appeal.JudgedAt,
	}
}
