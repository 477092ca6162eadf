package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/violation-service/internal/api/dto"
	"github.com/spec-kit/violation-service/internal/domain"
	"github.com/spec-kit/violation-service/internal/repository"
	"github.com/spec-kit/violation-service/internal/service"
)

// AuditHandler exposes the audit trail for compliance review.
type AuditHandler struct {
	service *service.AuditService
}

// NewAuditHandler constructs handler.
func NewAuditHandler(auditService *service.AuditService) *AuditHandler {
	return &AuditHandler{service: auditService}
}

// ListEvents GET /audit-events.
func (h *AuditHandler) ListEvents(c *fiber.Ctx) error {
	events, err := h.service.ListEvents(c.UserContext(), parseAuditQuery(c))
	if err != nil {
		return err
	}
	items := make([]dto.AuditEventResponse, 0, len(events))
	for i := range events {
		items = append(items, auditEventResponse(&events[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func parseAuditQuery(c *fiber.Ctx) repository.AuditFilter {
	filter := repository.AuditFilter{Limit: 50}

	if v := c.Query("actor_id"); v != "" {
		filter.ActorID = &v
	}
	if v := c.Query("entity"); v != "" {
		filter.Entity = &v
	}
	if v := c.Query("entity_id"); v != "" {
		filter.EntityID = &v
	}
	if v := c.Query("action"); v != "" {
		action := domain.AuditAction(v)
		filter.Action = &action
	}
	if c.Query("sensitive") == "true" {
		filter.SensitiveOnly = true
	}
	if v := c.Query("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.From = &t
		}
	}
	if v := c.Query("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.To = &t
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

func auditEventResponse(event *domain.AuditEvent) dto.AuditEventResponse {
	return dto.AuditEventResponse{
		ID:          event.ID,
		ActorID:     event.ActorID,
		ActorName:   event.ActorName,
		ActorEmail:  event.ActorEmail,
		Action:      event.Action,
		Entity:      event.Entity,
		EntityID:    event.EntityID,
		Description: event.Description,
		Before:      event.Before,
		After:       event.After,
		IP:          event.IP,
		UserAgent:   event.UserAgent,
		Sensitive:   event.Sensitive,
		CreatedAt:   event.CreatedAt,
	}
}
