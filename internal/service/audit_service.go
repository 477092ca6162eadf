package service

import (
	"context"

	"github.com/spec-kit/violation-service/internal/domain"
	"github.com/spec-kit/violation-service/internal/repository"
)

// sensitiveKeys are redacted from snapshots before persisting. Values
// are replaced, never removed, so the shape of the snapshot survives.
var sensitiveKeys = []string{
	"password",
	"password_confirmation",
	"password_hash",
	"token",
	"api_token",
	"remember_token",
}

const redactedPlaceholder = "[REDACTED]"

// AuditEventDraft describes an event before recording. The recorder
// fills in the sensitive flag and persists atomically.
type AuditEventDraft struct {
	Actor       domain.Actor
	Action      domain.AuditAction
	Entity      string
	EntityID    *string
	Description string
	Before      map[string]any
	After       map[string]any
	Context     domain.AuditContext
}

// AuditRecorder is the write interface the workflow engine and the
// integration worker depend on. It is an explicit constructor
// dependency everywhere, never an ambient singleton, so tests can
// substitute a recording fake.
type AuditRecorder interface {
	Record(ctx context.Context, draft AuditEventDraft) (*domain.AuditEvent, error)
}

// AuditService records immutable audit events.
type AuditService struct {
	repo repository.AuditRepository
}

// NewAuditService constructs the service.
func NewAuditService(repo repository.AuditRepository) *AuditService {
	return &AuditService{repo: repo}
}

// Record redacts known-sensitive keys, stamps the sensitive
// classification and persists one event. When ctx carries a TxManager
// transaction the write joins it; otherwise it commits on its own.
func (s *AuditService) Record(ctx context.Context, draft AuditEventDraft) (*domain.AuditEvent, error) {
	event := &domain.AuditEvent{
		ActorName:   draft.Actor.Name,
		ActorEmail:  draft.Actor.Email,
		ActorRole:   string(draft.Actor.Role),
		Action:      draft.Action,
		Entity:      draft.Entity,
		EntityID:    draft.EntityID,
		Description: draft.Description,
		Before:      redactSensitive(draft.Before),
		After:       redactSensitive(draft.After),
		IP:          draft.Context.IP,
		UserAgent:   draft.Context.UserAgent,
		Sensitive:   draft.Action.IsSensitive(),
	}
	if draft.Actor.ID != "" {
		actorID := draft.Actor.ID
		event.ActorID = &actorID
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// RecordPersonalDataAccess writes the compliance event required for
// every read of personally identifiable data.
func (s *AuditService) RecordPersonalDataAccess(ctx context.Context, actor domain.Actor, entity, entityID, description string, auditCtx domain.AuditContext) (*domain.AuditEvent, error) {
	return s.Record(ctx, AuditEventDraft{
		Actor:       actor,
		Action:      domain.AuditActionView,
		Entity:      entity,
		EntityID:    &entityID,
		Description: description,
		Context:     auditCtx,
	})
}

// RecordLogin writes a login or access-denied event.
func (s *AuditService) RecordLogin(ctx context.Context, actor domain.Actor, success bool, auditCtx domain.AuditContext) (*domain.AuditEvent, error) {
	action := domain.AuditActionLogin
	description := "login succeeded"
	if !success {
		action = domain.AuditActionAccessDenied
		description = "login attempt failed"
	}
	draft := AuditEventDraft{
		Actor:       actor,
		Action:      action,
		Entity:      "users",
		Description: description,
		Context:     auditCtx,
	}
	if actor.ID != "" {
		actorID := actor.ID
		draft.EntityID = &actorID
	}
	return s.Record(ctx, draft)
}

// RecordLogout writes a logout event.
func (s *AuditService) RecordLogout(ctx context.Context, actor domain.Actor, auditCtx domain.AuditContext) (*domain.AuditEvent, error) {
	actorID := actor.ID
	return s.Record(ctx, AuditEventDraft{
		Actor:       actor,
		Action:      domain.AuditActionLogout,
		Entity:      "users",
		EntityID:    &actorID,
		Description: "logout",
		Context:     auditCtx,
	})
}

// ListEvents exposes the audit trail for display and export.
func (s *AuditService) ListEvents(ctx context.Context, filter repository.AuditFilter) ([]domain.AuditEvent, error) {
	return s.repo.ListWithFilter(ctx, filter)
}

func redactSensitive(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for key, value := range data {
		out[key] = value
	}
	for _, key := range sensitiveKeys {
		if _, ok := out[key]; ok {
			out[key] = redactedPlaceholder
		}
	}
	return out
}
