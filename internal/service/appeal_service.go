package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/violation-service/internal/domain"
	"github.com/spec-kit/violation-service/internal/events"
	"github.com/spec-kit/violation-service/internal/repository"
	"github.com/spec-kit/violation-service/pkg/errorutil"
)

// AppealService handles administrative appeals. Filing and judging
// drive the ticket's status through the workflow service, so the
// transition invariants hold for appeal-driven changes too.
type AppealService struct {
	appeals  repository.AppealRepository
	tickets  repository.TicketRepository
	workflow *WorkflowService
	audit    AuditRecorder
	events   events.Dispatcher
}

// AppealDependencies bundles collaborators for the appeal service.
type AppealDependencies struct {
	AppealRepo repository.AppealRepository
	TicketRepo repository.TicketRepository
	Workflow   *WorkflowService
	Audit      AuditRecorder
	Dispatcher events.Dispatcher
}

// NewAppealService constructs the service.
func NewAppealService(deps AppealDependencies) *AppealService {
	return &AppealService{
		appeals:  deps.AppealRepo,
		tickets:  deps.TicketRepo,
		workflow: deps.Workflow,
		audit:    deps.Audit,
		events:   deps.Dispatcher,
	}
}

// AppealFileInput describes a new appeal.
type AppealFileInput struct {
	TicketID string
	Kind     domain.AppealKind
	Grounds  string
}

// File registers an appeal against a notified ticket and moves the
// ticket to under_appeal. A ticket already under appeal accepts
// additional filings without a further transition.
func (s *AppealService) File(ctx context.Context, actor domain.Actor, input AppealFileInput, auditCtx domain.AuditContext) (*domain.Appeal, error) {
	if strings.TrimSpace(input.Grounds) == "" {
		return nil, errorutil.NewValidationError("grounds are required", nil)
	}

	ticket, err := s.tickets.GetByID(ctx, input.TicketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status != domain.TicketStatusNotified && ticket.Status != domain.TicketStatusUnderAppeal {
		return nil, errorutil.NewConflict(
			"ticket must be notified before an appeal can be filed",
			map[string]any{"status": string(ticket.Status)})
	}

	protocol, err := s.nextProtocolNumber(ctx)
	if err != nil {
		return nil, err
	}

	appeal := &domain.Appeal{
		ProtocolNumber: protocol,
		TicketID:       ticket.ID,
		FilerID:        actor.ID,
		Kind:           input.Kind,
		Grounds:        strings.TrimSpace(input.Grounds),
		Status:         domain.AppealStatusUnderReview,
		FiledAt:        time.Now(),
	}
	if err := s.appeals.Create(ctx, appeal); err != nil {
		return nil, err
	}

	if ticket.Status == domain.TicketStatusNotified {
		if _, err := s.workflow.Transition(ctx, TransitionInput{
			TicketID:  ticket.ID,
			Requested: domain.TicketStatusUnderAppeal,
			Actor:     actor,
			Context:   auditCtx,
		}); err != nil {
			return nil, err
		}
	}

	entityID := appeal.ID
	if _, err := s.audit.Record(ctx, AuditEventDraft{
		Actor:       actor,
		Action:      domain.AuditActionAppealFiled,
		Entity:      "appeals",
		EntityID:    &entityID,
		Description: fmt.Sprintf("Appeal %s filed against ticket %s", appeal.ProtocolNumber, ticket.Number),
		After: map[string]any{
			"protocol_number": appeal.ProtocolNumber,
			"kind":            string(appeal.Kind),
		},
		Context: auditCtx,
	}); err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{
		Type:     events.EventAppealFiled,
		TicketID: ticket.ID,
		Actor:    actor,
		Payload: events.AppealFiledPayload{
			AppealID:       appeal.ID,
			ProtocolNumber: appeal.ProtocolNumber,
			Kind:           appeal.Kind,
		},
	})
	return appeal, nil
}

// AppealJudgeInput describes a ruling.
type AppealJudgeInput struct {
	AppealID string
	Outcome  domain.AppealOutcome
	Ruling   string
}

// Judge records the ruling on a pending appeal and moves the ticket to
// appeal_granted or appeal_denied accordingly.
func (s *AppealService) Judge(ctx context.Context, actor domain.Actor, input AppealJudgeInput, auditCtx domain.AuditContext) (*domain.Appeal, error) {
	appeal, err := s.appeals.GetByID(ctx, input.AppealID)
	if err != nil {
		return nil, err
	}
	if appeal.Status == domain.AppealStatusJudged {
		return nil, errorutil.NewConflict("appeal has already been judged",
			map[string]any{"appeal_id": appeal.ID})
	}

	target := domain.TicketStatusAppealDenied
	if input.Outcome == domain.AppealOutcomeGranted {
		target = domain.TicketStatusAppealGranted
	}
	if _, err := s.workflow.Transition(ctx, TransitionInput{
		TicketID:  appeal.TicketID,
		Requested: target,
		Actor:     actor,
		Context:   auditCtx,
	}); err != nil {
		return nil, err
	}

	now := time.Now()
	outcome := input.Outcome
	ruling := strings.TrimSpace(input.Ruling)
	judgeID := actor.ID
	appeal.Status = domain.AppealStatusJudged
	appeal.Outcome = &outcome
	appeal.Ruling = &ruling
	appeal.JudgeID = &judgeID
	appeal.JudgedAt = &now
	if err := s.appeals.SaveRuling(ctx, appeal); err != nil {
		return nil, err
	}

	entityID := appeal.ID
	if _, err := s.audit.Record(ctx, AuditEventDraft{
		Actor:       actor,
		Action:      domain.AuditActionAppealJudged,
		Entity:      "appeals",
		EntityID:    &entityID,
		Description: fmt.Sprintf("Appeal %s judged: %s", appeal.ProtocolNumber, outcome),
		After: map[string]any{
			"outcome": string(outcome),
			"ruling":  ruling,
		},
		Context: auditCtx,
	}); err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{
		Type:     events.EventAppealJudged,
		TicketID: appeal.TicketID,
		Actor:    actor,
		Payload: events.AppealJudgedPayload{
			AppealID: appeal.ID,
			Outcome:  outcome,
		},
	})
	return appeal, nil
}

// ListByTicket returns the appeals filed against a ticket.
func (s *AppealService) ListByTicket(ctx context.Context, ticketID string) ([]domain.Appeal, error) {
	return s.appeals.ListByTicket(ctx, ticketID)
}

func (s *AppealService) nextProtocolNumber(ctx context.Context) (string, error) {
	count, err := s.appeals.Count(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("REC-%d-%06d", time.Now().Year(), count+1), nil
}

func (s *AppealService) publish(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.events.Publish(ctx, event)
}
