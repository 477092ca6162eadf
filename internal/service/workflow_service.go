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
	"github.com/spec-kit/violation-service/internal/observability"
	"github.com/spec-kit/violation-service/internal/repository"
	"github.com/spec-kit/violation-service/pkg/errorutil"
)

// IntegrationEnqueuer accepts fire-and-forget delivery requests. The
// worker package provides the production implementation.
type IntegrationEnqueuer interface {
	Dispatch(ticketID string)
}

// WorkflowService validates and applies ticket status transitions.
// The ticket mutation, the transition record and the audit event are
// committed as one atomic unit; post-transition side effects run only
// after that unit has committed.
type WorkflowService struct {
	tickets     repository.TicketRepository
	transitions repository.TransitionRepository
	audit       AuditRecorder
	tx          repository.TxManager
	integration IntegrationEnqueuer
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// WorkflowDependencies bundles collaborators for the workflow service.
type WorkflowDependencies struct {
	TicketRepo     repository.TicketRepository
	TransitionRepo repository.TransitionRepository
	Audit          AuditRecorder
	TxManager      repository.TxManager
	Integration    IntegrationEnqueuer
	Dispatcher     events.Dispatcher
	Metrics        *observability.Metrics
	Logger         *zap.Logger
}

// NewWorkflowService constructs the service.
func NewWorkflowService(deps WorkflowDependencies) *WorkflowService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowService{
		tickets:     deps.TicketRepo,
		transitions: deps.TransitionRepo,
		audit:       deps.Audit,
		tx:          deps.TxManager,
		integration: deps.Integration,
		dispatcher:  deps.Dispatcher,
		metrics:     deps.Metrics,
		logger:      logger,
	}
}

// TransitionInput describes a requested status change.
type TransitionInput struct {
	TicketID      string
	Requested     domain.TicketStatus
	Actor         domain.Actor
	Justification *string
	Context       domain.AuditContext
}

// Transition moves a ticket to the requested status. On any failure no
// partial effect is visible: the ticket, the transition history and
// the audit trail stay in lock-step agreement.
func (s *WorkflowService) Transition(ctx context.Context, input TransitionInput) (*domain.Ticket, error) {
	if input.Requested == domain.TicketStatusCancelled {
		if input.Justification == nil || strings.TrimSpace(*input.Justification) == "" {
			return nil, errorutil.NewMissingJustification()
		}
	}

	var (
		ticket *domain.Ticket
		from   domain.TicketStatus
	)
	err := s.tx.WithinTx(ctx, func(txCtx context.Context) error {
		loaded, err := s.tickets.GetForUpdate(txCtx, input.TicketID)
		if err != nil {
			return err
		}
		from = loaded.Status

		if !domain.IsLegalTransition(from, input.Requested) {
			return errorutil.NewIllegalTransition(string(from), string(input.Requested))
		}

		if err := s.tickets.UpdateStatus(txCtx, loaded, input.Requested); err != nil {
			return err
		}

		record := &domain.TransitionRecord{
			TicketID:      loaded.ID,
			FromStatus:    from,
			ToStatus:      input.Requested,
			ActorID:       input.Actor.ID,
			Justification: input.Justification,
			IP:            input.Context.IP,
		}
		if err := s.transitions.Create(txCtx, record); err != nil {
			return err
		}

		entityID := loaded.ID
		_, err = s.audit.Record(txCtx, AuditEventDraft{
			Actor:       input.Actor,
			Action:      domain.AuditActionStatusTransition,
			Entity:      "tickets",
			EntityID:    &entityID,
			Description: fmt.Sprintf("Status changed from %s to %s", from.Label(), input.Requested.Label()),
			Before:      map[string]any{"status": string(from)},
			After:       map[string]any{"status": string(input.Requested)},
			Context:     input.Context,
		})
		if err != nil {
			return err
		}

		ticket = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransition(string(from), string(ticket.Status))
	s.runPostTransitionEffects(ctx, ticket)
	s.publishStatusChanged(ctx, ticket, from, input)

	return ticket, nil
}

// NextStatuses returns the statuses the ticket can move to.
func (s *WorkflowService) NextStatuses(ctx context.Context, ticketID string) ([]domain.TicketStatus, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	return domain.NextStatuses(ticket.Status), nil
}

// History returns the ticket's transition records in commit order.
func (s *WorkflowService) History(ctx context.Context, ticketID string) ([]domain.TransitionRecord, error) {
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		return nil, err
	}
	return s.transitions.ListByTicket(ctx, ticketID)
}

// CanCancel reports whether the ticket can still be cancelled.
func (s *WorkflowService) CanCancel(ticket *domain.Ticket) bool {
	return domain.IsLegalTransition(ticket.Status, domain.TicketStatusCancelled)
}

// runPostTransitionEffects executes state-triggered side effects after
// commit, driven purely by the new status. Stamp failures are logged
// and swallowed: the committed transition is never rolled back for a
// best-effort update.
func (s *WorkflowService) runPostTransitionEffects(ctx context.Context, ticket *domain.Ticket) {
	switch ticket.Status {
	case domain.TicketStatusSentToAuthority:
		if s.integration != nil {
			s.integration.Dispatch(ticket.ID)
		}
		now := time.Now()
		if err := s.tickets.StampSent(ctx, ticket.ID, now); err != nil {
			s.logger.Warn("failed to stamp sent timestamp",
				zap.String("ticket_id", ticket.ID), zap.Error(err))
		} else {
			ticket.SentAt = &now
		}
	case domain.TicketStatusNotified:
		now := time.Now()
		if err := s.tickets.StampNotified(ctx, ticket.ID, now); err != nil {
			s.logger.Warn("failed to stamp notified timestamp",
				zap.String("ticket_id", ticket.ID), zap.Error(err))
		} else {
			ticket.NotifiedAt = &now
		}
	}
}

func (s *WorkflowService) publishStatusChanged(ctx context.Context, ticket *domain.Ticket, from domain.TicketStatus, input TransitionInput) {
	if s.dispatcher == nil {
		return
	}
	justification := ""
	if input.Justification != nil {
		justification = *input.Justification
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventTicketStatusChanged,
		TicketID:  ticket.ID,
		Actor:     input.Actor,
		Timestamp: time.Now(),
		Payload: events.TicketStatusChangedPayload{
			OldStatus:     from,
			NewStatus:     ticket.Status,
			Justification: justification,
		},
	})
}
