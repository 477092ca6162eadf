package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/violation-service/internal/config"
	"github.com/spec-kit/violation-service/internal/domain"
	"github.com/spec-kit/violation-service/internal/events"
	"github.com/spec-kit/violation-service/internal/integration"
	"github.com/spec-kit/violation-service/internal/observability"
	"github.com/spec-kit/violation-service/internal/repository"
	"github.com/spec-kit/violation-service/internal/service"
)

// IntegrationDispatcher delivers tickets to the external authority
// asynchronously. Dispatch is fire-and-forget; delivery runs on a
// worker pool with bounded retries and exponential backoff. Episodes
// for different tickets run in parallel; a second dispatch for a
// ticket whose episode is still retrying is collapsed, not queued.
type IntegrationDispatcher struct {
	client   integration.AuthorityClient
	tickets  repository.TicketRepository
	attempts repository.AttemptRepository
	audit    service.AuditRecorder
	events   events.Dispatcher
	redis    *redis.Client
	logger   *zap.Logger
	metrics  *observability.Metrics
	cfg      config.AuthorityConfig

	queue chan string

	mu       sync.Mutex
	inflight map[string]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// DispatcherDependencies bundles collaborators for the dispatcher.
type DispatcherDependencies struct {
	Client      integration.AuthorityClient
	TicketRepo  repository.TicketRepository
	AttemptRepo repository.AttemptRepository
	Audit       service.AuditRecorder
	Dispatcher  events.Dispatcher
	Redis       *redis.Client
	Logger      *zap.Logger
	Metrics     *observability.Metrics
}

// NewIntegrationDispatcher constructs the dispatcher.
func NewIntegrationDispatcher(cfg config.AuthorityConfig, deps DispatcherDependencies) *IntegrationDispatcher {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if len(cfg.Backoff) == 0 {
		cfg.Backoff = []time.Duration{time.Minute, 5 * time.Minute, 15 * time.Minute}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &IntegrationDispatcher{
		client:   deps.Client,
		tickets:  deps.TicketRepo,
		attempts: deps.AttemptRepo,
		audit:    deps.Audit,
		events:   deps.Dispatcher,
		redis:    deps.Redis,
		logger:   logger,
		metrics:  deps.Metrics,
		cfg:      cfg,
		queue:    make(chan string, 256),
		inflight: make(map[string]struct{}),
	}
}

// Start launches the worker pool. Episodes run against the
// dispatcher's own context, so they survive the requests that
// triggered them and stop only on shutdown.
func (d *IntegrationDispatcher) Start(ctx context.Context) {
	d.ctx, d.cancel = context.WithCancel(ctx)
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

// Stop cancels pending retries and waits for workers to drain.
func (d *IntegrationDispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
}

// Dispatch enqueues a delivery episode for the ticket. Returns
// immediately; duplicates for a ticket already queued or retrying are
// collapsed.
func (d *IntegrationDispatcher) Dispatch(ticketID string) {
	if !d.acquire(ticketID) {
		d.logger.Debug("dispatch collapsed, episode already in flight",
			zap.String("ticket_id", ticketID))
		return
	}
	select {
	case d.queue <- ticketID:
	default:
		// Queue full: run the episode on its own goroutine rather
		// than blocking the caller.
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.runEpisode(ticketID)
		}()
	}
}

func (d *IntegrationDispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case ticketID := <-d.queue:
			d.runEpisode(ticketID)
		}
	}
}

// acquire claims the per-ticket episode slot. The local set collapses
// duplicates within this process; the Redis lease extends the claim
// across instances when Redis is configured.
func (d *IntegrationDispatcher) acquire(ticketID string) bool {
	d.mu.Lock()
	if _, busy := d.inflight[ticketID]; busy {
		d.mu.Unlock()
		return false
	}
	d.inflight[ticketID] = struct{}{}
	d.mu.Unlock()

	if d.redis != nil {
		ok, err := d.redis.SetNX(context.Background(), leaseKey(ticketID), "1", d.cfg.LeaseTTL).Result()
		if err != nil {
			d.logger.Warn("redis lease unavailable, relying on local dedup", zap.Error(err))
			return true
		}
		if !ok {
			d.mu.Lock()
			delete(d.inflight, ticketID)
			d.mu.Unlock()
			return false
		}
	}
	return true
}

func (d *IntegrationDispatcher) release(ticketID string) {
	d.mu.Lock()
	delete(d.inflight, ticketID)
	d.mu.Unlock()

	if d.redis != nil {
		_ = d.redis.Del(context.Background(), leaseKey(ticketID)).Err()
	}
}

func leaseKey(ticketID string) string {
	return "integration:dispatch:" + ticketID
}

// runEpisode makes up to MaxAttempts deliveries, recording one attempt
// row per try. Every failure is retried until the budget is spent;
// the backoff delay runs from the end of one attempt to the start of
// the next.
func (d *IntegrationDispatcher) runEpisode(ticketID string) {
	defer d.release(ticketID)

	ctx := d.ctx
	var lastErr error
	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		ticket, err := d.tickets.GetByID(ctx, ticketID)
		if err != nil {
			d.logger.Error("episode aborted, ticket could not be loaded",
				zap.String("ticket_id", ticketID), zap.Error(err))
			return
		}

		outcome, err := d.client.SubmitTicket(ctx, ticket)
		d.recordAttempt(ctx, ticket, attempt, outcome, err)
		d.metrics.RecordIntegrationAttempt(err == nil)

		if err == nil {
			d.finishSuccess(ctx, ticket, outcome)
			return
		}
		lastErr = err
		d.logger.Warn("authority delivery attempt failed",
			zap.String("ticket_id", ticketID),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt < d.cfg.MaxAttempts {
			if !d.sleep(ctx, d.backoffFor(attempt)) {
				return
			}
		}
	}
	d.finishExhausted(ctx, ticketID, lastErr)
}

func (d *IntegrationDispatcher) backoffFor(attempt int) time.Duration {
	idx := attempt - 1
	if idx >= len(d.cfg.Backoff) {
		idx = len(d.cfg.Backoff) - 1
	}
	return d.cfg.Backoff[idx]
}

// sleep waits for the backoff delay, abandoning the episode on
// shutdown. Returns false when interrupted.
func (d *IntegrationDispatcher) sleep(ctx context.Context, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (d *IntegrationDispatcher) recordAttempt(ctx context.Context, ticket *domain.Ticket, number int, outcome integration.SubmitOutcome, attemptErr error) {
	record := &domain.IntegrationAttempt{
		TicketID:       ticket.ID,
		AttemptNumber:  number,
		Operation:      "submit_ticket",
		Endpoint:       outcome.Endpoint,
		HTTPMethod:     "POST",
		HTTPStatus:     outcome.HTTPStatus,
		RequestBody:    outcome.RequestBody,
		ResponseBody:   outcome.ResponseBody,
		ResponseTimeMs: outcome.Duration.Milliseconds(),
		Succeeded:      attemptErr == nil,
	}
	if attemptErr != nil {
		message := attemptErr.Error()
		record.ErrorMessage = &message
	}
	if err := d.attempts.Create(ctx, record); err != nil {
		d.logger.Error("failed to record integration attempt",
			zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
}

// finishSuccess stores the acknowledgment reference. Status stays
// untouched: transitions belong to the workflow engine, and the caller
// issues the notified transition once it observes the acknowledgment.
func (d *IntegrationDispatcher) finishSuccess(ctx context.Context, ticket *domain.Ticket, outcome integration.SubmitOutcome) {
	if outcome.Reference != "" {
		if err := d.tickets.SetAuthorityRef(ctx, ticket.ID, outcome.Reference); err != nil {
			d.logger.Error("failed to store authority reference",
				zap.String("ticket_id", ticket.ID), zap.Error(err))
		}
	}
	entityID := ticket.ID
	if _, err := d.audit.Record(ctx, service.AuditEventDraft{
		Actor:       systemActor(),
		Action:      domain.AuditActionIntegrationSent,
		Entity:      "tickets",
		EntityID:    &entityID,
		Description: fmt.Sprintf("Ticket %s delivered to external authority", ticket.Number),
		After:       map[string]any{"authority_ref": outcome.Reference},
	}); err != nil {
		d.logger.Error("failed to audit integration success",
			zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
	d.logger.Info("ticket delivered to authority",
		zap.String("ticket_id", ticket.ID),
		zap.String("authority_ref", outcome.Reference))
}

// finishExhausted marks the ticket with the non-blocking integration
// error and writes the permanent-failure audit event. Status is left
// unchanged.
func (d *IntegrationDispatcher) finishExhausted(ctx context.Context, ticketID string, lastErr error) {
	message := fmt.Sprintf("delivery failed after %d attempts", d.cfg.MaxAttempts)
	if lastErr != nil {
		message = fmt.Sprintf("%s: %v", message, lastErr)
	}
	if err := d.tickets.SetIntegrationError(ctx, ticketID, &message); err != nil {
		d.logger.Error("failed to flag integration error",
			zap.String("ticket_id", ticketID), zap.Error(err))
	}

	entityID := ticketID
	if _, err := d.audit.Record(ctx, service.AuditEventDraft{
		Actor:       systemActor(),
		Action:      domain.AuditActionIntegrationFailed,
		Entity:      "tickets",
		EntityID:    &entityID,
		Description: message,
	}); err != nil {
		d.logger.Error("failed to audit integration exhaustion",
			zap.String("ticket_id", ticketID), zap.Error(err))
	}

	if d.events != nil {
		lastError := ""
		if lastErr != nil {
			lastError = lastErr.Error()
		}
		_ = d.events.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventTicketIntegrationFailed,
			TicketID:  ticketID,
			Actor:     systemActor(),
			Timestamp: time.Now(),
			Payload: events.TicketIntegrationFailedPayload{
				Attempts:  d.cfg.MaxAttempts,
				LastError: lastError,
			},
		})
	}
	d.logger.Error("authority delivery exhausted",
		zap.String("ticket_id", ticketID),
		zap.Int("attempts", d.cfg.MaxAttempts))
}

func systemActor() domain.Actor {
	return domain.Actor{Name: "integration-dispatcher"}
}
