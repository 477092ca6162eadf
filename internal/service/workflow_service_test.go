package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/violation-service/internal/domain"
	"github.com/spec-kit/violation-service/internal/repository"
	"github.com/spec-kit/violation-service/pkg/errorutil"
)

// fakeState backs the in-memory repository fakes. A transaction
// snapshot-restores it so failed transitions leave no partial effect,
// mirroring the production all-or-nothing commit.
type fakeState struct {
	mu          sync.Mutex
	txMu        sync.Mutex
	tickets     map[string]*domain.Ticket
	transitions []domain.TransitionRecord
	audits      []domain.AuditEvent
	nextRecID   int64

	failTransitionCreate bool
	failAudit            bool
	failStampSent        bool
}

func newFakeState() *fakeState {
	return &fakeState{tickets: make(map[string]*domain.Ticket)}
}

func (s *fakeState) seedTicket(id string, status domain.TicketStatus) {
	s.tickets[id] = &domain.Ticket{
		ID:         id,
		Number:     "AI20260001000001",
		Status:     status,
		Version:    1,
		OccurredOn: time.Now(),
	}
}

func copyTicket(t *domain.Ticket) *domain.Ticket {
	clone := *t
	return &clone
}

type fakeTicketRepo struct{ s *fakeState }

func (r *fakeTicketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if ticket.ID == "" {
		ticket.ID = fmt.Sprintf("t%d", len(r.s.tickets)+1)
	}
	if ticket.Version == 0 {
		ticket.Version = 1
	}
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	r.s.tickets[ticket.ID] = copyTicket(ticket)
	return nil
}

func (r *fakeTicketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ticket, ok := r.s.tickets[id]
	if !ok {
		return nil, errorutil.NewNotFound("ticket", nil)
	}
	return copyTicket(ticket), nil
}

func (r *fakeTicketRepo) GetByNumber(ctx context.Context, number string) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, ticket := range r.s.tickets {
		if ticket.Number == number {
			return copyTicket(ticket), nil
		}
	}
	return nil, errorutil.NewNotFound("ticket", nil)
}

func (r *fakeTicketRepo) GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeTicketRepo) ListWithFilter(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.Ticket, 0, len(r.s.tickets))
	for _, ticket := range r.s.tickets {
		out = append(out, *ticket)
	}
	return out, nil
}

func (r *fakeTicketRepo) CountByMunicipalityAndYear(ctx context.Context, municipalityID string, year int) (int, error) {
	return len(r.s.tickets), nil
}

func (r *fakeTicketRepo) UpdateFields(ctx context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.tickets[ticket.ID]
	if !ok {
		return errorutil.NewNotFound("ticket", nil)
	}
	clone := *ticket
	clone.Status = stored.Status
	clone.Version = stored.Version
	r.s.tickets[ticket.ID] = &clone
	return nil
}

func (r *fakeTicketRepo) UpdateStatus(ctx context.Context, ticket *domain.Ticket, next domain.TicketStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.tickets[ticket.ID]
	if !ok || stored.Version != ticket.Version {
		return errorutil.NewConcurrentModification(ticket.ID)
	}
	stored.Status = next
	stored.Version++
	ticket.Status = next
	ticket.Version++
	return nil
}

func (r *fakeTicketRepo) StampSent(ctx context.Context, id string, at time.Time) error {
	if r.s.failStampSent {
		return errorutil.NewInternalError(nil)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if ticket, ok := r.s.tickets[id]; ok {
		ticket.SentAt = &at
	}
	return nil
}

func (r *fakeTicketRepo) StampNotified(ctx context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if ticket, ok := r.s.tickets[id]; ok {
		ticket.NotifiedAt = &at
	}
	return nil
}

func (r *fakeTicketRepo) SetAuthorityRef(ctx context.Context, id, ref string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if ticket, ok := r.s.tickets[id]; ok {
		ticket.AuthorityRef = &ref
		ticket.IntegrationErr = nil
	}
	return nil
}

func (r *fakeTicketRepo) SetIntegrationError(ctx context.Context, id string, message *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if ticket, ok := r.s.tickets[id]; ok {
		ticket.IntegrationErr = message
	}
	return nil
}

type fakeTransitionRepo struct{ s *fakeState }

func (r *fakeTransitionRepo) Create(ctx context.Context, record *domain.TransitionRecord) error {
	if r.s.failTransitionCreate {
		return errorutil.NewInternalError(nil)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextRecID++
	record.ID = r.s.nextRecID
	record.CreatedAt = time.Now()
	r.s.transitions = append(r.s.transitions, *record)
	return nil
}

func (r *fakeTransitionRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.TransitionRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.TransitionRecord
	for _, record := range r.s.transitions {
		if record.TicketID == ticketID {
			out = append(out, record)
		}
	}
	return out, nil
}

func (r *fakeTransitionRepo) Update(ctx context.Context, record *domain.TransitionRecord) error {
	return errorutil.NewImmutableRecordViolation("ticket_transitions")
}

func (r *fakeTransitionRepo) Delete(ctx context.Context, id int64) error {
	return errorutil.NewImmutableRecordViolation("ticket_transitions")
}

type fakeAuditRecorder struct{ s *fakeState }

func (r *fakeAuditRecorder) Record(ctx context.Context, draft AuditEventDraft) (*domain.AuditEvent, error) {
	if r.s.failAudit {
		return nil, errorutil.NewInternalError(nil)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	event := domain.AuditEvent{
		ActorName:   draft.Actor.Name,
		Action:      draft.Action,
		Entity:      draft.Entity,
		EntityID:    draft.EntityID,
		Description: draft.Description,
		Before:      draft.Before,
		After:       draft.After,
		Sensitive:   draft.Action.IsSensitive(),
		CreatedAt:   time.Now(),
	}
	r.s.audits = append(r.s.audits, event)
	return &event, nil
}

// fakeTxManager serializes transactions and restores the pre-tx state
// on failure, so partial effects are never observable.
type fakeTxManager struct{ s *fakeState }

func (m *fakeTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.s.txMu.Lock()
	defer m.s.txMu.Unlock()

	m.s.mu.Lock()
	ticketSnapshot := make(map[string]*domain.Ticket, len(m.s.tickets))
	for id, ticket := range m.s.tickets {
		ticketSnapshot[id] = copyTicket(ticket)
	}
	transitionSnapshot := append([]domain.TransitionRecord(nil), m.s.transitions...)
	auditSnapshot := append([]domain.AuditEvent(nil), m.s.audits...)
	recID := m.s.nextRecID
	m.s.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.s.mu.Lock()
		m.s.tickets = ticketSnapshot
		m.s.transitions = transitionSnapshot
		m.s.audits = auditSnapshot
		m.s.nextRecID = recID
		m.s.mu.Unlock()
		return err
	}
	return nil
}

type fakeEnqueuer struct {
	mu  sync.Mutex
	ids []string
}

func (e *fakeEnqueuer) Dispatch(ticketID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ids = append(e.ids, ticketID)
}

func newWorkflowHarness(state *fakeState) (*WorkflowService, *fakeEnqueuer) {
	enqueuer := &fakeEnqueuer{}
	workflow := NewWorkflowService(WorkflowDependencies{
		TicketRepo:     &fakeTicketRepo{s: state},
		TransitionRepo: &fakeTransitionRepo{s: state},
		Audit:          &fakeAuditRecorder{s: state},
		TxManager:      &fakeTxManager{s: state},
		Integration:    enqueuer,
	})
	return workflow, enqueuer
}

func transitionCountFor(state *fakeState, action domain.AuditAction) int {
	state.mu.Lock()
	defer state.mu.Unlock()
	count := 0
	for _, event := range state.audits {
		if event.Action == action {
			count++
		}
	}
	return count
}

func strPtr(s string) *string { return &s }

func TestTransitionSuccess(t *testing.T) {
	state := newFakeState()
	state.seedTicket("t1", domain.TicketStatusDraft)
	workflow, _ := newWorkflowHarness(state)

	actor := domain.Actor{ID: "u1", Name: "Officer One"}
	ticket, err := workflow.Transition(context.Background(), TransitionInput{
		TicketID:  "t1",
		Requested: domain.TicketStatusRegistered,
		Actor:     actor,
	})
	if err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	if ticket.Status != domain.TicketStatusRegistered {
		t.Fatalf("status = %s, want registered", ticket.Status)
	}
	if ticket.Version != 2 {
		t.Fatalf("version = %d, want 2", ticket.Version)
	}
	if len(state.transitions) != 1 {
		t.Fatalf("transition records = %d, want 1", len(state.transitions))
	}
	record := state.transitions[0]
	if record.FromStatus != domain.TicketStatusDraft || record.ToStatus != domain.TicketStatusRegistered {
		t.Fatalf("record = %s -> %s", record.FromStatus, record.ToStatus)
	}
	if record.ActorID != "u1" {
		t.Fatalf("record actor = %q, want u1", record.ActorID)
	}
	if len(state.audits) != 1 {
		t.Fatalf("audit events = %d, want 1", len(state.audits))
	}
	audit := state.audits[0]
	if audit.Action != domain.AuditActionStatusTransition {
		t.Fatalf("audit action = %s", audit.Action)
	}
	if audit.Before["status"] != "draft" || audit.After["status"] != "registered" {
		t.Fatalf("audit snapshots = %v / %v", audit.Before, audit.After)
	}
}

func TestIllegalTransitionLeavesStateUnchanged(t *testing.T) {
	state := newFakeState()
	state.seedTicket("t1", domain.TicketStatusDraft)
	workflow, _ := newWorkflowHarness(state)

	_, err := workflow.Transition(context.Background(), TransitionInput{
		TicketID:  "t1",
		Requested: domain.TicketStatusNotified,
		Actor:     domain.Actor{ID: "u1"},
	})
	if !errorutil.IsIllegalTransition(err) {
		t.Fatalf("err = %v, want IllegalTransition", err)
	}
	if state.tickets["t1"].Status != domain.TicketStatusDraft {
		t.Fatal("ticket status must be unchanged")
	}
	if state.tickets["t1"].Version != 1 {
		t.Fatal("ticket version must be unchanged")
	}
	if len(state.transitions) != 0 || len(state.audits) != 0 {
		t.Fatal("no records may be written for a rejected transition")
	}
}

func TestSelfTransitionIsIllegal(t *testing.T) {
	state := newFakeState()
	state.seedTicket("t1", domain.TicketStatusRegistered)
	workflow, _ := newWorkflowHarness(state)

	_, err := workflow.Transition(context.Background(), TransitionInput{
		TicketID:  "t1",
		Requested: domain.TicketStatusRegistered,
		Actor:     domain.Actor{ID: "u1"},
	})
	if !errorutil.IsIllegalTransition(err) {
		t.Fatalf("err = %v, want IllegalTransition", err)
	}
}

func TestCancellationRequiresJustification(t *testing.T) {
	state := newFakeState()
	state.seedTicket("t1", domain.TicketStatusDraft)
	workflow, _ := newWorkflowHarness(state)

	for _, justification := range []*string{nil, strPtr(""), strPtr("   ")} {
		_, err := workflow.Transition(context.Background(), TransitionInput{
			TicketID:      "t1",
			Requested:     domain.TicketStatusCancelled,
			Actor:         domain.Actor{ID: "u1"},
			Justification: justification,
		})
		if !errorutil.IsMissingJustification(err) {
			t.Fatalf("justification %v: err = %v, want MissingJustification", justification, err)
		}
	}
	if len(state.transitions) != 0 || len(state.audits) != 0 {
		t.Fatal("rejected cancellations must write nothing")
	}

	ticket, err := workflow.Transition(context.Background(), TransitionInput{
		TicketID:      "t1",
		Requested:     domain.TicketStatusCancelled,
		Actor:         domain.Actor{ID: "u1"},
		Justification: strPtr("duplicate entry"),
	})
	if err != nil {
		t.Fatalf("justified cancellation failed: %v", err)
	}
	if ticket.Status != domain.TicketStatusCancelled {
		t.Fatalf("status = %s, want cancelled", ticket.Status)
	}
	if got := state.transitions[0].Justification; got == nil || *got != "duplicate entry" {
		t.Fatal("justification must be recorded on the transition")
	}
}

func TestTerminalStatesRejectAllTransitions(t *testing.T) {
	for _, terminal := range []domain.TicketStatus{domain.TicketStatusClosed, domain.TicketStatusCancelled} {
		state := newFakeState()
		state.seedTicket("t1", terminal)
		workflow, _ := newWorkflowHarness(state)

		for _, requested := range domain.AllStatuses() {
			input := TransitionInput{
				TicketID:      "t1",
				Requested:     requested,
				Actor:         domain.Actor{ID: "u1"},
				Justification: strPtr("reason"),
			}
			if _, err := workflow.Transition(context.Background(), input); !errorutil.IsIllegalTransition(err) {
				t.Fatalf("%s -> %s: err = %v, want IllegalTransition", terminal, requested, err)
			}
		}
	}
}

func TestAuditCountEqualsTransitionCount(t *testing.T) {
	state := newFakeState()
	state.seedTicket("t1", domain.TicketStatusDraft)
	workflow, _ := newWorkflowHarness(state)

	chain := []domain.TicketStatus{
		domain.TicketStatusRegistered,
		domain.TicketStatusSentToAuthority,
		domain.TicketStatusNotified,
		domain.TicketStatusUnderAppeal,
		domain.TicketStatusAppealDenied,
		domain.TicketStatusClosed,
	}
	for _, next := range chain {
		if _, err := workflow.Transition(context.Background(), TransitionInput{
			TicketID:  "t1",
			Requested: next,
			Actor:     domain.Actor{ID: "u1"},
		}); err != nil {
			t.Fatalf("transition to %s failed: %v", next, err)
		}
	}

	if len(state.transitions) != len(chain) {
		t.Fatalf("transition records = %d, want %d", len(state.transitions), len(chain))
	}
	if got := transitionCountFor(state, domain.AuditActionStatusTransition); got != len(chain) {
		t.Fatalf("status_transition audits = %d, want %d", got, len(chain))
	}

	status, ok := domain.ReplayTransitions(state.transitions)
	if !ok || status != domain.TicketStatusClosed {
		t.Fatalf("replay = (%s, %v), want (closed, true)", status, ok)
	}
}

func TestTransitionRollsBackOnAuditFailure(t *testing.T) {
	state := newFakeState()
	state.seedTicket("t1", domain.TicketStatusDraft)
	state.failAudit = true
	workflow, _ := newWorkflowHarness(state)

	_, err := workflow.Transition(context.Background(), TransitionInput{
		TicketID:  "t1",
		Requested: domain.TicketStatusRegistered,
		Actor:     domain.Actor{ID: "u1"},
	})
	if err == nil {
		t.Fatal("transition must fail when the audit write fails")
	}
	if state.tickets["t1"].Status != domain.TicketStatusDraft {
		t.Fatal("status must roll back with the failed audit write")
	}
	if len(state.transitions) != 0 || len(state.audits) != 0 {
		t.Fatal("no partial records may survive a failed transaction")
	}
}

func TestTransitionRollsBackOnHistoryFailure(t *testing.T) {
	state := newFakeState()
	state.seedTicket("t1", domain.TicketStatusDraft)
	state.failTransitionCreate = true
	workflow, _ := newWorkflowHarness(state)

	_, err := workflow.Transition(context.Background(), TransitionInput{
		TicketID:  "t1",
		Requested: domain.TicketStatusRegistered,
		Actor:     domain.Actor{ID: "u1"},
	})
	if err == nil {
		t.Fatal("transition must fail when the history write fails")
	}
	if state.tickets["t1"].Status != domain.TicketStatusDraft || state.tickets["t1"].Version != 1 {
		t.Fatal("ticket must be restored after rollback")
	}
}

func TestConcurrentTransitionsExactlyOneWins(t *testing.T) {
	state := newFakeState()
	state.seedTicket("t1", domain.TicketStatusRegistered)
	workflow, _ := newWorkflowHarness(state)

	inputs := []TransitionInput{
		{TicketID: "t1", Requested: domain.TicketStatusSentToAuthority, Actor: domain.Actor{ID: "u1"}},
		{TicketID: "t1", Requested: domain.TicketStatusCancelled, Actor: domain.Actor{ID: "u2"}, Justification: strPtr("issued in error")},
	}

	errs := make([]error, len(inputs))
	var wg sync.WaitGroup
	for i := range inputs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = workflow.Transition(context.Background(), inputs[i])
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		if !errorutil.IsIllegalTransition(err) && !errorutil.IsConcurrentModification(err) {
			t.Fatalf("loser error = %v, want IllegalTransition or ConcurrentModification", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("succeeded = %d, want exactly 1", succeeded)
	}

	final := state.tickets["t1"].Status
	if final != domain.TicketStatusSentToAuthority && final != domain.TicketStatusCancelled {
		t.Fatalf("final status = %s, want one of the two targets", final)
	}
	if len(state.transitions) != 1 {
		t.Fatalf("transition records = %d, want 1", len(state.transitions))
	}
}

func TestSentToAuthorityEnqueuesDispatch(t *testing.T) {
	state := newFakeState()
	state.seedTicket("t1", domain.TicketStatusRegistered)
	workflow, enqueuer := newWorkflowHarness(state)

	ticket, err := workflow.Transition(context.Background(), TransitionInput{
		TicketID:  "t1",
		Requested: domain.TicketStatusSentToAuthority,
		Actor:     domain.Actor{ID: "u1"},
	})
	if err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	if len(enqueuer.ids) != 1 || enqueuer.ids[0] != "t1" {
		t.Fatalf("dispatched ids = %v, want [t1]", enqueuer.ids)
	}
	if ticket.SentAt == nil {
		t.Fatal("sent timestamp must be stamped")
	}
}

func TestStampFailureDoesNotFailTransition(t *testing.T) {
	state := newFakeState()
	state.seedTicket("t1", domain.TicketStatusRegistered)
	state.failStampSent = true
	workflow, enqueuer := newWorkflowHarness(state)

	ticket, err := workflow.Transition(context.Background(), TransitionInput{
		TicketID:  "t1",
		Requested: domain.TicketStatusSentToAuthority,
		Actor:     domain.Actor{ID: "u1"},
	})
	if err != nil {
		t.Fatalf("stamp failure must not fail the committed transition: %v", err)
	}
	if ticket.Status != domain.TicketStatusSentToAuthority {
		t.Fatalf("status = %s, want sent_to_authority", ticket.Status)
	}
	if len(enqueuer.ids) != 1 {
		t.Fatal("dispatch must still be enqueued")
	}
}

func TestNotifiedStampsTimestamp(t *testing.T) {
	state := newFakeState()
	state.seedTicket("t1", domain.TicketStatusSentToAuthority)
	workflow, _ := newWorkflowHarness(state)

	ticket, err := workflow.Transition(context.Background(), TransitionInput{
		TicketID:  "t1",
		Requested: domain.TicketStatusNotified,
		Actor:     domain.Actor{ID: "u1"},
	})
	if err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	if ticket.NotifiedAt == nil {
		t.Fatal("notified timestamp must be stamped")
	}
}

func TestExampleLifecycle(t *testing.T) {
	state := newFakeState()
	state.seedTicket("t1", domain.TicketStatusDraft)
	workflow, _ := newWorkflowHarness(state)
	ctx := context.Background()
	actor := domain.Actor{ID: "u1"}

	if _, err := workflow.Transition(ctx, TransitionInput{TicketID: "t1", Requested: domain.TicketStatusRegistered, Actor: actor}); err != nil {
		t.Fatalf("draft -> registered failed: %v", err)
	}
	if len(state.transitions) != 1 || len(state.audits) != 1 {
		t.Fatalf("records = %d/%d, want 1/1", len(state.transitions), len(state.audits))
	}

	if _, err := workflow.Transition(ctx, TransitionInput{TicketID: "t1", Requested: domain.TicketStatusRegistered, Actor: actor}); !errorutil.IsIllegalTransition(err) {
		t.Fatalf("repeated registered: err = %v, want IllegalTransition", err)
	}
	if _, err := workflow.Transition(ctx, TransitionInput{TicketID: "t1", Requested: domain.TicketStatusCancelled, Actor: actor, Justification: strPtr("")}); !errorutil.IsMissingJustification(err) {
		t.Fatalf("empty justification: err = %v, want MissingJustification", err)
	}
	if _, err := workflow.Transition(ctx, TransitionInput{TicketID: "t1", Requested: domain.TicketStatusCancelled, Actor: actor, Justification: strPtr("duplicate entry")}); err != nil {
		t.Fatalf("justified cancellation failed: %v", err)
	}
	if _, err := workflow.Transition(ctx, TransitionInput{TicketID: "t1", Requested: domain.TicketStatusRegistered, Actor: actor}); !errorutil.IsIllegalTransition(err) {
		t.Fatalf("transition out of cancelled: err = %v, want IllegalTransition", err)
	}
}

func TestNextStatuses(t *testing.T) {
	state := newFakeState()
	state.seedTicket("t1", domain.TicketStatusNotified)
	workflow, _ := newWorkflowHarness(state)

	statuses, err := workflow.NextStatuses(context.Background(), "t1")
	if err != nil {
		t.Fatalf("NextStatuses failed: %v", err)
	}
	want := map[domain.TicketStatus]bool{
		domain.TicketStatusUnderAppeal: true,
		domain.TicketStatusClosed:      true,
	}
	if len(statuses) != len(want) {
		t.Fatalf("statuses = %v", statuses)
	}
	for _, status := range statuses {
		if !want[status] {
			t.Fatalf("unexpected next status %s", status)
		}
	}
}

func TestHistoryReturnsCommitOrder(t *testing.T) {
	state := newFakeState()
	state.seedTicket("t1", domain.TicketStatusDraft)
	workflow, _ := newWorkflowHarness(state)
	ctx := context.Background()

	for _, next := range []domain.TicketStatus{domain.TicketStatusRegistered, domain.TicketStatusSentToAuthority} {
		if _, err := workflow.Transition(ctx, TransitionInput{TicketID: "t1", Requested: next, Actor: domain.Actor{ID: "u1"}}); err != nil {
			t.Fatalf("transition to %s failed: %v", next, err)
		}
	}

	records, err := workflow.History(ctx, "t1")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if records[0].ID >= records[1].ID {
		t.Fatal("history must be ordered by commit order")
	}
}
