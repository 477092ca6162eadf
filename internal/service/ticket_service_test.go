package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/spec-kit/violation-service/internal/domain"
	"github.com/spec-kit/violation-service/pkg/errorutil"
)

func newTicketHarness(state *fakeState) *TicketService {
	return NewTicketService(TicketDependencies{
		TicketRepo: &fakeTicketRepo{s: state},
		Audit:      &fakeAuditRecorder{s: state},
	})
}

func TestCreateTicketStartsInDraft(t *testing.T) {
	state := newFakeState()
	svc := newTicketHarness(state)

	ticket, err := svc.Create(context.Background(), domain.Actor{ID: "u1"}, TicketCreateInput{
		MunicipalityID: "0001",
		ViolationID:    "V-501",
		VehiclePlate:   " abc1d23 ",
		OfficerID:      "o1",
		Amount:         195.23,
		LicensePoints:  5,
		OccurredOn:     time.Now(),
	}, domain.AuditContext{})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if ticket.Status != domain.TicketStatusDraft {
		t.Fatalf("status = %s, want draft", ticket.Status)
	}
	if ticket.VehiclePlate != "ABC1D23" {
		t.Fatalf("plate = %q, want normalized ABC1D23", ticket.VehiclePlate)
	}
	if ticket.CreatorID != "u1" {
		t.Fatalf("creator = %q, want u1", ticket.CreatorID)
	}

	year := time.Now().Year()
	wantPrefix := fmt.Sprintf("AI%d0001", year)
	if !strings.HasPrefix(ticket.Number, wantPrefix) || !strings.HasSuffix(ticket.Number, "000001") {
		t.Fatalf("number = %q, want %s...000001", ticket.Number, wantPrefix)
	}

	if got := transitionCountFor(state, domain.AuditActionCreation); got != 1 {
		t.Fatalf("creation audits = %d, want 1", got)
	}
}

func TestCreateTicketValidatesRequiredFields(t *testing.T) {
	state := newFakeState()
	svc := newTicketHarness(state)

	_, err := svc.Create(context.Background(), domain.Actor{ID: "u1"}, TicketCreateInput{
		MunicipalityID: "0001",
	}, domain.AuditContext{})
	if !errorutil.HasCode(err, errorutil.CodeValidationFailed) {
		t.Fatalf("err = %v, want validation error", err)
	}
	if len(state.tickets) != 0 {
		t.Fatal("invalid input must create nothing")
	}
}

func TestUpdateTicketRecordsDiff(t *testing.T) {
	state := newFakeState()
	state.seedTicket("t1", domain.TicketStatusDraft)
	state.tickets["t1"].Amount = 100
	svc := newTicketHarness(state)

	amount := 250.0
	notes := "radar recalibrated"
	_, err := svc.Update(context.Background(), domain.Actor{ID: "u1"}, "t1", TicketUpdateInput{
		Amount: &amount,
		Notes:  &notes,
	}, domain.AuditContext{})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}

	if got := state.tickets["t1"].Amount; got != 250 {
		t.Fatalf("amount = %v, want 250", got)
	}
	if got := transitionCountFor(state, domain.AuditActionUpdate); got != 1 {
		t.Fatalf("update audits = %d, want 1", got)
	}
	audit := state.audits[len(state.audits)-1]
	if audit.Before["amount"] != 100.0 || audit.After["amount"] != 250.0 {
		t.Fatalf("amount diff = %v -> %v", audit.Before["amount"], audit.After["amount"])
	}
	if _, ok := audit.Before["vehicle_plate"]; ok {
		t.Fatal("unchanged fields must not appear in the diff")
	}
}

func TestUpdateTicketNoChangesWritesNoAudit(t *testing.T) {
	state := newFakeState()
	state.seedTicket("t1", domain.TicketStatusDraft)
	svc := newTicketHarness(state)

	if _, err := svc.Update(context.Background(), domain.Actor{ID: "u1"}, "t1", TicketUpdateInput{}, domain.AuditContext{}); err != nil {
		t.Fatalf("no-op update failed: %v", err)
	}
	if len(state.audits) != 0 {
		t.Fatal("an update that changes nothing must not write an audit event")
	}
}

func TestUpdateRejectedOnceSubmitted(t *testing.T) {
	for _, status := range []domain.TicketStatus{
		domain.TicketStatusSentToAuthority,
		domain.TicketStatusNotified,
		domain.TicketStatusClosed,
		domain.TicketStatusCancelled,
	} {
		state := newFakeState()
		state.seedTicket("t1", status)
		svc := newTicketHarness(state)

		notes := "late edit"
		_, err := svc.Update(context.Background(), domain.Actor{ID: "u1"}, "t1", TicketUpdateInput{Notes: &notes}, domain.AuditContext{})
		if !errorutil.HasCode(err, errorutil.CodeConflict) {
			t.Fatalf("status %s: err = %v, want conflict", status, err)
		}
	}
}

func TestGetRecordsPersonalDataAccess(t *testing.T) {
	state := newFakeState()
	state.seedTicket("t1", domain.TicketStatusNotified)
	svc := newTicketHarness(state)

	if _, err := svc.Get(context.Background(), domain.Actor{ID: "u1"}, "t1", domain.AuditContext{IP: "10.0.0.9"}); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got := transitionCountFor(state, domain.AuditActionView); got != 1 {
		t.Fatalf("view audits = %d, want 1", got)
	}
	if !state.audits[0].Sensitive {
		t.Fatal("a personal data view must be classified sensitive")
	}
}

func TestTicketNumberSequence(t *testing.T) {
	state := newFakeState()
	svc := newTicketHarness(state)
	ctx := context.Background()
	actor := domain.Actor{ID: "u1"}

	base := TicketCreateInput{
		MunicipalityID: "0001",
		ViolationID:    "V-501",
		VehiclePlate:   "ABC1D23",
		OccurredOn:     time.Now(),
	}
	first, err := svc.Create(ctx, actor, base, domain.AuditContext{})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	second, err := svc.Create(ctx, actor, base, domain.AuditContext{})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if !strings.HasSuffix(first.Number, "000001") || !strings.HasSuffix(second.Number, "000002") {
		t.Fatalf("numbers = %q, %q, want sequential suffixes", first.Number, second.Number)
	}
}
