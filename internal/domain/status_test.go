package domain

import "testing"

func TestLegalTransitions(t *testing.T) {
	legal := []struct{ from, to TicketStatus }{
		{TicketStatusDraft, TicketStatusRegistered},
		{TicketStatusDraft, TicketStatusCancelled},
		{TicketStatusRegistered, TicketStatusSentToAuthority},
		{TicketStatusRegistered, TicketStatusCancelled},
		{TicketStatusSentToAuthority, TicketStatusNotified},
		{TicketStatusSentToAuthority, TicketStatusCancelled},
		{TicketStatusNotified, TicketStatusUnderAppeal},
		{TicketStatusNotified, TicketStatusClosed},
		{TicketStatusUnderAppeal, TicketStatusAppealGranted},
		{TicketStatusUnderAppeal, TicketStatusAppealDenied},
		{TicketStatusAppealGranted, TicketStatusClosed},
		{TicketStatusAppealDenied, TicketStatusClosed},
	}
	legalSet := make(map[[2]TicketStatus]bool, len(legal))
	for _, tc := range legal {
		legalSet[[2]TicketStatus{tc.from, tc.to}] = true
		if !IsLegalTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be legal", tc.from, tc.to)
		}
	}

	// Everything outside the table is illegal, including self-loops.
	for _, from := range AllStatuses() {
		for _, to := range AllStatuses() {
			want := legalSet[[2]TicketStatus{from, to}]
			if got := IsLegalTransition(from, to); got != want {
				t.Errorf("IsLegalTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestSelfLoopsAreIllegal(t *testing.T) {
	for _, status := range AllStatuses() {
		if IsLegalTransition(status, status) {
			t.Errorf("self-loop on %s must be illegal", status)
		}
	}
}

func TestUnknownStatusesAreIllegal(t *testing.T) {
	if IsLegalTransition("bogus", TicketStatusRegistered) {
		t.Error("transition from unknown status must be illegal")
	}
	if IsLegalTransition(TicketStatusDraft, "bogus") {
		t.Error("transition to unknown status must be illegal")
	}
	if IsKnownStatus("bogus") {
		t.Error("bogus must not be a known status")
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, status := range AllStatuses() {
		terminal := status == TicketStatusClosed || status == TicketStatusCancelled
		if got := IsTerminalStatus(status); got != terminal {
			t.Errorf("IsTerminalStatus(%s) = %v, want %v", status, got, terminal)
		}
		if terminal && len(NextStatuses(status)) != 0 {
			t.Errorf("terminal status %s must have no next statuses", status)
		}
	}
}

func TestNextStatusesReturnsCopy(t *testing.T) {
	first := NextStatuses(TicketStatusDraft)
	first[0] = TicketStatusClosed
	second := NextStatuses(TicketStatusDraft)
	if second[0] == TicketStatusClosed {
		t.Error("NextStatuses must not expose internal catalog state")
	}
}

func TestReplayTransitions(t *testing.T) {
	records := []TransitionRecord{
		{FromStatus: TicketStatusDraft, ToStatus: TicketStatusRegistered},
		{FromStatus: TicketStatusRegistered, ToStatus: TicketStatusSentToAuthority},
		{FromStatus: TicketStatusSentToAuthority, ToStatus: TicketStatusNotified},
		{FromStatus: TicketStatusNotified, ToStatus: TicketStatusUnderAppeal},
		{FromStatus: TicketStatusUnderAppeal, ToStatus: TicketStatusAppealGranted},
		{FromStatus: TicketStatusAppealGranted, ToStatus: TicketStatusClosed},
	}
	status, ok := ReplayTransitions(records)
	if !ok {
		t.Fatal("replay of a legal sequence must succeed")
	}
	if status != TicketStatusClosed {
		t.Fatalf("replayed status = %s, want %s", status, TicketStatusClosed)
	}
}

func TestReplayTransitionsEmpty(t *testing.T) {
	status, ok := ReplayTransitions(nil)
	if !ok || status != TicketStatusDraft {
		t.Fatalf("empty replay = (%s, %v), want (%s, true)", status, ok, TicketStatusDraft)
	}
}

func TestReplayTransitionsDetectsGap(t *testing.T) {
	records := []TransitionRecord{
		{FromStatus: TicketStatusDraft, ToStatus: TicketStatusRegistered},
		{FromStatus: TicketStatusNotified, ToStatus: TicketStatusClosed},
	}
	if _, ok := ReplayTransitions(records); ok {
		t.Fatal("replay with a gap must fail")
	}
}

func TestStatusLabels(t *testing.T) {
	for _, status := range AllStatuses() {
		if status.Label() == string(status) {
			t.Errorf("status %s has no display label", status)
		}
	}
	if got := TicketStatus("bogus").Label(); got != "bogus" {
		t.Errorf("unknown status label = %q, want raw value", got)
	}
}
