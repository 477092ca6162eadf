package domain

import "time"

// TransitionRecord is the append-only per-ticket log entry written for
// every successful status transition, in the same transaction as the
// ticket mutation. Records are never updated or deleted; folding them
// from the initial state reproduces the ticket's current status.
type TransitionRecord struct {
	ID            int64
	TicketID      string
	FromStatus    TicketStatus
	ToStatus      TicketStatus
	ActorID       string
	Justification *string
	IP            string
	CreatedAt     time.Time
}

// ReplayTransitions folds a ticket's transition sequence from the
// initial state and returns the resulting status. A gap or illegal
// step in the chain returns false.
func ReplayTransitions(records []TransitionRecord) (TicketStatus, bool) {
	current := TicketStatusDraft
	for _, rec := range records {
		if rec.FromStatus != current || !IsLegalTransition(rec.FromStatus, rec.ToStatus) {
			return current, false
		}
		current = rec.ToStatus
	}
	return current, true
}
