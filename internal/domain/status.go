package domain

// TicketStatus enumerates the lifecycle states of a ticket.
type TicketStatus string

const (
	TicketStatusDraft           TicketStatus = "draft"
	TicketStatusRegistered      TicketStatus = "registered"
	TicketStatusSentToAuthority TicketStatus = "sent_to_authority"
	TicketStatusNotified        TicketStatus = "notified"
	TicketStatusUnderAppeal     TicketStatus = "under_appeal"
	TicketStatusAppealGranted   TicketStatus = "appeal_granted"
	TicketStatusAppealDenied    TicketStatus = "appeal_denied"
	TicketStatusClosed          TicketStatus = "closed"
	TicketStatusCancelled       TicketStatus = "cancelled"
)

// statusCatalog is the fixed transition table. Every legal move is
// listed; anything absent is illegal, including self-loops. Changing
// the lifecycle means changing this table, not runtime data.
var statusCatalog = map[TicketStatus][]TicketStatus{
	TicketStatusDraft:           {TicketStatusRegistered, TicketStatusCancelled},
	TicketStatusRegistered:      {TicketStatusSentToAuthority, TicketStatusCancelled},
	TicketStatusSentToAuthority: {TicketStatusNotified, TicketStatusCancelled},
	TicketStatusNotified:        {TicketStatusUnderAppeal, TicketStatusClosed},
	TicketStatusUnderAppeal:     {TicketStatusAppealGranted, TicketStatusAppealDenied},
	TicketStatusAppealGranted:   {TicketStatusClosed},
	TicketStatusAppealDenied:    {TicketStatusClosed},
	TicketStatusClosed:          {},
	TicketStatusCancelled:       {},
}

var statusLabels = map[TicketStatus]string{
	TicketStatusDraft:           "Draft",
	TicketStatusRegistered:      "Registered",
	TicketStatusSentToAuthority: "Sent to authority",
	TicketStatusNotified:        "Notified",
	TicketStatusUnderAppeal:     "Under appeal",
	TicketStatusAppealGranted:   "Appeal granted",
	TicketStatusAppealDenied:    "Appeal denied",
	TicketStatusClosed:          "Closed",
	TicketStatusCancelled:       "Cancelled",
}

// Label returns the display name for the status.
func (s TicketStatus) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// AllStatuses returns every status in normal progression order.
func AllStatuses() []TicketStatus {
	return []TicketStatus{
		TicketStatusDraft,
		TicketStatusRegistered,
		TicketStatusSentToAuthority,
		TicketStatusNotified,
		TicketStatusUnderAppeal,
		TicketStatusAppealGranted,
		TicketStatusAppealDenied,
		TicketStatusClosed,
		TicketStatusCancelled,
	}
}

// IsKnownStatus reports whether the status is part of the catalog.
func IsKnownStatus(s TicketStatus) bool {
	_, ok := statusCatalog[s]
	return ok
}

// IsLegalTransition reports whether from may move to to. Pure and
// total: unknown statuses and self-loops are simply illegal.
func IsLegalTransition(from, to TicketStatus) bool {
	for _, next := range statusCatalog[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminalStatus reports whether the status has no outgoing moves.
func IsTerminalStatus(s TicketStatus) bool {
	next, ok := statusCatalog[s]
	return ok && len(next) == 0
}

// NextStatuses returns the statuses reachable from s. The returned
// slice is a copy; callers may mutate it freely.
func NextStatuses(s TicketStatus) []TicketStatus {
	next := statusCatalog[s]
	out := make([]TicketStatus, len(next))
	copy(out, next)
	return out
}
