package domain

import "time"

// Ticket is the aggregate for a single traffic violation under
// processing. Status changes only through the workflow service; the
// integration worker touches nothing except the authority reference,
// the integration error flag and the two best-effort timestamps.
type Ticket struct {
	ID             string
	Number         string
	MunicipalityID string
	ViolationID    string
	VehiclePlate   string
	OfficerID      string
	CreatorID      string
	Location       string
	Latitude       *float64
	Longitude      *float64
	MeasuredSpeed  *float64
	SpeedLimit     *float64
	Notes          string
	Status         TicketStatus
	Amount         float64
	LicensePoints  int
	AuthorityRef   *string
	IntegrationErr *string
	OccurredOn     time.Time
	SentAt         *time.Time
	NotifiedAt     *time.Time
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsEditable reports whether non-status fields may still change.
// Only pre-submission states allow edits.
func (t *Ticket) IsEditable() bool {
	return t.Status == TicketStatusDraft || t.Status == TicketStatusRegistered
}

// CanTransitionTo checks the status catalog for the requested move.
func (t *Ticket) CanTransitionTo(next TicketStatus) bool {
	return IsLegalTransition(t.Status, next)
}

// IsUnderAppeal reports whether an appeal is currently pending.
func (t *Ticket) IsUnderAppeal() bool {
	return t.Status == TicketStatusUnderAppeal
}
