package events

import (
	"time"

	"github.com/spec-kit/violation-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated           EventType = "ticket_created"
	EventTicketStatusChanged     EventType = "ticket_status_changed"
	EventTicketIntegrationFailed EventType = "ticket_integration_failed"
	EventAppealFiled             EventType = "appeal_filed"
	EventAppealJudged            EventType = "appeal_judged"
)

// Event represents a domain event emitted after a committed mutation.
type Event struct {
	ID        string       `json:"id"`
	Type      EventType    `json:"type"`
	TicketID  string       `json:"ticket_id"`
	Actor     domain.Actor `json:"actor"`
	Timestamp time.Time    `json:"timestamp"`
	Payload   interface{}  `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Number         string  `json:"number"`
	MunicipalityID string  `json:"municipality_id"`
	VehiclePlate   string  `json:"vehicle_plate"`
	Amount         float64 `json:"amount"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus     domain.TicketStatus `json:"old_status"`
	NewStatus     domain.TicketStatus `json:"new_status"`
	Justification string              `json:"justification,omitempty"`
}

// TicketIntegrationFailedPayload payload.
type TicketIntegrationFailedPayload struct {
	Attempts  int    `json:"attempts"`
	LastError string `json:"last_error"`
}

// AppealFiledPayload payload.
type AppealFiledPayload struct {
	AppealID       string            `json:"appeal_id"`
	ProtocolNumber string            `json:"protocol_number"`
	Kind           domain.AppealKind `json:"kind"`
}

// AppealJudgedPayload payload.
type AppealJudgedPayload struct {
	AppealID string               `json:"appeal_id"`
	Outcome  domain.AppealOutcome `json:"outcome"`
}
