package domain

import "time"

// IntegrationAttempt records one delivery attempt to the external
// authority system. One row per attempt, not per episode; the attempt
// number increases monotonically within an episode. Diagnostic, not
// authoritative: the ticket's status is the source of truth.
type IntegrationAttempt struct {
	ID             string
	TicketID       string
	AttemptNumber  int
	Operation      string
	Endpoint       string
	HTTPMethod     string
	HTTPStatus     *int
	RequestBody    map[string]any
	ResponseBody   map[string]any
	ResponseTimeMs int64
	Succeeded      bool
	ErrorMessage   *string
	CreatedAt      time.Time
}
