package dto

import (
	"time"

	"github.com/spec-kit/violation-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	MunicipalityID string   `json:"municipality_id"`
	ViolationID    string   `json:"violation_id"`
	VehiclePlate   string   `json:"vehicle_plate"`
	OfficerID      string   `json:"officer_id"`
	Location       string   `json:"location"`
	Latitude       *float64 `json:"latitude"`
	Longitude      *float64 `json:"longitude"`
	MeasuredSpeed  *float64 `json:"measured_speed"`
	SpeedLimit     *float64 `json:"speed_limit"`
	Notes          string   `json:"notes"`
	Amount         float64  `json:"amount"`
	LicensePoints  int      `json:"license_points"`
	OccurredOn     string   `json:"occurred_on"`
}

// UpdateTicketRequest payload. Nil fields are left untouched.
type UpdateTicketRequest struct {
	ViolationID   *string  `json:"violation_id"`
	VehiclePlate  *string  `json:"vehicle_plate"`
	Location      *string  `json:"location"`
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
	MeasuredSpeed *float64 `json:"measured_speed"`
	SpeedLimit    *float64 `json:"speed_limit"`
	Notes         *string  `json:"notes"`
	Amount        *float64 `json:"amount"`
	LicensePoints *int     `json:"license_points"`
	OccurredOn    *string  `json:"occurred_on"`
}

// TransitionRequest payload.
type TransitionRequest struct {
	Status        domain.TicketStatus `json:"status"`
	Justification *string             `json:"justification"`
}

// CancelTicketRequest payload.
type CancelTicketRequest struct {
	Justification string `json:"justification"`
}

// TicketSummary response.
type TicketSummary struct {
	ID             string              `json:"id"`
	Number         string              `json:"number"`
	MunicipalityID string              `json:"municipality_id"`
	VehiclePlate   string              `json:"vehicle_plate"`
	Status         domain.TicketStatus `json:"status"`
	Amount         float64             `json:"amount"`
	OccurredOn     time.Time           `json:"occurred_on"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	ID             string              `json:"id"`
	Number         string              `json:"number"`
	MunicipalityID string              `json:"municipality_id"`
	ViolationID    string              `json:"violation_id"`
	VehiclePlate   string              `json:"vehicle_plate"`
	OfficerID      string              `json:"officer_id"`
	CreatorID      string              `json:"creator_id"`
	Location       string              `json:"location"`
	Latitude       *float64            `json:"latitude"`
	Longitude      *float64            `json:"longitude"`
	MeasuredSpeed  *float64            `json:"measured_speed"`
	SpeedLimit     *float64            `json:"speed_limit"`
	Notes          string              `json:"notes"`
	Status         domain.TicketStatus `json:"status"`
	StatusLabel    string              `json:"status_label"`
	Amount         float64             `json:"amount"`
	LicensePoints  int                 `json:"license_points"`
	AuthorityRef   *string             `json:"authority_ref"`
	IntegrationErr *string             `json:"integration_error"`
	OccurredOn     time.Time           `json:"occurred_on"`
	SentAt         *time.Time          `json:"sent_at"`
	NotifiedAt     *time.Time          `json:"notified_at"`
	NextStatuses   []domain.TicketStatus `json:"next_statuses"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// TransitionResponse represents one history record.
type TransitionResponse struct {
	ID            int64               `json:"id"`
	FromStatus    domain.TicketStatus `json:"from_status"`
	ToStatus      domain.TicketStatus `json:"to_status"`
	ActorID       string              `json:"actor_id"`
	Justification *string             `json:"justification"`
	IP            string              `json:"ip"`
	CreatedAt     time.Time           `json:"created_at"`
}

// IntegrationAttemptResponse represents one delivery try.
type IntegrationAttemptResponse struct {
	ID             string         `json:"id"`
	AttemptNumber  int            `json:"attempt_number"`
	Operation      string         `json:"operation"`
	Endpoint       string         `json:"endpoint"`
	HTTPMethod     string         `json:"http_method"`
	HTTPStatus     *int           `json:"http_status"`
	ResponseBody   map[string]any `json:"response_body"`
	ResponseTimeMs int64          `json:"response_time_ms"`
	Succeeded      bool           `json:"succeeded"`
	ErrorMessage   *string        `json:"error_message"`
	CreatedAt      time.Time      `json:"created_at"`
}
