package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spec-kit/violation-service/internal/config"
	"github.com/spec-kit/violation-service/internal/domain"
)

// SubmitOutcome describes one delivery attempt to the authority API.
// It is populated as far as the attempt got, so failed attempts still
// carry the endpoint, payload and timing for the attempt log.
type SubmitOutcome struct {
	Endpoint     string
	RequestBody  map[string]any
	HTTPStatus   *int
	ResponseBody map[string]any
	Reference    string
	Duration     time.Duration
}

// AuthorityClient submits tickets to the external authority system.
type AuthorityClient interface {
	SubmitTicket(ctx context.Context, ticket *domain.Ticket) (SubmitOutcome, error)
}

type httpAuthorityClient struct {
	baseURL  string
	apiToken string
	client   *http.Client
}

// NewAuthorityClient builds the HTTP client with a bounded per-call
// timeout. The timeout counts against the retry budget: a timed-out
// attempt is a failed attempt.
func NewAuthorityClient(cfg config.AuthorityConfig) AuthorityClient {
	return &httpAuthorityClient{
		baseURL:  cfg.BaseURL,
		apiToken: cfg.APIToken,
		client:   &http.Client{Timeout: cfg.Timeout()},
	}
}

func (c *httpAuthorityClient) SubmitTicket(ctx context.Context, ticket *domain.Ticket) (SubmitOutcome, error) {
	outcome := SubmitOutcome{
		Endpoint:    c.baseURL + "/api/v1/tickets",
		RequestBody: BuildTicketPayload(ticket),
	}
	started := time.Now()
	defer func() { outcome.Duration = time.Since(started) }()

	body, err := json.Marshal(outcome.RequestBody)
	if err != nil {
		return outcome, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, outcome.Endpoint, bytes.NewReader(body))
	if err != nil {
		return outcome, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return outcome, err
	}
	defer resp.Body.Close()

	status := resp.StatusCode
	outcome.HTTPStatus = &status

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return outcome, err
	}
	var parsed map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &parsed); err == nil {
			outcome.ResponseBody = parsed
		}
	}

	if status < 200 || status >= 300 {
		return outcome, fmt.Errorf("authority returned status %d", status)
	}

	if ref, ok := parsed["authority_ref"].(string); ok {
		outcome.Reference = ref
	}
	return outcome, nil
}

// BuildTicketPayload maps the ticket's fields to the authority wire
// format.
func BuildTicketPayload(ticket *domain.Ticket) map[string]any {
	return map[string]any{
		"ticket_number":   ticket.Number,
		"municipality_id": ticket.MunicipalityID,
		"violation_id":    ticket.ViolationID,
		"vehicle_plate":   ticket.VehiclePlate,
		"occurred_on":     ticket.OccurredOn.Format(time.RFC3339),
		"location":        ticket.Location,
		"latitude":        ticket.Latitude,
		"longitude":       ticket.Longitude,
		"amount":          ticket.Amount,
		"license_points":  ticket.LicensePoints,
		"officer_id":      ticket.OfficerID,
		"measured_speed":  ticket.MeasuredSpeed,
		"speed_limit":     ticket.SpeedLimit,
		"notes":           ticket.Notes,
	}
}
