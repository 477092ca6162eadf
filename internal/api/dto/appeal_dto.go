package dto

import (
	"time"

	"github.com/spec-kit/violation-service/internal/domain"
)

// FileAppealRequest payload.
type FileAppealRequest struct {
	Kind    domain.AppealKind `json:"kind"`
	Grounds string            `json:"grounds"`
}

// JudgeAppealRequest payload.
type JudgeAppealRequest struct {
	Outcome domain.AppealOutcome `json:"outcome"`
	Ruling  string               `json:"ruling"`
}

// AppealResponse response.
type AppealResponse struct {
	ID             string                `json:"id"`
	ProtocolNumber string                `json:"protocol_number"`
	TicketID       string                `json:"ticket_id"`
	FilerID        string                `json:"filer_id"`
	Kind           domain.AppealKind     `json:"kind"`
	Grounds        string                `json:"grounds"`
	Status         domain.AppealStatus   `json:"status"`
	Outcome        *domain.AppealOutcome `json:"outcome"`
	Ruling         *string               `json:"ruling"`
	JudgeID        *string               `json:"judge_id"`
	FiledAt        time.Time             `json:"filed_at"`
	JudgedAt       *time.Time            `json:"judged_at"`
}
