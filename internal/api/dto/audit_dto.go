package dto

import (
	"time"

	"github.com/spec-kit/violation-service/internal/domain"
)

// AuditEventResponse response. Before and After are already redacted
// at write time, so they are safe to return as stored.
type AuditEventResponse struct {
	ID          string             `json:"id"`
	ActorID     *string            `json:"actor_id"`
	ActorName   string             `json:"actor_name"`
	ActorEmail  string             `json:"actor_email"`
	Action      domain.AuditAction `json:"action"`
	Entity      string             `json:"entity"`
	EntityID    *string            `json:"entity_id"`
	Description string             `json:"description"`
	Before      map[string]any     `json:"before"`
	After       map[string]any     `json:"after"`
	IP          string             `json:"ip"`
	UserAgent   string             `json:"user_agent"`
	Sensitive   bool               `json:"sensitive"`
	CreatedAt   time.Time          `json:"created_at"`
}
