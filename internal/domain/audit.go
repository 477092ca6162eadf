package domain

import "time"

// AuditAction enumerates auditable actions.
type AuditAction string

const (
	AuditActionCreation          AuditAction = "creation"
	AuditActionUpdate            AuditAction = "update"
	AuditActionDeletion          AuditAction = "deletion"
	AuditActionView              AuditAction = "view"
	AuditActionLogin             AuditAction = "login"
	AuditActionLogout            AuditAction = "logout"
	AuditActionAccessDenied      AuditAction = "access_denied"
	AuditActionStatusTransition  AuditAction = "status_transition"
	AuditActionFileUpload        AuditAction = "file_upload"
	AuditActionFileDownload      AuditAction = "file_download"
	AuditActionIntegrationSent   AuditAction = "integration_sent"
	AuditActionIntegrationFailed AuditAction = "integration_failed"
	AuditActionAppealFiled       AuditAction = "appeal_filed"
	AuditActionAppealJudged      AuditAction = "appeal_judged"
)

// IsSensitive reports whether the action touches personal data or is
// otherwise compliance-critical. Sensitive events are flagged for
// retention and operator review.
func (a AuditAction) IsSensitive() bool {
	switch a {
	case AuditActionView, AuditActionFileDownload, AuditActionDeletion,
		AuditActionAccessDenied, AuditActionIntegrationFailed:
		return true
	}
	return false
}

// AuditContext carries the request metadata stamped on every event.
type AuditContext struct {
	IP        string
	UserAgent string
}

// AuditEvent is an immutable compliance record. One event is written
// for every mutation and every read of personal data; events outlive
// the entities they describe.
type AuditEvent struct {
	ID          string
	ActorID     *string
	ActorName   string
	ActorEmail  string
	ActorRole   string
	Action      AuditAction
	Entity      string
	EntityID    *string
	Description string
	Before      map[string]any
	After       map[string]any
	IP          string
	UserAgent   string
	Sensitive   bool
	CreatedAt   time.Time
}
