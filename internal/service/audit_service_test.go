package service

import (
	"context"
	"testing"

	"github.com/spec-kit/violation-service/internal/domain"
	"github.com/spec-kit/violation-service/internal/repository"
	"github.com/spec-kit/violation-service/pkg/errorutil"
)

type memoryAuditRepo struct {
	events []domain.AuditEvent
}

func (r *memoryAuditRepo) Create(ctx context.Context, event *domain.AuditEvent) error {
	r.events = append(r.events, *event)
	return nil
}

func (r *memoryAuditRepo) ListWithFilter(ctx context.Context, filter repository.AuditFilter) ([]domain.AuditEvent, error) {
	return r.events, nil
}

func (r *memoryAuditRepo) CountByTicketAndAction(ctx context.Context, ticketID string, action domain.AuditAction) (int, error) {
	count := 0
	for _, event := range r.events {
		if event.Action == action && event.EntityID != nil && *event.EntityID == ticketID {
			count++
		}
	}
	return count, nil
}

func (r *memoryAuditRepo) Update(ctx context.Context, event *domain.AuditEvent) error {
	return errorutil.NewImmutableRecordViolation("audit_events")
}

func (r *memoryAuditRepo) Delete(ctx context.Context, id string) error {
	return errorutil.NewImmutableRecordViolation("audit_events")
}

func TestRecordRedactsSensitiveKeys(t *testing.T) {
	repo := &memoryAuditRepo{}
	svc := NewAuditService(repo)

	original := map[string]any{
		"password":      "hunter2",
		"password_hash": "$2a$10$abc",
		"api_token":     "secret-token",
		"email":         "officer@example.com",
	}
	event, err := svc.Record(context.Background(), AuditEventDraft{
		Actor:  domain.Actor{ID: "u1", Name: "Admin"},
		Action: domain.AuditActionCreation,
		Entity: "users",
		After:  original,
	})
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}

	for _, key := range []string{"password", "password_hash", "api_token"} {
		if event.After[key] != "[REDACTED]" {
			t.Errorf("key %s = %v, want [REDACTED]", key, event.After[key])
		}
	}
	if event.After["email"] != "officer@example.com" {
		t.Error("non-sensitive keys must survive redaction untouched")
	}
	// Redaction happens before storage, never on the caller's map.
	if original["password"] != "hunter2" {
		t.Error("redaction must not mutate the caller's snapshot")
	}
}

func TestRecordStampsSensitiveClassification(t *testing.T) {
	repo := &memoryAuditRepo{}
	svc := NewAuditService(repo)
	ctx := context.Background()

	cases := []struct {
		action    domain.AuditAction
		sensitive bool
	}{
		{domain.AuditActionView, true},
		{domain.AuditActionFileDownload, true},
		{domain.AuditActionDeletion, true},
		{domain.AuditActionAccessDenied, true},
		{domain.AuditActionCreation, false},
		{domain.AuditActionUpdate, false},
		{domain.AuditActionStatusTransition, false},
	}
	for _, tc := range cases {
		event, err := svc.Record(ctx, AuditEventDraft{
			Actor:  domain.Actor{ID: "u1"},
			Action: tc.action,
			Entity: "tickets",
		})
		if err != nil {
			t.Fatalf("record %s failed: %v", tc.action, err)
		}
		if event.Sensitive != tc.sensitive {
			t.Errorf("action %s: sensitive = %v, want %v", tc.action, event.Sensitive, tc.sensitive)
		}
	}
}

func TestRecordAttributesActor(t *testing.T) {
	repo := &memoryAuditRepo{}
	svc := NewAuditService(repo)

	event, err := svc.Record(context.Background(), AuditEventDraft{
		Actor:  domain.Actor{ID: "u1", Name: "Officer One", Email: "one@example.com", Role: domain.UserRoleOfficer},
		Action: domain.AuditActionCreation,
		Entity: "tickets",
	})
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if event.ActorID == nil || *event.ActorID != "u1" {
		t.Fatal("actor id must be recorded")
	}
	if event.ActorName != "Officer One" || event.ActorEmail != "one@example.com" {
		t.Fatal("actor name and email must be recorded")
	}

	// System actors without an id are stored with a null actor id.
	event, err = svc.Record(context.Background(), AuditEventDraft{
		Actor:  domain.Actor{Name: "integration-dispatcher"},
		Action: domain.AuditActionIntegrationSent,
		Entity: "tickets",
	})
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if event.ActorID != nil {
		t.Fatal("system actors must not get a synthetic actor id")
	}
}

func TestRecordLoginOutcomes(t *testing.T) {
	repo := &memoryAuditRepo{}
	svc := NewAuditService(repo)
	ctx := context.Background()
	actor := domain.Actor{ID: "u1", Name: "Officer One"}

	success, err := svc.RecordLogin(ctx, actor, true, domain.AuditContext{IP: "10.0.0.1"})
	if err != nil {
		t.Fatalf("record login failed: %v", err)
	}
	if success.Action != domain.AuditActionLogin || success.Sensitive {
		t.Fatalf("successful login = %s sensitive=%v", success.Action, success.Sensitive)
	}
	if success.IP != "10.0.0.1" {
		t.Fatal("request context must be carried onto the event")
	}

	failure, err := svc.RecordLogin(ctx, actor, false, domain.AuditContext{})
	if err != nil {
		t.Fatalf("record failed login failed: %v", err)
	}
	if failure.Action != domain.AuditActionAccessDenied || !failure.Sensitive {
		t.Fatalf("failed login = %s sensitive=%v, want access_denied sensitive", failure.Action, failure.Sensitive)
	}
}

func TestAuditRepositoryIsWriteOnce(t *testing.T) {
	repo := &memoryAuditRepo{}
	svc := NewAuditService(repo)
	ctx := context.Background()

	event, err := svc.Record(ctx, AuditEventDraft{
		Actor:  domain.Actor{ID: "u1"},
		Action: domain.AuditActionCreation,
		Entity: "tickets",
	})
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}

	if err := repo.Update(ctx, event); !errorutil.IsImmutableRecord(err) {
		t.Fatalf("update err = %v, want ImmutableRecordViolation", err)
	}
	if err := repo.Delete(ctx, event.ID); !errorutil.IsImmutableRecord(err) {
		t.Fatalf("delete err = %v, want ImmutableRecordViolation", err)
	}
	if len(repo.events) != 1 {
		t.Fatal("rejected mutations must leave the stored event unchanged")
	}
}
