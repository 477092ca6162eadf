package service

import (
	"context"
	"strings"
	"time"

	"github.com/spec-kit/violation-service/internal/auth"
	"github.com/spec-kit/violation-service/internal/config"
	"github.com/spec-kit/violation-service/internal/domain"
	"github.com/spec-kit/violation-service/internal/repository"
	"github.com/spec-kit/violation-service/pkg/errorutil"
)

// AuthService handles operator authentication. Every login attempt,
// successful or not, produces an audit event.
type AuthService struct {
	users  repository.UserRepository
	audit  *AuditService
	tokens *auth.TokenManager
	cfg    config.AuthConfig
}

// NewAuthService constructs the service.
func NewAuthService(cfg config.AuthConfig, users repository.UserRepository, audit *AuditService) *AuthService {
	return &AuthService{
		users:  users,
		audit:  audit,
		tokens: auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		cfg:    cfg,
	}
}

// TokenManager exposes the manager for middleware wiring.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokens
}

// LoginResult carries the issued token.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

// Login verifies credentials and issues a token.
func (s *AuthService) Login(ctx context.Context, email, password string, auditCtx domain.AuditContext) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errorutil.IsNotFound(err) {
			_, _ = s.audit.RecordLogin(ctx, domain.Actor{Email: email}, false, auditCtx)
			return nil, errorutil.NewUnauthorized("invalid credentials")
		}
		return nil, err
	}
	if !user.IsActive {
		_, _ = s.audit.RecordLogin(ctx, domain.ActorFromUser(user), false, auditCtx)
		return nil, errorutil.NewUnauthorized("user is inactive")
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		_, _ = s.audit.RecordLogin(ctx, domain.ActorFromUser(user), false, auditCtx)
		return nil, errorutil.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := s.tokens.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	if _, err := s.audit.RecordLogin(ctx, domain.ActorFromUser(user), true, auditCtx); err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Logout records the logout event. Tokens are stateless; expiry is the
// only revocation.
func (s *AuthService) Logout(ctx context.Context, actor domain.Actor, auditCtx domain.AuditContext) error {
	_, err := s.audit.RecordLogout(ctx, actor, auditCtx)
	return err
}

// RegisterInput describes a new operator account.
type RegisterInput struct {
	Name           string
	Email          string
	Password       string
	Role           domain.UserRole
	MunicipalityID string
}

// Register creates an operator account.
func (s *AuthService) Register(ctx context.Context, actor domain.Actor, input RegisterInput, auditCtx domain.AuditContext) (*domain.User, error) {
	if input.Name == "" || input.Email == "" || len(input.Password) < 8 {
		return nil, errorutil.NewValidationError("name, email and a password of at least 8 characters are required", nil)
	}

	hash, err := auth.HashPassword(input.Password, s.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		Name:           strings.TrimSpace(input.Name),
		Email:          strings.ToLower(strings.TrimSpace(input.Email)),
		PasswordHash:   hash,
		Role:           input.Role,
		MunicipalityID: input.MunicipalityID,
		IsActive:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	entityID := user.ID
	if _, err := s.audit.Record(ctx, AuditEventDraft{
		Actor:       actor,
		Action:      domain.AuditActionCreation,
		Entity:      "users",
		EntityID:    &entityID,
		Description: "Operator account created",
		After: map[string]any{
			"email":         user.Email,
			"role":          string(user.Role),
			"password_hash": user.PasswordHash,
		},
		Context: auditCtx,
	}); err != nil {
		return nil, err
	}
	return user, nil
}
