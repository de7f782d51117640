package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/supportdesk-io/supportdesk/internal/auth"
	"github.com/supportdesk-io/supportdesk/internal/config"
	"github.com/supportdesk-io/supportdesk/internal/domain"
	"github.com/supportdesk-io/supportdesk/internal/repository"
	"github.com/supportdesk-io/supportdesk/pkg/errorutil"
)

// AuthService coordinates registration, login and staff provisioning
// against the unified users table.
type AuthService struct {
	users      repository.UserRepository
	tokens     *auth.TokenManager
	bcryptCost int
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	Users  repository.UserRepository
	Tokens *auth.TokenManager
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:      deps.Users,
		tokens:     deps.Tokens,
		bcryptCost: cfg.BcryptCost,
	}
}

// Register creates an end-user account and logs it in.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*domain.User, string, time.Time, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	details := credentialProblems(email, password)
	if name == "" {
		if details == nil {
			details = map[string]any{}
		}
		details["name"] = "required"
	}
	if details != nil {
		return nil, "", time.Time{}, errorutil.NewValidationError("invalid registration payload", details)
	}
	return s.createAccount(ctx, name, email, password, domain.RoleUser, true)
}

// Login authenticates any account and returns a role-bearing token.
// Missing accounts and bad passwords answer identically.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, string, time.Time, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", time.Time{}, errorutil.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, errorutil.ToDomainError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, errorutil.NewUnauthorized("invalid credentials")
	}
	if user.Status != domain.UserStatusActive {
		return nil, "", time.Time{}, errorutil.NewUnauthorized("account suspended")
	}

	token, exp, err := s.tokens.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, "", time.Time{}, errorutil.NewInternalError(err)
	}
	return user, token, exp, nil
}

// CreateStaff provisions an agent or admin account. Admin only.
func (s *AuthService) CreateStaff(ctx context.Context, actor domain.Actor, name, email, password string, role domain.Role) (*domain.User, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, errorutil.NewForbidden("admin role required")
	}
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	details := credentialProblems(email, password)
	if name == "" {
		if details == nil {
			details = map[string]any{}
		}
		details["name"] = "required"
	}
	if !role.IsStaff() {
		if details == nil {
			details = map[string]any{}
		}
		details["role"] = "must be AGENT or ADMIN"
	}
	if details != nil {
		return nil, errorutil.NewValidationError("invalid staff payload", details)
	}

	user, _, _, err := s.createAccount(ctx, name, email, password, role, false)
	return user, err
}

// createAccount inserts the user and optionally issues a login token.
func (s *AuthService) createAccount(ctx context.Context, name, email, password string, role domain.Role, issueToken bool) (*domain.User, string, time.Time, error) {
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, "", time.Time{}, errorutil.NewConflict("email already registered", map[string]any{"email": email})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, "", time.Time{}, errorutil.ToDomainError(err)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, "", time.Time{}, errorutil.NewInternalError(err)
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Status:       domain.UserStatusActive,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", time.Time{}, errorutil.ToDomainError(err)
	}

	if !issueToken {
		return user, "", time.Time{}, nil
	}
	token, exp, err := s.tokens.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, "", time.Time{}, errorutil.NewInternalError(err)
	}
	return user, token, exp, nil
}

func credentialProblems(email, password string) map[string]any {
	var details map[string]any
	add := func(field, problem string) {
		if details == nil {
			details = map[string]any{}
		}
		details[field] = problem
	}
	if email == "" {
		add("email", "required")
	} else if !strings.Contains(email, "@") {
		add("email", "invalid")
	}
	if password == "" {
		add("password", "required")
	} else if len(password) < 8 {
		add("password", "must be at least 8 characters")
	}
	return details
}
