package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportdesk-io/supportdesk/internal/auth"
	"github.com/supportdesk-io/supportdesk/internal/config"
	"github.com/supportdesk-io/supportdesk/internal/domain"
	"github.com/supportdesk-io/supportdesk/internal/repository"
	"github.com/supportdesk-io/supportdesk/pkg/errorutil"
)

func newAuthTestService(t *testing.T) (*AuthService, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	service := NewAuthService(
		config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 30, BcryptCost: 4},
		AuthDependencies{
			Users:  store.Users(),
			Tokens: auth.NewTokenManager("test-secret", 30),
		},
	)
	return service, store
}

func TestRegister(t *testing.T) {
	t.Run("creates an end-user and logs it in", func(t *testing.T) {
		service, _ := newAuthTestService(t)

		user, token, expiresAt, err := service.Register(context.Background(), "Pat Person", "pat@example.com", "correct-horse")
		require.NoError(t, err)
		assert.Equal(t, domain.RoleUser, user.Role)
		assert.Equal(t, domain.UserStatusActive, user.Status)
		assert.NotEqual(t, "correct-horse", user.PasswordHash)
		assert.NotEmpty(t, token)
		assert.False(t, expiresAt.IsZero())
	})

	t.Run("collects every payload problem at once", func(t *testing.T) {
		service, _ := newAuthTestService(t)

		_, _, _, err := service.Register(context.Background(), "  ", "not-an-email", "short")
		require.True(t, errorutil.IsCode(err, "VALIDATION_FAILED"))

		domainErr := errorutil.ToDomainError(err)
		assert.Contains(t, domainErr.Details, "name")
		assert.Contains(t, domainErr.Details, "email")
		assert.Contains(t, domainErr.Details, "password")
	})

	t.Run("duplicate email is a conflict", func(t *testing.T) {
		service, _ := newAuthTestService(t)
		ctx := context.Background()

		_, _, _, err := service.Register(ctx, "First", "dup@example.com", "long-enough")
		require.NoError(t, err)

		_, _, _, err = service.Register(ctx, "Second", "dup@example.com", "long-enough")
		assert.True(t, errorutil.IsCode(err, "CONFLICT"))
	})
}

func TestLogin(t *testing.T) {
	t.Run("answers missing accounts and bad passwords identically", func(t *testing.T) {
		service, _ := newAuthTestService(t)
		ctx := context.Background()

		_, _, _, err := service.Register(ctx, "Pat", "pat@example.com", "correct-horse")
		require.NoError(t, err)

		_, _, _, missingErr := service.Login(ctx, "ghost@example.com", "whatever-pw")
		_, _, _, wrongErr := service.Login(ctx, "pat@example.com", "wrong-password")

		require.True(t, errorutil.IsCode(missingErr, "UNAUTHORIZED"))
		require.True(t, errorutil.IsCode(wrongErr, "UNAUTHORIZED"))
		assert.Equal(t, errorutil.ToDomainError(missingErr).Message, errorutil.ToDomainError(wrongErr).Message)
	})

	t.Run("issues a role-bearing token", func(t *testing.T) {
		service, _ := newAuthTestService(t)
		ctx := context.Background()

		registered, _, _, err := service.Register(ctx, "Pat", "pat@example.com", "correct-horse")
		require.NoError(t, err)

		user, token, _, err := service.Login(ctx, "pat@example.com", "correct-horse")
		require.NoError(t, err)
		assert.Equal(t, registered.ID, user.ID)

		claims, err := auth.NewTokenManager("test-secret", 30).ParseToken(token)
		require.NoError(t, err)
		assert.Equal(t, user.ID, claims.SubjectID)
		assert.Equal(t, domain.RoleUser, claims.Role)
	})

	t.Run("suspended accounts cannot log in", func(t *testing.T) {
		service, store := newAuthTestService(t)
		ctx := context.Background()

		user, _, _, err := service.Register(ctx, "Pat", "pat@example.com", "correct-horse")
		require.NoError(t, err)
		user.Status = domain.UserStatusSuspended
		require.NoError(t, store.Users().Update(ctx, user))

		_, _, _, err = service.Login(ctx, "pat@example.com", "correct-horse")
		assert.True(t, errorutil.IsCode(err, "UNAUTHORIZED"))
	})
}

func TestCreateStaff(t *testing.T) {
	t.Run("admin provisions agents", func(t *testing.T) {
		service, store := newAuthTestService(t)
		admin := seedUser(t, store, "Root Admin", domain.RoleAdmin)

		agent, err := service.CreateStaff(context.Background(), admin, "New Agent", "agent@example.com", "long-enough", domain.RoleAgent)
		require.NoError(t, err)
		assert.Equal(t, domain.RoleAgent, agent.Role)
	})

	t.Run("non-admin callers are forbidden", func(t *testing.T) {
		service, store := newAuthTestService(t)
		agent := seedUser(t, store, "Almost Admin", domain.RoleAgent)

		_, err := service.CreateStaff(context.Background(), agent, "New Agent", "agent@example.com", "long-enough", domain.RoleAgent)
		assert.True(t, errorutil.IsCode(err, "FORBIDDEN"))
	})

	t.Run("the USER role is not provisionable here", func(t *testing.T) {
		service, store := newAuthTestService(t)
		admin := seedUser(t, store, "Root Admin", domain.RoleAdmin)

		_, err := service.CreateStaff(context.Background(), admin, "Sneaky", "sneaky@example.com", "long-enough", domain.RoleUser)
		require.True(t, errorutil.IsCode(err, "VALIDATION_FAILED"))
		assert.Contains(t, errorutil.ToDomainError(err).Details, "role")
	})
}
