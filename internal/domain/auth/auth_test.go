package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cafepos/internal/core/apperror"
	"cafepos/internal/domain/auth"
	"cafepos/internal/infrastructure/storage/memory"
)

func newService(s *memory.Store) *auth.Service {
	cfg := auth.DefaultServiceConfig()
	cfg.MaxLoginAttempts = 3
	return auth.NewService(s.Users(), s.Tokens(), auth.NewJWTService(auth.DefaultJWTConfig("test-secret")), cfg)
}

func TestJWT_RoundTrip(t *testing.T) {
	svc := auth.NewJWTService(auth.DefaultJWTConfig("test-secret"))
	user := auth.NewUser("maria", "x", auth.RoleAdmin)

	token, expiresAt, err := svc.GenerateAccessToken(user)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(12*time.Hour), expiresAt, time.Minute)

	uc, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, uc.ID)
	assert.Equal(t, "maria", uc.Username)
	assert.Equal(t, auth.RoleAdmin, uc.Role)
	assert.True(t, uc.Superuser)

	other := auth.NewJWTService(auth.DefaultJWTConfig("another-secret"))
	_, err = other.ValidateToken(token)
	assert.Error(t, err)

	cfg := auth.DefaultJWTConfig("test-secret")
	cfg.Issuer = "someone-else"
	_, err = auth.NewJWTService(cfg).ValidateToken(token)
	assert.Error(t, err)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	svc := newService(s)

	user, err := svc.CreateStaff(ctx, auth.NewStaff{Username: "joe", Password: "correct-horse", Role: auth.RoleCashier})
	require.NoError(t, err)
	assert.NotEqual(t, "correct-horse", user.PasswordHash)

	_, err = svc.CreateStaff(ctx, auth.NewStaff{Username: "JOE", Password: "correct-horse", Role: auth.RoleCashier})
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))
	_, err = svc.CreateStaff(ctx, auth.NewStaff{Username: "ann", Password: "short", Role: auth.RoleCashier})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
	_, err = svc.CreateStaff(ctx, auth.NewStaff{Username: "ann", Password: "long-enough", Role: "owner"})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	pair, logged, err := svc.Login(ctx, auth.Credentials{Username: "joe", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, logged.ID)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.NotEmpty(t, pair.RefreshToken)

	stored, err := s.Users().GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLoginAt)

	_, _, err = svc.Login(ctx, auth.Credentials{Username: "nobody", Password: "x"})
	assert.True(t, apperror.HasCode(err, apperror.CodeUnauthorized))
}

func TestLogin_LocksAfterFailedAttempts(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	svc := newService(s)

	_, err := svc.CreateStaff(ctx, auth.NewStaff{Username: "joe", Password: "correct-horse", Role: auth.RoleCashier})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, _, err = svc.Login(ctx, auth.Credentials{Username: "joe", Password: "wrong"})
		assert.True(t, apperror.HasCode(err, apperror.CodeUnauthorized))
	}

	_, _, err = svc.Login(ctx, auth.Credentials{Username: "joe", Password: "correct-horse"})
	assert.True(t, apperror.HasCode(err, apperror.CodeForbidden))
}

func TestRefreshToken_Rotates(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	svc := newService(s)

	user, err := svc.CreateStaff(ctx, auth.NewStaff{Username: "joe", Password: "correct-horse", Role: auth.RoleCashier})
	require.NoError(t, err)
	pair, _, err := svc.Login(ctx, auth.Credentials{Username: "joe", Password: "correct-horse"})
	require.NoError(t, err)

	next, err := svc.RefreshToken(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	_, err = svc.RefreshToken(ctx, pair.RefreshToken)
	assert.True(t, apperror.HasCode(err, apperror.CodeUnauthorized), "a used refresh token is revoked")

	require.NoError(t, svc.Logout(ctx, user.ID))
	_, err = svc.RefreshToken(ctx, next.RefreshToken)
	assert.True(t, apperror.HasCode(err, apperror.CodeUnauthorized))

	n, err := svc.CleanupExpiredTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestArchive_BlocksLoginAndRefresh(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	svc := newService(s)

	admin, err := svc.CreateStaff(ctx, auth.NewStaff{Username: "boss", Password: "correct-horse", Role: auth.RoleAdmin})
	require.NoError(t, err)
	joe, err := svc.CreateStaff(ctx, auth.NewStaff{Username: "joe", Password: "correct-horse", Role: auth.RoleCashier})
	require.NoError(t, err)
	pair, _, err := svc.Login(ctx, auth.Credentials{Username: "joe", Password: "correct-horse"})
	require.NoError(t, err)

	_, err = svc.Archive(ctx, admin.ID, admin.ID)
	assert.True(t, apperror.HasCode(err, "SELF_ARCHIVE"))

	archived, err := svc.Archive(ctx, joe.ID, admin.ID)
	require.NoError(t, err)
	assert.True(t, archived.IsArchived)

	_, _, err = svc.Login(ctx, auth.Credentials{Username: "joe", Password: "correct-horse"})
	assert.True(t, apperror.HasCode(err, apperror.CodeForbidden))
	_, err = svc.RefreshToken(ctx, pair.RefreshToken)
	assert.True(t, apperror.HasCode(err, apperror.CodeUnauthorized))

	_, err = svc.Unarchive(ctx, joe.ID)
	require.NoError(t, err)
	_, _, err = svc.Login(ctx, auth.Credentials{Username: "joe", Password: "correct-horse"})
	assert.NoError(t, err)
}

func TestUpdateStaff(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	svc := newService(s)

	admin, err := svc.CreateStaff(ctx, auth.NewStaff{Username: "boss", Password: "correct-horse", Role: auth.RoleAdmin})
	require.NoError(t, err)
	joe, err := svc.CreateStaff(ctx, auth.NewStaff{Username: "joe", Password: "correct-horse", Role: auth.RoleCashier})
	require.NoError(t, err)

	demote := auth.RoleCashier
	_, err = svc.UpdateStaff(ctx, admin.ID, auth.StaffUpdate{Role: &demote}, admin.ID)
	assert.True(t, apperror.HasCode(err, "SELF_ROLE_CHANGE"))

	phone, promote, password := "0917 555 0101", auth.RoleAdmin, "new-password"
	updated, err := svc.UpdateStaff(ctx, joe.ID, auth.StaffUpdate{Phone: &phone, Role: &promote, Password: &password}, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, "0917 555 0101", updated.Phone)
	assert.Equal(t, auth.RoleAdmin, updated.Role)

	_, _, err = svc.Login(ctx, auth.Credentials{Username: "joe", Password: "correct-horse"})
	assert.True(t, apperror.HasCode(err, apperror.CodeUnauthorized))
	_, _, err = svc.Login(ctx, auth.Credentials{Username: "joe", Password: "new-password"})
	assert.NoError(t, err)

	bad := "owner"
	_, err = svc.UpdateStaff(ctx, joe.ID, auth.StaffUpdate{Role: &bad}, admin.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestListStaff(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	svc := newService(s)

	for _, in := range []auth.NewStaff{
		{Username: "boss", Password: "correct-horse", Role: auth.RoleAdmin, FullName: "Ana Reyes"},
		{Username: "joe", Password: "correct-horse", Role: auth.RoleCashier},
		{Username: "mia", Password: "correct-horse", Role: auth.RoleCashier, Email: "mia@cafe.test"},
	} {
		_, err := svc.CreateStaff(ctx, in)
		require.NoError(t, err)
	}
	mia, err := s.Users().GetByUsername(ctx, "mia")
	require.NoError(t, err)
	boss, err := s.Users().GetByUsername(ctx, "boss")
	require.NoError(t, err)
	_, err = svc.Archive(ctx, mia.ID, boss.ID)
	require.NoError(t, err)

	cashiers, total, err := svc.ListStaff(ctx, auth.UserFilter{Role: auth.RoleCashier})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, cashiers, 1)
	assert.Equal(t, "joe", cashiers[0].Username)

	found, total, err := svc.ListStaff(ctx, auth.UserFilter{Search: "CAFE.TEST", IncludeArchived: true})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "mia", found[0].Username)

	found, _, err = svc.ListStaff(ctx, auth.UserFilter{Search: "reyes"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "boss", found[0].Username)

	_, _, err = svc.ListStaff(ctx, auth.UserFilter{Role: "owner"})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestJWT_ExpiredTokenSaysSo(t *testing.T) {
	cfg := auth.DefaultJWTConfig("test-secret")
	cfg.AccessTokenTTL = -time.Minute
	cfg.Leeway = 0
	svc := auth.NewJWTService(cfg)

	token, _, err := svc.GenerateAccessToken(auth.NewUser("maria", "x", auth.RoleCashier))
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeUnauthorized))
	assert.Contains(t, err.Error(), "token expired")
}

func TestJWT_RejectsOtherAudience(t *testing.T) {
	token, _, err := auth.NewJWTService(auth.DefaultJWTConfig("test-secret")).
		GenerateAccessToken(auth.NewUser("maria", "x", auth.RoleCashier))
	require.NoError(t, err)

	cfg := auth.DefaultJWTConfig("test-secret")
	cfg.Audience = "back-office"
	_, err = auth.NewJWTService(cfg).ValidateToken(token)
	assert.Error(t, err)
}
