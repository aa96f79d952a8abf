package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"cafepos/internal/core/apperror"
	"cafepos/internal/core/id"
	"cafepos/pkg/logger"
)

// ServiceConfig tunes password and lockout rules.
type ServiceConfig struct {
	MaxLoginAttempts   int
	LockDuration       time.Duration
	PasswordMinLength  int
	RefreshTokenExpiry time.Duration
}

// DefaultServiceConfig locks an account for 15 minutes after 5 wrong
// passwords; refresh tokens live 7 days.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxLoginAttempts:   5,
		LockDuration:       15 * time.Minute,
		PasswordMinLength:  8,
		RefreshTokenExpiry: 7 * 24 * time.Hour,
	}
}

const defaultStaffPageSize = 20

// Service handles staff login and account management.
type Service struct {
	users  UserRepository
	tokens TokenRepository
	jwt    *JWTService
	cfg    ServiceConfig
}

// NewService creates the service.
func NewService(users UserRepository, tokens TokenRepository, jwt *JWTService, cfg ServiceConfig) *Service {
	return &Service{users: users, tokens: tokens, jwt: jwt, cfg: cfg}
}

// CreateStaff stores a new account with a bcrypt password hash.
func (s *Service) CreateStaff(ctx context.Context, in NewStaff) (*User, error) {
	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := NewUser(in.Username, hash, in.Role)
	user.Email = strings.TrimSpace(in.Email)
	user.FullName = strings.TrimSpace(in.FullName)
	user.Phone = strings.TrimSpace(in.Phone)
	if err := user.Validate(ctx); err != nil {
		return nil, err
	}

	exists, err := s.users.Exists(ctx, user.Username)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if exists {
		return nil, apperror.NewDuplicate("user", "username", user.Username)
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	logger.Info(ctx, "staff account created", "staff_id", user.ID, "username", user.Username, "role", user.Role)
	return user, nil
}

// Login checks the password and issues a token pair. Wrong passwords count
// towards the lockout; unknown usernames get the same error.
func (s *Service) Login(ctx context.Context, creds Credentials) (*TokenPair, *User, error) {
	user, err := s.users.GetByUsername(ctx, creds.Username)
	if err != nil {
		return nil, nil, apperror.NewUnauthorized("invalid credentials")
	}
	if err := user.CanLogin(); err != nil {
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		user.RecordFailedLogin(s.cfg.MaxLoginAttempts, s.cfg.LockDuration)
		if err := s.users.Update(ctx, user); err != nil {
			logger.Warn(ctx, "record failed login", "staff_id", user.ID, "error", err)
		}
		return nil, nil, apperror.NewUnauthorized("invalid credentials")
	}

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	user.RecordSuccessfulLogin()
	if err := s.users.Update(ctx, user); err != nil {
		logger.Warn(ctx, "record login", "staff_id", user.ID, "error", err)
	}

	logger.Info(ctx, "staff logged in", "staff_id", user.ID, "role", user.Role)
	return tokens, user, nil
}

// RefreshToken rotates a refresh token: the old one is revoked and a new
// pair is issued.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	token, err := s.tokens.GetRefreshToken(ctx, hashToken(refreshToken))
	if err != nil || !token.IsValid() {
		return nil, apperror.NewUnauthorized("refresh token expired or revoked")
	}

	user, err := s.users.GetByID(ctx, token.UserID)
	if err != nil {
		return nil, apperror.NewUnauthorized("user not found")
	}
	if err := user.CanLogin(); err != nil {
		return nil, err
	}

	if err := s.tokens.RevokeRefreshToken(ctx, token.ID, "refreshed"); err != nil {
		return nil, fmt.Errorf("revoke refresh token: %w", err)
	}
	return s.issueTokens(ctx, user)
}

// Logout revokes every refresh token of the user.
func (s *Service) Logout(ctx context.Context, userID id.ID) error {
	return s.tokens.RevokeAllUserTokens(ctx, userID, "logout")
}

// GetUserByID returns one account.
func (s *Service) GetUserByID(ctx context.Context, userID id.ID) (*User, error) {
	return s.users.GetByID(ctx, userID)
}

// ListStaff returns a page of accounts and the total count.
func (s *Service) ListStaff(ctx context.Context, filter UserFilter) ([]*User, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultStaffPageSize
	}
	if filter.Role != "" && !ValidRole(filter.Role) {
		return nil, 0, apperror.NewValidation("invalid role").WithDetail("value", filter.Role)
	}
	return s.users.List(ctx, filter)
}

// UpdateStaff applies upd to an account. Admins cannot change their own
// role, so the last admin cannot lock everyone out.
func (s *Service) UpdateStaff(ctx context.Context, userID id.ID, upd StaffUpdate, actor id.ID) (*User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if upd.Email != nil {
		user.Email = strings.TrimSpace(*upd.Email)
	}
	if upd.FullName != nil {
		user.FullName = strings.TrimSpace(*upd.FullName)
	}
	if upd.Phone != nil {
		user.Phone = strings.TrimSpace(*upd.Phone)
	}
	if upd.Role != nil && *upd.Role != user.Role {
		if userID == actor {
			return nil, apperror.NewBusinessRule("SELF_ROLE_CHANGE", "you cannot change your own role")
		}
		user.Role = *upd.Role
	}
	passwordChanged := false
	if upd.Password != nil {
		hash, err := s.hashPassword(*upd.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
		user.FailedLoginAttempts = 0
		user.LockedUntil = nil
		passwordChanged = true
	}
	if err := user.Validate(ctx); err != nil {
		return nil, err
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	if passwordChanged {
		if err := s.tokens.RevokeAllUserTokens(ctx, userID, "password changed"); err != nil {
			return nil, fmt.Errorf("revoke tokens: %w", err)
		}
	}
	logger.Info(ctx, "staff account updated", "staff_id", userID, "password_changed", passwordChanged)
	return user, nil
}

// Archive disables an account and revokes its refresh tokens. Access tokens
// already issued stay valid until they expire.
func (s *Service) Archive(ctx context.Context, userID, actor id.ID) (*User, error) {
	if userID == actor {
		return nil, apperror.NewBusinessRule("SELF_ARCHIVE", "you cannot archive your own account")
	}
	user, err := s.setArchived(ctx, userID, true)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.RevokeAllUserTokens(ctx, userID, "archived"); err != nil {
		return nil, fmt.Errorf("revoke tokens: %w", err)
	}
	return user, nil
}

// Unarchive restores an archived account.
func (s *Service) Unarchive(ctx context.Context, userID id.ID) (*User, error) {
	return s.setArchived(ctx, userID, false)
}

func (s *Service) setArchived(ctx context.Context, userID id.ID, archived bool) (*User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.IsArchived == archived {
		return user, nil
	}
	user.IsArchived = archived
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	logger.Info(ctx, "staff archive state changed", "staff_id", userID, "archived", archived)
	return user, nil
}

// CleanupExpiredTokens removes expired refresh tokens.
func (s *Service) CleanupExpiredTokens(ctx context.Context) (int, error) {
	return s.tokens.CleanupExpiredTokens(ctx)
}

func (s *Service) hashPassword(password string) (string, error) {
	if len(password) < s.cfg.PasswordMinLength {
		return "", apperror.NewValidation(
			fmt.Sprintf("password must be at least %d characters", s.cfg.PasswordMinLength),
		).WithDetail("field", "password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (s *Service) issueTokens(ctx context.Context, user *User) (*TokenPair, error) {
	access, expiresAt, err := s.jwt.GenerateAccessToken(user)
	if err != nil {
		return nil, err
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	refresh := hex.EncodeToString(raw)

	now := time.Now()
	if err := s.tokens.SaveRefreshToken(ctx, &RefreshToken{
		ID:        id.New(),
		UserID:    user.ID,
		TokenHash: hashToken(refresh),
		ExpiresAt: now.Add(s.cfg.RefreshTokenExpiry),
		CreatedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("save refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
		TokenType:    "Bearer",
	}, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
