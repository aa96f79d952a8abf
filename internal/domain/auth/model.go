// Package auth manages cafe staff accounts: login, JWT issuance and the
// admin's staff list.
package auth

import (
	"context"
	"strings"
	"time"

	"cafepos/internal/core/apperror"
	"cafepos/internal/core/entity"
	"cafepos/internal/core/id"
)

// Staff roles. Admins manage the menu, stock and staff; cashiers run the till.
const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)

// ValidRole reports whether r is a known role.
func ValidRole(r string) bool {
	return r == RoleAdmin || r == RoleCashier
}

// User is a staff account. Archived accounts keep their history but cannot
// log in.
type User struct {
	ID                  id.ID      `db:"id" json:"id"`
	Username            string     `db:"username" json:"username"`
	Email               string     `db:"email" json:"email,omitempty"`
	PasswordHash        string     `db:"password_hash" json:"-"`
	FullName            string     `db:"full_name" json:"fullName,omitempty"`
	Phone               string     `db:"phone" json:"phone,omitempty"`
	Role                string     `db:"role" json:"role"`
	IsArchived          bool       `db:"is_archived" json:"isArchived"`
	LastLoginAt         *time.Time `db:"last_login_at" json:"lastLoginAt,omitempty"`
	FailedLoginAttempts int        `db:"failed_login_attempts" json:"-"`
	LockedUntil         *time.Time `db:"locked_until" json:"-"`
	entity.Timestamps
}

// NewUser creates an active staff account.
func NewUser(username, passwordHash, role string) *User {
	return &User{
		ID:           id.New(),
		Username:     strings.TrimSpace(username),
		PasswordHash: passwordHash,
		Role:         role,
		Timestamps:   entity.NewTimestamps(),
	}
}

// Validate implements entity.Validatable.
func (u *User) Validate(ctx context.Context) error {
	if u.Username == "" {
		return apperror.NewValidation("username is required").WithDetail("field", "username")
	}
	if !ValidRole(u.Role) {
		return apperror.NewValidation("invalid role").WithDetail("field", "role").WithDetail("value", u.Role)
	}
	if u.Email != "" && !strings.Contains(u.Email, "@") {
		return apperror.NewValidation("invalid email").WithDetail("field", "email")
	}
	return nil
}

// IsLocked reports a lockout after too many failed logins.
func (u *User) IsLocked() bool {
	return u.LockedUntil != nil && time.Now().Before(*u.LockedUntil)
}

// CanLogin rejects archived and locked accounts.
func (u *User) CanLogin() error {
	if u.IsArchived {
		return apperror.NewForbidden("account is archived, contact an administrator")
	}
	if u.IsLocked() {
		return apperror.NewForbidden("account is temporarily locked")
	}
	return nil
}

// RecordFailedLogin counts a wrong password and locks the account for
// lockFor once maxAttempts is reached.
func (u *User) RecordFailedLogin(maxAttempts int, lockFor time.Duration) {
	u.FailedLoginAttempts++
	if u.FailedLoginAttempts >= maxAttempts {
		until := time.Now().Add(lockFor)
		u.LockedUntil = &until
	}
}

// RecordSuccessfulLogin clears the lockout state.
func (u *User) RecordSuccessfulLogin() {
	now := entity.Now()
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	u.LastLoginAt = &now
}

// NewStaff is the input for creating a staff account.
type NewStaff struct {
	Username string
	Password string
	Role     string
	Email    string
	FullName string
	Phone    string
}

// StaffUpdate changes the non-nil fields of an account. A new password
// signs the user out everywhere.
type StaffUpdate struct {
	Email    *string
	FullName *string
	Phone    *string
	Role     *string
	Password *string
}

// UserFilter narrows the staff list. Search matches username, email and
// full name case-insensitively.
type UserFilter struct {
	Role            string
	Search          string
	IncludeArchived bool
	Limit           int
	Offset          int
}

// RefreshToken is a stored refresh token. Only its hash is kept.
type RefreshToken struct {
	ID            id.ID      `db:"id"`
	UserID        id.ID      `db:"user_id"`
	TokenHash     string     `db:"token_hash"`
	ExpiresAt     time.Time  `db:"expires_at"`
	CreatedAt     time.Time  `db:"created_at"`
	RevokedAt     *time.Time `db:"revoked_at"`
	RevokedReason *string    `db:"revoked_reason"`
}

// IsValid reports an unrevoked, unexpired token.
func (t *RefreshToken) IsValid() bool {
	return t.RevokedAt == nil && time.Now().Before(t.ExpiresAt)
}

// TokenPair is returned by login and refresh.
type TokenPair struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	TokenType    string    `json:"tokenType"`
}

// Credentials for login.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
