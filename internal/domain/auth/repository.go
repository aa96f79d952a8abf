package auth

import (
	"context"

	"cafepos/internal/core/id"
)

// UserRepository stores staff accounts. Usernames are unique ignoring case.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, userID id.ID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	Update(ctx context.Context, user *User) error
	Exists(ctx context.Context, username string) (bool, error)

	// List returns one page of accounts, oldest first, and the total match count.
	List(ctx context.Context, filter UserFilter) ([]*User, int, error)
}

// TokenRepository stores refresh token hashes.
type TokenRepository interface {
	SaveRefreshToken(ctx context.Context, token *RefreshToken) error
	GetRefreshToken(ctx context.Context, tokenHash string) (*RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, tokenID id.ID, reason string) error
	RevokeAllUserTokens(ctx context.Context, userID id.ID, reason string) error
	CleanupExpiredTokens(ctx context.Context) (int, error)
}
