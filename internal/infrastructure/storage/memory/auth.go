package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"cafepos/internal/core/apperror"
	"cafepos/internal/core/id"
	"cafepos/internal/domain/auth"
)

// UserRepo implements auth.UserRepository.
type UserRepo struct{ s *Store }

// Users returns the user repository.
func (s *Store) Users() *UserRepo { return &UserRepo{s: s} }

var _ auth.UserRepository = (*UserRepo)(nil)

func (r *UserRepo) Create(ctx context.Context, u *auth.User) error {
	return r.s.write(ctx, func(d *data) error {
		for _, v := range d.users {
			if strings.EqualFold(v.Username, u.Username) {
				return apperror.NewDuplicate("user", "username", u.Username)
			}
		}
		d.users[u.ID] = *u
		return nil
	})
}

func (r *UserRepo) GetByID(ctx context.Context, userID id.ID) (*auth.User, error) {
	var out *auth.User
	r.s.read(ctx, func(d *data) {
		if v, ok := d.users[userID]; ok {
			out = &v
		}
	})
	if out == nil {
		return nil, apperror.NewNotFound("user", userID)
	}
	return out, nil
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	var out *auth.User
	r.s.read(ctx, func(d *data) {
		for _, v := range d.users {
			if strings.EqualFold(v.Username, username) {
				v := v
				out = &v
				return
			}
		}
	})
	if out == nil {
		return nil, apperror.NewNotFound("user", username)
	}
	return out, nil
}

func (r *UserRepo) Update(ctx context.Context, u *auth.User) error {
	return r.s.write(ctx, func(d *data) error {
		if _, ok := d.users[u.ID]; !ok {
			return apperror.NewNotFound("user", u.ID)
		}
		u.Touch()
		d.users[u.ID] = *u
		return nil
	})
}

func (r *UserRepo) Exists(ctx context.Context, username string) (bool, error) {
	found := false
	r.s.read(ctx, func(d *data) {
		for _, v := range d.users {
			if strings.EqualFold(v.Username, username) {
				found = true
				return
			}
		}
	})
	return found, nil
}

func (r *UserRepo) List(ctx context.Context, filter auth.UserFilter) ([]*auth.User, int, error) {
	term := strings.ToLower(strings.TrimSpace(filter.Search))
	var matched []*auth.User
	r.s.read(ctx, func(d *data) {
		for _, v := range d.users {
			if v.IsArchived && !filter.IncludeArchived {
				continue
			}
			if filter.Role != "" && v.Role != filter.Role {
				continue
			}
			if term != "" && !containsFold(term, v.Username, v.Email, v.FullName) {
				continue
			}
			v := v
			matched = append(matched, &v)
		}
	})
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return id.Less(matched[i].ID, matched[j].ID)
	})
	return paginate(matched, filter.Limit, filter.Offset), len(matched), nil
}

func containsFold(term string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}

// TokenRepo implements auth.TokenRepository.
type TokenRepo struct{ s *Store }

// Tokens returns the refresh token repository.
func (s *Store) Tokens() *TokenRepo { return &TokenRepo{s: s} }

var _ auth.TokenRepository = (*TokenRepo)(nil)

func (r *TokenRepo) SaveRefreshToken(ctx context.Context, t *auth.RefreshToken) error {
	return r.s.write(ctx, func(d *data) error {
		d.tokens[t.TokenHash] = *t
		return nil
	})
}

func (r *TokenRepo) GetRefreshToken(ctx context.Context, hash string) (*auth.RefreshToken, error) {
	var out *auth.RefreshToken
	r.s.read(ctx, func(d *data) {
		if v, ok := d.tokens[hash]; ok {
			out = &v
		}
	})
	if out == nil {
		return nil, apperror.NewNotFound("refresh token", "")
	}
	return out, nil
}

func (r *TokenRepo) RevokeRefreshToken(ctx context.Context, tokenID id.ID, reason string) error {
	return r.revoke(ctx, func(t auth.RefreshToken) bool { return t.ID == tokenID }, reason)
}

func (r *TokenRepo) RevokeAllUserTokens(ctx context.Context, userID id.ID, reason string) error {
	return r.revoke(ctx, func(t auth.RefreshToken) bool { return t.UserID == userID }, reason)
}

func (r *TokenRepo) CleanupExpiredTokens(ctx context.Context) (int, error) {
	n := 0
	err := r.s.write(ctx, func(d *data) error {
		now := time.Now()
		for k, v := range d.tokens {
			if v.ExpiresAt.Before(now) {
				delete(d.tokens, k)
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *TokenRepo) revoke(ctx context.Context, match func(auth.RefreshToken) bool, reason string) error {
	return r.s.write(ctx, func(d *data) error {
		now := time.Now()
		for k, v := range d.tokens {
			if match(v) && v.RevokedAt == nil {
				v.RevokedAt = &now
				v.RevokedReason = &reason
				d.tokens[k] = v
			}
		}
		return nil
	})
}
