// Package auth_repo provides PostgreSQL implementations for auth repositories.
package auth_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"cafepos/internal/core/apperror"
	"cafepos/internal/core/id"
	"cafepos/internal/domain/auth"
	"cafepos/internal/infrastructure/storage/postgres"
)

const usersTable = "users"

var userColumns = []string{
	"id", "username", "email", "password_hash", "full_name", "phone", "role", "is_archived",
	"last_login_at", "failed_login_attempts", "locked_until", "created_at", "updated_at",
}

// UserRepo implements auth.UserRepository.
type UserRepo struct {
	txm *postgres.TxManager
}

var _ auth.UserRepository = (*UserRepo)(nil)

// NewUserRepo creates a user repository.
func NewUserRepo(txm *postgres.TxManager) *UserRepo {
	return &UserRepo{txm: txm}
}

func (r *UserRepo) Create(ctx context.Context, user *auth.User) error {
	sql, args, err := postgres.Builder().
		Insert(usersTable).
		Columns(userColumns...).
		Values(user.ID, user.Username, user.Email, user.PasswordHash, user.FullName, user.Phone, user.Role, user.IsArchived,
			user.LastLoginAt, user.FailedLoginAttempts, user.LockedUntil, user.CreatedAt, user.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if _, dup := postgres.UniqueViolation(err); dup {
			return apperror.NewDuplicate("user", "username", user.Username)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, userID id.ID) (*auth.User, error) {
	return r.getOne(ctx, squirrel.Expr("id = ?", userID), userID.String())
}

// GetByUsername matches case-insensitively, like the unique index.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	return r.getOne(ctx, usernameMatch(username), username)
}

func usernameMatch(username string) squirrel.Sqlizer {
	return squirrel.Expr("lower(username) = ?", strings.ToLower(strings.TrimSpace(username)))
}

func (r *UserRepo) getOne(ctx context.Context, where squirrel.Sqlizer, key string) (*auth.User, error) {
	sql, args, err := postgres.Builder().Select(userColumns...).From(usersTable).Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var user auth.User
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &user, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("user", key)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// Update stores profile, role, archive and login bookkeeping fields.
// The username and creation time never change.
func (r *UserRepo) Update(ctx context.Context, user *auth.User) error {
	user.Touch()
	sql, args, err := postgres.Builder().
		Update(usersTable).
		Set("email", user.Email).
		Set("full_name", user.FullName).
		Set("phone", user.Phone).
		Set("role", user.Role).
		Set("is_archived", user.IsArchived).
		Set("password_hash", user.PasswordHash).
		Set("last_login_at", user.LastLoginAt).
		Set("failed_login_attempts", user.FailedLoginAttempts).
		Set("locked_until", user.LockedUntil).
		Set("updated_at", user.UpdatedAt).
		Where("id = ?", user.ID).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("user", user.ID.String())
	}
	return nil
}

func (r *UserRepo) Exists(ctx context.Context, username string) (bool, error) {
	sql, args, err := postgres.Builder().
		Select("1").
		From(usersTable).
		Where(usernameMatch(username)).
		Prefix("SELECT EXISTS (").
		Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var exists bool
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return exists, nil
}

// List returns a page of accounts matching filter and the total count.
func (r *UserRepo) List(ctx context.Context, filter auth.UserFilter) ([]*auth.User, int, error) {
	where := userFilterWhere(filter)

	countSQL, countArgs, err := postgres.Builder().Select("count(*)").From(usersTable).Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count: %w", err)
	}
	var total int
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	q := postgres.Builder().Select(userColumns...).From(usersTable).Where(where).OrderBy("created_at", "id")
	sql, args, err := postgres.Paginate(q, filter.Limit, filter.Offset).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build query: %w", err)
	}
	var users []*auth.User
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &users, sql, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

func userFilterWhere(filter auth.UserFilter) squirrel.And {
	where := squirrel.And{}
	if !filter.IncludeArchived {
		where = append(where, squirrel.Eq{"is_archived": false})
	}
	if filter.Role != "" {
		where = append(where, squirrel.Eq{"role": filter.Role})
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		pattern := "%" + strings.ToLower(term) + "%"
		where = append(where, squirrel.Or{
			squirrel.Like{"lower(username)": pattern},
			squirrel.Like{"lower(email)": pattern},
			squirrel.Like{"lower(full_name)": pattern},
		})
	}
	return where
}
