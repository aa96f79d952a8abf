package auth_repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cafepos/internal/domain/auth"
)

func TestUsernameMatch_IsCaseInsensitive(t *testing.T) {
	sql, args, err := usernameMatch("  Barista ").ToSql()
	require.NoError(t, err)

	assert.Equal(t, "lower(username) = ?", sql)
	assert.Equal(t, []any{"barista"}, args)
}

func TestUserFilterWhere(t *testing.T) {
	sql, args, err := userFilterWhere(auth.UserFilter{Role: auth.RoleCashier, Search: " Ana "}).ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"(is_archived = ? AND role = ? AND (lower(username) LIKE ? OR lower(email) LIKE ? OR lower(full_name) LIKE ?))",
		sql)
	assert.Equal(t, []any{false, "cashier", "%ana%", "%ana%", "%ana%"}, args)
}

func TestUserFilterWhere_IncludeArchived(t *testing.T) {
	sql, args, err := userFilterWhere(auth.UserFilter{IncludeArchived: true}).ToSql()
	require.NoError(t, err)

	assert.Equal(t, "(1=1)", sql)
	assert.Empty(t, args)
}
