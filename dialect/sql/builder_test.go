package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/uow/dialect"
)

func TestBuilder(t *testing.T) {
	tests := []struct {
		input     Querier
		wantQuery string
		wantArgs  []any
	}{
		{
			input:     Dialect(dialect.Postgres).Insert("users").Columns("name", "age").Values("a8m", 10).Returning("id"),
			wantQuery: `INSERT INTO "users" ("name", "age") VALUES ($1, $2) RETURNING "id"`,
			wantArgs:  []any{"a8m", 10},
		},
		{
			input:     Dialect(dialect.MySQL).Insert("users").Columns("name").Values("a8m").Values("foo"),
			wantQuery: "INSERT INTO `users` (`name`) VALUES (?), (?)",
			wantArgs:  []any{"a8m", "foo"},
		},
		{
			input:     Dialect(dialect.SQLite).Insert("users"),
			wantQuery: `INSERT INTO "users" DEFAULT VALUES`,
		},
		{
			input:     Dialect(dialect.MySQL).Insert("users"),
			wantQuery: "INSERT INTO `users` () VALUES ()",
		},
		{
			input:     Dialect(dialect.Postgres).Update("users").Set("name", "foo").Set("parent_id", nil).Where(EQ("id", 1)),
			wantQuery: `UPDATE "users" SET "name" = $1, "parent_id" = $2 WHERE "id" = $3`,
			wantArgs:  []any{"foo", nil, 1},
		},
		{
			input:     Update("users").Set("age", 1).Where(EQ("id", 1)).Where(IsNull("deleted_at")),
			wantQuery: `UPDATE "users" SET "age" = ? WHERE ("id" = ?) AND ("deleted_at" IS NULL)`,
			wantArgs:  []any{1, 1},
		},
		{
			input:     Dialect(dialect.MySQL).Delete("users").Where(In("id", 1, 2, 3)),
			wantQuery: "DELETE FROM `users` WHERE `id` IN (?, ?, ?)",
			wantArgs:  []any{1, 2, 3},
		},
		{
			input:     Dialect(dialect.Postgres).Delete("user_groups").Where(KeysIn([]string{"user_id", "group_id"}, [][]any{{1, 2}, {3, 4}})),
			wantQuery: `DELETE FROM "user_groups" WHERE (("user_id" = $1) AND ("group_id" = $2)) OR (("user_id" = $3) AND ("group_id" = $4))`,
			wantArgs:  []any{1, 2, 3, 4},
		},
		{
			input:     Delete("public.users").Where(KeysIn([]string{"id"}, [][]any{{7}})),
			wantQuery: `DELETE FROM "public"."users" WHERE "id" = ?`,
			wantArgs:  []any{7},
		},
		{
			input:     Dialect(dialect.Postgres).Select("id", "name").From("users").Where(EQ("id", 1)).OrderBy("id"),
			wantQuery: `SELECT "id", "name" FROM "users" WHERE "id" = $1 ORDER BY "id"`,
			wantArgs:  []any{1},
		},
		{
			input:     Dialect(dialect.MySQL).Select().From("users"),
			wantQuery: "SELECT * FROM `users`",
		},
		{
			input:     Dialect("sqlite3").Update("t").Set("c", 1),
			wantQuery: `UPDATE "t" SET "c" = ?`,
			wantArgs:  []any{1},
		},
	}
	for _, tt := range tests {
		query, args, err := tt.input.Query()
		require.NoError(t, err)
		assert.Equal(t, tt.wantQuery, query)
		assert.Equal(t, tt.wantArgs, args)
	}
}

func TestBuilder_Errors(t *testing.T) {
	_, _, err := Insert("users; DROP TABLE users").Columns("name").Values(1).Query()
	assert.ErrorContains(t, err, "invalid identifier")

	_, _, err = Insert("users").Columns("a", "b").Values(1).Query()
	assert.ErrorContains(t, err, "2 columns, 1 values")

	_, _, err = Dialect(dialect.MySQL).Insert("users").Columns("a").Values(1).Returning("id").Query()
	assert.ErrorContains(t, err, "RETURNING")

	_, _, err = Update("users").Query()
	assert.Error(t, err)

	_, _, err = Delete("users").Where(In("id")).Query()
	assert.ErrorContains(t, err, "empty IN list")
}

func TestIsValidIdentifier(t *testing.T) {
	for s, want := range map[string]bool{
		"users":        true,
		"public.users": true,
		"_private":     true,
		"":             false,
		"1users":       false,
		"users name":   false,
		"users;--":     false,
	} {
		assert.Equal(t, want, isValidIdentifier(s), s)
	}
}
