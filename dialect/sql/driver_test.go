package sql

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/uow/dialect"
)

func TestOpenDB(t *testing.T) {
	tests := []struct {
		name    string
		dialect string
		want    string
	}{
		{"Postgres", dialect.Postgres, dialect.Postgres},
		{"MySQL", dialect.MySQL, dialect.MySQL},
		{"SQLite", dialect.SQLite, dialect.SQLite},
		{"SQLite3", "sqlite3", dialect.SQLite},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, _, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			drv := OpenDB(tt.dialect, db)
			assert.NotNil(t, drv)
			assert.Equal(t, tt.want, drv.Dialect())
			assert.Same(t, db, drv.DB())
		})
	}
}

func TestOpen_MySQL(t *testing.T) {
	_, err := Open(dialect.MySQL, "not a dsn")
	require.Error(t, err)
}

func TestDriverQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.Postgres, db)

	mock.ExpectQuery("SELECT id, name FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(1, "Alice").
			AddRow(2, []byte("Bob")))
	rows := &Rows{}
	require.NoError(t, drv.Query(context.Background(), "SELECT id, name FROM users", []any{}, rows))
	maps, err := ScanMaps(rows)
	require.NoError(t, err)
	require.Len(t, maps, 2)
	assert.EqualValues(t, 1, maps[0]["id"])
	assert.Equal(t, []byte("Bob"), maps[1]["name"])
	require.NoError(t, mock.ExpectationsWereMet())

	err = drv.Query(context.Background(), "SELECT 1", []any{}, nil)
	assert.ErrorContains(t, err, "invalid type")
	err = drv.Query(context.Background(), "SELECT 1", 1, rows)
	assert.ErrorContains(t, err, "expect []any")
}

func TestDriverExec(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.Postgres, db)

	mock.ExpectExec("UPDATE users").WillReturnResult(sqlmock.NewResult(0, 2))
	var res Result
	require.NoError(t, drv.Exec(context.Background(), "UPDATE users SET name = $1", []any{"a"}, &res))
	n, err := res.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	mock.ExpectExec("DELETE").WillReturnError(errors.New("boom"))
	err = drv.Exec(context.Background(), "DELETE FROM users", []any{}, nil)
	require.ErrorContains(t, err, "boom")
	require.NoError(t, mock.ExpectationsWereMet())

	err = drv.Exec(context.Background(), "DELETE FROM users", []any{}, new(int))
	assert.ErrorContains(t, err, "invalid type")
}

func TestDriverTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.Postgres, db)

	t.Run("commit", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		tx, err := drv.Tx(context.Background())
		require.NoError(t, err)
		require.NoError(t, tx.Exec(context.Background(), "INSERT INTO users (name) VALUES ($1)", []any{"a"}, nil))
		require.NoError(t, tx.Commit())
		require.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("rollback", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO users").WillReturnError(errors.New("error"))
		mock.ExpectRollback()

		tx, err := drv.Tx(context.Background())
		require.NoError(t, err)
		require.Error(t, tx.Exec(context.Background(), "INSERT INTO users (name) VALUES ($1)", []any{"a"}, nil))
		require.NoError(t, tx.Rollback())
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStatsDriver(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	var slow []string
	drv := NewStatsDriver(OpenDB(dialect.SQLite, db),
		WithSlowThreshold(-1),
		WithSlowQueryHook(func(_ context.Context, query string, _ []any, _ time.Duration) {
			slow = append(slow, query)
		}),
	)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("DELETE").WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	tx, err := drv.Tx(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Exec(context.Background(), "INSERT INTO t DEFAULT VALUES", []any{}, nil))
	require.Error(t, tx.Exec(context.Background(), "DELETE FROM t", []any{}, nil))
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())

	stats := drv.QueryStats().Stats()
	assert.Equal(t, int64(2), stats.TotalExecs)
	assert.Equal(t, int64(1), stats.Errors)
	assert.Equal(t, int64(1), stats.Rollbacks)
	assert.Equal(t, int64(2), stats.SlowQueries)
	assert.Equal(t, []string{"INSERT INTO t DEFAULT VALUES", "DELETE FROM t"}, slow)
	assert.Contains(t, stats.String(), "execs=2")

	drv.SetSlowThreshold(time.Second)
	assert.Equal(t, time.Second, drv.SlowThreshold())
	drv.QueryStats().Reset()
	assert.Zero(t, drv.QueryStats().Stats().TotalExecs)
}

func TestDebugDriver(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	var buf bytes.Buffer
	drv := NewDebugDriver(OpenDB(dialect.SQLite, db), slog.New(slog.NewTextHandler(&buf, nil)))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := drv.Tx(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Exec(context.Background(), `UPDATE "t" SET "c" = ?`, []any{1}, nil))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())

	out := buf.String()
	assert.Contains(t, out, "begin transaction")
	assert.Contains(t, out, `msg="tx exec"`)
	assert.Contains(t, out, "commit transaction")
}
