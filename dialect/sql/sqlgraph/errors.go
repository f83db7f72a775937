package sqlgraph

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"modernc.org/sqlite"

	"github.com/syssam/uow"
)

// PostgreSQL SQLSTATE codes for constraint violations (Class 23).
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgConnectionClass     = "08"
)

// MySQL error numbers for constraint violations.
const (
	mysqlDuplicateEntry         = 1062
	mysqlForeignKeyParent       = 1451 // Cannot delete or update a parent row
	mysqlForeignKeyChild        = 1452 // Cannot add or update a child row
	mysqlNotNull                = 1048
	mysqlCheckConstraintViolate = 3819
)

// SQLite result codes. Extended codes carry the primary code in the low byte.
const (
	sqliteConstraint           = 19
	sqliteConstraintUnique     = 2067
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintForeignKey = 787
	sqliteConstraintCheck      = 275
)

// Classify maps a driver error to the error types of the uow package:
// *uow.TimeoutError, uow.ConstraintError or *uow.ConnectivityError. Other
// errors are returned as is.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return &uow.TimeoutError{Err: err}
	case IsConstraintError(err):
		return uow.NewConstraintError(err.Error(), err)
	case isConnectivityError(err):
		return &uow.ConnectivityError{Err: err}
	default:
		return err
	}
}

// IsConstraintError returns true if the error resulted from a database constraint violation.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if uow.IsConstraintError(err) {
		return true
	}
	if e, ok := asError[*pq.Error](err); ok {
		return e.Code.Class() == "23"
	}
	if e, ok := asError[*mysql.MySQLError](err); ok {
		switch e.Number {
		case mysqlDuplicateEntry, mysqlForeignKeyParent, mysqlForeignKeyChild, mysqlNotNull, mysqlCheckConstraintViolate:
			return true
		}
		return false
	}
	if e, ok := asError[*sqlite.Error](err); ok {
		return e.Code()&0xff == sqliteConstraint
	}
	return IsUniqueConstraintError(err) ||
		IsForeignKeyConstraintError(err) ||
		IsCheckConstraintError(err)
}

// IsUniqueConstraintError reports if the error resulted from a DB uniqueness constraint violation.
// e.g. duplicate value in unique index.
func IsUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := asError[*pq.Error](err); ok {
		return e.Code == pgUniqueViolation
	}
	if e, ok := asError[*mysql.MySQLError](err); ok {
		return e.Number == mysqlDuplicateEntry
	}
	if e, ok := asError[*sqlite.Error](err); ok {
		return e.Code() == sqliteConstraintUnique || e.Code() == sqliteConstraintPrimaryKey
	}
	// Fallback to string matching for drivers without typed errors.
	return containsAny(err.Error(),
		"Error 1062",                 // MySQL (string fallback)
		"violates unique constraint", // Postgres (string fallback)
		"UNIQUE constraint failed",   // SQLite
	)
}

// IsForeignKeyConstraintError reports if the error resulted from a database foreign-key constraint violation.
// e.g. parent row does not exist.
func IsForeignKeyConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := asError[*pq.Error](err); ok {
		return e.Code == pgForeignKeyViolation
	}
	if e, ok := asError[*mysql.MySQLError](err); ok {
		return e.Number == mysqlForeignKeyParent || e.Number == mysqlForeignKeyChild
	}
	if e, ok := asError[*sqlite.Error](err); ok {
		return e.Code() == sqliteConstraintForeignKey
	}
	return containsAny(err.Error(),
		"Error 1451",                      // MySQL (Cannot delete or update a parent row)
		"Error 1452",                      // MySQL (Cannot add or update a child row)
		"violates foreign key constraint", // Postgres
		"FOREIGN KEY constraint failed",   // SQLite
	)
}

// IsCheckConstraintError reports if the error resulted from a database check constraint violation.
// e.g. a value does not satisfy a check condition.
func IsCheckConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := asError[*pq.Error](err); ok {
		return e.Code == pgCheckViolation
	}
	if e, ok := asError[*mysql.MySQLError](err); ok {
		return e.Number == mysqlCheckConstraintViolate
	}
	if e, ok := asError[*sqlite.Error](err); ok {
		return e.Code() == sqliteConstraintCheck
	}
	return containsAny(err.Error(),
		"Error 3819",                // MySQL
		"violates check constraint", // Postgres
		"CHECK constraint failed",   // SQLite
	)
}

// isConnectivityError reports if err means the storage could not be
// reached or the connection was lost.
func isConnectivityError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	if e, ok := asError[*pq.Error](err); ok {
		return e.Code.Class() == pgConnectionClass
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// asError attempts to extract an error of type T from the error chain.
func asError[T error](err error) (T, bool) {
	var target T
	ok := errors.As(err, &target)
	return target, ok
}

// containsAny returns true if s contains any of the substrings.
func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
