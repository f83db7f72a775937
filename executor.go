package uow

import (
	"context"
	"fmt"
	"strings"
)

// StatementKind is the kind of a write statement.
type StatementKind uint8

// Statement kinds.
const (
	Insert StatementKind = iota + 1
	Update
	Delete
)

// String returns the SQL verb of the statement kind.
func (k StatementKind) String() string {
	switch k {
	case Insert:
		return "INSERT"
	case Update:
		return "UPDATE"
	case Delete:
		return "DELETE"
	default:
		return fmt.Sprintf("StatementKind(%d)", k)
	}
}

// Statement is a write statement produced by a flush.
//
//   - Insert: Columns/Values are the inserted row; Returning lists the
//     database generated columns.
//   - Update: Columns/Values are the SET clause; Keys holds one key.
//   - Delete: Keys holds one or more keys.
//
// Keys are matched on KeyColumns. Statements with more than one key match
// any of them.
type Statement struct {
	Kind       StatementKind
	Table      string
	Columns    []string
	Values     []any
	KeyColumns []string
	Keys       [][]any
	Returning  []string
}

// String returns a readable form of the statement, used in logs and errors.
func (s *Statement) String() string {
	var b strings.Builder
	b.WriteString(s.Kind.String())
	b.WriteByte(' ')
	b.WriteString(s.Table)
	if len(s.Columns) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(s.Columns, ", "))
	}
	if len(s.Keys) > 0 {
		fmt.Fprintf(&b, " WHERE %s IN %v", strings.Join(s.KeyColumns, ", "), s.Keys)
	}
	if len(s.Returning) > 0 {
		fmt.Fprintf(&b, " RETURNING %s", strings.Join(s.Returning, ", "))
	}
	return b.String()
}

// Result is the outcome of an executed statement.
type Result struct {
	// GeneratedKeys holds the values of the Returning columns of an insert.
	GeneratedKeys []any
	// RowsAffected is the number of rows matched by the statement.
	RowsAffected int64
}

// Executor executes write statements. Implementations map storage errors
// to ConstraintError, ConnectivityError and TimeoutError.
type Executor interface {
	Execute(context.Context, *Statement) (*Result, error)
}

// ExecFunc is an adapter to allow the use of ordinary functions as Executor.
type ExecFunc func(context.Context, *Statement) (*Result, error)

// Execute calls f(ctx, s).
func (f ExecFunc) Execute(ctx context.Context, s *Statement) (*Result, error) {
	return f(ctx, s)
}

// ConcurrentExecutor is implemented by executors that accept statements
// from several goroutines at once.
type ConcurrentExecutor interface {
	Executor
	Concurrent() bool
}

// IsConcurrent reports if e may execute statements concurrently.
func IsConcurrent(e Executor) bool {
	c, ok := e.(ConcurrentExecutor)
	return ok && c.Concurrent()
}
