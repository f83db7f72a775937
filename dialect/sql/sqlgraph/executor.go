// Package sqlgraph renders the statements of a flush with the dialect/sql
// builders and executes them on a dialect.ExecQuerier.
package sqlgraph

import (
	"context"
	"fmt"

	"github.com/syssam/uow"
	"github.com/syssam/uow/dialect"
	"github.com/syssam/uow/dialect/sql"
)

// Executor is a uow.Executor writing to a SQL database.
type Executor struct {
	eq         dialect.ExecQuerier
	dialect    string
	concurrent bool
}

// Option configures an Executor.
type Option func(*Executor)

// WithConcurrency reports the underlying connection as safe for
// statements from several goroutines, which allows a flush to run
// independent batches in parallel.
func WithConcurrency() Option {
	return func(e *Executor) {
		e.concurrent = true
	}
}

// NewExecutor returns an executor running statements on eq. Placeholders
// and identifier quoting follow the dialect name.
func NewExecutor(eq dialect.ExecQuerier, dialectName string, opts ...Option) *Executor {
	e := &Executor{eq: eq, dialect: dialect.Name(dialectName)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Concurrent implements uow.ConcurrentExecutor.
func (e *Executor) Concurrent() bool { return e.concurrent }

// Execute renders and runs s. Driver errors are classified with Classify.
func (e *Executor) Execute(ctx context.Context, s *uow.Statement) (*uow.Result, error) {
	var (
		res *uow.Result
		err error
	)
	switch s.Kind {
	case uow.Insert:
		res, err = e.insert(ctx, s)
	case uow.Update:
		b := sql.Dialect(e.dialect).Update(s.Table)
		for i, c := range s.Columns {
			b.Set(c, s.Values[i])
		}
		if len(s.Keys) > 0 {
			b.Where(sql.KeysIn(s.KeyColumns, s.Keys))
		}
		res, _, err = e.exec(ctx, b)
	case uow.Delete:
		b := sql.Dialect(e.dialect).Delete(s.Table)
		if len(s.Keys) > 0 {
			b.Where(sql.KeysIn(s.KeyColumns, s.Keys))
		}
		res, _, err = e.exec(ctx, b)
	default:
		return nil, fmt.Errorf("sqlgraph: unexpected statement kind %s", s.Kind)
	}
	if err != nil {
		return nil, Classify(err)
	}
	return res, nil
}

func (e *Executor) insert(ctx context.Context, s *uow.Statement) (*uow.Result, error) {
	b := sql.Dialect(e.dialect).Insert(s.Table).Columns(s.Columns...)
	if len(s.Columns) > 0 {
		b.Values(s.Values...)
	}
	// MySQL has no RETURNING clause; single generated keys are read with
	// LastInsertId.
	if len(s.Returning) == 0 || e.dialect == dialect.MySQL {
		res, sr, err := e.exec(ctx, b)
		if err != nil || len(s.Returning) == 0 {
			return res, err
		}
		if len(s.Returning) > 1 {
			return nil, fmt.Errorf("sqlgraph: %s returns %d columns, only one is supported by %s", s.Table, len(s.Returning), e.dialect)
		}
		id, err := sr.LastInsertId()
		if err != nil {
			return nil, err
		}
		res.GeneratedKeys = []any{id}
		return res, nil
	}
	query, args, err := b.Returning(s.Returning...).Query()
	if err != nil {
		return nil, err
	}
	var rows sql.Rows
	if err := e.eq.Query(ctx, query, args, &rows); err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("sqlgraph: insert into %s returned no rows", s.Table)
	}
	keys := make([]any, len(s.Returning))
	dest := make([]any, len(keys))
	for i := range keys {
		dest[i] = &keys[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}
	return &uow.Result{GeneratedKeys: keys, RowsAffected: 1}, rows.Close()
}

func (e *Executor) exec(ctx context.Context, q sql.Querier) (*uow.Result, sql.Result, error) {
	query, args, err := q.Query()
	if err != nil {
		return nil, nil, err
	}
	var res sql.Result
	if err := e.eq.Exec(ctx, query, args, &res); err != nil {
		return nil, nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, nil, err
	}
	return &uow.Result{RowsAffected: n}, res, nil
}

var _ uow.ConcurrentExecutor = (*Executor)(nil)
