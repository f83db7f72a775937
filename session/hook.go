package session

import (
	"context"

	"github.com/syssam/uow/dialect"
)

// Committer is the interface that wraps the Commit method.
type Committer interface {
	Commit(context.Context, dialect.Tx) error
}

// CommitFunc is an adapter to allow the use of ordinary function as Committer.
type CommitFunc func(context.Context, dialect.Tx) error

// Commit calls f(ctx, tx).
func (f CommitFunc) Commit(ctx context.Context, tx dialect.Tx) error {
	return f(ctx, tx)
}

// CommitHook defines the "commit middleware". A function that gets a Committer
// and returns a Committer. For example:
//
//	hook := func(next session.Committer) session.Committer {
//		return session.CommitFunc(func(ctx context.Context, tx dialect.Tx) error {
//			// Do something before.
//			if err := next.Commit(ctx, tx); err != nil {
//				return err
//			}
//			// Do something after.
//			return nil
//		})
//	}
type CommitHook func(Committer) Committer

// Rollbacker is the interface that wraps the Rollback method.
type Rollbacker interface {
	Rollback(context.Context, dialect.Tx) error
}

// RollbackFunc is an adapter to allow the use of ordinary function as Rollbacker.
type RollbackFunc func(context.Context, dialect.Tx) error

// Rollback calls f(ctx, tx).
func (f RollbackFunc) Rollback(ctx context.Context, tx dialect.Tx) error {
	return f(ctx, tx)
}

// RollbackHook defines the "rollback middleware". A function that gets a
// Rollbacker and returns a Rollbacker.
type RollbackHook func(Rollbacker) Rollbacker

// commit runs the commit hooks around the commit of tx. The first hook
// is the outermost.
func (s *Session) commit(ctx context.Context, tx dialect.Tx) error {
	var fn Committer = CommitFunc(func(context.Context, dialect.Tx) error {
		return tx.Commit()
	})
	for i := len(s.cfg.onCommit) - 1; i >= 0; i-- {
		fn = s.cfg.onCommit[i](fn)
	}
	return fn.Commit(ctx, tx)
}

// rollback runs the rollback hooks around the rollback of tx.
func (s *Session) rollback(ctx context.Context, tx dialect.Tx) error {
	var fn Rollbacker = RollbackFunc(func(context.Context, dialect.Tx) error {
		return tx.Rollback()
	})
	for i := len(s.cfg.onRollback) - 1; i >= 0; i-- {
		fn = s.cfg.onRollback[i](fn)
	}
	return fn.Rollback(ctx, tx)
}
