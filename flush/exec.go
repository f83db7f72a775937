package flush

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/syssam/uow"
	"github.com/syssam/uow/graph"
)

// Identity is the identity map updated by a flush. *identity.Map
// implements it.
type Identity interface {
	graph.Resolver
	Register(*uow.Instance, uow.Key) error
	Forget(uow.Key)
}

// Option configures a Flusher.
type Option func(*Flusher) error

// WithParallelism sets the maximum number of batches of one wave that
// run concurrently. Batches run concurrently only if the executor is a
// uow.ConcurrentExecutor that reports support for it.
func WithParallelism(n int) Option {
	return func(f *Flusher) error {
		if n < 1 {
			return fmt.Errorf("flush: parallelism must be positive, got %d", n)
		}
		f.parallelism = n
		return nil
	}
}

// WithLogger sets the logger of executed statements.
func WithLogger(l *slog.Logger) Option {
	return func(f *Flusher) error {
		if l == nil {
			return errors.New("flush: nil logger")
		}
		f.logger = l
		return nil
	}
}

// Flusher executes plans.
type Flusher struct {
	exec        uow.Executor
	ids         Identity
	parallelism int
	logger      *slog.Logger
	mu          sync.Mutex // guards ids while batches run concurrently.
}

// New returns a Flusher writing through exec and registering inserted
// instances in ids.
func New(exec uow.Executor, ids Identity, opts ...Option) (*Flusher, error) {
	f := &Flusher{exec: exec, ids: ids, parallelism: 1, logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Execute runs the batches of p wave by wave. Once all statements
// succeeded, the attribute state of the written instances is committed.
// If a statement fails, Execute stops and returns a *uow.FlushError; the
// instances may be left half written and must be restored by the caller.
func (f *Flusher) Execute(ctx context.Context, p *Plan) error {
	for i, wave := range p.Waves {
		f.logger.DebugContext(ctx, "flush wave", "wave", i+1, "batches", len(wave))
		if err := f.wave(ctx, wave); err != nil {
			return err
		}
	}
	f.finish(p)
	return nil
}

func (f *Flusher) wave(ctx context.Context, wave []*Batch) error {
	if f.parallelism < 2 || len(wave) < 2 || !uow.IsConcurrent(f.exec) {
		for _, b := range wave {
			if err := f.batch(ctx, b); err != nil {
				return err
			}
		}
		return nil
	}
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(f.parallelism)
	for _, b := range wave {
		eg.Go(func() error {
			return f.batch(ctx, b)
		})
	}
	return eg.Wait()
}

func (f *Flusher) batch(ctx context.Context, b *Batch) error {
	if err := ctx.Err(); err != nil {
		return &uow.FlushError{Op: b.String(), Err: contextError(err)}
	}
	if b.Kind == graph.Delete {
		return f.delete(ctx, b)
	}
	for _, n := range b.Nodes {
		var err error
		switch n.Kind {
		case graph.Insert:
			err = f.insert(ctx, n)
		case graph.Update:
			err = f.update(ctx, n)
		case graph.PostUpdate:
			err = f.postUpdate(ctx, n)
		case graph.NullifyFK:
			err = f.nullify(ctx, n)
		case graph.Link:
			err = f.link(ctx, n)
		case graph.Unlink:
			err = f.unlink(ctx, n)
		default:
			err = fmt.Errorf("unexpected operation kind %s", n.Kind)
		}
		if err != nil {
			return &uow.FlushError{Op: n.String(), Err: err}
		}
	}
	return nil
}

func (f *Flusher) insert(ctx context.Context, n *graph.Node) error {
	inst, e := n.Inst, n.Inst.Entity()
	if err := syncForeignKeys(n); err != nil {
		return err
	}
	if key, ok := inst.Key(); ok {
		f.mu.Lock()
		cur, found := f.ids.Lookup(key)
		f.mu.Unlock()
		if found && cur != inst {
			return uow.NewIdentityConflictError(key)
		}
	}
	stmt := &uow.Statement{Kind: uow.Insert, Table: e.Table}
	auto := e.AutoIncrement()
	for _, fd := range e.Fields {
		v := inst.Get(fd.Name)
		if auto && fd == e.PrimaryKey[0] && v == nil {
			stmt.Returning = []string{fd.Column()}
			continue
		}
		if !inst.Attributes().IsSet(fd.Name) {
			continue
		}
		dv, err := fd.Value(v)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", e.Name, fd.Name, err)
		}
		stmt.Columns = append(stmt.Columns, fd.Column())
		stmt.Values = append(stmt.Values, dv)
	}
	res, err := f.execute(ctx, stmt)
	if err != nil {
		return err
	}
	if len(stmt.Returning) > 0 {
		if len(res.GeneratedKeys) == 0 {
			return fmt.Errorf("insert into %q returned no generated key", e.Table)
		}
		if err := inst.Set(e.PrimaryKey[0].Name, res.GeneratedKeys[0]); err != nil {
			return err
		}
	}
	return f.register(inst)
}

func (f *Flusher) update(ctx context.Context, n *graph.Node) error {
	inst, e := n.Inst, n.Inst.Entity()
	if err := syncForeignKeys(n); err != nil {
		return err
	}
	deferred := make(map[string]bool, len(n.Deferred))
	for _, r := range n.Deferred {
		deferred[r.ForeignKey().Name] = true
	}
	stmt := &uow.Statement{Kind: uow.Update, Table: e.Table, KeyColumns: e.PrimaryKeyColumns()}
	pkChanged := false
	for _, c := range inst.Attributes().Diff() {
		if deferred[c.Name] {
			continue
		}
		fd, _ := e.Field(c.Name)
		if fd.Immutable {
			return fmt.Errorf("field %s.%s is immutable", e.Name, fd.Name)
		}
		dv, err := fd.Value(c.New)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", e.Name, fd.Name, err)
		}
		stmt.Columns = append(stmt.Columns, fd.Column())
		stmt.Values = append(stmt.Values, dv)
		for _, pk := range e.PrimaryKey {
			pkChanged = pkChanged || pk == fd
		}
	}
	if len(stmt.Columns) == 0 {
		return nil
	}
	key, ok := inst.CommittedPrimaryKey()
	if !ok {
		return fmt.Errorf("%s has no stored primary key", inst)
	}
	stmt.Keys = [][]any{key}
	if err := f.expect(ctx, stmt, 1); err != nil {
		return err
	}
	if !pkChanged {
		return nil
	}
	if old, ok := inst.Key(); ok {
		f.mu.Lock()
		f.ids.Forget(old)
		f.mu.Unlock()
	}
	return f.register(inst)
}

func (f *Flusher) delete(ctx context.Context, b *Batch) error {
	e := b.Entity
	stmt := &uow.Statement{Kind: uow.Delete, Table: e.Table, KeyColumns: e.PrimaryKeyColumns()}
	for _, n := range b.Nodes {
		key, ok := n.Inst.CommittedPrimaryKey()
		if !ok {
			return &uow.FlushError{Op: n.String(), Err: fmt.Errorf("%s has no stored primary key", n.Inst)}
		}
		if len(e.PrimaryKey) == 1 {
			stmt.Keys = append(stmt.Keys, key)
			continue
		}
		// Composite keys are deleted one row at a time.
		one := *stmt
		one.Keys = [][]any{key}
		if err := f.expect(ctx, &one, 1); err != nil {
			return &uow.FlushError{Op: n.String(), Err: err}
		}
	}
	if len(stmt.Keys) == 0 {
		return nil
	}
	if err := f.expect(ctx, stmt, int64(len(stmt.Keys))); err != nil {
		return &uow.FlushError{Op: b.String(), Err: err}
	}
	return nil
}

func (f *Flusher) postUpdate(ctx context.Context, n *graph.Node) error {
	inst := n.Inst
	ref, ok := n.Target.PrimaryKey()
	if !ok {
		return fmt.Errorf("%s has no primary key", n.Target)
	}
	key, ok := inst.PrimaryKey()
	if !ok {
		return fmt.Errorf("%s has no primary key", inst)
	}
	inst.SetForeignKey(n.Rel, ref[0])
	fk := n.Rel.ForeignKey()
	return f.expect(ctx, &uow.Statement{
		Kind:       uow.Update,
		Table:      inst.Entity().Table,
		Columns:    []string{fk.Column()},
		Values:     []any{ref[0]},
		KeyColumns: inst.Entity().PrimaryKeyColumns(),
		Keys:       [][]any{key},
	}, 1)
}

func (f *Flusher) nullify(ctx context.Context, n *graph.Node) error {
	inst := n.Inst
	key, ok := inst.CommittedPrimaryKey()
	if !ok {
		return fmt.Errorf("%s has no stored primary key", inst)
	}
	fk := n.Rel.ForeignKey()
	err := f.expect(ctx, &uow.Statement{
		Kind:       uow.Update,
		Table:      inst.Entity().Table,
		Columns:    []string{fk.Column()},
		Values:     []any{nil},
		KeyColumns: inst.Entity().PrimaryKeyColumns(),
		Keys:       [][]any{key},
	}, 1)
	if err != nil {
		return err
	}
	inst.SetForeignKey(n.Rel, nil)
	inst.Unlink(n.Rel, n.Target)
	return nil
}

func (f *Flusher) link(ctx context.Context, n *graph.Node) error {
	from, ok := n.Inst.PrimaryKey()
	if !ok {
		return fmt.Errorf("%s has no primary key", n.Inst)
	}
	to, ok := n.Target.PrimaryKey()
	if !ok {
		return fmt.Errorf("%s references unsaved %s", n.Inst, n.Target)
	}
	_, err := f.execute(ctx, &uow.Statement{
		Kind:    uow.Insert,
		Table:   n.Rel.JoinTable,
		Columns: n.Rel.JoinCols[:],
		Values:  []any{from[0], to[0]},
	})
	return err
}

func (f *Flusher) unlink(ctx context.Context, n *graph.Node) error {
	from, ok := n.Inst.CommittedPrimaryKey()
	if !ok {
		return fmt.Errorf("%s has no stored primary key", n.Inst)
	}
	to, ok := n.Target.CommittedPrimaryKey()
	if !ok {
		return fmt.Errorf("%s has no stored primary key", n.Target)
	}
	return f.expect(ctx, &uow.Statement{
		Kind:       uow.Delete,
		Table:      n.Rel.JoinTable,
		KeyColumns: n.Rel.JoinCols[:],
		Keys:       [][]any{{from[0], to[0]}},
	}, 1)
}

func (f *Flusher) execute(ctx context.Context, stmt *uow.Statement) (*uow.Result, error) {
	f.logger.DebugContext(ctx, "flush statement", "statement", stmt.String(), "args", stmt.Values)
	res, err := f.exec.Execute(ctx, stmt)
	if err != nil {
		return nil, contextError(err)
	}
	if res == nil {
		res = &uow.Result{}
	}
	return res, nil
}

// expect executes stmt and checks that it matched n rows.
func (f *Flusher) expect(ctx context.Context, stmt *uow.Statement, n int64) error {
	res, err := f.execute(ctx, stmt)
	if err != nil {
		return err
	}
	if res.RowsAffected != n {
		return &uow.StaleDataError{Table: stmt.Table, Kind: stmt.Kind, Expected: n, Actual: res.RowsAffected}
	}
	return nil
}

func (f *Flusher) register(inst *uow.Instance) error {
	if err := inst.UpdateKey(); err != nil {
		return err
	}
	key, _ := inst.Key()
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ids.Register(inst, key)
}

// finish commits the state of the written instances.
func (f *Flusher) finish(p *Plan) {
	var saved []*uow.Instance
	for _, n := range p.Nodes() {
		inst := n.Inst
		switch n.Kind {
		case graph.Insert, graph.Update:
			saved = append(saved, inst)
		case graph.Delete:
			if key, ok := inst.Key(); ok {
				f.ids.Forget(key)
			}
			for _, r := range inst.Entity().Relationships {
				for _, t := range inst.Related(r) {
					inst.Unlink(r, t)
				}
				for _, t := range inst.CommittedRelated(r) {
					inst.Unlink(r, t)
				}
			}
			inst.Attributes().Forget()
			inst.SetState(uow.Deleted)
		case graph.NullifyFK:
			if inst.State() == uow.Persistent {
				inst.Attributes().RecordOriginal(n.Rel.ForeignKey().Name, nil)
			}
		case graph.Link:
			inst.RecordRelated(n.Rel, n.Target)
		case graph.Unlink:
			inst.Unlink(n.Rel, n.Target)
		}
	}
	for _, inst := range saved {
		inst.Attributes().Commit()
		inst.SetState(uow.Persistent)
	}
}

// syncForeignKeys copies the keys of referenced instances into the
// foreign keys of n. Deferred foreign keys are written NULL.
func syncForeignKeys(n *graph.Node) error {
	skip := make(map[*uow.Relationship]bool, len(n.Deferred))
	for _, r := range n.Deferred {
		skip[r] = true
		if n.Kind == graph.Insert {
			n.Inst.SetForeignKey(r, nil)
		}
	}
	if pending := n.Inst.SyncForeignKeys(skip); len(pending) > 0 {
		return fmt.Errorf("%s references an unsaved instance through %s", n.Inst, pending[0])
	}
	return nil
}

func contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !uow.IsTimeout(err) {
		return &uow.TimeoutError{Err: err}
	}
	return err
}
