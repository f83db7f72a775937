package session

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/syssam/uow"
	"github.com/syssam/uow/cascade"
	"github.com/syssam/uow/dialect"
	"github.com/syssam/uow/dialect/sql"
	"github.com/syssam/uow/dialect/sql/sqlgraph"
	"github.com/syssam/uow/flush"
	"github.com/syssam/uow/identity"
)

// Session is a unit of work over one driver. It tracks instances in an
// identity map and writes their changes in one transaction, begun by the
// first flush and ended by Commit or Rollback.
//
// A Session is not safe for concurrent use.
type Session struct {
	id      uuid.UUID
	reg     *uow.Registry
	drv     dialect.Driver
	cfg     *options
	state   State
	tx      dialect.Tx
	ids     *identity.Map
	seq     uint64
	tracked []*uow.Instance
	saved   map[*uow.Instance]bool
	deleted map[*uow.Instance]bool
	// refs indexes the stored foreign keys of the identity map for Load.
	// It is nil when stale, and rebuilt on the next Load.
	refs *identity.Refs
	// durable holds the state of the instances written in the current
	// transaction, as it was at the last commit.
	durable map[*uow.Instance]*uow.Snapshot
}

// New returns an active session for the entities of reg, writing through drv.
func New(reg *uow.Registry, drv dialect.Driver, opts ...Option) (*Session, error) {
	if reg == nil {
		return nil, errors.New("session: nil registry")
	}
	if drv == nil {
		return nil, errors.New("session: nil driver")
	}
	cfg := defaultOptions()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	s := &Session{
		id:      uuid.New(),
		reg:     reg,
		drv:     drv,
		cfg:     cfg,
		ids:     identity.New(),
		saved:   make(map[*uow.Instance]bool),
		deleted: make(map[*uow.Instance]bool),
		durable: make(map[*uow.Instance]*uow.Snapshot),
	}
	cfg.logger = cfg.logger.With("session", s.id.String())
	return s, nil
}

// ID returns the unique identifier of the session.
func (s *Session) ID() uuid.UUID { return s.id }

// State returns the state of the session.
func (s *Session) State() State { return s.state }

// Registry returns the mappings of the session.
func (s *Session) Registry() *uow.Registry { return s.reg }

// Add registers instances to be saved by the next flush. Transient
// instances become pending, detached instances are attached again, and
// instances marked for deletion are kept instead. Saving an instance
// cascades to its related instances along save-update relationships.
func (s *Session) Add(insts ...*uow.Instance) error {
	if err := s.check(); err != nil {
		return err
	}
	for _, inst := range insts {
		if err := s.owned(inst); err != nil {
			return err
		}
		switch inst.State() {
		case uow.Transient:
			s.track(inst, uow.Pending)
		case uow.Detached:
			if err := s.attach(inst); err != nil {
				return err
			}
		case uow.Deleted:
			// The row was deleted by a flush of this transaction.
			inst.SetState(uow.Pending)
		}
		delete(s.deleted, inst)
		s.saved[inst] = true
	}
	return nil
}

// Delete marks instances for deletion by the next flush. Transient and
// pending instances have no row to delete and fail with
// uow.ErrNotPersistent; use Expunge to stop tracking a pending instance.
func (s *Session) Delete(insts ...*uow.Instance) error {
	if err := s.check(); err != nil {
		return err
	}
	for _, inst := range insts {
		if err := s.owned(inst); err != nil {
			return err
		}
		switch inst.State() {
		case uow.Transient, uow.Pending:
			return fmt.Errorf("%w: %s", uow.ErrNotPersistent, inst)
		case uow.Detached:
			if err := s.attach(inst); err != nil {
				return err
			}
			s.deleted[inst] = true
		case uow.Persistent:
			delete(s.saved, inst)
			s.deleted[inst] = true
		}
	}
	return nil
}

// Load enters a row read from storage into the session. If the identity
// map already holds the row, the tracked instance is returned unchanged.
// Otherwise a persistent instance is created and linked to the tracked
// instances its foreign keys reference, and that reference it.
func (s *Session) Load(entity string, row map[string]any) (*uow.Instance, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	e, err := s.entity(entity)
	if err != nil {
		return nil, err
	}
	inst := e.New()
	if err := inst.Load(row); err != nil {
		return nil, err
	}
	key, _ := inst.Key()
	if cur, ok := s.ids.Lookup(key); ok {
		return cur, nil
	}
	if err := s.attach(inst); err != nil {
		return nil, err
	}
	s.link(inst, key)
	return inst, nil
}

// LoadLink records that the rows of a and b are associated through the
// many-to-many relationship rel of a.
func (s *Session) LoadLink(a *uow.Instance, rel string, b *uow.Instance) error {
	if err := s.check(); err != nil {
		return err
	}
	r, ok := a.Entity().Relationship(rel)
	if !ok || r.Rel != uow.M2M {
		return fmt.Errorf("session: %s has no many-to-many relationship %q", a.Entity().Name, rel)
	}
	for _, inst := range []*uow.Instance{a, b} {
		if inst.Owner() != any(s) || inst.State() != uow.Persistent {
			return fmt.Errorf("session: %s is not a persistent instance of the session", inst)
		}
	}
	if b.Entity() != r.Target {
		return fmt.Errorf("session: %s expects %s, got %s", r, r.Target.Name, b.Entity().Name)
	}
	a.RecordRelated(r, b)
	return nil
}

// Get returns the tracked instance of the entity with the given primary
// key. It never queries storage.
func (s *Session) Get(entity string, pk ...any) (*uow.Instance, bool) {
	e, ok := s.reg.Entity(entity)
	if !ok {
		return nil, false
	}
	key, err := uow.NewKey(e, pk...)
	if err != nil {
		return nil, false
	}
	return s.ids.Lookup(key)
}

// Fetch returns the instance of the entity with the given primary key,
// from the identity map or else from storage. It fails with
// uow.ErrNotFound if no row exists.
func (s *Session) Fetch(ctx context.Context, entity string, pk ...any) (*uow.Instance, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if inst, ok := s.Get(entity, pk...); ok {
		return inst, nil
	}
	e, err := s.entity(entity)
	if err != nil {
		return nil, err
	}
	if _, err := uow.NewKey(e, pk...); err != nil {
		return nil, err
	}
	query, args, err := sql.Dialect(s.drv.Dialect()).
		Select(e.Columns()...).
		From(e.Table).
		Where(sql.KeysIn(e.PrimaryKeyColumns(), [][]any{pk})).
		Query()
	if err != nil {
		return nil, err
	}
	var eq dialect.ExecQuerier = s.drv
	if s.tx != nil {
		eq = s.tx
	}
	var rows sql.Rows
	if err := eq.Query(ctx, query, args, &rows); err != nil {
		return nil, sqlgraph.Classify(err)
	}
	maps, err := sql.ScanMaps(rows)
	if err != nil {
		return nil, sqlgraph.Classify(err)
	}
	if len(maps) == 0 {
		return nil, fmt.Errorf("%w: %s %v", uow.ErrNotFound, e.Name, pk)
	}
	return s.Load(entity, maps[0])
}

// New returns the pending instances, in registration order.
func (s *Session) New() []*uow.Instance {
	return s.filter(func(inst *uow.Instance) bool {
		return inst.State() == uow.Pending
	})
}

// Dirty returns the persistent instances with changes to flush.
func (s *Session) Dirty() []*uow.Instance {
	return s.filter(func(inst *uow.Instance) bool {
		return inst.State() == uow.Persistent && !s.deleted[inst] && inst.Modified()
	})
}

// Deleted returns the instances marked for deletion.
func (s *Session) Deleted() []*uow.Instance {
	return s.filter(func(inst *uow.Instance) bool {
		return s.deleted[inst]
	})
}

// Tracked returns all instances of the session, in registration order.
func (s *Session) Tracked() []*uow.Instance {
	return slices.Clone(s.tracked)
}

// Contains reports if inst is tracked by the session.
func (s *Session) Contains(inst *uow.Instance) bool {
	return inst.Owner() == any(s)
}

// Plan returns the plan the next flush would execute, without executing
// it or changing any instance.
func (s *Session) Plan() (*flush.Plan, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	res, err := cascade.Resolve(s.input())
	if err != nil {
		return nil, err
	}
	snaps := s.snapshot(res)
	defer func() {
		for inst, snap := range snaps {
			inst.Restore(snap)
		}
	}()
	return flush.NewPlan(res, s.ids)
}

// Flush writes the pending changes in the transaction of the session,
// beginning it if needed. If the flush fails, the instances are restored
// to their values before the call, the transaction is rolled back and the
// session is aborted: it must be rolled back before it is used again.
func (s *Session) Flush(ctx context.Context) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.flush(ctx)
}

// Commit flushes the pending changes and commits the transaction. Deleted
// instances become transient. With WithExpireOnCommit, all instances are
// released from the session.
func (s *Session) Commit(ctx context.Context) error {
	if err := s.check(); err != nil {
		return err
	}
	if err := s.flush(ctx); err != nil {
		return err
	}
	if s.tx != nil {
		tx := s.tx
		s.tx = nil
		if err := s.commit(ctx, tx); err != nil {
			s.state = Aborted
			s.cfg.logger.ErrorContext(ctx, "commit failed", "error", err)
			return fmt.Errorf("uow: commit: %w", sqlgraph.Classify(err))
		}
		s.cfg.logger.DebugContext(ctx, "commit")
	}
	clear(s.durable)
	for _, inst := range s.Tracked() {
		if inst.State() == uow.Deleted {
			s.untrack(inst)
			inst.ClearKey()
			inst.Detach()
		}
	}
	if s.cfg.expireOnCommit {
		s.expireAll()
	}
	return nil
}

// Rollback rolls the transaction back and reverts the instances to their
// state at the last commit: pending instances and instances inserted in
// the transaction become transient, deleted instances are persistent
// again and every attribute change is discarded. Rollback is the only way
// out of the aborted state.
func (s *Session) Rollback(ctx context.Context) error {
	switch s.state {
	case Closed:
		return uow.ErrSessionClosed
	case Flushing:
		return uow.ErrSessionFlushing
	}
	var err error
	if s.tx != nil {
		tx := s.tx
		s.tx = nil
		if rerr := s.rollback(ctx, tx); rerr != nil {
			err = &uow.RollbackError{Err: rerr}
		}
	}
	s.revert()
	s.state = Active
	s.cfg.logger.DebugContext(ctx, "rollback", "tracked", len(s.tracked))
	return err
}

// Expunge releases instances from the session without writing them.
func (s *Session) Expunge(insts ...*uow.Instance) error {
	if err := s.check(); err != nil {
		return err
	}
	for _, inst := range insts {
		if inst.Owner() != any(s) {
			return fmt.Errorf("session: %s is not tracked by the session", inst)
		}
		s.expunge(inst)
	}
	return nil
}

// ExpireAll releases all instances from the session and empties the
// identity map. The transaction stays open.
func (s *Session) ExpireAll() error {
	if err := s.check(); err != nil {
		return err
	}
	s.expireAll()
	return nil
}

// Close rolls back the open transaction, releases all instances and
// closes the session. Closing a closed session is a no-op.
func (s *Session) Close(ctx context.Context) error {
	if s.state == Closed {
		return nil
	}
	var err error
	if s.tx != nil {
		tx := s.tx
		s.tx = nil
		if rerr := s.rollback(ctx, tx); rerr != nil {
			err = &uow.RollbackError{Err: rerr}
		}
		s.revert()
	}
	s.expireAll()
	clear(s.durable)
	s.state = Closed
	return err
}

func (s *Session) flush(ctx context.Context) (err error) {
	in := s.input()
	if len(in.Saved)+len(in.Dirty)+len(in.Deleted) == 0 {
		return nil
	}
	s.state = Flushing
	// Flushes change stored foreign keys and the identity map.
	s.refs = nil
	var (
		snaps    map[*uow.Instance]*uow.Snapshot
		attached []*uow.Instance
		prevIDs  = s.ids.All()
	)
	defer func() {
		if err != nil {
			err = s.abort(ctx, err, snaps, attached, prevIDs)
		}
	}()
	res, err := cascade.Resolve(in)
	if err != nil {
		return err
	}
	for _, inst := range res.Order {
		if err := s.owned(inst); err != nil {
			return err
		}
	}
	snaps = s.snapshot(res)
	for inst, snap := range snaps {
		if _, ok := s.durable[inst]; !ok {
			s.durable[inst] = snap
		}
	}
	for _, inst := range res.Order {
		if inst.Owner() != nil {
			continue
		}
		switch inst.State() {
		case uow.Transient:
			s.track(inst, uow.Pending)
		case uow.Detached:
			if err := s.attach(inst); err != nil {
				return err
			}
		}
		attached = append(attached, inst)
	}
	plan, err := flush.NewPlan(res, s.ids)
	if err != nil {
		return err
	}
	if !plan.Empty() {
		s.cfg.logger.DebugContext(ctx, "flush plan", "instances", len(res.Order), "waves", len(plan.Waves))
		if err := s.execute(ctx, plan); err != nil {
			return err
		}
	}
	clear(s.saved)
	clear(s.deleted)
	s.state = Active
	return nil
}

func (s *Session) execute(ctx context.Context, plan *flush.Plan) error {
	if s.tx == nil {
		tx, err := s.drv.Tx(ctx)
		if err != nil {
			return fmt.Errorf("uow: begin transaction: %w", sqlgraph.Classify(err))
		}
		s.tx = tx
	}
	var opts []sqlgraph.Option
	if s.cfg.concurrent {
		opts = append(opts, sqlgraph.WithConcurrency())
	}
	f, err := flush.New(
		sqlgraph.NewExecutor(s.tx, s.drv.Dialect(), opts...),
		s.ids,
		flush.WithParallelism(s.cfg.parallelism),
		flush.WithLogger(s.cfg.logger),
	)
	if err != nil {
		return err
	}
	return f.Execute(ctx, plan)
}

// abort restores the instances and the identity map as they were before
// the failed flush and rolls the transaction back.
func (s *Session) abort(ctx context.Context, cause error, snaps map[*uow.Instance]*uow.Snapshot, attached, prevIDs []*uow.Instance) error {
	for inst, snap := range snaps {
		inst.Restore(snap)
	}
	for _, inst := range attached {
		s.untrack(inst)
		inst.Detach()
	}
	s.ids.Clear()
	for _, inst := range prevIDs {
		if key, ok := inst.Key(); ok {
			_ = s.ids.Register(inst, key)
		}
	}
	err := cause
	if s.tx != nil {
		tx := s.tx
		s.tx = nil
		if rerr := s.rollback(ctx, tx); rerr != nil {
			err = errors.Join(err, &uow.RollbackError{Err: rerr})
		}
	}
	s.state = Aborted
	s.cfg.logger.WarnContext(ctx, "flush aborted", "error", cause)
	return err
}

// revert sets every instance back to its state at the last commit and
// rebuilds the identity map.
func (s *Session) revert() {
	s.refs = nil
	insts := slices.Clone(s.tracked)
	for inst := range s.durable {
		if !slices.Contains(insts, inst) {
			insts = append(insts, inst)
		}
	}
	for _, inst := range insts {
		if snap, ok := s.durable[inst]; ok {
			inst.Restore(snap)
		}
		owned := inst.Owner() == any(s)
		switch inst.State() {
		case uow.Transient, uow.Pending:
			if owned {
				s.untrack(inst)
			}
			inst.ClearKey()
			inst.Detach()
		case uow.Detached:
			if owned {
				s.untrack(inst)
			}
			inst.Detach()
		default:
			inst.Attributes().Rollback()
			if owned {
				inst.SetState(uow.Persistent)
			} else {
				inst.Detach()
			}
		}
	}
	s.ids.Clear()
	for _, inst := range s.tracked {
		key, _ := inst.Key()
		if err := s.ids.Register(inst, key); err != nil {
			// Two instances were loaded for one row after it was deleted.
			s.untrack(inst)
			inst.Detach()
		}
	}
	clear(s.saved)
	clear(s.deleted)
	clear(s.durable)
}

// input returns the registrations of the session in registration order.
func (s *Session) input() cascade.Input {
	var in cascade.Input
	for _, inst := range s.tracked {
		switch {
		case s.deleted[inst]:
			in.Deleted = append(in.Deleted, inst)
		case s.saved[inst]:
			in.Saved = append(in.Saved, inst)
		case inst.State() == uow.Persistent && inst.Modified():
			in.Dirty = append(in.Dirty, inst)
		}
	}
	return in
}

// snapshot saves the state of every instance a flush of res may change.
func (s *Session) snapshot(res *cascade.Result) map[*uow.Instance]*uow.Snapshot {
	snaps := make(map[*uow.Instance]*uow.Snapshot)
	add := func(inst *uow.Instance) {
		if _, ok := snaps[inst]; !ok {
			snaps[inst] = inst.Snapshot()
		}
	}
	for _, inst := range s.tracked {
		add(inst)
	}
	for _, inst := range res.Order {
		add(inst)
		for _, r := range inst.Entity().Relationships {
			for _, t := range inst.Related(r) {
				add(t)
			}
			for _, t := range inst.CommittedRelated(r) {
				add(t)
			}
		}
	}
	return snaps
}

// link records the relationships between a loaded instance and the
// tracked instances, following the stored foreign keys.
func (s *Session) link(inst *uow.Instance, key uow.Key) {
	for _, r := range inst.Entity().Relationships {
		if r.Rel != uow.M2O {
			continue
		}
		fk := inst.CommittedForeignKey(r)
		if fk == nil {
			continue
		}
		tk, err := uow.NewKey(r.Target, fk)
		if err != nil {
			continue
		}
		if target, ok := s.ids.Lookup(tk); ok {
			inst.RecordRelated(r, target)
		}
	}
	if s.refs == nil {
		s.refs = identity.NewRefs(s.ids.All()...)
	}
	for _, ref := range s.refs.Lookup(key) {
		if ref.Inst != inst {
			ref.Inst.RecordRelated(ref.Rel, inst)
		}
	}
}

func (s *Session) check() error {
	switch s.state {
	case Aborted:
		return uow.ErrSessionAborted
	case Closed:
		return uow.ErrSessionClosed
	case Flushing:
		return uow.ErrSessionFlushing
	}
	return nil
}

func (s *Session) entity(name string) (*uow.Entity, error) {
	e, ok := s.reg.Entity(name)
	if !ok {
		return nil, fmt.Errorf("session: unknown entity %q", name)
	}
	return e, nil
}

// owned fails if inst is tracked by another session.
func (s *Session) owned(inst *uow.Instance) error {
	if inst == nil {
		return errors.New("session: nil instance")
	}
	if o := inst.Owner(); o != nil && o != any(s) {
		return fmt.Errorf("%w: %s", uow.ErrDetached, inst)
	}
	return nil
}

func (s *Session) track(inst *uow.Instance, state uow.State) {
	s.seq++
	inst.Attach(s, s.seq, state)
	s.tracked = append(s.tracked, inst)
}

// attach tracks a detached or loaded instance as persistent.
func (s *Session) attach(inst *uow.Instance) error {
	key, ok := inst.Key()
	if !ok {
		return fmt.Errorf("session: %s has no identity key", inst)
	}
	if err := s.ids.Register(inst, key); err != nil {
		return err
	}
	if s.refs != nil {
		s.refs.Add(inst)
	}
	s.track(inst, uow.Persistent)
	return nil
}

func (s *Session) untrack(inst *uow.Instance) {
	s.refs = nil
	if i := slices.Index(s.tracked, inst); i >= 0 {
		s.tracked = slices.Delete(s.tracked, i, i+1)
	}
	delete(s.saved, inst)
	delete(s.deleted, inst)
}

func (s *Session) expunge(inst *uow.Instance) {
	if s.ids.Contains(inst) {
		key, _ := inst.Key()
		s.ids.Forget(key)
	}
	s.untrack(inst)
	inst.Detach()
}

func (s *Session) expireAll() {
	s.refs = nil
	for _, inst := range s.tracked {
		inst.Detach()
	}
	s.tracked = nil
	s.ids.Clear()
	clear(s.saved)
	clear(s.deleted)
}

func (s *Session) filter(fn func(*uow.Instance) bool) []*uow.Instance {
	var out []*uow.Instance
	for _, inst := range s.tracked {
		if fn(inst) {
			out = append(out, inst)
		}
	}
	return out
}
