// Package cascade expands the instances registered on a session into the
// complete set of operations of a flush, following the cascade policies
// of the relationships.
package cascade

import (
	"slices"

	"github.com/syssam/uow"
	"github.com/syssam/uow/schema/edge"
)

// Input holds the instances registered on a session before a flush.
type Input struct {
	// Saved are instances explicitly added to the session.
	Saved []*uow.Instance
	// Dirty are tracked persistent instances with changes.
	Dirty []*uow.Instance
	// Deleted are instances explicitly deleted.
	Deleted []*uow.Instance
}

// Result is the expanded working set of a flush.
type Result struct {
	// Order lists every reached instance in discovery order, including
	// instances that were reached by save-update but need no statement.
	Order []*uow.Instance
	ops   map[*uow.Instance]*entry
}

// Op returns the operation assigned to inst.
func (r *Result) Op(inst *uow.Instance) uow.Op {
	if e, ok := r.ops[inst]; ok {
		return e.op
	}
	return uow.OpNone
}

// Contains reports if inst was reached.
func (r *Result) Contains(inst *uow.Instance) bool {
	_, ok := r.ops[inst]
	return ok
}

// Instances returns the instances assigned op, in discovery order.
func (r *Result) Instances(op uow.Op) []*uow.Instance {
	var out []*uow.Instance
	for _, inst := range r.Order {
		if r.ops[inst].op == op {
			out = append(out, inst)
		}
	}
	return out
}

// Input returns the result as an input, which expands to the same result.
func (r *Result) Input() Input {
	var in Input
	for _, inst := range r.Order {
		e := r.ops[inst]
		switch {
		case e.op == uow.OpDelete:
			in.Deleted = append(in.Deleted, inst)
		case e.explicit:
			in.Saved = append(in.Saved, inst)
		case e.op == uow.OpUpdate:
			in.Dirty = append(in.Dirty, inst)
		}
	}
	return in
}

type entry struct {
	op       uow.Op
	explicit bool // requested with Add, as opposed to derived.
}

type item struct {
	inst *uow.Instance
	op   uow.Op
}

type resolver struct {
	res   *Result
	queue []item
}

// Resolve expands in to a fixed point. Instances reached again with the
// same operation are not expanded twice, which makes the expansion
// terminate on cyclic graphs. A Delete meeting an Insert, or meeting an
// explicitly saved instance, fails with *uow.CascadeConflictError. A Delete
// meeting an Update derived from change detection replaces it.
func Resolve(in Input) (*Result, error) {
	r := &resolver{res: &Result{ops: make(map[*uow.Instance]*entry)}}
	for _, inst := range in.Saved {
		if err := r.save(inst, true, nil); err != nil {
			return nil, err
		}
	}
	for _, inst := range in.Dirty {
		if err := r.save(inst, false, nil); err != nil {
			return nil, err
		}
	}
	for _, inst := range in.Deleted {
		if err := r.delete(inst, nil); err != nil {
			return nil, err
		}
	}
	for len(r.queue) > 0 {
		it := r.queue[0]
		r.queue = r.queue[1:]
		if err := r.expand(it); err != nil {
			return nil, err
		}
	}
	return r.res, nil
}

// saveOp returns the operation a save-update assigns to inst.
func saveOp(inst *uow.Instance) uow.Op {
	switch inst.State() {
	case uow.Transient, uow.Pending:
		return uow.OpInsert
	}
	if inst.Modified() {
		return uow.OpUpdate
	}
	return uow.OpNone
}

func (r *resolver) save(inst *uow.Instance, explicit bool, via *uow.Relationship) error {
	if e, ok := r.res.ops[inst]; ok {
		if e.op == uow.OpDelete {
			if explicit {
				return conflict(inst, uow.OpDelete, saveOp(inst), via)
			}
			// A derived save never overrides a delete.
			return nil
		}
		e.explicit = e.explicit || explicit
		return nil
	}
	r.add(inst, &entry{op: saveOp(inst), explicit: explicit})
	return nil
}

func (r *resolver) delete(inst *uow.Instance, via *uow.Relationship) error {
	e, ok := r.res.ops[inst]
	switch {
	case !ok:
		if inst.State() == uow.Transient {
			return nil
		}
		r.add(inst, &entry{op: uow.OpDelete})
	case e.op == uow.OpDelete:
	case e.op == uow.OpInsert || e.explicit:
		return conflict(inst, e.op, uow.OpDelete, via)
	default:
		e.op = uow.OpDelete
		r.queue = append(r.queue, item{inst: inst, op: uow.OpDelete})
	}
	return nil
}

func (r *resolver) add(inst *uow.Instance, e *entry) {
	r.res.ops[inst] = e
	r.res.Order = append(r.res.Order, inst)
	r.queue = append(r.queue, item{inst: inst, op: e.op})
}

func (r *resolver) expand(it item) error {
	for _, rel := range it.inst.Entity().Relationships {
		if it.op == uow.OpDelete {
			if !rel.Cascade.Has(edge.Delete) {
				continue
			}
			current := it.inst.Related(rel)
			for _, t := range current {
				if err := r.delete(t, rel); err != nil {
					return err
				}
			}
			// Rows still related in storage, unless moved to another instance.
			for _, t := range it.inst.CommittedRelated(rel) {
				if slices.Contains(current, t) || len(t.Related(rel.Inverse)) > 0 {
					continue
				}
				if err := r.delete(t, rel); err != nil {
					return err
				}
			}
			continue
		}
		if rel.Cascade.Has(edge.SaveUpdate) {
			for _, t := range it.inst.Related(rel) {
				if err := r.save(t, false, rel); err != nil {
					return err
				}
			}
		}
		if rel.Cascade.Has(edge.DeleteOrphan) {
			for _, t := range it.inst.Removed(rel) {
				if len(t.Related(rel.Inverse)) > 0 {
					continue
				}
				if err := r.delete(t, rel); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func conflict(inst *uow.Instance, a, b uow.Op, via *uow.Relationship) error {
	err := &uow.CascadeConflictError{Instance: inst.String(), Ops: [2]uow.Op{a, b}}
	if via != nil {
		err.Via = via.String()
	}
	return err
}
