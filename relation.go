package uow

import "fmt"

// SetRef points the named single-valued relationship at target. A nil
// target clears it. The other side of the relationship is kept in sync:
// the instance is moved from the collection of its old target to the
// collection of the new one.
func (i *Instance) SetRef(name string, target *Instance) error {
	r, err := i.relationship(name, false)
	if err != nil {
		return err
	}
	if target != nil && target.entity != r.Target {
		return fmt.Errorf("uow: %s expects %s, got %s", r, r.Target.Name, target.entity.Name)
	}
	i.setRef(r, target)
	return nil
}

// Ref returns the current target of the named single-valued relationship.
func (i *Instance) Ref(name string) *Instance {
	r, err := i.relationship(name, false)
	if err != nil {
		panic(err)
	}
	return asInstance(i.attrs.Ref(r.Name))
}

// Append adds targets to the named collection, keeping the other side of
// the relationship in sync.
func (i *Instance) Append(name string, targets ...*Instance) error {
	r, err := i.relationship(name, true)
	if err != nil {
		return err
	}
	for _, t := range targets {
		if t == nil || t.entity != r.Target {
			return fmt.Errorf("uow: %s expects %s instances", r, r.Target.Name)
		}
	}
	for _, t := range targets {
		i.appendTo(r, t)
	}
	return nil
}

// Remove removes targets from the named collection.
func (i *Instance) Remove(name string, targets ...*Instance) error {
	r, err := i.relationship(name, true)
	if err != nil {
		return err
	}
	for _, t := range targets {
		i.removeFrom(r, t)
	}
	return nil
}

// Members returns the current members of the named collection.
func (i *Instance) Members(name string) []*Instance {
	r, err := i.relationship(name, true)
	if err != nil {
		panic(err)
	}
	return asInstances(i.attrs.Members(r.Name))
}

// Related returns the instances currently related through r.
func (i *Instance) Related(r *Relationship) []*Instance {
	if r.Collection() {
		return asInstances(i.attrs.Members(r.Name))
	}
	if t := asInstance(i.attrs.Ref(r.Name)); t != nil {
		return []*Instance{t}
	}
	return nil
}

// CommittedRelated returns the instances related through r at the last commit.
func (i *Instance) CommittedRelated(r *Relationship) []*Instance {
	if r.Collection() {
		return asInstances(i.attrs.CommittedMembers(r.Name))
	}
	if t := asInstance(i.attrs.CommittedRef(r.Name)); t != nil {
		return []*Instance{t}
	}
	return nil
}

// Added returns the members added to the collection r since the last commit.
func (i *Instance) Added(r *Relationship) []*Instance {
	return asInstances(i.attrs.Added(r.Name))
}

// Removed returns the members removed from the collection r since the
// last commit. For references, the previous target is returned if the
// reference changed.
func (i *Instance) Removed(r *Relationship) []*Instance {
	if r.Collection() {
		return asInstances(i.attrs.Removed(r.Name))
	}
	if i.attrs.RefChanged(r.Name) {
		if t := asInstance(i.attrs.CommittedRef(r.Name)); t != nil {
			return []*Instance{t}
		}
	}
	return nil
}

// RecordRelated records target as related through r in the committed
// state of both instances. Sessions call it when linking loaded rows.
func (i *Instance) RecordRelated(r *Relationship, target *Instance) {
	record := func(from *Instance, r *Relationship, to *Instance) {
		if r.Collection() {
			from.attrs.RecordMember(r.Name, to)
		} else {
			from.attrs.RecordRef(r.Name, to)
		}
	}
	record(i, r, target)
	record(target, r.Inverse, i)
}

// Unlink removes target from r on both sides, in the committed and the
// current state. Sessions call it once the rows are no longer related in
// storage, e.g. after target was deleted.
func (i *Instance) Unlink(r *Relationship, target *Instance) {
	i.attrs.Drop(r.Name, target)
	target.attrs.Drop(r.Inverse.Name, i)
}

func (i *Instance) setRef(r *Relationship, target *Instance) {
	old := asInstance(i.attrs.Ref(r.Name))
	if old == target {
		return
	}
	i.attrs.SetRef(r.Name, refValue(target))
	inv := r.Inverse
	if old != nil {
		if inv.Collection() {
			old.attrs.Remove(inv.Name, i)
		} else if asInstance(old.attrs.Ref(inv.Name)) == i {
			old.attrs.SetRef(inv.Name, nil)
		}
	}
	if target == nil {
		return
	}
	if inv.Collection() {
		target.attrs.Append(inv.Name, i)
		return
	}
	// One-to-one: the new target drops its previous partner.
	if prev := asInstance(target.attrs.Ref(inv.Name)); prev != nil && prev != i {
		prev.attrs.SetRef(r.Name, nil)
	}
	target.attrs.SetRef(inv.Name, i)
}

func (i *Instance) appendTo(r *Relationship, target *Instance) {
	if !i.attrs.Append(r.Name, target) {
		return
	}
	inv := r.Inverse
	if inv.Collection() {
		target.attrs.Append(inv.Name, i)
		return
	}
	// The target moves from its previous owner.
	if prev := asInstance(target.attrs.Ref(inv.Name)); prev != nil && prev != i {
		prev.attrs.Remove(r.Name, target)
	}
	target.attrs.SetRef(inv.Name, i)
}

func (i *Instance) removeFrom(r *Relationship, target *Instance) {
	if !i.attrs.Remove(r.Name, target) {
		return
	}
	inv := r.Inverse
	if inv.Collection() {
		target.attrs.Remove(inv.Name, i)
	} else if asInstance(target.attrs.Ref(inv.Name)) == i {
		target.attrs.SetRef(inv.Name, nil)
	}
}

func (i *Instance) relationship(name string, collection bool) (*Relationship, error) {
	r, ok := i.entity.Relationship(name)
	if !ok {
		return nil, fmt.Errorf("uow: %s has no relationship %q", i.entity.Name, name)
	}
	if r.Collection() != collection {
		kind := "reference"
		if r.Collection() {
			kind = "collection"
		}
		return nil, fmt.Errorf("uow: %s is a %s", r, kind)
	}
	return r, nil
}

// refValue keeps nil references untyped, so they compare equal to an
// unset reference.
func refValue(i *Instance) any {
	if i == nil {
		return nil
	}
	return i
}

func asInstance(v any) *Instance {
	i, _ := v.(*Instance)
	return i
}

func asInstances(vs []any) []*Instance {
	out := make([]*Instance, 0, len(vs))
	for _, v := range vs {
		if i := asInstance(v); i != nil {
			out = append(out, i)
		}
	}
	return out
}
