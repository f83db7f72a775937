package identity

import "github.com/syssam/uow"

// Ref is an instance whose stored foreign key of the M2O relationship Rel
// references a row.
type Ref struct {
	Inst *uow.Instance
	Rel  *uow.Relationship
}

// Refs indexes instances by the keys of the rows their stored foreign
// keys reference. It reflects the committed state at the time instances
// were added, and is rebuilt by its users when that state changes.
type Refs struct {
	byKey map[uow.Key][]Ref
}

// NewRefs returns an index of insts.
func NewRefs(insts ...*uow.Instance) *Refs {
	r := &Refs{byKey: make(map[uow.Key][]Ref)}
	for _, inst := range insts {
		r.Add(inst)
	}
	return r
}

// Add indexes the stored foreign keys of inst.
func (r *Refs) Add(inst *uow.Instance) {
	for _, rel := range inst.Entity().Relationships {
		if rel.Rel != uow.M2O {
			continue
		}
		fk := inst.CommittedForeignKey(rel)
		if fk == nil {
			continue
		}
		key, err := uow.NewKey(rel.Target, fk)
		if err != nil {
			continue
		}
		r.byKey[key] = append(r.byKey[key], Ref{Inst: inst, Rel: rel})
	}
}

// Lookup returns the references to key in the order they were added.
func (r *Refs) Lookup(key uow.Key) []Ref {
	return r.byKey[key]
}
