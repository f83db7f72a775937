package uow

// SyncForeignKeys copies the primary keys of the instances referenced by
// the many-to-one relationships of i into its foreign-key fields.
// Relationships in skip are not synced. It returns the relationships whose
// target has no primary key yet.
//
// A reference that was never assigned leaves the foreign-key field alone,
// so a foreign key set directly on the field is respected.
func (i *Instance) SyncForeignKeys(skip map[*Relationship]bool) []*Relationship {
	var pending []*Relationship
	for _, r := range i.entity.Relationships {
		if r.Rel != M2O || skip[r] {
			continue
		}
		target := asInstance(i.attrs.Ref(r.Name))
		if target == nil && !i.attrs.RefChanged(r.Name) {
			continue
		}
		fk := r.ForeignKey()
		if target == nil {
			if i.attrs.Get(fk.Name) != nil {
				i.attrs.Set(fk.Name, nil)
			}
			continue
		}
		pk, ok := target.PrimaryKey()
		if !ok {
			pending = append(pending, r)
			continue
		}
		if cur := i.attrs.Get(fk.Name); !i.attrs.IsSet(fk.Name) || !fk.Equal(cur, pk[0]) {
			i.attrs.Set(fk.Name, pk[0])
		}
	}
	return pending
}

// SetForeignKey assigns the foreign-key field of the many-to-one
// relationship r.
func (i *Instance) SetForeignKey(r *Relationship, v any) {
	i.attrs.Set(r.ForeignKey().Name, v)
}

// ForeignKey returns the current value of the foreign key of the
// many-to-one relationship r.
func (i *Instance) ForeignKey(r *Relationship) any {
	return i.attrs.Get(r.ForeignKey().Name)
}

// CommittedForeignKey returns the stored value of the foreign key of the
// many-to-one relationship r.
func (i *Instance) CommittedForeignKey(r *Relationship) any {
	v, _ := i.attrs.Committed(r.ForeignKey().Name)
	return v
}
