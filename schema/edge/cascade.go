package edge

import "strings"

// Cascade is the set of unit-of-work operations propagated along an edge.
type Cascade uint8

// Cascade policies.
const (
	// None propagates nothing.
	None Cascade = 0
	// SaveUpdate pulls related instances into the session when the owner
	// is added, so that they are inserted or updated along with it.
	SaveUpdate Cascade = 1 << 0
	// Delete marks related instances for deletion when the owner is deleted.
	Delete Cascade = 1 << 1
	// DeleteOrphan deletes related instances removed from the owner's
	// collection or reference. It implies Delete.
	DeleteOrphan Cascade = 1 << 2

	// All is SaveUpdate|Delete.
	All = SaveUpdate | Delete
)

// Has reports if c contains all the policies in o.
func (c Cascade) Has(o Cascade) bool {
	if c.has(DeleteOrphan) {
		c |= Delete
	}
	return o != None && c&o == o
}

func (c Cascade) has(o Cascade) bool { return c&o != 0 }

// String returns the textual representation of the policy set,
// e.g. "save-update, delete".
func (c Cascade) String() string {
	if c == None {
		return "none"
	}
	var parts []string
	for _, p := range []struct {
		c    Cascade
		name string
	}{
		{SaveUpdate, "save-update"},
		{Delete, "delete"},
		{DeleteOrphan, "delete-orphan"},
	} {
		if c.has(p.c) {
			parts = append(parts, p.name)
		}
	}
	return strings.Join(parts, ", ")
}

// Action is a referential action applied to rows that reference
// a deleted row.
type Action string

// Referential actions.
const (
	NoAction   Action = "NO ACTION"
	Restrict   Action = "RESTRICT"
	SetNull    Action = "SET NULL"
	SetDefault Action = "SET DEFAULT"
	// OnDeleteCascade is the database level cascade. It is only used
	// for generating DDL; the session never deletes rows on its behalf.
	OnDeleteCascade Action = "CASCADE"
)

// ConstName returns the constant name of the action for code generation.
func (a Action) ConstName() string {
	switch a {
	case Restrict:
		return "Restrict"
	case SetNull:
		return "SetNull"
	case SetDefault:
		return "SetDefault"
	case OnDeleteCascade:
		return "OnDeleteCascade"
	default:
		return "NoAction"
	}
}
