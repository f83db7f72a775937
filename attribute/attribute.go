// Package attribute records the history of the attributes of one mapped
// instance: the value last known to be stored in the database, the value
// currently held in memory, and the element-level changes of collections.
package attribute

import "fmt"

// Comparator compares and copies the values of one scalar attribute.
// *field.Descriptor implements it.
type Comparator interface {
	Equal(a, b any) bool
	Copy(v any) any
}

// Change is a scalar attribute whose current value differs from
// its committed value.
type Change struct {
	Name     string
	Old, New any
}

type scalar struct {
	name      string
	cmp       Comparator
	committed any
	current   any
	loaded    bool // committed holds a value read from or written to storage.
	set       bool // current was assigned.
}

func (s *scalar) dirty() bool {
	if !s.loaded {
		return s.set
	}
	return !s.cmp.Equal(s.current, s.committed)
}

type ref struct {
	committed, current any
}

type collection struct {
	committed []any
	current   []any
}

// Tracker holds the attribute history of a single instance. The zero
// value is not usable; create trackers with New.
type Tracker struct {
	scalars []*scalar
	index   map[string]int
	refs    map[string]*ref
	colls   map[string]*collection
}

// New returns an empty tracker.
func New() *Tracker {
	return &Tracker{
		index: make(map[string]int),
		refs:  make(map[string]*ref),
		colls: make(map[string]*collection),
	}
}

// Define declares a scalar attribute. Attributes are reported by Diff in
// the order they were defined.
func (t *Tracker) Define(name string, cmp Comparator) {
	if _, ok := t.index[name]; ok {
		return
	}
	t.index[name] = len(t.scalars)
	t.scalars = append(t.scalars, &scalar{name: name, cmp: cmp})
}

// DefineRef declares a single-valued relationship attribute.
func (t *Tracker) DefineRef(name string) {
	if _, ok := t.refs[name]; !ok {
		t.refs[name] = &ref{}
	}
}

// DefineCollection declares a collection-valued relationship attribute.
func (t *Tracker) DefineCollection(name string) {
	if _, ok := t.colls[name]; !ok {
		t.colls[name] = &collection{}
	}
}

func (t *Tracker) scalar(name string) *scalar {
	i, ok := t.index[name]
	if !ok {
		panic(fmt.Sprintf("attribute: unknown attribute %q", name))
	}
	return t.scalars[i]
}

// RecordOriginal records v as the committed value of the attribute. It is
// called when the instance enters the session scope with values read from
// storage. Mutable values are copied, so later in-place mutations of v are
// seen as changes.
func (t *Tracker) RecordOriginal(name string, v any) {
	s := t.scalar(name)
	s.committed = s.cmp.Copy(v)
	s.current = v
	s.loaded = true
	s.set = true
}

// Set assigns the current value of the attribute.
func (t *Tracker) Set(name string, v any) {
	s := t.scalar(name)
	s.current = v
	s.set = true
}

// Get returns the current value of the attribute.
func (t *Tracker) Get(name string) any {
	return t.scalar(name).current
}

// IsSet reports if the attribute was assigned or loaded.
func (t *Tracker) IsSet(name string) bool {
	return t.scalar(name).set
}

// Committed returns the committed value of the attribute and reports
// if there is one.
func (t *Tracker) Committed(name string) (any, bool) {
	s := t.scalar(name)
	return s.committed, s.loaded
}

// Dirty reports if the attribute differs from its committed value.
func (t *Tracker) Dirty(name string) bool {
	return t.scalar(name).dirty()
}

// Diff returns the changed scalar attributes in definition order.
func (t *Tracker) Diff() []Change {
	var changes []Change
	for _, s := range t.scalars {
		if s.dirty() {
			changes = append(changes, Change{Name: s.name, Old: s.committed, New: s.current})
		}
	}
	return changes
}

// Modified reports if any scalar, reference or collection attribute
// changed since the last commit.
func (t *Tracker) Modified() bool {
	for _, s := range t.scalars {
		if s.dirty() {
			return true
		}
	}
	for name := range t.refs {
		if t.RefChanged(name) {
			return true
		}
	}
	for name := range t.colls {
		if len(t.Added(name)) > 0 || len(t.Removed(name)) > 0 {
			return true
		}
	}
	return false
}

func (t *Tracker) ref(name string) *ref {
	r, ok := t.refs[name]
	if !ok {
		panic(fmt.Sprintf("attribute: unknown reference %q", name))
	}
	return r
}

// SetRef assigns the current target of a reference. A nil v clears it.
func (t *Tracker) SetRef(name string, v any) {
	t.ref(name).current = v
}

// RecordRef records v as the committed and current target of a reference.
func (t *Tracker) RecordRef(name string, v any) {
	r := t.ref(name)
	r.committed, r.current = v, v
}

// Ref returns the current target of a reference.
func (t *Tracker) Ref(name string) any {
	return t.ref(name).current
}

// CommittedRef returns the committed target of a reference.
func (t *Tracker) CommittedRef(name string) any {
	return t.ref(name).committed
}

// RefChanged reports if the reference points somewhere else than at
// the last commit.
func (t *Tracker) RefChanged(name string) bool {
	r := t.ref(name)
	return r.current != r.committed
}

func (t *Tracker) coll(name string) *collection {
	c, ok := t.colls[name]
	if !ok {
		panic(fmt.Sprintf("attribute: unknown collection %q", name))
	}
	return c
}

// Append adds v to the collection. Appending a member is a no-op.
func (t *Tracker) Append(name string, v any) bool {
	c := t.coll(name)
	if indexOf(c.current, v) >= 0 {
		return false
	}
	c.current = append(c.current, v)
	return true
}

// Remove removes v from the collection and reports if it was a member.
func (t *Tracker) Remove(name string, v any) bool {
	c := t.coll(name)
	i := indexOf(c.current, v)
	if i < 0 {
		return false
	}
	c.current = append(c.current[:i:i], c.current[i+1:]...)
	return true
}

// RecordMember records v as a committed member of the collection.
func (t *Tracker) RecordMember(name string, v any) {
	c := t.coll(name)
	if indexOf(c.committed, v) < 0 {
		c.committed = append(c.committed, v)
	}
	if indexOf(c.current, v) < 0 {
		c.current = append(c.current, v)
	}
}

// Members returns the current members of the collection.
func (t *Tracker) Members(name string) []any {
	return append([]any(nil), t.coll(name).current...)
}

// CommittedMembers returns the members of the collection at the last commit.
func (t *Tracker) CommittedMembers(name string) []any {
	return append([]any(nil), t.coll(name).committed...)
}

// Added returns the members added since the last commit, in insertion order.
func (t *Tracker) Added(name string) []any {
	c := t.coll(name)
	return difference(c.current, c.committed)
}

// Removed returns the members removed since the last commit.
func (t *Tracker) Removed(name string) []any {
	c := t.coll(name)
	return difference(c.committed, c.current)
}

// Drop removes v from the committed and the current members of a
// collection, or clears a reference that points at v. It is used when the
// related row no longer exists.
func (t *Tracker) Drop(name string, v any) {
	if r, ok := t.refs[name]; ok {
		if r.committed == v {
			r.committed = nil
		}
		if r.current == v {
			r.current = nil
		}
		return
	}
	c := t.coll(name)
	if i := indexOf(c.committed, v); i >= 0 {
		c.committed = append(c.committed[:i:i], c.committed[i+1:]...)
	}
	if i := indexOf(c.current, v); i >= 0 {
		c.current = append(c.current[:i:i], c.current[i+1:]...)
	}
}

// Commit makes the current state the committed state: scalar values are
// copied to committed, references and collection memberships are settled.
func (t *Tracker) Commit() {
	for _, s := range t.scalars {
		if !s.set {
			continue
		}
		s.committed = s.cmp.Copy(s.current)
		s.loaded = true
	}
	for _, r := range t.refs {
		r.committed = r.current
	}
	for _, c := range t.colls {
		c.committed = append([]any(nil), c.current...)
	}
}

// Rollback reverts the current state to the committed state.
func (t *Tracker) Rollback() {
	for _, s := range t.scalars {
		if s.loaded {
			s.current = s.cmp.Copy(s.committed)
		}
	}
	for _, r := range t.refs {
		r.current = r.committed
	}
	for _, c := range t.colls {
		c.current = append([]any(nil), c.committed...)
	}
}

// Forget drops the committed state, as for an instance that no longer
// has a row in storage. Current values are kept and reported as changes.
func (t *Tracker) Forget() {
	for _, s := range t.scalars {
		s.committed = nil
		s.loaded = false
	}
	for _, r := range t.refs {
		r.committed = nil
	}
	for _, c := range t.colls {
		c.committed = nil
	}
}

// Snapshot is a saved copy of a tracker's state.
type Snapshot struct {
	scalars []scalar
	refs    map[string]ref
	colls   map[string]collection
}

// Snapshot saves the complete state of the tracker. Values are not
// copied: the snapshot holds the same values the tracker holds.
func (t *Tracker) Snapshot() *Snapshot {
	snap := &Snapshot{
		scalars: make([]scalar, len(t.scalars)),
		refs:    make(map[string]ref, len(t.refs)),
		colls:   make(map[string]collection, len(t.colls)),
	}
	for i, s := range t.scalars {
		snap.scalars[i] = *s
	}
	for name, r := range t.refs {
		snap.refs[name] = *r
	}
	for name, c := range t.colls {
		snap.colls[name] = collection{
			committed: append([]any(nil), c.committed...),
			current:   append([]any(nil), c.current...),
		}
	}
	return snap
}

// Restore sets the state of the tracker back to snap.
func (t *Tracker) Restore(snap *Snapshot) {
	for i := range snap.scalars {
		s := snap.scalars[i]
		*t.scalars[i] = s
	}
	for name, r := range snap.refs {
		*t.refs[name] = r
	}
	for name, c := range snap.colls {
		t.colls[name] = &collection{
			committed: append([]any(nil), c.committed...),
			current:   append([]any(nil), c.current...),
		}
	}
}

func indexOf(s []any, v any) int {
	for i := range s {
		if s[i] == v {
			return i
		}
	}
	return -1
}

func difference(a, b []any) []any {
	var out []any
	for _, v := range a {
		if indexOf(b, v) < 0 {
			out = append(out, v)
		}
	}
	return out
}
