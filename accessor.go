package uow

import "fmt"

// FieldOf is a typed accessor of one field. Every assignment through it
// is recorded by the attribute tracker of the instance.
//
//	var NodeName = uow.NewField[string]("name")
//
//	NodeName.Set(n, "root")
//	name := NodeName.Get(n)
type FieldOf[T any] struct {
	name string
}

// NewField returns an accessor for the named field.
func NewField[T any](name string) FieldOf[T] {
	return FieldOf[T]{name: name}
}

// Name returns the field name.
func (f FieldOf[T]) Name() string { return f.name }

// Get returns the current value of the field, or the zero value of T if
// the field is NULL.
func (f FieldOf[T]) Get(i *Instance) T {
	v, _ := f.Value(i)
	return v
}

// Value returns the current value of the field and reports if it is set
// to a non-NULL value.
func (f FieldOf[T]) Value(i *Instance) (T, bool) {
	var zero T
	switch v := i.Get(f.name).(type) {
	case nil:
		return zero, false
	case T:
		return v, true
	default:
		panic(fmt.Sprintf("uow: field %s.%s holds %T, not %T", i.entity.Name, f.name, v, zero))
	}
}

// Set assigns the field. It panics if the value cannot be stored in the
// field, which indicates that the accessor was declared with a wrong type.
func (f FieldOf[T]) Set(i *Instance, v T) {
	if err := i.Set(f.name, v); err != nil {
		panic(err)
	}
}

// Clear sets the field to NULL.
func (f FieldOf[T]) Clear(i *Instance) error {
	return i.Set(f.name, nil)
}

// Dirty reports if the field differs from its committed value.
func (f FieldOf[T]) Dirty(i *Instance) bool {
	return i.attrs.Dirty(f.name)
}

// RefOf is an accessor of a many-to-one or one-to-one relationship.
type RefOf struct {
	name string
}

// NewRef returns an accessor for the named reference.
func NewRef(name string) RefOf {
	return RefOf{name: name}
}

// Get returns the referenced instance, or nil.
func (r RefOf) Get(i *Instance) *Instance {
	return i.Ref(r.name)
}

// Set points the reference at target.
func (r RefOf) Set(i, target *Instance) error {
	return i.SetRef(r.name, target)
}

// CollectionOf is an accessor of a one-to-many or many-to-many relationship.
type CollectionOf struct {
	name string
}

// NewCollection returns an accessor for the named collection.
func NewCollection(name string) CollectionOf {
	return CollectionOf{name: name}
}

// Add appends targets to the collection.
func (c CollectionOf) Add(i *Instance, targets ...*Instance) error {
	return i.Append(c.name, targets...)
}

// Remove removes targets from the collection.
func (c CollectionOf) Remove(i *Instance, targets ...*Instance) error {
	return i.Remove(c.name, targets...)
}

// All returns the members of the collection.
func (c CollectionOf) All(i *Instance) []*Instance {
	return i.Members(c.name)
}
