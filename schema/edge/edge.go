package edge

import "strings"

// A Descriptor for edge configuration.
type Descriptor struct {
	Name       string         // edge name.
	Type       string         // target entity name.
	RefName    string         // name of the edge on the other side, if any.
	Inverse    bool           // edge declared with From.
	Unique     bool           // single reference instead of a collection.
	Required   bool           // foreign key is NOT NULL.
	Immutable  bool           // reference cannot change after insert.
	StorageKey *StorageKey    // optional storage key configuration.
	Cascade    Cascade        // unit-of-work cascade policy.
	OnDelete   Action         // action taken on rows referencing a deleted row.
	PostUpdate bool           // assign the foreign key with a separate UPDATE after insert.
	Comment    string         // edge comment.
	Err        error
}

// StorageKey holds the configuration for edge storage-key.
type StorageKey struct {
	Table   string   // Table or join table.
	Columns []string // Foreign-key columns.
}

// StorageOption allows for setting the storage configuration using functional options.
type StorageOption func(*StorageKey)

// Table sets the table name option for M2M edges.
func Table(name string) StorageOption {
	return func(key *StorageKey) {
		key.Table = name
	}
}

// Column sets the foreign-key column name option for O2O, O2M and M2O edges.
func Column(name string) StorageOption {
	return func(key *StorageKey) {
		key.Columns = []string{name}
	}
}

// Columns sets the foreign-key column names option for M2M edges.
// The 1st column defines the name of the "To" edge, and the 2nd defines
// the name of the "From" edge (inverse edge).
func Columns(to, from string) StorageOption {
	return func(key *StorageKey) {
		key.Columns = []string{to, from}
	}
}

// Builder is the builder for both edge types.
type Builder struct {
	desc       *Descriptor
	cascadeSet bool
}

// To defines an association edge.
//
//	edge.To("children", "Node")
//	edge.To("profile", "Profile").Unique()
func To(name, typ string) *Builder {
	return &Builder{desc: &Descriptor{Name: name, Type: typ}}
}

// From represents a reversed-edge between two entities. The foreign key
// of a unique From edge lives on the owner of the edge.
//
//	edge.From("parent", "Node").Ref("children").Unique()
func From(name, typ string) *Builder {
	return &Builder{desc: &Descriptor{Name: name, Type: typ, Inverse: true}}
}

// Ref sets the referenced edge of this edge.
func (b *Builder) Ref(ref string) *Builder {
	b.desc.RefName = ref
	return b
}

// Unique sets the edge type to be unique. Basically, it limits the
// edge to be one of the two: one-2-one or many-2-one.
func (b *Builder) Unique() *Builder {
	b.desc.Unique = true
	return b
}

// Required indicates that the foreign key of this edge is NOT NULL.
func (b *Builder) Required() *Builder {
	b.desc.Required = true
	return b
}

// Immutable indicates that the edge may not be changed once set.
func (b *Builder) Immutable() *Builder {
	b.desc.Immutable = true
	return b
}

// Cascade sets the cascade policy of the edge. Edges cascade
// SaveUpdate unless configured otherwise.
//
//	edge.To("children", "Node").Cascade(edge.SaveUpdate | edge.Delete)
//	edge.From("owner", "User").Unique().Cascade(edge.None)
func (b *Builder) Cascade(c Cascade) *Builder {
	b.desc.Cascade = c
	b.cascadeSet = true
	return b
}

// OnDelete sets the action applied to rows that still reference a
// deleted row of the other side.
func (b *Builder) OnDelete(a Action) *Builder {
	b.desc.OnDelete = a
	return b
}

// PostUpdate assigns the foreign key of this edge with an UPDATE
// statement issued after both rows were inserted.
func (b *Builder) PostUpdate() *Builder {
	b.desc.PostUpdate = true
	return b
}

// Field is a shorthand for StorageKey(Column(name)).
func (b *Builder) Field(name string) *Builder {
	return b.StorageKey(Column(name))
}

// StorageKey sets the storage key of the edge.
//
//	edge.To("groups", "Group").
//		StorageKey(edge.Table("user_groups"), edge.Columns("user_id", "group_id"))
func (b *Builder) StorageKey(opts ...StorageOption) *Builder {
	if b.desc.StorageKey == nil {
		b.desc.StorageKey = &StorageKey{}
	}
	for i := range opts {
		opts[i](b.desc.StorageKey)
	}
	return b
}

// Comment used to put annotations on the schema.
func (b *Builder) Comment(c string) *Builder {
	b.desc.Comment = c
	return b
}

// Descriptor returns the edge descriptor.
func (b *Builder) Descriptor() *Descriptor {
	if !b.cascadeSet {
		b.desc.Cascade = SaveUpdate
	}
	if strings.TrimSpace(b.desc.Type) == "" && b.desc.Err == nil {
		b.desc.Err = &edgeError{edge: b.desc.Name, msg: "missing target type"}
	}
	return b.desc
}

type edgeError struct {
	edge, msg string
}

func (e *edgeError) Error() string {
	return "edge " + e.edge + ": " + e.msg
}
