package uow

import (
	"errors"
	"fmt"

	"github.com/go-openapi/inflect"

	"github.com/syssam/uow/schema/edge"
	"github.com/syssam/uow/schema/field"
)

// Field is the interface implemented by field builders.
type Field interface {
	Descriptor() *field.Descriptor
}

// Edge is the interface implemented by edge builders.
type Edge interface {
	Descriptor() *edge.Descriptor
}

// Mixin is a reusable set of fields and edges shared by several schemas.
type Mixin interface {
	Fields() []Field
	Edges() []Edge
}

// Schema describes one mapped entity.
//
//	uow.Schema{
//		Name: "Node",
//		Fields: []uow.Field{
//			field.Int64("id"),
//			field.String("name"),
//		},
//		Edges: []uow.Edge{
//			edge.To("children", "Node").Cascade(edge.All),
//			edge.From("parent", "Node").Ref("children").Unique(),
//		},
//	}
type Schema struct {
	Name       string
	Table      string   // defaults to the pluralized snake_case name.
	Fields     []Field  // declared fields, in column order.
	Edges      []Edge   // relationships.
	PrimaryKey []string // primary key field names. defaults to "id".
	// Mixins contribute their fields and edges before the declared ones.
	Mixins []Mixin
}

// AllFields returns the fields of the mixins of s, then its own.
func (s Schema) AllFields() []Field {
	var fields []Field
	for _, m := range s.Mixins {
		fields = append(fields, m.Fields()...)
	}
	return append(fields, s.Fields...)
}

// AllEdges returns the edges of the mixins of s, then its own.
func (s Schema) AllEdges() []Edge {
	var edges []Edge
	for _, m := range s.Mixins {
		edges = append(edges, m.Edges()...)
	}
	return append(edges, s.Edges...)
}

// Rel is a relationship type.
type Rel int

// Relation types.
const (
	Unk Rel = iota // Unknown.
	O2O            // One to one / has one.
	O2M            // One to many / has many.
	M2O            // Many to one (inverse perspective for O2M).
	M2M            // Many to many.
)

// String returns the relation name.
func (r Rel) String() string {
	s := "Unknown"
	switch r {
	case O2O:
		s = "O2O"
	case O2M:
		s = "O2M"
	case M2O:
		s = "M2O"
	case M2M:
		s = "M2M"
	}
	return s
}

// Relationship is a resolved edge between two entities.
type Relationship struct {
	Name       string
	Rel        Rel
	Owner      *Entity
	Target     *Entity
	Inverse    *Relationship
	Column     string    // foreign-key column. on Owner for M2O, on Target for O2M and O2O.
	Nullable   bool      // the foreign key accepts NULL.
	JoinTable  string    // M2M join table.
	JoinCols   [2]string // M2M columns referencing Owner and Target.
	Cascade    edge.Cascade
	OnDelete   edge.Action
	PostUpdate bool
	Hidden     bool // synthesized inverse, not declared in the schema.
	Comment    string
	links      bool // M2M side that writes the join table rows.
}

// Collection reports if the relationship holds many instances.
func (r *Relationship) Collection() bool {
	return r.Rel == O2M || r.Rel == M2M
}

// WritesLinks reports if the join table rows of a M2M relationship are
// written from this side. Exactly one side of every M2M does.
func (r *Relationship) WritesLinks() bool {
	return r.links
}

// OwnsFK reports if the foreign key lives on the owner of the relationship.
func (r *Relationship) OwnsFK() bool {
	return r.Rel == M2O
}

// String returns a readable form of the relationship, e.g. Node.parent.
func (r *Relationship) String() string {
	return r.Owner.Name + "." + r.Name
}

// Entity is a resolved, immutable mapping of one entity.
type Entity struct {
	Name          string
	Table         string
	Fields        []*field.Descriptor // declared and foreign-key fields, in column order.
	PrimaryKey    []*field.Descriptor
	Relationships []*Relationship
	seq           int
	fields        map[string]*field.Descriptor
	rels          map[string]*Relationship
}

// Field returns the named field.
func (e *Entity) Field(name string) (*field.Descriptor, bool) {
	f, ok := e.fields[name]
	return f, ok
}

// Relationship returns the named relationship.
func (e *Entity) Relationship(name string) (*Relationship, bool) {
	r, ok := e.rels[name]
	return r, ok
}

// Columns returns the column names of the entity.
func (e *Entity) Columns() []string {
	columns := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		columns[i] = f.Column()
	}
	return columns
}

// PrimaryKeyColumns returns the primary key columns of the entity.
func (e *Entity) PrimaryKeyColumns() []string {
	columns := make([]string, len(e.PrimaryKey))
	for i, f := range e.PrimaryKey {
		columns[i] = f.Column()
	}
	return columns
}

// AutoIncrement reports if the primary key is generated by the database.
func (e *Entity) AutoIncrement() bool {
	if len(e.PrimaryKey) != 1 {
		return false
	}
	pk := e.PrimaryKey[0]
	return !pk.HasDefault() && (pk.Info.Type == field.TypeInt || pk.Info.Type == field.TypeInt64)
}

// Seq returns the registration order of the entity.
func (e *Entity) Seq() int { return e.seq }

// Registry holds the resolved entities. It is immutable once built and
// may be shared between sessions.
type Registry struct {
	entities []*Entity
	byName   map[string]*Entity
}

// NewRegistry resolves the given schemas into a registry.
func NewRegistry(schemas ...Schema) (*Registry, error) {
	r := &Registry{byName: make(map[string]*Entity, len(schemas))}
	decls := make(map[string][]*edge.Descriptor, len(schemas))
	for i, s := range schemas {
		e, err := newEntity(i, s)
		if err != nil {
			return nil, &MappingError{Entity: s.Name, Err: err}
		}
		if _, ok := r.byName[e.Name]; ok {
			return nil, &MappingError{Entity: s.Name, Err: errors.New("entity defined twice")}
		}
		var edges []*edge.Descriptor
		for _, b := range s.AllEdges() {
			d := b.Descriptor()
			if d.Err != nil {
				return nil, &MappingError{Entity: s.Name, Err: d.Err}
			}
			edges = append(edges, d)
		}
		decls[e.Name] = edges
		r.entities = append(r.entities, e)
		r.byName[e.Name] = e
	}
	for _, e := range r.entities {
		for _, d := range decls[e.Name] {
			if err := r.resolve(e, d, decls); err != nil {
				return nil, &MappingError{Entity: e.Name, Err: err}
			}
		}
	}
	for _, e := range r.entities {
		for _, rel := range e.Relationships {
			if rel.Inverse == nil {
				r.synthesizeInverse(rel)
			}
		}
	}
	for _, e := range r.entities {
		for _, rel := range e.Relationships {
			if err := r.addForeignKey(rel); err != nil {
				return nil, &MappingError{Entity: e.Name, Err: err}
			}
		}
	}
	return r, nil
}

// MustRegistry is like NewRegistry but panics if the schemas are invalid.
func MustRegistry(schemas ...Schema) *Registry {
	r, err := NewRegistry(schemas...)
	if err != nil {
		panic(err)
	}
	return r
}

// Entity returns the named entity.
func (r *Registry) Entity(name string) (*Entity, bool) {
	e, ok := r.byName[name]
	return e, ok
}

// Entities returns all entities in registration order.
func (r *Registry) Entities() []*Entity {
	return append([]*Entity(nil), r.entities...)
}

func newEntity(seq int, s Schema) (*Entity, error) {
	if s.Name == "" {
		return nil, errors.New("missing entity name")
	}
	e := &Entity{
		Name:   s.Name,
		Table:  s.Table,
		seq:    seq,
		fields: make(map[string]*field.Descriptor, len(s.Fields)),
		rels:   make(map[string]*Relationship, len(s.Edges)),
	}
	if e.Table == "" {
		e.Table = inflect.Pluralize(inflect.Underscore(s.Name))
	}
	for _, b := range s.AllFields() {
		d := b.Descriptor()
		if d.Err != nil {
			return nil, d.Err
		}
		if _, ok := e.fields[d.Name]; ok {
			return nil, fmt.Errorf("field %q defined twice", d.Name)
		}
		e.Fields = append(e.Fields, d)
		e.fields[d.Name] = d
	}
	pk := s.PrimaryKey
	if len(pk) == 0 {
		pk = []string{"id"}
	}
	for _, name := range pk {
		d, ok := e.fields[name]
		if !ok {
			return nil, fmt.Errorf("primary key field %q is not defined", name)
		}
		if d.Nillable {
			return nil, fmt.Errorf("primary key field %q cannot be nillable", name)
		}
		if d.Info.Type.Mutable() {
			return nil, fmt.Errorf("primary key field %q has a mutable type %s", name, d.Info.Type)
		}
		e.PrimaryKey = append(e.PrimaryKey, d)
	}
	return e, nil
}

// resolve turns an edge declaration of e into a relationship.
func (r *Registry) resolve(e *Entity, d *edge.Descriptor, decls map[string][]*edge.Descriptor) error {
	if _, ok := e.rels[d.Name]; ok {
		return fmt.Errorf("edge %q defined twice", d.Name)
	}
	if _, ok := e.fields[d.Name]; ok {
		return fmt.Errorf("edge %q conflicts with a field of the same name", d.Name)
	}
	target, ok := r.byName[d.Type]
	if !ok {
		return fmt.Errorf("edge %q references unknown entity %q", d.Name, d.Type)
	}
	rel := &Relationship{
		Name:       d.Name,
		Owner:      e,
		Target:     target,
		Cascade:    d.Cascade,
		OnDelete:   d.OnDelete,
		PostUpdate: d.PostUpdate,
		Comment:    d.Comment,
	}
	// The other side of the relationship, if declared.
	var other *edge.Descriptor
	for _, od := range decls[target.Name] {
		switch {
		case d.Inverse && !od.Inverse && od.Name == d.RefName:
			other = od
		case !d.Inverse && od.Inverse && od.RefName == d.Name && od.Type == e.Name:
			other = od
		}
	}
	if d.Inverse && d.RefName != "" && other == nil {
		return fmt.Errorf("edge %q references missing edge %q of %s", d.Name, d.RefName, target.Name)
	}
	if d.Inverse && !d.Unique && other == nil {
		return fmt.Errorf("non-unique inverse edge %q must reference an edge with Ref", d.Name)
	}
	switch {
	case d.Inverse && d.Unique:
		rel.Rel = M2O
	case d.Inverse:
		rel.Rel = M2M
	case d.Unique:
		rel.Rel = O2O
	case d.StorageKey != nil && d.StorageKey.Table != "", other != nil && !other.Unique:
		rel.Rel = M2M
	default:
		rel.Rel = O2M
	}
	if rel.Rel == M2M {
		if len(e.PrimaryKey) != 1 || len(target.PrimaryKey) != 1 {
			return fmt.Errorf("M2M edge %q requires single-column primary keys", d.Name)
		}
		assoc, ownerSide := d, true
		if d.Inverse {
			assoc, ownerSide = other, false
		}
		table := inflect.Underscore(e.Name) + "_" + inflect.Underscore(d.Name)
		cols := [2]string{inflect.Underscore(e.Name) + "_id", inflect.Underscore(target.Name) + "_id"}
		if d.Inverse {
			table = inflect.Underscore(target.Name) + "_" + inflect.Underscore(assoc.Name)
			cols = [2]string{inflect.Underscore(target.Name) + "_id", inflect.Underscore(e.Name) + "_id"}
		}
		if cols[0] == cols[1] {
			cols[1] = inflect.Underscore(assoc.Name) + "_id"
		}
		if sk := assoc.StorageKey; sk != nil {
			if sk.Table != "" {
				table = sk.Table
			}
			if len(sk.Columns) == 2 {
				cols = [2]string{sk.Columns[0], sk.Columns[1]}
			}
		}
		if !ownerSide {
			cols[0], cols[1] = cols[1], cols[0]
		}
		rel.JoinTable, rel.JoinCols, rel.links = table, cols, ownerSide
	} else {
		if (rel.Rel == M2O && len(target.PrimaryKey) != 1) || (rel.Rel != M2O && len(e.PrimaryKey) != 1) {
			return fmt.Errorf("edge %q requires a single-column primary key on the referenced entity", d.Name)
		}
		rel.Column = fkColumn(e, d, other)
		rel.Nullable = !d.Required && (other == nil || !other.Required)
	}
	e.Relationships = append(e.Relationships, rel)
	e.rels[rel.Name] = rel
	// Link the two sides once both are resolved.
	if other != nil {
		if orel, ok := target.rels[other.Name]; ok {
			rel.Inverse, orel.Inverse = orel, rel
		}
	}
	return nil
}

// fkColumn returns the foreign-key column of a non-M2M edge. Both sides of
// a relationship resolve to the same column.
func fkColumn(e *Entity, d, other *edge.Descriptor) string {
	for _, sk := range []*edge.Descriptor{d, other} {
		if sk != nil && sk.StorageKey != nil && len(sk.StorageKey.Columns) == 1 {
			return sk.StorageKey.Columns[0]
		}
	}
	switch {
	case d.Inverse:
		return inflect.Underscore(d.Name) + "_id"
	case other != nil:
		return inflect.Underscore(other.Name) + "_id"
	default:
		return inflect.Underscore(e.Name) + "_" + inflect.Underscore(d.Name)
	}
}

// synthesizeInverse adds a hidden relationship on the target of rel, so that
// every relationship can be navigated from both sides.
func (r *Registry) synthesizeInverse(rel *Relationship) {
	inv := &Relationship{
		Name:      "~" + rel.Owner.Name + "." + rel.Name,
		Owner:     rel.Target,
		Target:    rel.Owner,
		Inverse:   rel,
		Column:    rel.Column,
		Nullable:  rel.Nullable,
		JoinTable: rel.JoinTable,
		JoinCols:  [2]string{rel.JoinCols[1], rel.JoinCols[0]},
		Cascade:   edge.None,
		OnDelete:  rel.OnDelete,
		Hidden:    true,
	}
	switch rel.Rel {
	case M2O:
		inv.Rel = O2M
	case O2M, O2O:
		inv.Rel = M2O
	case M2M:
		inv.Rel = M2M
	}
	rel.Inverse = inv
	rel.Target.Relationships = append(rel.Target.Relationships, inv)
	rel.Target.rels[inv.Name] = inv
}

// addForeignKey makes sure the entity holding the foreign key of rel has a
// field for it, adding a hidden one when the schema did not declare it.
func (r *Registry) addForeignKey(rel *Relationship) error {
	if rel.Rel != M2O {
		return nil
	}
	holder, ref := rel.Owner, rel.Target.PrimaryKey[0]
	for _, f := range holder.Fields {
		if f.Column() != rel.Column {
			continue
		}
		if f.Info.Type != ref.Info.Type {
			return fmt.Errorf("foreign key %q is %s, but %s.%s is %s", f.Name, f.Info.Type, rel.Target.Name, ref.Name, ref.Info.Type)
		}
		rel.Nullable = f.Nillable
		if rel.Inverse != nil {
			rel.Inverse.Nullable = f.Nillable
		}
		return nil
	}
	fk := &field.Descriptor{
		Name:       rel.Column,
		Info:       &field.TypeInfo{Type: ref.Info.Type, RType: ref.Info.RType},
		Size:       ref.Size,
		Nillable:   rel.Nullable,
		SchemaType: ref.SchemaType,
	}
	if _, ok := holder.fields[fk.Name]; ok {
		return fmt.Errorf("foreign key column %q conflicts with field %q", rel.Column, fk.Name)
	}
	holder.Fields = append(holder.Fields, fk)
	holder.fields[fk.Name] = fk
	return nil
}

// FieldByColumn returns the field stored in the given column.
func (e *Entity) FieldByColumn(column string) (*field.Descriptor, bool) {
	for _, f := range e.Fields {
		if f.Column() == column {
			return f, true
		}
	}
	return nil, false
}

// ForeignKey returns the field holding the foreign key of a M2O relationship.
func (r *Relationship) ForeignKey() *field.Descriptor {
	holder := r.Owner
	if r.Rel != M2O {
		holder = r.Target
	}
	f, _ := holder.FieldByColumn(r.Column)
	return f
}
