package schema

import (
	"fmt"
	"slices"

	"github.com/syssam/uow"
	"github.com/syssam/uow/schema/edge"
	"github.com/syssam/uow/schema/field"
)

// Table describes a table in the database.
type Table struct {
	Name        string
	Columns     []*Column
	PrimaryKey  []*Column
	ForeignKeys []*ForeignKey
	Indexes     []*Index
	columns     map[string]*Column
}

// NewTable returns a new table with the given name.
func NewTable(name string) *Table {
	return &Table{Name: name, columns: make(map[string]*Column)}
}

// AddColumn adds the column to the table.
func (t *Table) AddColumn(c *Column) *Table {
	t.columns[c.Name] = c
	t.Columns = append(t.Columns, c)
	return t
}

// AddPrimary adds the column to the table and to its primary key.
func (t *Table) AddPrimary(c *Column) *Table {
	t.AddColumn(c)
	t.PrimaryKey = append(t.PrimaryKey, c)
	return t
}

// AddForeignKey adds a foreign key to the table.
func (t *Table) AddForeignKey(fk *ForeignKey) *Table {
	t.ForeignKeys = append(t.ForeignKeys, fk)
	return t
}

// AddIndex adds a new index to the table over the named columns.
func (t *Table) AddIndex(name string, unique bool, columns ...string) *Table {
	idx := &Index{Name: name, Unique: unique}
	for _, name := range columns {
		idx.Columns = append(idx.Columns, t.columns[name])
	}
	t.Indexes = append(t.Indexes, idx)
	return t
}

// Column returns the named column.
func (t *Table) Column(name string) (*Column, bool) {
	c, ok := t.columns[name]
	return c, ok
}

// Column describes a table column.
type Column struct {
	Name       string
	Type       field.Type
	Size       int
	Nullable   bool
	Unique     bool
	Increment  bool // generated by the database.
	Enums      []string
	SchemaType map[string]string // type override per dialect.
	Default    any
}

// ForeignKey describes a foreign-key constraint.
type ForeignKey struct {
	Symbol     string
	Columns    []*Column
	RefTable   *Table
	RefColumns []*Column
	OnDelete   edge.Action
}

// Index describes a table index.
type Index struct {
	Name    string
	Unique  bool
	Columns []*Column
}

// Tables returns the tables of the mapped entities and of their join
// tables. Referenced tables come before the tables referencing them.
func Tables(reg *uow.Registry) ([]*Table, error) {
	var (
		tables []*Table
		byName = make(map[string]*Table)
	)
	for _, e := range reg.Entities() {
		if _, ok := byName[e.Table]; ok {
			return nil, fmt.Errorf("schema: table %q is mapped twice", e.Table)
		}
		t := NewTable(e.Table)
		for _, f := range e.Fields {
			c := column(f)
			if slices.Contains(e.PrimaryKey, f) {
				c.Nullable = false
				c.Increment = e.AutoIncrement()
				t.AddPrimary(c)
				continue
			}
			t.AddColumn(c)
			if f.Unique {
				t.AddIndex(fmt.Sprintf("%s_%s_key", t.Name, c.Name), true, c.Name)
			}
		}
		tables = append(tables, t)
		byName[t.Name] = t
	}
	for _, e := range reg.Entities() {
		for _, r := range e.Relationships {
			switch {
			case r.Rel == uow.M2O:
				if err := foreignKey(byName, r); err != nil {
					return nil, err
				}
			case r.Rel == uow.M2M && r.WritesLinks():
				t, err := joinTable(byName, r)
				if err != nil {
					return nil, err
				}
				tables = append(tables, t)
				byName[t.Name] = t
			}
		}
	}
	return sortTables(tables), nil
}

func column(f *field.Descriptor) *Column {
	return &Column{
		Name:       f.Column(),
		Type:       f.Info.Type,
		Size:       f.Size,
		Nullable:   f.Nillable,
		Unique:     f.Unique,
		Enums:      f.Enums,
		SchemaType: f.SchemaType,
		Default:    f.Default,
	}
}

// foreignKey adds the constraint of a M2O relationship to its owner table.
func foreignKey(tables map[string]*Table, r *uow.Relationship) error {
	t, ref := tables[r.Owner.Table], tables[r.Target.Table]
	c, ok := t.Column(r.Column)
	if !ok {
		return fmt.Errorf("schema: %s: missing foreign-key column %q", r, r.Column)
	}
	for _, fk := range t.ForeignKeys {
		if fk.Columns[0] == c {
			return nil
		}
	}
	action := r.OnDelete
	if action == "" && r.Inverse != nil {
		action = r.Inverse.OnDelete
	}
	t.AddForeignKey(&ForeignKey{
		Symbol:     fmt.Sprintf("%s_%s_fkey", t.Name, c.Name),
		Columns:    []*Column{c},
		RefTable:   ref,
		RefColumns: ref.PrimaryKey,
		OnDelete:   action,
	})
	if r.Inverse != nil && r.Inverse.Rel == uow.O2O && !c.Unique {
		c.Unique = true
		t.AddIndex(fmt.Sprintf("%s_%s_key", t.Name, c.Name), true, c.Name)
	}
	return nil
}

// joinTable returns the link table of a M2M relationship. Rows are removed
// with the rows they link.
func joinTable(tables map[string]*Table, r *uow.Relationship) (*Table, error) {
	if _, ok := tables[r.JoinTable]; ok {
		return nil, fmt.Errorf("schema: %s: join table %q conflicts with another table", r, r.JoinTable)
	}
	t := NewTable(r.JoinTable)
	for i, ref := range []*uow.Entity{r.Owner, r.Target} {
		if len(ref.PrimaryKey) != 1 {
			return nil, fmt.Errorf("schema: %s: %s must have a single-column primary key", r, ref.Name)
		}
		c := column(ref.PrimaryKey[0])
		c.Name, c.Nullable, c.Unique, c.Default = r.JoinCols[i], false, false, nil
		t.AddPrimary(c)
		rt := tables[ref.Table]
		t.AddForeignKey(&ForeignKey{
			Symbol:     fmt.Sprintf("%s_%s_fkey", t.Name, c.Name),
			Columns:    []*Column{c},
			RefTable:   rt,
			RefColumns: rt.PrimaryKey,
			OnDelete:   edge.OnDeleteCascade,
		})
	}
	return t, nil
}

// sortTables orders the tables so that referenced tables come first.
// Self references are ignored and tables on a reference cycle keep their
// relative order at the end.
func sortTables(tables []*Table) []*Table {
	deps := make(map[*Table]map[*Table]bool, len(tables))
	for _, t := range tables {
		deps[t] = make(map[*Table]bool)
		for _, fk := range t.ForeignKeys {
			if fk.RefTable != t {
				deps[t][fk.RefTable] = true
			}
		}
	}
	var (
		sorted = make([]*Table, 0, len(tables))
		done   = make(map[*Table]bool, len(tables))
	)
	for len(sorted) < len(tables) {
		progress := false
		for _, t := range tables {
			if done[t] {
				continue
			}
			ready := true
			for d := range deps[t] {
				if !done[d] {
					ready = false
					break
				}
			}
			if ready {
				sorted, done[t], progress = append(sorted, t), true, true
			}
		}
		if !progress {
			for _, t := range tables {
				if !done[t] {
					sorted, done[t] = append(sorted, t), true
				}
			}
		}
	}
	return sorted
}
