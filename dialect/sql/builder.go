package sql

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/syssam/uow/dialect"
)

// validIdentifierRe validates SQL identifiers (alphanumeric, underscores, dots for schema.name)
var validIdentifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.]*$`)

// isValidIdentifier checks if the string is a valid SQL identifier.
func isValidIdentifier(s string) bool {
	return s != "" && len(s) <= 128 && validIdentifierRe.MatchString(s)
}

// Querier wraps the basic Query method implemented by the statement builders.
type Querier interface {
	// Query returns the query representation of the element
	// and its arguments (if any).
	Query() (string, []any, error)
}

// Builder is the base SQL string builder. It quotes identifiers and
// writes placeholders in the form of its dialect.
type Builder struct {
	sb      strings.Builder
	args    []any
	dialect string
	errs    []error
}

// Dialect returns the dialect of the builder.
func (b *Builder) Dialect() string { return b.dialect }

// WriteString appends s as is.
func (b *Builder) WriteString(s string) *Builder {
	b.sb.WriteString(s)
	return b
}

// Ident appends the quoted identifier s. A qualified name ("schema.table")
// is quoted part by part.
func (b *Builder) Ident(s string) *Builder {
	if !isValidIdentifier(s) {
		b.AddError(fmt.Errorf("dialect/sql: invalid identifier %q", s))
		return b
	}
	q := `"`
	if b.dialect == dialect.MySQL {
		q = "`"
	}
	for i, part := range strings.Split(s, ".") {
		if i > 0 {
			b.sb.WriteByte('.')
		}
		b.sb.WriteString(q + part + q)
	}
	return b
}

// IdentComma appends the quoted identifiers separated by commas.
func (b *Builder) IdentComma(s ...string) *Builder {
	for i := range s {
		if i > 0 {
			b.sb.WriteString(", ")
		}
		b.Ident(s[i])
	}
	return b
}

// Arg appends a placeholder for v and records v as an argument.
func (b *Builder) Arg(v any) *Builder {
	b.args = append(b.args, v)
	if b.dialect == dialect.Postgres {
		b.sb.WriteString("$" + strconv.Itoa(len(b.args)))
	} else {
		b.sb.WriteByte('?')
	}
	return b
}

// Args appends placeholders for vs separated by commas.
func (b *Builder) Args(vs ...any) *Builder {
	for i, v := range vs {
		if i > 0 {
			b.sb.WriteString(", ")
		}
		b.Arg(v)
	}
	return b
}

// Wrap appends the output of fn inside parentheses.
func (b *Builder) Wrap(fn func(*Builder)) *Builder {
	b.sb.WriteByte('(')
	fn(b)
	b.sb.WriteByte(')')
	return b
}

// AddError records a build error, returned by Query.
func (b *Builder) AddError(err error) *Builder {
	b.errs = append(b.errs, err)
	return b
}

// Err returns the errors recorded while building.
func (b *Builder) Err() error {
	return errors.Join(b.errs...)
}

// String returns the accumulated string.
func (b *Builder) String() string {
	return b.sb.String()
}

func (b *Builder) query() (string, []any, error) {
	if err := b.Err(); err != nil {
		return "", nil, err
	}
	return b.sb.String(), b.args, nil
}

// DialectBuilder creates statement builders of one dialect.
type DialectBuilder struct {
	dialect string
}

// Dialect creates a new DialectBuilder with the given dialect name.
func Dialect(name string) *DialectBuilder {
	return &DialectBuilder{dialect: dialect.Name(name)}
}

// Insert creates an InsertBuilder for the configured dialect.
func (d *DialectBuilder) Insert(table string) *InsertBuilder {
	b := Insert(table)
	b.dialect = d.dialect
	return b
}

// Update creates an UpdateBuilder for the configured dialect.
func (d *DialectBuilder) Update(table string) *UpdateBuilder {
	b := Update(table)
	b.dialect = d.dialect
	return b
}

// Delete creates a DeleteBuilder for the configured dialect.
func (d *DialectBuilder) Delete(table string) *DeleteBuilder {
	b := Delete(table)
	b.dialect = d.dialect
	return b
}

// Select creates a SelectBuilder for the configured dialect.
func (d *DialectBuilder) Select(columns ...string) *SelectBuilder {
	b := Select(columns...)
	b.dialect = d.dialect
	return b
}

// InsertBuilder is a builder for `INSERT INTO` statement.
type InsertBuilder struct {
	Builder
	table     string
	columns   []string
	values    [][]any
	returning []string
}

// Insert creates a builder for the `INSERT INTO` statement.
//
//	Insert("users").
//		Columns("name", "age").
//		Values("a8m", 10).
//		Values("foo", 20)
func Insert(table string) *InsertBuilder { return &InsertBuilder{table: table} }

// Columns sets the columns of the insert statement.
func (i *InsertBuilder) Columns(columns ...string) *InsertBuilder {
	i.columns = append(i.columns, columns...)
	return i
}

// Values appends a value tuple for the insert statement.
func (i *InsertBuilder) Values(values ...any) *InsertBuilder {
	i.values = append(i.values, values)
	return i
}

// Returning adds the `RETURNING` clause to the insert statement.
// Supported by SQLite and PostgreSQL.
func (i *InsertBuilder) Returning(columns ...string) *InsertBuilder {
	i.returning = columns
	return i
}

// Query returns query representation of an `INSERT INTO` statement.
func (i *InsertBuilder) Query() (string, []any, error) {
	i.WriteString("INSERT INTO ").Ident(i.table)
	switch {
	case len(i.columns) == 0 && i.dialect == dialect.MySQL:
		i.WriteString(" () VALUES ()")
	case len(i.columns) == 0:
		i.WriteString(" DEFAULT VALUES")
	default:
		i.WriteString(" ").Wrap(func(b *Builder) { b.IdentComma(i.columns...) })
		i.WriteString(" VALUES ")
		for j, v := range i.values {
			if len(v) != len(i.columns) {
				i.AddError(fmt.Errorf("dialect/sql: insert into %q: %d columns, %d values", i.table, len(i.columns), len(v)))
			}
			if j > 0 {
				i.WriteString(", ")
			}
			i.Wrap(func(b *Builder) { b.Args(v...) })
		}
	}
	if len(i.returning) > 0 {
		if i.dialect == dialect.MySQL {
			i.AddError(fmt.Errorf("dialect/sql: RETURNING is not supported by %s", i.dialect))
		}
		i.WriteString(" RETURNING ").IdentComma(i.returning...)
	}
	return i.query()
}

// UpdateBuilder is a builder for `UPDATE` statement.
type UpdateBuilder struct {
	Builder
	table   string
	columns []string
	values  []any
	where   *Predicate
}

// Update creates a builder for the `UPDATE` statement.
//
//	Update("users").Set("name", "foo").Where(EQ("id", 1))
func Update(table string) *UpdateBuilder { return &UpdateBuilder{table: table} }

// Set sets a column to a given value.
func (u *UpdateBuilder) Set(column string, v any) *UpdateBuilder {
	u.columns = append(u.columns, column)
	u.values = append(u.values, v)
	return u
}

// Where sets or appends the given predicate to the statement.
func (u *UpdateBuilder) Where(p *Predicate) *UpdateBuilder {
	u.where = and(u.where, p)
	return u
}

// Query returns query representation of an `UPDATE` statement.
func (u *UpdateBuilder) Query() (string, []any, error) {
	if len(u.columns) == 0 {
		return "", nil, fmt.Errorf("dialect/sql: update %q: no columns", u.table)
	}
	u.WriteString("UPDATE ").Ident(u.table).WriteString(" SET ")
	for i, c := range u.columns {
		if i > 0 {
			u.WriteString(", ")
		}
		u.Ident(c).WriteString(" = ").Arg(u.values[i])
	}
	if u.where != nil {
		u.WriteString(" WHERE ")
		u.where.build(&u.Builder)
	}
	return u.query()
}

// DeleteBuilder is a builder for `DELETE` statement.
type DeleteBuilder struct {
	Builder
	table string
	where *Predicate
}

// Delete creates a builder for the `DELETE` statement.
//
//	Delete("users").Where(In("id", 1, 2))
func Delete(table string) *DeleteBuilder { return &DeleteBuilder{table: table} }

// Where appends a where predicate to the `DELETE` statement.
func (d *DeleteBuilder) Where(p *Predicate) *DeleteBuilder {
	d.where = and(d.where, p)
	return d
}

// Query returns query representation of a `DELETE` statement.
func (d *DeleteBuilder) Query() (string, []any, error) {
	d.WriteString("DELETE FROM ").Ident(d.table)
	if d.where != nil {
		d.WriteString(" WHERE ")
		d.where.build(&d.Builder)
	}
	return d.query()
}

// SelectBuilder is a builder for the `SELECT` statements loading rows
// into a session.
type SelectBuilder struct {
	Builder
	columns []string
	table   string
	where   *Predicate
	orderBy []string
}

// Select creates a builder for the `SELECT` statement.
//
//	Select("id", "name").From("users").Where(EQ("id", 1))
func Select(columns ...string) *SelectBuilder { return &SelectBuilder{columns: columns} }

// From sets the table of the statement.
func (s *SelectBuilder) From(table string) *SelectBuilder {
	s.table = table
	return s
}

// Where sets or appends the given predicate to the statement.
func (s *SelectBuilder) Where(p *Predicate) *SelectBuilder {
	s.where = and(s.where, p)
	return s
}

// OrderBy appends the columns to the `ORDER BY` clause.
func (s *SelectBuilder) OrderBy(columns ...string) *SelectBuilder {
	s.orderBy = append(s.orderBy, columns...)
	return s
}

// Query returns query representation of a `SELECT` statement.
func (s *SelectBuilder) Query() (string, []any, error) {
	s.WriteString("SELECT ")
	if len(s.columns) == 0 {
		s.WriteString("*")
	} else {
		s.IdentComma(s.columns...)
	}
	s.WriteString(" FROM ").Ident(s.table)
	if s.where != nil {
		s.WriteString(" WHERE ")
		s.where.build(&s.Builder)
	}
	if len(s.orderBy) > 0 {
		s.WriteString(" ORDER BY ").IdentComma(s.orderBy...)
	}
	return s.query()
}

var (
	_ Querier = (*SelectBuilder)(nil)
	_ Querier = (*InsertBuilder)(nil)
	_ Querier = (*UpdateBuilder)(nil)
	_ Querier = (*DeleteBuilder)(nil)
)
