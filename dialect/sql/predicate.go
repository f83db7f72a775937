package sql

import "fmt"

// Predicate is a where-clause condition of an UPDATE or DELETE statement.
type Predicate struct {
	build func(*Builder)
}

// EQ returns a "column = value" predicate. A nil value is "column IS NULL".
func EQ(column string, v any) *Predicate {
	if v == nil {
		return IsNull(column)
	}
	return &Predicate{build: func(b *Builder) {
		b.Ident(column).WriteString(" = ").Arg(v)
	}}
}

// IsNull returns a "column IS NULL" predicate.
func IsNull(column string) *Predicate {
	return &Predicate{build: func(b *Builder) {
		b.Ident(column).WriteString(" IS NULL")
	}}
}

// In returns a "column IN (values)" predicate. One value is rendered
// as EQ.
func In(column string, vs ...any) *Predicate {
	if len(vs) == 1 {
		return EQ(column, vs[0])
	}
	return &Predicate{build: func(b *Builder) {
		if len(vs) == 0 {
			b.AddError(fmt.Errorf("dialect/sql: empty IN list for %q", column))
			return
		}
		b.Ident(column).WriteString(" IN ").Wrap(func(b *Builder) { b.Args(vs...) })
	}}
}

// And joins the predicates with AND.
func And(ps ...*Predicate) *Predicate {
	return join(" AND ", ps)
}

// Or joins the predicates with OR.
func Or(ps ...*Predicate) *Predicate {
	return join(" OR ", ps)
}

// KeysIn returns a predicate matching the rows whose columns equal one of
// the keys. Single-column keys render as IN, composite keys as a
// disjunction of conjunctions.
func KeysIn(columns []string, keys [][]any) *Predicate {
	if len(columns) == 1 {
		vs := make([]any, len(keys))
		for i, k := range keys {
			vs[i] = k[0]
		}
		return In(columns[0], vs...)
	}
	ors := make([]*Predicate, len(keys))
	for i, k := range keys {
		eqs := make([]*Predicate, len(columns))
		for j, c := range columns {
			eqs[j] = EQ(c, k[j])
		}
		ors[i] = And(eqs...)
	}
	return Or(ors...)
}

func join(op string, ps []*Predicate) *Predicate {
	if len(ps) == 1 {
		return ps[0]
	}
	return &Predicate{build: func(b *Builder) {
		for i, p := range ps {
			if i > 0 {
				b.WriteString(op)
			}
			b.Wrap(p.build)
		}
	}}
}

func and(a, b *Predicate) *Predicate {
	if a == nil {
		return b
	}
	return And(a, b)
}
