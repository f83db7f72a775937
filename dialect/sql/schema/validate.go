package schema

import (
	"fmt"
	"strings"

	"github.com/syssam/uow"
	"github.com/syssam/uow/schema/edge"
)

// ValidationError is a problem found in a table or one of its columns.
type ValidationError struct {
	Table   string
	Column  string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s.%s: %s", e.Table, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Table, e.Message)
}

// ValidationResult holds the problems found by a validation. Errors make
// the tables unusable by a session, warnings do not.
type ValidationResult struct {
	Errors   []*ValidationError
	Warnings []*ValidationError
}

// HasErrors reports if the validation found errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings reports if the validation found warnings.
func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

func (r *ValidationResult) String() string {
	if !r.HasErrors() && !r.HasWarnings() {
		return "No issues found"
	}
	var b strings.Builder
	section := func(title string, errs []*ValidationError) {
		if len(errs) == 0 {
			return
		}
		b.WriteString(title + ":\n")
		for _, e := range errs {
			fmt.Fprintf(&b, "  - %s\n", e)
		}
	}
	section("Errors", r.Errors)
	section("Warnings", r.Warnings)
	return b.String()
}

func (r *ValidationResult) errorf(table, column, format string, args ...any) {
	r.Errors = append(r.Errors, &ValidationError{Table: table, Column: column, Message: fmt.Sprintf(format, args...)})
}

func (r *ValidationResult) warnf(table, column, format string, args ...any) {
	r.Warnings = append(r.Warnings, &ValidationError{Table: table, Column: column, Message: fmt.Sprintf(format, args...)})
}

func (r *ValidationResult) merge(o *ValidationResult) {
	r.Errors = append(r.Errors, o.Errors...)
	r.Warnings = append(r.Warnings, o.Warnings...)
}

// ValidateTable checks the columns, indexes and foreign keys of t refer
// to columns of t.
func ValidateTable(t *Table) *ValidationResult {
	result := &ValidationResult{}
	if len(t.PrimaryKey) == 0 {
		result.warnf(t.Name, "", "table has no primary key")
	}
	cols := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if cols[c.Name] {
			result.errorf(t.Name, c.Name, "duplicate column name")
		}
		cols[c.Name] = true
	}
	idxs := make(map[string]bool, len(t.Indexes))
	for _, idx := range t.Indexes {
		if idxs[idx.Name] {
			result.errorf(t.Name, "", "duplicate index name: %s", idx.Name)
		}
		idxs[idx.Name] = true
		for _, c := range idx.Columns {
			if c != nil && !cols[c.Name] {
				result.errorf(t.Name, "", "index %q references non-existent column %q", idx.Name, c.Name)
			}
		}
	}
	for _, fk := range t.ForeignKeys {
		for _, c := range fk.Columns {
			if !cols[c.Name] {
				result.errorf(t.Name, "", "foreign key references non-existent column %q", c.Name)
			}
		}
	}
	return result
}

// ValidateSchema validates every table, and checks that table names are
// unique and foreign keys reference tables of the set.
func ValidateSchema(tables []*Table) *ValidationResult {
	result := &ValidationResult{}
	names := make(map[string]bool, len(tables))
	for _, t := range tables {
		if names[t.Name] {
			result.errorf(t.Name, "", "duplicate table name")
		}
		names[t.Name] = true
		result.merge(ValidateTable(t))
	}
	for _, t := range tables {
		for _, fk := range t.ForeignKeys {
			if !names[fk.RefTable.Name] {
				result.errorf(t.Name, "", "foreign key references non-existent table %q", fk.RefTable.Name)
			}
		}
	}
	return result
}

// Validate checks the tables of the registry and the mapping of its
// relationships to them.
func Validate(reg *uow.Registry) (*ValidationResult, error) {
	tables, err := Tables(reg)
	if err != nil {
		return nil, err
	}
	result := ValidateSchema(tables)
	for _, e := range reg.Entities() {
		for _, r := range e.Relationships {
			if r.Rel != uow.M2O {
				continue
			}
			postUpdate, action := r.PostUpdate, r.OnDelete
			if r.Inverse != nil {
				postUpdate = postUpdate || r.Inverse.PostUpdate
				if action == "" {
					action = r.Inverse.OnDelete
				}
			}
			switch {
			case postUpdate && !r.Nullable:
				result.errorf(e.Table, r.Column, "%s: post-update foreign key must be nullable", r)
			case action == edge.SetNull && !r.Nullable:
				result.errorf(e.Table, r.Column, "%s: ON DELETE SET NULL on a NOT NULL foreign key", r)
			}
			if r.Inverse != nil && r.Inverse.Cascade.Has(edge.DeleteOrphan) && r.Nullable {
				result.warnf(e.Table, r.Column, "%s: orphans are deleted, the foreign key could be NOT NULL", r.Inverse)
			}
		}
	}
	return result, nil
}
