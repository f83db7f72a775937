package schema

import (
	"context"
	"errors"
	"fmt"

	"ariga.io/atlas/sql/migrate"
	"ariga.io/atlas/sql/mysql"
	"ariga.io/atlas/sql/postgres"
	"ariga.io/atlas/sql/schema"
	"ariga.io/atlas/sql/sqlite"

	"github.com/syssam/uow/dialect"
	"github.com/syssam/uow/schema/field"
)

// maxVarchar is the largest string size stored in a VARCHAR column.
const maxVarchar = 65535

// Atlas converts the tables into their Atlas representation for the
// given dialect.
func Atlas(name string, tables []*Table) ([]*schema.Table, error) {
	name = dialect.Name(name)
	var (
		out  = make([]*schema.Table, 0, len(tables))
		byTb = make(map[*Table]*schema.Table, len(tables))
		cols = make(map[*Column]*schema.Column)
	)
	for _, t := range tables {
		at := schema.NewTable(t.Name)
		for _, c := range t.Columns {
			typ, err := columnType(name, c)
			if err != nil {
				return nil, fmt.Errorf("schema: %s.%s: %w", t.Name, c.Name, err)
			}
			ac := schema.NewColumn(c.Name)
			ac.Type = &schema.ColumnType{Type: typ, Null: c.Nullable}
			if c.Increment {
				ac.AddAttrs(increment(name))
			}
			at.AddColumns(ac)
			cols[c] = ac
		}
		pk := make([]*schema.Column, len(t.PrimaryKey))
		for i, c := range t.PrimaryKey {
			pk[i] = cols[c]
		}
		if len(pk) > 0 {
			at.SetPrimaryKey(schema.NewPrimaryKey(pk...))
		}
		for _, idx := range t.Indexes {
			ai := schema.NewIndex(idx.Name).SetUnique(idx.Unique)
			for _, c := range idx.Columns {
				ai.AddColumns(cols[c])
			}
			at.AddIndexes(ai)
		}
		out = append(out, at)
		byTb[t] = at
	}
	for _, t := range tables {
		at := byTb[t]
		for _, fk := range t.ForeignKeys {
			ref, ok := byTb[fk.RefTable]
			if !ok {
				return nil, fmt.Errorf("schema: %s: foreign key %q references unknown table %q", t.Name, fk.Symbol, fk.RefTable.Name)
			}
			afk := schema.NewForeignKey(fk.Symbol).SetRefTable(ref)
			for _, c := range fk.Columns {
				afk.AddColumns(cols[c])
			}
			for _, c := range fk.RefColumns {
				afk.AddRefColumns(cols[c])
			}
			if fk.OnDelete != "" {
				afk.SetOnDelete(schema.ReferenceOption(fk.OnDelete))
			}
			at.AddForeignKeys(afk)
		}
	}
	return out, nil
}

// DDL returns the statements creating the tables in the given dialect.
func DDL(ctx context.Context, name string, tables []*Table) ([]string, error) {
	planner, err := planner(name)
	if err != nil {
		return nil, err
	}
	ats, err := Atlas(name, tables)
	if err != nil {
		return nil, err
	}
	changes := make([]schema.Change, len(ats))
	for i, t := range ats {
		changes[i] = &schema.AddTable{T: t}
	}
	plan, err := planner.PlanChanges(ctx, "create", changes)
	if err != nil {
		return nil, fmt.Errorf("schema: plan changes: %w", err)
	}
	stmts := make([]string, len(plan.Changes))
	for i, c := range plan.Changes {
		stmts[i] = c.Cmd
	}
	return stmts, nil
}

// Create creates the tables in a single transaction of the driver.
func Create(ctx context.Context, drv dialect.Driver, tables []*Table) (err error) {
	stmts, err := DDL(ctx, drv.Dialect(), tables)
	if err != nil {
		return err
	}
	tx, err := drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("schema: begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()
	for _, stmt := range stmts {
		if err := tx.Exec(ctx, stmt, []any{}, nil); err != nil {
			return fmt.Errorf("schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("schema: commit: %w", err)
	}
	return nil
}

func planner(name string) (migrate.PlanApplier, error) {
	switch dialect.Name(name) {
	case dialect.MySQL:
		return mysql.DefaultPlan, nil
	case dialect.Postgres:
		return postgres.DefaultPlan, nil
	case dialect.SQLite:
		return sqlite.DefaultPlan, nil
	default:
		return nil, fmt.Errorf("schema: unsupported dialect %q", name)
	}
}

func increment(name string) schema.Attr {
	switch name {
	case dialect.MySQL:
		return &mysql.AutoIncrement{}
	case dialect.Postgres:
		return &postgres.Identity{Generation: "BY DEFAULT"}
	default:
		return &sqlite.AutoIncrement{}
	}
}

// columnType returns the database type of the column in the dialect.
func columnType(name string, c *Column) (schema.Type, error) {
	if t, ok := c.SchemaType[name]; ok {
		switch name {
		case dialect.MySQL:
			return mysql.ParseType(t)
		case dialect.Postgres:
			return postgres.ParseType(t)
		default:
			return sqlite.ParseType(t)
		}
	}
	switch name {
	case dialect.MySQL:
		return mysqlType(c)
	case dialect.Postgres:
		return postgresType(c)
	default:
		return sqliteType(c)
	}
}

func mysqlType(c *Column) (schema.Type, error) {
	switch c.Type {
	case field.TypeBool:
		return &schema.BoolType{T: "bool"}, nil
	case field.TypeTime:
		return &schema.TimeType{T: "timestamp"}, nil
	case field.TypeJSON:
		return &schema.JSONType{T: "json"}, nil
	case field.TypeUUID:
		return &schema.StringType{T: "char", Size: 36}, nil
	case field.TypeBytes:
		return &schema.BinaryType{T: "blob"}, nil
	case field.TypeEnum:
		return &schema.EnumType{T: "enum", Values: c.Enums}, nil
	case field.TypeString:
		switch {
		case c.Size > maxVarchar:
			return &schema.StringType{T: "longtext"}, nil
		case c.Size > 0:
			return &schema.StringType{T: "varchar", Size: c.Size}, nil
		default:
			return &schema.StringType{T: "varchar", Size: 255}, nil
		}
	case field.TypeInt, field.TypeInt64:
		return &schema.IntegerType{T: "bigint"}, nil
	case field.TypeFloat64:
		return &schema.FloatType{T: "double"}, nil
	}
	return nil, fmt.Errorf("unsupported type %s", c.Type)
}

func postgresType(c *Column) (schema.Type, error) {
	switch c.Type {
	case field.TypeBool:
		return &schema.BoolType{T: "boolean"}, nil
	case field.TypeTime:
		return &schema.TimeType{T: "timestamp with time zone"}, nil
	case field.TypeJSON:
		return &schema.JSONType{T: "jsonb"}, nil
	case field.TypeUUID:
		return &schema.UUIDType{T: "uuid"}, nil
	case field.TypeBytes:
		return &schema.BinaryType{T: "bytea"}, nil
	case field.TypeEnum:
		return &schema.StringType{T: "varchar", Size: 255}, nil
	case field.TypeString:
		if c.Size > 0 && c.Size <= maxVarchar {
			return &schema.StringType{T: "varchar", Size: c.Size}, nil
		}
		return &schema.StringType{T: "text"}, nil
	case field.TypeInt, field.TypeInt64:
		return &schema.IntegerType{T: "bigint"}, nil
	case field.TypeFloat64:
		return &schema.FloatType{T: "double precision"}, nil
	}
	return nil, fmt.Errorf("unsupported type %s", c.Type)
}

func sqliteType(c *Column) (schema.Type, error) {
	switch c.Type {
	case field.TypeBool:
		return &schema.BoolType{T: "bool"}, nil
	case field.TypeTime:
		return &schema.TimeType{T: "datetime"}, nil
	case field.TypeJSON:
		return &schema.JSONType{T: "json"}, nil
	case field.TypeUUID:
		return &schema.UUIDType{T: "uuid"}, nil
	case field.TypeBytes:
		return &schema.BinaryType{T: "blob"}, nil
	case field.TypeEnum, field.TypeString:
		return &schema.StringType{T: "text"}, nil
	case field.TypeInt, field.TypeInt64:
		return &schema.IntegerType{T: "integer"}, nil
	case field.TypeFloat64:
		return &schema.FloatType{T: "real"}, nil
	}
	return nil, fmt.Errorf("unsupported type %s", c.Type)
}
