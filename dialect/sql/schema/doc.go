// Package schema derives the database tables of a registry and creates
// them with Atlas.
//
//	tables, err := schema.Tables(reg)
//	if err != nil {
//		return err
//	}
//	stmts, err := schema.DDL(ctx, dialect.Postgres, tables)
//
// Validate checks the relationship mapping against the tables.
package schema
