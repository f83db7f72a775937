// Package dialect defines the storage interfaces a session writes through.
//
// # Supported Dialects
//
//   - Postgres: PostgreSQL database
//   - MySQL: MySQL/MariaDB database
//   - SQLite: SQLite database
//
// # Driver Interface
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// A session begins a Tx lazily on its first flush and commits or rolls it
// back with the session.
//
// # Sub-packages
//
//   - dialect/sql: database/sql driver, statement builders and statistics
//   - dialect/sql/sqlgraph: the executor rendering flush statements
//   - dialect/sql/schema: table model, validation and DDL of a registry
package dialect
