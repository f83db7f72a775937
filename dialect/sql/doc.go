// Package sql provides the database/sql driver a session writes through,
// and the statement builders used to render flush statements.
//
// # Builder Types
//
//   - Builder: low-level SQL string builder with identifier quoting
//   - InsertBuilder: INSERT statement builder with RETURNING support
//   - UpdateBuilder: UPDATE statement builder with SET and WHERE clauses
//   - DeleteBuilder: DELETE statement builder with WHERE predicates
//
// # Dialect Support
//
// Identifiers and placeholders follow the dialect:
//
//	sql.Dialect(dialect.Postgres).Update("users").Set("name", "a8m").Where(sql.EQ("id", 1))
//	// UPDATE "users" SET "name" = $1 WHERE "id" = $2
//
//	sql.Dialect(dialect.MySQL).Delete("users").Where(sql.In("id", 1, 2))
//	// DELETE FROM `users` WHERE `id` IN (?, ?)
//
// # Drivers
//
// Open wraps database/sql. NewStatsDriver and NewDebugDriver decorate any
// dialect.Driver with statement statistics and statement logging.
package sql
