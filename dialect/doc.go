// Package dialect names the database dialects planter can introspect and
// load rows from.
//
// # Supported Dialects
//
//   - Postgres: PostgreSQL database (lib/pq or pgx driver)
//   - MySQL: MySQL/MariaDB database
//   - SQLite: SQLite database (modernc.org/sqlite)
//
// Each dialect is identified by a constant string:
//
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite"
//
// # Querier Interface
//
// Stores run their speculative loads through a Querier:
//
//	type Querier interface {
//	    Query(ctx context.Context, query string, args, v any) error
//	    Dialect() string
//	}
//
// The dialect/sql sub-package implements it on top of database/sql.
package dialect
