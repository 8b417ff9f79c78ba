// Package sql implements the dialect.Querier and planter.Store interfaces
// on top of database/sql.
//
// A Driver wraps a *sql.DB opened with one of the registered drivers
// (pgx, postgres, mysql or sqlite) and tags it with its dialect:
//
//	drv, err := sql.Open("pgx", "postgres://localhost/shop")
//	if err != nil {
//		return err
//	}
//	store := sql.NewStore(drv)
//
// # Loading
//
// Store.Load issues a single keyed SELECT for the model table and one
// additional SELECT per nested table, following the model's edges:
//
//	SELECT * FROM "order" WHERE "id" = $1 LIMIT 1
//	SELECT * FROM "order_item" WHERE "order_id" = $1
//
// Identifiers are quoted per dialect and placeholders follow the driver
// convention ($n for PostgreSQL, ? otherwise).
//
// # Statistics
//
// StatsDriver wraps any Querier and records query counts, durations,
// errors and slow queries:
//
//	drv := sql.NewStatsDriver(base, sql.WithSlowThreshold(50*time.Millisecond))
//	...
//	fmt.Println(drv.QueryStats().Stats())
package sql
