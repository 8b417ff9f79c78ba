package dialect

import (
	"context"
	"fmt"
	"strings"
)

// Dialect names.
const (
	MySQL    = "mysql"
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// Querier runs read queries. v is the destination of the rows and its
// concrete type is defined by the implementation.
type Querier interface {
	Query(ctx context.Context, query string, args, v any) error
	Dialect() string
}

// Normalize maps driver names to a dialect name: "pgx" and "postgresql"
// are Postgres, "sqlite3" is SQLite.
func Normalize(name string) (string, error) {
	switch n := strings.ToLower(name); n {
	case Postgres, "postgresql", "pgx":
		return Postgres, nil
	case MySQL, "mariadb":
		return MySQL, nil
	case SQLite, "sqlite3":
		return SQLite, nil
	default:
		return "", fmt.Errorf("dialect: unsupported dialect %q", name)
	}
}
