package main

import (
	"fmt"
	"os"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/syssam/planter/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "planter",
		Short: "Resolve ORM classes for the tables of a live database",
		Long: `planter introspects a database schema, materialises model and manager
descriptors into a cache directory, and answers lookups by table name,
plural name or key values.`,
		SilenceUsage: true,
	}
	cli.AddFlags(rootCmd)

	rootCmd.AddCommand(cli.TablesCmd())
	rootCmd.AddCommand(cli.PluralsCmd())
	rootCmd.AddCommand(cli.FindCmd())
	rootCmd.AddCommand(cli.MatchCmd())
	rootCmd.AddCommand(cli.PlantCmd())
	rootCmd.AddCommand(cli.WatchCmd())
	rootCmd.AddCommand(cli.DiffCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
