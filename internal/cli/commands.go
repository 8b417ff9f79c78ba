package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/syssam/planter"
	"github.com/syssam/planter/bootstrap"
	"github.com/syssam/planter/cache"
)

// TablesCmd returns the tables command
func TablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List every registered table and definition base name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd.Context(), func(e *env) error {
				reg := e.ctrl.Registry()
				for _, name := range reg.AllTables() {
					d, _ := reg.FindClass(name)
					fmt.Fprintf(cmd.OutOrStdout(), "%-32s %s\n", name, color.New(color.FgCyan).Sprint(d.ClassName()))
				}
				return nil
			})
		},
	}
}

// PluralsCmd returns the plurals command
func PluralsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plurals",
		Short: "List every registered plural name and its manager",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd.Context(), func(e *env) error {
				reg := e.ctrl.Registry()
				for _, name := range reg.AllPlurals() {
					d, _ := reg.FindClass(name)
					fmt.Fprintf(cmd.OutOrStdout(), "%-32s %s\n", name, color.New(color.FgCyan).Sprint(d.ClassName()))
				}
				return nil
			})
		},
	}
}

// FindCmd returns the find command
func FindCmd() *cobra.Command {
	var (
		showStats bool
		slow      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "find TABLE KEY...",
		Short: "Load one object by its primary or unique key",
		Long: `Load one object of TABLE whose key equals the given values.
The primary key is tried first, then every unique key with as many
columns as values given. Related tables configured under "nested" are
loaded along.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(e *env) error {
				if slow > 0 {
					e.stats.SetSlowThreshold(slow)
				}
				keys := make([]any, len(args)-1)
				for i, a := range args[1:] {
					keys[i] = parseKey(a)
				}
				row, err := e.finder().Find(cmd.Context(), args[0], keys...)
				if planter.IsNotFound(err) {
					fmt.Fprintln(cmd.OutOrStdout(), color.New(color.FgYellow).Sprint("not found"))
					return nil
				}
				if err != nil {
					return err
				}
				out, err := yaml.Marshal(rowDoc(row))
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), string(out))
				if showStats {
					fmt.Fprintln(cmd.ErrOrStderr(), e.stats.QueryStats().Stats())
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&showStats, "stats", false, "print query statistics")
	cmd.Flags().DurationVar(&slow, "slow", 0, "count queries slower than this as slow (overrides slow_query)")
	return cmd
}

// parseKey keeps integers numeric so that they compare as numbers on
// every dialect.
func parseKey(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}

func rowDoc(r *planter.Row) map[string]any {
	doc := make(map[string]any, len(r.Values)+len(r.Related))
	for k, v := range r.Values {
		doc[k] = v
	}
	for table, rows := range r.Related {
		docs := make([]map[string]any, len(rows))
		for i, rr := range rows {
			docs[i] = rowDoc(rr)
		}
		doc[table] = docs
	}
	return doc
}

// MatchCmd returns the match command
func MatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "match TEXT...",
		Short: "Show the table and plural names occurring in a text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(e *env) error {
				text := strings.Join(args, " ")
				reg := e.ctrl.Registry()
				tables := reg.TableMatcher().FindAllString(text, -1)
				plurals := reg.PluralMatcher().FindAllString(text, -1)
				fmt.Fprintf(cmd.OutOrStdout(), "tables:  %s\n", color.New(color.FgGreen).Sprint(strings.Join(tables, ", ")))
				fmt.Fprintf(cmd.OutOrStdout(), "plurals: %s\n", color.New(color.FgGreen).Sprint(strings.Join(plurals, ", ")))
				return nil
			})
		},
	}
}

// PlantCmd returns the plant command
func PlantCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plant [DIR]",
		Short: "Regenerate the descriptors and sources of the target",
		Long: `Introspect the live schema and materialise the descriptors and the
generated sources into DIR, or into cache_dir when DIR is omitted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			defer e.Close()
			dir := e.fc.CacheDir
			if len(args) == 1 {
				dir = args[0]
			}
			if dir == "" {
				return fmt.Errorf("plant: no directory given and no cache_dir configured")
			}
			t := &target{e: e}
			if err := e.ctrl.Plant(cmd.Context(), t, dir); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d models, %d managers into %s\n",
				color.New(color.FgGreen).Sprint("planted"), t.res.Models, t.res.Managers, dir)
			return nil
		},
	}
}

// WatchCmd returns the watch command
func WatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Reload the registry whenever the cache is replanted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fc, err := bootstrap.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if fc.CacheDir == "" {
				return fmt.Errorf("watch: no cache_dir configured")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			w, err := cache.NewWatcher(fc.CacheDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "watching %s\n", fc.CacheDir)
			return w.Run(ctx, func(ev fsnotify.Event) {
				if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
					fmt.Fprintln(cmd.OutOrStdout(), color.New(color.FgYellow).Sprint("cache removed"))
					return
				}
				if err := reload(ctx, cmd); err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), color.New(color.FgRed).Sprint(err))
				}
			})
		},
	}
}

// reload bootstraps a fresh registry from the cache and reports its size.
func reload(ctx context.Context, cmd *cobra.Command) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.Close()
	res, err := e.load(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s from %s: %d models, %d managers\n",
		color.New(color.FgGreen).Sprint("reloaded"), res.Source, res.Models, res.Managers)
	return nil
}

// DiffCmd returns the diff command
func DiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff",
		Short: "Compare the cache with the live schema",
		Long: `Compare the descriptors materialised in cache_dir with the live schema.
The command fails when a drift is breaking, e.g. a cached key column
was dropped. Run "planter plant" to refresh the cache.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			defer e.Close()
			cached, err := cache.Load(cmd.Context(), e.fc.CacheDir)
			if err != nil {
				return err
			}
			live, err := e.inspect(cmd.Context())
			if err != nil {
				return err
			}
			result := cache.Diff(cached, live)
			if !result.Stale() {
				fmt.Fprintln(cmd.OutOrStdout(), color.New(color.FgGreen).Sprint(result))
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), result)
			if result.Breaking() {
				return fmt.Errorf("diff: cache %s has breaking drift", e.fc.CacheDir)
			}
			return nil
		},
	}
}
