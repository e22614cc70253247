package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-rsid/internal/duckdb"
)

func newCacheCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the rsID lookup cache",
		Long: `Lookups answered by NCBI are stored in a DuckDB file (config cache.path) and
reused by later runs. Failed lookups are never cached.`,
	}

	cmd.PersistentFlags().String("cache", "", "DuckDB lookup cache (default from config cache.path)")

	cmd.AddCommand(newCacheStatsCmd(root))
	cmd.AddCommand(newCacheClearCmd(root))
	cmd.AddCommand(newCachePruneCmd(root))
	cmd.AddCommand(newCacheRunsCmd(root))
	return cmd
}

// openCache opens the store named by --cache or the config.
func openCache(cmd *cobra.Command) (*duckdb.Store, error) {
	path, _ := cmd.Flags().GetString("cache")
	if path == "" {
		path = viper.GetString("cache.path")
	}
	if path == "" {
		return nil, usagef("no cache path configured: use --cache or set cache.path")
	}
	return duckdb.Open(path)
}

func newCacheStatsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache contents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCache(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			st, err := store.Stats()
			if err != nil {
				return err
			}
			root.logger.Debug("cache stats", zap.String("path", store.Path()))

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Cache:      %s\n", store.Path())
			fmt.Fprintf(out, "Positions:  %d\n", st.Positions)
			fmt.Fprintf(out, "With rsID:  %d\n", st.Found)
			fmt.Fprintf(out, "Runs:       %d\n", st.Runs)
			return nil
		},
	}
}

func newCacheClearCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached lookups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCache(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.ClearLookups(); err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
			root.logger.Info("cleared lookup cache", zap.String("path", store.Path()))
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", store.Path())
			return nil
		},
	}
}

func newCachePruneCmd(root *rootOptions) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:     "prune",
		Short:   "Remove lookups older than a given age",
		Example: `  vibe-rsid cache prune --older-than 720h   # dbSNP builds change, refresh monthly`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return usagef("--older-than must be positive")
			}
			store, err := openCache(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.PruneLookups(time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			root.logger.Info("pruned lookup cache", zap.Int64("removed", n), zap.Duration("older_than", olderThan))
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d lookups older than %s\n", n, olderThan)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Age of lookups to remove")
	return cmd
}

func newCacheRunsCmd(root *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCache(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.Runs(limit)
			if err != nil {
				return err
			}
			root.logger.Debug("listing runs", zap.Int("count", len(runs)))

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tSTARTED\tINPUT\tRECORDS\tFOUND\tNOT FOUND\tFAILED\tCANCELLED\tEQUATION")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
					r.ID[:min(len(r.ID), 8)], r.StartedAt.Local().Format("2006-01-02 15:04"), r.Input.Path,
					r.Records, r.Found, r.NotFound, r.Failed, r.Cancelled, r.Equation)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show (0 for all)")
	return cmd
}
