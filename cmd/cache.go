package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kebunops/opsreport/internal/app"
	"github.com/kebunops/opsreport/internal/store"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the local database",
	Long: `Commands for inspecting and clearing the local bbolt database.

Payloads accumulate when reports run with --store and are replayed by
--offline. Presets live in the same file. Nothing expires on its own: data
stays until you clear it.`,
}

// openStore builds local deps and opens the database.
func openStore() (*app.Deps, *store.Store, error) {
	deps, err := buildLocalDeps()
	if err != nil {
		return nil, nil, err
	}
	st, err := deps.RequireStore()
	if err != nil {
		deps.Close()
		return nil, nil, err
	}
	return deps, st, nil
}

// ─── cache stats ──────────────────────────────────────────────────────────────

var cacheStatsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Show row counts and sizes for each bucket",
	Example: `  opsreport cache stats`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, st, err := openStore()
		if err != nil {
			return err
		}
		defer deps.Close()

		stats, err := st.Stats()
		if err != nil {
			return fmt.Errorf("reading store stats: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Database: %s\n\n", st.Path())
		printSimpleTable(cmd.OutOrStdout(), []string{"BUCKET", "ROWS", "SIZE"}, func(add func(...string)) {
			for _, s := range stats {
				add(s.Name, fmt.Sprintf("%d", s.Count), humanBytes(s.Bytes))
			}
		})
		return nil
	},
}

// ─── cache list ───────────────────────────────────────────────────────────────

var cacheListPrefix string

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored payloads",
	Example: `  opsreport cache list
  opsreport cache list --prefix /report/productivity`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, st, err := openStore()
		if err != nil {
			return err
		}
		defer deps.Close()

		infos, err := st.ListPayloads(cacheListPrefix)
		if err != nil {
			return fmt.Errorf("listing payloads: %w", err)
		}
		if len(infos) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No payloads stored.")
			fmt.Fprintln(cmd.OutOrStdout(), "  Run a report with --store to record one.")
			return nil
		}
		printSimpleTable(cmd.OutOrStdout(), []string{"KEY", "FETCHED", "SIZE"}, func(add func(...string)) {
			for _, p := range infos {
				add(p.Key, p.FetchedAt.Local().Format("2006-01-02 15:04"), humanBytes(int64(p.Bytes)))
			}
		})
		return nil
	},
}

// ─── cache clear ──────────────────────────────────────────────────────────────

var (
	cacheClearAll    bool
	cacheClearBucket string
)

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete entries from the local database",
	Long: `Delete entries from one or all buckets.

bbolt does not shrink the file after clearing; freed pages are reused on the
next write. Run 'opsreport cache compact' to reclaim disk space.`,
	Example: `  opsreport cache clear --all
  opsreport cache clear --bucket payloads`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cacheClearAll && cacheClearBucket == "" {
			return fmt.Errorf("specify --all or --bucket <name>\n\nBuckets: %s", strings.Join(store.AllBuckets, ", "))
		}

		deps, st, err := openStore()
		if err != nil {
			return err
		}
		defer deps.Close()

		if cacheClearAll {
			if err := st.ClearAll(); err != nil {
				return fmt.Errorf("clearing all buckets: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Cleared all buckets")
		} else {
			if err := st.ClearBucket(cacheClearBucket); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Cleared bucket %q\n", cacheClearBucket)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "  Run 'opsreport cache compact' to reclaim disk space.")
		return nil
	},
}

// ─── cache compact ────────────────────────────────────────────────────────────

var cacheCompactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Rewrite the database file to reclaim freed disk space",
	Long: `Compact copies every live entry into a fresh file and swaps it into
place. The database stays usable afterwards.`,
	Example: `  opsreport cache compact`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, st, err := openStore()
		if err != nil {
			return err
		}
		defer deps.Close()

		fmt.Fprintf(cmd.OutOrStdout(), "Compacting %s ...\n", st.Path())
		before, after, err := st.Compact()
		if err != nil {
			return fmt.Errorf("compaction failed: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✓ Compaction complete\n")
		fmt.Fprintf(cmd.OutOrStdout(), "  Before: %s\n", humanBytes(before))
		fmt.Fprintf(cmd.OutOrStdout(), "  After:  %s\n", humanBytes(after))
		if saved := before - after; saved > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "  Saved:  %s\n", humanBytes(saved))
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "  No space reclaimed (database was already compact).")
		}
		return nil
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd, cacheListCmd, cacheClearCmd, cacheCompactCmd)

	cacheListCmd.Flags().StringVar(&cacheListPrefix, "prefix", "", "only keys starting with this prefix")
	cacheClearCmd.Flags().BoolVar(&cacheClearAll, "all", false, "clear all buckets")
	cacheClearCmd.Flags().StringVar(&cacheClearBucket, "bucket", "",
		"clear one bucket: "+strings.Join(store.AllBuckets, "|"))
}
