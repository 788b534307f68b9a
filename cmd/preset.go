package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kebunops/opsreport/internal/report"
	"github.com/kebunops/opsreport/internal/series"
	"github.com/kebunops/opsreport/internal/store"
)

var presetCmd = &cobra.Command{
	Use:   "preset",
	Short: "Save and re-run report filters",
	Long: `Presets save a report kind with its filter (locations, dates, pest,
variant) in the local database and run it again later by name or ID.

A preset saved without dates always runs over the current month.

  opsreport preset save production --name "gh-weekly" --locations "GH 1,GH 2"
  opsreport preset list
  opsreport preset run gh-weekly`,
}

// ─── preset save ──────────────────────────────────────────────────────────────

var presetSaveName string

var presetSaveCmd = &cobra.Command{
	Use:   "save <hpt|production|productivity>",
	Short: "Save a report filter as a named preset",
	Example: `  opsreport preset save hpt --name thrips-jan --pest 1 --start 2025-01-01 --end 2025-01-31
  opsreport preset save productivity --name all-gh`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: reportKinds,
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := strings.ToLower(args[0])
		if !contains(reportKinds, kind) {
			return fmt.Errorf("unknown report %q (use %s)", args[0], strings.Join(reportKinds, ", "))
		}
		if presetSaveName == "" {
			return fmt.Errorf("--name is required")
		}

		deps, err := buildLocalDeps()
		if err != nil {
			return err
		}
		defer deps.Close()
		st, err := deps.RequireStore()
		if err != nil {
			return err
		}

		f, err := filterFromFlags(cmd, deps)
		if err != nil {
			return err
		}
		if _, exists, err := st.GetPreset(presetSaveName); err != nil {
			return fmt.Errorf("reading presets: %w", err)
		} else if exists {
			return fmt.Errorf("preset %q already exists", presetSaveName)
		}

		p := store.NewPreset(presetSaveName, kind, f)
		if err := st.PutPreset(p); err != nil {
			return fmt.Errorf("saving preset: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Saved preset %s  (%s)\n", p.ID, p.Name)
		return nil
	},
}

// ─── preset list ──────────────────────────────────────────────────────────────

var presetListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List all saved presets",
	Example: `  opsreport preset list`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildLocalDeps()
		if err != nil {
			return err
		}
		defer deps.Close()
		st, err := deps.RequireStore()
		if err != nil {
			return err
		}

		presets, err := st.ListPresets()
		if err != nil {
			return fmt.Errorf("listing presets: %w", err)
		}
		if len(presets) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No presets saved.")
			fmt.Fprintln(cmd.OutOrStdout(), "  Use: opsreport preset save <report> --name <name> [filter flags]")
			return nil
		}

		printSimpleTable(cmd.OutOrStdout(), []string{"ID", "NAME", "REPORT", "FILTER", "CREATED"}, func(add func(...string)) {
			for _, p := range presets {
				add(p.ID, p.Name, p.Report, describeFilter(p.Filter), p.CreatedAt.Format("2006-01-02 15:04"))
			}
		})
		return nil
	},
}

// ─── preset show ──────────────────────────────────────────────────────────────

var presetShowCmd = &cobra.Command{
	Use:     "show <ID|name>",
	Short:   "Show full details of a preset",
	Example: `  opsreport preset show gh-weekly`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := lookupPreset(args[0])
		if err != nil {
			return err
		}
		printSimpleTable(cmd.OutOrStdout(), []string{"FIELD", "VALUE"}, func(add func(...string)) {
			add("ID", p.ID)
			add("Name", p.Name)
			add("Report", p.Report)
			add("Locations", describeLocations(p.Filter.Locations))
			add("Start", orDash(p.Filter.Start))
			add("End", orDash(p.Filter.End))
			add("Pest", orDash(p.Filter.PestID))
			add("Variant", orDash(p.Filter.VariantID))
			add("Created", p.CreatedAt.Format(time.RFC3339))
		})
		return nil
	},
}

// ─── preset run ───────────────────────────────────────────────────────────────

var presetRunCmd = &cobra.Command{
	Use:   "run <ID|name>",
	Short: "Run the report a preset describes",
	Example: `  opsreport preset run gh-weekly
  opsreport preset run thrips-jan --format xlsx --out thrips.xlsx`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := lookupPreset(args[0])
		if err != nil {
			return err
		}

		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		announcePreset(p)
		return runReport(cmd, deps, p.Report, p.Filter, series.SortState{Column: reportFlags.Sort, Desc: reportFlags.Desc})
	},
}

// ─── preset delete ────────────────────────────────────────────────────────────

var presetDeleteCmd = &cobra.Command{
	Use:     "delete <ID|name>",
	Short:   "Delete a saved preset",
	Example: `  opsreport preset delete gh-weekly`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildLocalDeps()
		if err != nil {
			return err
		}
		defer deps.Close()
		st, err := deps.RequireStore()
		if err != nil {
			return err
		}

		p, ok, err := st.GetPreset(args[0])
		if err != nil {
			return fmt.Errorf("reading preset: %w", err)
		}
		if !ok {
			return fmt.Errorf("preset %q not found", args[0])
		}
		if err := st.DeletePreset(p.ID); err != nil {
			return fmt.Errorf("deleting preset: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted preset %s  (%s)\n", p.ID, p.Name)
		return nil
	},
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

// lookupPreset reads a preset and closes the store again, so a following
// command can open it.
func lookupPreset(idOrName string) (store.Preset, error) {
	deps, err := buildLocalDeps()
	if err != nil {
		return store.Preset{}, err
	}
	defer deps.Close()
	st, err := deps.RequireStore()
	if err != nil {
		return store.Preset{}, err
	}
	p, ok, err := st.GetPreset(idOrName)
	if err != nil {
		return store.Preset{}, fmt.Errorf("reading preset: %w", err)
	}
	if !ok {
		return store.Preset{}, fmt.Errorf("preset %q not found", idOrName)
	}
	return p, nil
}

func announcePreset(p store.Preset) {
	if globalFlags.Verbose && !globalFlags.Quiet {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "▶ preset %s: report %s %s\n", p.Name, p.Report, describeFilter(p.Filter))
	}
}

// describeFilter renders a filter as the flags that would reproduce it.
func describeFilter(f report.Filter) string {
	var parts []string
	if f.Locations != nil {
		parts = append(parts, fmt.Sprintf("--locations %q", strings.Join(f.Locations, ",")))
	}
	if f.Start != "" {
		parts = append(parts, "--start "+f.Start)
	}
	if f.End != "" {
		parts = append(parts, "--end "+f.End)
	}
	if f.PestID != "" {
		parts = append(parts, "--pest "+f.PestID)
	}
	if f.VariantID != "" {
		parts = append(parts, "--variant "+f.VariantID)
	}
	if len(parts) == 0 {
		return "(defaults)"
	}
	return strings.Join(parts, " ")
}

func describeLocations(locs []string) string {
	switch {
	case locs == nil:
		return "(all)"
	case len(locs) == 0:
		return "(none)"
	}
	return strings.Join(locs, ", ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(presetCmd)
	presetCmd.AddCommand(presetSaveCmd, presetListCmd, presetShowCmd, presetRunCmd, presetDeleteCmd)

	sf := presetSaveCmd.Flags()
	sf.StringVar(&presetSaveName, "name", "", "preset name (required)")
	sf.StringVar(&reportFlags.Locations, "locations", "", "comma-separated location names (default: every location, hidden included)")
	sf.StringVar(&reportFlags.Start, "start", "", "start date YYYY-MM-DD (default: first of the month at run time)")
	sf.StringVar(&reportFlags.End, "end", "", "end date YYYY-MM-DD (default: the day it runs)")
	sf.StringVar(&reportFlags.Pest, "pest", "", "pest (hama) ID or refdata name")
	sf.StringVar(&reportFlags.Variant, "variant", "", "variant ID")
	_ = presetSaveCmd.MarkFlagRequired("name")

	rf := presetRunCmd.Flags()
	rf.StringVar(&reportFlags.Sort, "sort", "", "sort column for detail rows or trends")
	rf.BoolVar(&reportFlags.Desc, "desc", false, "sort descending")
}
