package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kebunops/opsreport/internal/app"
	"github.com/kebunops/opsreport/internal/model"
	"github.com/kebunops/opsreport/internal/report"
	"github.com/kebunops/opsreport/internal/series"
	"github.com/kebunops/opsreport/internal/util"
)

// Report kinds, as used by the report subcommands and saved presets.
const (
	reportHPT          = "hpt"
	reportProduction   = "production"
	reportProductivity = "productivity"
)

var reportKinds = []string{reportHPT, reportProduction, reportProductivity}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Fetch and shape an operations report",
	Long: `Report commands resolve the selected locations, fetch one report from
the API and print its summary, detail rows and series.

A fetch failure never aborts the command: the report is printed empty and the
failure appears as a warning on stderr.

Pipeline examples:
  opsreport report productivity --format jsonl | opsreport chart bar --series "GH 1"
  opsreport report hpt --pest 1 --format jsonl | opsreport analyze trend`,
}

// reportFlags are shared by every report subcommand.
var reportFlags struct {
	Locations string
	Start     string
	End       string
	Pest      string
	Variant   string
	Sort      string
	Desc      bool
}

func newReportCmd(kind, short, example string) *cobra.Command {
	return &cobra.Command{
		Use:     kind,
		Short:   short,
		Example: example,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := buildDeps()
			if err != nil {
				return err
			}
			defer deps.Close()

			f, err := filterFromFlags(cmd, deps)
			if err != nil {
				return err
			}
			return runReport(cmd, deps, kind, f, series.SortState{Column: reportFlags.Sort, Desc: reportFlags.Desc})
		},
	}
}

// filterFromFlags builds a report filter from the shared flags. Dates are
// validated but not defaulted. An explicit empty --locations selects
// nothing; an absent flag selects every location.
func filterFromFlags(cmd *cobra.Command, deps *app.Deps) (report.Filter, error) {
	if err := util.ValidateRange(reportFlags.Start, reportFlags.End); err != nil {
		return report.Filter{}, err
	}
	f := report.Filter{
		Start:     reportFlags.Start,
		End:       reportFlags.End,
		PestID:    reportFlags.Pest,
		VariantID: reportFlags.Variant,
	}
	if cmd.Flags().Changed("locations") {
		f.Locations = util.SplitList(reportFlags.Locations)
		if f.Locations == nil {
			f.Locations = []string{}
		}
	}
	// Pests may be given by name when refdata knows them.
	if p, ok := deps.RefData.Pest(f.PestID); ok && p.ID != "" {
		f.PestID = p.ID
	}
	return f, nil
}

// withDefaultRange fills an unset date range with the current month.
func withDefaultRange(f report.Filter, now time.Time) report.Filter {
	if f.Start == "" && f.End == "" {
		f.Start, f.End = util.DefaultRange(now)
	}
	return f
}

// runReport executes one report and renders it.
func runReport(cmd *cobra.Command, deps *app.Deps, kind string, f report.Filter, sortBy series.SortState) error {
	ctx := cmd.Context()
	started := time.Now()
	f = withDefaultRange(f, started)

	var result *model.Result
	switch kind {
	case reportHPT:
		v := deps.Service.HPT(ctx, f)
		if err := sortDetail(v.Detail, sortBy); err != nil {
			return err
		}
		result = newResult(model.KindHPT, "report hpt", v, len(v.Detail), started)
		result.Warnings = alertWarnings(v.Alerts)
	case reportProduction:
		v := deps.Service.Production(ctx, f)
		if err := sortDetail(v.Detail, sortBy); err != nil {
			return err
		}
		result = newResult(model.KindProduction, "report production", v, len(v.Detail), started)
		result.Warnings = alertWarnings(v.Alerts)
	case reportProductivity:
		v := deps.Service.Productivity(ctx, f)
		if err := sortTrends(v.Trends, sortBy); err != nil {
			return err
		}
		result = newResult(model.KindProductivity, "report productivity", v, len(v.Trends), started)
		result.Warnings = alertWarnings(v.Alerts)
	default:
		return fmt.Errorf("unknown report %q (use %s)", kind, strings.Join(reportKinds, ", "))
	}
	return emit(cmd.OutOrStdout(), result, deps.Config.Format)
}

// ─── Sorting ──────────────────────────────────────────────────────────────────

var detailColumns = []string{"location", "actual", "last_actual", "diff", "reject"}

// sortDetail orders detail rows by column. An empty column keeps API order.
func sortDetail(rows []model.DetailRow, s series.SortState) error {
	if s.Column == "" {
		return nil
	}
	if !contains(detailColumns, s.Column) {
		return fmt.Errorf("cannot sort by %q (use %s)", s.Column, strings.Join(detailColumns, ", "))
	}
	tbl := make([]series.Row, len(rows))
	for i, r := range rows {
		tbl[i] = series.Row{
			"_i":          i,
			"location":    r.Location,
			"actual":      r.Actual,
			"last_actual": r.LastActual,
			"diff":        r.DiffPercent,
			"reject":      r.RejectRatio,
		}
	}
	s.Apply(tbl)
	sorted := make([]model.DetailRow, len(rows))
	for i, r := range tbl {
		sorted[i] = rows[r["_i"].(int)]
	}
	copy(rows, sorted)
	return nil
}

var trendColumns = []string{"location", "code", "age", "mean"}

// sortTrends orders per-location trends by column. The Overall trend stays
// first.
func sortTrends(trends []model.TrendSeries, s series.SortState) error {
	if s.Column == "" {
		return nil
	}
	if !contains(trendColumns, s.Column) {
		return fmt.Errorf("cannot sort by %q (use %s)", s.Column, strings.Join(trendColumns, ", "))
	}
	var overall []model.TrendSeries
	var rest []model.TrendSeries
	for _, t := range trends {
		if t.Overall {
			overall = append(overall, t)
		} else {
			rest = append(rest, t)
		}
	}
	tbl := make([]series.Row, len(rest))
	for i, t := range rest {
		row := series.Row{"_i": i, "location": t.Location, "code": t.Code, "age": float64(t.AgeDays)}
		if len(t.Points) > 0 {
			row["mean"] = series.Mean(t.Points)
		}
		tbl[i] = row
	}
	s.Apply(tbl)
	out := append([]model.TrendSeries{}, overall...)
	for _, r := range tbl {
		out = append(out, rest[r["_i"].(int)])
	}
	copy(trends, out)
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(
		newReportCmd(reportHPT, "Pest and disease (HPT) report",
			`  opsreport report hpt --pest 1 --start 2025-01-01 --end 2025-01-31
  opsreport report hpt --pest Thrips --locations "GH 1,GH 2" --sort actual --desc`),
		newReportCmd(reportProduction, "Production report with reject ratios",
			`  opsreport report production --variant 3
  opsreport report production --format xlsx --out production.xlsx`),
		newReportCmd(reportProductivity, "Productivity heatmap: weekly series per location",
			`  opsreport report productivity --sort mean --desc
  opsreport report productivity --format jsonl | opsreport analyze summary`),
	)

	pf := reportCmd.PersistentFlags()
	pf.StringVar(&reportFlags.Locations, "locations", "",
		"comma-separated location names (default: every location, hidden included)")
	pf.StringVar(&reportFlags.Start, "start", "", "start date YYYY-MM-DD (default: first of this month)")
	pf.StringVar(&reportFlags.End, "end", "", "end date YYYY-MM-DD (default: today)")
	pf.StringVar(&reportFlags.Pest, "pest", "", "pest (hama) ID or refdata name")
	pf.StringVar(&reportFlags.Variant, "variant", "", "variant ID")
	pf.StringVar(&reportFlags.Sort, "sort", "", "sort column for detail rows or trends")
	pf.BoolVar(&reportFlags.Desc, "desc", false, "sort descending")
}
