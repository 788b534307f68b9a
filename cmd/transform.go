package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kebunops/opsreport/internal/model"
	"github.com/kebunops/opsreport/internal/pipeline"
	"github.com/kebunops/opsreport/internal/transform"
)

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Apply an operator to report series (JSONL in, JSONL out)",
	Long: `Transform operators read JSONL records from stdin, apply the operator to
every series (or only --series) and write JSONL to stdout, so they chain
between a report and analyze or chart.

Pipeline examples:
  opsreport report productivity --format jsonl | opsreport transform pct-change | opsreport chart bar
  opsreport report hpt --pest 1 --format jsonl | opsreport transform roll --window 7 | opsreport chart plot`,
}

var transformSeries string

// runTransform applies op to each selected stream and writes the result.
func runTransform(cmd *cobra.Command, op func([]model.Point) ([]model.Point, error)) error {
	streams, err := readStreams(cmd.InOrStdin(), transformSeries)
	if err != nil {
		return err
	}
	out := make([]pipeline.Stream, 0, len(streams))
	for _, s := range streams {
		pts, err := op(s.Points)
		if err != nil {
			return fmt.Errorf("series %q: %w", s.Series, err)
		}
		out = append(out, pipeline.Stream{Series: s.Series, Points: pts})
	}
	w, closeFn, err := outputWriter(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer closeFn()
	return pipeline.WriteJSONL(w, pipeline.Records(out))
}

// ─── transform pct-change ─────────────────────────────────────────────────────

var transformPctPeriod int

var transformPctChangeCmd = &cobra.Command{
	Use:   "pct-change",
	Short: "Percent change against the point --period steps earlier",
	Long: `Computes (v[t] - v[t-period]) / v[t-period] * 100 per series. A zero base
follows zero_base_policy: flat reports 0%, growth reports +100%.`,
	Example: `  opsreport report productivity --format jsonl | opsreport transform pct-change
  opsreport report productivity --format jsonl | opsreport transform pct-change --period 4`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runTransform(cmd, func(pts []model.Point) ([]model.Point, error) {
			return transform.PctChange(pts, transformPctPeriod, cfg.ZeroBase)
		})
	},
}

// ─── transform diff ───────────────────────────────────────────────────────────

var transformDiffOrder int

var transformDiffCmd = &cobra.Command{
	Use:     "diff",
	Short:   "First or second order difference",
	Example: `  opsreport report hpt --pest 1 --format jsonl | opsreport transform diff`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransform(cmd, func(pts []model.Point) ([]model.Point, error) {
			return transform.Diff(pts, transformDiffOrder)
		})
	},
}

// ─── transform roll ───────────────────────────────────────────────────────────

var (
	transformRollWindow     int
	transformRollMinPeriods int
	transformRollStat       string
)

var transformRollCmd = &cobra.Command{
	Use:   "roll",
	Short: "Rolling window statistic: mean, std, min, max or sum",
	Long: `Computes a statistic over the current point and the window-1 points
before it. Points whose window holds fewer than --min-periods values are
dropped (default: the full window).`,
	Example: `  opsreport report hpt --pest 1 --format jsonl | opsreport transform roll --window 7
  opsreport report productivity --format jsonl | opsreport transform roll --window 4 --stat max`,
	RunE: func(cmd *cobra.Command, args []string) error {
		minPeriods := transformRollMinPeriods
		if minPeriods == 0 {
			minPeriods = transformRollWindow
		}
		return runTransform(cmd, func(pts []model.Point) ([]model.Point, error) {
			return transform.Roll(pts, transformRollWindow, minPeriods, transform.RollStat(transformRollStat))
		})
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(transformCmd)
	transformCmd.AddCommand(transformPctChangeCmd, transformDiffCmd, transformRollCmd)

	transformCmd.PersistentFlags().StringVar(&transformSeries, "series", "",
		"transform only this series (default: every series)")

	transformPctChangeCmd.Flags().IntVar(&transformPctPeriod, "period", 1, "steps back to compare against")
	transformDiffCmd.Flags().IntVar(&transformDiffOrder, "order", 1, "difference order: 1 or 2")
	transformRollCmd.Flags().IntVar(&transformRollWindow, "window", 4, "window size in points")
	transformRollCmd.Flags().IntVar(&transformRollMinPeriods, "min-periods", 0, "minimum points per window (default: window)")
	transformRollCmd.Flags().StringVar(&transformRollStat, "stat", string(transform.RollMean), "mean|std|min|max|sum")
}
