package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kebunops/opsreport/internal/chart"
	"github.com/kebunops/opsreport/internal/pipeline"
)

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Render a report series as an ASCII chart (reads JSONL from stdin)",
	Long: `Chart commands read the JSONL records written by --format jsonl and draw
one series in the terminal. --series picks the series; the first series in
the input is used otherwise.

Pipeline examples:
  opsreport report productivity --format jsonl | opsreport chart bar --series "GH 1"
  opsreport report hpt --pest 1 --format jsonl | opsreport chart plot --title "Thrips"
  opsreport report production --format jsonl | opsreport chart bar`,
}

var chartSeries string

// ─── chart bar ───────────────────────────────────────────────────────────────

var (
	chartBarWidth   int
	chartBarMaxBars int
)

var chartBarCmd = &cobra.Command{
	Use:   "bar",
	Short: "Horizontal bar chart, one bar per week, day or location",
	Long: `Renders a horizontal bar chart with one labelled bar per record.

Weekly productivity series and production detail (one bar per location) are
the natural inputs. Negative values extend left from a zero baseline. Null
and sentinel values are skipped.`,
	Example: `  opsreport report productivity --format jsonl | opsreport chart bar --series "GH 1"
  opsreport report production --format jsonl | opsreport chart bar --width 100
  opsreport report hpt --pest 1 --format jsonl | opsreport chart bar --max-bars 14`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := readStream(cmd)
		if err != nil {
			return err
		}
		w, closeFn, err := outputWriter(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer closeFn()
		return chart.Bar(w, s.Series, s.Points, chart.BarOptions{
			Width:   chartBarWidth,
			MaxBars: chartBarMaxBars,
		})
	},
}

// ─── chart plot ──────────────────────────────────────────────────────────────

var (
	chartPlotWidth  int
	chartPlotHeight int
	chartPlotTitle  string
)

var chartPlotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Multi-line ASCII chart with labelled axes",
	Long: `Renders a multi-line chart with Y-axis tick labels and X-axis period labels.

Width auto-detects from $COLUMNS (falls back to 80). Override with --width
and --height.`,
	Example: `  opsreport report hpt --pest 1 --format jsonl | opsreport chart plot
  opsreport report productivity --format jsonl | opsreport chart plot --series "GH 2" --height 8`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := readStream(cmd)
		if err != nil {
			return err
		}
		title := chartPlotTitle
		if title == "" {
			title = s.Series
		}
		w, closeFn, err := outputWriter(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer closeFn()
		return chart.Plot(w, s.Series, s.Points, chart.PlotOptions{
			Width:  chartPlotWidth,
			Height: chartPlotHeight,
			Title:  title,
		})
	},
}

// readStream reads stdin and picks the --series stream.
func readStream(cmd *cobra.Command) (pipeline.Stream, error) {
	streams, err := readStreams(cmd.InOrStdin(), "")
	if err != nil {
		return pipeline.Stream{}, err
	}
	s, err := pipeline.Select(streams, chartSeries)
	if err != nil {
		return pipeline.Stream{}, err
	}
	if s.Series == "" {
		s.Series = "series"
	}
	return s, nil
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(chartCmd)
	chartCmd.AddCommand(chartBarCmd)
	chartCmd.AddCommand(chartPlotCmd)

	chartCmd.PersistentFlags().StringVar(&chartSeries, "series", "",
		"series to draw (default: first series in the input)")

	chartBarCmd.Flags().IntVar(&chartBarWidth, "width", 0,
		"total chart width in characters (default: auto-detect from $COLUMNS, fallback 80)")
	chartBarCmd.Flags().IntVar(&chartBarMaxBars, "max-bars", 0,
		"maximum bars to render, keeping the last N (0 = no limit)")

	chartPlotCmd.Flags().IntVar(&chartPlotWidth, "width", 0,
		"chart width in characters (default: auto-detect from $COLUMNS, fallback 80)")
	chartPlotCmd.Flags().IntVar(&chartPlotHeight, "height", 12,
		"chart height in rows")
	chartPlotCmd.Flags().StringVar(&chartPlotTitle, "title", "",
		"chart title (default: series name)")
}
