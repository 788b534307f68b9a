package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kebunops/opsreport/internal/analyze"
	"github.com/kebunops/opsreport/internal/model"
	"github.com/kebunops/opsreport/internal/pipeline"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze report series (reads JSONL from stdin)",
	Long: `Analyze operators read the JSONL records written by --format jsonl and
print one result per series. --series restricts the input to one series.

Examples:
  opsreport report productivity --format jsonl | opsreport analyze summary
  opsreport report hpt --pest 1 --format jsonl | opsreport analyze trend --series "GH 1"`,
}

var analyzeSeries string

// ─── analyze summary ─────────────────────────────────────────────────────────

var analyzeSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Descriptive statistics per series: count, mean, std, min, max, quartiles",
	Example: `  opsreport report productivity --format jsonl | opsreport analyze summary
  opsreport report productivity --format jsonl | opsreport analyze summary --series "GH 2" --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		started := time.Now()
		streams, err := readStreams(cmd.InOrStdin(), analyzeSeries)
		if err != nil {
			return err
		}

		out := make([]analyze.Summary, 0, len(streams))
		for _, s := range streams {
			out = append(out, analyze.Summarize(s.Series, s.Points))
		}
		result := newResult(model.KindAnalysis, "analyze summary", out, len(out), started)
		return emit(cmd.OutOrStdout(), result, "")
	},
}

// ─── analyze trend ────────────────────────────────────────────────────────────

var analyzeTrendMethod string

var analyzeTrendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Fit a trend per series: slope per period, intercept, R², direction",
	Example: `  opsreport report productivity --format jsonl | opsreport analyze trend
  opsreport report hpt --pest 1 --format jsonl | opsreport analyze trend --method theil-sen`,
	RunE: func(cmd *cobra.Command, args []string) error {
		started := time.Now()
		method, err := analyze.ParseMethod(analyzeTrendMethod)
		if err != nil {
			return err
		}
		streams, err := readStreams(cmd.InOrStdin(), analyzeSeries)
		if err != nil {
			return err
		}

		var (
			out      []analyze.TrendResult
			warnings []string
		)
		for _, s := range streams {
			tr, err := analyze.Trend(s.Series, s.Points, method)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("%s: %v", s.Series, err))
				continue
			}
			out = append(out, tr)
		}
		if len(out) == 0 && len(warnings) > 0 {
			return fmt.Errorf("no series could be fitted: %s", warnings[0])
		}
		result := newResult(model.KindAnalysis, "analyze trend", out, len(out), started)
		result.Warnings = warnings
		return emit(cmd.OutOrStdout(), result, "")
	},
}

// readStreams reads JSONL records and groups them by series. A non-empty
// name keeps only that series.
func readStreams(r io.Reader, name string) ([]pipeline.Stream, error) {
	if r == os.Stdin && !pipeline.StdinIsPipe() {
		return nil, fmt.Errorf("no input: pipe JSONL from a --format jsonl command")
	}
	recs, err := pipeline.ReadRecords(r)
	if err != nil {
		return nil, err
	}
	streams := pipeline.Group(recs)
	if name == "" {
		return streams, nil
	}
	s, err := pipeline.Select(streams, name)
	if err != nil {
		return nil, err
	}
	return []pipeline.Stream{s}, nil
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.AddCommand(analyzeSummaryCmd)
	analyzeCmd.AddCommand(analyzeTrendCmd)

	analyzeCmd.PersistentFlags().StringVar(&analyzeSeries, "series", "",
		"analyze only this series (default: every series in the input)")
	analyzeTrendCmd.Flags().StringVar(&analyzeTrendMethod, "method", string(analyze.TrendLinear),
		"regression method: linear|theil-sen")
}
