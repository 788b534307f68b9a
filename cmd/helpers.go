package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/kebunops/opsreport/internal/model"
	"github.com/kebunops/opsreport/internal/render"
	"github.com/kebunops/opsreport/internal/report"
)

// resolveFormat returns the effective format string, falling back to "table".
func resolveFormat(cfgFormat string) string {
	if globalFlags.Format != "" {
		return globalFlags.Format
	}
	if cfgFormat != "" {
		return cfgFormat
	}
	return render.FormatTable
}

// outputWriter returns the --out file when set, otherwise def. The returned
// close function is always safe to call.
func outputWriter(def io.Writer) (io.Writer, func() error, error) {
	if globalFlags.Out == "" {
		return def, func() error { return nil }, nil
	}
	f, err := os.Create(globalFlags.Out)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output file: %w", err)
	}
	return f, f.Close, nil
}

// emit renders result in the resolved format and prints warnings to stderr.
func emit(w io.Writer, result *model.Result, cfgFormat string) error {
	format := resolveFormat(cfgFormat)
	var err error
	if globalFlags.Out != "" || format == render.FormatXLSX {
		err = render.RenderTo(globalFlags.Out, result, format)
	} else {
		err = render.Render(w, result, format)
	}
	if err != nil {
		return err
	}
	if !globalFlags.Quiet {
		render.PrintFooter(os.Stderr, result, globalFlags.Verbose)
	}
	return nil
}

// newResult wraps data in a Result envelope stamped with the elapsed time.
func newResult(kind, command string, data interface{}, items int, started time.Time) *model.Result {
	return &model.Result{
		Kind:        kind,
		GeneratedAt: time.Now().UTC(),
		Command:     command,
		Data:        data,
		Stats: model.ResultStats{
			Items:      items,
			DurationMs: time.Since(started).Milliseconds(),
			CacheHit:   globalFlags.Offline,
		},
	}
}

// alertWarnings turns report alerts into footer warnings.
func alertWarnings(alerts []report.Alert) []string {
	out := make([]string, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, a.String())
	}
	return out
}

// printSimpleTable renders a simple table with headers using tablewriter.
// The add callback is called with row values as variadic strings.
func printSimpleTable(w io.Writer, headers []string, fill func(add func(...string))) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(headers)
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAutoWrapText(false)

	fill(func(cols ...string) {
		tw.Append(cols)
	})
	tw.Render()
}

// printKVTable renders a two-column key/value list using aligned columns.
func printKVTable(w io.Writer, rows [][]string) {
	maxKey := 0
	for _, r := range rows {
		if len(r[0]) > maxKey {
			maxKey = len(r[0])
		}
	}
	for _, r := range rows {
		padding := strings.Repeat(" ", maxKey-len(r[0]))
		fmt.Fprintf(w, "  %s%s  %s\n", r[0], padding, r[1])
	}
}

func humanBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
