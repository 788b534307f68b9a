// Package render converts Result values into human-readable or machine-parseable
// output. Every report view is first flattened into titled sections; each
// format then writes those sections its own way. The top-level Render
// dispatcher selects based on the format string.
package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kebunops/opsreport/internal/analyze"
	"github.com/kebunops/opsreport/internal/metric"
	"github.com/kebunops/opsreport/internal/model"
	"github.com/kebunops/opsreport/internal/pipeline"
	"github.com/kebunops/opsreport/internal/report"
	"github.com/olekukonko/tablewriter"
)

// Format constants matching --format flag values.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
	FormatTSV   = "tsv"
	FormatMD    = "md"
	FormatXLSX  = "xlsx"
)

// Formats lists every accepted --format value.
var Formats = []string{FormatTable, FormatJSON, FormatJSONL, FormatCSV, FormatTSV, FormatMD, FormatXLSX}

// ValidFormat reports whether f is a known format.
func ValidFormat(f string) bool {
	for _, known := range Formats {
		if f == known {
			return true
		}
	}
	return false
}

// Percent is a cell value that is already a percentage. Human formats
// append "%"; machine formats keep the bare number.
type Percent float64

// Table is one titled section of output. Cells may be string, float64,
// Percent, int or bool.
type Table struct {
	Title  string   `json:"title,omitempty"`
	Header []string `json:"header"`
	Rows   [][]any  `json:"rows"`
	// Note is printed under the table in human formats.
	Note string `json:"note,omitempty"`
}

// Render writes result to w in the specified format.
func Render(w io.Writer, result *model.Result, format string) error {
	switch format {
	case FormatJSON:
		return renderJSON(w, result)
	case FormatJSONL:
		return renderJSONL(w, result)
	case FormatCSV:
		return renderDelimited(w, result, ',')
	case FormatTSV:
		return renderDelimited(w, result, '\t')
	case FormatMD:
		return renderMarkdown(w, result)
	case FormatXLSX:
		return renderXLSX(w, result)
	default:
		return renderTable(w, result)
	}
}

// RenderTo writes to stdout by default; if path is non-empty, writes to file.
func RenderTo(path string, result *model.Result, format string) error {
	if path == "" {
		if format == FormatXLSX {
			return fmt.Errorf("--format xlsx requires --out <file.xlsx>")
		}
		return Render(os.Stdout, result, format)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()
	return Render(f, result, format)
}

// ─── Sections ─────────────────────────────────────────────────────────────────

// Sections flattens result.Data into tables. ok is false when the data type
// has no tabular form, in which case callers fall back to JSON.
func Sections(result *model.Result) (tables []Table, ok bool) {
	switch v := result.Data.(type) {
	case *report.HPTView:
		title := "HPT"
		if v.PestUnit != "" {
			title += " (" + v.PestUnit + ")"
		}
		return []Table{
			summaryTable(title+" summary", v.Summary),
			detailTable("HPT detail", v.Detail, false),
			locationSeriesTable(v.Series),
		}, true
	case *report.ProductionView:
		return []Table{
			summaryTable("Production summary", v.Summary),
			detailTable("Production detail", v.Detail, true),
		}, true
	case *report.ProductivityView:
		return []Table{trendTable(v)}, true
	case *report.LocationsView:
		return []Table{locationsTable(v)}, true
	case []analyze.Summary:
		return []Table{analysisSummaryTable(v)}, true
	case []analyze.TrendResult:
		return []Table{analysisTrendTable(v)}, true
	case []pipeline.Stream:
		return []Table{streamTable(v)}, true
	case *Table:
		return []Table{*v}, true
	case Table:
		return []Table{v}, true
	case []Table:
		return v, true
	}
	return nil, false
}

func summaryTable(title string, s report.Summary) Table {
	return Table{
		Title:  title,
		Header: []string{"FIELD", "VALUE"},
		Rows: [][]any{
			{"Current", s.Current},
			{"Previous", s.Previous},
			{"Change", Percent(s.ChangePercent)},
			{"Lowest", s.Lowest},
			{"Lowest location", s.LowestLocation},
			{"Highest", s.Highest},
			{"Highest location", s.HighestLocation},
		},
	}
}

func detailTable(title string, rows []model.DetailRow, withReject bool) Table {
	t := Table{Title: title, Header: []string{"LOCATION", "ACTUAL", "LAST ACTUAL", "DIFF", "MARK"}}
	if withReject {
		t.Header = append(t.Header, "REJECT")
	}
	for _, r := range rows {
		mark := ""
		switch {
		case r.Lowest && r.Highest:
			mark = "lowest/highest"
		case r.Lowest:
			mark = "lowest"
		case r.Highest:
			mark = "highest"
		}
		row := []any{r.Location, r.Actual, r.LastActual, Percent(r.DiffPercent), mark}
		if withReject {
			row = append(row, Percent(r.RejectRatio))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func locationSeriesTable(series []model.LocationSeries) Table {
	t := Table{Title: "HPT trend", Header: []string{"GROUP", "LOCATION", "DATE", "VALUE"}}
	for _, s := range series {
		for _, p := range s.Points {
			t.Rows = append(t.Rows, []any{s.Group, s.Location, p.Date, p.Value})
		}
	}
	return t
}

func trendTable(v *report.ProductivityView) Table {
	t := Table{Title: "Productivity", Header: []string{"LOCATION", "CODE", "AGE (DAYS)", "PERIOD", "VALUE", "COUNT"}}
	for _, tr := range v.Trends {
		for _, p := range tr.Points {
			t.Rows = append(t.Rows, []any{tr.Location, tr.Code, tr.AgeDays, p.Label, p.Value, p.Count})
		}
	}
	if pg := v.Pagination; pg != nil && pg.TotalPages > 0 {
		t.Note = fmt.Sprintf("page %d of %d, %d locations", pg.Page, pg.TotalPages, pg.Total)
	}
	return t
}

func locationsTable(v *report.LocationsView) Table {
	selected := map[string]bool{}
	for _, n := range v.Selection {
		selected[n] = true
	}
	t := Table{Title: "Locations", Header: []string{"NAME", "ID", "HIDDEN", "SELECTED"}}
	for _, r := range v.Records {
		t.Rows = append(t.Rows, []any{r.Name, r.ID, r.Hidden, selected[r.Name]})
	}
	t.Note = "location_id=" + v.IDQuery
	return t
}

func analysisSummaryTable(sums []analyze.Summary) Table {
	t := Table{Title: "Summary", Header: []string{
		"SERIES", "COUNT", "MEAN", "STD", "MIN", "MIN AT", "MEDIAN", "MAX", "MAX AT", "FIRST", "LAST", "CHANGE", "CHANGE %",
	}}
	for _, s := range sums {
		t.Rows = append(t.Rows, []any{
			s.Series, s.Count, s.Mean, s.Std, s.Min, s.MinLabel, s.Median,
			s.Max, s.MaxLabel, s.First, s.Last, s.Change, Percent(s.ChangePct),
		})
	}
	return t
}

func analysisTrendTable(trends []analyze.TrendResult) Table {
	t := Table{Title: "Trend", Header: []string{
		"SERIES", "METHOD", "POINTS", "SLOPE", "INTERCEPT", "R2", "DIRECTION", "SLOPE %",
	}}
	for _, tr := range trends {
		t.Rows = append(t.Rows, []any{
			tr.Series, string(tr.Method), tr.Points, tr.Slope, tr.Intercept, tr.R2, tr.Direction, Percent(tr.SlopePct),
		})
	}
	return t
}

func streamTable(streams []pipeline.Stream) Table {
	t := Table{Title: "Series", Header: []string{"SERIES", "PERIOD", "VALUE"}}
	for _, s := range streams {
		for _, p := range s.Points {
			t.Rows = append(t.Rows, []any{s.Series, p.Label, p.Value})
		}
	}
	return t
}

// ─── JSON ─────────────────────────────────────────────────────────────────────

func renderJSON(w io.Writer, result *model.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// ─── JSONL ────────────────────────────────────────────────────────────────────

// renderJSONL writes the pipeline record stream for series-bearing data and
// one object per element for lists.
func renderJSONL(w io.Writer, result *model.Result) error {
	enc := json.NewEncoder(w)
	switch v := result.Data.(type) {
	case *report.HPTView, *report.ProductionView, *report.ProductivityView, []pipeline.Stream:
		return pipeline.WriteJSONL(w, pipeline.Records(v))
	case *report.LocationsView:
		for _, r := range v.Records {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return nil
	case []analyze.Summary:
		for _, s := range v {
			if err := enc.Encode(s); err != nil {
				return err
			}
		}
		return nil
	case []analyze.TrendResult:
		for _, tr := range v {
			if err := enc.Encode(tr); err != nil {
				return err
			}
		}
		return nil
	default:
		return enc.Encode(result.Data)
	}
}

// ─── Table ────────────────────────────────────────────────────────────────────

func renderTable(w io.Writer, result *model.Result) error {
	tables, ok := Sections(result)
	if !ok {
		// Fallback: JSON
		return renderJSON(w, result)
	}
	for i, t := range tables {
		if i > 0 {
			fmt.Fprintln(w)
		}
		writeTable(w, t)
	}
	return nil
}

func writeTable(w io.Writer, t Table) {
	if t.Title != "" {
		fmt.Fprintln(w, t.Title)
	}
	if len(t.Rows) == 0 {
		fmt.Fprintln(w, "(no rows)")
		return
	}
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(t.Header)
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetAutoFormatHeaders(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetColumnAlignment(columnAlignment(t))
	tw.SetAutoWrapText(false)

	for _, row := range t.Rows {
		tw.Append(formatRow(row, true))
	}
	tw.Render()
	if t.Note != "" {
		fmt.Fprintln(w, t.Note)
	}
}

// columnAlignment right-aligns numeric columns, judged by the first row.
func columnAlignment(t Table) []int {
	align := make([]int, len(t.Header))
	for i := range align {
		align[i] = tablewriter.ALIGN_LEFT
		if len(t.Rows) > 0 && i < len(t.Rows[0]) {
			switch t.Rows[0][i].(type) {
			case float64, Percent, int:
				align[i] = tablewriter.ALIGN_RIGHT
			}
		}
	}
	return align
}

// ─── CSV / TSV ────────────────────────────────────────────────────────────────

func renderDelimited(w io.Writer, result *model.Result, sep rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = sep

	tables, ok := Sections(result)
	if !ok {
		// Fallback: serialize as JSON on a single line
		b, _ := json.Marshal(result.Data)
		_ = cw.Write([]string{string(b)})
		cw.Flush()
		return cw.Error()
	}

	// Multiple sections share one stream: a "section" column keeps rows
	// attributable without breaking column alignment.
	multi := len(tables) > 1
	for i, t := range tables {
		if multi && i > 0 {
			_ = cw.Write(nil)
		}
		header := make([]string, 0, len(t.Header)+1)
		if multi {
			header = append(header, "section")
		}
		for _, h := range t.Header {
			header = append(header, snake(h))
		}
		_ = cw.Write(header)
		for _, row := range t.Rows {
			rec := formatRow(row, false)
			if multi {
				rec = append([]string{snake(t.Title)}, rec...)
			}
			_ = cw.Write(rec)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ─── Markdown ─────────────────────────────────────────────────────────────────

func renderMarkdown(w io.Writer, result *model.Result) error {
	tables, ok := Sections(result)
	if !ok {
		return renderJSON(w, result)
	}
	for i, t := range tables {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if t.Title != "" {
			fmt.Fprintf(w, "### %s\n\n", mdEscape(t.Title))
		}
		fmt.Fprintf(w, "| %s |\n", strings.Join(t.Header, " | "))
		seps := make([]string, len(t.Header))
		for j, a := range columnAlignment(t) {
			seps[j] = "---"
			if a == tablewriter.ALIGN_RIGHT {
				seps[j] = "--:"
			}
		}
		fmt.Fprintf(w, "|%s|\n", strings.Join(seps, "|"))
		for _, row := range t.Rows {
			cells := formatRow(row, true)
			for j := range cells {
				cells[j] = mdEscape(cells[j])
			}
			fmt.Fprintf(w, "| %s |\n", strings.Join(cells, " | "))
		}
		if t.Note != "" {
			fmt.Fprintf(w, "\n_%s_\n", mdEscape(t.Note))
		}
	}
	return nil
}

// ─── Warnings / Stats Footer ─────────────────────────────────────────────────

// PrintFooter writes warnings and stats to w when verbose mode is on.
func PrintFooter(w io.Writer, result *model.Result, verbose bool) {
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "⚠  %s\n", warn)
	}
	if verbose {
		src := "live"
		if result.Stats.CacheHit {
			src = "cache"
		}
		fmt.Fprintf(w, "\n[%s • %d items • %dms • %s]\n",
			result.GeneratedAt.Format(time.RFC3339),
			result.Stats.Items,
			result.Stats.DurationMs,
			src,
		)
	}
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// formatRow formats cells for display (human) or for machine formats.
// Human numbers use Indonesian separators; machine numbers stay parseable.
func formatRow(row []any, human bool) []string {
	out := make([]string, len(row))
	for i, c := range row {
		out[i] = formatCell(c, human)
	}
	return out
}

func formatCell(c any, human bool) string {
	switch v := c.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if human {
			return metric.FormatNumber(v, 2)
		}
		return strconv.FormatFloat(metric.Finite(v), 'f', -1, 64)
	case Percent:
		if human {
			return metric.FormatPercent(float64(v), 2)
		}
		return strconv.FormatFloat(metric.Finite(float64(v)), 'f', 2, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		if human {
			if v {
				return "yes"
			}
			return ""
		}
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// snake lower-cases a header for machine formats: "LAST ACTUAL" → "last_actual".
func snake(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "_", "(", "", ")", "", "%", "pct", "/", "_").Replace(s)
	return strings.Trim(s, "_")
}

func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
