package render_test

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/kebunops/opsreport/internal/analyze"
	"github.com/kebunops/opsreport/internal/model"
	"github.com/kebunops/opsreport/internal/render"
	"github.com/kebunops/opsreport/internal/report"
)

// ─── Fixtures ─────────────────────────────────────────────────────────────────

func productionResult() *model.Result {
	return &model.Result{
		Kind: model.KindProduction,
		Data: &report.ProductionView{
			Summary: report.Summary{
				SummaryMetric: model.SummaryMetric{Current: 3500, Previous: 3000},
				ChangePercent: 16.666666,
			},
			Detail: []model.DetailRow{
				{Location: "GH 1", Actual: 1500, LastActual: 1000, DiffPercent: 50, Lowest: true, RejectRatio: 12.5},
				{Location: "GH 2", Actual: 2000, LastActual: 2000, Highest: true},
			},
		},
	}
}

func hptResult() *model.Result {
	return &model.Result{
		Kind: model.KindHPT,
		Data: &report.HPTView{
			PestUnit: "ekor",
			Detail:   []model.DetailRow{{Location: "GH 1", Actual: 4}},
			Series: []model.LocationSeries{{
				Group: "Thrips", Location: "GH 1",
				Points: []model.DataPoint{{Date: "2025-01-01", Value: 4}, {Date: "2025-01-02", Value: 0}},
			}},
		},
	}
}

// ─── Table ────────────────────────────────────────────────────────────────────

func TestRenderTableUsesLocaleNumbers(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render.Render(&buf, productionResult(), render.FormatTable))
	out := buf.String()

	assert.Contains(t, out, "Production summary")
	assert.Contains(t, out, "Production detail")
	assert.Contains(t, out, "3.500,00")
	assert.Contains(t, out, "16,67%")
	assert.Contains(t, out, "12,50%")
	assert.Contains(t, out, "lowest")
}

func TestRenderTableEmptySection(t *testing.T) {
	res := &model.Result{Kind: model.KindProductivity, Data: &report.ProductivityView{}}
	var buf bytes.Buffer
	require.NoError(t, render.Render(&buf, res, render.FormatTable))
	assert.Contains(t, buf.String(), "(no rows)")
}

func TestRenderTableUnknownFallsBackToJSON(t *testing.T) {
	res := &model.Result{Kind: "other", Data: map[string]int{"n": 1}}
	var buf bytes.Buffer
	require.NoError(t, render.Render(&buf, res, render.FormatTable))
	assert.Contains(t, buf.String(), `"kind": "other"`)
}

// ─── CSV / TSV ────────────────────────────────────────────────────────────────

func TestRenderCSVMultiSection(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render.Render(&buf, productionResult(), render.FormatCSV))

	r := csv.NewReader(&buf)
	r.FieldsPerRecord = -1
	recs, err := r.ReadAll()
	require.NoError(t, err)

	assert.Equal(t, []string{"section", "field", "value"}, recs[0])
	assert.Equal(t, []string{"production_summary", "Current", "3500"}, recs[1])

	var detailHeader []string
	for _, rec := range recs {
		if len(rec) > 0 && rec[0] == "section" && len(rec) > 3 {
			detailHeader = rec
		}
	}
	assert.Equal(t, []string{"section", "location", "actual", "last_actual", "diff", "mark", "reject"}, detailHeader)
}

func TestRenderTSVSingleSection(t *testing.T) {
	res := &model.Result{
		Kind: model.KindAnalysis,
		Data: []analyze.Summary{{Series: "GH 1", Count: 2, Mean: 1.5, ChangePct: 100}},
	}
	var buf bytes.Buffer
	require.NoError(t, render.Render(&buf, res, render.FormatTSV))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "series\tcount\tmean"), lines[0])
	assert.True(t, strings.HasSuffix(lines[0], "change_pct"), lines[0])
	assert.True(t, strings.HasSuffix(lines[1], "\t100.00"), lines[1])
}

// ─── JSONL ────────────────────────────────────────────────────────────────────

func TestRenderJSONLSeriesRecords(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render.Render(&buf, hptResult(), render.FormatJSONL))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `{"series":"Thrips/GH 1","label":"2025-01-02","value":0}`, lines[1])
}

func TestRenderJSONLEmptyViewWritesNothing(t *testing.T) {
	res := &model.Result{Kind: model.KindHPT, Data: &report.HPTView{}}
	var buf bytes.Buffer
	require.NoError(t, render.Render(&buf, res, render.FormatJSONL))
	assert.Empty(t, buf.String())
}

// ─── Markdown ─────────────────────────────────────────────────────────────────

func TestRenderMarkdown(t *testing.T) {
	res := &model.Result{
		Kind: model.KindLocations,
		Data: &report.LocationsView{
			Records:   []model.LocationRecord{{ID: "1", Name: "GH|1"}, {ID: "2", Name: "GH 2", Hidden: true}},
			Selection: []string{"GH|1"},
			IDQuery:   "1",
		},
	}
	var buf bytes.Buffer
	require.NoError(t, render.Render(&buf, res, render.FormatMD))
	out := buf.String()
	assert.Contains(t, out, "### Locations")
	assert.Contains(t, out, "| NAME | ID | HIDDEN | SELECTED |")
	assert.Contains(t, out, `| GH\|1 | 1 |  | yes |`)
	assert.Contains(t, out, "_location_id=1_")
}

// ─── XLSX ─────────────────────────────────────────────────────────────────────

func TestRenderXLSXOneSheetPerSection(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render.Render(&buf, hptResult(), render.FormatXLSX))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"HPT (ekor) summary", "HPT detail", "HPT trend"}, f.GetSheetList())

	rows, err := f.GetRows("HPT trend")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"GROUP", "LOCATION", "DATE", "VALUE"}, rows[0])
	assert.Equal(t, []string{"Thrips", "GH 1", "2025-01-01", "4"}, rows[1])
}

func TestRenderXLSXRejectsNonTabular(t *testing.T) {
	res := &model.Result{Kind: "other", Data: 42}
	var buf bytes.Buffer
	assert.Error(t, render.Render(&buf, res, render.FormatXLSX))
}

func TestRenderToXLSXNeedsPath(t *testing.T) {
	err := render.RenderTo("", hptResult(), render.FormatXLSX)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--out")
}

func TestValidFormat(t *testing.T) {
	for _, f := range render.Formats {
		assert.True(t, render.ValidFormat(f), f)
	}
	assert.False(t, render.ValidFormat("yaml"))
}

// ─── Footer ───────────────────────────────────────────────────────────────────

func TestPrintFooter(t *testing.T) {
	res := &model.Result{Warnings: []string{"hpt: no data for the selected filters"}}
	var buf bytes.Buffer
	render.PrintFooter(&buf, res, false)
	assert.Equal(t, "⚠  hpt: no data for the selected filters\n", buf.String())

	buf.Reset()
	res.Stats.Items = 3
	render.PrintFooter(&buf, res, true)
	assert.Contains(t, buf.String(), "3 items")
	assert.Contains(t, buf.String(), "live")
}
