package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kebunops/opsreport/internal/config"
	"github.com/kebunops/opsreport/internal/model"
	"github.com/kebunops/opsreport/internal/pipeline"
	"github.com/kebunops/opsreport/internal/report"
	"github.com/kebunops/opsreport/internal/series"
	"github.com/kebunops/opsreport/internal/util"
)

// ─── Output ───────────────────────────────────────────────────────────────────

func TestOutputWriterDefault(t *testing.T) {
	globalFlags.Out = ""
	w, closeFn, err := outputWriter(os.Stdout)
	if err != nil {
		t.Fatalf("outputWriter default: %v", err)
	}
	if w != os.Stdout {
		t.Fatalf("expected stdout writer passthrough")
	}
	if err := closeFn(); err != nil {
		t.Fatalf("default closer should be nil error, got: %v", err)
	}
}

func TestOutputWriterFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "out.txt")
	globalFlags.Out = p
	t.Cleanup(func() { globalFlags.Out = "" })

	w, closeFn, err := outputWriter(os.Stdout)
	if err != nil {
		t.Fatalf("outputWriter file: %v", err)
	}
	if w == os.Stdout {
		t.Fatalf("expected file writer, got stdout")
	}
	if err := closeFn(); err != nil {
		t.Fatalf("closing output writer: %v", err)
	}
	if _, err := os.Stat(p); err != nil {
		t.Fatalf("expected output file to exist: %v", err)
	}
}

func TestResolveFormat(t *testing.T) {
	t.Cleanup(func() { globalFlags.Format = "" })

	globalFlags.Format = ""
	if got := resolveFormat(""); got != "table" {
		t.Errorf("expected table fallback, got %q", got)
	}
	if got := resolveFormat("csv"); got != "csv" {
		t.Errorf("expected config format, got %q", got)
	}
	globalFlags.Format = "json"
	if got := resolveFormat("csv"); got != "json" {
		t.Errorf("expected flag to win, got %q", got)
	}
}

func TestAlertWarnings(t *testing.T) {
	got := alertWarnings([]report.Alert{{Kind: report.AlertEmpty, Source: "hpt", Message: "no data"}})
	if len(got) != 1 || got[0] != "hpt: no data" {
		t.Fatalf("unexpected warnings: %v", got)
	}
}

func TestHumanBytes(t *testing.T) {
	cases := map[int64]string{512: "512 B", 2048: "2.0 KB", 3 << 20: "3.0 MB"}
	for in, want := range cases {
		if got := humanBytes(in); got != want {
			t.Errorf("humanBytes(%d) = %q, want %q", in, got, want)
		}
	}
}

// ─── Command routing ──────────────────────────────────────────────────────────

func TestCommandRouting(t *testing.T) {
	paths := [][]string{
		{"locations"},
		{"refs"},
		{"report", "hpt"},
		{"report", "production"},
		{"report", "productivity"},
		{"analyze", "summary"},
		{"analyze", "trend"},
		{"chart", "bar"},
		{"chart", "plot"},
		{"transform", "pct-change"},
		{"transform", "diff"},
		{"transform", "roll"},
		{"preset", "save"},
		{"preset", "list"},
		{"preset", "show"},
		{"preset", "run"},
		{"preset", "delete"},
		{"cache", "stats"},
		{"cache", "list"},
		{"cache", "clear"},
		{"cache", "compact"},
		{"config", "init"},
		{"config", "get"},
		{"config", "set"},
		{"serve"},
		{"version"},
		{"completion"},
	}
	for _, p := range paths {
		c, _, err := rootCmd.Find(p)
		if err != nil {
			t.Errorf("%v: %v", p, err)
			continue
		}
		if c.Name() != p[len(p)-1] {
			t.Errorf("%v resolved to %q", p, c.Name())
		}
	}
}

// ─── Reference lists ──────────────────────────────────────────────────────────

type fakeRefs struct {
	pestErr error
	// variantCtxErr records the context state seen by Variants.
	variantCtxErr *error
}

func (f fakeRefs) Locations(context.Context) ([]model.LocationRecord, error) {
	return []model.LocationRecord{{ID: "5", Name: "GH 1"}}, nil
}

func (f fakeRefs) Pests(context.Context) ([]model.NamedRecord, error) {
	if f.pestErr != nil {
		return nil, f.pestErr
	}
	return []model.NamedRecord{{ID: "1", Name: "Thrips"}}, nil
}

func (f fakeRefs) Variants(ctx context.Context) ([]model.NamedRecord, error) {
	if f.variantCtxErr != nil {
		*f.variantCtxErr = ctx.Err()
	}
	return []model.NamedRecord{{ID: "3", Name: "Cavendish"}}, nil
}

func TestLoadRefsAll(t *testing.T) {
	refs, err := loadRefs(context.Background(), fakeRefs{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(refs.Locations) != 1 || len(refs.Pests) != 1 || len(refs.Variants) != 1 {
		t.Fatalf("unexpected lists: %+v", refs)
	}
}

func TestLoadRefsPartialFailure(t *testing.T) {
	boom := errors.New("pests down")
	refs, err := loadRefs(context.Background(), fakeRefs{pestErr: boom})

	var me *util.MultiError
	if !errors.As(err, &me) {
		t.Fatalf("expected *util.MultiError, got %T (%v)", err, err)
	}
	if len(me.Errors) != 1 || !errors.Is(err, boom) {
		t.Fatalf("expected exactly the pest error, got %v", me.Errors)
	}
	if len(refs.Locations) != 1 || len(refs.Variants) != 1 {
		t.Fatalf("other lists should still load: %+v", refs)
	}
}

func TestLoadRefsFailureDoesNotCancelOthers(t *testing.T) {
	var seen error
	for i := 0; i < 20; i++ {
		_, err := loadRefs(context.Background(), fakeRefs{pestErr: errors.New("down"), variantCtxErr: &seen})
		if err == nil {
			t.Fatal("expected the pest error")
		}
		if seen != nil {
			t.Fatalf("variants saw a cancelled context: %v", seen)
		}
	}
}

// ─── Sorting ──────────────────────────────────────────────────────────────────

func detailRows() []model.DetailRow {
	return []model.DetailRow{
		{Location: "GH 2", Actual: 20, DiffPercent: -5},
		{Location: "GH 1", Actual: 30, DiffPercent: 10},
		{Location: "GH 3", Actual: 10, DiffPercent: 0},
	}
}

func locationsOf(rows []model.DetailRow) string {
	names := make([]string, len(rows))
	for i, r := range rows {
		names[i] = r.Location
	}
	return strings.Join(names, ",")
}

func TestSortDetail(t *testing.T) {
	rows := detailRows()
	if err := sortDetail(rows, series.SortState{Column: "actual", Desc: true}); err != nil {
		t.Fatal(err)
	}
	if got := locationsOf(rows); got != "GH 1,GH 2,GH 3" {
		t.Errorf("actual desc: got %s", got)
	}

	rows = detailRows()
	if err := sortDetail(rows, series.SortState{Column: "location"}); err != nil {
		t.Fatal(err)
	}
	if got := locationsOf(rows); got != "GH 1,GH 2,GH 3" {
		t.Errorf("location asc: got %s", got)
	}

	rows = detailRows()
	if err := sortDetail(rows, series.SortState{Column: "diff"}); err != nil {
		t.Fatal(err)
	}
	if got := locationsOf(rows); got != "GH 2,GH 3,GH 1" {
		t.Errorf("diff asc: got %s", got)
	}
}

func TestSortDetailKeepsOrderWithoutColumn(t *testing.T) {
	rows := detailRows()
	if err := sortDetail(rows, series.SortState{}); err != nil {
		t.Fatal(err)
	}
	if got := locationsOf(rows); got != "GH 2,GH 1,GH 3" {
		t.Errorf("expected API order, got %s", got)
	}
}

func TestSortDetailUnknownColumn(t *testing.T) {
	if err := sortDetail(detailRows(), series.SortState{Column: "colour"}); err == nil {
		t.Fatal("expected error for unknown column")
	}
}

func TestSortTrendsOverallFirst(t *testing.T) {
	trends := []model.TrendSeries{
		{Location: "Overall", Overall: true, Points: []model.Point{{Value: 1}}},
		{Location: "GH 1", AgeDays: 10, Points: []model.Point{{Value: 5}, {Value: 7}}},
		{Location: "GH 2", AgeDays: 30, Points: []model.Point{{Value: 9}}},
	}
	if err := sortTrends(trends, series.SortState{Column: "mean", Desc: true}); err != nil {
		t.Fatal(err)
	}
	got := []string{trends[0].Location, trends[1].Location, trends[2].Location}
	if strings.Join(got, ",") != "Overall,GH 2,GH 1" {
		t.Errorf("unexpected order: %v", got)
	}

	if err := sortTrends(trends, series.SortState{Column: "age"}); err != nil {
		t.Fatal(err)
	}
	if trends[0].Location != "Overall" || trends[1].Location != "GH 1" {
		t.Errorf("age asc: unexpected order %s, %s", trends[0].Location, trends[1].Location)
	}
}

// ─── Filters ──────────────────────────────────────────────────────────────────

func TestWithDefaultRange(t *testing.T) {
	now := time.Date(2025, 3, 17, 10, 0, 0, 0, time.UTC)

	f := withDefaultRange(report.Filter{}, now)
	if f.Start != "2025-03-01" || f.End != "2025-03-17" {
		t.Errorf("expected current month, got %s..%s", f.Start, f.End)
	}

	f = withDefaultRange(report.Filter{Start: "2025-01-01", End: "2025-01-31"}, now)
	if f.Start != "2025-01-01" || f.End != "2025-01-31" {
		t.Errorf("explicit range changed: %s..%s", f.Start, f.End)
	}
}

func TestDescribeFilter(t *testing.T) {
	if got := describeFilter(report.Filter{}); got != "(defaults)" {
		t.Errorf("empty filter: got %q", got)
	}
	got := describeFilter(report.Filter{Locations: []string{"GH 1", "GH 2"}, Start: "2025-01-01", PestID: "1"})
	want := `--locations "GH 1,GH 2" --start 2025-01-01 --pest 1`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if got := describeFilter(report.Filter{Locations: []string{}}); got != `--locations ""` {
		t.Errorf("empty selection: got %q", got)
	}
}

func TestDescribeLocations(t *testing.T) {
	if got := describeLocations(nil); got != "(all)" {
		t.Errorf("nil: got %q", got)
	}
	if got := describeLocations([]string{}); got != "(none)" {
		t.Errorf("empty: got %q", got)
	}
}

// ─── Config ───────────────────────────────────────────────────────────────────

func TestSetFileKey(t *testing.T) {
	f := config.Template()
	if err := setFileKey(&f, "default_format", "csv"); err != nil || f.DefaultFormat != "csv" {
		t.Errorf("default_format: %v (%q)", err, f.DefaultFormat)
	}
	if err := setFileKey(&f, "retries", "3"); err != nil || f.Retries != 3 {
		t.Errorf("retries: %v (%d)", err, f.Retries)
	}
	if err := setFileKey(&f, "zero_base_policy", "growth"); err != nil || f.ZeroBase != "growth" {
		t.Errorf("zero_base_policy: %v (%q)", err, f.ZeroBase)
	}

	bad := [][2]string{
		{"default_format", "yaml"},
		{"timeout", "soon"},
		{"rate", "-1"},
		{"retries", "0"},
		{"page_size", "x"},
		{"zero_base_policy", "infinite"},
		{"colour", "blue"},
	}
	for _, kv := range bad {
		if err := setFileKey(&f, kv[0], kv[1]); err == nil {
			t.Errorf("%s=%s: expected error", kv[0], kv[1])
		}
	}
}

// ─── Pipeline commands ────────────────────────────────────────────────────────

const sampleJSONL = `{"series":"GH 1","label":"week 1","value":10}
{"series":"GH 1","label":"week 2","value":12}
{"series":"GH 1","label":"week 3","value":null}
{"series":"GH 1","label":"week 4","value":18}
{"series":"GH 2","label":"week 1","value":5}
{"series":"GH 2","label":"week 2","value":5}
`

func quietJSONL(t *testing.T) {
	t.Helper()
	globalFlags.Format = "jsonl"
	globalFlags.Quiet = true
	t.Cleanup(func() {
		globalFlags.Format = ""
		globalFlags.Quiet = false
	})
}

func TestAnalyzeSummaryCommand(t *testing.T) {
	quietJSONL(t)
	var out bytes.Buffer
	analyzeSummaryCmd.SetIn(strings.NewReader(sampleJSONL))
	analyzeSummaryCmd.SetOut(&out)

	if err := analyzeSummaryCmd.RunE(analyzeSummaryCmd, nil); err != nil {
		t.Fatalf("analyze summary: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected one line per series, got %d:\n%s", len(lines), out.String())
	}
	if !strings.Contains(lines[0], `"series":"GH 1"`) || !strings.Contains(lines[0], `"count":3`) {
		t.Errorf("unexpected first summary: %s", lines[0])
	}
}

func TestAnalyzeTrendSkipsShortSeries(t *testing.T) {
	quietJSONL(t)
	var out bytes.Buffer
	in := sampleJSONL + `{"series":"GH 3","label":"week 1","value":1}` + "\n"
	analyzeTrendCmd.SetIn(strings.NewReader(in))
	analyzeTrendCmd.SetOut(&out)

	if err := analyzeTrendCmd.RunE(analyzeTrendCmd, nil); err != nil {
		t.Fatalf("analyze trend: %v", err)
	}
	if got := strings.Count(strings.TrimSpace(out.String()), "\n") + 1; got != 2 {
		t.Errorf("expected 2 fitted series, got %d:\n%s", got, out.String())
	}
	if strings.Contains(out.String(), "GH 3") {
		t.Errorf("single-point series should be skipped:\n%s", out.String())
	}
}

func TestTransformDiffCommand(t *testing.T) {
	var out bytes.Buffer
	transformSeries = "GH 1"
	t.Cleanup(func() { transformSeries = "" })
	transformDiffCmd.SetIn(strings.NewReader(sampleJSONL))
	transformDiffCmd.SetOut(&out)

	if err := transformDiffCmd.RunE(transformDiffCmd, nil); err != nil {
		t.Fatalf("transform diff: %v", err)
	}
	recs, err := pipeline.ReadRecords(&out)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].Label != "week 2" || *recs[0].Value != 2 {
		t.Errorf("unexpected first record: %+v", recs[0])
	}
	if recs[1].Label != "week 4" || *recs[1].Value != 6 {
		t.Errorf("unexpected second record: %+v", recs[1])
	}
}

func TestChartBarCommand(t *testing.T) {
	var out bytes.Buffer
	chartSeries = "gh 2"
	t.Cleanup(func() { chartSeries = "" })
	chartBarCmd.SetIn(strings.NewReader(sampleJSONL))
	chartBarCmd.SetOut(&out)

	if err := chartBarCmd.RunE(chartBarCmd, nil); err != nil {
		t.Fatalf("chart bar: %v", err)
	}
	if !strings.HasPrefix(out.String(), "GH 2") {
		t.Errorf("expected GH 2 header, got:\n%s", out.String())
	}
}

func TestChartUnknownSeries(t *testing.T) {
	chartSeries = "GH 9"
	t.Cleanup(func() { chartSeries = "" })
	chartBarCmd.SetIn(strings.NewReader(sampleJSONL))
	chartBarCmd.SetOut(&bytes.Buffer{})

	if err := chartBarCmd.RunE(chartBarCmd, nil); err == nil {
		t.Fatal("expected error for a series missing from the input")
	}
}
