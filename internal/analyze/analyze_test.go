package analyze_test

import (
	"fmt"
	"math"
	"testing"

	"github.com/kebunops/opsreport/internal/analyze"
	"github.com/kebunops/opsreport/internal/model"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

// makePoints builds weekly points labelled "week 1", "week 2", ...
func makePoints(values ...float64) []model.Point {
	out := make([]model.Point, len(values))
	for i, v := range values {
		out[i] = model.Point{
			Period: model.WeekKey(i + 1),
			Label:  fmt.Sprintf("week %d", i+1),
			Value:  v,
			Count:  1,
		}
	}
	return out
}

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// ─── Summarize ────────────────────────────────────────────────────────────────

func TestSummarizeBasic(t *testing.T) {
	s := analyze.Summarize("GH 1", makePoints(1, 2, 3, 4, 5))

	if s.Series != "GH 1" || s.Count != 5 {
		t.Errorf("Series/Count: got %q / %d", s.Series, s.Count)
	}
	if !approxEqual(s.Mean, 3, 1e-9) {
		t.Errorf("Mean: expected 3, got %g", s.Mean)
	}
	if !approxEqual(s.Std, math.Sqrt(2.5), 1e-9) {
		t.Errorf("Std: expected %g, got %g", math.Sqrt(2.5), s.Std)
	}
	if s.Median != 3 || s.P25 != 2 || s.P75 != 4 {
		t.Errorf("percentiles: got %g/%g/%g", s.P25, s.Median, s.P75)
	}
	if s.First != 1 || s.Last != 5 || s.Change != 4 {
		t.Errorf("first/last/change: got %g/%g/%g", s.First, s.Last, s.Change)
	}
	if !approxEqual(s.ChangePct, 400, 1e-9) {
		t.Errorf("ChangePct: expected 400, got %g", s.ChangePct)
	}
}

func TestSummarizeExtremeLabels(t *testing.T) {
	s := analyze.Summarize("x", makePoints(4, 1, 9, 1, 9))
	if s.Min != 1 || s.MinLabel != "week 2" {
		t.Errorf("Min: got %g at %q", s.Min, s.MinLabel)
	}
	if s.Max != 9 || s.MaxLabel != "week 3" {
		t.Errorf("Max: got %g at %q", s.Max, s.MaxLabel)
	}
}

func TestSummarizeZeroFirstHasZeroChangePct(t *testing.T) {
	s := analyze.Summarize("x", makePoints(0, 5))
	if s.ChangePct != 0 {
		t.Errorf("ChangePct with zero base: expected 0, got %g", s.ChangePct)
	}
	if s.Change != 5 {
		t.Errorf("Change: expected 5, got %g", s.Change)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := analyze.Summarize("none", nil)
	if s.Count != 0 || s.Mean != 0 || s.MinLabel != "" {
		t.Errorf("empty summary should be zero, got %+v", s)
	}
}

func TestSummarizeSinglePoint(t *testing.T) {
	s := analyze.Summarize("one", makePoints(7))
	if s.Std != 0 || s.Median != 7 || s.Min != 7 || s.Max != 7 {
		t.Errorf("single point summary: %+v", s)
	}
}

// ─── Trend ────────────────────────────────────────────────────────────────────

func TestTrendLinearPerfectFit(t *testing.T) {
	tr, err := analyze.Trend("GH 1", makePoints(2, 4, 6, 8), analyze.TrendLinear)
	if err != nil {
		t.Fatalf("Trend: %v", err)
	}
	if !approxEqual(tr.Slope, 2, 1e-9) || !approxEqual(tr.Intercept, 2, 1e-9) {
		t.Errorf("slope/intercept: got %g/%g", tr.Slope, tr.Intercept)
	}
	if !approxEqual(tr.R2, 1, 1e-9) {
		t.Errorf("R2: expected 1, got %g", tr.R2)
	}
	if tr.Direction != "up" {
		t.Errorf("Direction: expected up, got %q", tr.Direction)
	}
	// mean 5, slope 2 → 40% of mean per period
	if !approxEqual(tr.SlopePct, 40, 1e-9) {
		t.Errorf("SlopePct: expected 40, got %g", tr.SlopePct)
	}
}

func TestTrendDownAndFlat(t *testing.T) {
	down, _ := analyze.Trend("d", makePoints(10, 8, 6), analyze.TrendLinear)
	if down.Direction != "down" {
		t.Errorf("expected down, got %q", down.Direction)
	}
	flat, _ := analyze.Trend("f", makePoints(100, 100.1, 100), analyze.TrendLinear)
	if flat.Direction != "flat" {
		t.Errorf("expected flat, got %q", flat.Direction)
	}
}

func TestTrendConstantSeries(t *testing.T) {
	tr, err := analyze.Trend("c", makePoints(3, 3, 3), analyze.TrendLinear)
	if err != nil {
		t.Fatalf("Trend: %v", err)
	}
	if tr.Slope != 0 || tr.R2 != 1 || tr.Direction != "flat" {
		t.Errorf("constant series: %+v", tr)
	}
}

func TestTrendTheilSenResistsOutlier(t *testing.T) {
	pts := makePoints(1, 2, 3, 4, 100)
	ts, err := analyze.Trend("o", pts, analyze.TrendTheilSen)
	if err != nil {
		t.Fatalf("Trend: %v", err)
	}
	ols, _ := analyze.Trend("o", pts, analyze.TrendLinear)
	if !approxEqual(ts.Slope, 1, 1e-9) {
		t.Errorf("Theil-Sen slope: expected 1, got %g", ts.Slope)
	}
	if ols.Slope <= ts.Slope {
		t.Errorf("OLS slope %g should exceed Theil-Sen %g with an outlier", ols.Slope, ts.Slope)
	}
}

func TestTrendNeedsTwoPoints(t *testing.T) {
	if _, err := analyze.Trend("x", makePoints(1), analyze.TrendLinear); err == nil {
		t.Error("expected error for a single point")
	}
}

func TestTrendZeroMeanSlopePct(t *testing.T) {
	tr, err := analyze.Trend("z", makePoints(-1, 1), analyze.TrendLinear)
	if err != nil {
		t.Fatalf("Trend: %v", err)
	}
	if tr.SlopePct != 0 {
		t.Errorf("SlopePct with zero mean: expected 0, got %g", tr.SlopePct)
	}
}

func TestParseMethod(t *testing.T) {
	for in, want := range map[string]analyze.TrendMethod{
		"":          analyze.TrendLinear,
		"linear":    analyze.TrendLinear,
		"theil-sen": analyze.TrendTheilSen,
	} {
		got, err := analyze.ParseMethod(in)
		if err != nil || got != want {
			t.Errorf("ParseMethod(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := analyze.ParseMethod("cubic"); err == nil {
		t.Error("expected error for unknown method")
	}
}
