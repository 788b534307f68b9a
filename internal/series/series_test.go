package series_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kebunops/opsreport/internal/model"
	"github.com/kebunops/opsreport/internal/series"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

func f(v float64) *float64 { return &v }

func entry(loc, p string, v *float64) series.Entry {
	return series.Entry{Location: loc, Period: p, Value: v}
}

// ─── Build ────────────────────────────────────────────────────────────────────

func TestBuildAveragesWithinBucketFirstSeenOrder(t *testing.T) {
	entries := []series.Entry{
		entry("GH 1", "week 5", f(10)),
		entry("GH 1", "week 3", f(4)),
		entry("GH 2", "W05", f(20)),
		entry("GH 2", "week 3", f(6)),
	}
	got := series.Build(entries, series.Options{})

	require.Len(t, got, 2)
	assert.Equal(t, []string{"week 5", "week 3"}, series.Labels(got))
	assert.Equal(t, []float64{15, 5}, series.Values(got))
	assert.Equal(t, 2, got[0].Count)
}

func TestBuildDropsNullKeepsZero(t *testing.T) {
	entries := []series.Entry{
		entry("GH 1", "week 1", f(0)),
		entry("GH 1", "week 2", nil),
	}
	got := series.Build(entries, series.Options{})
	require.Len(t, got, 1)
	assert.Equal(t, "week 1", got[0].Label)
	assert.Equal(t, 0.0, got[0].Value)
}

func TestBuildNullDoesNotDiluteMean(t *testing.T) {
	entries := []series.Entry{
		entry("A", "week 1", f(10)),
		entry("B", "week 1", nil),
	}
	got := series.Build(entries, series.Options{})
	require.Len(t, got, 1)
	assert.Equal(t, 10.0, got[0].Value)
}

func TestBuildDropsSentinels(t *testing.T) {
	entries := []series.Entry{
		entry("A", "week 1", f(3.4028235e38)),
		entry("A", "week 1", f(-3.4028235e38)),
		entry("A", "week 1", f(math.MaxFloat32)),
		entry("A", "week 2", f(8)),
	}
	got := series.Build(entries, series.Options{})
	require.Len(t, got, 1)
	assert.Equal(t, "week 2", got[0].Label)
}

func TestBuildHiddenAndSelection(t *testing.T) {
	entries := []series.Entry{
		{Location: "GH 1", Period: "week 1", Value: f(1)},
		{Location: "GH 2", Period: "week 1", Value: f(100), Hidden: true},
		{Location: "GH 3", Period: "week 1", Value: f(50)},
		{Location: "GH 4", Period: "week 1", Value: f(7)},
	}
	got := series.Build(entries, series.Options{
		Selected: []string{"GH 1", "GH 2", "GH 4"},
		Hidden:   []string{"GH 4"},
	})
	require.Len(t, got, 1)
	assert.Equal(t, 1.0, got[0].Value)
}

func TestBuildEmptySelectionKeepsNothing(t *testing.T) {
	got := series.Build([]series.Entry{entry("A", "week 1", f(1))}, series.Options{Selected: []string{}})
	assert.Empty(t, got)
}

func TestBuildDropsUnrecognisedPeriods(t *testing.T) {
	got := series.Build([]series.Entry{
		entry("A", "not a period", f(1)),
		entry("A", "week 2", f(2)),
	}, series.Options{})
	require.Len(t, got, 1)
	assert.Equal(t, "week 2", got[0].Label)
}

func TestBuildOverallUsesDates(t *testing.T) {
	got := series.Build([]series.Entry{
		entry("Overall", "2025/01/06 to 2025/01/12", f(3)),
		entry("Overall", "2025/01/13 to 2025/01/19", f(5)),
	}, series.Options{Overall: true})
	assert.Equal(t, []string{"2025-01-12", "2025-01-19"}, series.Labels(got))
}

// ─── DatePoints ───────────────────────────────────────────────────────────────

func TestDatePointsNullVsZero(t *testing.T) {
	var raw []series.RawDate
	require.NoError(t, json.Unmarshal([]byte(`[{"date":"2025-01-01","score":0},{"date":"2025-01-02","score":null}]`), &raw))

	got := series.DatePoints(raw)
	assert.Equal(t, []model.DataPoint{{Date: "2025-01-01", Value: 0}}, got)
}

func TestDatePointsDateTimeFallback(t *testing.T) {
	var raw []series.RawDate
	require.NoError(t, json.Unmarshal([]byte(`[{"datetime":"2025-01-03T00:00:00Z","score":2.5},{"score":1}]`), &raw))

	got := series.DatePoints(raw)
	assert.Equal(t, []model.DataPoint{{Date: "2025-01-03", Value: 2.5}}, got)
}

func TestLocationSeriesFilters(t *testing.T) {
	groups := []series.RawGroup{{
		Name: "Thrips",
		Locations: []series.RawLocation{
			{LocationName: "GH 1", Dates: []series.RawDate{{Date: "2025-01-01", Score: f(1)}}},
			{LocationName: "GH 2", Hidden: true},
			{LocationName: "GH 3"},
		},
	}}
	got := series.LocationSeries(groups, series.Options{Selected: []string{"GH 1", "GH 2"}})
	require.Len(t, got, 1)
	assert.Equal(t, "Thrips", got[0].Group)
	assert.Equal(t, "GH 1", got[0].Location)
	assert.Len(t, got[0].Points, 1)
}

// ─── BuildTrends ──────────────────────────────────────────────────────────────

func TestBuildTrendsOverallVsLocationLabels(t *testing.T) {
	payload := `[
	  {"location_code":"ALL","location_name":"Overall","age":0,"details":[
	    {"period_key":"2025-W02","period_label":"2025/01/06 to 2025/01/12","productivity":4},
	    {"period_key":"2025-W03","period_label":"2025/01/13 to 2025/01/19","productivity":6}
	  ]},
	  {"location_code":"GH1","location_name":"GH 1","age":42,"details":[
	    {"period_key":"2025-W02","period_label":"2025/01/06 to 2025/01/12","productivity":3},
	    {"period_key":"2025-W02","period_label":"2025/01/06 to 2025/01/12","productivity":5},
	    {"period_key":"2025-W03","period_label":"2025/01/13 to 2025/01/19","productivity":null}
	  ]},
	  {"location_code":"GH2","location_name":"GH 2","age":10,"details":[
	    {"period_key":"2025-W02","productivity":1}
	  ]}
	]`
	var raw []series.RawTrend
	require.NoError(t, json.Unmarshal([]byte(payload), &raw))

	got := series.BuildTrends(raw, series.Options{Selected: []string{"GH 1"}})
	require.Len(t, got, 2)

	assert.True(t, got[0].Overall)
	assert.Equal(t, []string{"2025-01-12", "2025-01-19"}, series.Labels(got[0].Points))

	assert.False(t, got[1].Overall)
	assert.Equal(t, 42, got[1].AgeDays)
	assert.Equal(t, []string{"week 2"}, series.Labels(got[1].Points))
	assert.Equal(t, []float64{4}, series.Values(got[1].Points))
}

func TestBuildTrendsKeepsEmptySeries(t *testing.T) {
	got := series.BuildTrends([]series.RawTrend{{LocationName: "GH 9"}}, series.Options{})
	require.Len(t, got, 1)
	assert.Empty(t, got[0].Points)
}

func TestMeanAndFind(t *testing.T) {
	assert.True(t, math.IsNaN(series.Mean(nil)))
	pts := []model.Point{{Value: 2}, {Value: 4}}
	assert.Equal(t, 3.0, series.Mean(pts))

	s, ok := series.Find([]model.TrendSeries{{Location: "GH 1"}}, "gh 1")
	assert.True(t, ok)
	assert.Equal(t, "GH 1", s.Location)
}
