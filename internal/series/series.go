// Package series groups raw report entries into ordered per-period buckets
// ready for charting. Every function is pure; no I/O.
package series

import (
	"math"
	"strings"

	"github.com/kebunops/opsreport/internal/model"
	"github.com/kebunops/opsreport/internal/period"
)

// ─── Entries ─────────────────────────────────────────────────────────────────

// Entry is one raw value tagged with its location and raw period key.
// Value is nil when the backend sent null or omitted the field.
type Entry struct {
	Location string
	Hidden   bool
	Period   string
	Value    *float64
}

// Options controls filtering and period classification.
type Options struct {
	// Selected restricts entries to these location names. Nil disables the
	// filter; a non-nil empty slice keeps nothing.
	Selected []string
	// Hidden lists additional hidden location names (reference data).
	Hidden []string
	// Overall classifies periods as calendar dates instead of week numbers.
	Overall bool
}

type filter struct {
	selected map[string]bool
	hidden   map[string]bool
	all      bool
}

func newFilter(opts Options) filter {
	f := filter{all: opts.Selected == nil, hidden: toSet(opts.Hidden)}
	if !f.all {
		f.selected = toSet(opts.Selected)
	}
	return f
}

// keepLocation applies the hidden and selection rules.
func (f filter) keepLocation(name string, hidden bool) bool {
	if hidden || f.hidden[name] {
		return false
	}
	return f.all || f.selected[name]
}

// keepValue drops absent, non-finite and sentinel values. Zero is kept.
func keepValue(v *float64) bool {
	return model.Usable(v)
}

// ─── Build ───────────────────────────────────────────────────────────────────

// Build filters entries and buckets them by normalised period.
//
// Buckets are emitted in first-seen order, never re-sorted: callers already
// supply chronological order and re-sorting would break the correspondence
// between Overall date labels and per-location week labels. Values sharing a
// bucket are averaged.
func Build(entries []Entry, opts Options) []model.Point {
	f := newFilter(opts)

	index := make(map[string]int)
	sums := make([]float64, 0)
	out := make([]model.Point, 0)

	for _, e := range entries {
		if !f.keepLocation(e.Location, e.Hidden) || !keepValue(e.Value) {
			continue
		}
		key, ok := period.Classify(e.Period, opts.Overall)
		if !ok {
			continue
		}
		k := key.Key()
		i, seen := index[k]
		if !seen {
			i = len(out)
			index[k] = i
			out = append(out, model.Point{Period: key, Label: key.Label()})
			sums = append(sums, 0)
		}
		sums[i] += *e.Value
		out[i].Count++
	}

	for i := range out {
		out[i].Value = sums[i] / float64(out[i].Count)
	}
	return out
}

// ─── HPT trend points ────────────────────────────────────────────────────────

// RawDate is one dated score as sent by the HPT trend endpoint. Either Date
// or DateTime is populated.
type RawDate struct {
	Date     string   `json:"date"`
	DateTime string   `json:"datetime"`
	Score    *float64 `json:"score"`
}

// RawLocation is one location inside an HPT trend group.
type RawLocation struct {
	LocationName string    `json:"location_name"`
	Hidden       bool      `json:"hidden"`
	Dates        []RawDate `json:"dates"`
}

// RawGroup is a named HPT trend group (usually one pest).
type RawGroup struct {
	Name      string        `json:"name"`
	Locations []RawLocation `json:"locations"`
}

// DatePoints converts raw dated scores into DataPoints. Null scores are
// dropped, zero is kept, sentinels and unparseable dates are dropped.
func DatePoints(raw []RawDate) []model.DataPoint {
	out := make([]model.DataPoint, 0, len(raw))
	for _, r := range raw {
		if !keepValue(r.Score) {
			continue
		}
		src := r.Date
		if src == "" {
			src = r.DateTime
		}
		d, ok := period.NormalizeDate(src)
		if !ok {
			continue
		}
		out = append(out, model.DataPoint{Date: d, Value: *r.Score})
	}
	return out
}

// LocationSeries flattens HPT trend groups into per-location dated series,
// dropping hidden and unselected locations.
func LocationSeries(groups []RawGroup, opts Options) []model.LocationSeries {
	f := newFilter(opts)
	var out []model.LocationSeries
	for _, g := range groups {
		for _, loc := range g.Locations {
			if !f.keepLocation(loc.LocationName, loc.Hidden) {
				continue
			}
			out = append(out, model.LocationSeries{
				Group:    g.Name,
				Location: loc.LocationName,
				Points:   DatePoints(loc.Dates),
			})
		}
	}
	return out
}

// ─── Productivity trends ─────────────────────────────────────────────────────

// RawDetail is one period row of a productivity trend.
type RawDetail struct {
	PeriodKey    string   `json:"period_key"`
	PeriodLabel  string   `json:"period_label"`
	Productivity *float64 `json:"productivity"`
}

// RawTrend is one location (or the Overall aggregate) of the productivity
// heatmap endpoint.
type RawTrend struct {
	LocationCode string      `json:"location_code"`
	LocationName string      `json:"location_name"`
	Age          int         `json:"age"`
	Hidden       bool        `json:"hidden"`
	Details      []RawDetail `json:"details"`
}

// BuildTrends converts productivity trends into TrendSeries. The Overall row
// is never filtered by selection; it is labelled by calendar date. Other rows
// are labelled by week. Series whose points all drop are kept empty so the
// caller can render "no data".
func BuildTrends(trends []RawTrend, opts Options) []model.TrendSeries {
	f := newFilter(opts)
	out := make([]model.TrendSeries, 0, len(trends))
	for _, tr := range trends {
		overall := period.IsOverall(tr.LocationName, tr.LocationCode)
		if !overall && !f.keepLocation(tr.LocationName, tr.Hidden) {
			continue
		}
		entries := make([]Entry, 0, len(tr.Details))
		for _, d := range tr.Details {
			entries = append(entries, Entry{
				Location: tr.LocationName,
				Period:   periodSource(d, overall),
				Value:    d.Productivity,
			})
		}
		out = append(out, model.TrendSeries{
			Location: tr.LocationName,
			Code:     tr.LocationCode,
			AgeDays:  tr.Age,
			Overall:  overall,
			Points:   Build(entries, Options{Overall: overall}),
		})
	}
	return out
}

// periodSource picks which raw string carries the period. Overall rows are
// labelled from the date range in period_label when present; per-location
// rows prefer period_key and fall back to the label.
func periodSource(d RawDetail, overall bool) string {
	if overall {
		if period.OverallLabel(d.PeriodLabel) != d.PeriodLabel {
			return d.PeriodLabel
		}
		if d.PeriodKey != "" {
			return d.PeriodKey
		}
		return d.PeriodLabel
	}
	if _, ok := period.ExtractWeek(d.PeriodKey); ok {
		return d.PeriodKey
	}
	return d.PeriodLabel
}

// ─── helpers ─────────────────────────────────────────────────────────────────

func toSet(names []string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// Values extracts the bucket values of points.
func Values(points []model.Point) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Value
	}
	return out
}

// Labels extracts the bucket labels of points.
func Labels(points []model.Point) []string {
	out := make([]string, len(points))
	for i, p := range points {
		out[i] = p.Label
	}
	return out
}

// Mean returns the arithmetic mean of points, NaN when empty.
func Mean(points []model.Point) float64 {
	if len(points) == 0 {
		return math.NaN()
	}
	var s float64
	for _, p := range points {
		s += p.Value
	}
	return s / float64(len(points))
}

// Find returns the series for a location name, case-insensitively.
func Find(all []model.TrendSeries, name string) (model.TrendSeries, bool) {
	for _, s := range all {
		if strings.EqualFold(s.Location, name) {
			return s, true
		}
	}
	return model.TrendSeries{}, false
}
