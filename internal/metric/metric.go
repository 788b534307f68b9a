// Package metric computes derived KPI numbers: percent change, shares,
// reject ratios and the per-location detail rows shown under summary cards.
// Results are always finite; division by zero yields 0 rather than an error.
package metric

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/kebunops/opsreport/internal/model"
)

// ZeroBasePolicy decides what PercentChange reports when the previous value
// is zero.
type ZeroBasePolicy string

const (
	// ZeroBaseFlat reports 0% whenever previous is zero.
	ZeroBaseFlat ZeroBasePolicy = "flat"
	// ZeroBaseGrowth reports +100% when previous is zero and current grew.
	ZeroBaseGrowth ZeroBasePolicy = "growth"
)

// ParsePolicy maps a config string to a policy, defaulting to flat.
func ParsePolicy(s string) (ZeroBasePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ZeroBaseFlat):
		return ZeroBaseFlat, nil
	case string(ZeroBaseGrowth):
		return ZeroBaseGrowth, nil
	default:
		return ZeroBaseFlat, fmt.Errorf("unknown zero-base policy %q (use flat or growth)", s)
	}
}

// Finite returns v, or 0 for NaN and ±Inf.
func Finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// PercentChange computes (current-previous)/previous*100.
func PercentChange(current, previous float64, policy ZeroBasePolicy) float64 {
	if math.IsNaN(previous) || previous == 0 {
		if policy == ZeroBaseGrowth && current > 0 {
			return 100
		}
		return 0
	}
	return Finite((current - previous) / previous * 100)
}

// Summary builds a SummaryMetric from nullable KPI numbers.
func Summary(current, previous *float64) model.SummaryMetric {
	s := model.SummaryMetric{}
	if model.Usable(current) {
		s.Current = *current
	}
	if model.Usable(previous) {
		s.Previous = *previous
	}
	return s
}

// Change is the SummaryMetric's percent change under policy.
func Change(s model.SummaryMetric, policy ZeroBasePolicy) float64 {
	return PercentChange(s.Current, s.Previous, policy)
}

// Share returns part as a percentage of total; 0 when total is zero.
func Share(part, total float64) float64 {
	if total == 0 || math.IsNaN(total) {
		return 0
	}
	return Finite(part / total * 100)
}

// RejectRatio returns the reject percentage for one location.
//
// Backend report versions disagree on units, so the input is classified in
// this order: a fraction in (0,1] is scaled by 100; a value in (0,100] with
// no harvest figure is taken as a percentage already; otherwise the ratio
// reject/(harvest+reject) is used when that total is positive; else 0.
func RejectRatio(reject, harvest float64) float64 {
	if math.IsNaN(reject) || model.IsSentinel(reject) {
		return 0
	}
	hasHarvest := !math.IsNaN(harvest) && !model.IsSentinel(harvest) && harvest > 0
	switch {
	case reject > 0 && reject <= 1:
		return reject * 100
	case reject > 0 && reject <= 100 && !hasHarvest:
		return reject
	}
	if !hasHarvest {
		harvest = 0
	}
	total := harvest + reject
	if total > 0 {
		return Finite(reject / total * 100)
	}
	return 0
}

// ─── Formatting ──────────────────────────────────────────────────────────────

// FormatNumber formats v with Indonesian separators ("." thousands,
// "," decimal). Non-finite values format as zero.
func FormatNumber(v float64, decimals int) string {
	if decimals < 0 {
		decimals = 0
	}
	p := message.NewPrinter(language.Indonesian)
	return p.Sprintf(fmt.Sprintf("%%.%df", decimals), Finite(v))
}

// FormatPercentage renders a fractional ratio as a percentage:
// FormatPercentage(0.015, 2) == "1,50%".
func FormatPercentage(ratio float64, decimals int) string {
	return FormatNumber(Finite(ratio)*100, decimals) + "%"
}

// FormatPercent renders a value that is already a percentage.
func FormatPercent(pct float64, decimals int) string {
	return FormatNumber(pct, decimals) + "%"
}

// ─── Detail rows ─────────────────────────────────────────────────────────────

// DetailRows converts a KPI block's detail into UI rows.
//
// Rows whose actual value is absent or a sentinel are dropped before any
// min/max work. Lowest/highest markers follow the KPI's named locations when
// the KPI's own extreme value is usable; otherwise they are derived from the
// remaining rows.
func DetailRows(kpi model.KPIBlock) []model.DetailRow {
	rows := make([]model.DetailRow, 0, len(kpi.Detail))
	for _, d := range kpi.Detail {
		if !model.Usable(d.Actual) {
			continue
		}
		row := model.DetailRow{Location: d.Location, Actual: *d.Actual}
		if model.Usable(d.LastActual) {
			row.LastActual = *d.LastActual
		}
		row.DiffPercent = PercentChange(row.Actual, row.LastActual, ZeroBaseFlat)
		if d.Reject != nil {
			row.RejectRatio = RejectRatio(*d.Reject, derefNaN(d.Harvest))
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return rows
	}

	lowIdx, highIdx := extremes(rows)
	// A named extreme whose row was dropped falls back to the derived one.
	if model.Usable(kpi.Lowest) && kpi.LowestLocation != "" {
		if i := indexOf(rows, kpi.LowestLocation); i >= 0 {
			lowIdx = i
		}
	}
	if model.Usable(kpi.Highest) && kpi.HighestLocation != "" {
		if i := indexOf(rows, kpi.HighestLocation); i >= 0 {
			highIdx = i
		}
	}
	rows[lowIdx].Lowest = true
	rows[highIdx].Highest = true
	return rows
}

func extremes(rows []model.DetailRow) (lo, hi int) {
	for i, r := range rows {
		if r.Actual < rows[lo].Actual {
			lo = i
		}
		if r.Actual > rows[hi].Actual {
			hi = i
		}
	}
	return lo, hi
}

func indexOf(rows []model.DetailRow, location string) int {
	for i, r := range rows {
		if r.Location == location {
			return i
		}
	}
	return -1
}

func derefNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}
