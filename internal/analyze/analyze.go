// Package analyze computes statistical summaries and trend analysis over
// built series points. Points arrive already filtered (no nulls, no
// sentinels) and in period order. All functions are pure; no I/O.
package analyze

import (
	"fmt"
	"math"
	"sort"

	"github.com/kebunops/opsreport/internal/metric"
	"github.com/kebunops/opsreport/internal/model"
)

// ─── Summary ──────────────────────────────────────────────────────────────────

// Summary holds descriptive statistics for a series. An empty series yields
// a zero Summary with Count 0.
type Summary struct {
	Series    string  `json:"series"`
	Count     int     `json:"count"`
	Mean      float64 `json:"mean"`
	Std       float64 `json:"std"`
	Min       float64 `json:"min"`
	MinLabel  string  `json:"min_label"`
	P25       float64 `json:"p25"`
	Median    float64 `json:"median"`
	P75       float64 `json:"p75"`
	Max       float64 `json:"max"`
	MaxLabel  string  `json:"max_label"`
	First     float64 `json:"first"`
	Last      float64 `json:"last"`
	Change    float64 `json:"change"`     // Last - First
	ChangePct float64 `json:"change_pct"` // percent change, 0 when First is 0
}

// Summarize computes descriptive statistics over pts.
func Summarize(series string, pts []model.Point) Summary {
	s := Summary{Series: series, Count: len(pts)}
	if len(pts) == 0 {
		return s
	}

	vals := make([]float64, len(pts))
	for i, p := range pts {
		vals[i] = p.Value
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	s.Mean = sumF(vals) / float64(len(vals))
	s.Std = stddevF(vals, s.Mean)
	s.Median = percentile(sorted, 50)
	s.P25 = percentile(sorted, 25)
	s.P75 = percentile(sorted, 75)

	// First occurrence wins for extremes, matching the detail-row markers.
	lo, hi := 0, 0
	for i, v := range vals {
		if v < vals[lo] {
			lo = i
		}
		if v > vals[hi] {
			hi = i
		}
	}
	s.Min, s.MinLabel = vals[lo], pts[lo].Label
	s.Max, s.MaxLabel = vals[hi], pts[hi].Label

	s.First = vals[0]
	s.Last = vals[len(vals)-1]
	s.Change = s.Last - s.First
	s.ChangePct = metric.PercentChange(s.Last, s.First, metric.ZeroBaseFlat)
	return s
}

// ─── Trend ────────────────────────────────────────────────────────────────────

// TrendMethod selects the regression algorithm.
type TrendMethod string

const (
	TrendLinear   TrendMethod = "linear"
	TrendTheilSen TrendMethod = "theil-sen"
)

// ParseMethod maps a flag value to a TrendMethod.
func ParseMethod(s string) (TrendMethod, error) {
	switch TrendMethod(s) {
	case "", TrendLinear:
		return TrendLinear, nil
	case TrendTheilSen:
		return TrendTheilSen, nil
	}
	return "", fmt.Errorf("unknown trend method %q (use linear or theil-sen)", s)
}

// TrendResult holds the output of a trend analysis.
type TrendResult struct {
	Series    string      `json:"series"`
	Method    TrendMethod `json:"method"`
	Points    int         `json:"points"`
	Slope     float64     `json:"slope"` // units per period
	Intercept float64     `json:"intercept"`
	R2        float64     `json:"r2"`
	Direction string      `json:"direction"` // "up", "down", "flat"
	// SlopePct is the slope as a percentage of the series mean.
	SlopePct float64 `json:"slope_pct"`
}

// flatThresholdPct is the |slope| (as % of mean per period) below which a
// trend is reported flat.
const flatThresholdPct = 0.5

// Trend fits a trend line to pts. X is the point's ordinal (0, 1, 2, ...),
// so the slope reads as change per reporting period.
func Trend(series string, pts []model.Point, method TrendMethod) (TrendResult, error) {
	tr := TrendResult{Series: series, Method: method, Points: len(pts)}
	if len(pts) < 2 {
		return tr, fmt.Errorf("trend: need at least 2 points, got %d", len(pts))
	}

	xy := make([]point, len(pts))
	for i, p := range pts {
		xy[i] = point{float64(i), p.Value}
	}

	switch method {
	case TrendTheilSen:
		tr.Slope = theilSenSlope(xy)
		// OLS intercept with the Theil-Sen slope
		xMean := meanPts(xy, func(p point) float64 { return p.x })
		yMean := meanPts(xy, func(p point) float64 { return p.y })
		tr.Intercept = yMean - tr.Slope*xMean
	default:
		tr.Method = TrendLinear
		tr.Slope, tr.Intercept = olsRegress(xy)
	}

	tr.R2 = r2(xy, tr.Slope, tr.Intercept)
	mean := meanPts(xy, func(p point) float64 { return p.y })
	tr.SlopePct = metric.Share(tr.Slope, math.Abs(mean))

	switch {
	case tr.SlopePct > flatThresholdPct:
		tr.Direction = "up"
	case tr.SlopePct < -flatThresholdPct:
		tr.Direction = "down"
	default:
		tr.Direction = "flat"
	}
	return tr, nil
}

// ─── Math helpers ─────────────────────────────────────────────────────────────

func sumF(vals []float64) float64 {
	var s float64
	for _, v := range vals {
		s += v
	}
	return s
}

func stddevF(vals []float64, m float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	var sq float64
	for _, v := range vals {
		d := v - m
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(vals)-1))
}

func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := p / 100 * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

type point struct{ x, y float64 }

func olsRegress(pts []point) (slope, intercept float64) {
	n := float64(len(pts))
	var xSum, ySum, xySum, x2Sum float64
	for _, p := range pts {
		xSum += p.x
		ySum += p.y
		xySum += p.x * p.y
		x2Sum += p.x * p.x
	}
	denom := n*x2Sum - xSum*xSum
	if denom == 0 {
		return 0, ySum / n
	}
	slope = (n*xySum - xSum*ySum) / denom
	intercept = (ySum - slope*xSum) / n
	return
}

func theilSenSlope(pts []point) float64 {
	var slopes []float64
	for i := 0; i < len(pts); i++ {
		for j := i + 1; j < len(pts); j++ {
			dx := pts[j].x - pts[i].x
			if dx == 0 {
				continue
			}
			slopes = append(slopes, (pts[j].y-pts[i].y)/dx)
		}
	}
	if len(slopes) == 0 {
		return 0
	}
	sort.Float64s(slopes)
	return percentile(slopes, 50)
}

func r2(pts []point, slope, intercept float64) float64 {
	yMean := meanPts(pts, func(p point) float64 { return p.y })
	var ssTot, ssRes float64
	for _, p := range pts {
		pred := slope*p.x + intercept
		ssTot += (p.y - yMean) * (p.y - yMean)
		ssRes += (p.y - pred) * (p.y - pred)
	}
	if ssTot == 0 {
		return 1
	}
	return 1 - ssRes/ssTot
}

func meanPts(pts []point, f func(point) float64) float64 {
	var s float64
	for _, p := range pts {
		s += f(p)
	}
	return s / float64(len(pts))
}
