// Package transform implements pipeline operators over report series. Each
// operator takes a slice of points and returns a new one; inputs are never
// modified.
package transform

import (
	"fmt"
	"math"

	"github.com/kebunops/opsreport/internal/metric"
	"github.com/kebunops/opsreport/internal/model"
)

// ─── Percent Change ───────────────────────────────────────────────────────────

// PctChange computes the percent change against the point period steps
// earlier. Leading points without a predecessor are dropped. A zero base is
// resolved by policy, as for summary cards.
func PctChange(pts []model.Point, period int, policy metric.ZeroBasePolicy) ([]model.Point, error) {
	if period < 1 {
		return nil, fmt.Errorf("pct-change: period must be >= 1, got %d", period)
	}
	if len(pts) <= period {
		return nil, fmt.Errorf("pct-change: need more than %d points, got %d", period, len(pts))
	}
	out := make([]model.Point, 0, len(pts)-period)
	for i := period; i < len(pts); i++ {
		p := pts[i]
		p.Value = metric.PercentChange(pts[i].Value, pts[i-period].Value, policy)
		out = append(out, p)
	}
	return out, nil
}

// ─── Difference ───────────────────────────────────────────────────────────────

// Diff computes the n-th order difference. order=1: v[t]-v[t-1], order=2: diff of diff.
func Diff(pts []model.Point, order int) ([]model.Point, error) {
	if order < 1 || order > 2 {
		return nil, fmt.Errorf("diff: order must be 1 or 2, got %d", order)
	}
	result := pts
	for i := 0; i < order; i++ {
		if len(result) < 2 {
			return nil, fmt.Errorf("diff: need at least 2 points, got %d", len(result))
		}
		next := make([]model.Point, 0, len(result)-1)
		for j := 1; j < len(result); j++ {
			p := result[j]
			p.Value = result[j].Value - result[j-1].Value
			next = append(next, p)
		}
		result = next
	}
	return result, nil
}

// ─── Rolling Window ───────────────────────────────────────────────────────────

// RollStat selects the statistic for rolling window computation.
type RollStat string

const (
	RollMean RollStat = "mean"
	RollStd  RollStat = "std"
	RollMin  RollStat = "min"
	RollMax  RollStat = "max"
	RollSum  RollStat = "sum"
)

// Roll computes a rolling window statistic over the current point and the
// window-1 points before it. Points whose window holds fewer than minPeriods
// values are dropped.
func Roll(pts []model.Point, window, minPeriods int, stat RollStat) ([]model.Point, error) {
	if window < 1 {
		return nil, fmt.Errorf("roll: window must be >= 1, got %d", window)
	}
	if minPeriods < 1 {
		minPeriods = 1
	}
	if minPeriods > window {
		return nil, fmt.Errorf("roll: min-periods (%d) cannot exceed window (%d)", minPeriods, window)
	}
	switch stat {
	case RollMean, RollStd, RollMin, RollMax, RollSum:
	default:
		return nil, fmt.Errorf("roll: unknown stat %q (use mean, std, min, max, sum)", stat)
	}

	out := make([]model.Point, 0, len(pts))
	for i, p := range pts {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		if i-start+1 < minPeriods {
			continue
		}
		vals := make([]float64, 0, i-start+1)
		for _, w := range pts[start : i+1] {
			vals = append(vals, w.Value)
		}

		switch stat {
		case RollMean:
			p.Value = mean(vals)
		case RollStd:
			p.Value = stddev(vals, mean(vals))
		case RollMin:
			p.Value, _ = minmax(vals)
		case RollMax:
			_, p.Value = minmax(vals)
		case RollSum:
			p.Value = sum(vals)
		}
		out = append(out, p)
	}
	return out, nil
}

// ─── Math helpers ─────────────────────────────────────────────────────────────

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	return sum(vals) / float64(len(vals))
}

func sum(vals []float64) float64 {
	var s float64
	for _, v := range vals {
		s += v
	}
	return s
}

func stddev(vals []float64, m float64) float64 {
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

func minmax(vals []float64) (float64, float64) {
	mn, mx := vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < mn {
			mn = v
		}
		if v > mx {
			mx = v
		}
	}
	return mn, mx
}
