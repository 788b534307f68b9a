// Package model defines the canonical data types used throughout opsreport.
// Raw API payloads are normalised into these types at a single boundary
// (see internal/opsapi and internal/location); everything downstream works on
// them only.
package model

import (
	"fmt"
	"math"
	"time"
)

// ─── Reference Entities ──────────────────────────────────────────────────────

// LocationRecord is a farm location (greenhouse, block) as known to the API.
// ID is empty when the backend gave no resolvable identifier.
type LocationRecord struct {
	ID     string `json:"id,omitempty" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	Hidden bool   `json:"hidden,omitempty" yaml:"hidden"`
}

// NamedRecord is a generic id/name pair used for pests (hama) and variants.
type NamedRecord struct {
	ID   string `json:"id,omitempty" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	Unit string `json:"unit,omitempty" yaml:"unit"`
}

// ─── Periods ─────────────────────────────────────────────────────────────────

// PeriodKind distinguishes week-ordinal periods from calendar-date periods.
type PeriodKind int

const (
	PeriodWeek PeriodKind = iota + 1
	PeriodDate
)

// PeriodKey is a normalised time bucket. Per-location series use week keys;
// the aggregate Overall series uses date keys.
type PeriodKey struct {
	Kind PeriodKind `json:"kind"`
	Week int        `json:"week,omitempty"`
	Date string     `json:"date,omitempty"`
}

// WeekKey returns a week-ordinal period key.
func WeekKey(n int) PeriodKey { return PeriodKey{Kind: PeriodWeek, Week: n} }

// DateKey returns a calendar-date period key.
func DateKey(d string) PeriodKey { return PeriodKey{Kind: PeriodDate, Date: d} }

// Label is the display label: "week N" or the date string.
func (p PeriodKey) Label() string {
	if p.Kind == PeriodWeek {
		return fmt.Sprintf("week %d", p.Week)
	}
	return p.Date
}

// Key is a grouping key unique per period.
func (p PeriodKey) Key() string {
	if p.Kind == PeriodWeek {
		return fmt.Sprintf("w:%d", p.Week)
	}
	return "d:" + p.Date
}

// ─── Series ──────────────────────────────────────────────────────────────────

// DataPoint is a single dated value. Absent values never become DataPoints.
type DataPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// Point is one chart bucket: the mean of every raw value that mapped to Period.
type Point struct {
	Period PeriodKey `json:"-"`
	Label  string    `json:"period"`
	Value  float64   `json:"value"`
	Count  int       `json:"count"`
}

// TrendSeries is a per-period series for one location or for the aggregate
// Overall group. Overall points carry date labels; per-location points carry
// "week N" labels. The asymmetry mirrors the backend and is kept on purpose.
type TrendSeries struct {
	Location string  `json:"location"`
	Code     string  `json:"code,omitempty"`
	AgeDays  int     `json:"age_days"`
	Overall  bool    `json:"overall"`
	Points   []Point `json:"points"`
}

// LocationSeries is a dated series for one location (HPT trend charts).
type LocationSeries struct {
	Group    string      `json:"group,omitempty"`
	Location string      `json:"location"`
	Points   []DataPoint `json:"points"`
}

// ─── KPI ─────────────────────────────────────────────────────────────────────

// KPIDetail is one raw per-location row of a KPI block.
// Numbers are pointers so JSON null and 0 stay distinguishable.
type KPIDetail struct {
	Location   string   `json:"location"`
	Actual     *float64 `json:"actual"`
	LastActual *float64 `json:"last_actual"`
	Reject     *float64 `json:"reject,omitempty"`
	Harvest    *float64 `json:"harvest,omitempty"`
}

// KPIBlock is a backend-computed summary for one metric over a period.
type KPIBlock struct {
	Actual          *float64    `json:"actual"`
	LastActual      *float64    `json:"last_actual"`
	Lowest          *float64    `json:"lowest"`
	Highest         *float64    `json:"highest"`
	LowestLocation  string      `json:"lowest_location"`
	HighestLocation string      `json:"highest_location"`
	Detail          []KPIDetail `json:"detail"`
}

// SummaryMetric pairs the current and previous value of a KPI.
type SummaryMetric struct {
	Current  float64 `json:"current"`
	Previous float64 `json:"previous"`
}

// DetailRow is the UI-facing per-location breakdown of a KPI.
type DetailRow struct {
	Location    string  `json:"location"`
	Actual      float64 `json:"actual"`
	LastActual  float64 `json:"last_actual"`
	Lowest      bool    `json:"lowest,omitempty"`
	Highest     bool    `json:"highest,omitempty"`
	DiffPercent float64 `json:"diff_percent"`
	RejectRatio float64 `json:"reject_ratio,omitempty"`
}

// Pagination mirrors the backend's pagination block.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// ─── Sentinels ───────────────────────────────────────────────────────────────

// sentinelTolerance absorbs float32→float64 rounding of the backend's
// "no data" marker (3.4028235e38 vs math.MaxFloat32).
const sentinelTolerance = 1e31

// IsSentinel reports whether v is the backend's float32-bound "no data"
// marker (±3.4028235e38). Such values are never legitimate magnitudes.
func IsSentinel(v float64) bool {
	return math.Abs(math.Abs(v)-math.MaxFloat32) <= sentinelTolerance
}

// Usable reports whether p holds a real value: non-nil, finite, not a sentinel.
func Usable(p *float64) bool {
	if p == nil {
		return false
	}
	v := *p
	return !math.IsNaN(v) && !math.IsInf(v, 0) && !IsSentinel(v)
}

// Deref returns *p, or 0 when p is nil.
func Deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// ─── Result Envelope ─────────────────────────────────────────────────────────

// ResultStats carries performance and cache metadata for a command result.
type ResultStats struct {
	CacheHit   bool  `json:"cache_hit"`
	DurationMs int64 `json:"duration_ms"`
	Items      int   `json:"items"`
}

// Result is the uniform envelope returned by every command.
// Renderers switch on Kind to format Data.
type Result struct {
	Kind        string      `json:"kind"`
	GeneratedAt time.Time   `json:"generated_at"`
	Command     string      `json:"command"`
	Data        interface{} `json:"data"`
	Warnings    []string    `json:"warnings,omitempty"`
	Stats       ResultStats `json:"stats"`
}

// Kind constants for Result.Kind.
const (
	KindHPT          = "hpt_report"
	KindProduction   = "production_report"
	KindProductivity = "productivity_report"
	KindLocations    = "locations"
	KindSeries       = "series"
	KindAnalysis     = "analysis"
	KindTable        = "table"
)
