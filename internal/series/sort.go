package series

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kebunops/opsreport/internal/period"
)

// Row is one row of a location-level summary table, keyed by column name.
type Row map[string]any

// SortState is the single-column sort selection of a summary table.
// Selecting the active column flips its direction; selecting another column
// makes it active in ascending order.
type SortState struct {
	Column string
	Desc   bool
}

// Toggle applies a click on column.
func (s *SortState) Toggle(column string) {
	if s.Column == column {
		s.Desc = !s.Desc
		return
	}
	s.Column = column
	s.Desc = false
}

// Apply sorts rows by the active column. A zero state leaves rows untouched.
func (s SortState) Apply(rows []Row) {
	if s.Column == "" {
		return
	}
	SortRows(rows, s.Column, s.Desc)
}

// SortRows stably sorts rows by column. Missing and nil cells always sort
// last, whichever the direction.
func SortRows(rows []Row, column string, desc bool) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, aok := cell(rows[i], column)
		b, bok := cell(rows[j], column)
		switch {
		case !aok && !bok:
			return false
		case !aok:
			return false
		case !bok:
			return true
		}
		c := CompareCells(a, b)
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func cell(r Row, column string) (any, bool) {
	v, ok := r[column]
	if !ok || v == nil {
		return nil, false
	}
	if p, isPtr := v.(*float64); isPtr {
		if p == nil {
			return nil, false
		}
		return *p, true
	}
	return v, true
}

// CompareCells compares two non-nil cells: numerically when both parse as
// numbers, chronologically when both parse as dates, otherwise as
// case-insensitive strings.
func CompareCells(a, b any) int {
	if x, ok := asNumber(a); ok {
		if y, ok := asNumber(b); ok {
			return cmpFloat(x, y)
		}
	}
	if x, ok := asTime(a); ok {
		if y, ok := asTime(b); ok {
			return x.Compare(y)
		}
	}
	return strings.Compare(strings.ToLower(asString(a)), strings.ToLower(asString(b)))
}

func asNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	case fmt.Stringer:
		f, err := strconv.ParseFloat(x.String(), 64)
		return f, err == nil
	}
	return 0, false
}

func asTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		return period.ParseDate(x)
	}
	return time.Time{}, false
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
