// Package period turns raw period keys and labels from the report endpoints
// into canonical week numbers or calendar dates.
//
// Endpoints disagree on format: "week 7", "W07", "2025/01/06",
// "2025/01/06 to 2025/01/12" and ISO date-times all occur. Unrecognised keys
// are reported as not-ok and must be dropped by the caller.
package period

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kebunops/opsreport/internal/model"
)

const isoDate = "2006-01-02"

var (
	reWeekWord  = regexp.MustCompile(`(?i)week\s*(\d+)`)
	reWeekShort = regexp.MustCompile(`[wW](\d+)`)
	reSlashDate = regexp.MustCompile(`(\d{4})/(\d{1,2})/(\d{1,2})`)
	reRange     = regexp.MustCompile(`(\d{4}/\d{1,2}/\d{1,2})\s*(?i:to|s/d|-)\s*(\d{4}/\d{1,2}/\d{1,2})`)
)

// ExtractWeek returns the week number carried by s.
//
// Precedence: "week N" (any case), then "wN"/"WN", then an embedded
// YYYY/MM/DD converted to its ISO-8601 week.
func ExtractWeek(s string) (int, bool) {
	if m := reWeekWord.FindStringSubmatch(s); m != nil {
		return atoi(m[1])
	}
	if m := reWeekShort.FindStringSubmatch(s); m != nil {
		return atoi(m[1])
	}
	if t, ok := firstSlashDate(s); ok {
		_, week := t.ISOWeek()
		return week, true
	}
	return 0, false
}

// OverallLabel derives the display label of an aggregate (Overall) row:
// the end date of a "YYYY/MM/DD to YYYY/MM/DD" range, else the first embedded
// date, else s unchanged. Dates are rendered as YYYY-MM-DD.
func OverallLabel(s string) string {
	if m := reRange.FindStringSubmatch(s); m != nil {
		if t, ok := parseSlashDate(m[2]); ok {
			return t.Format(isoDate)
		}
	}
	if t, ok := firstSlashDate(s); ok {
		return t.Format(isoDate)
	}
	return s
}

// Classify normalises a raw key. Per-location rows get week keys and are
// dropped (ok=false) when no week can be extracted; Overall rows get date
// keys and are never dropped.
func Classify(raw string, overall bool) (model.PeriodKey, bool) {
	if overall {
		return model.DateKey(OverallLabel(raw)), true
	}
	w, ok := ExtractWeek(raw)
	if !ok {
		return model.PeriodKey{}, false
	}
	return model.WeekKey(w), true
}

// NormalizeDate converts the date formats seen in trend payloads to
// YYYY-MM-DD.
func NormalizeDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	layouts := []string{
		isoDate,
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04:05.000Z",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(isoDate), true
		}
	}
	if t, ok := firstSlashDate(s); ok {
		return t.Format(isoDate), true
	}
	return "", false
}

// ParseDate parses any format NormalizeDate accepts.
func ParseDate(s string) (time.Time, bool) {
	d, ok := NormalizeDate(s)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(isoDate, d)
	return t, err == nil
}

// IsOverall reports whether a trend row is the aggregate all-locations row.
func IsOverall(name, code string) bool {
	for _, v := range []string{name, code} {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "overall", "all", "semua":
			return true
		}
	}
	return false
}

// ─── helpers ─────────────────────────────────────────────────────────────────

func firstSlashDate(s string) (time.Time, bool) {
	m := reSlashDate.FindString(s)
	if m == "" {
		return time.Time{}, false
	}
	return parseSlashDate(m)
}

// parseSlashDate parses YYYY/M/D and rejects impossible dates such as
// 2025/02/30 instead of letting time.Date roll them over.
func parseSlashDate(s string) (time.Time, bool) {
	m := reSlashDate.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	y, _ := strconv.Atoi(m[1])
	mo, _ := strconv.Atoi(m[2])
	d, _ := strconv.Atoi(m[3])
	if mo < 1 || mo > 12 || d < 1 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
	if t.Month() != time.Month(mo) || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

func atoi(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
