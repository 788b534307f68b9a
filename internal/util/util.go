// Package util provides shared utilities: date flags, list parsing and
// error aggregation.
package util

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ─── Date Parsing ─────────────────────────────────────────────────────────────

const dateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD string into a time.Time (UTC midnight).
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

// FormatDate formats a time.Time as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// ValidateRange checks optional --start/--end values. Both may be empty;
// when both are set start must not be after end.
func ValidateRange(start, end string) error {
	var s, e time.Time
	var err error
	if start != "" {
		if s, err = ParseDate(start); err != nil {
			return err
		}
	}
	if end != "" {
		if e, err = ParseDate(end); err != nil {
			return err
		}
	}
	if start != "" && end != "" && s.After(e) {
		return fmt.Errorf("start %s is after end %s", start, end)
	}
	return nil
}

// DefaultRange returns the first day of the current month through today,
// the window the report screens open with.
func DefaultRange(now time.Time) (start, end string) {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return FormatDate(first), FormatDate(now)
}

// ─── Lists ────────────────────────────────────────────────────────────────────

// SplitList splits a comma-separated flag value, trimming blanks.
// An empty input returns nil so callers can tell "unset" from "empty".
func SplitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ─── Error Helpers ────────────────────────────────────────────────────────────

// MultiError collects multiple errors and presents them as one.
type MultiError struct {
	Errors []error
}

func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

func (m *MultiError) Err() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}

func (m *MultiError) Error() string {
	msgs := make([]string, len(m.Errors))
	for i, e := range m.Errors {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Unwrap exposes the collected errors to errors.Is / errors.As.
func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// Is reports whether any collected error matches target.
func (m *MultiError) Is(target error) bool {
	for _, e := range m.Errors {
		if errors.Is(e, target) {
			return true
		}
	}
	return false
}
