// Package pipeline provides helpers for reading and writing point streams via
// stdin/stdout in JSONL format, the canonical pipe format:
//
//	{"series":"GH 1","label":"week 2","value":4.5}
//
// Report commands emit it with --format jsonl; `analyze` and `chart` read it.
package pipeline

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/kebunops/opsreport/internal/model"
	"github.com/kebunops/opsreport/internal/report"
)

// Record is one JSONL line.
type Record struct {
	Series string   `json:"series"`
	Label  string   `json:"label"`
	Value  *float64 `json:"value"`
}

// Stream is the records of one series, in input order, with nulls removed.
type Stream struct {
	Series string
	Points []model.Point
}

// ─── Writing ──────────────────────────────────────────────────────────────────

// FromPoints converts chart buckets into records.
func FromPoints(series string, pts []model.Point) []Record {
	out := make([]Record, len(pts))
	for i, p := range pts {
		v := p.Value
		out[i] = Record{Series: series, Label: p.Label, Value: &v}
	}
	return out
}

// FromDataPoints converts dated points into records labelled by date.
func FromDataPoints(series string, pts []model.DataPoint) []Record {
	out := make([]Record, len(pts))
	for i, p := range pts {
		v := p.Value
		out[i] = Record{Series: series, Label: p.Date, Value: &v}
	}
	return out
}

// Records flattens a report view into records. Views without series data
// (production) yield their detail rows labelled by location.
func Records(data interface{}) []Record {
	var out []Record
	switch v := data.(type) {
	case *report.HPTView:
		for _, s := range v.Series {
			name := s.Location
			if s.Group != "" {
				name = s.Group + "/" + s.Location
			}
			out = append(out, FromDataPoints(name, s.Points)...)
		}
	case *report.ProductivityView:
		for _, t := range v.Trends {
			out = append(out, FromPoints(t.Location, t.Points)...)
		}
	case *report.ProductionView:
		for _, r := range v.Detail {
			a := r.Actual
			out = append(out, Record{Series: "actual", Label: r.Location, Value: &a})
		}
	case []Stream:
		for _, s := range v {
			out = append(out, FromPoints(s.Series, s.Points)...)
		}
	}
	return out
}

// WriteJSONL writes records as JSONL to w.
func WriteJSONL(w io.Writer, recs []Record) error {
	enc := json.NewEncoder(w)
	for _, r := range recs {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

// ─── Reading ──────────────────────────────────────────────────────────────────

// ReadRecords reads JSONL records from r. Blank lines and // comments are
// skipped. A line whose value is null is kept with a nil Value.
func ReadRecords(r io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	var recs []Record
	lineNum := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lineNum++
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("line %d: invalid JSON: %w", lineNum, err)
		}
		if rec.Label == "" {
			return nil, fmt.Errorf("line %d: missing label", lineNum)
		}
		recs = append(recs, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("no records read from input (is stdin empty?)")
	}
	return recs, nil
}

// Group splits records into streams by series, in first-seen order. Null
// and sentinel values are dropped; zero is kept.
func Group(recs []Record) []Stream {
	index := map[string]int{}
	var out []Stream
	for _, r := range recs {
		i, ok := index[r.Series]
		if !ok {
			i = len(out)
			index[r.Series] = i
			out = append(out, Stream{Series: r.Series})
		}
		if !model.Usable(r.Value) {
			continue
		}
		out[i].Points = append(out[i].Points, model.Point{Label: r.Label, Value: *r.Value, Count: 1})
	}
	return out
}

// Select returns the stream named series, or the first stream when series
// is empty.
func Select(streams []Stream, series string) (Stream, error) {
	if len(streams) == 0 {
		return Stream{}, fmt.Errorf("no series in input")
	}
	if series == "" {
		return streams[0], nil
	}
	for _, s := range streams {
		if strings.EqualFold(s.Series, series) {
			return s, nil
		}
	}
	return Stream{}, fmt.Errorf("series %q not found in input", series)
}

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// StdinIsPipe reports whether stdin carries piped or redirected data.
func StdinIsPipe() bool {
	return !IsTerminal(os.Stdin)
}
