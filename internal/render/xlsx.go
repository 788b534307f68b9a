package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/kebunops/opsreport/internal/model"
	"github.com/xuri/excelize/v2"
)

// maxSheetName is Excel's limit on worksheet name length.
const maxSheetName = 31

// renderXLSX writes one worksheet per section. Numbers stay numeric cells so
// the workbook can be re-aggregated; percentages are written as numbers too.
func renderXLSX(w io.Writer, result *model.Result) error {
	tables, ok := Sections(result)
	if !ok {
		return fmt.Errorf("xlsx: %s has no tabular form", result.Kind)
	}

	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("xlsx: header style: %w", err)
	}

	used := map[string]bool{}
	for i, t := range tables {
		name := sheetName(t.Title, i, used)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return fmt.Errorf("xlsx: rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("xlsx: new sheet %q: %w", name, err)
		}

		header := make([]interface{}, len(t.Header))
		for j, h := range t.Header {
			header[j] = h
		}
		if err := f.SetSheetRow(name, "A1", &header); err != nil {
			return fmt.Errorf("xlsx: header row: %w", err)
		}
		if err := f.SetRowStyle(name, 1, 1, bold); err != nil {
			return fmt.Errorf("xlsx: header style: %w", err)
		}

		for r, row := range t.Rows {
			cells := make([]interface{}, len(row))
			for j, c := range row {
				cells[j] = xlsxCell(c)
			}
			cell, err := excelize.CoordinatesToCellName(1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(name, cell, &cells); err != nil {
				return fmt.Errorf("xlsx: row %d: %w", r+2, err)
			}
		}

		if t.Note != "" {
			cell, _ := excelize.CoordinatesToCellName(1, len(t.Rows)+3)
			if err := f.SetCellStr(name, cell, t.Note); err != nil {
				return fmt.Errorf("xlsx: note: %w", err)
			}
		}
	}

	f.SetActiveSheet(0)
	return f.Write(w)
}

func xlsxCell(c any) interface{} {
	switch v := c.(type) {
	case Percent:
		return float64(v)
	case float64:
		if v != v { // NaN
			return ""
		}
		return v
	case bool:
		if v {
			return "yes"
		}
		return ""
	default:
		return v
	}
}

// sheetName derives a unique, Excel-safe worksheet name from a title.
func sheetName(title string, idx int, used map[string]bool) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '-'
		}
		return r
	}, strings.TrimSpace(title))
	if name == "" {
		name = fmt.Sprintf("Sheet%d", idx+1)
	}
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	base := name
	for n := 2; used[strings.ToLower(name)]; n++ {
		suffix := fmt.Sprintf(" %d", n)
		r := []rune(base)
		if len(r)+len(suffix) > maxSheetName {
			r = r[:maxSheetName-len(suffix)]
		}
		name = string(r) + suffix
	}
	used[strings.ToLower(name)] = true
	return name
}
