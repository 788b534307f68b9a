// Package chart provides ASCII terminal chart rendering for built series.
// Two renderers are available:
//
//   - Bar: horizontal bar chart, one bar per period label. Suits the weekly
//     per-location series and short date ranges.
//   - Plot: multi-line ASCII chart with labelled axes for longer series.
//
// Points arrive already filtered, so neither renderer has to deal with
// missing values.
package chart

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/kebunops/opsreport/internal/model"
)

// ─── Bar ─────────────────────────────────────────────────────────────────────

// BarOptions controls horizontal bar chart rendering.
type BarOptions struct {
	// Width is the total character width available for the chart.
	// If 0, auto-detects from $COLUMNS, falls back to 80.
	Width int
	// MaxBars keeps only the last MaxBars points. If 0, no limit is applied.
	MaxBars int
}

// Bar renders a horizontal bar chart of pts to w, one bar per point.
//
// Output example:
//
//	GH 1  week 1 – week 4
//	week 1  3.5  ████████████
//	week 2  5.4  ████████████████████
//	week 3  3.7  █████████████
func Bar(w io.Writer, name string, pts []model.Point, opts BarOptions) error {
	totalWidth := opts.Width
	if totalWidth <= 0 {
		totalWidth = termWidth()
	}
	if len(pts) < 1 {
		return fmt.Errorf("chart bar: no points to render")
	}

	valid := pts
	if opts.MaxBars > 0 && len(valid) > opts.MaxBars {
		valid = valid[len(valid)-opts.MaxBars:]
	}

	if len(valid) > 60 {
		fmt.Fprintf(w, "⚠  %d points — consider narrowing --start/--end\n\n", len(valid))
	}

	minVal, maxVal := valid[0].Value, valid[0].Value
	for _, p := range valid[1:] {
		if p.Value < minVal {
			minVal = p.Value
		}
		if p.Value > maxVal {
			maxVal = p.Value
		}
	}

	labelWidth, valWidth := 0, 0
	for _, p := range valid {
		if l := len([]rune(p.Label)); l > labelWidth {
			labelWidth = l
		}
		if l := len(formatFloat(p.Value)); l > valWidth {
			valWidth = l
		}
	}

	// label + value + two 2-space separators
	barAreaWidth := totalWidth - labelWidth - valWidth - 4
	if barAreaWidth < 4 {
		barAreaWidth = 4
	}

	valRange := maxVal - minVal
	if valRange == 0 {
		valRange = 1
	}

	hasNeg := minVal < 0
	var zeroPos int
	if hasNeg {
		zeroPos = int(math.Round((-minVal / valRange) * float64(barAreaWidth-1)))
	}

	fmt.Fprintf(w, "%s  %s – %s\n", name, valid[0].Label, valid[len(valid)-1].Label)

	for _, p := range valid {
		var bar string
		if hasNeg {
			bar = buildBiBar(p.Value, minVal, maxVal, barAreaWidth, zeroPos)
		} else {
			barLen := int(math.Round((p.Value - minVal) / valRange * float64(barAreaWidth)))
			if barLen < 1 {
				barLen = 1 // every bar stays visible
			}
			if barLen > barAreaWidth {
				barLen = barAreaWidth
			}
			bar = strings.Repeat("█", barLen)
		}

		fmt.Fprintf(w, "%s  %*s  %s\n",
			padRight(p.Label, labelWidth),
			valWidth, formatFloat(p.Value),
			bar,
		)
	}

	return nil
}

// buildBiBar renders a bar that may extend left (negative) or right (positive)
// from a zero baseline at zeroPos within a field of width barAreaWidth.
func buildBiBar(val, minVal, maxVal float64, barAreaWidth, zeroPos int) string {
	valRange := maxVal - minVal
	buf := []rune(strings.Repeat(" ", barAreaWidth))

	if zeroPos >= 0 && zeroPos < barAreaWidth {
		buf[zeroPos] = '│'
	}

	if val >= 0 {
		end := zeroPos + int(math.Round(val/valRange*float64(barAreaWidth-1)))
		if end > barAreaWidth {
			end = barAreaWidth
		}
		for i := zeroPos + 1; i <= end && i < barAreaWidth; i++ {
			buf[i] = '█'
		}
	} else {
		start := zeroPos - int(math.Round((-val)/valRange*float64(barAreaWidth-1)))
		if start < 0 {
			start = 0
		}
		for i := start; i < zeroPos && i < barAreaWidth; i++ {
			buf[i] = '█'
		}
	}

	return string(buf)
}

// ─── Plot ─────────────────────────────────────────────────────────────────────

// PlotOptions controls multi-line ASCII plot rendering.
type PlotOptions struct {
	// Width is the total character width of the chart (including Y-axis label).
	// If 0, auto-detects from $COLUMNS, falls back to 80.
	Width int
	// Height is the number of rows in the chart body. If 0, defaults to 12.
	Height int
	// Title overrides the default title (the series name).
	Title string
}

// Plot renders a multi-line ASCII chart of pts to w.
func Plot(w io.Writer, name string, pts []model.Point, opts PlotOptions) error {
	width := opts.Width
	if width <= 0 {
		width = termWidth()
	}
	height := opts.Height
	if height <= 0 {
		height = 12
	}
	title := opts.Title
	if title == "" {
		title = name
	}
	if len(pts) < 2 {
		return fmt.Errorf("chart plot: need at least 2 points (got %d)", len(pts))
	}

	minVal, maxVal := pts[0].Value, pts[0].Value
	for _, p := range pts[1:] {
		if p.Value < minVal {
			minVal = p.Value
		}
		if p.Value > maxVal {
			maxVal = p.Value
		}
	}

	ticks := yTicks(minVal, maxVal, height)
	yLabelWidth := 0
	for _, t := range ticks {
		if l := len(formatFloat(t)); l > yLabelWidth {
			yLabelWidth = l
		}
	}
	yAxisWidth := yLabelWidth + 2

	plotWidth := width - yAxisWidth
	if plotWidth < 10 {
		plotWidth = 10
	}

	cols := sampleCols(pts, plotWidth)
	grid := buildGrid(cols, minVal, maxVal, height)

	fmt.Fprintf(w, "%s  (%s to %s)\n", title, pts[0].Label, pts[len(pts)-1].Label)

	for row := 0; row < height; row++ {
		label := ""
		for _, t := range ticks {
			if math.Abs(rowForValue(t, minVal, maxVal, height)-float64(row)) < 0.5 {
				label = formatFloat(t)
				break
			}
		}
		labelPadded := fmt.Sprintf("%*s", yLabelWidth, label)

		axisCh := "┤"
		if label != "" && math.Abs(minVal) < 1e-9 && row == height-1 {
			axisCh = "┼"
		} else if label == "" {
			axisCh = " "
		}

		fmt.Fprintf(w, "%s%s%s\n", labelPadded, axisCh, string(grid[row]))
	}

	fmt.Fprintf(w, "%s└%s\n", strings.Repeat(" ", yLabelWidth), strings.Repeat("─", plotWidth))
	fmt.Fprintf(w, "%s %s\n", strings.Repeat(" ", yLabelWidth), xAxisLabels(pts, plotWidth))

	return nil
}

// ─── Grid building ────────────────────────────────────────────────────────────

// sampleCols maps pts onto exactly n columns. With more points than columns
// each column averages its bucket; with fewer, points are stretched.
func sampleCols(pts []model.Point, n int) []float64 {
	total := len(pts)
	cols := make([]float64, n)
	if total <= n {
		for col := 0; col < n; col++ {
			cols[col] = pts[col*total/n].Value
		}
		return cols
	}
	for col := 0; col < n; col++ {
		lo := col * total / n
		hi := (col+1)*total/n - 1
		if hi >= total {
			hi = total - 1
		}
		sum := 0.0
		for i := lo; i <= hi; i++ {
			sum += pts[i].Value
		}
		cols[col] = sum / float64(hi-lo+1)
	}
	return cols
}

// rowForValue returns the float row index (0=top=max) for a given value.
func rowForValue(v, minVal, maxVal float64, height int) float64 {
	if maxVal == minVal {
		return float64(height) / 2
	}
	return (maxVal - v) / (maxVal - minVal) * float64(height-1)
}

// buildGrid renders columns into a height×width rune grid using
// box-drawing characters to connect adjacent columns.
func buildGrid(cols []float64, minVal, maxVal float64, height int) [][]rune {
	grid := make([][]rune, height)
	for r := range grid {
		grid[r] = []rune(strings.Repeat(" ", len(cols)))
	}

	rowOf := make([]int, len(cols))
	for col, v := range cols {
		r := int(math.Round(rowForValue(v, minVal, maxVal, height)))
		if r < 0 {
			r = 0
		}
		if r >= height {
			r = height - 1
		}
		rowOf[col] = r
	}

	for col := 0; col < len(cols); col++ {
		r := rowOf[col]
		prevRow, nextRow := -1, -1
		if col > 0 {
			prevRow = rowOf[col-1]
		}
		if col < len(cols)-1 {
			nextRow = rowOf[col+1]
		}

		switch {
		case (prevRow < 0 || prevRow == r) && (nextRow < 0 || nextRow == r):
			grid[r][col] = '─'
		case prevRow >= 0 && prevRow != r && nextRow >= 0 && nextRow != r && (prevRow < r) == (nextRow < r):
			// local peak or valley
			grid[r][col] = '─'
		case (prevRow < 0 || prevRow <= r) && nextRow > r:
			grid[r][col] = '╭'
		case (prevRow < 0 || prevRow >= r) && nextRow >= 0 && nextRow < r:
			grid[r][col] = '╰'
		case prevRow >= 0 && prevRow < r:
			grid[r][col] = '╮'
		case prevRow >= 0 && prevRow > r:
			grid[r][col] = '╯'
		default:
			grid[r][col] = '─'
		}

		// vertical connectors to the previous column's row
		if prevRow >= 0 && prevRow != r {
			lo, hi := r, prevRow
			if lo > hi {
				lo, hi = hi, lo
			}
			for fill := lo + 1; fill < hi; fill++ {
				if grid[fill][col] == ' ' {
					grid[fill][col] = '│'
				}
			}
		}
	}

	return grid
}

// ─── Axis helpers ─────────────────────────────────────────────────────────────

// yTicks returns 3–4 evenly-spaced tick values for the Y axis.
func yTicks(minVal, maxVal float64, height int) []float64 {
	if maxVal == minVal {
		return []float64{minVal}
	}
	nTicks := 4
	if height <= 6 {
		nTicks = 3
	}
	ticks := make([]float64, nTicks)
	for i := 0; i < nTicks; i++ {
		ticks[i] = minVal + float64(i)*(maxVal-minVal)/float64(nTicks-1)
	}
	return ticks
}

// xAxisLabels builds a padded string with start, middle, and end labels.
func xAxisLabels(pts []model.Point, plotWidth int) string {
	startLabel := pts[0].Label
	endLabel := pts[len(pts)-1].Label
	midLabel := pts[len(pts)/2].Label

	midPos := plotWidth/2 - len([]rune(midLabel))/2
	endPos := plotWidth - len([]rune(endLabel))

	buf := []rune(strings.Repeat(" ", plotWidth))
	writeAt := func(pos int, s string) {
		for i, ch := range []rune(s) {
			if pos+i >= 0 && pos+i < len(buf) {
				buf[pos+i] = ch
			}
		}
	}
	writeAt(0, startLabel)
	writeAt(midPos, midLabel)
	writeAt(endPos, endLabel)

	return string(buf)
}

// ─── Utilities ────────────────────────────────────────────────────────────────

// formatFloat formats a float for labels: compact notation for large
// numbers, trailing zeros trimmed but at least one decimal kept.
func formatFloat(v float64) string {
	abs := math.Abs(v)
	var s string
	switch {
	case abs == 0:
		return "0"
	case abs >= 1e6:
		return strconv.FormatFloat(v/1e6, 'f', 1, 64) + "M"
	case abs >= 1e3:
		return strconv.FormatFloat(v/1e3, 'f', 1, 64) + "K"
	case abs >= 100:
		s = strconv.FormatFloat(v, 'f', 1, 64)
	case abs >= 1:
		s = strconv.FormatFloat(v, 'f', 2, 64)
	default:
		s = strconv.FormatFloat(v, 'f', 4, 64)
	}
	s = strings.TrimRight(s, "0")
	if strings.HasSuffix(s, ".") {
		s += "0"
	}
	return s
}

func padRight(s string, width int) string {
	if n := len([]rune(s)); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

// termWidth returns the terminal width from $COLUMNS, defaulting to 80.
func termWidth() int {
	if cols := os.Getenv("COLUMNS"); cols != "" {
		if n, err := strconv.Atoi(cols); err == nil && n > 20 {
			return n
		}
	}
	return 80
}
