// Package chart renders labelled values as horizontal ASCII bar charts in the
// terminal: forecast probabilities per category and map indices per station.
//
// Bars grow from a zero baseline, so signed values (map indices) extend left
// for negatives and right for positives.
package chart

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/derickschaefer/composite/internal/model"
)

// ─── Bar ─────────────────────────────────────────────────────────────────────

// Item is one labelled bar.
type Item struct {
	Label string
	Value model.Value
}

// BarOptions controls horizontal bar chart rendering.
type BarOptions struct {
	// Width is the total character width available for the chart.
	// If 0, auto-detects from $COLUMNS, falls back to 80.
	Width int
	// Max fixes the value of a full-width bar. If 0, the largest absolute
	// value is used.
	Max float64
	// Unit is appended to every value label, e.g. "%".
	Unit string
}

// Bar renders a horizontal bar chart of items to w, one bar per item. Null
// values are listed without a bar.
//
// Output example:
//
//	S1 lag 0 FMA
//	below   26%  █████████████
//	normal  52%  ██████████████████████████
//	above   22%  ███████████
func Bar(w io.Writer, title string, items []Item, opts BarOptions) error {
	totalWidth := opts.Width
	if totalWidth <= 0 {
		totalWidth = termWidth()
	}

	var hasValue, hasNeg bool
	maxAbs := opts.Max
	labelWidth, valWidth := 0, 0
	for _, it := range items {
		if l := len(it.Label); l > labelWidth {
			labelWidth = l
		}
		if l := len(valueLabel(it.Value, opts.Unit)); l > valWidth {
			valWidth = l
		}
		v, ok := it.Value.Float()
		if !ok {
			continue
		}
		hasValue = true
		if v < 0 {
			hasNeg = true
		}
		if opts.Max == 0 && math.Abs(v) > maxAbs {
			maxAbs = math.Abs(v)
		}
	}
	if !hasValue {
		return fmt.Errorf("chart bar: no values to render")
	}
	if maxAbs == 0 {
		maxAbs = 1 // avoid divide-by-zero for an all-zero chart
	}

	// Bar area width = totalWidth - labelWidth - valWidth - separators (4 chars)
	barAreaWidth := totalWidth - labelWidth - valWidth - 4
	if barAreaWidth < 4 {
		barAreaWidth = 4
	}

	if title != "" {
		fmt.Fprintln(w, title)
	}
	for _, it := range items {
		var bar string
		if v, ok := it.Value.Float(); ok {
			if hasNeg {
				bar = buildBiBar(v, maxAbs, barAreaWidth)
			} else {
				bar = strings.Repeat("█", scaled(v, maxAbs, barAreaWidth))
			}
		}
		fmt.Fprintf(w, "%-*s  %*s  %s\n", labelWidth, it.Label, valWidth, valueLabel(it.Value, opts.Unit), bar)
	}
	return nil
}

// Forecast charts the category probabilities of f.
func Forecast(w io.Writer, f model.Forecast, width int) error {
	labels := f.Categories.Labels()
	items := make([]Item, len(f.Prob))
	for i, p := range f.Prob {
		items[i] = Item{Label: labels[i], Value: model.Some(p)}
	}
	title := fmt.Sprintf("%s  lag %d  %s  (%s)", f.Station, f.Lag, f.Period.Label(), f.Mode)
	return Bar(w, title, items, BarOptions{Width: width, Max: 100, Unit: "%"})
}

// scaled returns the bar length of v, at least one block for a positive value.
func scaled(v, maxAbs float64, width int) int {
	n := int(math.Round(math.Abs(v) / maxAbs * float64(width)))
	if n < 1 && v != 0 {
		n = 1
	}
	if n > width {
		n = width
	}
	return n
}

// buildBiBar renders a bar that extends left (negative) or right (positive)
// from a zero baseline in the middle of a field of width barAreaWidth.
func buildBiBar(val, maxAbs float64, barAreaWidth int) string {
	half := (barAreaWidth - 1) / 2
	buf := []rune(strings.Repeat(" ", 2*half+1))
	buf[half] = '│'

	n := scaled(val, maxAbs, half)
	if val >= 0 {
		for i := half + 1; i <= half+n; i++ {
			buf[i] = '█'
		}
	} else {
		for i := half - n; i < half; i++ {
			buf[i] = '█'
		}
	}
	return strings.TrimRight(string(buf), " ")
}

// ─── Utilities ────────────────────────────────────────────────────────────────

func valueLabel(v model.Value, unit string) string {
	f, ok := v.Float()
	if !ok {
		return "."
	}
	return formatFloat(f) + unit
}

// formatFloat formats a value label: no unnecessary trailing zeros, at most
// one decimal place.
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', 1, 64)
	s = strings.TrimSuffix(s, ".0")
	if s == "-0" {
		s = "0"
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
