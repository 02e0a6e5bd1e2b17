// Package chart renders gain series and topic tables for the terminal.
package chart

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/verte-zerg/gainview/internal/model"
)

// Options controls how a gain plot is drawn. Zero values select defaults.
type Options struct {
	// Title is printed above the plot when set.
	Title string
	// Width is the number of plot columns; 0 fits the terminal.
	Width int
	// Height is the number of plot rows; 0 means DefaultHeight.
	Height int
	// Color forces ANSI color even when w is not a terminal.
	Color bool
	// NoLegend hides the min/max summary line.
	NoLegend bool
}

const (
	DefaultHeight       = 10
	minPlotWidth        = 10
	axisSeparator       = " │ "
	colorReset          = "\x1b[0m"
	plotColor           = "\x1b[36m"
	terminalWidthBackup = 80
)

type valueRange struct {
	min float64
	max float64
}

// Plot writes a braille line chart of points to w.
func Plot(w io.Writer, points []model.GainPoint, opts Options) error {
	if len(points) == 0 {
		return nil
	}
	values := gainValues(points)

	height := opts.Height
	if height <= 0 {
		height = DefaultHeight
	}
	rng := valueRangeOf(values)
	labels := makeAxisLabels(height, rng)
	labelWidth := axisLabelWidth(labels)

	width := opts.Width
	if width <= 0 {
		width = WidthFor(terminalWidth(), labelWidth)
	}
	if width < minPlotWidth {
		width = minPlotWidth
	}

	scaled := resampleSeries(values, width)
	cells := makeCells(height, width)
	prevX, prevY := -1, -1
	for x, v := range scaled {
		px := x * 2
		py := valueToRow(v, rng.min, rng.max, height*4)
		if prevX >= 0 {
			drawLine(prevX, prevY, px, py, func(dx, dy int) {
				setBrailleDot(cells, dx, dy)
			})
		} else {
			setBrailleDot(cells, px, py)
		}
		prevX, prevY = px, py
	}

	useColor := shouldUseColor(w, opts.Color)
	if opts.Title != "" {
		if _, err := fmt.Fprintln(w, opts.Title); err != nil {
			return err
		}
	}
	for y := 0; y < height; y++ {
		var row strings.Builder
		row.WriteString(runewidth.FillLeft(labels[y], labelWidth))
		row.WriteString(axisSeparator)
		if useColor {
			row.WriteString(plotColor)
		}
		for x := 0; x < width; x++ {
			row.WriteRune(brailleFromMask(cells[y][x]))
		}
		if useColor {
			row.WriteString(colorReset)
		}
		if _, err := fmt.Fprintln(w, row.String()); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w, positionAxis(points, labelWidth, width)); err != nil {
		return err
	}
	if !opts.NoLegend {
		first, last := points[0].Position, points[len(points)-1].Position
		line := fmt.Sprintf("points=%d positions=%d..%d min=%.3f max=%.3f", len(points), first, last, rng.min, rng.max)
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// Render returns the plot as a string.
func Render(points []model.GainPoint, opts Options) string {
	var b strings.Builder
	if err := Plot(&b, points, opts); err != nil {
		return ""
	}
	return strings.TrimRight(b.String(), "\n")
}

// WidthFor computes the plot width that fits in totalWidth next to the axis.
func WidthFor(totalWidth, labelWidth int) int {
	if totalWidth <= 0 {
		return minPlotWidth
	}
	plotWidth := totalWidth - labelWidth - runewidth.StringWidth(axisSeparator)
	if plotWidth < minPlotWidth {
		plotWidth = minPlotWidth
	}
	return plotWidth
}

func gainValues(points []model.GainPoint) []float64 {
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Gain
	}
	return values
}

func positionAxis(points []model.GainPoint, labelWidth, width int) string {
	first := fmt.Sprintf("%d", points[0].Position)
	last := fmt.Sprintf("%d", points[len(points)-1].Position)
	gap := width - runewidth.StringWidth(first) - runewidth.StringWidth(last)
	if gap < 1 {
		gap = 1
	}
	return strings.Repeat(" ", labelWidth+runewidth.StringWidth(axisSeparator)) + first + strings.Repeat(" ", gap) + last
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

func shouldUseColor(w io.Writer, force bool) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force {
		return true
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

func makeAxisLabels(height int, rng valueRange) []string {
	labels := make([]string, height)
	if height <= 0 {
		return labels
	}
	labels[0] = formatTick(rng.max)
	if height > 2 {
		labels[height/2] = formatTick((rng.min + rng.max) / 2)
	}
	if height > 1 {
		labels[height-1] = formatTick(rng.min)
	}
	return labels
}

func axisLabelWidth(labels []string) int {
	width := 0
	for _, label := range labels {
		if w := runewidth.StringWidth(label); w > width {
			width = w
		}
	}
	return width
}

func formatTick(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func makeCells(height, width int) [][]uint8 {
	cells := make([][]uint8, height)
	for y := 0; y < height; y++ {
		cells[y] = make([]uint8, width)
	}
	return cells
}

func resampleSeries(values []float64, width int) []float64 {
	if len(values) == 0 || width <= 0 {
		return nil
	}
	if len(values) == width {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, width)
	if len(values) > width {
		for i := 0; i < width; i++ {
			start := int(float64(i) * float64(len(values)) / float64(width))
			end := int(float64(i+1) * float64(len(values)) / float64(width))
			if end <= start {
				end = start + 1
			}
			if end > len(values) {
				end = len(values)
			}
			var sum float64
			for _, v := range values[start:end] {
				sum += v
			}
			out[i] = sum / float64(end-start)
		}
		return out
	}
	if width == 1 || len(values) == 1 {
		for i := range out {
			out[i] = values[0]
		}
		return out
	}
	for i := 0; i < width; i++ {
		pos := float64(i) * float64(len(values)-1) / float64(width-1)
		idx := int(math.Floor(pos))
		if idx >= len(values)-1 {
			out[i] = values[len(values)-1]
			continue
		}
		frac := pos - float64(idx)
		out[i] = values[idx]*(1-frac) + values[idx+1]*frac
	}
	return out
}

// valueRangeOf widens a flat series so it plots as a centered line.
func valueRangeOf(values []float64) valueRange {
	minVal := math.Inf(1)
	maxVal := math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	if math.IsInf(minVal, 1) || math.IsInf(maxVal, -1) {
		return valueRange{min: 0, max: 1}
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		minVal -= 0.5
		maxVal += 0.5
	}
	return valueRange{min: minVal, max: maxVal}
}

func valueToRow(v, minVal, maxVal float64, height int) int {
	if height <= 1 || math.IsNaN(v) {
		return 0
	}
	pos := (v - minVal) / (maxVal - minVal)
	row := int(math.Round((1 - pos) * float64(height-1)))
	if row < 0 {
		row = 0
	}
	if row >= height {
		row = height - 1
	}
	return row
}

func drawLine(x0, y0, x1, y1 int, plot func(x, y int)) {
	dx := int(math.Abs(float64(x1 - x0)))
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -int(math.Abs(float64(y1 - y0)))
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		plot(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			if x0 == x1 {
				break
			}
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			if y0 == y1 {
				break
			}
			err += dx
			y0 += sy
		}
	}
}

func setBrailleDot(cells [][]uint8, x, y int) {
	if y < 0 || x < 0 {
		return
	}
	cellY := y / 4
	cellX := x / 2
	if cellY >= len(cells) || cellX >= len(cells[cellY]) {
		return
	}
	cells[cellY][cellX] |= brailleDotMask(x%2, y%4)
}

var brailleDots = [2][4]uint8{
	{0x01, 0x02, 0x04, 0x40},
	{0x08, 0x10, 0x20, 0x80},
}

func brailleDotMask(x, y int) uint8 {
	if x < 0 || x > 1 || y < 0 || y > 3 {
		return 0
	}
	return brailleDots[x][y]
}

func brailleFromMask(mask uint8) rune {
	return rune(0x2800 + int(mask))
}
