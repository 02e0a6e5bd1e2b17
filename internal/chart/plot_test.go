package chart

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/gainview/internal/model"
)

func TestPlot(t *testing.T) {
	points := []model.GainPoint{{Position: 0, Gain: 0.1}, {Position: 1, Gain: 0.4}, {Position: 2, Gain: 0.2}}
	var buf bytes.Buffer
	if err := Plot(&buf, points, Options{Title: "a.txt", Width: 12, Height: 4}); err != nil {
		t.Fatalf("Plot failed: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	// title + rows + position axis + summary
	if len(lines) != 1+4+1+1 {
		t.Fatalf("expected 7 lines, got %d:\n%s", len(lines), buf.String())
	}
	if lines[0] != "a.txt" {
		t.Fatalf("expected title, got %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "0.40 │ ") {
		t.Fatalf("expected max label on top row, got %q", lines[1])
	}
	if !strings.HasPrefix(lines[4], "0.10 │ ") {
		t.Fatalf("expected min label on bottom row, got %q", lines[4])
	}
	for _, row := range lines[1:5] {
		if got := runewidth.StringWidth(row); got != 4+3+12 {
			t.Fatalf("expected row width 19, got %d for %q", got, row)
		}
	}
	if !strings.Contains(lines[6], "points=3") || !strings.Contains(lines[6], "positions=0..2") {
		t.Fatalf("unexpected summary %q", lines[6])
	}
	if strings.Contains(buf.String(), "\x1b[") {
		t.Fatalf("expected no color for non-terminal writer")
	}
}

func TestPlotEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := Plot(&buf, nil, Options{}); err != nil {
		t.Fatalf("Plot failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
}

func TestPlotFlatSeriesAndColor(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	points := []model.GainPoint{{Position: 5, Gain: 1}}
	out := Render(points, Options{Width: 10, Height: 3, Color: true, NoLegend: true})
	if !strings.Contains(out, plotColor) {
		t.Fatalf("expected forced color")
	}
	if strings.Contains(out, "points=") {
		t.Fatalf("expected legend hidden")
	}
	if !strings.Contains(out, "1.50") || !strings.Contains(out, "0.50") {
		t.Fatalf("expected widened range labels, got:\n%s", out)
	}
}

func TestWidthFor(t *testing.T) {
	if got := WidthFor(80, 4); got != 80-4-3 {
		t.Fatalf("expected 73, got %d", got)
	}
	if got := WidthFor(0, 4); got != minPlotWidth {
		t.Fatalf("expected min width, got %d", got)
	}
	if got := WidthFor(12, 6); got != minPlotWidth {
		t.Fatalf("expected min width for narrow terminal, got %d", got)
	}
}

func TestResampleSeries(t *testing.T) {
	got := resampleSeries([]float64{0, 2}, 3)
	if len(got) != 3 || got[0] != 0 || got[1] != 1 || got[2] != 2 {
		t.Fatalf("unexpected upsample %v", got)
	}
	got = resampleSeries([]float64{1, 3, 5, 7}, 2)
	if len(got) != 2 || got[0] != 2 || got[1] != 6 {
		t.Fatalf("unexpected downsample %v", got)
	}
}
