package chart

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	gochart "github.com/wcharczuk/go-chart/v2"

	"github.com/verte-zerg/gainview/internal/model"
)

// Image size used by ExportPNG when the caller passes zero.
const (
	DefaultImageWidth  = 1024
	DefaultImageHeight = 400
)

// ErrNoPoints is returned when there is nothing to draw.
var ErrNoPoints = errors.New("gain series has no points")

// WritePNG renders points as a PNG line chart to w.
func WritePNG(w io.Writer, title string, points []model.GainPoint, width, height int) error {
	if len(points) == 0 {
		return ErrNoPoints
	}
	if width <= 0 {
		width = DefaultImageWidth
	}
	if height <= 0 {
		height = DefaultImageHeight
	}

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = float64(p.Position)
		ys[i] = p.Gain
	}
	// A single point has no x range; draw it as a flat segment.
	if len(points) == 1 {
		xs = []float64{xs[0], xs[0] + 1}
		ys = []float64{ys[0], ys[0]}
	}

	graph := gochart.Chart{
		Title:      title,
		Width:      width,
		Height:     height,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      gochart.XAxis{Name: "Position"},
		YAxis:      gochart.YAxis{Name: "Gain", Range: flatRange(ys)},
		Series: []gochart.Series{
			gochart.ContinuousSeries{
				Name:    "Gain",
				XValues: xs,
				YValues: ys,
				Style: gochart.Style{
					StrokeColor: gochart.ColorBlue,
					StrokeWidth: 2,
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := graph.Render(gochart.PNG, &buf); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// ExportPNG writes the chart for points to path, creating parent directories.
func ExportPNG(path, title string, points []model.GainPoint, width, height int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	var buf bytes.Buffer
	if err := WritePNG(&buf, title, points, width, height); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// flatRange gives a constant series a non-zero y range.
func flatRange(ys []float64) gochart.Range {
	for _, y := range ys[1:] {
		if y != ys[0] {
			return nil
		}
	}
	return &gochart.ContinuousRange{Min: ys[0] - 0.5, Max: ys[0] + 0.5}
}
