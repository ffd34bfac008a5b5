// Package chart renders portfolio value series as images.
package chart

import (
	"fmt"
	"io"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/ndewijer/portfolio-valuation/internal/apperrors"
	"github.com/ndewijer/portfolio-valuation/internal/model"
)

const (
	DefaultWidth  = 900
	DefaultHeight = 400
)

// Options controls the rendered image.
type Options struct {
	Title  string
	Width  int
	Height int
}

// RenderPNG draws the series as a line chart and writes PNG bytes to w.
// Returns ErrInsufficientChartData if the series has fewer than two points.
func RenderPNG(points []model.ChartPoint, opts Options, w io.Writer) error {
	if len(points) < 2 {
		return fmt.Errorf("%w: need at least 2 data points, got %d", apperrors.ErrInsufficientChartData, len(points))
	}

	xValues := make([]time.Time, len(points))
	yValues := make([]float64, len(points))
	for i, p := range points {
		date, err := model.ParseDate(p.Date)
		if err != nil {
			return fmt.Errorf("chart point %d: %w", i, err)
		}
		xValues[i] = date
		yValues[i] = p.TotalValue.InexactFloat64()
	}

	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.Title == "" {
		opts.Title = "Portfolio Value"
	}

	valueSeries := chart.TimeSeries{
		Name: "Total Value",
		Style: chart.Style{
			StrokeColor: drawing.ColorFromHex("2563eb"),
			FillColor:   drawing.ColorFromHex("2563eb").WithAlpha(32),
			StrokeWidth: 2.5,
		},
		XValues: xValues,
		YValues: yValues,
	}

	graph := chart.Chart{
		Title:  opts.Title,
		Width:  opts.Width,
		Height: opts.Height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			TickPosition: chart.TickPositionBetweenTicks,
			ValueFormatter: func(v interface{}) string {
				if t, ok := v.(float64); ok {
					return chart.TimeFromFloat64(t).Format("02 Jan 06")
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.2f", f)
				}
				return ""
			},
		},
		Series: []chart.Series{valueSeries},
	}

	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("chart render failed: %w", err)
	}
	return nil
}
