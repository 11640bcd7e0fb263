// Package chart renders wide views as PNG line charts
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"image/png"
	"math"
	"sync"
	"time"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/mrcode/health-manager/internal/reshape"
)

// Options controls the chart size
type Options struct {
	Width  int
	Height int
}

// DefaultOptions matches the dashboard's chart area
func DefaultOptions() Options {
	return Options{Width: 1200, Height: 600}
}

// Palette cycles through these colors, one per column
var Palette = []string{
	"#4c78a8", "#f58518", "#e45756", "#72b7b2", "#54a24b",
	"#eeca3b", "#b279a2", "#ff9da6", "#9d755d", "#bab0ac",
}

var (
	fontOnce sync.Once
	fontTTF  *truetype.Font
	fontErr  error
)

// FontFace returns the Go regular font at size points
func FontFace(size float64) (font.Face, error) {
	fontOnce.Do(func() {
		fontTTF, fontErr = truetype.Parse(goregular.TTF)
	})
	if fontErr != nil {
		return nil, fontErr
	}
	return truetype.NewFace(fontTTF, &truetype.Options{Size: size}), nil
}

// ParseHexColor parses "#rrggbb"; anything else is black
func ParseHexColor(hex string) (r, g, b byte) {
	if len(hex) == 7 && hex[0] == '#' {
		_, _ = fmt.Sscanf(hex, "#%02x%02x%02x", &r, &g, &b)
	}
	return
}

const (
	marginLeft   = 70.0
	marginRight  = 20.0
	marginTop    = 20.0
	marginBottom = 50.0
	legendRow    = 22.0
	yTicks       = 5
	xTicks       = 6
)

// Render draws one line per column of view. When smoothed is not nil its
// columns are overlaid as dashed lines in the same colors. An empty view
// renders a "No data" placeholder.
func Render(view reshape.WideView, smoothed *reshape.WideView, opts Options) ([]byte, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		opts = DefaultOptions()
	}
	if opts.Width < 200 || opts.Height < 150 {
		return nil, errors.New("chart too small")
	}

	dc := gg.NewContext(opts.Width, opts.Height)
	dc.SetColor(color.White)
	dc.Clear()

	face, err := FontFace(12)
	if err != nil {
		return nil, fmt.Errorf("load font: %w", err)
	}
	dc.SetFontFace(face)

	view = view.Sorted(false)
	if view.Empty() {
		dc.SetColor(color.Gray{Y: 120})
		dc.DrawStringAnchored("No data", float64(opts.Width)/2, float64(opts.Height)/2, 0.5, 0.5)
		return encode(dc)
	}

	legendRows := int(math.Ceil(float64(len(view.Columns)) / 4))
	plot := area{
		x0: marginLeft,
		y0: marginTop,
		x1: float64(opts.Width) - marginRight,
		y1: float64(opts.Height) - marginBottom - float64(legendRows)*legendRow,
	}

	views := []reshape.WideView{view}
	var overlay *reshape.WideView
	if smoothed != nil {
		sorted := smoothed.Sorted(false)
		overlay = &sorted
		views = append(views, sorted)
	}
	plot.tMin, plot.tMax = timeRange(views)
	plot.vMin, plot.vMax = valueRange(views)

	drawAxes(dc, plot)

	for j, name := range view.Columns {
		r, g, b := ParseHexColor(Palette[j%len(Palette)])
		dc.SetRGB255(int(r), int(g), int(b))
		dc.SetLineWidth(2)
		dc.SetDash()
		drawSeries(dc, plot, view.Index, view.Column(name))

		if overlay != nil {
			if cells := overlay.Column(name); cells != nil {
				dc.SetRGBA255(int(r), int(g), int(b), 180)
				dc.SetDash(5, 5)
				drawSeries(dc, plot, overlay.Index, cells)
			}
		}
	}
	dc.SetDash()

	drawLegend(dc, view.Columns, plot, float64(opts.Height)-float64(legendRows)*legendRow-8)
	return encode(dc)
}

type area struct {
	x0, y0, x1, y1 float64
	tMin, tMax     time.Time
	vMin, vMax     float64
}

func (a area) x(t time.Time) float64 {
	span := a.tMax.Sub(a.tMin)
	if span <= 0 {
		return (a.x0 + a.x1) / 2
	}
	return a.x0 + (a.x1-a.x0)*float64(t.Sub(a.tMin))/float64(span)
}

func (a area) y(v float64) float64 {
	return a.y1 - (a.y1-a.y0)*(v-a.vMin)/(a.vMax-a.vMin)
}

func timeRange(views []reshape.WideView) (lo, hi time.Time) {
	for _, v := range views {
		for _, t := range v.Index {
			if lo.IsZero() || t.Before(lo) {
				lo = t
			}
			if hi.IsZero() || t.After(hi) {
				hi = t
			}
		}
	}
	return lo, hi
}

func valueRange(views []reshape.WideView) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range views {
		for _, row := range v.Cells {
			for _, c := range row {
				if !c.OK {
					continue
				}
				lo = math.Min(lo, c.Value)
				hi = math.Max(hi, c.Value)
			}
		}
	}
	if math.IsInf(lo, 1) {
		return 0, 1
	}
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = math.Max(math.Abs(hi)*0.05, 1)
	}
	return lo - pad, hi + pad
}

func drawAxes(dc *gg.Context, a area) {
	dc.SetColor(color.Gray{Y: 220})
	dc.SetLineWidth(1)
	for i := 0; i <= yTicks; i++ {
		v := a.vMin + (a.vMax-a.vMin)*float64(i)/yTicks
		y := a.y(v)
		dc.DrawLine(a.x0, y, a.x1, y)
		dc.Stroke()

		dc.SetColor(color.Gray{Y: 80})
		dc.DrawStringAnchored(formatValue(v), a.x0-8, y, 1, 0.5)
		dc.SetColor(color.Gray{Y: 220})
	}

	dc.SetColor(color.Gray{Y: 80})
	dc.DrawLine(a.x0, a.y1, a.x1, a.y1)
	dc.Stroke()

	span := a.tMax.Sub(a.tMin)
	ticks := xTicks
	if span <= 0 {
		ticks = 0
	}
	for i := 0; i <= ticks; i++ {
		t := a.tMin.Add(time.Duration(float64(span) * float64(i) / float64(xTicks)))
		dc.DrawStringAnchored(t.Format("2006-01-02"), a.x(t), a.y1+16, 0.5, 0.5)
	}
}

func formatValue(v float64) string {
	if math.Abs(v) >= 100 {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.1f", v)
}

// drawSeries strokes the observed points of one column, bridging gaps
func drawSeries(dc *gg.Context, a area, index []time.Time, cells []reshape.Cell) {
	started := false
	points := 0
	for i, c := range cells {
		if !c.OK {
			continue
		}
		x, y := a.x(index[i]), a.y(c.Value)
		if !started {
			dc.MoveTo(x, y)
			started = true
		} else {
			dc.LineTo(x, y)
		}
		points++
	}
	if points == 1 {
		// A lone observation is drawn as a dot
		for i, c := range cells {
			if c.OK {
				dc.ClearPath()
				dc.DrawCircle(a.x(index[i]), a.y(c.Value), 3)
				dc.Fill()
				return
			}
		}
	}
	dc.Stroke()
}

func drawLegend(dc *gg.Context, names []string, a area, top float64) {
	colWidth := (a.x1 - a.x0) / 4
	for j, name := range names {
		x := a.x0 + colWidth*float64(j%4)
		y := top + legendRow*float64(j/4)

		r, g, b := ParseHexColor(Palette[j%len(Palette)])
		dc.SetRGB255(int(r), int(g), int(b))
		dc.DrawRectangle(x, y-5, 14, 10)
		dc.Fill()

		dc.SetColor(color.Gray{Y: 40})
		dc.DrawStringAnchored(name, x+20, y, 0, 0.5)
	}
}

func encode(dc *gg.Context) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
