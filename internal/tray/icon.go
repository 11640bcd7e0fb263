// Package tray renders the system tray icon and tooltip for the pinned measurement
package tray

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fogleman/gg"

	"github.com/mrcode/health-manager/internal/chart"
	"github.com/mrcode/health-manager/internal/models"
)

const (
	osWindows = "windows"

	// maxHistory keeps the sparkline short enough for a Windows tooltip
	maxHistory = 24
)

// Trend directions derived from the last two history values
const (
	TrendUp   = "up"
	TrendDown = "down"
	TrendFlat = "flat"
)

// sparkBlocks are the eight block heights used by Sparkline, lowest first
var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// IconGenerator draws tray icons and keeps a short value history for the sparkline
type IconGenerator struct {
	mu      sync.Mutex
	history []float64
	goos    string
}

// NewIconGenerator creates an icon generator for the running platform
func NewIconGenerator() *IconGenerator {
	return &IconGenerator{
		history: make([]float64, 0, maxHistory),
		goos:    runtime.GOOS,
	}
}

// AddHistory appends a value, dropping the oldest beyond maxHistory
func (g *IconGenerator) AddHistory(v float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.history = append(g.history, v)
	if len(g.history) > maxHistory {
		g.history = g.history[len(g.history)-maxHistory:]
	}
}

// SetHistory replaces the history, oldest first
func (g *IconGenerator) SetHistory(values []float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(values) > maxHistory {
		values = values[len(values)-maxHistory:]
	}
	g.history = append(make([]float64, 0, maxHistory), values...)
}

// ClearHistory forgets all values
func (g *IconGenerator) ClearHistory() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.history = g.history[:0]
}

// History returns a copy of the history, oldest first
func (g *IconGenerator) History() []float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]float64(nil), g.history...)
}

// Trend compares the last two history values
func (g *IconGenerator) Trend() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := len(g.history)
	if n < 2 {
		return ""
	}
	prev, last := g.history[n-2], g.history[n-1]
	// Changes under half a percent read as flat
	if math.Abs(last-prev) <= math.Abs(prev)*0.005 {
		return TrendFlat
	}
	if last > prev {
		return TrendUp
	}
	return TrendDown
}

// Sparkline renders the history as a single line of block characters
func (g *IconGenerator) Sparkline() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.history) < 2 {
		return ""
	}

	minVal, maxVal := g.history[0], g.history[0]
	for _, v := range g.history {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	rangeVal := maxVal - minVal

	var b strings.Builder
	for _, v := range g.history {
		idx := len(sparkBlocks) / 2
		if rangeVal > 0 {
			idx = int(math.Round((v - minVal) / rangeVal * float64(len(sparkBlocks)-1)))
		}
		b.WriteRune(sparkBlocks[idx])
	}
	return b.String()
}

// GenerateIcon draws text on a rounded square colored by status, with a
// trend arrow underneath. Windows gets ICO bytes, other platforms PNG.
func (g *IconGenerator) GenerateIcon(text, status string) []byte {
	const (
		width  = 64
		height = 64
		radius = 16
	)

	dc := gg.NewContext(width, height)
	dc.SetRGBA(0, 0, 0, 0)
	dc.Clear()

	r, gr, b := chart.ParseHexColor(StatusColor(status))
	dc.SetRGB255(int(r), int(gr), int(b))
	dc.DrawRoundedRectangle(0, 0, width, height, radius)
	dc.Fill()

	// Black text on light backgrounds
	brightness := (int(r)*299 + int(gr)*587 + int(b)*114) / 1000
	if brightness > 128 {
		dc.SetColor(color.Black)
	} else {
		dc.SetColor(color.White)
	}

	if face, err := chart.FontFace(fontSize(text)); err == nil {
		dc.SetFontFace(face)
		dc.DrawStringAnchored(text, width/2, height/2-12, 0.5, 0.5)
	}

	if trend := g.Trend(); trend != "" {
		drawArrow(dc, width/2, height-16, 22, trend)
	}

	if g.goos == osWindows {
		return imageToICO(dc.Image())
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil
	}
	return buf.Bytes()
}

// fontSize shrinks long values so they fit the icon
func fontSize(text string) float64 {
	switch n := len([]rune(text)); {
	case n <= 3:
		return 34
	case n == 4:
		return 28
	default:
		return 22
	}
}

func drawArrow(dc *gg.Context, x, y, size float64, trend string) {
	dc.Push()
	defer dc.Pop()

	dc.Translate(x, y)
	switch trend {
	case TrendUp:
	case TrendFlat:
		dc.Rotate(gg.Radians(90))
	case TrendDown:
		dc.Rotate(gg.Radians(180))
	default:
		return
	}

	w := size * 0.5
	dc.NewSubPath()
	dc.MoveTo(0, -size/2)
	dc.LineTo(w/2, 0)
	dc.LineTo(w/6, 0)
	dc.LineTo(w/6, size/2)
	dc.LineTo(-w/6, size/2)
	dc.LineTo(-w/6, 0)
	dc.LineTo(-w/2, 0)
	dc.ClosePath()
	dc.Fill()
}

// StatusColor returns the icon background for a threshold status
func StatusColor(status string) string {
	switch status {
	case models.StatusUrgentLow, models.StatusUrgentHigh:
		return "#ef4444"
	case models.StatusLow:
		return "#f97316"
	case models.StatusHigh:
		return "#facc15"
	case models.StatusNormal:
		return "#4ade80"
	default:
		return "#808080"
	}
}

// FormatStatus returns a human-readable status
func FormatStatus(status string) string {
	switch status {
	case models.StatusUrgentLow:
		return "Urgent Low"
	case models.StatusUrgentHigh:
		return "Urgent High"
	case models.StatusLow:
		return "Low"
	case models.StatusHigh:
		return "High"
	case models.StatusNormal:
		return "In Range"
	default:
		return status
	}
}

// FormatValue prints whole numbers without decimals and everything else
// with one decimal
func FormatValue(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e6 {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.1f", v)
}

// FormatAge formats how long ago a measurement was taken
func FormatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		if m := int(d.Minutes()); m > 1 {
			return fmt.Sprintf("%d minutes ago", m)
		}
		return "1 minute ago"
	case d < 48*time.Hour:
		if h := int(d.Hours()); h > 1 {
			return fmt.Sprintf("%d hours ago", h)
		}
		return "1 hour ago"
	default:
		return fmt.Sprintf("%d days ago", int(d.Hours()/24))
	}
}

// Label is the short text shown next to the tray icon
func Label(m models.Measurement) string {
	return strings.TrimSpace(FormatValue(m.Value) + " " + m.Unit)
}

// Tooltip describes the latest measurement, its status and the sparkline
func (g *IconGenerator) Tooltip(m models.Measurement, status string, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", m.Name, Label(m))
	if spark := g.Sparkline(); spark != "" {
		b.WriteString("\n" + spark)
	}
	if status != "" {
		b.WriteString("\nStatus: " + FormatStatus(status))
	}
	b.WriteString("\nUpdated: " + FormatAge(now.Sub(m.Time)))
	return b.String()
}

// imageToICO wraps the PNG encoding of img in a single-entry ICO container
func imageToICO(img image.Image) []byte {
	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, img); err != nil {
		return nil
	}
	pngData := pngBuf.Bytes()

	var buf bytes.Buffer
	// ICONDIR: reserved, type 1 (icon), one image
	_ = binary.Write(&buf, binary.LittleEndian, uint16(0))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))

	// ICONDIRENTRY; a dimension of 0 means 256
	bounds := img.Bounds()
	for _, dim := range []int{bounds.Dx(), bounds.Dy()} {
		if dim >= 256 {
			buf.WriteByte(0)
		} else {
			buf.WriteByte(byte(dim))
		}
	}
	buf.WriteByte(0) // no palette
	buf.WriteByte(0) // reserved
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(32))
	// #nosec G115 -- PNG size is limited by memory and will not overflow uint32
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pngData)))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(22))

	buf.Write(pngData)
	return buf.Bytes()
}

// IsTraySupported returns true if system tray is supported on this platform
func IsTraySupported() bool {
	switch runtime.GOOS {
	case "linux", "windows", "darwin":
		return true
	default:
		return false
	}
}
