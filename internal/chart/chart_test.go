package chart

import (
	"bytes"
	"image/png"
	"testing"
	"time"

	"github.com/mrcode/health-manager/internal/models"
	"github.com/mrcode/health-manager/internal/reshape"
)

func day(d int) time.Time {
	return time.Date(2025, time.March, d, 8, 0, 0, 0, time.UTC)
}

func TestRender(t *testing.T) {
	rows := models.Table{
		{Time: day(1), Name: "Weight", Value: 180},
		{Time: day(2), Name: "Weight", Value: 179.4},
		{Time: day(4), Name: "Weight", Value: 178.8},
		{Time: day(2), Name: "Glucose", Value: 104},
	}
	view := reshape.Pivot(rows, reshape.Mean)
	smoothed := view.MovingAverage(7 * 24 * time.Hour)

	tests := []struct {
		name     string
		view     reshape.WideView
		smoothed *reshape.WideView
		opts     Options
		wantW    int
		wantH    int
	}{
		{"Default size", view, nil, Options{}, 1200, 600},
		{"Custom size", view, nil, Options{Width: 640, Height: 320}, 640, 320},
		{"Moving average overlay", view, &smoothed, Options{Width: 800, Height: 400}, 800, 400},
		{"Empty view", reshape.WideView{}, nil, Options{Width: 300, Height: 200}, 300, 200},
		{"Single point", reshape.Pivot(rows[:1], reshape.Mean), nil, Options{Width: 300, Height: 200}, 300, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Render(tt.view, tt.smoothed, tt.opts)
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			img, err := png.Decode(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("decode png: %v", err)
			}
			b := img.Bounds()
			if b.Dx() != tt.wantW || b.Dy() != tt.wantH {
				t.Errorf("size = %dx%d, want %dx%d", b.Dx(), b.Dy(), tt.wantW, tt.wantH)
			}
		})
	}
}

func TestRender_TooSmall(t *testing.T) {
	if _, err := Render(reshape.WideView{}, nil, Options{Width: 100, Height: 100}); err == nil {
		t.Error("Render() with 100x100 should fail")
	}
}

func TestRender_DrawsSeries(t *testing.T) {
	rows := models.Table{
		{Time: day(1), Name: "Weight", Value: 100},
		{Time: day(5), Name: "Weight", Value: 200},
	}
	data, err := Render(reshape.Pivot(rows, reshape.Mean), nil, Options{Width: 400, Height: 300})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}

	// The first palette color must appear somewhere on the canvas
	wr, wg, wb := ParseHexColor(Palette[0])
	found := false
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y && !found; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			if byte(r>>8) == wr && byte(g>>8) == wg && byte(bl>>8) == wb {
				found = true
				break
			}
		}
	}
	if !found {
		t.Error("series color not found in rendered chart")
	}
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in      string
		r, g, b byte
	}{
		{"#4c78a8", 0x4c, 0x78, 0xa8},
		{"#FFFFFF", 0xff, 0xff, 0xff},
		{"4c78a8", 0, 0, 0},
		{"", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			r, g, b := ParseHexColor(tt.in)
			if r != tt.r || g != tt.g || b != tt.b {
				t.Errorf("ParseHexColor(%q) = %d,%d,%d, want %d,%d,%d", tt.in, r, g, b, tt.r, tt.g, tt.b)
			}
		})
	}
}

func TestFontFace(t *testing.T) {
	face, err := FontFace(10)
	if err != nil {
		t.Fatalf("FontFace() error = %v", err)
	}
	if face.Metrics().Height <= 0 {
		t.Error("font face has no height")
	}
}
