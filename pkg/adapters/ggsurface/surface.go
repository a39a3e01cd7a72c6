// Package ggsurface provides a synthetic render surface drawn with the gg
// library. It renders a moving timeline visualization entirely in-process,
// so the CLI demo mode and tests can export without a browser.
package ggsurface

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/fogleman/gg"

	"github.com/user/framecast/pkg/ports"
)

// Options configures a synthetic surface.
type Options struct {
	Width      int
	Height     int
	DurationMs float64

	// Background is a hex color, e.g. "#1a1a2e".
	Background string

	// Accent is the hex color of the progress sweep.
	Accent string
}

// Surface implements ports.RenderSurface by drawing each presented instant.
type Surface struct {
	opts      Options
	bg        color.Color
	accent    color.Color
	currentMs float64
}

// New creates a synthetic surface.
func New(opts Options) (*Surface, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("surface size %dx%d is invalid", opts.Width, opts.Height)
	}
	if opts.DurationMs <= 0 {
		return nil, fmt.Errorf("surface duration %.1fms is invalid", opts.DurationMs)
	}
	return &Surface{
		opts:   opts,
		bg:     parseHexColor(opts.Background, color.RGBA{R: 26, G: 26, B: 46, A: 255}),
		accent: parseHexColor(opts.Accent, color.RGBA{R: 74, G: 222, B: 128, A: 255}),
	}, nil
}

// PresentAt records the timeline position to draw at the next Snapshot.
func (s *Surface) PresentAt(ctx context.Context, timeMs float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if timeMs < 0 || timeMs > s.opts.DurationMs {
		return fmt.Errorf("time %.1fms outside timeline [0, %.1fms]", timeMs, s.opts.DurationMs)
	}
	s.currentMs = timeMs
	return nil
}

// Snapshot draws the current instant: a progress sweep, a clock hand and a
// timestamp readout.
func (s *Surface) Snapshot(ctx context.Context) (*ports.Raster, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w := s.opts.Width
	h := s.opts.Height
	frac := s.currentMs / s.opts.DurationMs

	dc := gg.NewContext(w, h)
	dc.SetColor(s.bg)
	dc.Clear()

	// Progress sweep along the bottom edge.
	barH := float64(h) / 24
	dc.SetColor(s.accent)
	dc.DrawRectangle(0, float64(h)-barH, float64(w)*frac, barH)
	dc.Fill()

	// Clock hand sweeping the timeline.
	cx := float64(w) / 2
	cy := float64(h) / 2
	radius := float64(minInt(w, h)) / 3
	dc.SetColor(color.White)
	dc.SetLineWidth(2)
	dc.DrawCircle(cx, cy, radius)
	dc.Stroke()
	angle := gg.Radians(360)*frac - gg.Radians(90)
	dc.SetColor(s.accent)
	dc.SetLineWidth(4)
	dc.DrawLine(cx, cy, cx+radius*math.Cos(angle), cy+radius*math.Sin(angle))
	dc.Stroke()

	dc.SetColor(color.White)
	dc.DrawStringAnchored(fmt.Sprintf("%.0f ms", s.currentMs), cx, cy+radius+16, 0.5, 0.5)

	img := dc.Image()
	rgba, ok := img.(*image.RGBA)
	if !ok {
		bounds := img.Bounds()
		rgba = image.NewRGBA(bounds)
		draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)
	}
	return &ports.Raster{Pix: rgba.Pix, Width: w, Height: h}, nil
}

// DurationMs reports the timeline duration.
func (s *Surface) DurationMs() float64 { return s.opts.DurationMs }

// Size reports the surface dimensions.
func (s *Surface) Size() ports.SurfaceSize {
	return ports.SurfaceSize{Width: s.opts.Width, Height: s.opts.Height}
}

// Close is a no-op; the surface holds no resources.
func (s *Surface) Close() error { return nil }

// parseHexColor parses "#rrggbb" with a fallback.
func parseHexColor(hex string, fallback color.Color) color.Color {
	if len(hex) == 0 {
		return fallback
	}
	if hex[0] == '#' {
		hex = hex[1:]
	}
	if len(hex) != 6 {
		return fallback
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b); err != nil {
		return fallback
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Ensure Surface implements ports.RenderSurface
var _ ports.RenderSurface = (*Surface)(nil)
