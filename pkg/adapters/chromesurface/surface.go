// Package chromesurface provides a render surface implementation backed by a
// headless Chrome page via chromedp. The page exposes a seek hook the
// surface drives to present timeline instants; driving it is intentionally
// visible in the page.
package chromesurface

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"

	"github.com/chromedp/cdproto/emulation"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/user/framecast/pkg/ports"
)

// DefaultSeekExpr is the JavaScript template used to present a timeline
// instant. The page is expected to install the hook; %f receives the time in
// milliseconds.
const DefaultSeekExpr = "window.__framecastSeek(%f)"

// settleExpr resolves after two animation frames so layout and paint have
// caught up with the seek.
const settleExpr = "new Promise(r => requestAnimationFrame(() => requestAnimationFrame(r)))"

// Options configures a Chrome-backed render surface.
type Options struct {
	// URL is the page hosting the timeline.
	URL string

	// Width and Height set the viewport, which is the surface size.
	Width  int
	Height int

	// DurationMs fixes the timeline duration. When zero, DurationExpr is
	// evaluated in the page instead.
	DurationMs float64

	// DurationExpr is a JavaScript expression yielding the timeline
	// duration in milliseconds.
	DurationExpr string

	// SeekExpr overrides DefaultSeekExpr.
	SeekExpr string

	Headless   bool
	ChromePath string
}

// Surface implements ports.RenderSurface on a Chrome page.
type Surface struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc

	opts       Options
	durationMs float64
	logger     ports.Logger
}

// Launch starts Chrome, navigates to the timeline page and resolves the
// timeline duration.
func Launch(ctx context.Context, opts Options, logger ports.Logger) (*Surface, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("surface URL is required")
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("surface size %dx%d is invalid", opts.Width, opts.Height)
	}
	if opts.SeekExpr == "" {
		opts.SeekExpr = DefaultSeekExpr
	}

	s := &Surface{opts: opts, logger: logger.WithComponent("surface")}
	s.logger.Debug("Launching browser surface")

	chromedpOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.WindowSize(opts.Width, opts.Height),
	}
	if opts.Headless {
		chromedpOpts = append(chromedpOpts, chromedp.Flag("headless", "new"))
	}

	chromePath := ResolveChromePath(opts.ChromePath)
	if chromePath == "" {
		return nil, fmt.Errorf("chrome not found: install Chrome/Chromium, set CHROME_PATH, or use --chrome-path")
	}
	chromedpOpts = append(chromedpOpts, chromedp.ExecPath(chromePath))

	s.allocCtx, s.allocCancel = chromedp.NewExecAllocator(ctx, chromedpOpts...)
	s.ctx, s.cancel = chromedp.NewContext(s.allocCtx)

	if err := chromedp.Run(s.ctx,
		emulation.SetDeviceMetricsOverride(int64(opts.Width), int64(opts.Height), 1.0, false),
		chromedp.Navigate(opts.URL),
	); err != nil {
		s.Close()
		return nil, fmt.Errorf("navigate surface: %w", err)
	}

	s.durationMs = opts.DurationMs
	if s.durationMs <= 0 && opts.DurationExpr != "" {
		var duration float64
		if err := chromedp.Run(s.ctx, chromedp.Evaluate(opts.DurationExpr, &duration)); err != nil {
			s.Close()
			return nil, fmt.Errorf("evaluate timeline duration: %w", err)
		}
		s.durationMs = duration
	}

	return s, nil
}

// PresentAt seeks the page timeline to timeMs and waits for rendering to
// settle.
func (s *Surface) PresentAt(ctx context.Context, timeMs float64) error {
	runCtx, cancel := mergeContext(s.ctx, ctx)
	defer cancel()

	seek := fmt.Sprintf(s.opts.SeekExpr, timeMs)
	if err := chromedp.Run(runCtx, chromedp.Evaluate(seek, nil)); err != nil {
		return fmt.Errorf("seek to %.1fms: %w", timeMs, err)
	}
	return chromedp.Run(runCtx, chromedp.Evaluate(settleExpr, nil,
		func(p *cdpruntime.EvaluateParams) *cdpruntime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}))
}

// Snapshot captures the current page contents as an RGBA raster.
func (s *Surface) Snapshot(ctx context.Context) (*ports.Raster, error) {
	runCtx, cancel := mergeContext(s.ctx, ctx)
	defer cancel()

	var shot []byte
	if err := chromedp.Run(runCtx, chromedp.CaptureScreenshot(&shot)); err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}

	img, err := png.Decode(bytes.NewReader(shot))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	rgba, ok := img.(*image.RGBA)
	if !ok {
		bounds := img.Bounds()
		rgba = image.NewRGBA(bounds)
		draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)
	}
	return &ports.Raster{
		Pix:    rgba.Pix,
		Width:  rgba.Rect.Dx(),
		Height: rgba.Rect.Dy(),
	}, nil
}

// DurationMs reports the timeline duration.
func (s *Surface) DurationMs() float64 { return s.durationMs }

// Size reports the viewport dimensions.
func (s *Surface) Size() ports.SurfaceSize {
	return ports.SurfaceSize{Width: s.opts.Width, Height: s.opts.Height}
}

// Close shuts down the browser.
func (s *Surface) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	s.logger.Debug("Browser surface closed")
	return nil
}

// mergeContext derives a chromedp-compatible context that also honors the
// caller's cancellation.
func mergeContext(base, caller context.Context) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancel(base)
	stop := context.AfterFunc(caller, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}

// Ensure Surface implements ports.RenderSurface
var _ ports.RenderSurface = (*Surface)(nil)
