package export

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/cenkalti/backoff/v4"
	xdraw "golang.org/x/image/draw"

	"github.com/user/framecast/pkg/ports"
)

// Retry bounds for a single sample instant.
const (
	captureMaxRetries  = 3
	captureBackoffStep = 100 * time.Millisecond
)

var errTransientCapture = errors.New("transient capture failure")

// linearBackOff waits step*attempt between retries.
type linearBackOff struct {
	step    time.Duration
	attempt int
}

func (l *linearBackOff) NextBackOff() time.Duration {
	l.attempt++
	return l.step * time.Duration(l.attempt)
}

func (l *linearBackOff) Reset() { l.attempt = 0 }

// RetryingCapture wraps a render surface with bounded per-frame retry. A
// transient snapshot failure is retried with linear backoff; exhausting all
// attempts yields a nil frame, which the coordinator treats as "skip this
// instant" rather than a fatal error.
type RetryingCapture struct {
	surface ports.RenderSurface
	width   int
	height  int
	logger  ports.Logger

	attempts int // total attempts across the run, for stats
}

// NewRetryingCapture creates a capture adapter targeting the given output
// resolution. Snapshots whose surface size differs are rescaled.
func NewRetryingCapture(surface ports.RenderSurface, width, height int, logger ports.Logger) *RetryingCapture {
	return &RetryingCapture{
		surface: surface,
		width:   width,
		height:  height,
		logger:  logger.WithComponent("capture"),
	}
}

// CaptureAt presents the surface at timeMs and snapshots it. The returned
// frame is nil with a nil error when every attempt failed transiently; a
// non-nil error is only returned for context cancellation or a failed
// presentation.
func (c *RetryingCapture) CaptureAt(ctx context.Context, timeMs float64, index int) (*RasterFrame, error) {
	if err := c.surface.PresentAt(ctx, timeMs); err != nil {
		return nil, fmt.Errorf("present at %.1fms: %w", timeMs, err)
	}

	var raster *ports.Raster
	op := func() error {
		c.attempts++
		r, err := c.surface.Snapshot(ctx)
		if err != nil {
			return err
		}
		if r == nil {
			return errTransientCapture
		}
		raster = r
		return nil
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{step: captureBackoffStep}, captureMaxRetries),
		ctx,
	)
	if err := backoff.Retry(op, bo); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// All attempts exhausted: skip this instant.
		c.logger.Warn("Frame %d at %.1fms failed after %d attempts: %s", index, timeMs, captureMaxRetries+1, err)
		return nil, nil
	}

	frame := &RasterFrame{
		Pix:             raster.Pix,
		TimestampMicros: int64(timeMs * 1000),
		Index:           index,
		Width:           raster.Width,
		Height:          raster.Height,
	}
	if raster.Width != c.width || raster.Height != c.height {
		frame = c.rescale(frame)
	}
	return frame, nil
}

// Attempts returns the total snapshot attempts issued so far.
func (c *RetryingCapture) Attempts() int { return c.attempts }

// rescale resizes a frame to the target resolution.
func (c *RetryingCapture) rescale(frame *RasterFrame) *RasterFrame {
	src := &image.RGBA{
		Pix:    frame.Pix,
		Stride: frame.Width * 4,
		Rect:   image.Rect(0, 0, frame.Width, frame.Height),
	}
	dst := image.NewRGBA(image.Rect(0, 0, c.width, c.height))
	xdraw.ApproxBiLinear.Scale(dst, dst.Rect, src, src.Rect, xdraw.Src, nil)
	return &RasterFrame{
		Pix:             dst.Pix,
		TimestampMicros: frame.TimestampMicros,
		Index:           frame.Index,
		Width:           c.width,
		Height:          c.height,
	}
}
