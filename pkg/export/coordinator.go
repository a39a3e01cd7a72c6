package export

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/user/framecast/pkg/ports"
)

// Status is the coordinator lifecycle state. Completed, error and cancelled
// are terminal; only idle is re-enterable, via Reset, after a terminal state
// has been observed.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusPreparing Status = "preparing"
	StatusExporting Status = "exporting"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

// EncoderFactory produces the single platform encoder instance for a run.
// The backend is selected at construction time by capability probing; the
// coordinator never branches on it.
type EncoderFactory func() ports.SampleEncoder

// drainBatch is how many frames one encode pass pulls from the buffer while
// capture and encode are pipelined.
const drainBatch = 8

// Coordinator orchestrates one export run at a time: it validates options,
// computes sample instants, drives capture through the frame buffer into the
// encoder under back-pressure, and assembles the final artifact.
//
// The run is single-threaded and cooperative: capture and encode interleave
// in one goroutine, and cancellation is checked at every iteration boundary.
type Coordinator struct {
	opts    Options
	surface ports.RenderSurface
	probe   ports.CodecProbe
	factory EncoderFactory
	logger  ports.Logger
	tracker *ProgressTracker

	// Buffer configures the run's frame buffer. Adjust before Run.
	Buffer BufferConfig

	mu              sync.Mutex
	status          Status
	cancelRequested bool
	lastErr         *Error
}

// New creates a Coordinator for the given options and render surface. The
// encoder factory must already have been selected by capability probing.
func New(opts Options, surface ports.RenderSurface, probe ports.CodecProbe, factory EncoderFactory, logger ports.Logger) *Coordinator {
	return &Coordinator{
		opts:    opts,
		surface: surface,
		probe:   probe,
		factory: factory,
		logger:  logger.WithComponent("export"),
		tracker: NewProgressTracker(),
		Buffer:  BufferConfig{AutoCleanup: false},
		status:  StatusIdle,
	}
}

// Validate checks the configured options without starting a run.
func (c *Coordinator) Validate() error {
	return c.opts.Validate()
}

// Status returns the current lifecycle state.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// LastError returns the classified error of the most recent failed run.
func (c *Coordinator) LastError() *Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Subscribe registers a progress listener for the lifetime of the
// coordinator. Listeners survive across runs.
func (c *Coordinator) Subscribe(fn func(Progress)) Slot {
	return c.tracker.Subscribe(fn)
}

// Unsubscribe removes a progress listener.
func (c *Coordinator) Unsubscribe(slot Slot) {
	c.tracker.Unsubscribe(slot)
}

// Progress returns the latest progress snapshot.
func (c *Coordinator) Progress() Progress {
	return c.tracker.Current()
}

// Cancel requests cooperative cancellation of the in-flight run. The run
// rejects with CANCELLED at its next iteration boundary; calling Cancel
// again, or when no run is active, has no further effect.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == StatusPreparing || c.status == StatusExporting {
		c.cancelRequested = true
	}
}

// Reset returns a terminal coordinator to idle for a new run.
func (c *Coordinator) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.status {
	case StatusIdle:
		return nil
	case StatusCompleted, StatusError, StatusCancelled:
		c.status = StatusIdle
		c.lastErr = nil
		c.cancelRequested = false
		c.tracker.Reset()
		return nil
	default:
		return newError(ErrConflict, "export still in progress", nil)
	}
}

// Close tears down the coordinator and invalidates all progress slots.
func (c *Coordinator) Close() {
	c.tracker.Close()
}

// Run executes one export and settles exactly once with a Result or a
// classified *Error. A second Run while one is in flight fails with CONFLICT.
func (c *Coordinator) Run(ctx context.Context) (*Result, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}

	result, err := c.run(ctx)
	if err != nil {
		exportErr := Classify(err)
		c.settle(exportErr)
		return nil, exportErr
	}
	c.settle(nil)
	return result, nil
}

// Download runs the export and hands the artifact to the host file system.
// An empty filename falls back to the suggested one.
func (c *Coordinator) Download(ctx context.Context, fs ports.FileSystem, filename string) (*Result, error) {
	result, err := c.Run(ctx)
	if err != nil {
		return nil, err
	}
	if filename == "" {
		filename = result.Filename
	}
	if dir := filepath.Dir(filename); dir != "." && dir != "" {
		if err := fs.MkdirAll(dir); err != nil {
			return nil, Classify(fmt.Errorf("create output directory: %w", err))
		}
	}
	if err := fs.WriteFile(filename, result.Artifact); err != nil {
		return nil, Classify(fmt.Errorf("write artifact: %w", err))
	}
	c.logger.Info("Artifact saved to %s (%d bytes)", filename, result.Size)
	return result, nil
}

// begin transitions idle→preparing or fails with CONFLICT.
func (c *Coordinator) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == StatusPreparing || c.status == StatusExporting {
		return newError(ErrConflict, "an export is already in progress", nil)
	}
	c.status = StatusPreparing
	c.cancelRequested = false
	c.lastErr = nil
	c.tracker.Reset()
	return nil
}

// settle records the terminal state of the run.
func (c *Coordinator) settle(err *Error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case err == nil:
		c.status = StatusCompleted
	case err.Code == ErrCancelled:
		c.status = StatusCancelled
		c.lastErr = err
	default:
		c.status = StatusError
		c.lastErr = err
	}
}

func (c *Coordinator) setExporting() {
	c.mu.Lock()
	c.status = StatusExporting
	c.mu.Unlock()
}

// checkCancel reports the cancellation error to surface at the current
// iteration boundary, or nil.
func (c *Coordinator) checkCancel(ctx context.Context) error {
	c.mu.Lock()
	requested := c.cancelRequested
	c.mu.Unlock()
	if requested || ctx.Err() != nil {
		return newError(ErrCancelled, "export cancelled", ctx.Err())
	}
	return nil
}

func (c *Coordinator) run(ctx context.Context) (*Result, error) {
	started := time.Now()
	runID := uuid.NewString()
	c.logger.Info("Starting export run %s", runID)

	// 1. Validate.
	c.tracker.SetStage(StagePreparing, "Validating export options")
	if err := c.opts.Validate(); err != nil {
		return nil, err
	}

	// 2. Probe capability support.
	if !c.probe.IsSupported(c.opts.VideoCodec, c.opts.Width, c.opts.Height, c.opts.BitrateBps, c.opts.FrameRate) {
		return nil, newError(ErrUnsupportedFormat,
			fmt.Sprintf("codec %s at %dx%d, %d bps, %d fps is not supported on this host",
				c.opts.VideoCodec, c.opts.Width, c.opts.Height, c.opts.BitrateBps, c.opts.FrameRate), nil)
	}

	// 3. Compute sample instants.
	durationMs := c.surface.DurationMs()
	if durationMs <= 0 {
		return nil, newError(ErrProcessing, "timeline has no duration", nil)
	}
	intervalMs := 1000.0 / float64(c.opts.FrameRate)
	totalInstants := int(math.Ceil(durationMs / intervalMs))
	if totalInstants < 1 {
		totalInstants = 1
	}
	outroInstants := 0
	if c.opts.OutroMs > 0 {
		outroInstants = int(math.Ceil(c.opts.OutroMs / intervalMs))
	}
	totalFrames := totalInstants + outroInstants
	c.logger.Debug("Sampling %d instants over %.1fms at %.2fms spacing", totalInstants, durationMs, intervalMs)

	// One frame stream, one buffer, one encoder, one tracker epoch per run.
	capture := NewRetryingCapture(c.surface, c.opts.Width, c.opts.Height, c.logger)
	buffer := NewFrameBuffer(c.Buffer)
	encoder := NewEncoder(c.factory(), c.logger)
	governor := NewMemoryGovernor(c.logger)

	if err := encoder.Configure(ports.EncoderConfig{
		Codec:      c.opts.VideoCodec,
		Container:  c.opts.Container,
		Width:      c.opts.Width,
		Height:     c.opts.Height,
		FrameRate:  c.opts.FrameRate,
		BitrateBps: c.opts.BitrateBps,
		Quality:    c.opts.Quantizer(),
	}); err != nil {
		return nil, err
	}

	// 4. preparing → exporting.
	c.setExporting()
	c.tracker.SetStage(StageProcessing, "Capturing frames")

	captured := 0
	encoded := 0
	skipped := 0
	totalDurationMs := durationMs + c.opts.OutroMs
	estimated := estimateSize(c.opts.BitrateBps, int64(totalDurationMs*1000))

	updateProgress := func() {
		capFrac := float64(captured) / float64(totalInstants)
		encFrac := float64(encoded) / float64(totalFrames)
		c.tracker.Update(Progress{
			Percent:     50*capFrac + 40*encFrac,
			LoadedBytes: encoder.ChunkBytes(),
			TotalBytes:  estimated,
		})
	}

	// tail tracks the most recently encoded frame so the outro can hold it.
	var tail *RasterFrame

	drain := func(n int) error {
		for _, frame := range buffer.Drain(n) {
			if err := encoder.Encode(frame); err != nil {
				return err
			}
			encoded++
			tail = frame
		}
		updateProgress()
		return nil
	}

	// 5. Capture loop, pipelined with encode drains under back-pressure.
	for i := 0; i < totalInstants; i++ {
		if err := c.checkCancel(ctx); err != nil {
			buffer.Clear()
			return nil, err
		}

		timeMs := float64(i) * intervalMs
		frame, err := capture.CaptureAt(ctx, timeMs, i)
		if err != nil {
			return nil, err
		}
		if frame == nil {
			skipped++
			continue
		}

		for !buffer.Admit(frame) {
			// Admission refused: await a drain before capturing further.
			if buffer.Len() == 0 {
				// The frame alone exceeds a ceiling; bypass the buffer.
				if err := encoder.Encode(frame); err != nil {
					return nil, err
				}
				encoded++
				tail = frame
				break
			}
			if err := drain(drainBatch); err != nil {
				return nil, err
			}
			if err := c.checkCancel(ctx); err != nil {
				buffer.Clear()
				return nil, err
			}
		}
		captured++
		updateProgress()

		// Keep the encoder busy while capture continues.
		if buffer.Len() >= drainBatch {
			if err := drain(drainBatch); err != nil {
				return nil, err
			}
		}
	}

	if captured == 0 {
		return nil, newError(ErrProcessing, "no frames captured", nil)
	}
	if skipped > 0 {
		c.logger.Warn("Skipped %d of %d sample instants after exhausted retries", skipped, totalInstants)
	}

	// 6. Drain the remainder through the encoder.
	c.tracker.SetStage(StageEncoding, "Encoding frames")
	for buffer.Len() > 0 {
		if err := c.checkCancel(ctx); err != nil {
			buffer.Clear()
			return nil, err
		}
		if err := drain(drainBatch); err != nil {
			return nil, err
		}
	}

	// Hold the final frame for the configured outro.
	if outroInstants > 0 && tail != nil {
		for j := 1; j <= outroInstants; j++ {
			if err := c.checkCancel(ctx); err != nil {
				return nil, err
			}
			hold := &RasterFrame{
				Pix:             tail.Pix,
				TimestampMicros: tail.TimestampMicros + int64(float64(j)*intervalMs*1000),
				Index:           tail.Index + j,
				Width:           tail.Width,
				Height:          tail.Height,
			}
			if err := encoder.Encode(hold); err != nil {
				return nil, err
			}
			encoded++
			updateProgress()
		}
	}

	chunks, err := encoder.Finish()
	if err != nil {
		return nil, err
	}

	// 7. Finalize: assemble the artifact under the memory governor.
	if err := c.checkCancel(ctx); err != nil {
		return nil, err
	}
	c.tracker.Update(Progress{Percent: 90, Stage: StageFinalizing, Message: "Assembling artifact"})
	artifact := governor.Assemble(chunks)

	result := &Result{
		Artifact: artifact,
		Filename: suggestFilename(c.opts.Container, started),
		MIMEType: encoder.MIMEType(),
		Size:     int64(len(artifact)),
		Metadata: ResultMetadata{
			Width:          c.opts.Width,
			Height:         c.opts.Height,
			DurationMicros: int64(totalDurationMs * 1000),
			FrameRate:      c.opts.FrameRate,
			HasAudio:       c.opts.IncludeAudio,
			BitrateBps:     c.opts.BitrateBps,
			Codec:          c.opts.VideoCodec,
			EstimatedSize:  estimated,
		},
		ExportTimeMillis: time.Since(started).Milliseconds(),
		RunID:            runID,
		Tags:             c.opts.Metadata,
	}

	// 8. Done.
	c.tracker.Complete("Export completed")
	c.logger.Info("Export run %s completed: %d frames, %d bytes in %dms", runID, encoded, result.Size, result.ExportTimeMillis)
	return result, nil
}
