package export

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/user/framecast/pkg/mocks"
	"github.com/user/framecast/pkg/ports"
)

func testCoordinator(opts Options, surface *mocks.RenderSurface, sample *mocks.SampleEncoder) *Coordinator {
	return New(opts, surface, &mocks.CodecProbe{}, func() ports.SampleEncoder { return sample }, testLogger())
}

func TestRunProducesResult(t *testing.T) {
	// 2000 ms at 30 fps samples 60 instants.
	opts := DefaultOptions()
	opts.Width = 1920
	opts.Height = 1080
	opts.BitrateBps = 5_000_000
	opts.Metadata = map[string]string{"project": "demo"}

	surface := &mocks.RenderSurface{
		DurationMsVal: 2000,
		SizeVal:       ports.SurfaceSize{Width: 1920, Height: 1080},
	}
	sample := &mocks.SampleEncoder{}
	c := testCoordinator(opts, surface, sample)

	result, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(surface.PresentCalls) != 60 {
		t.Errorf("presented %d instants, want 60", len(surface.PresentCalls))
	}
	if len(sample.EncodeCalls) != 60 {
		t.Errorf("encoded %d frames, want 60", len(sample.EncodeCalls))
	}
	if !sample.Finished {
		t.Error("the codec was never finalized")
	}

	if result.Metadata.FrameRate != 30 {
		t.Errorf("FrameRate = %d, want 30", result.Metadata.FrameRate)
	}
	if result.Metadata.DurationMicros != 2_000_000 {
		t.Errorf("DurationMicros = %d, want 2000000", result.Metadata.DurationMicros)
	}
	if result.Metadata.Width != 1920 || result.Metadata.Height != 1080 {
		t.Errorf("dimensions = %dx%d, want 1920x1080", result.Metadata.Width, result.Metadata.Height)
	}
	if result.Size != int64(len(result.Artifact)) || result.Size == 0 {
		t.Errorf("Size = %d with %d artifact bytes", result.Size, len(result.Artifact))
	}
	if result.MIMEType != "video/mp4" {
		t.Errorf("MIMEType = %q", result.MIMEType)
	}
	if !strings.HasSuffix(result.Filename, ".mp4") {
		t.Errorf("Filename = %q, want .mp4 suffix", result.Filename)
	}
	if result.RunID == "" {
		t.Error("RunID must be set")
	}
	if result.Tags["project"] != "demo" {
		t.Error("metadata tags were not carried into the result")
	}

	if c.Status() != StatusCompleted {
		t.Errorf("Status = %s, want completed", c.Status())
	}
	if got := c.Progress(); got.Percent != 100 || got.Stage != StageCompleted {
		t.Errorf("final progress = %+v", got)
	}
}

func TestRunSampleInstantSpacing(t *testing.T) {
	opts := DefaultOptions()
	opts.FrameRate = 10

	surface := &mocks.RenderSurface{DurationMsVal: 450}
	c := testCoordinator(opts, surface, &mocks.SampleEncoder{})

	if _, err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// ceil(450 / 100) = 5 instants at 0, 100, 200, 300 and 400 ms.
	want := []float64{0, 100, 200, 300, 400}
	if len(surface.PresentCalls) != len(want) {
		t.Fatalf("presented %d instants, want %d", len(surface.PresentCalls), len(want))
	}
	for i, at := range want {
		if surface.PresentCalls[i] != at {
			t.Errorf("instant %d presented at %.1fms, want %.1fms", i, surface.PresentCalls[i], at)
		}
	}
}

func TestRunOutroHoldsFinalFrame(t *testing.T) {
	// 1000 ms at 10 fps captures 10 frames; a 300 ms outro appends three
	// holds of the last one.
	opts := DefaultOptions()
	opts.FrameRate = 10
	opts.OutroMs = 300

	surface := &mocks.RenderSurface{DurationMsVal: 1000}
	sample := &mocks.SampleEncoder{}
	c := testCoordinator(opts, surface, sample)

	result, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(surface.PresentCalls) != 10 {
		t.Errorf("presented %d instants, want 10", len(surface.PresentCalls))
	}
	if len(sample.EncodeCalls) != 13 {
		t.Fatalf("encoded %d frames, want 13", len(sample.EncodeCalls))
	}
	for i := 1; i < len(sample.EncodeCalls); i++ {
		if sample.EncodeCalls[i].TimestampMicros <= sample.EncodeCalls[i-1].TimestampMicros {
			t.Fatalf("timestamp %d did not advance past %d at frame %d",
				sample.EncodeCalls[i].TimestampMicros, sample.EncodeCalls[i-1].TimestampMicros, i)
		}
	}
	if got := sample.EncodeCalls[12].TimestampMicros; got != 1_200_000 {
		t.Errorf("last hold at %dµs, want 1200000", got)
	}
	if result.Metadata.DurationMicros != 1_300_000 {
		t.Errorf("DurationMicros = %d, want 1300000", result.Metadata.DurationMicros)
	}
}

func TestRunMonotonicProgress(t *testing.T) {
	opts := DefaultOptions()
	surface := &mocks.RenderSurface{DurationMsVal: 1000, SizeVal: ports.SurfaceSize{Width: 1280, Height: 720}}
	c := testCoordinator(opts, surface, &mocks.SampleEncoder{})

	var mu sync.Mutex
	var percents []float64
	c.Subscribe(func(p Progress) {
		mu.Lock()
		percents = append(percents, p.Percent)
		mu.Unlock()
	})

	if _, err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(percents); i++ {
		if percents[i] < percents[i-1] {
			t.Fatalf("progress regressed from %.2f to %.2f at update %d", percents[i-1], percents[i], i)
		}
	}
	if percents[len(percents)-1] != 100 {
		t.Errorf("final percent = %.1f, want 100", percents[len(percents)-1])
	}
}

func TestRunUnsupportedFormat(t *testing.T) {
	opts := DefaultOptions()
	surface := &mocks.RenderSurface{DurationMsVal: 1000}
	c := New(opts, surface, &mocks.CodecProbe{
		IsSupportedFunc: func(codec string, width, height, bitrateBps, frameRate int) bool {
			return false
		},
	}, func() ports.SampleEncoder { return &mocks.SampleEncoder{} }, testLogger())

	_, err := c.Run(context.Background())
	var exportErr *Error
	if !errors.As(err, &exportErr) || exportErr.Code != ErrUnsupportedFormat {
		t.Fatalf("expected UNSUPPORTED_FORMAT, got %v", err)
	}
	if c.Status() != StatusError {
		t.Errorf("Status = %s, want error", c.Status())
	}
	if c.LastError() == nil {
		t.Error("LastError should report the failure")
	}
}

func TestRunInvalidOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.FrameRate = 0
	c := testCoordinator(opts, &mocks.RenderSurface{DurationMsVal: 1000}, &mocks.SampleEncoder{})

	_, err := c.Run(context.Background())
	var exportErr *Error
	if !errors.As(err, &exportErr) || exportErr.Code != ErrInvalidOptions {
		t.Fatalf("expected INVALID_OPTIONS, got %v", err)
	}
}

func TestRunNoFramesCaptured(t *testing.T) {
	// Every snapshot fails transiently, so every instant is skipped.
	surface := &mocks.RenderSurface{
		DurationMsVal: 100,
		SnapshotFunc: func(ctx context.Context) (*ports.Raster, error) {
			return nil, nil
		},
	}
	opts := DefaultOptions()
	opts.FrameRate = 10
	c := testCoordinator(opts, surface, &mocks.SampleEncoder{})

	_, err := c.Run(context.Background())
	var exportErr *Error
	if !errors.As(err, &exportErr) || exportErr.Code != ErrProcessing {
		t.Fatalf("expected PROCESSING_ERROR, got %v", err)
	}
	if !strings.Contains(exportErr.Message, "no frames captured") {
		t.Errorf("message = %q", exportErr.Message)
	}
}

func TestRunSkipsFailedInstants(t *testing.T) {
	// One instant fails permanently; the rest are captured and encoded.
	failing := 2
	presented := -1
	surface := &mocks.RenderSurface{
		DurationMsVal: 500,
		PresentAtFunc: func(ctx context.Context, timeMs float64) error {
			presented++
			return nil
		},
		SnapshotFunc: func(ctx context.Context) (*ports.Raster, error) {
			if presented == failing {
				return nil, nil
			}
			return &ports.Raster{Pix: make([]byte, 16*16*4), Width: 16, Height: 16}, nil
		},
	}
	opts := DefaultOptions()
	opts.Width = 16
	opts.Height = 16
	opts.FrameRate = 10
	sample := &mocks.SampleEncoder{}
	c := testCoordinator(opts, surface, sample)

	result, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result == nil {
		t.Fatal("expected a result despite the skipped instant")
	}
	if len(sample.EncodeCalls) != 4 {
		t.Errorf("encoded %d frames, want 4 of 5 instants", len(sample.EncodeCalls))
	}
	// Encoded timestamps stay strictly increasing across the gap.
	for i := 1; i < len(sample.EncodeCalls); i++ {
		if sample.EncodeCalls[i].TimestampMicros <= sample.EncodeCalls[i-1].TimestampMicros {
			t.Fatal("timestamps not strictly increasing across a skipped instant")
		}
	}
}

func TestCancelDuringCapture(t *testing.T) {
	surface := &mocks.RenderSurface{DurationMsVal: 2000, SizeVal: ports.SurfaceSize{Width: 16, Height: 16}}
	opts := DefaultOptions()
	opts.Width = 16
	opts.Height = 16
	c := testCoordinator(opts, surface, &mocks.SampleEncoder{})

	// Request cancellation from inside the capture loop.
	surface.PresentAtFunc = func(ctx context.Context, timeMs float64) error {
		if timeMs > 100 {
			c.Cancel()
		}
		return nil
	}

	result, err := c.Run(context.Background())
	if result != nil {
		t.Error("no result may be produced after cancellation")
	}
	var exportErr *Error
	if !errors.As(err, &exportErr) || exportErr.Code != ErrCancelled {
		t.Fatalf("expected CANCELLED, got %v", err)
	}
	if c.Status() != StatusCancelled {
		t.Errorf("Status = %s, want cancelled", c.Status())
	}
	if len(surface.PresentCalls) >= 60 {
		t.Error("capture loop ran to completion despite cancellation")
	}

	// Cancelling again in a terminal state has no effect.
	c.Cancel()
	if c.Status() != StatusCancelled {
		t.Error("Cancel on a settled run must be a no-op")
	}
}

func TestCancelViaContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	surface := &mocks.RenderSurface{
		DurationMsVal: 2000,
		SizeVal:       ports.SurfaceSize{Width: 16, Height: 16},
		PresentAtFunc: func(ctx context.Context, timeMs float64) error {
			if timeMs > 100 {
				cancel()
			}
			return nil
		},
	}
	opts := DefaultOptions()
	opts.Width = 16
	opts.Height = 16
	c := testCoordinator(opts, surface, &mocks.SampleEncoder{})

	_, err := c.Run(ctx)
	var exportErr *Error
	if !errors.As(err, &exportErr) || exportErr.Code != ErrCancelled {
		t.Fatalf("expected CANCELLED, got %v", err)
	}
}

func TestRunConflict(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	surface := &mocks.RenderSurface{
		DurationMsVal: 1000,
		SizeVal:       ports.SurfaceSize{Width: 16, Height: 16},
		PresentAtFunc: func(ctx context.Context, timeMs float64) error {
			if timeMs == 0 {
				close(started)
				<-release
			}
			return nil
		},
	}
	opts := DefaultOptions()
	opts.Width = 16
	opts.Height = 16
	c := testCoordinator(opts, surface, &mocks.SampleEncoder{})

	done := make(chan error, 1)
	go func() {
		_, err := c.Run(context.Background())
		done <- err
	}()

	<-started
	_, err := c.Run(context.Background())
	var exportErr *Error
	if !errors.As(err, &exportErr) || exportErr.Code != ErrConflict {
		t.Fatalf("concurrent Run should fail with CONFLICT, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("the first run should still complete, got %v", err)
	}
}

func TestResetAfterTerminalState(t *testing.T) {
	opts := DefaultOptions()
	opts.Quality = "bogus"
	c := testCoordinator(opts, &mocks.RenderSurface{DurationMsVal: 1000}, &mocks.SampleEncoder{})

	if _, err := c.Run(context.Background()); err == nil {
		t.Fatal("expected a failed run")
	}
	if c.Status() != StatusError {
		t.Fatalf("Status = %s, want error", c.Status())
	}

	if err := c.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if c.Status() != StatusIdle {
		t.Errorf("Status = %s, want idle after Reset", c.Status())
	}
	if c.LastError() != nil {
		t.Error("Reset should clear the last error")
	}
	if err := c.Reset(); err != nil {
		t.Errorf("Reset on idle should be a no-op, got %v", err)
	}
}

func TestBackPressureDrainsBeforeCapture(t *testing.T) {
	// A tiny buffer without auto-cleanup forces admission refusals; the run
	// must still encode every frame, in order.
	surface := &mocks.RenderSurface{DurationMsVal: 1000, SizeVal: ports.SurfaceSize{Width: 16, Height: 16}}
	opts := DefaultOptions()
	opts.Width = 16
	opts.Height = 16
	sample := &mocks.SampleEncoder{}
	c := testCoordinator(opts, surface, sample)
	c.Buffer = BufferConfig{MaxFrames: 2, MaxBytes: 1 << 20}

	if _, err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(sample.EncodeCalls) != 30 {
		t.Fatalf("encoded %d frames, want 30", len(sample.EncodeCalls))
	}
	for i := 1; i < len(sample.EncodeCalls); i++ {
		if sample.EncodeCalls[i].TimestampMicros <= sample.EncodeCalls[i-1].TimestampMicros {
			t.Fatal("back-pressure drains broke the encode order")
		}
	}
}

func TestDownloadWritesArtifact(t *testing.T) {
	surface := &mocks.RenderSurface{DurationMsVal: 500, SizeVal: ports.SurfaceSize{Width: 16, Height: 16}}
	opts := DefaultOptions()
	opts.Width = 16
	opts.Height = 16
	opts.FrameRate = 10
	c := testCoordinator(opts, surface, &mocks.SampleEncoder{})

	fs := mocks.NewFileSystem()
	result, err := c.Download(context.Background(), fs, "out/video.mp4")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}

	data, ok := fs.File("out/video.mp4")
	if !ok {
		t.Fatal("artifact was not written")
	}
	if int64(len(data)) != result.Size {
		t.Errorf("wrote %d bytes, result reports %d", len(data), result.Size)
	}
}

func TestDownloadDefaultsFilename(t *testing.T) {
	surface := &mocks.RenderSurface{DurationMsVal: 200, SizeVal: ports.SurfaceSize{Width: 16, Height: 16}}
	opts := DefaultOptions()
	opts.Width = 16
	opts.Height = 16
	opts.FrameRate = 10
	c := testCoordinator(opts, surface, &mocks.SampleEncoder{})

	fs := mocks.NewFileSystem()
	result, err := c.Download(context.Background(), fs, "")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if _, ok := fs.File(result.Filename); !ok {
		t.Errorf("artifact not written under suggested name %q", result.Filename)
	}
}
