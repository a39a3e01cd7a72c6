// Package integration contains integration tests for the export engine.
package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/user/framecast/pkg/adapters/ggsurface"
	"github.com/user/framecast/pkg/adapters/logger"
	"github.com/user/framecast/pkg/adapters/smartcodec"
	"github.com/user/framecast/pkg/export"
	"github.com/user/framecast/pkg/mocks"
	"github.com/user/framecast/pkg/ports"
)

// TestSyntheticSurfaceExport drives a full export run against the synthetic
// surface with a mock codec, so it runs without cgo or a browser.
func TestSyntheticSurfaceExport(t *testing.T) {
	surface, err := ggsurface.New(ggsurface.Options{
		Width:      128,
		Height:     96,
		DurationMs: 1000,
	})
	if err != nil {
		t.Fatalf("failed to create surface: %v", err)
	}
	defer surface.Close()

	sample := &mocks.SampleEncoder{}
	c := export.New(
		export.Options{
			Width:      128,
			Height:     96,
			FrameRate:  10,
			BitrateBps: 1_000_000,
			Quality:    export.QualityMedium,
			VideoCodec: "av01",
			Container:  "mp4",
		},
		surface,
		smartcodec.NewProbe(),
		func() ports.SampleEncoder { return sample },
		logger.NewNoop(),
	)
	defer c.Close()

	var lastPercent float64
	c.Subscribe(func(p export.Progress) {
		if p.Percent < lastPercent {
			t.Errorf("progress regressed from %.2f to %.2f", lastPercent, p.Percent)
		}
		lastPercent = p.Percent
	})

	result, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}

	// 1000 ms at 10 fps samples 10 instants.
	if len(sample.EncodeCalls) != 10 {
		t.Errorf("encoded %d frames, want 10", len(sample.EncodeCalls))
	}
	for _, call := range sample.EncodeCalls {
		if call.Width != 128 || call.Height != 96 {
			t.Fatalf("codec received %dx%d frame, want 128x96", call.Width, call.Height)
		}
	}
	if !sample.Finished {
		t.Error("the codec was never finalized")
	}

	if result.Metadata.DurationMicros != 1_000_000 {
		t.Errorf("DurationMicros = %d", result.Metadata.DurationMicros)
	}
	if result.Metadata.FrameRate != 10 {
		t.Errorf("FrameRate = %d", result.Metadata.FrameRate)
	}
	if lastPercent != 100 {
		t.Errorf("final progress = %.1f, want 100", lastPercent)
	}
	if c.Status() != export.StatusCompleted {
		t.Errorf("status = %s", c.Status())
	}
}

// TestSyntheticSurfaceDownload runs a full export and writes the artifact
// through the real adapters end to end, minus the cgo codec.
func TestSyntheticSurfaceDownload(t *testing.T) {
	surface, err := ggsurface.New(ggsurface.Options{
		Width:      64,
		Height:     64,
		DurationMs: 300,
	})
	if err != nil {
		t.Fatalf("failed to create surface: %v", err)
	}
	defer surface.Close()

	c := export.New(
		export.Options{
			Width:      64,
			Height:     64,
			FrameRate:  10,
			BitrateBps: 1_000_000,
			Quality:    export.QualityLow,
			VideoCodec: "av01",
			Container:  "mp4",
		},
		surface,
		smartcodec.NewProbe(),
		func() ports.SampleEncoder { return &mocks.SampleEncoder{} },
		logger.NewNoop(),
	)
	defer c.Close()

	fs := mocks.NewFileSystem()
	result, err := c.Download(context.Background(), fs, "exports/demo.mp4")
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}

	data, ok := fs.File("exports/demo.mp4")
	if !ok {
		t.Fatal("artifact was not written")
	}
	if int64(len(data)) != result.Size {
		t.Errorf("wrote %d bytes, result reports %d", len(data), result.Size)
	}
}

// TestCancelledExportLeavesNoArtifact verifies the whole stack honors
// cooperative cancellation.
func TestCancelledExportLeavesNoArtifact(t *testing.T) {
	surface, err := ggsurface.New(ggsurface.Options{
		Width:      64,
		Height:     64,
		DurationMs: 5000,
	})
	if err != nil {
		t.Fatalf("failed to create surface: %v", err)
	}
	defer surface.Close()

	var c *export.Coordinator
	sample := &mocks.SampleEncoder{
		EncodeFunc: func(pix []byte, width, height int, timestampMicros int64) ([][]byte, error) {
			if timestampMicros > 500_000 {
				c.Cancel()
			}
			return nil, nil
		},
	}
	c = export.New(
		export.Options{
			Width:      64,
			Height:     64,
			FrameRate:  30,
			BitrateBps: 1_000_000,
			Quality:    export.QualityMedium,
			VideoCodec: "av01",
			Container:  "mp4",
		},
		surface,
		smartcodec.NewProbe(),
		func() ports.SampleEncoder { return sample },
		logger.NewNoop(),
	)
	defer c.Close()

	fs := mocks.NewFileSystem()
	result, err := c.Download(context.Background(), fs, "exports/cancelled.mp4")
	if result != nil {
		t.Error("cancelled export must not produce a result")
	}
	var exportErr *export.Error
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.As(err, &exportErr) || exportErr.Code != export.ErrCancelled {
		t.Fatalf("expected CANCELLED, got %v", err)
	}
	if _, ok := fs.File("exports/cancelled.mp4"); ok {
		t.Error("cancelled export must not write an artifact")
	}
	if c.Status() != export.StatusCancelled {
		t.Errorf("status = %s", c.Status())
	}
}
