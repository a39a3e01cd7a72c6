package ggsurface

import (
	"context"
	"testing"
)

func TestNewValidatesOptions(t *testing.T) {
	if _, err := New(Options{Width: 0, Height: 100, DurationMs: 1000}); err == nil {
		t.Error("zero width should be rejected")
	}
	if _, err := New(Options{Width: 100, Height: 100, DurationMs: 0}); err == nil {
		t.Error("zero duration should be rejected")
	}
}

func TestSnapshotSize(t *testing.T) {
	s, err := New(Options{Width: 64, Height: 48, DurationMs: 1000})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close()

	raster, err := s.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if raster.Width != 64 || raster.Height != 48 {
		t.Errorf("raster size = %dx%d, want 64x48", raster.Width, raster.Height)
	}
	if len(raster.Pix) != 64*48*4 {
		t.Errorf("Pix length = %d, want %d", len(raster.Pix), 64*48*4)
	}
}

func TestPresentAtBounds(t *testing.T) {
	s, err := New(Options{Width: 32, Height: 32, DurationMs: 500})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := s.PresentAt(context.Background(), 250); err != nil {
		t.Errorf("in-range presentation failed: %v", err)
	}
	if err := s.PresentAt(context.Background(), -1); err == nil {
		t.Error("negative time should be rejected")
	}
	if err := s.PresentAt(context.Background(), 501); err == nil {
		t.Error("time past the timeline end should be rejected")
	}
}

func TestSnapshotVariesOverTime(t *testing.T) {
	s, err := New(Options{Width: 64, Height: 64, DurationMs: 1000})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx := context.Background()

	if err := s.PresentAt(ctx, 0); err != nil {
		t.Fatal(err)
	}
	first, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.PresentAt(ctx, 900); err != nil {
		t.Fatal(err)
	}
	second, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}

	same := true
	for i := range first.Pix {
		if first.Pix[i] != second.Pix[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("snapshots at different instants should differ")
	}
}

func TestSnapshotCancelledContext(t *testing.T) {
	s, _ := New(Options{Width: 32, Height: 32, DurationMs: 500})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Snapshot(ctx); err == nil {
		t.Error("cancelled context should abort the snapshot")
	}
	if err := s.PresentAt(ctx, 0); err == nil {
		t.Error("cancelled context should abort the presentation")
	}
}

func TestParseHexColor(t *testing.T) {
	c := parseHexColor("#ff0080", nil)
	r, g, b, _ := c.RGBA()
	if r>>8 != 0xff || g>>8 != 0x00 || b>>8 != 0x80 {
		t.Errorf("parsed color = %d,%d,%d", r>>8, g>>8, b>>8)
	}

	fallback := parseHexColor("nonsense", c)
	if fallback != c {
		t.Error("invalid hex should return the fallback")
	}
}
