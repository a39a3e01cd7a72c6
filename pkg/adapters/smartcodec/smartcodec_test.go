package smartcodec

import (
	"testing"
)

func TestNewAV1Encoder(t *testing.T) {
	factory, info, err := New("av01", "mp4")
	if err != nil {
		t.Fatalf("failed to resolve AV1 encoder: %v", err)
	}
	if factory == nil {
		t.Fatal("factory is nil")
	}
	if info.Codec != "av01" {
		t.Errorf("expected codec av01, got %s", info.Codec)
	}
	if info.Backend != BackendLibaom {
		t.Errorf("expected backend libaom, got %s", info.Backend)
	}
	if encoder := factory(); encoder == nil {
		t.Fatal("factory produced a nil encoder")
	}
}

func TestNewDefaultsToMP4(t *testing.T) {
	_, info, err := New("", "")
	if err != nil {
		t.Fatalf("empty codec/container should resolve defaults: %v", err)
	}
	if info.Container != "mp4" {
		t.Errorf("expected container mp4, got %s", info.Container)
	}
}

func TestNewUnknownCodec(t *testing.T) {
	_, _, err := New("h265", "mp4")
	if err != ErrNoEncoderAvailable {
		t.Errorf("expected ErrNoEncoderAvailable, got %v", err)
	}
}

func TestNewUnknownContainer(t *testing.T) {
	_, _, err := New("av01", "avi")
	if err != ErrNoEncoderAvailable {
		t.Errorf("expected ErrNoEncoderAvailable, got %v", err)
	}
}

func TestProbeIsSupported(t *testing.T) {
	probe := NewProbe()

	tests := []struct {
		name      string
		codec     string
		width     int
		height    int
		bitrate   int
		frameRate int
		want      bool
	}{
		{"typical request", "av01", 1920, 1080, 5_000_000, 30, true},
		{"av1 alias", "av1", 1280, 720, 2_000_000, 24, true},
		{"unknown codec", "vp8", 1280, 720, 2_000_000, 30, false},
		{"odd width", "av01", 1281, 720, 2_000_000, 30, false},
		{"odd height", "av01", 1280, 721, 2_000_000, 30, false},
		{"width too large", "av01", 8194, 720, 2_000_000, 30, false},
		{"bitrate too low", "av01", 1280, 720, 100, 30, false},
		{"frame rate too high", "av01", 1280, 720, 2_000_000, 240, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := probe.IsSupported(tt.codec, tt.width, tt.height, tt.bitrate, tt.frameRate)
			if got != tt.want {
				t.Errorf("IsSupported = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsAV1Available(t *testing.T) {
	// AV1 should always be available (libaom is linked)
	if !IsAV1Available() {
		t.Error("AV1 should always be available")
	}
}
