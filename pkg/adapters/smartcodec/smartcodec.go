// Package smartcodec selects the platform codec backend by capability
// probing. Exactly one backend is chosen at construction time; the export
// coordinator never branches on which one.
package smartcodec

import (
	"errors"

	"github.com/user/framecast/pkg/adapters/av1codec"
	"github.com/user/framecast/pkg/export"
	"github.com/user/framecast/pkg/ports"
)

// Backend identifies the selected encoding backend.
type Backend string

const (
	// BackendLibaom is libaom AV1 encoding.
	BackendLibaom Backend = "libaom"
)

// Info describes the backend selection for one coordinator.
type Info struct {
	// Codec is the normalized codec identifier.
	Codec string
	// Container is the selected container format.
	Container string
	// Backend is the encoding backend in use.
	Backend Backend
}

// ErrNoEncoderAvailable is returned when no backend supports the request.
var ErrNoEncoderAvailable = errors.New("smartcodec: no encoder available for the requested codec")

// Probe implements ports.CodecProbe for the available backends.
type Probe struct{}

// NewProbe creates a capability probe.
func NewProbe() *Probe {
	return &Probe{}
}

// IsSupported reports whether the combination can be encoded. AV1 via libaom
// is the only compiled-in codec; 4:2:0 subsampling requires even dimensions.
func (p *Probe) IsSupported(codec string, width, height, bitrateBps, frameRate int) bool {
	switch codec {
	case "av01", "av1":
	default:
		return false
	}
	if width < export.MinDimension || width > export.MaxDimension || width%2 != 0 {
		return false
	}
	if height < export.MinDimension || height > export.MaxDimension || height%2 != 0 {
		return false
	}
	if bitrateBps < export.MinBitrateBps || bitrateBps > export.MaxBitrateBps {
		return false
	}
	return frameRate >= export.MinFrameRate && frameRate <= export.MaxFrameRate
}

// New resolves the encoder factory for the requested codec and container.
func New(codec, container string) (export.EncoderFactory, Info, error) {
	switch codec {
	case "av01", "av1", "":
	default:
		return nil, Info{}, ErrNoEncoderAvailable
	}
	switch container {
	case "", "mp4", "webm":
	default:
		return nil, Info{}, ErrNoEncoderAvailable
	}
	if container == "" {
		container = "mp4"
	}

	factory := func() ports.SampleEncoder { return av1codec.New() }
	return factory, Info{Codec: "av01", Container: container, Backend: BackendLibaom}, nil
}

// IsAV1Available always returns true (libaom is always linked).
func IsAV1Available() bool {
	return true
}

// Ensure Probe implements ports.CodecProbe
var _ ports.CodecProbe = (*Probe)(nil)
