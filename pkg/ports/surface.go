// Package ports defines interfaces for external collaborators of the export engine.
package ports

import (
	"context"
)

// Raster is one raw RGBA snapshot taken from a render surface.
// Pix holds width*height*4 bytes in RGBA order.
type Raster struct {
	Pix    []byte
	Width  int
	Height int
}

// SurfaceSize describes the pixel dimensions of a render surface.
type SurfaceSize struct {
	Width  int
	Height int
}

// RenderSurface abstracts the external visual output the engine samples from.
// The surface is exclusively driven by one export run at a time; PresentAt is
// an intentionally observable side effect (the surface visibly seeks).
type RenderSurface interface {
	// PresentAt drives the surface to the given timeline position and
	// returns once rendering has settled.
	PresentAt(ctx context.Context, timeMs float64) error

	// Snapshot captures the current surface contents. A nil Raster with a
	// nil error signals a transient capture failure the caller may retry.
	Snapshot(ctx context.Context) (*Raster, error)

	// DurationMs reports the total timeline duration in milliseconds.
	DurationMs() float64

	// Size reports the surface pixel dimensions.
	Size() SurfaceSize

	// Close releases the surface.
	Close() error
}
