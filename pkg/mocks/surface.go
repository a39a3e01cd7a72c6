// Package mocks provides mock implementations for testing.
package mocks

import (
	"context"
	"sync"

	"github.com/user/framecast/pkg/ports"
)

// RenderSurface is a mock implementation of ports.RenderSurface.
type RenderSurface struct {
	PresentAtFunc func(ctx context.Context, timeMs float64) error
	SnapshotFunc  func(ctx context.Context) (*ports.Raster, error)
	DurationMsVal float64
	SizeVal       ports.SurfaceSize
	CloseFunc     func() error

	// Recorded calls for verification
	mu            sync.Mutex
	PresentCalls  []float64
	SnapshotCalls int
	Closed        bool
}

func (m *RenderSurface) PresentAt(ctx context.Context, timeMs float64) error {
	m.mu.Lock()
	m.PresentCalls = append(m.PresentCalls, timeMs)
	m.mu.Unlock()
	if m.PresentAtFunc != nil {
		return m.PresentAtFunc(ctx, timeMs)
	}
	return nil
}

func (m *RenderSurface) Snapshot(ctx context.Context) (*ports.Raster, error) {
	m.mu.Lock()
	m.SnapshotCalls++
	m.mu.Unlock()
	if m.SnapshotFunc != nil {
		return m.SnapshotFunc(ctx)
	}
	w := m.SizeVal.Width
	h := m.SizeVal.Height
	if w == 0 {
		w = 16
	}
	if h == 0 {
		h = 16
	}
	return &ports.Raster{Pix: make([]byte, w*h*4), Width: w, Height: h}, nil
}

func (m *RenderSurface) DurationMs() float64 {
	if m.DurationMsVal > 0 {
		return m.DurationMsVal
	}
	return 1000
}

func (m *RenderSurface) Size() ports.SurfaceSize {
	if m.SizeVal.Width > 0 {
		return m.SizeVal
	}
	return ports.SurfaceSize{Width: 16, Height: 16}
}

func (m *RenderSurface) Close() error {
	m.mu.Lock()
	m.Closed = true
	m.mu.Unlock()
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Ensure RenderSurface implements ports.RenderSurface
var _ ports.RenderSurface = (*RenderSurface)(nil)
