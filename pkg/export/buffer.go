package export

import "sync"

// FrameBuffer defaults.
const (
	DefaultMaxFrames    = 60 // about 2 seconds at 30 fps
	DefaultMaxBytes     = 100 << 20
	DefaultCleanupRatio = 0.80
	cleanupLowWater     = 0.60
)

// BufferConfig configures a FrameBuffer.
type BufferConfig struct {
	// MaxFrames is the frame-count ceiling. Zero means DefaultMaxFrames.
	MaxFrames int

	// MaxBytes is the byte ceiling; frame cost is width*height*4.
	// Zero means DefaultMaxBytes.
	MaxBytes int64

	// CleanupRatio is the usage fraction of either ceiling that triggers
	// auto-cleanup. Zero means DefaultCleanupRatio.
	CleanupRatio float64

	// AutoCleanup evicts oldest frames when usage crosses CleanupRatio.
	// When false, Admit refuses frames at the ceiling instead; this is the
	// back-pressure signal the capture loop honors.
	AutoCleanup bool
}

// BufferStats reports FrameBuffer utilization counters.
type BufferStats struct {
	Frames    int
	Bytes     int64
	Evicted   int
	Refused   int
	PeakBytes int64
}

// FrameBuffer is a bounded FIFO queue of captured frames. Frames are always
// drained in capture order; eviction also runs oldest-first because tail
// eviction would corrupt encode ordering.
//
// The buffer is single-writer (capture loop) and single-reader (encode loop);
// the mutex covers the admission/drain bookkeeping only.
type FrameBuffer struct {
	mu     sync.Mutex
	cfg    BufferConfig
	frames []*RasterFrame
	bytes  int64
	stats  BufferStats
}

// NewFrameBuffer creates a FrameBuffer with the given configuration.
func NewFrameBuffer(cfg BufferConfig) *FrameBuffer {
	if cfg.MaxFrames <= 0 {
		cfg.MaxFrames = DefaultMaxFrames
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.CleanupRatio <= 0 || cfg.CleanupRatio > 1 {
		cfg.CleanupRatio = DefaultCleanupRatio
	}
	return &FrameBuffer{cfg: cfg}
}

// Admit appends the frame to the tail. With auto-cleanup enabled, crossing
// the cleanup threshold of either ceiling first evicts oldest frames until
// usage falls to the low-water mark. With auto-cleanup disabled, Admit
// returns false once a ceiling is reached and the frame is not taken.
func (b *FrameBuffer) Admit(frame *RasterFrame) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	cost := frame.MemoryBytes()

	if b.cfg.AutoCleanup {
		countThreshold := int(float64(b.cfg.MaxFrames) * b.cfg.CleanupRatio)
		byteThreshold := int64(float64(b.cfg.MaxBytes) * b.cfg.CleanupRatio)
		if len(b.frames)+1 > countThreshold || b.bytes+cost > byteThreshold {
			b.evictLocked()
		}
	} else if len(b.frames) >= b.cfg.MaxFrames || b.bytes+cost > b.cfg.MaxBytes {
		b.stats.Refused++
		return false
	}

	b.frames = append(b.frames, frame)
	b.bytes += cost
	if b.bytes > b.stats.PeakBytes {
		b.stats.PeakBytes = b.bytes
	}
	return true
}

// evictLocked drops oldest frames until both ceilings are at or below the
// low-water mark.
func (b *FrameBuffer) evictLocked() {
	countTarget := int(float64(b.cfg.MaxFrames) * cleanupLowWater)
	byteTarget := int64(float64(b.cfg.MaxBytes) * cleanupLowWater)
	for len(b.frames) > 0 && (len(b.frames) > countTarget || b.bytes > byteTarget) {
		head := b.frames[0]
		b.frames[0] = nil
		b.frames = b.frames[1:]
		b.bytes -= head.MemoryBytes()
		b.stats.Evicted++
	}
}

// Drain removes and returns up to n frames from the head in FIFO order.
// n <= 0 drains everything.
func (b *FrameBuffer) Drain(n int) []*RasterFrame {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n <= 0 || n > len(b.frames) {
		n = len(b.frames)
	}
	if n == 0 {
		return nil
	}
	out := make([]*RasterFrame, n)
	copy(out, b.frames[:n])
	for i := 0; i < n; i++ {
		b.frames[i] = nil
		b.bytes -= out[i].MemoryBytes()
	}
	b.frames = b.frames[n:]
	return out
}

// Len returns the number of buffered frames.
func (b *FrameBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.frames)
}

// MemoryUsedBytes returns the uncompressed cost of all buffered frames.
func (b *FrameBuffer) MemoryUsedBytes() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bytes
}

// Stats returns a snapshot of utilization counters.
func (b *FrameBuffer) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.stats
	s.Frames = len(b.frames)
	s.Bytes = b.bytes
	return s
}

// Clear discards all buffered frames, e.g. on cancellation.
func (b *FrameBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.frames {
		b.frames[i] = nil
	}
	b.frames = nil
	b.bytes = 0
}
