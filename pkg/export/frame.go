// Package export implements the timeline export engine: sampling a render
// surface at controlled time steps, buffering captured frames under memory
// bounds, encoding them in order through a platform codec and assembling the
// final container artifact.
package export

// RasterFrame is one captured image plus its timestamp and sequence index.
// Ownership transfers exclusively between stages (capture, buffer, encoder);
// a frame is never shared, so memory stays bounded and predictable.
type RasterFrame struct {
	// Pix holds Width*Height*4 bytes in RGBA order.
	Pix []byte

	// TimestampMicros is the presentation time in microseconds. It is
	// non-negative and strictly increasing within a run.
	TimestampMicros int64

	// Index is the 0-based capture sequence number.
	Index int

	Width  int
	Height int
}

// MemoryBytes returns the uncompressed cost of the frame.
func (f *RasterFrame) MemoryBytes() int64 {
	return int64(f.Width) * int64(f.Height) * 4
}
