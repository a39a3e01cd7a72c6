package export

import (
	"fmt"

	"github.com/user/framecast/pkg/ports"
)

// Encoder is the ordered stream transform between the frame buffer and the
// platform codec: frames in capture order in, sealed container bytes out.
// It is a pure consumer and never re-requests a frame.
type Encoder struct {
	sample ports.SampleEncoder
	logger ports.Logger

	configured    bool
	finished      bool
	frameCount    int
	lastTimestamp int64
	chunks        [][]byte
	chunkBytes    int64
}

// NewEncoder wraps a platform sample encoder.
func NewEncoder(sample ports.SampleEncoder, logger ports.Logger) *Encoder {
	return &Encoder{
		sample:        sample,
		logger:        logger.WithComponent("encoder"),
		lastTimestamp: -1,
	}
}

// Configure initializes the underlying codec. A rejected configuration
// surfaces as UNSUPPORTED_FORMAT.
func (e *Encoder) Configure(cfg ports.EncoderConfig) error {
	if e.configured {
		return newError(ErrProcessing, "encoder already configured", nil)
	}
	if err := e.sample.Configure(cfg); err != nil {
		return newError(ErrUnsupportedFormat,
			fmt.Sprintf("codec %s rejected configuration: %s", cfg.Codec, err), err)
	}
	e.configured = true
	e.logger.Debug("Encoder configured: %s/%s %dx%d @ %d fps", cfg.Codec, cfg.Container, cfg.Width, cfg.Height, cfg.FrameRate)
	return nil
}

// Encode submits one frame. Timestamps must be strictly increasing; a
// violation aborts the run because the container index would be corrupt.
func (e *Encoder) Encode(frame *RasterFrame) error {
	if !e.configured {
		return newError(ErrProcessing, "encoder not configured", nil)
	}
	if e.finished {
		return newError(ErrProcessing, "encoder already finished", nil)
	}
	if frame.TimestampMicros <= e.lastTimestamp {
		return newError(ErrProcessing,
			fmt.Sprintf("frame %d timestamp %dus not after %dus", frame.Index, frame.TimestampMicros, e.lastTimestamp), nil)
	}
	chunks, err := e.sample.Encode(frame.Pix, frame.Width, frame.Height, frame.TimestampMicros)
	if err != nil {
		return newError(ErrProcessing,
			fmt.Sprintf("encode frame %d at %dus: %s", frame.Index, frame.TimestampMicros, err), err)
	}
	e.collect(chunks)
	e.lastTimestamp = frame.TimestampMicros
	e.frameCount++
	return nil
}

// Finish flushes buffered codec state, seals the container and returns the
// accumulated chunk stream for assembly.
func (e *Encoder) Finish() ([][]byte, error) {
	if !e.configured {
		return nil, newError(ErrProcessing, "encoder not configured", nil)
	}
	if e.finished {
		return nil, newError(ErrProcessing, "encoder already finished", nil)
	}
	e.finished = true
	chunks, err := e.sample.Finish()
	if err != nil {
		return nil, newError(ErrProcessing, fmt.Sprintf("finalize container: %s", err), err)
	}
	e.collect(chunks)
	e.logger.Debug("Container sealed: %d frames, %d chunks, %d bytes", e.frameCount, len(e.chunks), e.chunkBytes)
	return e.chunks, nil
}

func (e *Encoder) collect(chunks [][]byte) {
	for _, c := range chunks {
		if len(c) == 0 {
			continue
		}
		e.chunks = append(e.chunks, c)
		e.chunkBytes += int64(len(c))
	}
}

// FrameCount returns the number of frames encoded so far.
func (e *Encoder) FrameCount() int { return e.frameCount }

// ChunkBytes returns the compressed bytes collected so far.
func (e *Encoder) ChunkBytes() int64 { return e.chunkBytes }

// MIMEType reports the container MIME type.
func (e *Encoder) MIMEType() string { return e.sample.MIMEType() }
