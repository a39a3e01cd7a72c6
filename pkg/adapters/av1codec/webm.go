package av1codec

import (
	"bytes"
	"fmt"
	"time"

	"github.com/at-wat/ebml-go/webm"

	"github.com/user/framecast/pkg/ports"
)

// webmChunkBytes is how much muxed output accumulates before a chunk is cut.
const webmChunkBytes = 256 << 10

// webmMuxer writes compressed samples into a WebM container through
// ebml-go's block writer, cutting the growing output into chunks.
type webmMuxer struct {
	cfg    ports.EncoderConfig
	buf    *bytes.Buffer
	writer webm.BlockWriteCloser
	err    error
}

type nopWriteCloser struct{ *bytes.Buffer }

func (nopWriteCloser) Close() error { return nil }

func newWebMMuxer(cfg ports.EncoderConfig) *webmMuxer {
	m := &webmMuxer{cfg: cfg, buf: &bytes.Buffer{}}

	writers, err := webm.NewSimpleBlockWriter(nopWriteCloser{m.buf},
		[]webm.TrackEntry{
			{
				Name:            "Video",
				TrackNumber:     1,
				TrackUID:        1,
				CodecID:         "V_AV1",
				TrackType:       1,
				DefaultDuration: uint64(time.Second / time.Duration(cfg.FrameRate)),
				Video: &webm.Video{
					PixelWidth:  uint64(cfg.Width),
					PixelHeight: uint64(cfg.Height),
				},
			},
		})
	if err != nil {
		m.err = fmt.Errorf("create webm writer: %w", err)
		return m
	}
	m.writer = writers[0]
	return m
}

func (m *webmMuxer) mimeType() string { return "video/webm" }

func (m *webmMuxer) addSample(s encodedSample) ([][]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	// Block timestamps are in milliseconds.
	if _, err := m.writer.Write(s.isKeyframe, s.timestampUs/1000, s.data); err != nil {
		return nil, fmt.Errorf("write webm block: %w", err)
	}
	if m.buf.Len() >= webmChunkBytes {
		return [][]byte{m.cut()}, nil
	}
	return nil, nil
}

func (m *webmMuxer) finish() ([][]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	if err := m.writer.Close(); err != nil {
		return nil, fmt.Errorf("close webm writer: %w", err)
	}
	if m.buf.Len() == 0 {
		return nil, nil
	}
	return [][]byte{m.cut()}, nil
}

// cut detaches the accumulated output as one chunk.
func (m *webmMuxer) cut() []byte {
	chunk := make([]byte, m.buf.Len())
	copy(chunk, m.buf.Bytes())
	m.buf.Reset()
	return chunk
}
