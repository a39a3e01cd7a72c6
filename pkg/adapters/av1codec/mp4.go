package av1codec

import (
	"bytes"
	"fmt"

	"github.com/Eyevinn/mp4ff/av1"
	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/user/framecast/pkg/ports"
)

// mp4Muxer builds a fragmented MP4 incrementally: one init segment chunk
// (ftyp+moov), then one moof+mdat chunk per group of pictures. Emitting
// fragments as they close keeps only one GOP of compressed samples resident.
type mp4Muxer struct {
	cfg       ports.EncoderConfig
	pending   []encodedSample
	wroteInit bool
	seqNumber uint32
	trackID   uint32
}

func newMP4Muxer(cfg ports.EncoderConfig) *mp4Muxer {
	return &mp4Muxer{cfg: cfg, trackID: 1}
}

func (m *mp4Muxer) mimeType() string { return "video/mp4" }

// addSample buffers the sample; a keyframe boundary closes the pending GOP
// into a fragment chunk.
func (m *mp4Muxer) addSample(s encodedSample) ([][]byte, error) {
	var chunks [][]byte
	if s.isKeyframe && len(m.pending) > 0 {
		// The new keyframe's timestamp bounds the previous GOP's last
		// sample duration.
		frag, err := m.flushPending(s.timestampUs)
		if err != nil {
			return nil, err
		}
		chunks = frag
	}
	m.pending = append(m.pending, s)
	return chunks, nil
}

// finish closes the last GOP and returns the remaining chunks.
func (m *mp4Muxer) finish() ([][]byte, error) {
	if len(m.pending) == 0 && !m.wroteInit {
		return nil, fmt.Errorf("no samples to mux")
	}
	if len(m.pending) == 0 {
		return nil, nil
	}
	last := m.pending[len(m.pending)-1]
	return m.flushPending(last.timestampUs + timescale/int64(m.cfg.FrameRate))
}

// flushPending writes the pending samples as one fragment. endUs bounds the
// last sample's duration. The init segment is emitted before the first
// fragment because its codec configuration comes from the first keyframe.
func (m *mp4Muxer) flushPending(endUs int64) ([][]byte, error) {
	var chunks [][]byte

	if !m.wroteInit {
		init, err := m.buildInit()
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, init)
		m.wroteInit = true
	}

	m.seqNumber++
	frag, err := mp4.CreateFragment(m.seqNumber, m.trackID)
	if err != nil {
		return nil, fmt.Errorf("create fragment: %w", err)
	}

	for i, s := range m.pending {
		var nextUs int64
		if i < len(m.pending)-1 {
			nextUs = m.pending[i+1].timestampUs
		} else {
			nextUs = endUs
		}
		dur := uint32(nextUs - s.timestampUs)
		if dur == 0 {
			dur = uint32(timescale / int64(m.cfg.FrameRate))
		}

		flags := mp4.NonSyncSampleFlags
		if s.isKeyframe {
			flags = mp4.SyncSampleFlags
		}

		frag.AddFullSample(mp4.FullSample{
			Sample: mp4.Sample{
				Flags: flags,
				Size:  uint32(len(s.data)),
				Dur:   dur,
			},
			DecodeTime: uint64(s.timestampUs),
			Data:       s.data,
		})
	}
	m.pending = m.pending[:0]

	var buf bytes.Buffer
	if err := frag.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode fragment: %w", err)
	}
	return append(chunks, buf.Bytes()), nil
}

// buildInit encodes the ftyp and moov boxes. The AV1 codec configuration is
// extracted from the first keyframe, which must be pending.
func (m *mp4Muxer) buildInit() ([]byte, error) {
	if len(m.pending) == 0 || !m.pending[0].isKeyframe {
		return nil, fmt.Errorf("fragment does not start with a keyframe")
	}

	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(uint32(timescale), "video", "en")
	trak := init.Moov.Trak

	av1C := &mp4.Av1CBox{
		CodecConfRec: av1.CodecConfRec{
			Version:              1,
			SeqProfile:           0,
			SeqLevelIdx0:         8, // Level 4.0
			SeqTier0:             0,
			HighBitdepth:         0,
			TwelveBit:            0,
			MonoChrome:           0,
			ChromaSubsamplingX:   1, // 4:2:0
			ChromaSubsamplingY:   1,
			ChromaSamplePosition: 0,
			ConfigOBUs:           extractSequenceHeader(m.pending[0].data),
		},
	}

	av01 := mp4.CreateVisualSampleEntryBox("av01", uint16(m.cfg.Width), uint16(m.cfg.Height), av1C)
	trak.Mdia.Minf.Stbl.Stsd.AddChild(av01)

	trak.Tkhd.Width = mp4.Fixed32(m.cfg.Width << 16)
	trak.Tkhd.Height = mp4.Fixed32(m.cfg.Height << 16)

	var buf bytes.Buffer
	ftyp := mp4.NewFtyp("isom", 0x200, []string{"isom", "iso2", "av01", "mp41"})
	if err := ftyp.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode ftyp: %w", err)
	}
	if err := init.Moov.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode moov: %w", err)
	}
	return buf.Bytes(), nil
}

// extractSequenceHeader extracts the sequence header OBU from an AV1
// keyframe bitstream.
func extractSequenceHeader(data []byte) []byte {
	if len(data) < 2 {
		return nil
	}

	offset := 0
	for offset < len(data) {
		header := data[offset]
		obuType := (header >> 3) & 0x0F
		hasExtension := (header >> 2) & 0x01
		hasSizeField := (header >> 1) & 0x01

		offset++
		if hasExtension == 1 && offset < len(data) {
			offset++
		}

		var obuSize int
		if hasSizeField == 1 {
			obuSize, offset = readLeb128(data, offset)
		} else {
			obuSize = len(data) - offset
		}

		// OBU type 1 is the sequence header.
		if obuType == 1 {
			startOffset := offset - 1
			if hasExtension == 1 {
				startOffset--
			}
			endOffset := offset + obuSize
			if endOffset > len(data) {
				endOffset = len(data)
			}
			return data[startOffset:endOffset]
		}

		offset += obuSize
	}
	return nil
}

// readLeb128 reads a LEB128 encoded value.
func readLeb128(data []byte, offset int) (int, int) {
	value := 0
	for i := 0; i < 8 && offset < len(data); i++ {
		b := data[offset]
		offset++
		value |= int(b&0x7F) << (i * 7)
		if b&0x80 == 0 {
			break
		}
	}
	return value, offset
}
