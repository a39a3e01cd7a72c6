package mocks

import (
	"github.com/user/framecast/pkg/ports"
)

// SampleEncoder is a mock implementation of ports.SampleEncoder.
type SampleEncoder struct {
	ConfigureFunc func(cfg ports.EncoderConfig) error
	EncodeFunc    func(pix []byte, width, height int, timestampMicros int64) ([][]byte, error)
	FinishFunc    func() ([][]byte, error)
	MIMETypeVal   string

	// Recorded calls for verification
	Configured  bool
	Config      ports.EncoderConfig
	EncodeCalls []EncodeCall
	Finished    bool
}

// EncodeCall records a call to Encode.
type EncodeCall struct {
	TimestampMicros int64
	Width           int
	Height          int
}

func (m *SampleEncoder) Configure(cfg ports.EncoderConfig) error {
	m.Configured = true
	m.Config = cfg
	if m.ConfigureFunc != nil {
		return m.ConfigureFunc(cfg)
	}
	return nil
}

func (m *SampleEncoder) Encode(pix []byte, width, height int, timestampMicros int64) ([][]byte, error) {
	m.EncodeCalls = append(m.EncodeCalls, EncodeCall{TimestampMicros: timestampMicros, Width: width, Height: height})
	if m.EncodeFunc != nil {
		return m.EncodeFunc(pix, width, height, timestampMicros)
	}
	return nil, nil
}

func (m *SampleEncoder) Finish() ([][]byte, error) {
	m.Finished = true
	if m.FinishFunc != nil {
		return m.FinishFunc()
	}
	// Minimal MP4 ftyp box header
	return [][]byte{{0x00, 0x00, 0x00, 0x20, 0x66, 0x74, 0x79, 0x70}}, nil
}

func (m *SampleEncoder) MIMEType() string {
	if m.MIMETypeVal != "" {
		return m.MIMETypeVal
	}
	return "video/mp4"
}

// CodecProbe is a mock implementation of ports.CodecProbe.
type CodecProbe struct {
	IsSupportedFunc func(codec string, width, height, bitrateBps, frameRate int) bool
}

func (m *CodecProbe) IsSupported(codec string, width, height, bitrateBps, frameRate int) bool {
	if m.IsSupportedFunc != nil {
		return m.IsSupportedFunc(codec, width, height, bitrateBps, frameRate)
	}
	return true
}

var _ ports.SampleEncoder = (*SampleEncoder)(nil)
var _ ports.CodecProbe = (*CodecProbe)(nil)
