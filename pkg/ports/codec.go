package ports

// EncoderConfig configures a platform sample encoder for one run.
type EncoderConfig struct {
	Codec      string // e.g. "av01"
	Container  string // "mp4" or "webm"
	Width      int
	Height     int
	FrameRate  int
	BitrateBps int
	Quality    int // quantizer, 0-63, lower is higher quality
}

// CodecProbe checks platform support for an encoding configuration before a
// run is allowed to start.
type CodecProbe interface {
	// IsSupported reports whether the codec/resolution/bitrate/frame-rate
	// combination can be encoded on this host.
	IsSupported(codec string, width, height, bitrateBps, frameRate int) bool
}

// SampleEncoder abstracts the platform codec: raw RGBA frames in, container
// byte chunks out. Frames must arrive in strictly increasing timestamp
// order; the encoder never re-requests a frame.
type SampleEncoder interface {
	// Configure initializes the encoder. It is called exactly once per run,
	// before the first Encode.
	Configure(cfg EncoderConfig) error

	// Encode compresses one frame. Pix holds width*height*4 RGBA bytes.
	// Completed container chunks, if any, are returned as they become
	// available so the caller never has to hold the whole artifact.
	Encode(pix []byte, width, height int, timestampMicros int64) ([][]byte, error)

	// Finish flushes buffered codec state, seals the container and returns
	// the remaining chunks. The encoder is unusable afterwards.
	Finish() ([][]byte, error)

	// MIMEType reports the container MIME type, e.g. "video/mp4".
	MIMEType() string
}
