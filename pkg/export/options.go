package export

import "fmt"

// Quality selects an encoder quality preset.
type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

// Dimension limits accepted by Validate.
const (
	MinDimension  = 16
	MaxDimension  = 8192
	MinFrameRate  = 1
	MaxFrameRate  = 120
	MinBitrateBps = 1_000
	MaxBitrateBps = 100_000_000
)

// Options configures one export run. Options are immutable for the lifetime
// of a run.
type Options struct {
	Width      int
	Height     int
	FrameRate  int
	BitrateBps int
	Quality    Quality

	// VideoCodec and AudioCodec are platform codec identifiers,
	// e.g. "av01" and "opus".
	VideoCodec string
	AudioCodec string

	// Container selects the output container, "mp4" (default) or "webm".
	Container string

	IncludeAudio bool

	// OutroMs holds the final frame for this long at the end of the
	// artifact. Zero disables the outro.
	OutroMs float64

	// BackgroundColor is a hex color ("#000000") used by surfaces that
	// letterbox or pad the timeline content.
	BackgroundColor string

	// Metadata carries free-form tags copied into the result.
	Metadata map[string]string
}

// DefaultOptions returns Options with default values.
func DefaultOptions() Options {
	return Options{
		Width:           1280,
		Height:          720,
		FrameRate:       30,
		BitrateBps:      5_000_000,
		Quality:         QualityMedium,
		VideoCodec:      "av01",
		Container:       "mp4",
		BackgroundColor: "#000000",
	}
}

// Validate checks every option against its documented range. The returned
// error is an *Error with code ErrInvalidOptions naming the offending field.
func (o Options) Validate() error {
	if o.Width < MinDimension || o.Width > MaxDimension {
		return invalidOption("width", fmt.Sprintf("must be between %d and %d, got %d", MinDimension, MaxDimension, o.Width))
	}
	if o.Height < MinDimension || o.Height > MaxDimension {
		return invalidOption("height", fmt.Sprintf("must be between %d and %d, got %d", MinDimension, MaxDimension, o.Height))
	}
	if o.FrameRate < MinFrameRate || o.FrameRate > MaxFrameRate {
		return invalidOption("frameRate", fmt.Sprintf("must be between %d and %d, got %d", MinFrameRate, MaxFrameRate, o.FrameRate))
	}
	if o.BitrateBps < MinBitrateBps || o.BitrateBps > MaxBitrateBps {
		return invalidOption("bitrate", fmt.Sprintf("must be between %d and %d, got %d", MinBitrateBps, MaxBitrateBps, o.BitrateBps))
	}
	if o.OutroMs < 0 {
		return invalidOption("outroMs", fmt.Sprintf("must not be negative, got %g", o.OutroMs))
	}
	switch o.Quality {
	case QualityLow, QualityMedium, QualityHigh:
	default:
		return invalidOption("quality", fmt.Sprintf("must be one of low, medium or high, got %q", o.Quality))
	}
	switch o.Container {
	case "", "mp4", "webm":
	default:
		return invalidOption("container", fmt.Sprintf("must be mp4 or webm, got %q", o.Container))
	}
	return nil
}

// Quantizer maps the quality preset to a codec quantizer value.
func (o Options) Quantizer() int {
	switch o.Quality {
	case QualityHigh:
		return 20
	case QualityLow:
		return 45
	default:
		return 32
	}
}

func invalidOption(field, reason string) *Error {
	return &Error{
		Code:    ErrInvalidOptions,
		Message: fmt.Sprintf("invalid option %s: %s", field, reason),
		Details: field,
	}
}
