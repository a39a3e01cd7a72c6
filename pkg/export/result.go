package export

import (
	"fmt"
	"time"
)

// ResultMetadata describes the produced artifact.
type ResultMetadata struct {
	Width          int
	Height         int
	DurationMicros int64
	FrameRate      int
	HasAudio       bool
	BitrateBps     int
	Codec          string
	EstimatedSize  int64
}

// Result is the successful outcome of one export run. The caller owns it;
// everything else the run created is discarded on completion.
type Result struct {
	Artifact []byte
	Filename string
	MIMEType string
	Size     int64

	Metadata ResultMetadata

	ExportTimeMillis int64

	// RunID uniquely identifies the run that produced this artifact.
	RunID string

	// Tags are the caller-supplied metadata tags from the options.
	Tags map[string]string
}

// suggestFilename builds a timestamped default filename for the container.
func suggestFilename(container string, now time.Time) string {
	ext := "mp4"
	if container == "webm" {
		ext = "webm"
	}
	return fmt.Sprintf("export-%s.%s", now.Format("20060102-150405"), ext)
}

// estimateSize predicts the artifact size from bitrate and duration.
func estimateSize(bitrateBps int, durationMicros int64) int64 {
	return int64(bitrateBps) / 8 * durationMicros / 1_000_000
}
