package services

import (
	"context"
	"errors"

	"github.com/bobarin/promptreel/internal/models"
)

// ErrRender marks a failed per-scene segment encode. Fatal for the job.
var ErrRender = errors.New("segment render failed")

// ErrAssemble marks a final concatenation that failed in both copy and
// re-encode modes. Fatal for the job.
var ErrAssemble = errors.New("assemble failed")

// Encoder turns scene assets into video segments and joins them.
// RenderSegment and the two concat modes map one-to-one onto process
// invocations in the production implementation; the pipeline owns the
// copy-then-re-encode fallback ordering.
type Encoder interface {
	// RenderSegment combines one still image and one narration track into
	// a video segment sized for target. The segment ends with the audio.
	RenderSegment(ctx context.Context, imagePath, audioPath, outPath string, target models.RenderTarget, policy models.ScalePolicy) error

	// ConcatCopy joins segments by stream copy, without re-encoding.
	ConcatCopy(ctx context.Context, segmentPaths []string, outPath string) error

	// ConcatReencode joins segments with a full re-encode. Slower, but
	// tolerant of stream parameter mismatches between segments.
	ConcatReencode(ctx context.Context, segmentPaths []string, outPath string) error

	// AudioDuration reports the length of an audio file in milliseconds.
	AudioDuration(ctx context.Context, path string) (int, error)
}
