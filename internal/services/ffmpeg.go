package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bobarin/promptreel/internal/models"
)

const segmentFPS = 30

// FFmpegService is the production Encoder. Every operation is a single
// ffmpeg (or ffprobe) invocation; argument lists are built by pure helpers
// so they can be verified without running the binaries.
type FFmpegService struct{}

var _ Encoder = (*FFmpegService)(nil)

func NewFFmpegService() *FFmpegService {
	return &FFmpegService{}
}

func (s *FFmpegService) RenderSegment(ctx context.Context, imagePath, audioPath, outPath string, target models.RenderTarget, policy models.ScalePolicy) error {
	args := renderSegmentArgs(imagePath, audioPath, outPath, target, policy)
	log.Printf("[FFmpeg] rendering segment %s (%dx%d, %s)", filepath.Base(outPath), target.Width, target.Height, policy)

	if err := runFFmpeg(ctx, args); err != nil {
		return fmt.Errorf("%w: %v", ErrRender, err)
	}
	return nil
}

func (s *FFmpegService) ConcatCopy(ctx context.Context, segmentPaths []string, outPath string) error {
	return s.concat(ctx, segmentPaths, outPath, false)
}

func (s *FFmpegService) ConcatReencode(ctx context.Context, segmentPaths []string, outPath string) error {
	return s.concat(ctx, segmentPaths, outPath, true)
}

func (s *FFmpegService) concat(ctx context.Context, segmentPaths []string, outPath string, reencode bool) error {
	listPath := filepath.Join(filepath.Dir(outPath), "concat_list.txt")
	if err := writeConcatList(listPath, segmentPaths); err != nil {
		return fmt.Errorf("%w: %v", ErrAssemble, err)
	}

	mode := "copy"
	if reencode {
		mode = "re-encode"
	}
	log.Printf("[FFmpeg] concatenating %d segments (%s)", len(segmentPaths), mode)

	if err := runFFmpeg(ctx, concatArgs(listPath, outPath, reencode)); err != nil {
		return fmt.Errorf("%w: concat %s: %v", ErrAssemble, mode, err)
	}
	return nil
}

func (s *FFmpegService) AudioDuration(ctx context.Context, path string) (int, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe output %q: %w", strings.TrimSpace(string(out)), err)
	}
	return int(seconds * 1000), nil
}

func runFFmpeg(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg: %v: %s", err, truncate(string(out), 400))
	}
	return nil
}

// renderSegmentArgs loops the still image under the narration track and
// stops at the shorter stream, so the audio length governs the segment.
func renderSegmentArgs(imagePath, audioPath, outPath string, target models.RenderTarget, policy models.ScalePolicy) []string {
	return []string{
		"-y",
		"-loop", "1",
		"-i", imagePath,
		"-i", audioPath,
		"-vf", scaleFilter(target, policy),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "30",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		"-shortest",
		outPath,
	}
}

// scaleFilter maps the scaling policy onto an ffmpeg filter chain. Fill
// crops overflow after scaling up; fit letterboxes after scaling down.
func scaleFilter(target models.RenderTarget, policy models.ScalePolicy) string {
	w, h := target.Width, target.Height
	var scale string
	switch policy {
	case models.ScaleFit:
		scale = fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2", w, h, w, h)
	default:
		scale = fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d", w, h, w, h)
	}
	return fmt.Sprintf("%s,fps=%d,format=yuv420p", scale, segmentFPS)
}

func concatArgs(listPath, outPath string, reencode bool) []string {
	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
	}
	if reencode {
		args = append(args,
			"-c:v", "libx264",
			"-preset", "veryfast",
			"-crf", "30",
			"-c:a", "aac",
			"-b:a", "128k",
			"-movflags", "+faststart",
		)
	} else {
		args = append(args, "-c", "copy")
	}
	return append(args, outPath)
}

// writeConcatList produces the manifest the concat demuxer reads, one
// "file 'path'" line per segment in playback order.
func writeConcatList(listPath string, segmentPaths []string) error {
	var b strings.Builder
	for _, p := range segmentPaths {
		fmt.Fprintf(&b, "file '%s'\n", p)
	}
	return os.WriteFile(listPath, []byte(b.String()), 0644)
}
