package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"videoflix/internal/domain/video"
)

const thumbnailOffsetSeconds = 5

// Transcoder wraps ffmpeg/ffprobe subprocess calls.
type Transcoder struct {
	SegmentSeconds int
}

// NewTranscoder creates the ffmpeg adapter with the configured HLS segment duration.
func NewTranscoder(segmentSeconds int) *Transcoder {
	if segmentSeconds <= 0 {
		segmentSeconds = 10
	}
	return &Transcoder{SegmentSeconds: segmentSeconds}
}

// ProbeDuration extracts the source duration in whole seconds via ffprobe.
func (t *Transcoder) ProbeDuration(ctx context.Context, inputPath string) (int, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=nokey=1:noprint_wrappers=1",
		inputPath,
	}
	cmd := exec.CommandContext(ctx, "ffprobe", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return 0, toolError("ffprobe", err, stderr.String())
	}

	value := strings.TrimSpace(string(out))
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, toolError("ffprobe", fmt.Errorf("unparsable duration %q", value), "")
	}
	return int(parsed), nil
}

// ExtractThumbnail writes a single JPEG frame taken 5 seconds in, scaled to
// a 320px width with the aspect ratio preserved.
func (t *Transcoder) ExtractThumbnail(ctx context.Context, inputPath, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return &video.StorageError{Path: filepath.Dir(outputPath), Err: err}
	}

	args := []string{
		"-y",
		"-i", inputPath,
		"-ss", fmt.Sprintf("00:00:%02d", thumbnailOffsetSeconds),
		"-vf", "scale=320:-1",
		"-frames:v", "1",
		outputPath,
	}
	return run(ctx, "ffmpeg", args...)
}

// TranscodeTier produces one flat HLS playlist plus segment files for a
// single quality tier. Segments are keyframe-aligned and independently
// decodable so re-runs and mid-stream tier switches are safe.
func (t *Transcoder) TranscodeTier(ctx context.Context, inputPath, outputDir string, tier video.Tier) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return &video.StorageError{Path: outputDir, Err: err}
	}
	return run(ctx, "ffmpeg", t.tierArgs(inputPath, outputDir, tier)...)
}

func (t *Transcoder) tierArgs(inputPath, outputDir string, tier video.Tier) []string {
	profile := tier.Profile()
	gop := t.SegmentSeconds * 30

	return []string{
		"-y",
		"-i", inputPath,
		"-sn",
		"-vf", "scale=" + profile.Scale,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-b:v", fmt.Sprintf("%dk", profile.BitrateKbps),
		"-maxrate", fmt.Sprintf("%dk", profile.MaxrateKbps),
		"-bufsize", fmt.Sprintf("%dk", profile.BufsizeKbps),
		"-g", strconv.Itoa(gop),
		"-keyint_min", strconv.Itoa(gop),
		"-sc_threshold", "0",
		"-force_key_frames", fmt.Sprintf("expr:gte(t,n_forced*%d)", t.SegmentSeconds),
		"-c:a", "aac",
		"-ac", "2",
		"-b:a", "192k",
		"-ar", "48000",
		"-f", "hls",
		"-hls_time", strconv.Itoa(t.SegmentSeconds),
		"-hls_list_size", "0",
		"-hls_flags", "independent_segments+temp_file",
		"-hls_segment_filename", filepath.Join(outputDir, tier.SegmentPattern()),
		filepath.Join(outputDir, tier.ManifestName()),
	}
}

func run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.Stdout = &stderr
	if err := cmd.Run(); err != nil {
		return toolError(name, err, stderr.String())
	}
	return nil
}

func toolError(tool string, err error, stderr string) *video.ToolError {
	if diag := strings.TrimSpace(stderr); diag != "" {
		err = fmt.Errorf("%w: %s", err, diag)
	}
	return &video.ToolError{
		Tool:    tool,
		Missing: errors.Is(err, exec.ErrNotFound),
		Err:     err,
	}
}
