package video

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// ffmpeg's %03d pattern zero-pads to three digits but grows past 999.
var segmentPattern = regexp.MustCompile(`^(low|mid|high)_\d{3,}\.ts$`)

// NormalizeID validates a client-supplied asset id.
func NormalizeID(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	id, err := uuid.Parse(value)
	if err != nil {
		return "", fmt.Errorf("%w: malformed id %q", ErrInvalidInput, raw)
	}
	return id.String(), nil
}

// NormalizeSegmentName validates a client-supplied segment file name for a
// tier. Only names matching the transcoder's own output pattern pass, so a
// request can never reach the filesystem with an arbitrary path.
func NormalizeSegmentName(tier Tier, raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if !segmentPattern.MatchString(value) {
		return "", fmt.Errorf("%w: malformed segment name %q", ErrInvalidInput, raw)
	}
	if !strings.HasPrefix(value, string(tier)+"_") {
		return "", fmt.Errorf("%w: segment %q does not belong to tier %q", ErrInvalidInput, raw, tier)
	}
	return value, nil
}

// OutputDirName is the per-asset HLS directory name, relative to the hls root.
func OutputDirName(id string) string {
	return "video_" + id
}

// ThumbnailName is the generated thumbnail file name for an asset.
func ThumbnailName(id string) string {
	return "video_" + id + ".jpg"
}
