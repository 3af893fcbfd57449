package pipeline

import (
	"context"

	"videoflix/internal/domain/video"
)

// AssetStore is the persistence port used while a pipeline run mutates an asset.
type AssetStore interface {
	GetVideo(ctx context.Context, id string) (video.Asset, error)
	SetState(ctx context.Context, id string, state video.ProcessingState) error
	SetDuration(ctx context.Context, id string, seconds int) error
	SetThumbnail(ctx context.Context, id, rel string) error
	SetOutputDir(ctx context.Context, id, rel string) error
	UpsertRendition(ctx context.Context, r video.Rendition) error
}

// MediaTools is the external-tool port for probing and transcoding.
type MediaTools interface {
	ProbeDuration(ctx context.Context, inputPath string) (int, error)
	ExtractThumbnail(ctx context.Context, inputPath, outputPath string) error
	TranscodeTier(ctx context.Context, inputPath, outputDir string, tier video.Tier) error
}

// MediaLayout resolves stored relative paths against the media root.
type MediaLayout interface {
	Abs(rel string) (string, error)
	ThumbnailRel(id string) string
	OutputDirRel(id string) string
	ManifestRel(id string, tier video.Tier) string
}

// Invalidator drops the published-listing cache entry after a publish.
type Invalidator interface {
	Delete(ctx context.Context, key string)
}
