package catalog

import (
	"context"
	"io"
	"time"

	"videoflix/internal/domain/video"
)

// AssetStore is the persistence port for catalog use cases.
type AssetStore interface {
	CreateVideo(ctx context.Context, a *video.Asset) error
	GetVideo(ctx context.Context, id string) (video.Asset, error)
	ListPublished(ctx context.Context) ([]video.Asset, error)
	DeleteVideo(ctx context.Context, id string) error
	SetState(ctx context.Context, id string, state video.ProcessingState) error
	ListRenditions(ctx context.Context, videoID string) ([]video.Rendition, error)
	ListGenres(ctx context.Context) ([]video.Genre, error)
}

// MediaFiles is the filesystem port for uploads, artifact paths and cleanup.
type MediaFiles interface {
	SaveSource(id, originalName string, r io.Reader) (string, error)
	SaveThumbnail(id, originalName string, r io.Reader) (string, error)
	ThumbnailRel(id string) string
	ManifestRel(id string, tier video.Tier) string
	SegmentRel(id, segment string) string
	Abs(rel string) (string, error)
	FileExists(rel string) bool
	RemoveFile(rel string) error
	RemoveTree(rel string) error
}

// Dispatcher hands a created asset off to the asynchronous pipeline.
type Dispatcher interface {
	Dispatch(ctx context.Context, assetID string) error
}

// ListingCache caches the serialized published listing.
type ListingCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
}
