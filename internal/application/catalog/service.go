package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"videoflix/internal/cache"
	"videoflix/internal/domain/video"
)

// Service handles catalog use cases: ingress, listing, detail, deletion and
// artifact resolution for the streaming gateway.
type Service struct {
	store      AssetStore
	files      MediaFiles
	dispatcher Dispatcher
	listings   ListingCache
	logger     zerolog.Logger
	cacheTTL   time.Duration
}

// NewService creates a catalog service with injected ports.
func NewService(store AssetStore, files MediaFiles, dispatcher Dispatcher, listings ListingCache, logger zerolog.Logger, cacheTTL time.Duration) *Service {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &Service{
		store:      store,
		files:      files,
		dispatcher: dispatcher,
		listings:   listings,
		logger:     logger,
		cacheTTL:   cacheTTL,
	}
}

// Upload carries the ingress metadata and file streams for a new asset.
type Upload struct {
	Title         string
	Description   string
	GenreID       *string
	SourceName    string
	Source        io.Reader
	ThumbnailName string
	Thumbnail     io.Reader
}

// ListItem is one row of the published listing.
type ListItem struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	ThumbnailURL *string `json:"thumbnail_url"`
	Category     *string `json:"category"`
	CreatedAt    int64   `json:"created_at"`
}

// RenditionInfo describes one available quality variant.
type RenditionInfo struct {
	Tier        string `json:"tier"`
	ManifestURL string `json:"manifest_url"`
	BitrateKbps int    `json:"bitrate_kbps"`
}

// Detail is the full client view of one published asset.
type Detail struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Category        *string         `json:"category"`
	ThumbnailURL    *string         `json:"thumbnail_url"`
	DurationSeconds *int            `json:"duration_seconds"`
	State           string          `json:"state"`
	Renditions      []RenditionInfo `json:"renditions"`
	CreatedAt       int64           `json:"created_at"`
	UpdatedAt       int64           `json:"updated_at"`
}

// CreateVideo persists a new asset from an upload, synchronously marks it
// processing and hands it to the dispatcher. The explicit dispatch call here
// replaces any save-hook magic: this is the one place a job is born.
func (s *Service) CreateVideo(ctx context.Context, up Upload) (video.Asset, error) {
	title := strings.TrimSpace(up.Title)
	if title == "" {
		return video.Asset{}, fmt.Errorf("%w: title is required", video.ErrInvalidInput)
	}
	if up.Source == nil {
		return video.Asset{}, fmt.Errorf("%w: source file is required", video.ErrInvalidInput)
	}

	id := uuid.NewString()
	sourceRel, err := s.files.SaveSource(id, up.SourceName, up.Source)
	if err != nil {
		return video.Asset{}, err
	}

	asset := video.Asset{
		ID:          id,
		Title:       title,
		Description: up.Description,
		GenreID:     up.GenreID,
		SourcePath:  sourceRel,
		Published:   true,
		State:       video.StateUploaded,
	}

	if up.Thumbnail != nil {
		thumbRel, err := s.files.SaveThumbnail(id, up.ThumbnailName, up.Thumbnail)
		if err != nil {
			_ = s.files.RemoveFile(sourceRel)
			return video.Asset{}, err
		}
		asset.ThumbnailPath = &thumbRel
	}

	if err := s.store.CreateVideo(ctx, &asset); err != nil {
		_ = s.files.RemoveFile(sourceRel)
		return video.Asset{}, err
	}

	// Mark processing before the async hand-off so readers immediately see
	// the asset as in progress.
	if err := s.store.SetState(ctx, id, video.StateProcessing); err != nil {
		_ = s.store.DeleteVideo(ctx, id)
		_ = s.files.RemoveFile(sourceRel)
		if asset.ThumbnailPath != nil {
			_ = s.files.RemoveFile(*asset.ThumbnailPath)
		}
		return video.Asset{}, err
	}
	if err := s.dispatcher.Dispatch(ctx, id); err != nil {
		s.logger.Error().Err(err).Str("asset_id", id).Msg("dispatch failed")
		_ = s.store.SetState(ctx, id, video.StateFailed)
		return video.Asset{}, err
	}

	asset.State = video.StateProcessing
	s.logger.Info().Str("asset_id", id).Str("title", title).Msg("video created")
	return asset, nil
}

// ListPublished returns the published listing through the read-through cache.
func (s *Service) ListPublished(ctx context.Context) ([]ListItem, error) {
	if payload, ok := s.listings.Get(ctx, cache.ListingKey); ok {
		var items []ListItem
		if err := json.Unmarshal(payload, &items); err == nil {
			return items, nil
		}
		// Unreadable payload: fall through to a recompute.
		s.listings.Delete(ctx, cache.ListingKey)
	}

	assets, err := s.store.ListPublished(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]ListItem, 0, len(assets))
	for _, asset := range assets {
		items = append(items, ListItem{
			ID:           asset.ID,
			Title:        asset.Title,
			Description:  asset.Description,
			ThumbnailURL: thumbnailURL(asset.ThumbnailPath),
			Category:     asset.GenreName,
			CreatedAt:    asset.CreatedAt.Unix(),
		})
	}

	if payload, err := json.Marshal(items); err == nil {
		s.listings.Set(ctx, cache.ListingKey, payload, s.cacheTTL)
	}
	return items, nil
}

// GetDetail returns one published asset with its renditions.
func (s *Service) GetDetail(ctx context.Context, rawID string) (Detail, error) {
	asset, err := s.publishedAsset(ctx, rawID)
	if err != nil {
		return Detail{}, err
	}

	renditions, err := s.store.ListRenditions(ctx, asset.ID)
	if err != nil {
		return Detail{}, err
	}

	infos := make([]RenditionInfo, 0, len(renditions))
	for _, r := range renditions {
		infos = append(infos, RenditionInfo{
			Tier:        string(r.Tier),
			ManifestURL: fmt.Sprintf("/api/video/%s/%s/index.m3u8", asset.ID, r.Tier),
			BitrateKbps: r.BitrateKbps,
		})
	}

	return Detail{
		ID:              asset.ID,
		Title:           asset.Title,
		Description:     asset.Description,
		Category:        asset.GenreName,
		ThumbnailURL:    thumbnailURL(asset.ThumbnailPath),
		DurationSeconds: asset.DurationSeconds,
		State:           string(asset.State),
		Renditions:      infos,
		CreatedAt:       asset.CreatedAt.Unix(),
		UpdatedAt:       asset.UpdatedAt.Unix(),
	}, nil
}

// ListGenres returns all genres.
func (s *Service) ListGenres(ctx context.Context) ([]video.Genre, error) {
	return s.store.ListGenres(ctx)
}

// DeleteVideo removes the asset record and every on-disk artifact it owns.
// Renditions cascade with the record; file deletion runs first so a partial
// failure surfaces before the record disappears.
func (s *Service) DeleteVideo(ctx context.Context, rawID string) error {
	id, err := video.NormalizeID(rawID)
	if err != nil {
		return err
	}
	asset, err := s.store.GetVideo(ctx, id)
	if err != nil {
		return err
	}

	if err := s.files.RemoveFile(asset.SourcePath); err != nil {
		return err
	}
	if asset.ThumbnailPath != nil {
		if err := s.files.RemoveFile(*asset.ThumbnailPath); err != nil {
			return err
		}
	}
	if asset.OutputDir != nil {
		if err := s.files.RemoveTree(*asset.OutputDir); err != nil {
			return err
		}
	}

	if err := s.store.DeleteVideo(ctx, id); err != nil {
		return err
	}

	s.listings.Delete(ctx, cache.ListingKey)
	s.logger.Info().Str("asset_id", id).Msg("video deleted")
	return nil
}

// ResolveManifest maps (id, tier) to the manifest's absolute path, gated on
// publication. Absent and unpublished are both ErrNotFound.
func (s *Service) ResolveManifest(ctx context.Context, rawID, rawTier string) (string, error) {
	asset, tier, err := s.publishedTier(ctx, rawID, rawTier)
	if err != nil {
		return "", err
	}
	return s.artifactPath(s.files.ManifestRel(asset.ID, tier))
}

// ResolveSegment maps (id, tier, segment) to the segment's absolute path.
// The segment name is validated against the transcoder's own naming before
// any filesystem access.
func (s *Service) ResolveSegment(ctx context.Context, rawID, rawTier, rawSegment string) (string, error) {
	asset, tier, err := s.publishedTier(ctx, rawID, rawTier)
	if err != nil {
		return "", err
	}
	segment, err := video.NormalizeSegmentName(tier, rawSegment)
	if err != nil {
		return "", err
	}
	return s.artifactPath(s.files.SegmentRel(asset.ID, segment))
}

func (s *Service) publishedAsset(ctx context.Context, rawID string) (video.Asset, error) {
	id, err := video.NormalizeID(rawID)
	if err != nil {
		return video.Asset{}, err
	}
	asset, err := s.store.GetVideo(ctx, id)
	if err != nil {
		return video.Asset{}, err
	}
	if !asset.Published {
		return video.Asset{}, video.ErrNotFound
	}
	return asset, nil
}

func (s *Service) publishedTier(ctx context.Context, rawID, rawTier string) (video.Asset, video.Tier, error) {
	tier, err := video.ParseTier(rawTier)
	if err != nil {
		return video.Asset{}, "", err
	}
	asset, err := s.publishedAsset(ctx, rawID)
	if err != nil {
		return video.Asset{}, "", err
	}
	return asset, tier, nil
}

func (s *Service) artifactPath(rel string) (string, error) {
	if !s.files.FileExists(rel) {
		return "", video.ErrNotFound
	}
	return s.files.Abs(rel)
}

func thumbnailURL(rel *string) *string {
	if rel == nil {
		return nil
	}
	url := "/media/" + *rel
	return &url
}
