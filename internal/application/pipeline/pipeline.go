package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"videoflix/internal/cache"
	"videoflix/internal/domain/video"
)

// Pipeline owns the asset processing lifecycle:
//
//	uploaded → processing → ready | failed
//
// Every run leaves the asset in a terminal state; a record that vanishes
// mid-run is tolerated silently. Tool failures are converted into the
// failed state rather than returned, so the queue never retries a
// deterministically failing job.
type Pipeline struct {
	store       AssetStore
	tools       MediaTools
	layout      MediaLayout
	listings    Invalidator
	logger      zerolog.Logger
	stepTimeout time.Duration
}

// New creates a pipeline with injected ports.
func New(store AssetStore, tools MediaTools, layout MediaLayout, listings Invalidator, logger zerolog.Logger, stepTimeout time.Duration) *Pipeline {
	if stepTimeout <= 0 {
		stepTimeout = 30 * time.Minute
	}
	return &Pipeline{
		store:       store,
		tools:       tools,
		layout:      layout,
		listings:    listings,
		logger:      logger,
		stepTimeout: stepTimeout,
	}
}

// Run executes the full processing sequence for one asset. It returns an
// error only when a terminal state could not be recorded; such jobs stay
// unacked and are retried.
func (p *Pipeline) Run(ctx context.Context, assetID string) error {
	asset, err := p.store.GetVideo(ctx, assetID)
	if errors.Is(err, video.ErrNotFound) {
		p.logger.Debug().Str("asset_id", assetID).Msg("asset deleted before processing")
		return nil
	}
	if err != nil {
		return err
	}

	if err := p.store.SetState(ctx, assetID, video.StateProcessing); err != nil {
		if errors.Is(err, video.ErrNotFound) {
			return nil
		}
		return err
	}

	if runErr := p.process(ctx, asset); runErr != nil {
		if errors.Is(runErr, video.ErrNotFound) {
			// Record deleted mid-run; nothing left to mark.
			p.logger.Debug().Str("asset_id", assetID).Msg("asset deleted during processing")
			return nil
		}
		p.logger.Error().Err(runErr).Str("asset_id", assetID).Msg("processing failed")
		if err := p.store.SetState(ctx, assetID, video.StateFailed); err != nil {
			if errors.Is(err, video.ErrNotFound) {
				return nil
			}
			return err
		}
		return nil
	}

	if err := p.store.SetOutputDir(ctx, assetID, p.layout.OutputDirRel(assetID)); err != nil {
		if errors.Is(err, video.ErrNotFound) {
			return nil
		}
		return err
	}
	if err := p.store.SetState(ctx, assetID, video.StateReady); err != nil {
		if errors.Is(err, video.ErrNotFound) {
			return nil
		}
		return err
	}

	p.listings.Delete(ctx, cache.ListingKey)
	p.logger.Info().Str("asset_id", assetID).Msg("processing finished")
	return nil
}

func (p *Pipeline) process(ctx context.Context, asset video.Asset) error {
	source, err := p.layout.Abs(asset.SourcePath)
	if err != nil {
		return err
	}

	if err := p.probeDuration(ctx, asset.ID, source); err != nil {
		return err
	}
	if asset.ThumbnailPath == nil {
		if err := p.generateThumbnail(ctx, asset.ID, source); err != nil {
			return err
		}
	}
	return p.transcodeTiers(ctx, asset.ID, source)
}

// probeDuration treats a probe failure as missing metadata, not a fatal
// error. A missing ffprobe binary is fatal: nothing later can work either.
func (p *Pipeline) probeDuration(ctx context.Context, assetID, source string) error {
	stepCtx, cancel := context.WithTimeout(ctx, p.stepTimeout)
	defer cancel()

	seconds, err := p.tools.ProbeDuration(stepCtx, source)
	if err != nil {
		var toolErr *video.ToolError
		if errors.As(err, &toolErr) && toolErr.Missing {
			return err
		}
		p.logger.Warn().Err(err).Str("asset_id", assetID).Msg("duration probe failed")
		return nil
	}
	return p.store.SetDuration(ctx, assetID, seconds)
}

// generateThumbnail is best effort: a short source with no frame at the
// capture offset leaves the asset without a thumbnail.
func (p *Pipeline) generateThumbnail(ctx context.Context, assetID, source string) error {
	rel := p.layout.ThumbnailRel(assetID)
	full, err := p.layout.Abs(rel)
	if err != nil {
		return err
	}

	stepCtx, cancel := context.WithTimeout(ctx, p.stepTimeout)
	defer cancel()

	if err := p.tools.ExtractThumbnail(stepCtx, source, full); err != nil {
		p.logger.Warn().Err(err).Str("asset_id", assetID).Msg("thumbnail generation failed")
		return nil
	}
	return p.store.SetThumbnail(ctx, assetID, rel)
}

// transcodeTiers runs the ladder in fixed order; the first failing tier
// aborts the rest. Files from completed tiers are left on disk.
func (p *Pipeline) transcodeTiers(ctx context.Context, assetID, source string) error {
	outputDir, err := p.layout.Abs(p.layout.OutputDirRel(assetID))
	if err != nil {
		return err
	}

	for _, tier := range video.Tiers() {
		if err := p.transcodeTier(ctx, source, outputDir, tier); err != nil {
			return err
		}
		rendition := video.Rendition{
			VideoID:      assetID,
			Tier:         tier,
			ManifestPath: p.layout.ManifestRel(assetID, tier),
			BitrateKbps:  tier.Profile().BitrateKbps,
		}
		if err := p.store.UpsertRendition(ctx, rendition); err != nil {
			return err
		}
		p.logger.Info().Str("asset_id", assetID).Str("tier", string(tier)).Msg("tier transcoded")
	}
	return nil
}

func (p *Pipeline) transcodeTier(ctx context.Context, source, outputDir string, tier video.Tier) error {
	stepCtx, cancel := context.WithTimeout(ctx, p.stepTimeout)
	defer cancel()
	return p.tools.TranscodeTier(stepCtx, source, outputDir, tier)
}
