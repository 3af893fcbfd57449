package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"videoflix/internal/application/pipeline"
	"videoflix/internal/cache"
	"videoflix/internal/config"
	"videoflix/internal/infrastructure/ffmpeg"
	"videoflix/internal/infrastructure/filesystem"
	"videoflix/internal/infrastructure/sqlite"
	"videoflix/internal/log"
	"videoflix/internal/queue"
)

const dequeueBlock = 5 * time.Second

func main() {
	cfg := config.Load()
	log.Configure(cfg.LogLevel, "videoflix-worker")
	logger := log.WithComponent("worker")

	layout := filesystem.NewLayout(cfg.MediaRoot)
	if err := layout.EnsureDirs(); err != nil {
		logger.Fatal().Err(err).Msg("storage init failed")
	}

	store, err := sqlite.NewStore(cfg.DatabasePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("database init failed")
	}
	defer store.Close()

	listings, err := cache.NewRedis(cache.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, log.WithComponent("cache"))
	if err != nil {
		logger.Fatal().Err(err).Msg("redis init failed")
	}
	defer listings.Close()

	queueClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer queueClient.Close()
	jobs := queue.New(queueClient, cfg.QueueName, log.WithComponent("queue"))

	tools := ffmpeg.NewTranscoder(cfg.HLSSegmentSeconds)
	runner := pipeline.New(store, tools, layout, listings,
		log.WithComponent("pipeline"), time.Duration(cfg.StepTimeoutMin)*time.Minute)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Jobs a previous worker took but never acknowledged go back to pending.
	if n, err := jobs.Recover(ctx); err != nil {
		logger.Error().Err(err).Msg("in-flight recovery failed")
	} else if n > 0 {
		logger.Info().Int("jobs", n).Msg("recovered in-flight jobs")
	}

	logger.Info().Str("queue", cfg.QueueName).Msg("worker started")
	for {
		job, receipt, err := jobs.Dequeue(ctx, dequeueBlock)
		if errors.Is(err, queue.ErrEmpty) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			logger.Error().Err(err).Msg("dequeue failed")
			time.Sleep(2 * time.Second)
			continue
		}

		// Run reports an error only when it could not record a terminal
		// state. Leaving the job unacknowledged makes it redeliverable.
		if err := runner.Run(ctx, job.AssetID); err != nil {
			logger.Error().Err(err).Str("asset_id", job.AssetID).Msg("pipeline run failed")
			continue
		}
		if err := jobs.Ack(ctx, receipt); err != nil {
			logger.Error().Err(err).Str("asset_id", job.AssetID).Msg("ack failed")
		}
	}

	logger.Info().Msg("worker stopped")
}
