package main

import (
	"mime"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	"videoflix/internal/application/catalog"
	"videoflix/internal/cache"
	"videoflix/internal/config"
	"videoflix/internal/infrastructure/filesystem"
	"videoflix/internal/infrastructure/sqlite"
	"videoflix/internal/log"
	"videoflix/internal/queue"
	httptransport "videoflix/internal/transport/http"
)

func main() {
	cfg := config.Load()
	log.Configure(cfg.LogLevel, "videoflix-server")
	logger := log.WithComponent("server")

	_ = mime.AddExtensionType(".m3u8", "application/vnd.apple.mpegurl")
	_ = mime.AddExtensionType(".ts", "video/mp2t")

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

	service := catalog.NewService(store, layout, jobs, listings,
		log.WithComponent("catalog"), time.Duration(cfg.CacheTTLSeconds)*time.Second)

	if len(cfg.APITokens) == 0 {
		logger.Warn().Msg("API_TOKENS is empty, all requests will be rejected")
	}
	verifier := httptransport.NewStaticTokens(cfg.APITokens)
	handler := httptransport.NewHandler(service, log.WithComponent("http"))
	router := httptransport.NewRouter(handler, verifier, cfg.MediaRoot)

	c := cors.New(cors.Options{
		AllowOriginFunc:  func(origin string) bool { return true },
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Range"},
		AllowCredentials: true,
	})

	logger.Info().Str("addr", cfg.ServerAddr).Msg("server started")
	if err := http.ListenAndServe(cfg.ServerAddr, c.Handler(router)); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}
