package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config holds runtime settings shared by the server and the worker.
type Config struct {
	ServerAddr        string
	MediaRoot         string
	DatabasePath      string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	QueueName         string
	APITokens         []string
	HLSSegmentSeconds int
	StepTimeoutMin    int
	CacheTTLSeconds   int
	LogLevel          string
}

// Load reads environment variables and returns normalized runtime config.
func Load() Config {
	mediaRoot := getEnv("MEDIA_ROOT", "./media")
	return Config{
		ServerAddr:        getEnv("SERVER_ADDR", ":8080"),
		MediaRoot:         mediaRoot,
		DatabasePath:      getEnv("DATABASE_PATH", filepath.Join(mediaRoot, "videoflix.db")),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		QueueName:         getEnv("QUEUE_NAME", "videoflix:transcode"),
		APITokens:         getEnvList("API_TOKENS"),
		HLSSegmentSeconds: getEnvInt("HLS_SEGMENT_SECONDS", 10),
		StepTimeoutMin:    getEnvInt("STEP_TIMEOUT_MINUTES", 30),
		CacheTTLSeconds:   getEnvInt("CACHE_TTL_SECONDS", 300),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	var out int
	_, err := fmt.Sscanf(value, "%d", &out)
	if err != nil || out <= 0 {
		return fallback
	}
	return out
}

func getEnvList(key string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
