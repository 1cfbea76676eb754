package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName     string
	HTTPPort        string
	PostgresDSN     string
	RedisAddr       string
	AnthropicAPIKey string
	FeedURLs        []string

	MaxActiveArticles int
	CandidateCap      int
	IngestLookback    time.Duration
	DedupLookbackDays int

	EnableScheduleJob bool
	EnableIntakeJob   bool
	EnableOutboxRelay bool
}

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "herald"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	var feeds []string
	for _, value := range strings.Split(os.Getenv("FEED_URLS"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			feeds = append(feeds, value)
		}
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	return Config{
		ServiceName:     service,
		HTTPPort:        port,
		PostgresDSN:     os.Getenv("POSTGRES_DSN"),
		RedisAddr:       redisAddr,
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		FeedURLs:        feeds,

		MaxActiveArticles: envInt("MAX_ACTIVE_ARTICLES", 5),
		CandidateCap:      envInt("CANDIDATE_CAP", 20),
		IngestLookback:    time.Duration(envInt("INGEST_LOOKBACK_HOURS", 24)) * time.Hour,
		DedupLookbackDays: envInt("DEDUP_LOOKBACK_DAYS", 30),

		EnableScheduleJob: envBool("ENABLE_SCHEDULE_JOB", true),
		EnableIntakeJob:   envBool("ENABLE_INTAKE_JOB", true),
		EnableOutboxRelay: envBool("ENABLE_OUTBOX_RELAY", true),
	}, nil
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
