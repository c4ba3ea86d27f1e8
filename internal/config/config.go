package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr       string
	CORSOrigin string
	AuthToken  string

	SessionTTL     time.Duration
	UploadPolicy   string
	MaxUploadBytes int64

	// Draft persistence
	RedisURL      string
	DraftPath     string
	DraftTTL      time.Duration
	DraftDebounce time.Duration

	// Forum upload endpoint
	ForumBaseURL string
	ForumToken   string

	// MinIO object storage - used instead of the forum endpoint when
	// an endpoint is configured
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioPublicURL string
	MinioUseSSL    bool
}

func Load() Config {
	return Config{
		Addr:           getenv("COMPOSER_ADDR", ":8788"),
		CORSOrigin:     getenv("COMPOSER_CORS_ORIGIN", "*"),
		AuthToken:      getenv("COMPOSER_AUTH_TOKEN", ""),
		SessionTTL:     time.Duration(getenvInt("COMPOSER_SESSION_TTL_SECONDS", 1800)) * time.Second,
		UploadPolicy:   getenv("COMPOSER_UPLOAD_POLICY", "immediate"),
		MaxUploadBytes: int64(getenvInt("COMPOSER_MAX_UPLOAD_BYTES", 8<<20)),
		// Redis - preferred draft backend, SQLite file fallback
		RedisURL:      getenv("REDIS_URL", ""),
		DraftPath:     getenv("COMPOSER_DRAFT_PATH", "./data/drafts.db"),
		DraftTTL:      time.Duration(getenvInt("COMPOSER_DRAFT_TTL_HOURS", 168)) * time.Hour,
		DraftDebounce: time.Duration(getenvInt("COMPOSER_DRAFT_DEBOUNCE_MS", 1200)) * time.Millisecond,
		ForumBaseURL:  getenv("FORUM_BASE_URL", "http://localhost:8080"),
		ForumToken:    getenv("FORUM_API_TOKEN", ""),
		// MinIO - empty endpoint by default, forum endpoint used if
		// not configured
		MinioEndpoint:  getenv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getenv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getenv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getenv("MINIO_BUCKET", "forum-media"),
		MinioPublicURL: getenv("MINIO_PUBLIC_URL", ""),
		MinioUseSSL:    getenvBool("MINIO_USE_SSL", false),
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
