package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads .env files into the environment. A missing file is not an
// error worth failing on; callers may ignore the result.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// GetEnv returns the value of key, or fallback if unset or empty
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of key, or fallback if unset or invalid
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvBool returns the boolean value of key, or fallback if unset or invalid
func GetEnvBool(key string, fallback bool) bool {
	if s := os.Getenv(key); s != "" {
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return fallback
}

// GetEnvDuration accepts Go durations ("90s") or plain seconds ("90")
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

// Config is the process configuration shared by both binaries
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ScratchDir  string
	FFmpegPath  string
	FFprobePath string

	StorageBackend string // s3 or filesystem
	StorageDir     string
	S3Endpoint     string
	S3Region       string
	S3AccessKey    string
	S3SecretKey    string
	S3PathStyle    bool
	PublicBaseURL  string
	CacheControl   string

	MetadataDriver string // postgres, sqlite3 or memory
	MetadataDSN    string

	DBOSDatabaseURL string
	DBOSQueueName   string
	DBOSConcurrency int
	DBOSAppName     string
	DBOSAppVersion  string

	SQSQueueURL   string
	SQSEndpoint   string
	RedisAddr     string
	RedisStream   string
	RedisGroup    string
	RedisConsumer string

	SentryDSN         string
	SentryEnvironment string

	ThumbnailTimeout   time.Duration
	PreviewTimeout     time.Duration
	SpriteSheetTimeout time.Duration
}

// FromEnv builds a Config from environment variables with defaults
func FromEnv() Config {
	host, _ := os.Hostname()

	return Config{
		HTTPAddr:  GetEnv("WORKER_HTTP_ADDR", ":8081"),
		LogLevel:  GetEnv("LOG_LEVEL", "info"),
		LogFormat: GetEnv("LOG_FORMAT", "json"),

		ScratchDir:  GetEnv("SCRATCH_DIR", ""),
		FFmpegPath:  GetEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath: GetEnv("FFPROBE_PATH", "ffprobe"),

		StorageBackend: GetEnv("STORAGE_BACKEND", "filesystem"),
		StorageDir:     GetEnv("STORAGE_DIR", "./data/blobs"),
		S3Endpoint:     GetEnv("S3_ENDPOINT", ""),
		S3Region:       GetEnv("S3_REGION", "us-east-1"),
		S3AccessKey:    GetEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretKey:    GetEnv("S3_SECRET_ACCESS_KEY", ""),
		S3PathStyle:    GetEnvBool("S3_USE_PATH_STYLE", false),
		PublicBaseURL:  GetEnv("PUBLIC_BASE_URL", ""),
		CacheControl:   GetEnv("CACHE_CONTROL", "public,max-age=31536000"),

		MetadataDriver: GetEnv("METADATA_DRIVER", "sqlite3"),
		MetadataDSN:    GetEnv("METADATA_DSN", "./data/pipeline.db"),

		DBOSDatabaseURL: GetEnv("DBOS_SYSTEM_DATABASE_URL", ""),
		DBOSQueueName:   GetEnv("DBOS_QUEUE_NAME", "video-derivatives"),
		DBOSConcurrency: GetEnvInt("DBOS_CONCURRENCY", 0),
		DBOSAppName:     GetEnv("DBOS_APP_NAME", "video-pipeline"),
		DBOSAppVersion:  GetEnv("DBOS_APP_VERSION", ""),

		SQSQueueURL:   GetEnv("SQS_QUEUE_URL", ""),
		SQSEndpoint:   GetEnv("SQS_ENDPOINT", ""),
		RedisAddr:     GetEnv("REDIS_ADDR", ""),
		RedisStream:   GetEnv("REDIS_STREAM", "video-uploads"),
		RedisGroup:    GetEnv("REDIS_GROUP", "video-pipeline"),
		RedisConsumer: GetEnv("REDIS_CONSUMER", host),

		SentryDSN:         GetEnv("SENTRY_DSN", ""),
		SentryEnvironment: GetEnv("SENTRY_ENVIRONMENT", "development"),

		ThumbnailTimeout:   GetEnvDuration("THUMBNAIL_TIMEOUT", 300*time.Second),
		PreviewTimeout:     GetEnvDuration("PREVIEW_TIMEOUT", 300*time.Second),
		SpriteSheetTimeout: GetEnvDuration("SPRITESHEET_TIMEOUT", 540*time.Second),
	}
}
