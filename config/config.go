package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	JWTSecret     string
	DBHost        string
	DBPort        string
	DBUser        string
	DBPass        string
	DBName        string
	DBNameTest    string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	StorageDriver    string
	LocalStorageRoot string

	S3Endpoint  string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3UseSSL    bool
	BucketName  string

	RabbitMQURL      string
	RabbitMQHost     string
	RabbitMQPort     string
	RabbitMQUser     string
	RabbitMQPass     string
	RabbitMQVhost    string
	RabbitMQPrefetch int

	ChunkDataDir     string
	DefaultChunkSize int64
	MinChunkSize     int64
	MaxChunkSize     int64
	ChunkSessionTTL  time.Duration

	UploadRetryBase     time.Duration
	UploadRetryMax      time.Duration
	UploadRetryJitter   bool
	UploadRetryAttempts int

	StorageRetryMax  int
	StorageRetryBase time.Duration
	StorageRetryCap  time.Duration

	FFmpegPath        string
	TranscodeTempDir  string
	HLSSegmentSeconds int
	JobQueueLimit     int
	JobConcurrency    int
	JobRate           float64
	JobBurst          int
	JobErrorMaxLen    int
	TranscodeQuality  int

	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPass     string
	SMTPFrom     string
	NotifyEnable bool
}

var AppConfig Config

// getEnv returns the environment value or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvBool(key string, defaultValue bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if value == "" {
		return defaultValue
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return defaultValue
	}
}

func getEnvInt64(key string, defaultValue int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// InitConfig loads configuration from the environment.
func InitConfig() {
	rabbitHost := getEnv("RABBITMQ_HOST", "localhost")
	rabbitPort := getEnv("RABBITMQ_PORT", "5672")
	rabbitUser := getEnv("RABBITMQ_USER", "guest")
	rabbitPass := getEnv("RABBITMQ_PASSWORD", "guest")
	rabbitVhost := getEnv("RABBITMQ_VHOST", "/")
	rabbitURL := getEnv("RABBITMQ_URL", "")
	if rabbitURL == "" {
		rabbitURL = fmt.Sprintf(
			"amqp://%s:%s@%s:%s/%s",
			url.PathEscape(rabbitUser),
			url.PathEscape(rabbitPass),
			rabbitHost,
			rabbitPort,
			url.PathEscape(rabbitVhost),
		)
	}
	AppConfig = Config{
		JWTSecret:     getEnv("JWT_SECRET", "l=ax+b"),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "3306"),
		DBUser:        getEnv("DB_USER", "root"),
		DBPass:        getEnv("DB_PASS", "root"),
		DBName:        getEnv("DB_NAME", "MediaVault"),
		DBNameTest:    getEnv("DB_NAME_TEST", "MediaVault_Test"),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       0,

		StorageDriver:    getEnv("STORAGE_DRIVER", "local"),
		LocalStorageRoot: getEnv("LOCAL_STORAGE_ROOT", "./data/blobs"),

		S3Endpoint:  getEnv("S3_ENDPOINT", "localhost:9000"),
		S3Region:    getEnv("S3_REGION", ""),
		S3AccessKey: getEnv("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey: getEnv("S3_SECRET_KEY", "minioadmin"),
		S3UseSSL:    getEnvBool("S3_USE_SSL", false),
		BucketName:  getEnv("BUCKET_NAME", "mediavault"),

		RabbitMQURL:      rabbitURL,
		RabbitMQHost:     rabbitHost,
		RabbitMQPort:     rabbitPort,
		RabbitMQUser:     rabbitUser,
		RabbitMQPass:     rabbitPass,
		RabbitMQVhost:    rabbitVhost,
		RabbitMQPrefetch: getEnvInt("RABBITMQ_PREFETCH", 8),

		ChunkDataDir:     getEnv("CHUNK_DATA_DIR", "./data/chunks"),
		DefaultChunkSize: getEnvInt64("DEFAULT_CHUNK_SIZE", 8*1024*1024),
		MinChunkSize:     getEnvInt64("MIN_CHUNK_SIZE", 1*1024*1024),
		MaxChunkSize:     getEnvInt64("MAX_CHUNK_SIZE", 64*1024*1024),
		ChunkSessionTTL:  getEnvDuration("CHUNK_SESSION_TTL", 24*time.Hour),

		UploadRetryBase:     getEnvDuration("UPLOAD_RETRY_BASE", 2*time.Second),
		UploadRetryMax:      getEnvDuration("UPLOAD_RETRY_MAX", time.Minute),
		UploadRetryJitter:   getEnvBool("UPLOAD_RETRY_JITTER", true),
		UploadRetryAttempts: getEnvInt("UPLOAD_RETRY_ATTEMPTS", 5),

		StorageRetryMax:  getEnvInt("STORAGE_RETRY_MAX", 3),
		StorageRetryBase: getEnvDuration("STORAGE_RETRY_BASE", 200*time.Millisecond),
		StorageRetryCap:  getEnvDuration("STORAGE_RETRY_CAP", 5*time.Second),

		FFmpegPath:        getEnv("FFMPEG_PATH", "ffmpeg"),
		TranscodeTempDir:  getEnv("TRANSCODE_TEMP_DIR", ""),
		HLSSegmentSeconds: getEnvInt("HLS_SEGMENT_SECONDS", 4),
		JobQueueLimit:     getEnvInt("JOB_QUEUE_LIMIT", 10),
		JobConcurrency:    getEnvInt("JOB_CONCURRENCY", 2),
		JobRate:           getEnvFloat("JOB_RATE", 1),
		JobBurst:          getEnvInt("JOB_BURST", 2),
		JobErrorMaxLen:    getEnvInt("JOB_ERROR_MAX_LEN", 500),
		TranscodeQuality:  getEnvInt("TRANSCODE_QUALITY", 75),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "25"),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPass:     getEnv("SMTP_PASS", ""),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@mediavault.local"),
		NotifyEnable: getEnvBool("NOTIFY_ENABLE", false),
	}
}
