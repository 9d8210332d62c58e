package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	GinMode     string
	CORSOrigins []string
	StaticDir   string
	MaxFileSize int64

	// Relational store
	DatabaseURL string

	// Audit trail (MongoDB). Empty MongoURI disables auditing.
	MongoURI     string
	DBName       string
	AuditEnabled bool

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Auth
	AccessSecret       string
	AccessTokenTTL     time.Duration
	BcryptCost         int
	RateLimitReqs      int
	RateLimitWindow    int
	LoginRateLimitReqs int

	// AI provider
	AIProvider   string // "gemini" (default) or "openai"
	GeminiAPIKey string
	GeminiModel  string
	AITier       string
	OpenAIAPIKey string
	OpenAIModel  string
	AIMaxRetries int
	AITimeout    time.Duration

	// OCR
	OCREngine     string // "tesseract" (default) or "gemini"
	OCRLanguage   string
	TesseractPath string

	// Object store
	StorageBackend     string // "s3" (default) or "local"
	S3Bucket           string
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	S3Endpoint         string
	FileStorageDir     string
	StorageTimeout     time.Duration

	// Blob lifecycle
	BlobCleanupPolicy   string // "deferred" (default), "keep", "immediate"
	BlobCleanupDelay    time.Duration
	OrphanSweepInterval time.Duration
	OrphanGracePeriod   time.Duration

	// Rendering
	RenderCacheSize    int
	RenderCacheTTL     time.Duration
	FlattenNestedLists bool

	// Telemetry
	OTLPEndpoint   string
	OTelSampleRate float64
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080")),
		StaticDir:   getEnv("STATIC_DIR", ""),
		MaxFileSize: getEnvInt64("MAX_FILE_SIZE", 52428800), // 50MB

		DatabaseURL: getEnv("DATABASE_URL", ""),

		MongoURI:     getEnv("MONGO_URI", ""),
		DBName:       getEnv("DB_NAME", "doc_analysis"),
		AuditEnabled: getEnvBool("AUDIT_ENABLED", true),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		AccessSecret:       getEnv("ACCESS_SECRET", ""),
		AccessTokenTTL:     time.Duration(getEnvInt("ACCESS_TOKEN_EXPIRE_MINUTES", 30)) * time.Minute,
		BcryptCost:         getEnvInt("BCRYPT_COST", 12),
		RateLimitReqs:      getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:    getEnvInt("RATE_LIMIT_WINDOW", 60),
		LoginRateLimitReqs: getEnvInt("LOGIN_RATE_LIMIT_REQUESTS", 10),

		AIProvider:   strings.ToLower(getEnv("AI_PROVIDER", "gemini")),
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		AITier:       getEnv("AI_TIER", "free"),
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		AIMaxRetries: getEnvInt("AI_MAX_RETRIES", 2),
		AITimeout:    getEnvDuration("AI_TIMEOUT", 2*time.Minute),

		OCREngine:     strings.ToLower(getEnv("OCR_ENGINE", "tesseract")),
		OCRLanguage:   getEnv("OCR_LANGUAGE", "eng"),
		TesseractPath: getEnv("TESSERACT_PATH", "tesseract"),

		StorageBackend:     strings.ToLower(getEnv("STORAGE_BACKEND", "s3")),
		S3Bucket:           getEnv("S3_BUCKET_NAME", ""),
		AWSRegion:          getEnv("AWS_REGION", ""),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		S3Endpoint:         getEnv("S3_ENDPOINT", ""),
		FileStorageDir:     getEnv("FILE_STORAGE_DIR", "./storage"),
		StorageTimeout:     getEnvDuration("STORAGE_TIMEOUT", 30*time.Second),

		BlobCleanupPolicy:   strings.ToLower(getEnv("BLOB_CLEANUP_POLICY", "deferred")),
		BlobCleanupDelay:    getEnvDuration("BLOB_CLEANUP_DELAY", 10*time.Minute),
		OrphanSweepInterval: getEnvDuration("ORPHAN_SWEEP_INTERVAL", 6*time.Hour),
		OrphanGracePeriod:   getEnvDuration("ORPHAN_GRACE_PERIOD", 24*time.Hour),

		RenderCacheSize:    getEnvInt("RENDER_CACHE_SIZE", 256),
		RenderCacheTTL:     getEnvDuration("RENDER_CACHE_TTL", 15*time.Minute),
		FlattenNestedLists: getEnvBool("FLATTEN_NESTED_LISTS", true),

		OTLPEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTelSampleRate: getEnvFloat64("OTEL_SAMPLE_RATIO", 0.1),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required fields and enumerated options.
func (c *Config) Validate() error {
	if len(c.AccessSecret) < 32 {
		return fmt.Errorf("ACCESS_SECRET is required and must be at least 32 characters - set it in .env file")
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required - set it in .env file")
	}

	switch c.AIProvider {
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when AI_PROVIDER=gemini")
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when AI_PROVIDER=openai")
		}
	default:
		return fmt.Errorf("unknown AI_PROVIDER %q", c.AIProvider)
	}

	switch c.OCREngine {
	case "tesseract":
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when OCR_ENGINE=gemini")
		}
	default:
		return fmt.Errorf("unknown OCR_ENGINE %q", c.OCREngine)
	}

	switch c.StorageBackend {
	case "s3":
		if c.S3Bucket == "" || c.AWSRegion == "" {
			return fmt.Errorf("S3_BUCKET_NAME and AWS_REGION are required when STORAGE_BACKEND=s3")
		}
	case "local":
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}

	switch c.BlobCleanupPolicy {
	case "deferred", "keep", "immediate":
	default:
		return fmt.Errorf("unknown BLOB_CLEANUP_POLICY %q", c.BlobCleanupPolicy)
	}

	return nil
}

func (c *Config) IsRelease() bool {
	return c.GinMode == "release"
}
