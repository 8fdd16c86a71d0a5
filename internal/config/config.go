// Package config loads custodycore settings from the process environment,
// optionally seeded from a .env file.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	Logger  LoggerConfig
	Storage StorageConfig
	Blob    BlobConfig
	Custody CustodyConfig
	Observe ObserveConfig
}

type ServerConfig struct {
	AppEnv         string
	HTTPAddr       string
	AllowedOrigins []string
	PublicBaseURL  string
}

type LoggerConfig struct {
	Level             string
	Encoding          string
	DisableCaller     bool
	DisableStacktrace bool
}

// StorageConfig selects and configures the document backend.
type StorageConfig struct {
	Driver        string
	SQLitePath    string
	PostgresDSN   string
	MySQLDSN      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string
	BlobKey       string
}

// BlobConfig selects the blob driver used for backups and the blob document backend.
type BlobConfig struct {
	Driver      string
	FSRoot      string
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool
}

type CustodyConfig struct {
	PhoneRegion       string
	LowStockThreshold int
	MovementLimit     int
	LinkTTL           time.Duration
	SignLockTTL       time.Duration
	SeedSampleData    bool
}

// ObserveConfig picks the metrics and trace exporters.
type ObserveConfig struct {
	Metrics   string // prometheus | expvar
	Tracer    string // otel | json | none
	TraceFile string // json tracer sink; empty writes to stderr
}

// Load reads the optional .env files (defaults to ".env") and then the
// environment. A missing file is not an error.
func Load(files ...string) *Config {
	_ = godotenv.Load(files...)
	return &Config{
		Server: ServerConfig{
			AppEnv:         getEnv("CUSTODY_APP_ENV", "dev"),
			HTTPAddr:       getEnv("CUSTODY_HTTP_ADDR", ":8080"),
			AllowedOrigins: getEnvSlice("CUSTODY_ALLOWED_ORIGINS", []string{"*"}),
			PublicBaseURL:  getEnv("CUSTODY_PUBLIC_BASE_URL", "http://localhost:8080"),
		},
		Logger: LoggerConfig{
			Level:             getEnv("CUSTODY_LOG_LEVEL", "info"),
			Encoding:          getEnv("CUSTODY_LOG_ENCODING", "console"),
			DisableCaller:     getEnvBool("CUSTODY_LOG_DISABLE_CALLER", false),
			DisableStacktrace: getEnvBool("CUSTODY_LOG_DISABLE_STACKTRACE", true),
		},
		Storage: StorageConfig{
			Driver:        getEnv("CUSTODY_STORAGE_DRIVER", "sqlite"),
			SQLitePath:    getEnv("CUSTODY_SQLITE_PATH", "./custody.db"),
			PostgresDSN:   getEnv("CUSTODY_POSTGRES_DSN", ""),
			MySQLDSN:      getEnv("CUSTODY_MYSQL_DSN", ""),
			RedisAddr:     getEnv("CUSTODY_REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("CUSTODY_REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("CUSTODY_REDIS_DB", 0),
			RedisKey:      getEnv("CUSTODY_REDIS_KEY", "custodycore:document"),
			BlobKey:       getEnv("CUSTODY_BLOB_DOCUMENT_KEY", "state/document.json"),
		},
		Blob: BlobConfig{
			Driver:      getEnv("CUSTODY_BLOB_DRIVER", "fs"),
			FSRoot:      getEnv("CUSTODY_BLOB_FS_ROOT", "./blobdata"),
			S3Bucket:    getEnv("CUSTODY_BLOB_S3_BUCKET", ""),
			S3Region:    getEnv("CUSTODY_BLOB_S3_REGION", "us-east-1"),
			S3Endpoint:  getEnv("CUSTODY_BLOB_S3_ENDPOINT", ""),
			S3PathStyle: getEnvBool("CUSTODY_BLOB_S3_PATH_STYLE", false),
		},
		Custody: CustodyConfig{
			PhoneRegion:       getEnv("CUSTODY_PHONE_REGION", "CA"),
			LowStockThreshold: getEnvInt("CUSTODY_LOW_STOCK_THRESHOLD", 10),
			MovementLimit:     getEnvInt("CUSTODY_MOVEMENT_LIMIT", 50),
			LinkTTL:           getEnvDuration("CUSTODY_LINK_TTL", 24*time.Hour),
			SignLockTTL:       getEnvDuration("CUSTODY_SIGN_LOCK_TTL", 10*time.Second),
			SeedSampleData:    getEnvBool("CUSTODY_SEED_SAMPLE_DATA", false),
		},
		Observe: ObserveConfig{
			Metrics:   strings.ToLower(getEnv("CUSTODY_METRICS_BACKEND", "prometheus")),
			Tracer:    strings.ToLower(getEnv("CUSTODY_TRACER", "otel")),
			TraceFile: getEnv("CUSTODY_TRACE_FILE", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return fallback
}
