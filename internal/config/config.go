package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DatabaseConfig holds relational database connection settings.
// Driver selects the backend: "sqlite" (default, file at Path) or "postgres".
type DatabaseConfig struct {
	Driver             string
	Path               string
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// StorageConfig selects where blobs live.
type StorageConfig struct {
	// Driver is "local" (default) or "minio".
	Driver string
	// LocalRoot is the base directory for the local driver.
	LocalRoot string
	// KeyPrefix is prepended to every stored name, e.g. "uploads/1700000000000-report.pdf".
	KeyPrefix string
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// UploadConfig controls the upload handshake.
type UploadConfig struct {
	MaxBytes     int64
	SniffContent bool
}

// LogFileConfig configures the optional rotating log file.
type LogFileConfig struct {
	Enabled    bool
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string
	Format string // "json" or "console"
	File   LogFileConfig
}

// CORSConfig holds the allowed origins for browser clients.
type CORSConfig struct {
	AllowOrigins string
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost  string
	Port     string
	Timezone string
	Database DatabaseConfig
	Storage  StorageConfig
	MinIO    MinIOConfig
	Upload   UploadConfig
	Log      LogConfig
	CORS     CORSConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost:  getEnv("APP_HOST", "localhost:5000"),
		Port:     getEnv("PORT", "5000"),
		Timezone: getEnv("APP_TIMEZONE", "UTC"),
		Database: DatabaseConfig{
			Driver:             strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
			Path:               getEnv("DB_PATH", "database.sqlite"),
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		Storage: StorageConfig{
			Driver:    strings.ToLower(getEnv("STORAGE_DRIVER", "local")),
			LocalRoot: getEnv("STORAGE_LOCAL_ROOT", "."),
			KeyPrefix: getEnv("UPLOAD_DIR", "uploads"),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Upload: UploadConfig{
			MaxBytes:     getEnvInt64("UPLOAD_MAX_BYTES", 50<<20),
			SniffContent: getEnvBool("UPLOAD_SNIFF_CONTENT", false),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "json")),
			File: LogFileConfig{
				Enabled:    getEnvBool("LOG_FILE_ENABLED", false),
				Path:       getEnv("LOG_FILE_PATH", "logs/patientdocs.log"),
				MaxSizeMB:  getEnvInt("LOG_FILE_MAX_SIZE_MB", 100),
				MaxBackups: getEnvInt("LOG_FILE_MAX_BACKUPS", 7),
				MaxAgeDays: getEnvInt("LOG_FILE_MAX_AGE_DAYS", 28),
				Compress:   getEnvBool("LOG_FILE_COMPRESS", true),
			},
		},
		CORS: CORSConfig{
			AllowOrigins: getEnv("CORS_ALLOW_ORIGINS", "*"),
		},
	}
}

// Location resolves Timezone, falling back to UTC when it is unknown.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return i
		}
	}
	return def
}
