// Package config loads application settings from a .env file and environment variables.
// Environment variables always take precedence over .env file values.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Storage backends.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Config holds all application configuration.
type Config struct {
	// DBDriver selects postgres or sqlite.
	DBDriver string

	// PostgreSQL – either set DatabaseURL directly, or the individual fields.
	DatabaseURL string
	DBUser      string
	DBPass      string
	DBHost      string
	DBPort      string
	DBName      string
	DBSSLMode   string

	// SQLite database file.
	SQLitePath string

	// Session cookie signing secret (required).
	SessionSecret string
	SessionTTL    time.Duration
	BcryptCost    int

	// File storage
	Storage           string
	UploadDir         string
	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3Prefix          string
	S3AccessKey       string
	S3SecretKey       string
	AllowedExtensions []string
	MaxUploadMB       int

	// Server
	Debug      bool
	Port       string
	TLSDomains []string
}

// Load reads configuration from a .env file (if present) and then from
// environment variables. Environment variables always win.
func Load() *Config {
	cfg := fromViper(newViper())
	if err := cfg.validate(); err != nil {
		log.Fatal(err)
	}
	return cfg
}

func fromViper(v *viper.Viper) *Config {
	// Defaults
	v.SetDefault("DB_DRIVER", DriverPostgres)
	v.SetDefault("DB_USER", "library")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "library")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("SQLITE_PATH", "library.db")
	v.SetDefault("SESSION_TTL", "12h")
	v.SetDefault("BCRYPT_COST", bcrypt.DefaultCost)
	v.SetDefault("STORAGE", StorageLocal)
	v.SetDefault("UPLOAD_DIR", "uploads")
	v.SetDefault("ALLOWED_EXTENSIONS", "pdf")
	v.SetDefault("MAX_UPLOAD_MB", 50)
	v.SetDefault("PORT", ":9000")
	v.SetDefault("DEBUG", false)

	return &Config{
		DBDriver:          strings.ToLower(strings.TrimSpace(v.GetString("DB_DRIVER"))),
		DatabaseURL:       v.GetString("DATABASE_URL"),
		DBUser:            v.GetString("DB_USER"),
		DBPass:            v.GetString("DB_PASS"),
		DBHost:            v.GetString("DB_HOST"),
		DBPort:            v.GetString("DB_PORT"),
		DBName:            v.GetString("DB_NAME"),
		DBSSLMode:         v.GetString("DB_SSLMODE"),
		SQLitePath:        v.GetString("SQLITE_PATH"),
		SessionSecret:     v.GetString("SESSION_SECRET"),
		SessionTTL:        v.GetDuration("SESSION_TTL"),
		BcryptCost:        v.GetInt("BCRYPT_COST"),
		Storage:           strings.ToLower(strings.TrimSpace(v.GetString("STORAGE"))),
		UploadDir:         v.GetString("UPLOAD_DIR"),
		S3Bucket:          v.GetString("S3_BUCKET"),
		S3Region:          v.GetString("S3_REGION"),
		S3Endpoint:        v.GetString("S3_ENDPOINT"),
		S3Prefix:          v.GetString("S3_PREFIX"),
		S3AccessKey:       v.GetString("S3_ACCESS_KEY_ID"),
		S3SecretKey:       v.GetString("S3_SECRET_ACCESS_KEY"),
		AllowedExtensions: splitTrimmed(strings.ToLower(v.GetString("ALLOWED_EXTENSIONS"))),
		MaxUploadMB:       v.GetInt("MAX_UPLOAD_MB"),
		Debug:             v.GetBool("DEBUG"),
		Port:              v.GetString("PORT"),
		TLSDomains:        splitTrimmed(v.GetString("TLS_DOMAINS")),
	}
}

// PostgresDSN returns the full PostgreSQL connection string.
// DATABASE_URL takes precedence over individual fields.
func (c *Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser,
		c.DBPass,
		c.DBHost,
		c.DBPort,
		c.DBName,
		c.DBSSLMode,
	)
}

// SessionKey returns the session signing key as a byte slice.
func (c *Config) SessionKey() []byte {
	return []byte(c.SessionSecret)
}

// BodyLimit returns the upload size limit in the form echo's BodyLimit expects.
func (c *Config) BodyLimit() string {
	return fmt.Sprintf("%dM", c.MaxUploadMB)
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" && c.DBPass == "" {
			return errors.New("config: DATABASE_URL or DB_PASS must be set")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("config: SQLITE_PATH must be set")
		}
	default:
		return fmt.Errorf("config: unknown DB_DRIVER %q", c.DBDriver)
	}

	if c.SessionSecret == "" {
		return errors.New("config: SESSION_SECRET must be set")
	}
	if len(c.SessionSecret) < 32 && !c.Debug {
		return errors.New("config: SESSION_SECRET must be at least 32 bytes")
	}
	if c.SessionTTL <= 0 {
		return errors.New("config: SESSION_TTL must be positive")
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("config: BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	switch c.Storage {
	case StorageLocal:
		if c.UploadDir == "" {
			return errors.New("config: UPLOAD_DIR must be set")
		}
	case StorageS3:
		if c.S3Bucket == "" {
			return errors.New("config: S3_BUCKET must be set when STORAGE=s3")
		}
	default:
		return fmt.Errorf("config: unknown STORAGE %q", c.Storage)
	}

	if len(c.AllowedExtensions) == 0 {
		return errors.New("config: ALLOWED_EXTENSIONS must list at least one extension")
	}
	if c.MaxUploadMB <= 0 {
		return errors.New("config: MAX_UPLOAD_MB must be positive")
	}
	return nil
}

func newViper() *viper.Viper {
	// Silently load .env – OK if the file doesn't exist (production uses real env vars).
	if err := godotenv.Load(); err != nil {
		log.Println("config: no .env file found, using environment variables only")
	}

	v := viper.New()
	v.AutomaticEnv()
	return v
}

func splitTrimmed(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, strings.TrimPrefix(t, "."))
		}
	}
	return out
}
