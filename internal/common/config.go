package common

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	OCR      OCRConfig      `yaml:"ocr"`
	Batch    BatchConfig    `yaml:"batch"`
	Cache    CacheConfig    `yaml:"cache"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string        `yaml:"dsn"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr         string `yaml:"grpc_addr"`
	EnableReflection bool   `yaml:"enable_reflection"`
}

// OCRConfig holds OCR engine and image acquisition settings
type OCRConfig struct {
	Tesseract     string        `yaml:"tesseract"`
	Lang          string        `yaml:"lang"`
	TessdataDir   string        `yaml:"tessdata_dir"`
	PSM           int           `yaml:"psm"`
	OEM           int           `yaml:"oem"`
	Workers       int           `yaml:"workers"`
	QueueSize     int           `yaml:"queue_size"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxImageBytes int64         `yaml:"max_image_bytes"`
	FetchTimeout  time.Duration `yaml:"fetch_timeout"`
}

// BatchConfig holds scheduler limits and retention
type BatchConfig struct {
	MaxBatchSize    int           `yaml:"max_batch_size"`
	ParallelWorkers int           `yaml:"parallel_workers"`
	Retention       time.Duration `yaml:"retention"`
	CleanupSchedule string        `yaml:"cleanup_schedule"`
	EvictOnComplete bool          `yaml:"evict_on_complete"`
}

// CacheConfig holds the OCR result cache settings
type CacheConfig struct {
	Backend  string        `yaml:"backend"` // memory | redis | none
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
	Prefix   string        `yaml:"prefix"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:             "file:invoice-ocr.db?_pragma=foreign_keys(1)",
			MaxConns:        20,
			MinConns:        2,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Server: ServerConfig{
			GRPCAddr: ":8080",
		},
		OCR: OCRConfig{
			Tesseract:     "tesseract",
			Lang:          "chi_sim+eng",
			PSM:           6,
			Workers:       4,
			QueueSize:     256,
			Timeout:       30 * time.Second,
			MaxImageBytes: 50 << 20,
			FetchTimeout:  30 * time.Second,
		},
		Batch: BatchConfig{
			MaxBatchSize:    50,
			ParallelWorkers: 4,
			Retention:       24 * time.Hour,
			CleanupSchedule: "@every 10m",
		},
		Cache: CacheConfig{
			Backend: "memory",
			TTL:     24 * time.Hour,
			Prefix:  "invoice_ocr:",
		},
	}
}

// LoadConfig builds configuration from defaults, an optional YAML file named by
// INVOICE_OCR_CONFIG, and environment variables (a .env file in the working
// directory is loaded first). Environment always wins.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := DefaultConfig()
	if path := os.Getenv("INVOICE_OCR_CONFIG"); path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", c.Database.MaxConnLifetime)
	c.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", c.Database.MaxConnIdleTime)
	c.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Database.DialTimeout)
	c.Database.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", c.Database.StatementTimeout)

	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)
	c.Server.EnableReflection = getEnvAsBool("GRPC_REFLECTION", c.Server.EnableReflection)

	c.OCR.Tesseract = getEnv("TESSERACT_BIN", c.OCR.Tesseract)
	c.OCR.Lang = getEnv("TESSERACT_LANG", c.OCR.Lang)
	c.OCR.TessdataDir = getEnv("TESSDATA_PREFIX", c.OCR.TessdataDir)
	c.OCR.PSM = getEnvAsInt("TESSERACT_PSM", c.OCR.PSM)
	c.OCR.OEM = getEnvAsInt("TESSERACT_OEM", c.OCR.OEM)
	c.OCR.Workers = getEnvAsInt("OCR_WORKERS", c.OCR.Workers)
	c.OCR.QueueSize = getEnvAsInt("OCR_QUEUE_SIZE", c.OCR.QueueSize)
	c.OCR.Timeout = getEnvAsDuration("OCR_TIMEOUT", c.OCR.Timeout)
	c.OCR.MaxImageBytes = getEnvAsInt64("MAX_IMAGE_BYTES", c.OCR.MaxImageBytes)
	c.OCR.FetchTimeout = getEnvAsDuration("FETCH_TIMEOUT", c.OCR.FetchTimeout)

	c.Batch.MaxBatchSize = getEnvAsInt("MAX_BATCH_SIZE", c.Batch.MaxBatchSize)
	c.Batch.ParallelWorkers = getEnvAsInt("PARALLEL_WORKERS", c.Batch.ParallelWorkers)
	c.Batch.Retention = getEnvAsDuration("BATCH_RETENTION", c.Batch.Retention)
	c.Batch.CleanupSchedule = getEnv("CLEANUP_SCHEDULE", c.Batch.CleanupSchedule)
	c.Batch.EvictOnComplete = getEnvAsBool("BATCH_EVICT_ON_COMPLETE", c.Batch.EvictOnComplete)

	c.Cache.Backend = strings.ToLower(getEnv("CACHE_BACKEND", c.Cache.Backend))
	c.Cache.RedisURL = getEnv("REDIS_URL", c.Cache.RedisURL)
	c.Cache.TTL = getEnvAsDuration("CACHE_TTL", c.Cache.TTL)
	c.Cache.Prefix = getEnv("CACHE_PREFIX", c.Cache.Prefix)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError(CodeConfiguration, "DB_URL is required", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError(CodeConfiguration, "GRPC_ADDR is required", ErrInvalidInput)
	}
	if c.OCR.Tesseract == "" {
		return NewAppError(CodeConfiguration, "TESSERACT_BIN is required", ErrInvalidInput)
	}
	if c.OCR.Workers <= 0 {
		return NewAppError(CodeConfiguration, "OCR_WORKERS must be positive", ErrInvalidInput)
	}
	if c.Batch.MaxBatchSize <= 0 {
		return NewAppError(CodeConfiguration, "MAX_BATCH_SIZE must be positive", ErrInvalidInput)
	}
	if c.Batch.ParallelWorkers <= 0 {
		return NewAppError(CodeConfiguration, "PARALLEL_WORKERS must be positive", ErrInvalidInput)
	}
	switch c.Cache.Backend {
	case "memory", "none", "":
	case "redis":
		if c.Cache.RedisURL == "" {
			return NewAppError(CodeConfiguration, "REDIS_URL is required for the redis cache backend", ErrInvalidInput)
		}
	default:
		return NewAppError(CodeConfiguration, fmt.Sprintf("unknown CACHE_BACKEND %q", c.Cache.Backend), ErrInvalidInput)
	}
	return nil
}
