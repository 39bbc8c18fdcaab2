package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/anime-shed/imgtool-go/pkg/models"
	"github.com/anime-shed/imgtool-go/pkg/validation"

	"github.com/joho/godotenv"
)

type Config struct {
	// HTTP front-end
	Host               string
	Port               string
	RequestTimeout     time.Duration
	MaxRequestBodySize int64

	// Pipeline defaults
	Workers        int
	DefaultFormat  models.Format
	DefaultQuality int
	OCRLanguage    string

	// Preview cache
	PreviewSize      int
	PreviewCacheSize int

	// AllowedRoots limits the directories the front-end may read and write;
	// empty allows everything
	AllowedRoots []string

	LogLevel  string
	LogFormat string
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// ResizeDefaults returns the request options applied when a caller leaves them unset
func (c *Config) ResizeDefaults() models.ResizeRequest {
	return models.NewResizeRequest("").WithFormat(c.DefaultFormat, c.DefaultQuality)
}

// LoadDotEnv reads KEY=VALUE pairs into the environment without overriding
// variables that are already set. Path defaults to IMGTOOL_ENV_FILE, then
// ".env"; a missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = getEnvOrDefault("IMGTOOL_ENV_FILE", ".env")
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Host:        getEnvOrDefault("HOST", "127.0.0.1"),
		Port:        getEnvOrDefault("PORT", "8080"),
		OCRLanguage: getEnvOrDefault("IMGTOOL_OCR_LANGUAGE", "eng"),
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:   getEnvOrDefault("LOG_FORMAT", "json"),
	}

	var err error
	if cfg.RequestTimeout, err = parseDurationOrDefault("REQUEST_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.MaxRequestBodySize, err = parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 1<<20); err != nil {
		return nil, err
	}

	ints := []struct {
		key    string
		def    int64
		target *int
	}{
		{"IMGTOOL_WORKERS", 1, &cfg.Workers},
		{"IMGTOOL_DEFAULT_QUALITY", 90, &cfg.DefaultQuality},
		{"IMGTOOL_PREVIEW_SIZE", 420, &cfg.PreviewSize},
		{"IMGTOOL_PREVIEW_CACHE", 32, &cfg.PreviewCacheSize},
	}
	for _, v := range ints {
		n, err := parseIntOrDefault(v.key, v.def)
		if err != nil {
			return nil, err
		}
		*v.target = int(n)
	}

	format, err := models.ParseFormat(getEnvOrDefault("IMGTOOL_DEFAULT_FORMAT", "jpeg"))
	if err != nil {
		return nil, fmt.Errorf("invalid IMGTOOL_DEFAULT_FORMAT: %w", err)
	}
	cfg.DefaultFormat = format
	cfg.AllowedRoots = splitPaths(os.Getenv("IMGTOOL_ALLOWED_ROOTS"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations
func (c *Config) Validate() error {
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be > 0 (got %s)", c.RequestTimeout)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.Workers < 0 {
		return fmt.Errorf("IMGTOOL_WORKERS must be >= 0 (got %d)", c.Workers)
	}
	if err := validation.ValidateQuality(c.DefaultQuality); err != nil {
		return fmt.Errorf("invalid IMGTOOL_DEFAULT_QUALITY: %w", err)
	}
	if c.PreviewSize <= 0 || c.PreviewCacheSize <= 0 {
		return fmt.Errorf("preview size and cache must be > 0 (got size=%d, cache=%d)", c.PreviewSize, c.PreviewCacheSize)
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid LOG_FORMAT: %q", c.LogFormat)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid LOG_LEVEL: %q", c.LogLevel)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	duration, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return duration, nil
}

func parseIntOrDefault(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func splitPaths(value string) []string {
	var paths []string
	for _, p := range filepath.SplitList(value) {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}
