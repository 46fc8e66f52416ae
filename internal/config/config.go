// Package config provides unified configuration loading for docprep.
// Supports YAML files, .env files, environment variables, and programmatic overrides.
package config

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

	"github.com/spherical/docprep/internal/cache"
	"github.com/spherical/docprep/internal/domain"
	"github.com/spherical/docprep/internal/expand"
	"github.com/spherical/docprep/internal/geometry"
	"github.com/spherical/docprep/internal/observability"
	"github.com/spherical/docprep/internal/pdf"
	"github.com/spherical/docprep/internal/pipeline"
)

// Well-known processing job locations.
const (
	DefaultInputRoot     = "/opt/ml/processing/input/raw"
	DefaultOutputRoot    = "/opt/ml/processing/output/imgs-clean"
	DefaultThumbnailRoot = "/opt/ml/processing/output/thumbnails"
)

// Config holds all configuration for docprep.
type Config struct {
	Batch         BatchConfig         `yaml:"batch"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Thumbnails    ThumbnailConfig     `yaml:"thumbnails"`
	Server        ServerConfig        `yaml:"server"`
	Cache         CacheConfig         `yaml:"cache"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// BatchConfig holds directory-walk settings.
type BatchConfig struct {
	Input       string        `yaml:"input"`
	Output      string        `yaml:"output"`
	Thumbnails  string        `yaml:"thumbnails"` // empty disables thumbnails
	Workers     int           `yaml:"workers"`    // 0 = CPU count
	WorkerDelay time.Duration `yaml:"worker_delay"`
}

// PipelineConfig holds page output settings.
type PipelineConfig struct {
	PDFDPI          int      `yaml:"pdf_dpi"`
	AllowedFormats  []string `yaml:"allowed_formats"`
	PreferredFormat string   `yaml:"preferred_format"`
	// PDFImageFormat encodes rasterized PDF pages. Empty follows PreferredFormat.
	PDFImageFormat string `yaml:"pdf_image_format"`
}

// ThumbnailConfig describes the thumbnail ResizeSpec.
type ThumbnailConfig struct {
	Size           []int  `yaml:"size"`
	DefaultSquare  bool   `yaml:"default_square"`
	LetterboxColor string `yaml:"letterbox_color"` // "r,g,b"; empty stretches
	MaxSize        int    `yaml:"max_size"`
	Mode           string `yaml:"mode"` // "", stretch or letterbox
	Resample       string `yaml:"resample"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	MaxBodyBytes     int64         `yaml:"max_body_bytes"`
}

// CacheConfig holds response cache settings.
type CacheConfig struct {
	Driver     string        `yaml:"driver"` // none, memory or redis
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	RedisURL   string        `yaml:"redis_url"`
	Prefix     string        `yaml:"prefix"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	ServiceName string `yaml:"service_name"`
}

// Load reads .env, then the YAML file at path (if any), then environment overrides.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ConfigError("read .env file", err)
	}

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, domain.ConfigError("read config file", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, domain.ConfigError("parse config file", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DefaultConfig returns a configuration matching the processing job defaults.
func DefaultConfig() *Config {
	thumbs := ""
	if info, err := os.Stat(DefaultThumbnailRoot); err == nil && info.IsDir() {
		thumbs = DefaultThumbnailRoot
	}

	return &Config{
		Batch: BatchConfig{
			Input:       DefaultInputRoot,
			Output:      DefaultOutputRoot,
			Thumbnails:  thumbs,
			WorkerDelay: 500 * time.Millisecond,
		},
		Pipeline: PipelineConfig{
			PDFDPI:          pdf.DefaultDPI,
			AllowedFormats:  []string{"jpg", "jpeg", "png"},
			PreferredFormat: "png",
			PDFImageFormat:  "png",
		},
		Thumbnails: ThumbnailConfig{
			Size:          []int{224, 224},
			DefaultSquare: true,
			Resample:      "bicubic",
		},
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			ReadTimeout:      60 * time.Second,
			WriteTimeout:     5 * time.Minute,
			IdleTimeout:      120 * time.Second,
			RequestTimeout:   5 * time.Minute,
			GracefulShutdown: 10 * time.Second,
			MaxBodyBytes:     100 << 20,
		},
		Cache: CacheConfig{
			Driver:     "memory",
			TTL:        10 * time.Minute,
			MaxEntries: 128,
			Prefix:     "docprep:",
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "console",
			ServiceName: "docprep",
		},
	}
}

// Validate checks the configuration for errors. Every value that is later turned into a
// runtime object is built once here so that errors surface at startup.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return domain.ConfigError(fmt.Sprintf("invalid server port: %d", c.Server.Port), nil)
	}

	if c.Batch.Workers < 0 {
		return domain.ConfigError(fmt.Sprintf("workers must not be negative, got %d", c.Batch.Workers), nil)
	}

	if err := pdf.NewValidator().ValidateDPI(c.Pipeline.PDFDPI); err != nil {
		return err
	}

	switch c.Cache.Driver {
	case "none", "memory", "redis":
	default:
		return domain.ConfigError(fmt.Sprintf("invalid cache driver: %s", c.Cache.Driver), nil)
	}
	if c.Cache.Driver == "redis" && c.Cache.RedisURL == "" {
		return domain.ConfigError("redis cache requires redis_url", nil)
	}

	switch c.Observability.LogFormat {
	case "json", "console":
	default:
		return domain.ConfigError(fmt.Sprintf("invalid log format: %s", c.Observability.LogFormat), nil)
	}

	if _, err := c.ResizeSpec(); err != nil {
		return err
	}
	opts, err := c.PipelineOptions(os.TempDir(), "")
	if err != nil {
		return err
	}
	if _, err := pipeline.New(expand.New(nil), opts, nil); err != nil {
		return err
	}
	return nil
}

// ResizeSpec builds the thumbnail spec.
func (c *Config) ResizeSpec() (*geometry.ResizeSpec, error) {
	opts := geometry.Options{
		DefaultSquare: c.Thumbnails.DefaultSquare,
		MaxSize:       c.Thumbnails.MaxSize,
		Mode:          geometry.Mode(c.Thumbnails.Mode),
		Resample:      c.Thumbnails.Resample,
	}
	if c.Thumbnails.LetterboxColor != "" {
		rgb, err := domain.ParseRGB(c.Thumbnails.LetterboxColor)
		if err != nil {
			return nil, domain.InvalidResizeSpecError("invalid letterbox colour", err)
		}
		opts.Letterbox = &rgb
	}
	return geometry.NewResizeSpec(c.Thumbnails.Size, opts)
}

// PipelineOptions builds pipeline options writing to outRoot. Thumbnails are enabled
// when thumbRoot is set.
func (c *Config) PipelineOptions(outRoot, thumbRoot string) (pipeline.Options, error) {
	opts := pipeline.Options{
		OutputRoot:      outRoot,
		ThumbnailRoot:   thumbRoot,
		AllowedFormats:  append([]string(nil), c.Pipeline.AllowedFormats...),
		PreferredFormat: c.Pipeline.PreferredFormat,
		PDFFormat:       c.Pipeline.PDFImageFormat,
	}
	spec, err := c.ResizeSpec()
	if err != nil {
		return opts, err
	}
	opts.Thumbnails = spec
	return opts, nil
}

// LogConfig returns logger settings.
func (c *Config) LogConfig() observability.LogConfig {
	return observability.LogConfig{
		Level:       c.Observability.LogLevel,
		Format:      c.Observability.LogFormat,
		ServiceName: c.Observability.ServiceName,
	}
}

// CacheOptions returns the response cache settings, zero when caching is disabled.
func (c *Config) CacheOptions() cache.Config {
	switch c.Cache.Driver {
	case "redis":
		return cache.Config{RedisURL: c.Cache.RedisURL, Prefix: c.Cache.Prefix, TTL: c.Cache.TTL}
	case "memory":
		return cache.Config{Size: c.Cache.MaxEntries, TTL: c.Cache.TTL}
	default:
		return cache.Config{}
	}
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// applyEnvOverrides applies environment variable overrides to config. Malformed values
// are errors rather than being ignored.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("RT_THUMBNAIL_SIZE"); v != "" {
		size, err := domain.ParseSize(v)
		if err != nil {
			return envError("RT_THUMBNAIL_SIZE", err)
		}
		cfg.Thumbnails.Size = size
	}

	if v := os.Getenv("RT_PDF_DPI"); v != "" {
		dpi, err := strconv.Atoi(v)
		if err != nil {
			return envError("RT_PDF_DPI", err)
		}
		cfg.Pipeline.PDFDPI = dpi
	}

	if v := os.Getenv("RT_DEFAULT_SQUARE"); v != "" {
		square, err := parseBool(v)
		if err != nil {
			return envError("RT_DEFAULT_SQUARE", err)
		}
		cfg.Thumbnails.DefaultSquare = square
	}

	if v := os.Getenv("RT_LETTERBOX_COLOR"); v != "" {
		if _, err := domain.ParseRGB(v); err != nil {
			return envError("RT_LETTERBOX_COLOR", err)
		}
		cfg.Thumbnails.LetterboxColor = v
	}

	if v := os.Getenv("RT_MAX_SIZE"); v != "" {
		max, err := strconv.Atoi(v)
		if err != nil {
			return envError("RT_MAX_SIZE", err)
		}
		cfg.Thumbnails.MaxSize = max
	}

	if v := os.Getenv("RT_PREFERRED_IMAGE_FORMAT"); v != "" {
		cfg.Pipeline.PreferredFormat = v
	}
	if v := os.Getenv("RT_PDF_IMAGE_FORMAT"); v != "" {
		cfg.Pipeline.PDFImageFormat = v
	}

	if v := os.Getenv("RT_RESAMPLE"); v != "" {
		cfg.Thumbnails.Resample = v
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	for _, name := range []string{"SERVER_PORT", "SAGEMAKER_BIND_TO_PORT"} {
		if v := os.Getenv(name); v != "" {
			port, err := strconv.Atoi(v)
			if err != nil {
				return envError(name, err)
			}
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Driver = "redis"
		cfg.Cache.RedisURL = v
	}

	if v := os.Getenv("CACHE_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return envError("CACHE_TTL", err)
		}
		cfg.Cache.TTL = ttl
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}

	return nil
}

func envError(name string, err error) error {
	return domain.ConfigError(fmt.Sprintf("environment variable %s", name), err)
}

// parseBool accepts the spellings used by processing job environments.
func parseBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "t", "yes", "y", "1":
		return true, nil
	case "false", "f", "no", "n", "0":
		return false, nil
	default:
		return false, fmt.Errorf("%q should be 'true', 'false', or not set", v)
	}
}
