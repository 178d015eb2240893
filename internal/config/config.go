package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/lucasb-eyer/go-colorful"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/menta2k/aurea-media/pkg/cropper"
	"github.com/menta2k/aurea-media/pkg/storage"
)

// Config holds the application configuration
type Config struct {
	Cropper  CropperConfig  `json:"cropper" yaml:"cropper"`
	Resolver ResolverConfig `json:"resolver" yaml:"resolver"`
	Storage  StorageConfig  `json:"storage" yaml:"storage"`
	Vision   VisionConfig   `json:"vision" yaml:"vision"`
	Log      LogConfig      `json:"log" yaml:"log"`
}

// CropperConfig holds output settings for crops
type CropperConfig struct {
	Format   string `json:"format" yaml:"format"`
	Quality  int    `json:"quality" yaml:"quality"`
	Lossless bool   `json:"lossless" yaml:"lossless"`
	// Background is "transparent" or a #rrggbb color
	Background string `json:"background" yaml:"background"`
}

// ResolverConfig holds settings for pending asset resolution
type ResolverConfig struct {
	// MaxConcurrency bounds in-flight uploads, 0 means unbounded
	MaxConcurrency int `json:"max_concurrency" yaml:"max_concurrency"`
}

// StorageConfig selects where resolved assets are uploaded
type StorageConfig struct {
	Backend string      `json:"backend" yaml:"backend"`
	HTTP    HTTPConfig  `json:"http" yaml:"http"`
	S3      S3Config    `json:"s3" yaml:"s3"`
	Minio   MinioConfig `json:"minio" yaml:"minio"`
}

// HTTPConfig holds the portfolio API upload endpoint
type HTTPConfig struct {
	Endpoint       string `json:"endpoint" yaml:"endpoint"`
	FieldName      string `json:"field_name" yaml:"field_name"`
	Token          string `json:"token" yaml:"token"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// S3Config holds S3-compatible bucket settings
type S3Config struct {
	Bucket          string `json:"bucket" yaml:"bucket"`
	Region          string `json:"region" yaml:"region"`
	Endpoint        string `json:"endpoint" yaml:"endpoint"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
	PublicURL       string `json:"public_url" yaml:"public_url"`
	Prefix          string `json:"prefix" yaml:"prefix"`
	UsePathStyle    bool   `json:"use_path_style" yaml:"use_path_style"`
	CacheControl    string `json:"cache_control" yaml:"cache_control"`
}

// MinioConfig holds MinIO bucket settings
type MinioConfig struct {
	Endpoint     string `json:"endpoint" yaml:"endpoint"`
	AccessKey    string `json:"access_key" yaml:"access_key"`
	SecretKey    string `json:"secret_key" yaml:"secret_key"`
	Bucket       string `json:"bucket" yaml:"bucket"`
	UseSSL       bool   `json:"use_ssl" yaml:"use_ssl"`
	PublicURL    string `json:"public_url" yaml:"public_url"`
	Prefix       string `json:"prefix" yaml:"prefix"`
	CreateBucket bool   `json:"create_bucket" yaml:"create_bucket"`
}

// VisionConfig holds configuration for crop suggestions
type VisionConfig struct {
	// Backend is saliency, ollama or llamacpp
	Backend     string `json:"backend" yaml:"backend"`
	URL         string `json:"url" yaml:"url"`
	Model       string `json:"model" yaml:"model"`
	SendFormat  string `json:"send_format" yaml:"send_format"`
	SendSize    int    `json:"send_size" yaml:"send_size"`
	SendQuality int    `json:"send_quality" yaml:"send_quality"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Cropper: CropperConfig{
			Format:     "jpeg",
			Quality:    95,
			Background: "transparent",
		},
		Resolver: ResolverConfig{
			MaxConcurrency: 0,
		},
		Storage: StorageConfig{
			Backend: storage.BackendHTTP,
			HTTP: HTTPConfig{
				FieldName:      "file",
				TimeoutSeconds: 120,
			},
			S3: S3Config{
				Region: "auto",
			},
		},
		Vision: VisionConfig{
			Backend:     "saliency",
			Model:       "openbmb/minicpm-v4.5",
			SendFormat:  "jpeg",
			SendSize:    1536,
			SendQuality: 85,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads filename over the defaults when it is set, then applies
// environment overrides
func Load(filename string) (*Config, error) {
	cfg := Default()
	if filename != "" {
		loaded, err := LoadFromFile(filename)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a JSON or YAML file. Fields the file
// leaves out keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	default:
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration as JSON or YAML depending on the extension
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadDotEnv loads variables from .env files into the process environment
// without overriding ones that are already set. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

type envBinding struct {
	key string
	set func(c *Config, v string) error
}

func setString(dst func(c *Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*dst(c) = v
		return nil
	}
}

func setInt(dst func(c *Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst(c) = n
		return nil
	}
}

func setBool(dst func(c *Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst(c) = b
		return nil
	}
}

var envBindings = []envBinding{
	{"AUREA_CROP_FORMAT", setString(func(c *Config) *string { return &c.Cropper.Format })},
	{"AUREA_CROP_QUALITY", setInt(func(c *Config) *int { return &c.Cropper.Quality })},
	{"AUREA_CROP_LOSSLESS", setBool(func(c *Config) *bool { return &c.Cropper.Lossless })},
	{"AUREA_CROP_BACKGROUND", setString(func(c *Config) *string { return &c.Cropper.Background })},
	{"AUREA_MAX_CONCURRENCY", setInt(func(c *Config) *int { return &c.Resolver.MaxConcurrency })},

	{"AUREA_STORAGE_BACKEND", setString(func(c *Config) *string { return &c.Storage.Backend })},
	{"AUREA_UPLOAD_ENDPOINT", setString(func(c *Config) *string { return &c.Storage.HTTP.Endpoint })},
	{"AUREA_UPLOAD_TOKEN", setString(func(c *Config) *string { return &c.Storage.HTTP.Token })},
	{"AUREA_S3_BUCKET", setString(func(c *Config) *string { return &c.Storage.S3.Bucket })},
	{"AUREA_S3_REGION", setString(func(c *Config) *string { return &c.Storage.S3.Region })},
	{"AUREA_S3_ENDPOINT", setString(func(c *Config) *string { return &c.Storage.S3.Endpoint })},
	{"AUREA_S3_ACCESS_KEY_ID", setString(func(c *Config) *string { return &c.Storage.S3.AccessKeyID })},
	{"AUREA_S3_SECRET_ACCESS_KEY", setString(func(c *Config) *string { return &c.Storage.S3.SecretAccessKey })},
	{"AUREA_S3_PUBLIC_URL", setString(func(c *Config) *string { return &c.Storage.S3.PublicURL })},
	{"AUREA_MINIO_ENDPOINT", setString(func(c *Config) *string { return &c.Storage.Minio.Endpoint })},
	{"AUREA_MINIO_ACCESS_KEY", setString(func(c *Config) *string { return &c.Storage.Minio.AccessKey })},
	{"AUREA_MINIO_SECRET_KEY", setString(func(c *Config) *string { return &c.Storage.Minio.SecretKey })},
	{"AUREA_MINIO_BUCKET", setString(func(c *Config) *string { return &c.Storage.Minio.Bucket })},
	{"AUREA_MINIO_USE_SSL", setBool(func(c *Config) *bool { return &c.Storage.Minio.UseSSL })},
	{"AUREA_MINIO_PUBLIC_URL", setString(func(c *Config) *string { return &c.Storage.Minio.PublicURL })},

	{"AUREA_VISION_BACKEND", setString(func(c *Config) *string { return &c.Vision.Backend })},
	{"AUREA_VISION_URL", setString(func(c *Config) *string { return &c.Vision.URL })},
	{"AUREA_VISION_MODEL", setString(func(c *Config) *string { return &c.Vision.Model })},

	{"AUREA_LOG_LEVEL", setString(func(c *Config) *string { return &c.Log.Level })},
	{"AUREA_LOG_FORMAT", setString(func(c *Config) *string { return &c.Log.Format })},
}

// ApplyEnv overrides configuration values from AUREA_* environment variables
func (c *Config) ApplyEnv() error {
	for _, b := range envBindings {
		v, ok := os.LookupEnv(b.key)
		if !ok || v == "" {
			continue
		}
		if err := b.set(c, v); err != nil {
			return fmt.Errorf("invalid %s: %w", b.key, err)
		}
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch strings.ToLower(c.Cropper.Format) {
	case "jpeg", "jpg", "png", "webp":
	default:
		return fmt.Errorf("cropper.format must be jpeg, png or webp")
	}

	if c.Cropper.Quality < 1 || c.Cropper.Quality > 100 {
		return fmt.Errorf("cropper.quality must be between 1 and 100")
	}

	if _, err := ParseBackground(c.Cropper.Background); err != nil {
		return fmt.Errorf("cropper.background: %w", err)
	}

	if c.Resolver.MaxConcurrency < 0 {
		return fmt.Errorf("resolver.max_concurrency cannot be negative")
	}

	switch strings.ToLower(c.Storage.Backend) {
	case storage.BackendHTTP, storage.BackendS3, storage.BackendMinio, "":
	default:
		return fmt.Errorf("storage.backend must be http, s3 or minio")
	}

	switch strings.ToLower(c.Vision.Backend) {
	case "saliency", "ollama", "llamacpp":
	default:
		return fmt.Errorf("vision.backend must be saliency, ollama or llamacpp")
	}

	if c.Vision.SendQuality < 1 || c.Vision.SendQuality > 100 {
		return fmt.Errorf("vision.send_quality must be between 1 and 100")
	}

	if c.Vision.SendSize < 0 {
		return fmt.Errorf("vision.send_size cannot be negative")
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	switch strings.ToLower(c.Log.Format) {
	case "console", "json", "":
	default:
		return fmt.Errorf("log.format must be console or json")
	}

	return nil
}

// ParseBackground parses "transparent" or a hex color
func ParseBackground(s string) (color.Color, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "transparent") {
		return color.NRGBA{0, 0, 0, 0}, nil
	}
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return nil, fmt.Errorf("invalid color %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{r, g, b, 255}, nil
}

// CropperSettings converts the cropper section for the crop engine
func (c *Config) CropperSettings() (cropper.Config, error) {
	bg, err := ParseBackground(c.Cropper.Background)
	if err != nil {
		return cropper.Config{}, err
	}
	return cropper.Config{
		Format:     c.Cropper.Format,
		Quality:    c.Cropper.Quality,
		Lossless:   c.Cropper.Lossless,
		Background: bg,
	}, nil
}

// StorageSettings converts the storage section for storage.New
func (c *Config) StorageSettings() storage.Config {
	s := c.Storage
	return storage.Config{
		Backend: s.Backend,
		HTTP: storage.HTTPConfig{
			Endpoint:  s.HTTP.Endpoint,
			FieldName: s.HTTP.FieldName,
			Token:     s.HTTP.Token,
			Timeout:   time.Duration(s.HTTP.TimeoutSeconds) * time.Second,
		},
		S3: storage.S3Config{
			Bucket:          s.S3.Bucket,
			Region:          s.S3.Region,
			Endpoint:        s.S3.Endpoint,
			AccessKeyID:     s.S3.AccessKeyID,
			SecretAccessKey: s.S3.SecretAccessKey,
			PublicURL:       s.S3.PublicURL,
			Prefix:          s.S3.Prefix,
			UsePathStyle:    s.S3.UsePathStyle,
			CacheControl:    s.S3.CacheControl,
		},
		Minio: storage.MinioConfig{
			Endpoint:     s.Minio.Endpoint,
			AccessKey:    s.Minio.AccessKey,
			SecretKey:    s.Minio.SecretKey,
			Bucket:       s.Minio.Bucket,
			UseSSL:       s.Minio.UseSSL,
			PublicURL:    s.Minio.PublicURL,
			Prefix:       s.Minio.Prefix,
			CreateBucket: s.Minio.CreateBucket,
		},
	}
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".config", "aurea-media", "config.yaml")
}
