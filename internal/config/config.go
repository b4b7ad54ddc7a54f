package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	AWS      AWSConfig      `yaml:"aws"`
	JWT      JWTConfig      `yaml:"jwt"`
	Redis    RedisConfig    `yaml:"redis"`
	Uploads  UploadsConfig  `yaml:"uploads"`
	Feed     FeedConfig     `yaml:"feed"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int      `yaml:"port" env:"SERVER_PORT"`
	Host           string   `yaml:"host" env:"SERVER_HOST"`
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" env-separator:","`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `yaml:"host" env:"DB_HOST"`
	Port     int    `yaml:"port" env:"DB_PORT"`
	User     string `yaml:"user" env:"DB_USER"`
	Password string `yaml:"password" env:"DB_PASSWORD"`
	DBName   string `yaml:"dbname" env:"DB_NAME"`
	SSLMode  string `yaml:"sslmode" env:"DB_SSLMODE"`
}

// AWSConfig holds the object storage configuration used for diary images
type AWSConfig struct {
	Region    string `yaml:"region" env:"AWS_REGION"`
	S3Bucket  string `yaml:"s3_bucket" env:"AWS_S3_BUCKET"`
	AccessKey string `yaml:"access_key" env:"AWS_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"AWS_SECRET_KEY"`
	// Endpoint points the client at an S3-compatible service (MinIO and friends).
	Endpoint string `yaml:"endpoint" env:"AWS_ENDPOINT"`
	// PublicBaseURL is prefixed to object keys to build image URLs. Empty means virtual-hosted S3 URLs.
	PublicBaseURL string `yaml:"public_base_url" env:"AWS_PUBLIC_BASE_URL"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret  string `yaml:"secret" env:"JWT_SECRET"`
	TTLDays int    `yaml:"ttl_days" env:"JWT_TTL_DAYS"`
}

// RedisConfig holds the lookup cache configuration. An empty Addr disables caching.
type RedisConfig struct {
	Addr       string `yaml:"addr" env:"REDIS_ADDR"`
	Password   string `yaml:"password" env:"REDIS_PASSWORD"`
	DB         int    `yaml:"db" env:"REDIS_DB"`
	TTLSeconds int    `yaml:"ttl_seconds" env:"REDIS_TTL_SECONDS"`
}

// UploadsConfig limits multipart diary submissions
type UploadsConfig struct {
	MaxImages   int `yaml:"max_images" env:"UPLOADS_MAX_IMAGES"`
	MaxMemoryMB int `yaml:"max_memory_mb" env:"UPLOADS_MAX_MEMORY_MB"`
	// MaxRequestMB caps the whole request body, including what spills to disk.
	MaxRequestMB int `yaml:"max_request_mb" env:"UPLOADS_MAX_REQUEST_MB"`
}

// FeedConfig holds public feed settings
type FeedConfig struct {
	// AllRegions is the region filter value that means "no region filter".
	AllRegions string `yaml:"all_regions" env:"FEED_ALL_REGIONS"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL"`
}

// Load reads configuration from a YAML file and applies environment overrides
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 5000
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.AWS.Region == "" {
		c.AWS.Region = "us-east-1"
	}
	if c.JWT.TTLDays <= 0 {
		c.JWT.TTLDays = 365
	}
	if c.Redis.TTLSeconds <= 0 {
		c.Redis.TTLSeconds = 300
	}
	if c.Uploads.MaxImages <= 0 {
		c.Uploads.MaxImages = 10
	}
	if c.Uploads.MaxMemoryMB <= 0 {
		c.Uploads.MaxMemoryMB = 32
	}
	if c.Uploads.MaxRequestMB <= 0 {
		c.Uploads.MaxRequestMB = 64
	}
	if c.Feed.AllRegions == "" {
		c.Feed.AllRegions = "전체"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks that settings without a sensible default are present
func (c *Config) Validate() error {
	var errs []error
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt.secret is required"))
	}
	if c.AWS.S3Bucket == "" {
		errs = append(errs, errors.New("aws.s3_bucket is required"))
	}
	return errors.Join(errs...)
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// RedisEnabled reports whether the lookup cache should be used
func (c *Config) RedisEnabled() bool {
	return c.Redis.Addr != ""
}
