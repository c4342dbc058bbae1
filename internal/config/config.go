package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Security  SecurityConfig  `json:"security"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Provider  ProviderConfig  `json:"provider"`
	Cache     CacheConfig     `json:"cache"`
	Tracing   TracingConfig   `json:"tracing"`
	Events    EventsConfig    `json:"events"`
	Offers    OffersConfig    `json:"offers"`
	Features  FeaturesConfig  `json:"features"`
	Debug     bool            `json:"debug"`
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port         string `json:"port"`
	Host         string `json:"host"`
	EnableTLS    bool   `json:"enable_tls"`
	CertFile     string `json:"cert_file"`
	KeyFile      string `json:"key_file"`
	ReadTimeout  int    `json:"read_timeout"`  // in seconds
	WriteTimeout int    `json:"write_timeout"` // in seconds
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	Path string `json:"path"`
}

// SecurityConfig holds security-related configuration.
type SecurityConfig struct {
	// Max request body size in bytes (default: 10MB)
	MaxRequestBodySize int64 `json:"max_request_body_size"`
	// Allowed CORS origins (comma-separated)
	AllowedOrigins string `json:"allowed_origins"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool `json:"enabled"`
	Rate    int  `json:"rate"`
	Window  int  `json:"window"` // in seconds
}

// ProviderConfig configures the live flight quote provider. With no client
// id the service runs on synthetic quotes only.
type ProviderConfig struct {
	BaseURL      string `json:"base_url"`
	TokenURL     string `json:"token_url"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Timeout      int    `json:"timeout"` // in seconds
	MaxResults   int    `json:"max_results"`
	TokenSkew    int    `json:"token_skew"` // in seconds
}

// CacheConfig holds cache configuration. An empty RedisAddr selects the
// in-memory cache.
type CacheConfig struct {
	RedisAddr         string `json:"redis_addr"`
	RedisPassword     string `json:"redis_password"`
	RedisDB           int    `json:"redis_db"`
	QuoteTTL          int    `json:"quote_ttl"`           // in seconds
	PaymentOptionsTTL int    `json:"payment_options_ttl"` // in seconds
}

// TracingConfig holds OpenTelemetry configuration.
type TracingConfig struct {
	Enabled        bool   `json:"enabled"`
	JaegerEndpoint string `json:"jaeger_endpoint"`
	Environment    string `json:"environment"`
}

// EventsConfig configures the Kafka event sink. No brokers means events are
// only logged.
type EventsConfig struct {
	Brokers string `json:"brokers"` // comma-separated
	Topic   string `json:"topic"`
}

// OffersConfig holds offer store tuning.
type OffersConfig struct {
	PaymentOptionsSample int `json:"payment_options_sample"`
}

// FeaturesConfig lists the feature flags enabled at startup.
type FeaturesConfig struct {
	Enabled string `json:"enabled"` // comma-separated
}

// LoadConfig loads configuration from environment variables and/or config file.
// A .env file in the working directory is loaded first when present.
// Environment variables take precedence over config file values.
func LoadConfig(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := defaults()

	// Load from config file if provided
	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Override with environment variables (they take precedence)
	overrideFromEnv(cfg)

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8080",
			ReadTimeout:  15,
			WriteTimeout: 30,
		},
		Database: DatabaseConfig{
			Path: "./fare_offers.db",
		},
		Security: SecurityConfig{
			MaxRequestBodySize: 10 << 20, // 10MB default
			AllowedOrigins:     "*",
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Rate:    100,
			Window:  60,
		},
		Provider: ProviderConfig{
			BaseURL:    "https://test.api.amadeus.com",
			TokenURL:   "https://test.api.amadeus.com/v1/security/oauth2/token",
			Timeout:    10,
			MaxResults: 20,
			TokenSkew:  60,
		},
		Cache: CacheConfig{
			QuoteTTL:          300,
			PaymentOptionsTTL: 600,
		},
		Tracing: TracingConfig{
			JaegerEndpoint: "http://localhost:14268/api/traces",
			Environment:    "development",
		},
		Events: EventsConfig{
			Topic: "fare-offers.events",
		},
		Offers: OffersConfig{
			PaymentOptionsSample: 500,
		},
	}
}

// loadFromFile loads configuration from a JSON file.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, cfg)
}

// overrideFromEnv overrides configuration with environment variables.
func overrideFromEnv(cfg *Config) {
	setString(&cfg.Server.Port, "SERVER_PORT")
	setString(&cfg.Server.Host, "SERVER_HOST")
	setBool(&cfg.Server.EnableTLS, "SERVER_ENABLE_TLS")
	setString(&cfg.Server.CertFile, "SERVER_CERT_FILE")
	setString(&cfg.Server.KeyFile, "SERVER_KEY_FILE")
	setInt(&cfg.Server.ReadTimeout, "SERVER_READ_TIMEOUT")
	setInt(&cfg.Server.WriteTimeout, "SERVER_WRITE_TIMEOUT")

	setString(&cfg.Database.Path, "DATABASE_PATH")

	if maxBodySize := os.Getenv("MAX_REQUEST_BODY_SIZE"); maxBodySize != "" {
		if size, err := strconv.ParseInt(maxBodySize, 10, 64); err == nil {
			cfg.Security.MaxRequestBodySize = size
		}
	}
	setString(&cfg.Security.AllowedOrigins, "ALLOWED_ORIGINS")

	setBool(&cfg.RateLimit.Enabled, "RATE_LIMIT_ENABLED")
	setInt(&cfg.RateLimit.Rate, "RATE_LIMIT_RATE")
	setInt(&cfg.RateLimit.Window, "RATE_LIMIT_WINDOW")

	setString(&cfg.Provider.BaseURL, "AMADEUS_BASE_URL")
	setString(&cfg.Provider.TokenURL, "AMADEUS_TOKEN_URL")
	setString(&cfg.Provider.ClientID, "AMADEUS_CLIENT_ID")
	setString(&cfg.Provider.ClientSecret, "AMADEUS_CLIENT_SECRET")
	setInt(&cfg.Provider.Timeout, "PROVIDER_TIMEOUT")
	setInt(&cfg.Provider.MaxResults, "PROVIDER_MAX_RESULTS")
	setInt(&cfg.Provider.TokenSkew, "PROVIDER_TOKEN_SKEW")

	setString(&cfg.Cache.RedisAddr, "REDIS_ADDR")
	setString(&cfg.Cache.RedisPassword, "REDIS_PASSWORD")
	setInt(&cfg.Cache.RedisDB, "REDIS_DB")
	setInt(&cfg.Cache.QuoteTTL, "QUOTE_CACHE_TTL")
	setInt(&cfg.Cache.PaymentOptionsTTL, "PAYMENT_OPTIONS_TTL")

	setBool(&cfg.Tracing.Enabled, "TRACING_ENABLED")
	setString(&cfg.Tracing.JaegerEndpoint, "JAEGER_ENDPOINT")
	setString(&cfg.Tracing.Environment, "ENVIRONMENT")

	setString(&cfg.Events.Brokers, "KAFKA_BROKERS")
	setString(&cfg.Events.Topic, "KAFKA_TOPIC")

	setInt(&cfg.Offers.PaymentOptionsSample, "PAYMENT_OPTIONS_SAMPLE")

	setString(&cfg.Features.Enabled, "FEATURES_ENABLED")

	setBool(&cfg.Debug, "LOG_DEBUG")
}

func setString(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func setBool(dst *bool, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = strings.ToLower(value) == "true" || value == "1"
	}
}

func setInt(dst *int, key string) {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			*dst = i
		}
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Server.EnableTLS && (c.Server.CertFile == "" || c.Server.KeyFile == "") {
		return fmt.Errorf("TLS requires both cert_file and key_file")
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.Rate <= 0 {
			return fmt.Errorf("rate limit rate must be positive")
		}
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate limit window must be positive")
		}
	}
	if c.Provider.ClientID != "" {
		if c.Provider.ClientSecret == "" {
			return fmt.Errorf("provider client secret is required when a client id is set")
		}
		if c.Provider.BaseURL == "" || c.Provider.TokenURL == "" {
			return fmt.Errorf("provider base and token URLs are required")
		}
	}
	if c.Provider.Timeout <= 0 {
		return fmt.Errorf("provider timeout must be positive")
	}
	if c.Offers.PaymentOptionsSample <= 0 {
		return fmt.Errorf("payment options sample must be positive")
	}
	if c.Events.Brokers != "" && c.Events.Topic == "" {
		return fmt.Errorf("kafka topic is required when brokers are set")
	}
	return nil
}

// KafkaBrokers splits the configured broker list.
func (c *Config) KafkaBrokers() []string {
	return splitList(c.Events.Brokers)
}

// EnabledFeatures splits the configured feature list.
func (c *Config) EnabledFeatures() []string {
	return splitList(c.Features.Enabled)
}

// Duration converts a seconds setting to a time.Duration.
func Duration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
