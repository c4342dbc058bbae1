package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Offers.PaymentOptionsSample != 500 {
		t.Errorf("Expected default sample of 500, got %d", cfg.Offers.PaymentOptionsSample)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got %v", err)
	}
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
		"server": {"port": "9000"},
		"cache": {"quote_ttl": 42},
		"events": {"brokers": "k1:9092, k2:9092"},
		"features": {"enabled": "response_cache,event_hooks"}
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	t.Setenv("SERVER_PORT", "9100")
	t.Setenv("PAYMENT_OPTIONS_SAMPLE", "50")
	t.Setenv("LOG_DEBUG", "true")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != "9100" {
		t.Errorf("Expected env to win over file, got port %s", cfg.Server.Port)
	}
	if cfg.Cache.QuoteTTL != 42 {
		t.Errorf("Expected quote TTL from file, got %d", cfg.Cache.QuoteTTL)
	}
	if cfg.Cache.PaymentOptionsTTL != 600 {
		t.Errorf("Expected untouched default payment options TTL, got %d", cfg.Cache.PaymentOptionsTTL)
	}
	if cfg.Offers.PaymentOptionsSample != 50 {
		t.Errorf("Expected sample from env, got %d", cfg.Offers.PaymentOptionsSample)
	}
	if !cfg.Debug {
		t.Error("Expected debug logging enabled")
	}

	brokers := cfg.KafkaBrokers()
	if len(brokers) != 2 || brokers[1] != "k2:9092" {
		t.Errorf("Unexpected brokers: %v", brokers)
	}
	if features := cfg.EnabledFeatures(); len(features) != 2 {
		t.Errorf("Unexpected features: %v", features)
	}
}

func TestValidate(t *testing.T) {
	tests := map[string]func(*Config){
		"missing port":           func(c *Config) { c.Server.Port = "" },
		"tls without cert":       func(c *Config) { c.Server.EnableTLS = true },
		"zero rate":              func(c *Config) { c.RateLimit.Rate = 0 },
		"client id, no secret":   func(c *Config) { c.Provider.ClientID = "abc" },
		"zero sample":            func(c *Config) { c.Offers.PaymentOptionsSample = 0 },
		"brokers without topic":  func(c *Config) { c.Events.Brokers = "k:9092"; c.Events.Topic = "" },
		"non-positive timeout":   func(c *Config) { c.Provider.Timeout = 0 },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := defaults()
			mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}
