// Package config loads application configuration from YAML with
// environment variable overrides for secrets and deploy-specific
// values.
package config

import (
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Tracking   TrackingConfig   `yaml:"tracking"`
	Provider   ProviderConfig   `yaml:"provider"`
	Microsoft  MicrosoftConfig  `yaml:"microsoft"`
	Automation AutomationConfig `yaml:"automation"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the bind host, listening on all interfaces when
// running in a container environment.
func (c ServerConfig) GetHost() string {
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	return c.Host
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds the trigger bus connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// TrackingConfig holds the public tracking base URL and the event
// queue the tracking handlers publish to.
type TrackingConfig struct {
	BaseURL  string `yaml:"base_url"`
	QueueURL string `yaml:"queue_url"`
	Region   string `yaml:"region"`
	Port     int    `yaml:"port"`
}

// ProviderConfig selects and configures the transactional provider.
// Name is "sparkpost" or "ses".
type ProviderConfig struct {
	Name      string          `yaml:"name"`
	SparkPost SparkPostConfig `yaml:"sparkpost"`
	SES       SESConfig       `yaml:"ses"`
}

// SparkPostConfig holds SparkPost-compatible API settings.
type SparkPostConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// SESConfig holds AWS SES credentials.
type SESConfig struct {
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
}

// MicrosoftConfig holds the OAuth application used for mailbox sends.
type MicrosoftConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Tenant       string `yaml:"tenant"`
}

// AutomationConfig holds trigger bus consumer settings.
type AutomationConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Tracking.Port == 0 {
		cfg.Tracking.Port = 8081
	}
	if cfg.Tracking.Region == "" {
		cfg.Tracking.Region = "us-west-2"
	}
	if cfg.Provider.Name == "" {
		cfg.Provider.Name = "sparkpost"
	}
	if cfg.Provider.SparkPost.BaseURL == "" {
		cfg.Provider.SparkPost.BaseURL = "https://api.sparkpost.com/api/v1"
	}
	if cfg.Provider.SES.Region == "" {
		cfg.Provider.SES.Region = "us-west-2"
	}
	if cfg.Microsoft.Tenant == "" {
		cfg.Microsoft.Tenant = "common"
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) before reading env vars, so secrets
// can live in .env locally and in real env vars in deploys.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("TRACKING_BASE_URL"); v != "" {
		cfg.Tracking.BaseURL = v
	}
	if v := os.Getenv("TRACKING_QUEUE_URL"); v != "" {
		cfg.Tracking.QueueURL = v
	}
	if v := os.Getenv("SPARKPOST_API_KEY"); v != "" {
		cfg.Provider.SparkPost.APIKey = v
	}
	if v := os.Getenv("SPARKPOST_BASE_URL"); v != "" {
		cfg.Provider.SparkPost.BaseURL = v
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.Provider.SES.AccessKey = v
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.Provider.SES.SecretKey = v
	}
	if v := os.Getenv("AWS_SES_REGION"); v != "" {
		cfg.Provider.SES.Region = v
	}
	if v := os.Getenv("MS_CLIENT_ID"); v != "" {
		cfg.Microsoft.ClientID = v
	}
	if v := os.Getenv("MS_CLIENT_SECRET"); v != "" {
		cfg.Microsoft.ClientSecret = v
	}
	if v := os.Getenv("MS_TENANT"); v != "" {
		cfg.Microsoft.Tenant = v
	}

	return cfg, nil
}
