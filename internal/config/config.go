// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Advisor AdvisorConfig `yaml:"advisor"`
	Advice  AdviceConfig  `yaml:"advice"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
	Metrics     bool     `yaml:"metrics"`
}

type StorageConfig struct {
	ProfilePath string `yaml:"profile_path"`
	DBPath      string `yaml:"db_path"` // empty disables the conversation archive
	CatalogPath string `yaml:"catalog_path"`
}

type AdvisorConfig struct {
	Endpoint   string        `yaml:"endpoint"`
	APIKey     string        `yaml:"api_key"`
	Deployment string        `yaml:"deployment"`
	APIVersion string        `yaml:"api_version"`
	Model      string        `yaml:"model"`
	Timeout    time.Duration `yaml:"timeout"`
}

type AdviceConfig struct {
	HistoryLimit    int     `yaml:"history_limit"`
	MaxEntryRunes   int     `yaml:"max_entry_runes"`
	MaxContextRunes int     `yaml:"max_context_runes"`
	MaxTokens       int     `yaml:"max_tokens"`
	Temperature     float64 `yaml:"temperature"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8000,
			CORSOrigins: []string{"*"},
			Metrics:     true,
		},
		Storage: StorageConfig{
			ProfilePath: "user_health_profile.json",
			DBPath:      "healthara.db",
		},
		Advisor: AdvisorConfig{
			APIVersion: "2024-12-01-preview",
			Model:      "gpt-4.1",
			Timeout:    60 * time.Second,
		},
		Advice: AdviceConfig{
			HistoryLimit:    10,
			MaxEntryRunes:   1000,
			MaxContextRunes: 8000,
			MaxTokens:       2000,
			Temperature:     0.7,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads .env (if present), then the YAML file at configPath (if
// present, with ${VAR} expansion), then applies environment overrides.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			expanded := []byte(os.ExpandEnv(string(data)))
			if err := yaml.Unmarshal(expanded, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", configPath, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	setString(&c.Advisor.APIKey, "AZURE_OPENAI_API_KEY")
	setString(&c.Advisor.Endpoint, "AZURE_OPENAI_ENDPOINT")
	setString(&c.Advisor.Deployment, "AZURE_OPENAI_DEPLOYMENT")
	setString(&c.Advisor.APIVersion, "AZURE_OPENAI_API_VERSION")
	setString(&c.Advisor.Model, "HEALTHARA_MODEL")
	setString(&c.Storage.ProfilePath, "HEALTHARA_PROFILE_PATH")
	setString(&c.Storage.DBPath, "HEALTHARA_DB_PATH")
	setString(&c.Logging.Level, "HEALTHARA_LOG_LEVEL")
	return nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if c.Storage.ProfilePath == "" {
		return fmt.Errorf("storage.profile_path is required")
	}
	if c.Advice.HistoryLimit < 0 || c.Advice.MaxEntryRunes < 0 || c.Advice.MaxContextRunes < 0 {
		return fmt.Errorf("advice limits must not be negative")
	}
	if c.Advice.MaxTokens <= 0 {
		return fmt.Errorf("advice.max_tokens must be positive")
	}
	if c.Advice.Temperature < 0 || c.Advice.Temperature > 2 {
		return fmt.Errorf("advice.temperature must be between 0 and 2")
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unknown logging.format %q", c.Logging.Format)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}
