package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the sieve configuration, loaded from sieve.yml.
type Config struct {
	ProjectName string         `mapstructure:"project_name"`
	Server      ServerConfig   `mapstructure:"server"`
	Auth        AuthConfig     `mapstructure:"auth"`
	Database    DatabaseConfig `mapstructure:"database"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Schema      SchemaConfig   `mapstructure:"schema"`
}

// ServerConfig is the address the compile HTTP service listens on.
type ServerConfig struct {
	Address   string `mapstructure:"address"`
	APIPrefix string `mapstructure:"api_prefix"`
}

// AuthConfig carries the JWT signing secret and token lifetime used by
// internal/web/auth, plus the registered API clients allowed to exchange a
// secret for a token at POST /auth/token.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	TokenTTL  string `mapstructure:"token_ttl"`
	// Clients maps a client_id to the bcrypt hash of its secret
	// (internal/web/auth.HashClientSecret). Never the plain secret itself.
	Clients map[string]string `mapstructure:"clients"`
}

// DatabaseConfig is the Postgres DSN backing internal/schemastore/postgres.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// RedisConfig is the Redis DSN backing internal/cache and
// internal/web/ratelimit's distributed tiers.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// SchemaConfig tells the CLI where to source field classifications from
// when it isn't running against a live Postgres-backed service.
type SchemaConfig struct {
	Source  string `mapstructure:"source"` // "postgres" or "file"
	Path    string `mapstructure:"path"`   // used when source == "file"
	LocalDB string `mapstructure:"local_db"`
}

// Load loads the configuration from sieve.yml or sieve.yaml.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.address", "localhost:3000")
	v.SetDefault("server.api_prefix", "/v1")
	v.SetDefault("auth.token_ttl", "1h")
	v.SetDefault("schema.source", "file")
	v.SetDefault("schema.local_db", "sieve-schema.db")

	v.SetConfigName("sieve")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// GetDatabaseURL returns the Postgres DSN from the environment, falling
// back to the config file.
func GetDatabaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}

	cfg, err := Load()
	if err != nil {
		return ""
	}

	return cfg.Database.URL
}

// InProject checks if the current directory is a sieve project.
func InProject() bool {
	if _, err := os.Stat("app"); err != nil {
		return false
	}

	if _, err := os.Stat("sieve.yml"); err == nil {
		return true
	}
	if _, err := os.Stat("sieve.yaml"); err == nil {
		return true
	}

	return false
}

// GetProjectRoot walks up from the current directory looking for sieve.yml.
func GetProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "sieve.yml")); err == nil {
			return dir, nil
		}
		if _, err := os.Stat(filepath.Join(dir, "sieve.yaml")); err == nil {
			return dir, nil
		}

		if _, err := os.Stat(filepath.Join(dir, "app")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not in a sieve project (no sieve.yml found)")
		}
		dir = parent
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Server.APIPrefix != "" {
		if !strings.HasPrefix(cfg.Server.APIPrefix, "/") {
			return fmt.Errorf("server.api_prefix must start with '/', got: %s", cfg.Server.APIPrefix)
		}
		if strings.HasSuffix(cfg.Server.APIPrefix, "/") {
			return fmt.Errorf("server.api_prefix must not end with '/', got: %s", cfg.Server.APIPrefix)
		}
	}
	if cfg.Schema.Source != "" && cfg.Schema.Source != "postgres" && cfg.Schema.Source != "file" {
		return fmt.Errorf("schema.source must be 'postgres' or 'file', got: %s", cfg.Schema.Source)
	}
	return nil
}
