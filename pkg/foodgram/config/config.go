package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// PathEnvVar overrides the config file location.
const PathEnvVar = "FOODGRAM_CONFIG"

// envPrefix namespaces environment overrides: FOODGRAM_SERVER_PORT -> server.port.
const envPrefix = "FOODGRAM_"

// DefaultPaths are searched in order when PathEnvVar is unset.
var DefaultPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/foodgram/config.yaml",
}

// Config is the complete application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	API      APIConfig      `koanf:"api"`
	Logging  LoggingConfig  `koanf:"logging"`
	Admin    AdminConfig    `koanf:"admin"`
}

type ServerConfig struct {
	Port     int    `koanf:"port" validate:"min=1,max=65535"`
	BaseURL  string `koanf:"base_url" validate:"required,url"`
	MediaDir string `koanf:"media_dir" validate:"required"`
	MediaURL string `koanf:"media_url" validate:"required,startswith=/"`
}

type DatabaseConfig struct {
	Driver string `koanf:"driver" validate:"oneof=sqlite postgres"`
	DSN    string `koanf:"dsn" validate:"required"`
}

type AuthConfig struct {
	JWTSecret string        `koanf:"jwt_secret"`
	TokenTTL  time.Duration `koanf:"token_ttl" validate:"gt=0"`
}

type APIConfig struct {
	PageSize    int `koanf:"page_size" validate:"min=1"`
	MaxPageSize int `koanf:"max_page_size" validate:"gtefield=PageSize"`
}

type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// AdminConfig describes the administrator created on first start.
// An empty password disables the bootstrap.
type AdminConfig struct {
	Email     string `koanf:"email" validate:"omitempty,email"`
	Username  string `koanf:"username"`
	FirstName string `koanf:"first_name"`
	LastName  string `koanf:"last_name"`
	Password  string `koanf:"password"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:     8080,
			BaseURL:  "http://localhost:8080",
			MediaDir: "media",
			MediaURL: "/media/",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "foodgram.db",
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
		API: APIConfig{
			PageSize:    6,
			MaxPageSize: 100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Admin: AdminConfig{
			Email:     "admin@foodgram.local",
			Username:  "admin",
			FirstName: "Admin",
			LastName:  "Foodgram",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// the environment, in increasing order of precedence. A .env file in the
// working directory is loaded into the environment first.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func findFile() string {
	if p := os.Getenv(PathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// legacyEnv maps unprefixed variables kept for deployment compatibility.
var legacyEnv = map[string]string{
	"PORT":         "server.port",
	"JWT_SECRET":   "auth.jwt_secret",
	"DATABASE_URL": "database.dsn",
}

// envKey maps an environment variable to a koanf path, or "" to skip it.
// The first underscore after the prefix separates section from key, so
// FOODGRAM_SERVER_BASE_URL becomes server.base_url.
func envKey(name string) string {
	if path, ok := legacyEnv[name]; ok {
		return path
	}
	if !strings.HasPrefix(name, envPrefix) || name == PathEnvVar {
		return ""
	}
	key := strings.ToLower(strings.TrimPrefix(name, envPrefix))
	section, rest, ok := strings.Cut(key, "_")
	if !ok || rest == "" {
		return ""
	}
	return section + "." + rest
}
