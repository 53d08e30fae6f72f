package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment override, e.g. DEPLOYHOOK_SERVER__PORT.
	EnvPrefix = "DEPLOYHOOK_"

	// DefaultConfigFile is read when DEPLOYHOOK_CONFIG is not set.
	DefaultConfigFile = "config.yaml"
)

// Concurrency policies for deployments of the same project.
const (
	ConcurrencyQueue  = "queue"
	ConcurrencyReject = "reject"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Projects  ProjectsConfig  `koanf:"projects"`
	Deploy    DeployConfig    `koanf:"deploy"`
	Storage   StorageConfig   `koanf:"storage"`
	Auth      AuthConfig      `koanf:"auth"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Log       LogConfig       `koanf:"log"`
}

type ServerConfig struct {
	Host           string        `koanf:"host"`
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type ProjectsConfig struct {
	File string `koanf:"file"`
}

type DeployConfig struct {
	Timeout        time.Duration `koanf:"timeout"`     // 0 disables the bound
	Concurrency    string        `koanf:"concurrency"` // queue, reject
	Shell          string        `koanf:"shell"`
	MaxOutputBytes int           `koanf:"max_output_bytes"`
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // sqlite, memory, none
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type AuthConfig struct {
	// KeyHashes are SHA-256 hex digests of accepted webhook tokens.
	// Authentication is disabled when empty.
	KeyHashes []string `koanf:"key_hashes"`
}

type TelemetryConfig struct {
	Enabled bool `koanf:"enabled"`
}

type LogConfig struct {
	Level string `koanf:"level"`
}

var defaults = map[string]any{
	"server.host":             "localhost",
	"server.port":             8000,
	"server.request_timeout":  "15m",
	"projects.file":           "hooks.conf.json",
	"deploy.timeout":          "10m",
	"deploy.concurrency":      ConcurrencyQueue,
	"deploy.shell":            "sh",
	"deploy.max_output_bytes": 64 * 1024,
	"storage.type":            "sqlite",
	"storage.sqlite.path":     "./data/deployhook.db",
	"log.level":               "info",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads the service configuration from the file named by DEPLOYHOOK_CONFIG
// (or config.yaml), then applies DEPLOYHOOK_* environment overrides.
func Load() (*Config, error) {
	path := os.Getenv(EnvPrefix + "CONFIG")
	if path == "" {
		path = DefaultConfigFile
	}
	return LoadFile(path)
}

// LoadFile is Load with an explicit config file path. A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	// Environment variables override the file
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		if s == EnvPrefix+"CONFIG" {
			return ""
		}
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.Projects.File = substituteEnvVars(cfg.Projects.File)
	cfg.Storage.SQLite.Path = substituteEnvVars(cfg.Storage.SQLite.Path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that koanf cannot type-check.
func (c *Config) Validate() error {
	switch c.Deploy.Concurrency {
	case ConcurrencyQueue, ConcurrencyReject:
	default:
		return fmt.Errorf("deploy.concurrency must be %q or %q, got %q", ConcurrencyQueue, ConcurrencyReject, c.Deploy.Concurrency)
	}

	switch c.Storage.Type {
	case "sqlite", "memory", "none":
	default:
		return fmt.Errorf("unknown storage.type %q", c.Storage.Type)
	}

	if c.Deploy.Timeout < 0 {
		return fmt.Errorf("deploy.timeout must not be negative")
	}
	if c.Deploy.Shell == "" {
		return fmt.Errorf("deploy.shell must not be empty")
	}
	if c.Projects.File == "" {
		return fmt.Errorf("projects.file must not be empty")
	}

	return nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
