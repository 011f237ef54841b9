package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "10s" parse.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full Orion configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	PDS      PDSConfig      `yaml:"pds"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig controls the HTTP server and its background workers.
type ServerConfig struct {
	Host          string        `yaml:"host"`
	Port          int           `yaml:"port" validate:"min=1,max=65535"`
	Workers       int           `yaml:"workers" validate:"min=1"`
	StaticRoot    string        `yaml:"static_root"`
	StaticSources []string      `yaml:"static_sources"`
	SessionTTL    Duration      `yaml:"session_ttl"`
	AllowOrigins  []string      `yaml:"allow_origins"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// PDSConfig describes the PDS admin endpoint Orion manages.
type PDSConfig struct {
	Hostname      string        `yaml:"hostname" validate:"required,url"`
	AdminPassword string        `yaml:"admin_password"`
	Timeout       Duration      `yaml:"timeout"`
}

// LoggingConfig controls the zerolog output.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Addr returns the host:port bind address for the server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:          "0.0.0.0",
			Port:          8000,
			Workers:       2,
			StaticRoot:    "staticfiles",
			StaticSources: []string{"web/static"},
			SessionTTL:    Duration(12 * time.Hour),
		},
		Database: DatabaseConfig{Path: "orion.db"},
		PDS: PDSConfig{
			Hostname: "http://localhost:3000",
			Timeout:  Duration(10 * time.Second),
		},
		Logging: LoggingConfig{Level: "info", MaxSizeMB: 50, MaxBackups: 3, MaxAgeDays: 28},
	}
}

// Load reads YAML configuration from a path. If path is empty, it resolves
// $XDG_CONFIG_HOME/orion/config.yaml or ~/.config/orion/config.yaml. A missing
// file yields defaults so the binary works out of the box.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if path == "" {
		path = filepath.Join(configDir(), "config.yaml")
	}

	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	case os.IsNotExist(err) && !explicit:
		// defaults
	default:
		return cfg, fmt.Errorf("open config: %w", err)
	}

	mergeSecrets(&cfg, filepath.Dir(path))

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration against its struct tags.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// mergeSecrets layers secrets.env beside the config file, then the process
// environment, over the YAML values. Secrets never live in the YAML itself.
func mergeSecrets(cfg *Config, dir string) {
	secrets, _ := godotenv.Read(filepath.Join(dir, "secrets.env"))
	if secrets == nil {
		secrets = map[string]string{}
	}
	for _, key := range []string{"PDS_ADMIN_PASSWORD", "PDS_HOSTNAME", "ORION_DB_PATH"} {
		if v := os.Getenv(key); v != "" {
			secrets[key] = v
		}
	}
	if v := secrets["PDS_ADMIN_PASSWORD"]; v != "" {
		cfg.PDS.AdminPassword = v
	}
	if v := secrets["PDS_HOSTNAME"]; v != "" {
		cfg.PDS.Hostname = v
	}
	if v := secrets["ORION_DB_PATH"]; v != "" {
		cfg.Database.Path = v
	}
}

func configDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "orion")
}
