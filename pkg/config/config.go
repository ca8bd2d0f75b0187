// Package config loads envrun's settings from envrun.yaml and ENVRUN_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// AppName is used for the config directory and the env prefix.
	AppName = "envrun"
	// FileName is the config file name without extension.
	FileName = "envrun"

	OptionBatch           = "batch"
	OptionContainerEngine = "container_engine"
	OptionHistoryFile     = "history_file"
	OptionShell           = "shell"
	OptionLiteralKeys     = "literal_keys"
	OptionVersionCheckURL = "version_check_url"
	OptionCheckTimeout    = "check_timeout"
	OptionImportRetries   = "import_retries"
	OptionLogLevel        = "log_level"
	OptionKnownHosts      = "remote.known_hosts"
	OptionIdentityFile    = "remote.identity_file"
	OptionRemoteUser      = "remote.user"
	OptionDialTimeout     = "remote.dial_timeout"

	DefaultContainerEngine = "auto"
	DefaultShell           = "sh"
	DefaultCheckTimeout    = 1500 * time.Millisecond
	DefaultImportRetries   = 2
	DefaultLogLevel        = "warn"
	DefaultDialTimeout     = 10 * time.Second
)

// Remote configures the ssh back-end.
type Remote struct {
	KnownHosts   string        `mapstructure:"known_hosts"`
	IdentityFile string        `mapstructure:"identity_file"`
	User         string        `mapstructure:"user"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
}

// Config holds every setting.
type Config struct {
	Batch           bool          `mapstructure:"batch"`
	ContainerEngine string        `mapstructure:"container_engine"`
	HistoryFile     string        `mapstructure:"history_file"`
	Shell           string        `mapstructure:"shell"`
	LiteralKeys     []string      `mapstructure:"literal_keys"`
	VersionCheckURL string        `mapstructure:"version_check_url"`
	CheckTimeout    time.Duration `mapstructure:"check_timeout"`
	ImportRetries   int           `mapstructure:"import_retries"`
	LogLevel        string        `mapstructure:"log_level"`
	Remote          Remote        `mapstructure:"remote"`

	// Path is the file the settings were read from, empty for defaults.
	Path string `mapstructure:"-"`
}

// Dir returns $XDG_CONFIG_HOME/envrun, defaulting to ~/.config/envrun.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("get home directory: %w", err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, AppName), nil
}

// DefaultHistoryFile is the history log used when none is configured.
func DefaultHistoryFile() string {
	dir, err := Dir()
	if err != nil {
		return filepath.Join(".envrun", "history.jsonl")
	}
	return filepath.Join(dir, "history.jsonl")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(OptionBatch, false)
	v.SetDefault(OptionContainerEngine, DefaultContainerEngine)
	v.SetDefault(OptionHistoryFile, DefaultHistoryFile())
	v.SetDefault(OptionShell, DefaultShell)
	v.SetDefault(OptionLiteralKeys, []string{})
	v.SetDefault(OptionVersionCheckURL, "")
	v.SetDefault(OptionCheckTimeout, DefaultCheckTimeout)
	v.SetDefault(OptionImportRetries, DefaultImportRetries)
	v.SetDefault(OptionLogLevel, DefaultLogLevel)
	v.SetDefault(OptionKnownHosts, "")
	v.SetDefault(OptionIdentityFile, "")
	v.SetDefault(OptionRemoteUser, "")
	v.SetDefault(OptionDialTimeout, DefaultDialTimeout)
}

// Load reads the configuration. An explicit path must exist; otherwise
// envrun.yaml is looked up in the working directory and then in Dir().
// Missing files fall back to defaults. ENVRUN_* variables override the file
// (ENVRUN_REMOTE_USER for remote.user).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(strings.ToUpper(AppName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.AddConfigPath(".")
		if dir, err := Dir(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Path = v.ConfigFileUsed()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.ContainerEngine {
	case "auto", "docker", "podman":
	default:
		return fmt.Errorf("invalid %s %q: want auto, docker or podman", OptionContainerEngine, c.ContainerEngine)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid %s %q: want debug, info, warn or error", OptionLogLevel, c.LogLevel)
	}
	if c.ImportRetries < 0 {
		return fmt.Errorf("invalid %s %d: must not be negative", OptionImportRetries, c.ImportRetries)
	}
	return nil
}
