package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// HTTPServerConfig holds HTTP server settings.
type HTTPServerConfig struct {
	ListenAddress   string        `mapstructure:"listen_address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// WatchConfig holds the tail-and-broadcast engine settings.
type WatchConfig struct {
	ProjectsDir    string        `mapstructure:"projects_dir"`
	Extension      string        `mapstructure:"extension"`
	BatchLimit     int           `mapstructure:"batch_limit"`
	BufferCapacity int           `mapstructure:"buffer_capacity"`
	RescanInterval time.Duration `mapstructure:"rescan_interval"`
}

// Config represents the complete viewer configuration.
type Config struct {
	Server    HTTPServerConfig `mapstructure:"server"`
	Watch     WatchConfig      `mapstructure:"watch"`
	LogLevel  string           `mapstructure:"log_level"`
	LogFormat string           `mapstructure:"log_format"`
}

// Load reads the viewer configuration. configPath may be empty, in which case
// defaults apply; flags merged in by the CLI override both.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	// Set defaults
	v.SetDefault("server.listen_address", "0.0.0.0:2006")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("watch.projects_dir", defaultProjectsDir())
	v.SetDefault("watch.extension", ".jsonl")
	v.SetDefault("watch.batch_limit", 10)
	v.SetDefault("watch.buffer_capacity", 1000)
	v.SetDefault("watch.rescan_interval", "2s")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the invariants the engine relies on. The projects directory
// is deliberately not checked here: it is validated at watcher startup so the
// CLI can print a useful hint.
func (c *Config) Validate() error {
	if c.Watch.ProjectsDir == "" {
		return fmt.Errorf("watch.projects_dir is required")
	}
	if c.Watch.BatchLimit <= 0 {
		return fmt.Errorf("watch.batch_limit must be positive")
	}
	if c.Watch.BufferCapacity <= 0 {
		return fmt.Errorf("watch.buffer_capacity must be positive")
	}
	return nil
}

// defaultProjectsDir points at the directory the external tool writes its
// session logs to.
func defaultProjectsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".claude", "projects")
}
