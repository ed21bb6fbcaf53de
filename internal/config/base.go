package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type BaseConfig struct {
	ShutdownTimeout string `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	Log         LogConfig         `mapstructure:"log"         yaml:"log"`
	Storage     StorageConfig     `mapstructure:"storage"     yaml:"storage"`
	Database    DatabaseConfig    `mapstructure:"database"    yaml:"database"`
	Compression CompressionConfig `mapstructure:"compression" yaml:"compression"`
	AI          AIConfig          `mapstructure:"ai"          yaml:"ai"`
	Inbox       InboxConfig       `mapstructure:"inbox"       yaml:"inbox"`
}

func LoadConfig() (*BaseConfig, error) {
	cfg := &BaseConfig{}

	setDefaults()

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if cfg.Storage.DataDir == "" {
		return nil, fmt.Errorf("storage.data_dir must not be empty")
	}

	return cfg, nil
}

// ParseDuration parses value and falls back to def when it is empty or invalid.
func ParseDuration(value string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
