package config

import "path/filepath"

// StorageConfig describes where stickers, thumbnails and the database live.
type StorageConfig struct {
	DataDir       string `mapstructure:"data_dir"       yaml:"data_dir"`
	OriginalsDir  string `mapstructure:"originals_dir"  yaml:"originals_dir"`
	ThumbnailsDir string `mapstructure:"thumbnails_dir" yaml:"thumbnails_dir"`
	Database      string `mapstructure:"database"       yaml:"database"`
	// SettingsFile holds the AI key-value configuration. It is kept outside
	// DataDir so a full wipe of the library never touches it.
	SettingsFile string `mapstructure:"settings_file" yaml:"settings_file"`
}

// DatabaseConfig holds metadata store tuning.
type DatabaseConfig struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
}

func (c StorageConfig) DatabasePath() string {
	if filepath.IsAbs(c.Database) {
		return c.Database
	}
	return filepath.Join(c.DataDir, c.Database)
}
