package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

func GetDefault() BaseConfig {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	return BaseConfig{
		ShutdownTimeout: "10s",

		Log: LogConfig{
			Level:      "INFO",
			TimeFormat: "2006-01-02 15:04:05",
			File:       "",
			NoColor:    false,
			JSON:       false,
			NoTerminal: false,
			Rotation: LogRotationConfig{
				MaxSize:    128,
				MaxBackups: 5,
				MaxAge:     16,
				Compress:   false,
			},
		},

		Storage: StorageConfig{
			DataDir:       filepath.Join(home, "Documents", "Stickers"),
			OriginalsDir:  "stickers",
			ThumbnailsDir: "thumbnails",
			Database:      "stickers.db",
			SettingsFile:  filepath.Join(home, ".stickerbox", "settings.yaml"),
		},

		Database: DatabaseConfig{
			LogLevel: "silent",
		},

		Compression: CompressionConfig{
			MaxDimension:   1000,
			MaxBytes:       200 * 1024,
			ThumbnailSize:  100,
			InitialQuality: 0.8,
			QualityStep:    0.1,
			MinQuality:     0.1,
		},

		AI: AIConfig{
			Timeout: "30s",
		},

		Inbox: InboxConfig{
			Enabled:     false,
			Path:        filepath.Join(home, "Documents", "Stickers", "inbox"),
			SettleDelay: "2s",
			Tags:        []string{},
		},
	}
}

func setDefaults() {
	defaults := GetDefault()

	viper.SetDefault("shutdown_timeout", defaults.ShutdownTimeout)

	viper.SetDefault("log.level", defaults.Log.Level)
	viper.SetDefault("log.time_format", defaults.Log.TimeFormat)
	viper.SetDefault("log.file", defaults.Log.File)
	viper.SetDefault("log.no_color", defaults.Log.NoColor)
	viper.SetDefault("log.json", defaults.Log.JSON)
	viper.SetDefault("log.no_terminal", defaults.Log.NoTerminal)
	viper.SetDefault("log.rotation.max_size", defaults.Log.Rotation.MaxSize)
	viper.SetDefault("log.rotation.max_backups", defaults.Log.Rotation.MaxBackups)
	viper.SetDefault("log.rotation.max_age", defaults.Log.Rotation.MaxAge)
	viper.SetDefault("log.rotation.compress", defaults.Log.Rotation.Compress)

	viper.SetDefault("storage.data_dir", defaults.Storage.DataDir)
	viper.SetDefault("storage.originals_dir", defaults.Storage.OriginalsDir)
	viper.SetDefault("storage.thumbnails_dir", defaults.Storage.ThumbnailsDir)
	viper.SetDefault("storage.database", defaults.Storage.Database)
	viper.SetDefault("storage.settings_file", defaults.Storage.SettingsFile)

	viper.SetDefault("database.log_level", defaults.Database.LogLevel)

	viper.SetDefault("compression.max_dimension", defaults.Compression.MaxDimension)
	viper.SetDefault("compression.max_bytes", defaults.Compression.MaxBytes)
	viper.SetDefault("compression.thumbnail_size", defaults.Compression.ThumbnailSize)
	viper.SetDefault("compression.initial_quality", defaults.Compression.InitialQuality)
	viper.SetDefault("compression.quality_step", defaults.Compression.QualityStep)
	viper.SetDefault("compression.min_quality", defaults.Compression.MinQuality)

	viper.SetDefault("ai.timeout", defaults.AI.Timeout)

	viper.SetDefault("inbox.enabled", defaults.Inbox.Enabled)
	viper.SetDefault("inbox.path", defaults.Inbox.Path)
	viper.SetDefault("inbox.settle_delay", defaults.Inbox.SettleDelay)
	viper.SetDefault("inbox.tags", defaults.Inbox.Tags)
}
