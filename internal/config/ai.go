package config

type AIConfig struct {
	Timeout string `mapstructure:"timeout" yaml:"timeout"`
}
