package config

// InboxConfig configures the drop folder watched by the agent.
type InboxConfig struct {
	Enabled     bool     `mapstructure:"enabled"      yaml:"enabled"`
	Path        string   `mapstructure:"path"         yaml:"path"`
	SettleDelay string   `mapstructure:"settle_delay" yaml:"settle_delay"`
	Tags        []string `mapstructure:"tags"         yaml:"tags"`
}
