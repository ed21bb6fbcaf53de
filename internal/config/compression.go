package config

// CompressionConfig mirrors codec.Options in configuration form.
type CompressionConfig struct {
	MaxDimension   int     `mapstructure:"max_dimension"   yaml:"max_dimension"`
	MaxBytes       int     `mapstructure:"max_bytes"       yaml:"max_bytes"`
	ThumbnailSize  int     `mapstructure:"thumbnail_size"  yaml:"thumbnail_size"`
	InitialQuality float64 `mapstructure:"initial_quality" yaml:"initial_quality"`
	QualityStep    float64 `mapstructure:"quality_step"    yaml:"quality_step"`
	MinQuality     float64 `mapstructure:"min_quality"     yaml:"min_quality"`
}
