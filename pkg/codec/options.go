package codec

import (
	"fmt"
	"math"
)

// Options controls compression and thumbnail generation. Qualities are
// fractions in (0, 1], mapped onto the 1..100 JPEG quality scale.
type Options struct {
	MaxDimension   int
	MaxBytes       int
	ThumbnailSize  int
	InitialQuality float64
	QualityStep    float64
	MinQuality     float64
}

func DefaultOptions() Options {
	return Options{
		MaxDimension:   1000,
		MaxBytes:       200 * 1024,
		ThumbnailSize:  100,
		InitialQuality: 0.8,
		QualityStep:    0.1,
		MinQuality:     0.1,
	}
}

func (o Options) Validate() error {
	if o.MaxDimension <= 0 {
		return fmt.Errorf("max dimension must be positive, got %d", o.MaxDimension)
	}
	if o.MaxBytes <= 0 {
		return fmt.Errorf("max bytes must be positive, got %d", o.MaxBytes)
	}
	if o.ThumbnailSize <= 0 {
		return fmt.Errorf("thumbnail size must be positive, got %d", o.ThumbnailSize)
	}
	if o.InitialQuality <= 0 || o.InitialQuality > 1 {
		return fmt.Errorf("initial quality must be in (0, 1], got %v", o.InitialQuality)
	}
	if o.MinQuality <= 0 || o.MinQuality > o.InitialQuality {
		return fmt.Errorf("min quality must be in (0, initial quality], got %v", o.MinQuality)
	}
	if o.QualityStep <= 0 {
		return fmt.Errorf("quality step must be positive, got %v", o.QualityStep)
	}
	return nil
}

// percent converts a fractional quality to the integer JPEG scale, working in
// whole numbers so the step loop cannot drift below the floor.
func percent(q float64) int {
	p := int(math.Round(q * 100))
	if p < 1 {
		return 1
	}
	if p > 100 {
		return 100
	}
	return p
}
