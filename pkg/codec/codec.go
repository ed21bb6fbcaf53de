// Package codec holds the pure image transforms used by the blob store:
// budgeted JPEG compression, fill-and-crop thumbnails and format sniffing.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"math"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrEmptyImage        = errors.New("image has no pixels")
)

type Codec struct {
	opts Options
}

func New(opts Options) (*Codec, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid codec options: %w", err)
	}
	return &Codec{opts: opts}, nil
}

func (c *Codec) Options() Options {
	return c.opts
}

// Compress scales img down so its long edge fits MaxDimension and re-encodes
// it as JPEG, lowering quality step by step while the result exceeds MaxBytes.
// Once the quality floor is reached the floor result is returned as is, so
// MaxBytes is a target and not a guarantee.
func (c *Codec) Compress(img image.Image) (image.Image, []byte, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, nil, ErrEmptyImage
	}

	scaled := c.fit(img)

	quality := percent(c.opts.InitialQuality)
	floor := percent(c.opts.MinQuality)
	step := percent(c.opts.QualityStep)

	data, err := encodeJPEG(scaled, quality)
	if err != nil {
		return nil, nil, err
	}

	for len(data) > c.opts.MaxBytes && quality > floor {
		quality -= step
		if quality < floor {
			quality = floor
		}

		data, err = encodeJPEG(scaled, quality)
		if err != nil {
			return nil, nil, err
		}
	}

	out, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode compressed image: %w", err)
	}

	return out, data, nil
}

// Thumbnail scales img to cover a ThumbnailSize square and crops the overflow
// around the centre.
func (c *Codec) Thumbnail(img image.Image) (image.Image, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}

	size := c.opts.ThumbnailSize
	return imaging.Fill(img, size, size, imaging.Center, imaging.Lanczos), nil
}

// ThumbnailJPEG renders the thumbnail and encodes it at the initial quality.
func (c *Codec) ThumbnailJPEG(img image.Image) ([]byte, error) {
	thumb, err := c.Thumbnail(img)
	if err != nil {
		return nil, err
	}
	return encodeJPEG(thumb, percent(c.opts.InitialQuality))
}

// Encode re-encodes img for export. GIF requests are written as JPEG.
func (c *Codec) Encode(img image.Image, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "jpg", "jpeg", "gif":
		// TODO: real GIF export once animated stickers are supported; still frames go out as JPEG.
		return encodeJPEG(img, percent(c.opts.InitialQuality))
	case "png":
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
			return nil, fmt.Errorf("failed to encode png: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func (c *Codec) fit(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	limit := c.opts.MaxDimension

	if w <= limit && h <= limit {
		return img
	}

	scale := float64(limit) / float64(max(w, h))
	nw := max(1, int(math.Round(float64(w)*scale)))
	nh := max(1, int(math.Round(float64(h)*scale)))

	return imaging.Resize(img, nw, nh, imaging.Lanczos)
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg at quality %d: %w", quality, err)
	}
	return buf.Bytes(), nil
}

// Decode reads any registered raster format and applies EXIF orientation.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}
