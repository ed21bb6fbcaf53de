// Package library coordinates the blob store and the metadata store so that
// every sticker has both its files and its record, in a fixed order: files
// are written before records are inserted, and records are deleted before
// files are removed.
package library

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/mwantia/stickerbox/internal/settings"
	"github.com/mwantia/stickerbox/pkg/blob"
	"github.com/mwantia/stickerbox/pkg/db/models"
	"github.com/mwantia/stickerbox/pkg/log"
)

var (
	ErrEmptyName        = errors.New("filename must not be empty")
	ErrFilenameTaken    = errors.New("filename is already in use")
	ErrStickerNotFound  = errors.New("sticker not found")
	ErrInvalidImage     = errors.New("data is not a supported image")
	ErrNoImagesFound    = errors.New("no images found")
	ErrUnzipFailed      = errors.New("failed to unzip archive")
	ErrGeneratorMissing = errors.New("image generation is not configured")
)

// MetadataStore is the subset of the metadata store the library needs.
type MetadataStore interface {
	InsertSticker(ctx context.Context, sticker *models.Sticker) error
	InsertStickers(ctx context.Context, stickers []*models.Sticker) error
	UpdateSticker(ctx context.Context, sticker *models.Sticker) error
	DeleteSticker(ctx context.Context, id string) error
	FetchAllStickers(ctx context.Context) ([]*models.Sticker, error)
	FetchSticker(ctx context.Context, id string) (*models.Sticker, error)
	FilenameExists(ctx context.Context, filename, excludingID string) (bool, error)
	SearchStickers(ctx context.Context, query string) ([]*models.Sticker, error)
	SearchStickersByTag(ctx context.Context, query string) ([]*models.Sticker, error)
	SearchTagNames(ctx context.Context, query string, limit int) ([]string, error)
	FetchAllTags(ctx context.Context) ([]models.Tag, error)
	ClearAllData(ctx context.Context) error
}

// BlobStore is the subset of the blob store the library needs.
type BlobStore interface {
	SaveImage(ctx context.Context, img image.Image, filename string) (*models.Sticker, error)
	SaveEditedImage(ctx context.Context, img image.Image, original *models.Sticker) (*models.Sticker, error)
	RemoveOriginal(relPath string) error
	RevertEdit(edited, original *models.Sticker) error
	LoadImage(relPath string) image.Image
	LoadThumbnail(id string) image.Image
	ReadImage(relPath string) ([]byte, error)
	DeleteBlobs(sticker *models.Sticker) error
	ExportTemporary(sticker *models.Sticker, format string) (string, error)
	ExportArchive(stickers []*models.Sticker) (string, error)
	StorageInfo() (blob.StorageInfo, error)
	WipeAll() error
}

// Extractor unpacks an archive into a scratch directory owned by the caller.
type Extractor interface {
	Extract(ctx context.Context, archivePath string) (string, error)
}

// Generator produces image bytes from a prompt and an optional base image.
type Generator interface {
	Generate(ctx context.Context, prompt string, baseImage []byte, cfg settings.AIConfig) ([]byte, error)
}

type Dependencies struct {
	Metadata  MetadataStore
	Blobs     BlobStore
	Extractor Extractor
	Generator Generator
	Settings  settings.Repository
	Logger    log.LoggerService
}

type Library struct {
	meta      MetadataStore
	blobs     BlobStore
	extractor Extractor
	generator Generator
	settings  settings.Repository
	log       log.LoggerService

	now          func() time.Time
	randomSuffix func() (string, error)
}

func New(deps Dependencies) (*Library, error) {
	if deps.Metadata == nil {
		return nil, fmt.Errorf("metadata store is required")
	}
	if deps.Blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if deps.Logger == nil {
		deps.Logger = log.Nop()
	}

	return &Library{
		meta:         deps.Metadata,
		blobs:        deps.Blobs,
		extractor:    deps.Extractor,
		generator:    deps.Generator,
		settings:     deps.Settings,
		log:          deps.Logger,
		now:          time.Now,
		randomSuffix: randomSuffix,
	}, nil
}

func randomSuffix() (string, error) {
	return gonanoid.Generate("0123456789ABCDEF", 8)
}

// fetch returns the sticker or ErrStickerNotFound.
func (l *Library) fetch(ctx context.Context, id string) (*models.Sticker, error) {
	sticker, err := l.meta.FetchSticker(ctx, id)
	if err != nil {
		return nil, err
	}
	if sticker == nil {
		return nil, fmt.Errorf("%w: %s", ErrStickerNotFound, id)
	}
	return sticker, nil
}

// NormalizeTags trims every tag and drops empty and repeated names, keeping
// the first occurrence order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

// BatchError reports how many items of a batch operation failed.
type BatchError struct {
	Failed int
	Total  int
	Errs   []error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%d of %d operations failed", e.Failed, e.Total)
}

func (e *BatchError) Unwrap() []error {
	return e.Errs
}
