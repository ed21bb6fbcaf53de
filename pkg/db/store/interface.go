package store

import (
	"context"
	"errors"

	"github.com/mwantia/stickerbox/pkg/db/models"
)

var (
	ErrNotInitialized  = errors.New("metadata store is not initialized")
	ErrStickerNotFound = errors.New("sticker not found")
)

// MetadataStore defines the interface for sticker and tag persistence.
// Operations run one at a time in submission order.
type MetadataStore interface {
	// Lifecycle
	Connect(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error
	Health(ctx context.Context) error

	// Sticker writes
	InsertSticker(ctx context.Context, sticker *models.Sticker) error
	InsertStickers(ctx context.Context, stickers []*models.Sticker) error
	UpdateSticker(ctx context.Context, sticker *models.Sticker) error
	DeleteSticker(ctx context.Context, id string) error

	// Sticker reads; Tags is populated on every returned sticker.
	FetchAllStickers(ctx context.Context) ([]*models.Sticker, error)
	FetchSticker(ctx context.Context, id string) (*models.Sticker, error)
	FilenameExists(ctx context.Context, filename, excludingID string) (bool, error)
	SearchStickers(ctx context.Context, query string) ([]*models.Sticker, error)
	SearchStickersByTag(ctx context.Context, query string) ([]*models.Sticker, error)

	// Tag reads
	SearchTagNames(ctx context.Context, query string, limit int) ([]string, error)
	FetchAllTags(ctx context.Context) ([]models.Tag, error)

	ClearAllData(ctx context.Context) error
}
