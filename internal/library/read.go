package library

import (
	"context"
	"image"

	"github.com/mwantia/stickerbox/pkg/blob"
	"github.com/mwantia/stickerbox/pkg/db/models"
)

func (l *Library) List(ctx context.Context) ([]*models.Sticker, error) {
	return l.meta.FetchAllStickers(ctx)
}

func (l *Library) Get(ctx context.Context, id string) (*models.Sticker, error) {
	return l.fetch(ctx, id)
}

// Search matches tag names and filenames; tagsOnly restricts it to tags.
func (l *Library) Search(ctx context.Context, query string, tagsOnly bool) ([]*models.Sticker, error) {
	if tagsOnly {
		return l.meta.SearchStickersByTag(ctx, query)
	}
	return l.meta.SearchStickers(ctx, query)
}

func (l *Library) SuggestTags(ctx context.Context, query string, limit int) ([]string, error) {
	return l.meta.SearchTagNames(ctx, query, limit)
}

func (l *Library) Tags(ctx context.Context) ([]models.Tag, error) {
	return l.meta.FetchAllTags(ctx)
}

func (l *Library) StorageInfo() (blob.StorageInfo, error) {
	return l.blobs.StorageInfo()
}

func (l *Library) LoadImage(sticker *models.Sticker) image.Image {
	return l.blobs.LoadImage(sticker.RelativePath)
}

func (l *Library) LoadThumbnail(id string) image.Image {
	return l.blobs.LoadThumbnail(id)
}

// Export writes a re-encoded copy of the sticker to the temp directory.
func (l *Library) Export(ctx context.Context, id, format string) (string, error) {
	sticker, err := l.fetch(ctx, id)
	if err != nil {
		return "", err
	}
	return l.blobs.ExportTemporary(sticker, format)
}

// ExportArchive bundles the originals of ids into one ZIP. An empty id list
// exports the whole library.
func (l *Library) ExportArchive(ctx context.Context, ids []string) (string, error) {
	var stickers []*models.Sticker
	if len(ids) == 0 {
		all, err := l.meta.FetchAllStickers(ctx)
		if err != nil {
			return "", err
		}
		stickers = all
	} else {
		for _, id := range ids {
			sticker, err := l.fetch(ctx, id)
			if err != nil {
				return "", err
			}
			stickers = append(stickers, sticker)
		}
	}

	if len(stickers) == 0 {
		return "", ErrNoImagesFound
	}
	return l.blobs.ExportArchive(stickers)
}

// WipeAll removes every sticker file and record. AI settings are kept.
func (l *Library) WipeAll(ctx context.Context) error {
	if err := l.blobs.WipeAll(); err != nil {
		return err
	}
	if err := l.meta.ClearAllData(ctx); err != nil {
		return err
	}

	l.log.Warn("Sticker library wiped")
	return nil
}
