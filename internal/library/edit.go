package library

import (
	"context"
	"fmt"

	"github.com/mwantia/stickerbox/internal/settings"
	"github.com/mwantia/stickerbox/pkg/codec"
	"github.com/mwantia/stickerbox/pkg/db/models"
)

// SaveEdited stores an edited rendering as a new sticker. The original is
// never modified; originalID may be empty when there is no source sticker.
func (l *Library) SaveEdited(ctx context.Context, originalID string, data []byte) (*models.Sticker, error) {
	unix := l.now().Unix()
	filename := fmt.Sprintf("edited_%d.jpg", unix)

	if originalID != "" {
		original, err := l.fetch(ctx, originalID)
		if err != nil {
			return nil, err
		}
		filename = fmt.Sprintf("%s_edited_%d.jpg", codec.Base(original.Filename), unix)
	}

	return l.Import(ctx, data, filename, nil)
}

// ReplaceImage swaps the image of an existing sticker in place. The id,
// filename and tags stay; path, size and dimensions follow the new image.
// The previous original is removed only after the record points at the new
// one; a failed update leaves the sticker exactly as it was.
func (l *Library) ReplaceImage(ctx context.Context, id string, data []byte) (*models.Sticker, error) {
	original, err := l.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	img, err := codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}

	updated, err := l.blobs.SaveEditedImage(ctx, img, original)
	if err != nil {
		return nil, err
	}

	if err := l.meta.UpdateSticker(ctx, updated); err != nil {
		if rbErr := l.blobs.RevertEdit(updated, original); rbErr != nil {
			l.log.Warn("Unable to revert edit of '%s': %v", id, rbErr)
		}
		return nil, err
	}

	if updated.RelativePath != original.RelativePath {
		if err := l.blobs.RemoveOriginal(original.RelativePath); err != nil {
			l.log.Warn("Unable to remove previous original '%s': %v", original.RelativePath, err)
		}
	}
	return updated, nil
}

// GenerateImage asks the generator for a new image, optionally based on the
// stored image of baseID. Nothing is saved.
func (l *Library) GenerateImage(ctx context.Context, prompt, baseID string) ([]byte, error) {
	if l.generator == nil || l.settings == nil {
		return nil, ErrGeneratorMissing
	}

	cfg, err := settings.LoadAIConfig(ctx, l.settings)
	if err != nil {
		return nil, err
	}

	var base []byte
	if baseID != "" {
		sticker, err := l.fetch(ctx, baseID)
		if err != nil {
			return nil, err
		}
		if base, err = l.blobs.ReadImage(sticker.RelativePath); err != nil {
			return nil, err
		}
	}

	return l.generator.Generate(ctx, prompt, base, cfg)
}

// SaveGenerated stores generated image bytes as AI_generated_<unix>.jpg.
func (l *Library) SaveGenerated(ctx context.Context, data []byte, tags []string) (*models.Sticker, error) {
	filename := fmt.Sprintf("AI_generated_%d.jpg", l.now().Unix())
	return l.Import(ctx, data, filename, tags)
}

// Generate runs GenerateImage and saves the result.
func (l *Library) Generate(ctx context.Context, prompt, baseID string, tags []string) (*models.Sticker, error) {
	data, err := l.GenerateImage(ctx, prompt, baseID)
	if err != nil {
		return nil, err
	}
	return l.SaveGenerated(ctx, data, tags)
}
