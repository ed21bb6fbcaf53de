package library

import (
	"context"
	"fmt"
	"strings"

	"github.com/mwantia/stickerbox/pkg/db/models"
)

// Rename changes the display filename. Surrounding whitespace is trimmed and
// renaming to the current name succeeds without writing.
func (l *Library) Rename(ctx context.Context, id, newName string) (*models.Sticker, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, ErrEmptyName
	}

	sticker, err := l.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if sticker.Filename == newName {
		return sticker, nil
	}

	exists, err := l.meta.FilenameExists(ctx, newName, id)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrFilenameTaken, newName)
	}

	sticker.Filename = newName
	return l.update(ctx, sticker)
}

// SetTags replaces the tag list of a sticker.
func (l *Library) SetTags(ctx context.Context, id string, tags []string) (*models.Sticker, error) {
	sticker, err := l.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	sticker.Tags = NormalizeTags(tags)
	return l.update(ctx, sticker)
}

// AddTags appends tags the sticker does not carry yet.
func (l *Library) AddTags(ctx context.Context, id string, tags []string) (*models.Sticker, error) {
	sticker, err := l.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	sticker.Tags = NormalizeTags(append(sticker.Tags, tags...))
	return l.update(ctx, sticker)
}

// RemoveTags drops the named tags from a sticker. When the sticker carries
// none of them the record is returned unchanged and nothing is written.
func (l *Library) RemoveTags(ctx context.Context, id string, tags []string) (*models.Sticker, error) {
	sticker, err := l.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	drop := make(map[string]bool, len(tags))
	for _, tag := range tags {
		if name := strings.TrimSpace(tag); sticker.HasTag(name) {
			drop[name] = true
		}
	}
	if len(drop) == 0 {
		return sticker, nil
	}

	kept := sticker.Tags[:0]
	for _, tag := range sticker.Tags {
		if !drop[tag] {
			kept = append(kept, tag)
		}
	}
	sticker.Tags = kept
	return l.update(ctx, sticker)
}

func (l *Library) TogglePin(ctx context.Context, id string) (*models.Sticker, error) {
	sticker, err := l.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	sticker.IsPinned = !sticker.IsPinned
	return l.update(ctx, sticker)
}

func (l *Library) ToggleFavorite(ctx context.Context, id string) (*models.Sticker, error) {
	sticker, err := l.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	sticker.IsFavorite = !sticker.IsFavorite
	return l.update(ctx, sticker)
}

func (l *Library) update(ctx context.Context, sticker *models.Sticker) (*models.Sticker, error) {
	sticker.ModifiedAt = l.now().Unix()
	if err := l.meta.UpdateSticker(ctx, sticker); err != nil {
		return nil, err
	}
	return sticker, nil
}

// Delete removes the record first and the files second. If removing the
// files fails the record stays deleted and the error is returned.
func (l *Library) Delete(ctx context.Context, id string) error {
	sticker, err := l.fetch(ctx, id)
	if err != nil {
		return err
	}

	if err := l.meta.DeleteSticker(ctx, id); err != nil {
		return err
	}

	if err := l.blobs.DeleteBlobs(sticker); err != nil {
		return fmt.Errorf("record of '%s' deleted but files remain: %w", id, err)
	}

	l.log.Info("Deleted '%s' (%s)", sticker.Filename, id)
	return nil
}

// DeleteMany deletes every id in turn and keeps going after failures. It
// returns a *BatchError when at least one deletion failed.
func (l *Library) DeleteMany(ctx context.Context, ids []string) error {
	batch := &BatchError{Total: len(ids)}

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			batch.Failed += len(ids) - i
			batch.Errs = append(batch.Errs, err)
			break
		}
		if err := l.Delete(ctx, id); err != nil {
			l.log.Warn("Unable to delete '%s': %v", id, err)
			batch.Failed++
			batch.Errs = append(batch.Errs, err)
		}
	}

	if batch.Failed > 0 {
		return batch
	}
	return nil
}
