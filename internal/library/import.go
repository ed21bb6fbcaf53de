package library

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mwantia/stickerbox/pkg/codec"
	"github.com/mwantia/stickerbox/pkg/db/models"
)

// Source is one in-memory image handed over for import.
type Source struct {
	Data []byte
}

type ImportResult struct {
	Stickers []*models.Sticker
	Failed   int
	Skipped  int
	// HasGIF is set when any imported file was a GIF. Only the first frame
	// is kept.
	HasGIF bool
	Errors []error
}

// Err joins every per-item error, or returns nil.
func (r *ImportResult) Err() error {
	return errors.Join(r.Errors...)
}

func (r *ImportResult) fail(err error) {
	r.Failed++
	r.Errors = append(r.Errors, err)
}

// Import stores one image under filename with the given tags. The filename
// is used as is.
func (l *Library) Import(ctx context.Context, data []byte, filename string, tags []string) (*models.Sticker, error) {
	sticker, err := l.save(ctx, data, filename)
	if err != nil {
		return nil, err
	}

	sticker.Tags = NormalizeTags(tags)
	if err := l.meta.InsertSticker(ctx, sticker); err != nil {
		l.discard(sticker)
		return nil, err
	}

	l.log.Info("Imported '%s' as '%s'", filename, sticker.ID)
	return sticker, nil
}

// save decodes data and writes it to the blob store.
func (l *Library) save(ctx context.Context, data []byte, filename string) (*models.Sticker, error) {
	img, err := codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidImage, filename, err)
	}
	return l.blobs.SaveImage(ctx, img, filename)
}

// discard removes blobs whose record could not be inserted.
func (l *Library) discard(stickers ...*models.Sticker) {
	for _, sticker := range stickers {
		if err := l.blobs.DeleteBlobs(sticker); err != nil {
			l.log.Warn("Unable to remove blobs of '%s': %v", sticker.ID, err)
		}
	}
}

// ImportPhotos imports images picked from a photo library. They are named
// photo_<unix>_<index>.jpg without collision checks and inserted together
// once all files are written.
func (l *Library) ImportPhotos(ctx context.Context, sources []Source) (*ImportResult, error) {
	result := &ImportResult{}
	unix := l.now().Unix()

	for index, src := range sources {
		if ctx.Err() != nil {
			break
		}

		if codec.IsGIF(src.Data) {
			result.HasGIF = true
		}

		filename := fmt.Sprintf("photo_%d_%d.jpg", unix, index)
		sticker, err := l.save(ctx, src.Data, filename)
		if err != nil {
			l.log.Warn("Skipping photo %d: %v", index, err)
			result.fail(err)
			continue
		}
		result.Stickers = append(result.Stickers, sticker)
	}

	return result, errors.Join(l.persist(ctx, result), ctx.Err())
}

// ImportDocuments imports image files and ZIP archives from disk. Every
// imported image gets a filename that is unique in the library and within
// the batch.
func (l *Library) ImportDocuments(ctx context.Context, paths []string) (*ImportResult, error) {
	result := &ImportResult{}
	reserved := make(map[string]bool)

	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}

		switch ext := codec.Ext(path); {
		case ext == "zip":
			l.importArchive(ctx, path, reserved, result)
		case codec.IsImageFile(path):
			l.importFile(ctx, path, reserved, result)
		default:
			l.log.Warn("Unsupported file type '%s': %s", ext, path)
			result.Skipped++
		}
	}

	return result, errors.Join(l.persist(ctx, result), ctx.Err())
}

func (l *Library) importFile(ctx context.Context, path string, reserved map[string]bool, result *ImportResult) {
	data, err := os.ReadFile(path)
	if err != nil {
		result.fail(fmt.Errorf("failed to read '%s': %w", path, err))
		return
	}

	if codec.Ext(path) == "gif" || codec.IsGIF(data) {
		result.HasGIF = true
	}

	filename := l.uniqueFilename(ctx, filepath.Base(path), reserved)
	sticker, err := l.save(ctx, data, filename)
	if err != nil {
		l.log.Warn("Skipping '%s': %v", path, err)
		delete(reserved, filename)
		result.fail(err)
		return
	}
	result.Stickers = append(result.Stickers, sticker)
}

func (l *Library) importArchive(ctx context.Context, path string, reserved map[string]bool, result *ImportResult) {
	if l.extractor == nil {
		result.fail(fmt.Errorf("%w: %s: no extractor configured", ErrUnzipFailed, path))
		return
	}

	dir, err := l.extractor.Extract(ctx, path)
	if err != nil {
		result.fail(fmt.Errorf("%w: %s: %w", ErrUnzipFailed, path, err))
		return
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			l.log.Warn("Unable to remove scratch directory '%s': %v", dir, err)
		}
	}()

	images, err := findImages(dir)
	if err != nil {
		result.fail(fmt.Errorf("%w: %s: %w", ErrUnzipFailed, path, err))
		return
	}
	if len(images) == 0 {
		result.fail(fmt.Errorf("%w in '%s'", ErrNoImagesFound, path))
		return
	}

	l.log.Debug("Found %d images in '%s'", len(images), path)
	for _, image := range images {
		if ctx.Err() != nil {
			return
		}
		l.importFile(ctx, image, reserved, result)
	}
}

// findImages lists importable files below dir in lexical order, skipping
// hidden entries and macOS resource forks.
func findImages(dir string) ([]string, error) {
	var images []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		name := d.Name()
		if path != dir && (strings.HasPrefix(name, ".") || name == "__MACOSX") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.IsDir() && codec.IsImageFile(name) {
			images = append(images, path)
		}
		return nil
	})
	return images, err
}

// persist inserts the written stickers in one batch, even after ctx was
// cancelled, so files already written get their records. On failure the
// blobs of stickers that did not make it into the store are removed and
// counted as failed; result.Stickers keeps only the committed ones.
func (l *Library) persist(ctx context.Context, result *ImportResult) error {
	if len(result.Stickers) == 0 {
		return nil
	}
	ctx = context.WithoutCancel(ctx)

	if err := l.meta.InsertStickers(ctx, result.Stickers); err != nil {
		committed := l.committed(ctx, result.Stickers)
		var kept, lost []*models.Sticker
		for _, sticker := range result.Stickers {
			if committed[sticker.ID] {
				kept = append(kept, sticker)
			} else {
				lost = append(lost, sticker)
			}
		}
		l.discard(lost...)

		err = fmt.Errorf("failed to save imported stickers: %w", err)
		result.Stickers = kept
		result.Failed += len(lost)
		result.Errors = append(result.Errors, err)
		return err
	}

	l.log.Info("Imported %d stickers (%d failed, %d skipped)", len(result.Stickers), result.Failed, result.Skipped)
	return nil
}

func (l *Library) committed(ctx context.Context, stickers []*models.Sticker) map[string]bool {
	out := make(map[string]bool)
	for _, sticker := range stickers {
		if found, err := l.meta.FetchSticker(ctx, sticker.ID); err == nil && found != nil {
			out[sticker.ID] = true
		}
	}
	return out
}

// UniqueFilename returns name if no sticker uses it. Otherwise it tries
// <base>_<unix>.<ext> and finally <base>_<random>.<ext> without checking
// again. If the lookup itself fails the timestamp form is used.
func (l *Library) UniqueFilename(ctx context.Context, name string) string {
	return l.uniqueFilename(ctx, name, nil)
}

func (l *Library) uniqueFilename(ctx context.Context, name string, reserved map[string]bool) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	timestamped := fmt.Sprintf("%s_%d%s", base, l.now().Unix(), ext)

	chosen, err := l.pickFilename(ctx, name, timestamped, base, ext, reserved)
	if err != nil {
		l.log.Warn("Unable to check filename '%s': %v", name, err)
		chosen = timestamped
	}

	if reserved != nil {
		reserved[chosen] = true
	}
	return chosen
}

func (l *Library) pickFilename(ctx context.Context, name, timestamped, base, ext string, reserved map[string]bool) (string, error) {
	taken := func(candidate string) (bool, error) {
		if reserved[candidate] {
			return true, nil
		}
		return l.meta.FilenameExists(ctx, candidate, "")
	}

	exists, err := taken(name)
	if err != nil || !exists {
		return name, err
	}

	exists, err = taken(timestamped)
	if err != nil || !exists {
		return timestamped, err
	}

	suffix, err := l.randomSuffix()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s_%s%s", base, suffix, ext), nil
}
