package blob

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/mwantia/stickerbox/pkg/archive"
	"github.com/mwantia/stickerbox/pkg/codec"
	"github.com/mwantia/stickerbox/pkg/db/models"
)

// ExportTemporary re-encodes the original of sticker into format and writes
// it to <tmp>/<filename without extension>.<format>, returning the path.
func (s *Store) ExportTemporary(sticker *models.Sticker, format string) (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	format = strings.ToLower(strings.TrimPrefix(format, "."))

	img := s.decodeFile(s.originalPath(sticker.RelativePath))
	if img == nil {
		return "", fmt.Errorf("%w: %s", ErrImageNotFound, sticker.RelativePath)
	}

	data, err := s.codec.Encode(img, format)
	if err != nil {
		return "", err
	}

	dst := filepath.Join(s.tempDir, exportBase(sticker)+"."+format)
	if err := writeAtomic(dst, data); err != nil {
		return "", err
	}

	s.log.Debug("Exported '%s' to '%s'", sticker.ID, dst)
	return dst, nil
}

// exportBase reduces the display filename to a single path element without
// extension. Names that leave nothing usable fall back to the sticker id.
func exportBase(sticker *models.Sticker) string {
	name := path.Base(strings.ReplaceAll(sticker.Filename, "\\", "/"))
	base := codec.Base(name)
	switch base {
	case "", ".", "..", "/":
		return sticker.ID
	}
	return base
}

// ExportArchive bundles the stored originals of stickers into a ZIP in the
// temp directory. Entries use display filenames; stickers without a readable
// original are skipped.
func (s *Store) ExportArchive(stickers []*models.Sticker) (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	path := filepath.Join(s.tempDir, fmt.Sprintf("stickers_%d.zip", s.now().Unix()))
	w, err := archive.Create(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	for _, sticker := range stickers {
		data, err := s.readOriginal(sticker.RelativePath)
		if err != nil {
			s.log.Warn("Skipping '%s' in archive: %v", sticker.Filename, err)
			continue
		}

		name := sticker.Filename
		if name == "" {
			name = sticker.RelativePath
		}
		if _, err := w.Add(name, data); err != nil {
			w.Close()
			os.Remove(path)
			return "", fmt.Errorf("%w: %w", ErrWriteFailed, err)
		}
	}

	count := w.Count()
	if err := w.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	if count == 0 {
		os.Remove(path)
		return "", fmt.Errorf("%w: nothing to export", ErrImageNotFound)
	}

	s.log.Info("Exported %d stickers to '%s'", count, path)
	return path, nil
}
