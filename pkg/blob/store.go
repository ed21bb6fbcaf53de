// Package blob persists sticker images on disk: one compressed original per
// sticker under the originals directory and one square JPEG thumbnail per id
// under the thumbnails directory.
package blob

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mwantia/stickerbox/pkg/codec"
	"github.com/mwantia/stickerbox/pkg/db/models"
	"github.com/mwantia/stickerbox/pkg/log"
)

var (
	ErrCompressionFailed = errors.New("image compression failed")
	ErrThumbnailFailed   = errors.New("thumbnail generation failed")
	ErrImageNotFound     = errors.New("image not found")
	ErrWriteFailed       = errors.New("failed to write image")
)

const (
	DefaultOriginalsDir  = "stickers"
	DefaultThumbnailsDir = "thumbnails"
)

type Config struct {
	Root          string
	OriginalsDir  string
	ThumbnailsDir string
	// TempDir receives exports; empty means os.TempDir().
	TempDir string
}

// Store owns the blob root. All operations are serialised.
type Store struct {
	mutex sync.Mutex

	originals  string
	thumbnails string
	tempDir    string

	codec *codec.Codec
	log   log.LoggerService

	now   func() time.Time
	newID func() string
}

// New creates both blob directories if needed.
func New(cfg Config, c *codec.Codec, logger log.LoggerService) (*Store, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("blob root is required")
	}
	if c == nil {
		return nil, fmt.Errorf("codec is required")
	}
	if logger == nil {
		logger = log.Nop()
	}
	if cfg.OriginalsDir == "" {
		cfg.OriginalsDir = DefaultOriginalsDir
	}
	if cfg.ThumbnailsDir == "" {
		cfg.ThumbnailsDir = DefaultThumbnailsDir
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}

	s := &Store{
		originals:  filepath.Join(cfg.Root, cfg.OriginalsDir),
		thumbnails: filepath.Join(cfg.Root, cfg.ThumbnailsDir),
		tempDir:    cfg.TempDir,
		codec:      c,
		log:        logger,
		now:        time.Now,
		newID:      newStickerID,
	}

	if err := s.ensureDirs(); err != nil {
		return nil, err
	}
	return s, nil
}

// newStickerID returns an uppercase UUID, the form existing libraries use.
func newStickerID() string {
	return strings.ToUpper(uuid.NewString())
}

func (s *Store) ensureDirs() error {
	for _, dir := range []string{s.originals, s.thumbnails} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory '%s': %w", dir, err)
		}
	}
	return nil
}

func (s *Store) OriginalsDir() string {
	return s.originals
}

func (s *Store) ThumbnailsDir() string {
	return s.thumbnails
}

func (s *Store) originalPath(relPath string) string {
	return filepath.Join(s.originals, filepath.Base(relPath))
}

func (s *Store) thumbnailPath(id string) string {
	return filepath.Join(s.thumbnails, models.ThumbnailName(id))
}

// SaveImage compresses img, writes it as <id>.<ext> and writes its thumbnail.
// The returned sticker is not persisted in the metadata store.
func (s *Store) SaveImage(ctx context.Context, img image.Image, filename string) (*models.Sticker, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ext := codec.Ext(filename)
	if ext == "" {
		ext = "jpg"
	}

	compressed, data, err := s.codec.Compress(img)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompressionFailed, err)
	}

	id := s.newID()
	relPath := id + "." + ext
	if err := writeAtomic(s.originalPath(relPath), data); err != nil {
		return nil, err
	}

	if err := s.writeThumbnail(id, compressed); err != nil {
		if rmErr := os.Remove(s.originalPath(relPath)); rmErr != nil {
			s.log.Warn("Unable to remove original '%s' after thumbnail failure: %v", relPath, rmErr)
		}
		return nil, err
	}

	now := s.now().Unix()
	bounds := compressed.Bounds()
	s.log.Debug("Saved '%s' as '%s' (%d bytes, %dx%d)", filename, relPath, len(data), bounds.Dx(), bounds.Dy())

	return &models.Sticker{
		ID:           id,
		Filename:     filename,
		RelativePath: relPath,
		FileSize:     int64(len(data)),
		Width:        bounds.Dx(),
		Height:       bounds.Dy(),
		Format:       ext,
		CreatedAt:    now,
		ModifiedAt:   now,
		Tags:         []string{},
	}, nil
}

// SaveEditedImage writes img as a new edit_<unix>.jpg original for an
// existing sticker and replaces its thumbnail. The previous original stays on
// disk until the caller commits with RemoveOriginal or undoes with
// RevertEdit. The returned copy carries the new path, size and dimensions;
// original is left untouched.
func (s *Store) SaveEditedImage(ctx context.Context, img image.Image, original *models.Sticker) (*models.Sticker, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if original == nil {
		return nil, fmt.Errorf("original sticker is required")
	}

	compressed, data, err := s.codec.Compress(img)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompressionFailed, err)
	}

	now := s.now().Unix()
	relPath := s.editName(now)
	if err := writeAtomic(s.originalPath(relPath), data); err != nil {
		return nil, err
	}

	if err := s.writeThumbnail(original.ID, compressed); err != nil {
		if rmErr := os.Remove(s.originalPath(relPath)); rmErr != nil {
			s.log.Warn("Unable to remove edit '%s' after thumbnail failure: %v", relPath, rmErr)
		}
		return nil, err
	}

	bounds := compressed.Bounds()
	updated := original.Clone()
	updated.RelativePath = relPath
	updated.FileSize = int64(len(data))
	updated.Width = bounds.Dx()
	updated.Height = bounds.Dy()
	updated.Format = "jpg"
	updated.ModifiedAt = now

	return updated, nil
}

// RemoveOriginal deletes a stored original that no record references any
// more. A missing file is not an error.
func (s *Store) RemoveOriginal(relPath string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if relPath == "" {
		return nil
	}
	if err := os.Remove(s.originalPath(relPath)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove '%s': %w", relPath, err)
	}
	return nil
}

// RevertEdit undoes SaveEditedImage: the edited original is removed and the
// thumbnail is rebuilt from the original that is still referenced.
func (s *Store) RevertEdit(edited, original *models.Sticker) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if edited.RelativePath != "" && edited.RelativePath != original.RelativePath {
		if err := os.Remove(s.originalPath(edited.RelativePath)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove edit '%s': %w", edited.RelativePath, err)
		}
	}

	img := s.decodeFile(s.originalPath(original.RelativePath))
	if img == nil {
		return fmt.Errorf("%w: %s", ErrImageNotFound, original.RelativePath)
	}
	return s.writeThumbnail(original.ID, img)
}

func (s *Store) editName(unix int64) string {
	name := fmt.Sprintf("edit_%d.jpg", unix)
	for n := 1; fileExists(s.originalPath(name)); n++ {
		name = fmt.Sprintf("edit_%d_%d.jpg", unix, n)
	}
	return name
}

func (s *Store) writeThumbnail(id string, img image.Image) error {
	data, err := s.codec.ThumbnailJPEG(img)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrThumbnailFailed, err)
	}
	if err := writeAtomic(s.thumbnailPath(id), data); err != nil {
		return fmt.Errorf("%w: %w", ErrThumbnailFailed, err)
	}
	return nil
}

// LoadImage returns nil when the original is missing or undecodable.
func (s *Store) LoadImage(relPath string) image.Image {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.decodeFile(s.originalPath(relPath))
}

// LoadThumbnail returns nil when the thumbnail is missing or undecodable.
func (s *Store) LoadThumbnail(id string) image.Image {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.decodeFile(s.thumbnailPath(id))
}

func (s *Store) decodeFile(path string) image.Image {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("Unable to read '%s': %v", path, err)
		}
		return nil
	}

	img, err := codec.Decode(data)
	if err != nil {
		s.log.Warn("Unable to decode '%s': %v", path, err)
		return nil
	}
	return img
}

// ReadImage returns the stored bytes of an original.
func (s *Store) ReadImage(relPath string) ([]byte, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.readOriginal(relPath)
}

func (s *Store) readOriginal(relPath string) ([]byte, error) {
	data, err := os.ReadFile(s.originalPath(relPath))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrImageNotFound, relPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read '%s': %w", relPath, err)
	}
	return data, nil
}

// DeleteBlobs removes the original and thumbnail of sticker. Missing files
// are not an error.
func (s *Store) DeleteBlobs(sticker *models.Sticker) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	paths := []string{s.thumbnailPath(sticker.ID)}
	if sticker.RelativePath != "" {
		paths = append([]string{s.originalPath(sticker.RelativePath)}, paths...)
	}

	for _, path := range paths {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove '%s': %w", path, err)
		}
	}

	s.log.Debug("Removed blobs of '%s'", sticker.ID)
	return nil
}

// WipeAll removes every original and thumbnail and recreates the empty
// directories. Nothing else under the root is touched.
func (s *Store) WipeAll() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, dir := range []string{s.originals, s.thumbnails} {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to remove '%s': %w", dir, err)
		}
	}
	return s.ensureDirs()
}

// writeAtomic writes through a temporary file in the same directory so a
// crash never leaves a truncated image behind.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
