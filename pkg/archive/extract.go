// Package archive reads and writes the ZIP bundles stickers are imported from
// and exported to.
package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var ErrIllegalPath = errors.New("archive entry escapes destination")

// Extract unpacks the ZIP at src into dst. Entries resolving outside dst are
// rejected and nothing further is extracted.
func Extract(ctx context.Context, src, dst string) error {
	zr, err := zip.OpenReader(src)
	if errors.Is(err, zip.ErrInsecurePath) {
		zr.Close()
		return fmt.Errorf("%w: %w", ErrIllegalPath, err)
	}
	if err != nil {
		return fmt.Errorf("failed to open archive '%s': %w", src, err)
	}
	defer zr.Close()

	root, err := filepath.Abs(dst)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return err
	}

	for _, f := range zr.File {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		destPath, err := entryPath(root, f.Name)
		if err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(destPath, 0o755); err != nil {
				return err
			}
			continue
		}

		if err := extractFile(f, destPath); err != nil {
			return fmt.Errorf("failed to extract '%s': %w", f.Name, err)
		}
	}

	return nil
}

func entryPath(root, name string) (string, error) {
	destPath := filepath.Join(root, filepath.FromSlash(name))
	if destPath != root && !strings.HasPrefix(destPath, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s", ErrIllegalPath, name)
	}
	return destPath, nil
}

func extractFile(f *zip.File, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return err
	}

	if _, err := io.Copy(dst, rc); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

// Extractor unpacks archives into fresh scratch directories. The caller owns
// the returned directory and removes it when done.
type Extractor struct {
	TempDir string
}

func NewExtractor(tempDir string) *Extractor {
	return &Extractor{TempDir: tempDir}
}

func (e *Extractor) Extract(ctx context.Context, archivePath string) (string, error) {
	dir, err := os.MkdirTemp(e.TempDir, "stickerbox-unzip-*")
	if err != nil {
		return "", fmt.Errorf("failed to create scratch directory: %w", err)
	}

	if err := Extract(ctx, archivePath, dir); err != nil {
		os.RemoveAll(dir)
		return "", err
	}
	return dir, nil
}
