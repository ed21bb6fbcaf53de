package archive

import (
	"archive/zip"
	"fmt"
	"os"
	"path"
	"strings"
)

// Writer builds a ZIP file on disk. Entry names are made unique by appending
// _<n> before the extension.
type Writer struct {
	file  *os.File
	zw    *zip.Writer
	names map[string]int
	count int
}

func Create(dst string) (*Writer, error) {
	f, err := os.Create(dst)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive '%s': %w", dst, err)
	}

	return &Writer{
		file:  f,
		zw:    zip.NewWriter(f),
		names: make(map[string]int),
	}, nil
}

// Add stores data under name (or a disambiguated variant) and returns the
// entry name actually used.
func (w *Writer) Add(name string, data []byte) (string, error) {
	entry := w.uniqueName(path.Base(strings.ReplaceAll(name, "\\", "/")))

	fw, err := w.zw.Create(entry)
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(data); err != nil {
		return "", err
	}

	w.count++
	return entry, nil
}

func (w *Writer) Count() int {
	return w.count
}

func (w *Writer) Close() error {
	if err := w.zw.Close(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

func (w *Writer) uniqueName(name string) string {
	last, taken := w.names[name]
	if !taken {
		w.names[name] = 0
		return name
	}

	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for n := last + 1; ; n++ {
		candidate := fmt.Sprintf("%s_%d%s", base, n, ext)
		if _, taken := w.names[candidate]; !taken {
			w.names[name] = n
			w.names[candidate] = 0
			return candidate
		}
	}
}
