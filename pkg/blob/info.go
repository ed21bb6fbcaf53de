package blob

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
)

type StorageInfo struct {
	TotalSize int64
	FileCount int
}

func (i StorageInfo) FormattedSize() string {
	return humanize.Bytes(uint64(max(i.TotalSize, 0)))
}

// StorageInfo sums file sizes under both blob directories. FileCount only
// counts originals.
func (s *Store) StorageInfo() (StorageInfo, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var info StorageInfo

	originals, count, err := dirSize(s.originals)
	if err != nil {
		return StorageInfo{}, err
	}
	thumbnails, _, err := dirSize(s.thumbnails)
	if err != nil {
		return StorageInfo{}, err
	}

	info.TotalSize = originals + thumbnails
	info.FileCount = count
	return info, nil
}

func dirSize(dir string) (int64, int, error) {
	var size int64
	var count int

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return err
		}
		size += fi.Size()
		count++
		return nil
	})

	return size, count, err
}
