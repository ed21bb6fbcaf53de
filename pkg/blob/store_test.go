package blob

import (
	"archive/zip"
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/mwantia/stickerbox/pkg/codec"
	"github.com/mwantia/stickerbox/pkg/db/models"
	"github.com/mwantia/stickerbox/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Unix(1700000000, 0)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	root := t.TempDir()

	c, err := codec.New(codec.DefaultOptions())
	require.NoError(t, err)

	s, err := New(Config{Root: root, TempDir: t.TempDir()}, c, log.Nop())
	require.NoError(t, err)
	s.now = func() time.Time { return fixedNow }
	return s, root
}

func testImage(w, h int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

func TestNew_CreatesLayout(t *testing.T) {
	_, root := newTestStore(t)

	assert.DirExists(t, filepath.Join(root, "stickers"))
	assert.DirExists(t, filepath.Join(root, "thumbnails"))
}

func TestNew_Validation(t *testing.T) {
	c, err := codec.New(codec.DefaultOptions())
	require.NoError(t, err)

	_, err = New(Config{}, c, nil)
	assert.Error(t, err)

	_, err = New(Config{Root: t.TempDir()}, nil, nil)
	assert.Error(t, err)
}

func TestSaveImage(t *testing.T) {
	s, root := newTestStore(t)

	sticker, err := s.SaveImage(context.Background(), testImage(2000, 1000), "Cat.PNG")
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^[0-9A-F]{8}-[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{12}$`), sticker.ID)
	assert.Equal(t, "Cat.PNG", sticker.Filename)
	assert.Equal(t, sticker.ID+".png", sticker.RelativePath)
	assert.Equal(t, "png", sticker.Format)
	assert.Equal(t, 1000, sticker.Width)
	assert.Equal(t, 500, sticker.Height)
	assert.Equal(t, fixedNow.Unix(), sticker.CreatedAt)
	assert.Equal(t, sticker.CreatedAt, sticker.ModifiedAt)
	assert.NotNil(t, sticker.Tags)
	assert.Empty(t, sticker.Tags)

	fi, err := os.Stat(filepath.Join(root, "stickers", sticker.RelativePath))
	require.NoError(t, err)
	assert.Equal(t, fi.Size(), sticker.FileSize)

	thumb := s.LoadThumbnail(sticker.ID)
	require.NotNil(t, thumb)
	assert.Equal(t, image.Rect(0, 0, 100, 100), thumb.Bounds())

	assert.NotNil(t, s.LoadImage(sticker.RelativePath))
}

func TestSaveImage_DefaultsToJPG(t *testing.T) {
	s, _ := newTestStore(t)

	sticker, err := s.SaveImage(context.Background(), testImage(10, 10), "noext")
	require.NoError(t, err)
	assert.Equal(t, "jpg", sticker.Format)
	assert.Equal(t, sticker.ID+".jpg", sticker.RelativePath)
}

func TestSaveImage_ThumbnailFailureRemovesOriginal(t *testing.T) {
	s, root := newTestStore(t)

	thumbs := filepath.Join(root, "thumbnails")
	require.NoError(t, os.RemoveAll(thumbs))
	require.NoError(t, os.WriteFile(thumbs, []byte("not a directory"), 0o644))

	_, err := s.SaveImage(context.Background(), testImage(10, 10), "a.jpg")
	assert.ErrorIs(t, err, ErrThumbnailFailed)

	entries, err := os.ReadDir(filepath.Join(root, "stickers"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSaveImage_EmptyImage(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.SaveImage(context.Background(), image.NewNRGBA(image.Rect(0, 0, 0, 0)), "a.jpg")
	assert.ErrorIs(t, err, ErrCompressionFailed)
}

func TestSaveEditedImage(t *testing.T) {
	s, root := newTestStore(t)
	ctx := context.Background()

	original, err := s.SaveImage(ctx, testImage(300, 300), "cat.png")
	require.NoError(t, err)
	original.Tags = []string{"cute"}

	edited, err := s.SaveEditedImage(ctx, testImage(200, 400), original)
	require.NoError(t, err)

	assert.Equal(t, original.ID, edited.ID)
	assert.Equal(t, "edit_1700000000.jpg", edited.RelativePath)
	assert.Equal(t, "jpg", edited.Format)
	assert.Equal(t, 200, edited.Width)
	assert.Equal(t, 400, edited.Height)
	assert.Equal(t, []string{"cute"}, edited.Tags)

	// The input record is not mutated.
	assert.Equal(t, original.ID+".png", original.RelativePath)

	// Both originals exist until the edit is committed.
	assert.FileExists(t, filepath.Join(root, "stickers", original.RelativePath))
	assert.FileExists(t, filepath.Join(root, "stickers", edited.RelativePath))
	assert.FileExists(t, filepath.Join(root, "thumbnails", original.ID+"_thumb.jpg"))

	require.NoError(t, s.RemoveOriginal(original.RelativePath))
	assert.NoFileExists(t, filepath.Join(root, "stickers", original.RelativePath))
	require.NoError(t, s.RemoveOriginal(original.RelativePath), "absence is not an error")

	// A second edit in the same second gets a suffix.
	again, err := s.SaveEditedImage(ctx, testImage(50, 50), edited)
	require.NoError(t, err)
	assert.Equal(t, "edit_1700000000_1.jpg", again.RelativePath)
	assert.FileExists(t, filepath.Join(root, "stickers", edited.RelativePath))
}

func TestRevertEdit(t *testing.T) {
	s, root := newTestStore(t)
	ctx := context.Background()

	original, err := s.SaveImage(ctx, testImage(300, 150), "cat.png")
	require.NoError(t, err)

	edited, err := s.SaveEditedImage(ctx, testImage(100, 400), original)
	require.NoError(t, err)

	thumb := s.LoadThumbnail(original.ID)
	require.NotNil(t, thumb)
	editedThumb := thumb.Bounds()

	require.NoError(t, s.RevertEdit(edited, original))

	assert.Equal(t, []string{original.RelativePath}, dirNames(t, filepath.Join(root, "stickers")))

	thumb = s.LoadThumbnail(original.ID)
	require.NotNil(t, thumb)
	assert.Equal(t, editedThumb, thumb.Bounds(), "thumbnail is rebuilt at the same size")
	assert.NotNil(t, s.LoadImage(original.RelativePath))

	gone := original.Clone()
	gone.RelativePath = "missing.jpg"
	assert.ErrorIs(t, s.RevertEdit(edited, gone), ErrImageNotFound)
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestLoad_MissingOrCorrupt(t *testing.T) {
	s, root := newTestStore(t)

	assert.Nil(t, s.LoadImage("missing.jpg"))
	assert.Nil(t, s.LoadThumbnail("missing"))

	require.NoError(t, os.WriteFile(filepath.Join(root, "stickers", "junk.jpg"), []byte("junk"), 0o644))
	assert.Nil(t, s.LoadImage("junk.jpg"))

	_, err := s.ReadImage("missing.jpg")
	assert.ErrorIs(t, err, ErrImageNotFound)

	data, err := s.ReadImage("junk.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("junk"), data)
}

func TestDeleteBlobs(t *testing.T) {
	s, root := newTestStore(t)

	sticker, err := s.SaveImage(context.Background(), testImage(20, 20), "a.jpg")
	require.NoError(t, err)

	require.NoError(t, s.DeleteBlobs(sticker))
	assert.NoFileExists(t, filepath.Join(root, "stickers", sticker.RelativePath))
	assert.NoFileExists(t, filepath.Join(root, "thumbnails", sticker.ThumbnailName()))

	assert.NoError(t, s.DeleteBlobs(sticker), "absence is not an error")
}

func TestExportTemporary(t *testing.T) {
	s, _ := newTestStore(t)

	sticker, err := s.SaveImage(context.Background(), testImage(40, 40), "party cat.jpg")
	require.NoError(t, err)

	tests := []struct {
		format string
		want   string
	}{
		{"png", "png"},
		{"jpg", "jpeg"},
		{"JPEG", "jpeg"},
		{"gif", "jpeg"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			path, err := s.ExportTemporary(sticker, tt.format)
			require.NoError(t, err)
			assert.Equal(t, "party cat."+strings.ToLower(tt.format), filepath.Base(path))

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, codec.DetectFormat(data))
		})
	}

	_, err = s.ExportTemporary(sticker, "bmp")
	assert.ErrorIs(t, err, codec.ErrUnsupportedFormat)

	_, err = s.ExportTemporary(&models.Sticker{ID: "X", RelativePath: "X.jpg", Filename: "x.jpg"}, "png")
	assert.ErrorIs(t, err, ErrImageNotFound)
}

func TestExportTemporary_UnsafeNames(t *testing.T) {
	s, _ := newTestStore(t)

	sticker, err := s.SaveImage(context.Background(), testImage(20, 20), "cat.jpg")
	require.NoError(t, err)

	tests := []struct {
		filename string
		want     string
	}{
		{"../../escape.png", "escape.png"},
		{"nested/dir/cat.jpg", "cat.png"},
		{`..\..\win.jpg`, "win.png"},
		{"..", sticker.ID + ".png"},
		{"../", sticker.ID + ".png"},
		{"..png", sticker.ID + ".png"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			named := sticker.Clone()
			named.Filename = tt.filename

			path, err := s.ExportTemporary(named, "png")
			require.NoError(t, err)
			assert.Equal(t, s.tempDir, filepath.Dir(path))
			assert.Equal(t, tt.want, filepath.Base(path))
			assert.FileExists(t, path)
		})
	}
}

func TestExportArchive(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	a, err := s.SaveImage(ctx, testImage(20, 20), "cat.jpg")
	require.NoError(t, err)
	b, err := s.SaveImage(ctx, testImage(30, 30), "cat.jpg")
	require.NoError(t, err)
	missing := &models.Sticker{ID: "gone", RelativePath: "gone.jpg", Filename: "gone.jpg"}

	path, err := s.ExportArchive([]*models.Sticker{a, missing, b})
	require.NoError(t, err)
	assert.Equal(t, "stickers_1700000000.zip", filepath.Base(path))

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"cat.jpg", "cat_1.jpg"}, names)

	_, err = s.ExportArchive([]*models.Sticker{missing})
	assert.ErrorIs(t, err, ErrImageNotFound)
}

func TestStorageInfo(t *testing.T) {
	s, root := newTestStore(t)

	info, err := s.StorageInfo()
	require.NoError(t, err)
	assert.Equal(t, StorageInfo{}, info)

	for i := 0; i < 3; i++ {
		_, err := s.SaveImage(context.Background(), testImage(20, 20), "a.jpg")
		require.NoError(t, err)
	}

	info, err = s.StorageInfo()
	require.NoError(t, err)
	assert.Equal(t, 3, info.FileCount)

	var want int64
	for _, dir := range []string{"stickers", "thumbnails"} {
		entries, err := os.ReadDir(filepath.Join(root, dir))
		require.NoError(t, err)
		for _, e := range entries {
			fi, err := e.Info()
			require.NoError(t, err)
			want += fi.Size()
		}
	}
	assert.Equal(t, want, info.TotalSize)
	assert.NotEmpty(t, info.FormattedSize())
}

func TestFormattedSize(t *testing.T) {
	assert.Equal(t, "0 B", StorageInfo{}.FormattedSize())
	assert.Equal(t, "2.0 MB", StorageInfo{TotalSize: 2_000_000}.FormattedSize())
}

func TestWipeAll(t *testing.T) {
	s, root := newTestStore(t)

	other := filepath.Join(root, "stickers.db")
	require.NoError(t, os.WriteFile(other, []byte("db"), 0o644))

	_, err := s.SaveImage(context.Background(), testImage(20, 20), "a.jpg")
	require.NoError(t, err)

	require.NoError(t, s.WipeAll())

	for _, dir := range []string{"stickers", "thumbnails"} {
		entries, err := os.ReadDir(filepath.Join(root, dir))
		require.NoError(t, err)
		assert.Empty(t, entries)
	}
	assert.FileExists(t, other)
}
