package client

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mwantia/stickerbox/internal/library"
	"github.com/mwantia/stickerbox/pkg/db/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlags(t *testing.T) {
	assert.Equal(t, "--", flags(&models.Sticker{}))
	assert.Equal(t, "P-", flags(&models.Sticker{IsPinned: true}))
	assert.Equal(t, "-F", flags(&models.Sticker{IsFavorite: true}))
	assert.Equal(t, "PF", flags(&models.Sticker{IsPinned: true, IsFavorite: true}))
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "2048", formatSize(2048, false))
	assert.Equal(t, "2.0 kB", formatSize(2048, true))
}

func TestPrintStickers(t *testing.T) {
	stickers := []*models.Sticker{
		{ID: "A", Filename: "cat.jpg", FileSize: 10, Width: 4, Height: 2, IsPinned: true, Tags: []string{"cat", "cute"}},
		{ID: "B", Filename: "dog.png", Tags: []string{}},
	}

	t.Run("short", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, printStickers(&buf, stickers, listFormat{}))
		assert.Equal(t, "A  cat.jpg\nB  dog.png\n", buf.String())
	})

	t.Run("long", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, printStickers(&buf, stickers, listFormat{long: true}))

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 3)
		assert.True(t, strings.HasPrefix(lines[0], "ID"))
		assert.Contains(t, lines[1], "4x2")
		assert.Contains(t, lines[1], "P-")
		assert.True(t, strings.HasSuffix(lines[1], "cat,cute"))
	})
}

func TestPrintImportResult(t *testing.T) {
	var buf bytes.Buffer
	printImportResult(&buf, &library.ImportResult{
		Stickers: []*models.Sticker{{ID: "A", Filename: "cat.gif", Tags: []string{}}},
		Failed:   1,
		HasGIF:   true,
		Errors:   []error{assert.AnError},
	})

	out := buf.String()
	assert.Contains(t, out, "Imported 1, failed 1, skipped 0")
	assert.Contains(t, out, "first frame")
	assert.Contains(t, out, assert.AnError.Error())
}
