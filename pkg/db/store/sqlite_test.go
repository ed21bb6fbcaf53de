package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/mwantia/stickerbox/pkg/db/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	ctx := context.Background()

	s, err := NewSQLiteStore(SQLiteConfig{Path: filepath.Join(t.TempDir(), "stickers.db")})
	require.NoError(t, err)
	require.NoError(t, s.Connect(ctx))
	require.NoError(t, s.Migrate(ctx))

	t.Cleanup(func() { s.Close() })
	return s
}

func newSticker(id string, createdAt int64, tags ...string) *models.Sticker {
	return &models.Sticker{
		ID:           id,
		Filename:     id + ".jpg",
		RelativePath: id + ".jpg",
		FileSize:     1024,
		Width:        100,
		Height:       80,
		Format:       "jpg",
		CreatedAt:    createdAt,
		ModifiedAt:   createdAt,
		Tags:         tags,
	}
}

func tagUsage(t *testing.T, s *SQLiteStore) map[string]int {
	t.Helper()
	tags, err := s.FetchAllTags(context.Background())
	require.NoError(t, err)

	usage := make(map[string]int, len(tags))
	for _, tag := range tags {
		usage[tag.Name] = tag.UsageCount
	}
	return usage
}

func ids(stickers []*models.Sticker) []string {
	out := make([]string, 0, len(stickers))
	for _, s := range stickers {
		out = append(out, s.ID)
	}
	return out
}

func TestNotInitialized(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(SQLiteConfig{Path: filepath.Join(t.TempDir(), "stickers.db")})
	require.NoError(t, err)
	require.NoError(t, s.Connect(ctx))
	defer s.Close()

	_, err = s.FetchAllStickers(ctx)
	assert.ErrorIs(t, err, ErrNotInitialized)

	assert.ErrorIs(t, s.InsertSticker(ctx, newSticker("A", 1)), ErrNotInitialized)
	assert.ErrorIs(t, s.DeleteSticker(ctx, "A"), ErrNotInitialized)
	assert.ErrorIs(t, s.ClearAllData(ctx), ErrNotInitialized)

	_, err = s.FilenameExists(ctx, "a.jpg", "")
	assert.ErrorIs(t, err, ErrNotInitialized)

	_, err = s.SchemaVersion(ctx)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestSchemaVersion(t *testing.T) {
	version, err := newTestStore(t).SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestNewSQLiteStore_RequiresPath(t *testing.T) {
	_, err := NewSQLiteStore(SQLiteConfig{})
	assert.Error(t, err)
}

func TestInsertAndFetch_TagRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	in := newSticker("A", 100, "b", "a", "c")
	in.IsFavorite = true
	require.NoError(t, s.InsertSticker(ctx, in))

	got, err := s.FetchSticker(ctx, "A")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, []string{"b", "a", "c"}, got.Tags, "tags come back in insertion order")
	assert.Equal(t, in.Filename, got.Filename)
	assert.Equal(t, in.RelativePath, got.RelativePath)
	assert.Equal(t, int64(1024), got.FileSize)
	assert.Equal(t, 100, got.Width)
	assert.Equal(t, 80, got.Height)
	assert.True(t, got.IsFavorite)
	assert.False(t, got.IsPinned)
}

func TestInsert_DuplicateTagsCollapse(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.InsertSticker(ctx, newSticker("A", 1, "cat", "cat")))

	got, err := s.FetchSticker(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"cat"}, got.Tags)
	assert.Equal(t, 2, tagUsage(t, s)["cat"], "every association write counts")
}

func TestInsert_DuplicateIDFails(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.InsertSticker(ctx, newSticker("A", 1, "x")))
	assert.Error(t, s.InsertSticker(ctx, newSticker("A", 2, "y")))

	// The failed transaction left no tag behind.
	assert.NotContains(t, tagUsage(t, s), "y")
}

func TestInsertStickers_StopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	batch := []*models.Sticker{newSticker("A", 1), newSticker("A", 2), newSticker("C", 3)}
	assert.Error(t, s.InsertStickers(ctx, batch))

	all, err := s.FetchAllStickers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, ids(all))
}

func TestFetchSticker_Missing(t *testing.T) {
	s := newTestStore(t)

	got, err := s.FetchSticker(context.Background(), "nope")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpdate_ReplacesTags(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	in := newSticker("A", 1, "a", "b")
	require.NoError(t, s.InsertSticker(ctx, in))

	in.Tags = []string{"c"}
	in.Filename = "renamed.jpg"
	in.IsPinned = true
	in.ModifiedAt = 50
	require.NoError(t, s.UpdateSticker(ctx, in))

	got, err := s.FetchSticker(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, got.Tags)
	assert.Equal(t, "renamed.jpg", got.Filename)
	assert.True(t, got.IsPinned)
	assert.Equal(t, int64(50), got.ModifiedAt)
	assert.Equal(t, int64(1), got.CreatedAt, "created_at is immutable")

	// Tag rows survive even when unreferenced.
	usage := tagUsage(t, s)
	assert.Equal(t, 1, usage["a"])
	assert.Equal(t, 1, usage["b"])
	assert.Equal(t, 1, usage["c"])
}

func TestUpdate_WritesZeroValues(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	in := newSticker("A", 1, "x")
	in.IsPinned = true
	require.NoError(t, s.InsertSticker(ctx, in))

	in.IsPinned = false
	in.Tags = nil
	require.NoError(t, s.UpdateSticker(ctx, in))

	got, err := s.FetchSticker(ctx, "A")
	require.NoError(t, err)
	assert.False(t, got.IsPinned)
	assert.Empty(t, got.Tags)
}

func TestUpdate_UnknownID(t *testing.T) {
	s := newTestStore(t)
	err := s.UpdateSticker(context.Background(), newSticker("ghost", 1))
	assert.ErrorIs(t, err, ErrStickerNotFound)
}

func TestUpdate_ReAddedTagsCountAgain(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	in := newSticker("A", 1, "x")
	require.NoError(t, s.InsertSticker(ctx, in))
	assert.Equal(t, 1, tagUsage(t, s)["x"])

	require.NoError(t, s.UpdateSticker(ctx, in))
	assert.Equal(t, 2, tagUsage(t, s)["x"])
}

func TestUsageCountAcrossStickers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.InsertSticker(ctx, newSticker("A", 1, "x")))
	require.NoError(t, s.InsertSticker(ctx, newSticker("B", 2, "x")))

	tags, err := s.FetchAllTags(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "x", tags[0].Name)
	assert.Equal(t, 2, tags[0].UsageCount)
}

func TestDelete_CascadesAssociations(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.InsertSticker(ctx, newSticker("A", 1, "x", "y")))
	require.NoError(t, s.DeleteSticker(ctx, "A"))

	got, err := s.FetchSticker(ctx, "A")
	require.NoError(t, err)
	assert.Nil(t, got)

	var links int64
	require.NoError(t, s.DB().Model(&models.StickerTag{}).Where("sticker_id = ?", "A").Count(&links).Error)
	assert.Zero(t, links)

	// Tags themselves are kept.
	assert.Len(t, tagUsage(t, s), 2)

	assert.NoError(t, s.DeleteSticker(ctx, "A"), "deleting twice is fine")
}

func TestFetchAll_Ordering(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	pinned := newSticker("P", 200)
	pinned.IsPinned = true

	require.NoError(t, s.InsertStickers(ctx, []*models.Sticker{
		newSticker("old", 100),
		pinned,
		newSticker("new", 300),
	}))

	all, err := s.FetchAllStickers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"P", "new", "old"}, ids(all))
	for _, sticker := range all {
		assert.NotNil(t, sticker.Tags)
	}
}

func TestFilenameExists(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.InsertSticker(ctx, newSticker("A", 1)))

	tests := []struct {
		name      string
		filename  string
		excluding string
		want      bool
	}{
		{"taken", "A.jpg", "", true},
		{"free", "B.jpg", "", false},
		{"excluding self", "A.jpg", "A", false},
		{"excluding other", "A.jpg", "B", true},
		{"exact match only", "a.jpg", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.FilenameExists(ctx, tt.filename, tt.excluding)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	cat := newSticker("cat", 100, "animal", "cute")
	cat.Filename = "Cat Photo.jpg"
	dog := newSticker("dog", 200, "animal")
	dog.Filename = "dog.png"
	car := newSticker("car", 300, "vehicle")
	car.Filename = "cute car.jpg"

	require.NoError(t, s.InsertStickers(ctx, []*models.Sticker{cat, dog, car}))

	t.Run("tag match is distinct", func(t *testing.T) {
		got, err := s.SearchStickers(ctx, "ani")
		require.NoError(t, err)
		assert.Equal(t, []string{"dog", "cat"}, ids(got))
	})

	t.Run("tag or filename", func(t *testing.T) {
		got, err := s.SearchStickers(ctx, "cute")
		require.NoError(t, err)
		assert.Equal(t, []string{"car", "cat"}, ids(got))
	})

	t.Run("tags only", func(t *testing.T) {
		got, err := s.SearchStickersByTag(ctx, "cute")
		require.NoError(t, err)
		assert.Equal(t, []string{"cat"}, ids(got))
	})

	t.Run("case sensitive", func(t *testing.T) {
		got, err := s.SearchStickers(ctx, "cat")
		require.NoError(t, err)
		assert.Empty(t, got, "'Cat Photo.jpg' does not contain lowercase cat")

		got, err = s.SearchStickers(ctx, "Cat")
		require.NoError(t, err)
		assert.Equal(t, []string{"cat"}, ids(got))
	})

	t.Run("results carry tags", func(t *testing.T) {
		got, err := s.SearchStickers(ctx, "Cat")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, []string{"animal", "cute"}, got[0].Tags)
	})

	t.Run("empty query lists all", func(t *testing.T) {
		got, err := s.SearchStickers(ctx, "")
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})

	t.Run("no match", func(t *testing.T) {
		got, err := s.SearchStickers(ctx, "zebra")
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestSearchTagNames(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.InsertSticker(ctx, newSticker(fmt.Sprintf("a%d", i), int64(i), "cat")))
	}
	require.NoError(t, s.InsertSticker(ctx, newSticker("b", 10, "catalog", "dog")))

	names, err := s.SearchTagNames(ctx, "cat", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"cat", "catalog"}, names)

	names, err = s.SearchTagNames(ctx, "cat", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"cat"}, names)

	names, err = s.SearchTagNames(ctx, "Cat", 10)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestClearAllData(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.InsertSticker(ctx, newSticker("A", 1, "x")))
	require.NoError(t, s.ClearAllData(ctx))

	all, err := s.FetchAllStickers(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	tags, err := s.FetchAllTags(ctx)
	require.NoError(t, err)
	assert.Empty(t, tags)

	// Still usable afterwards.
	require.NoError(t, s.InsertSticker(ctx, newSticker("B", 2, "x")))
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, ParseLogLevel("silent"), ParseLogLevel(""))
	assert.NotEqual(t, ParseLogLevel("info"), ParseLogLevel("silent"))
}
