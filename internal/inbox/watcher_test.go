package inbox

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mwantia/stickerbox/internal/library"
	"github.com/mwantia/stickerbox/pkg/db/models"
	"github.com/mwantia/stickerbox/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeImporter struct {
	mutex  sync.Mutex
	paths  []string
	tagged map[string][]string
	failed bool
}

func (f *fakeImporter) ImportDocuments(ctx context.Context, paths []string) (*library.ImportResult, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.paths = append(f.paths, paths...)
	result := &library.ImportResult{Stickers: []*models.Sticker{{ID: filepath.Base(paths[0])}}}
	if f.failed {
		result.Failed = 1
	}
	return result, nil
}

func (f *fakeImporter) AddTags(ctx context.Context, id string, tags []string) (*models.Sticker, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.tagged == nil {
		f.tagged = make(map[string][]string)
	}
	f.tagged[id] = tags
	return &models.Sticker{ID: id, Tags: tags}, nil
}

func (f *fakeImporter) imported() []string {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]string(nil), f.paths...)
}

func startWatcher(t *testing.T, dir string, importer Importer, tags []string) {
	t.Helper()

	w, err := New(Options{Path: dir, SettleDelay: 50 * time.Millisecond, Tags: tags}, importer, log.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("watcher did not stop")
		}
	})
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{}, &fakeImporter{}, nil)
	assert.Error(t, err)

	_, err = New(Options{Path: t.TempDir()}, nil, nil)
	assert.Error(t, err)
}

func TestWatcher_ImportsExistingAndNewFiles(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "existing.png")
	require.NoError(t, os.WriteFile(existing, []byte("x"), 0o644))

	importer := &fakeImporter{}
	startWatcher(t, dir, importer, []string{"inbox"})

	// Give the watcher time to register before dropping more files.
	time.Sleep(100 * time.Millisecond)

	dropped := filepath.Join(dir, "dropped.zip")
	require.NoError(t, os.WriteFile(dropped, []byte("zip"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.png"), []byte("ignored"), 0o644))

	assert.Eventually(t, func() bool {
		return len(importer.imported()) == 2
	}, 5*time.Second, 20*time.Millisecond)

	assert.ElementsMatch(t, []string{existing, dropped}, importer.imported())

	assert.Eventually(t, func() bool {
		_, errA := os.Stat(existing)
		_, errB := os.Stat(dropped)
		return os.IsNotExist(errA) && os.IsNotExist(errB)
	}, 5*time.Second, 20*time.Millisecond)

	assert.FileExists(t, filepath.Join(dir, "notes.txt"))

	importer.mutex.Lock()
	assert.Equal(t, []string{"inbox"}, importer.tagged["dropped.zip"])
	importer.mutex.Unlock()
}

func TestWatcher_KeepsFilesWithFailures(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.jpg")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	importer := &fakeImporter{failed: true}
	startWatcher(t, dir, importer, nil)

	assert.Eventually(t, func() bool {
		return len(importer.imported()) == 1
	}, 5*time.Second, 20*time.Millisecond)

	// Removal would happen right after the import call; give it a moment.
	time.Sleep(100 * time.Millisecond)
	assert.FileExists(t, path)
}

func TestWatcher_Accepts(t *testing.T) {
	dir := t.TempDir()
	w, err := New(Options{Path: dir}, &fakeImporter{}, nil)
	require.NoError(t, err)

	assert.True(t, w.accepts(filepath.Join(dir, "a.JPG")))
	assert.True(t, w.accepts(filepath.Join(dir, "pack.zip")))
	assert.False(t, w.accepts(filepath.Join(dir, "a.txt")))
	assert.False(t, w.accepts(filepath.Join(dir, ".a.png")))
	assert.False(t, w.accepts(filepath.Join(dir, "sub", "a.png")))
}
