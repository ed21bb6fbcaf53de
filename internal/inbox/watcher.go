// Package inbox watches a drop folder and imports images and ZIP archives
// placed in it once they stop changing.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mwantia/stickerbox/internal/library"
	"github.com/mwantia/stickerbox/pkg/codec"
	"github.com/mwantia/stickerbox/pkg/db/models"
	"github.com/mwantia/stickerbox/pkg/log"
)

const DefaultSettleDelay = 2 * time.Second

// Importer is the part of the library the inbox feeds.
type Importer interface {
	ImportDocuments(ctx context.Context, paths []string) (*library.ImportResult, error)
	AddTags(ctx context.Context, id string, tags []string) (*models.Sticker, error)
}

type Options struct {
	Path        string
	SettleDelay time.Duration
	// Tags are added to every sticker imported from the inbox.
	Tags []string
}

type Watcher struct {
	opts     Options
	importer Importer
	log      log.LoggerService

	mutex   sync.Mutex
	pending map[string]*pendingFile

	settled chan string
	done    chan struct{}
}

// pendingFile tracks a file that may still be written to.
type pendingFile struct {
	size    int64
	modTime time.Time
	timer   *time.Timer
}

func New(opts Options, importer Importer, logger log.LoggerService) (*Watcher, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("inbox path is required")
	}
	if importer == nil {
		return nil, fmt.Errorf("importer is required")
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	if logger == nil {
		logger = log.Nop()
	}

	return &Watcher{
		opts:     opts,
		importer: importer,
		log:      logger,
		pending:  make(map[string]*pendingFile),
		settled:  make(chan string, 64),
		done:     make(chan struct{}),
	}, nil
}

// Run watches the inbox until ctx ends. Files already present are imported
// too. Run must only be called once.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.done)
	defer w.stopTimers()

	if err := os.MkdirAll(w.opts.Path, 0o755); err != nil {
		return fmt.Errorf("failed to create inbox '%s': %w", w.opts.Path, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.opts.Path); err != nil {
		return fmt.Errorf("failed to watch '%s': %w", w.opts.Path, err)
	}

	w.log.Info("Watching inbox '%s'", w.opts.Path)
	w.scan()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.startSettling(event.Name)
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				w.cancelPending(event.Name)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("Inbox watcher error: %v", err)
		case path := <-w.settled:
			w.importFile(ctx, path)
		}
	}
}

func (w *Watcher) scan() {
	entries, err := os.ReadDir(w.opts.Path)
	if err != nil {
		w.log.Warn("Unable to scan inbox: %v", err)
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			w.startSettling(filepath.Join(w.opts.Path, entry.Name()))
		}
	}
}

// accepts reports whether path is an importable file directly in the inbox.
func (w *Watcher) accepts(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return false
	}
	if filepath.Dir(path) != filepath.Clean(w.opts.Path) {
		return false
	}
	return codec.IsImageFile(name) || codec.Ext(name) == "zip"
}

func (w *Watcher) startSettling(path string) {
	if !w.accepts(path) {
		return
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	w.mutex.Lock()
	defer w.mutex.Unlock()

	if pending, ok := w.pending[path]; ok {
		pending.timer.Stop()
	}

	pending := &pendingFile{size: info.Size(), modTime: info.ModTime()}
	pending.timer = time.AfterFunc(w.opts.SettleDelay, func() { w.checkSettled(path) })
	w.pending[path] = pending
}

// checkSettled hands the file over once size and mtime stayed unchanged for
// a full settle delay.
func (w *Watcher) checkSettled(path string) {
	w.mutex.Lock()
	pending, ok := w.pending[path]
	if !ok {
		w.mutex.Unlock()
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		delete(w.pending, path)
		w.mutex.Unlock()
		return
	}

	if info.Size() != pending.size || !info.ModTime().Equal(pending.modTime) {
		pending.size = info.Size()
		pending.modTime = info.ModTime()
		pending.timer = time.AfterFunc(w.opts.SettleDelay, func() { w.checkSettled(path) })
		w.mutex.Unlock()
		return
	}

	delete(w.pending, path)
	w.mutex.Unlock()

	select {
	case w.settled <- path:
	case <-w.done:
	}
}

func (w *Watcher) cancelPending(path string) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if pending, ok := w.pending[path]; ok {
		pending.timer.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) stopTimers() {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	for path, pending := range w.pending {
		pending.timer.Stop()
		delete(w.pending, path)
	}
}

// importFile imports one settled file and removes it from the inbox when
// nothing in it failed.
func (w *Watcher) importFile(ctx context.Context, path string) {
	result, err := w.importer.ImportDocuments(ctx, []string{path})
	if err != nil {
		w.log.Error("Failed to import '%s': %v", path, err)
		return
	}

	if len(w.opts.Tags) > 0 {
		for _, sticker := range result.Stickers {
			if _, err := w.importer.AddTags(ctx, sticker.ID, w.opts.Tags); err != nil {
				w.log.Warn("Unable to tag '%s': %v", sticker.ID, err)
			}
		}
	}

	if result.Failed > 0 {
		w.log.Warn("Import of '%s' had %d failures, keeping it: %v", path, result.Failed, result.Err())
		return
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		w.log.Warn("Unable to remove '%s' from inbox: %v", path, err)
		return
	}

	w.log.Info("Imported %d stickers from '%s'", len(result.Stickers), filepath.Base(path))
}
