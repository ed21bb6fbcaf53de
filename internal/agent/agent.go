package agent

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mwantia/fabric/pkg/container"
	"github.com/mwantia/stickerbox/internal/ai"
	"github.com/mwantia/stickerbox/internal/config"
	"github.com/mwantia/stickerbox/internal/inbox"
	"github.com/mwantia/stickerbox/internal/library"
	"github.com/mwantia/stickerbox/internal/settings"
	"github.com/mwantia/stickerbox/pkg/archive"
	"github.com/mwantia/stickerbox/pkg/blob"
	"github.com/mwantia/stickerbox/pkg/codec"
	"github.com/mwantia/stickerbox/pkg/db/store"
	"github.com/mwantia/stickerbox/pkg/log"
)

// serviceLoggers is built by the container: Root through the default inject
// processor, the rest as named children through log.LoggerTagProcessor.
type serviceLoggers struct {
	Root    log.LoggerService `fabric:"inject"`
	Blobs   log.LoggerService `fabric:"logger:blobs"`
	AI      log.LoggerService `fabric:"logger:ai"`
	Library log.LoggerService `fabric:"logger:library"`
	Inbox   log.LoggerService `fabric:"logger:inbox"`
}

type StickerAgent struct {
	mutex sync.RWMutex
	wait  sync.WaitGroup

	cfg     *config.BaseConfig
	sc      *container.ServiceContainer
	log     log.LoggerService
	loggers *serviceLoggers

	metadata *store.SQLiteStore
	blobs    *blob.Store
	settings *settings.FileStore
	ai       *ai.Client
	library  *library.Library
}

func NewAgent(cfg *config.BaseConfig) *StickerAgent {
	sc := container.NewServiceContainer()
	sc.AddTagProcessor(log.NewLoggerTagProcessor())

	return &StickerAgent{
		cfg: cfg,
		sc:  sc,
		log: log.NewLoggerService("stickerbox", cfg.Log),
	}
}

// Open builds every service, migrates the metadata store and registers the
// services with the container.
func (sa *StickerAgent) Open(ctx context.Context) error {
	sa.mutex.Lock()
	defer sa.mutex.Unlock()

	if sa.library != nil {
		return nil
	}

	if err := sa.setupServices(ctx); err != nil {
		if sa.metadata != nil {
			sa.metadata.Close()
			sa.metadata = nil
		}
		return err
	}
	return nil
}

func (sa *StickerAgent) setupServices(ctx context.Context) error {
	errs := container.Errors{}

	sa.log.Debug("Registering 'LoggerService'...")
	if err := container.Register[log.LoggerServiceImpl](sa.sc,
		container.With[log.LoggerService](),
		container.WithInstance(sa.log)); err != nil {
		return fmt.Errorf("failed to register logger: %w", err)
	}

	sa.log.Debug("Registering 'serviceLoggers'...")
	if err := container.Register[*serviceLoggers](sa.sc); err != nil {
		return fmt.Errorf("failed to register service loggers: %w", err)
	}
	loggers, err := container.Resolve[*serviceLoggers](ctx, sa.sc)
	if err != nil {
		return fmt.Errorf("failed to resolve service loggers: %w", err)
	}
	sa.loggers = loggers

	c, err := codec.New(codecOptions(sa.cfg.Compression))
	if err != nil {
		return fmt.Errorf("invalid compression configuration: %w", err)
	}

	storage := sa.cfg.Storage
	sa.blobs, err = blob.New(blob.Config{
		Root:          storage.DataDir,
		OriginalsDir:  storage.OriginalsDir,
		ThumbnailsDir: storage.ThumbnailsDir,
	}, c, loggers.Blobs)
	if err != nil {
		return fmt.Errorf("failed to create blob store: %w", err)
	}

	sa.metadata, err = store.NewSQLiteStore(store.SQLiteConfig{
		Path:     storage.DatabasePath(),
		LogLevel: store.ParseLogLevel(sa.cfg.Database.LogLevel),
	})
	if err != nil {
		return err
	}
	if err := sa.metadata.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to '%s': %w", storage.DatabasePath(), err)
	}
	if err := sa.metadata.Migrate(ctx); err != nil {
		return err
	}

	sa.settings, err = settings.NewFileStore(storage.SettingsFile)
	if err != nil {
		return fmt.Errorf("failed to open settings: %w", err)
	}

	timeout := config.ParseDuration(sa.cfg.AI.Timeout, ai.DefaultTimeout)
	sa.ai = ai.NewClient(timeout, loggers.AI)

	lib, err := library.New(library.Dependencies{
		Metadata:  sa.metadata,
		Blobs:     sa.blobs,
		Extractor: archive.NewExtractor(""),
		Generator: sa.ai,
		Settings:  sa.settings,
		Logger:    loggers.Library,
	})
	if err != nil {
		return err
	}

	sa.log.Debug("Registering 'MetadataStore'...")
	errs.Add(container.Register[store.SQLiteStore](sa.sc,
		container.With[store.MetadataStore](),
		container.WithInstance(sa.metadata)))

	sa.log.Debug("Registering 'BlobStore'...")
	errs.Add(container.Register[blob.Store](sa.sc,
		container.With[library.BlobStore](),
		container.WithInstance(sa.blobs)))

	sa.log.Debug("Registering 'SettingsRepository'...")
	errs.Add(container.Register[settings.FileStore](sa.sc,
		container.With[settings.Repository](),
		container.WithInstance(sa.settings)))

	sa.log.Debug("Registering 'Generator'...")
	errs.Add(container.Register[ai.Client](sa.sc,
		container.With[library.Generator](),
		container.WithInstance(sa.ai)))

	sa.log.Debug("Registering 'Importer'...")
	errs.Add(container.Register[library.Library](sa.sc,
		container.With[inbox.Importer](),
		container.WithInstance(lib)))

	if err := errs.Errors(); err != nil {
		return err
	}

	sa.library = lib
	return nil
}

func codecOptions(cfg config.CompressionConfig) codec.Options {
	return codec.Options{
		MaxDimension:   cfg.MaxDimension,
		MaxBytes:       cfg.MaxBytes,
		ThumbnailSize:  cfg.ThumbnailSize,
		InitialQuality: cfg.InitialQuality,
		QualityStep:    cfg.QualityStep,
		MinQuality:     cfg.MinQuality,
	}
}

// Library returns the opened library, or nil before Open.
func (sa *StickerAgent) Library() *library.Library {
	sa.mutex.RLock()
	defer sa.mutex.RUnlock()

	return sa.library
}

func (sa *StickerAgent) Settings() settings.Repository {
	sa.mutex.RLock()
	defer sa.mutex.RUnlock()

	return sa.settings
}

func (sa *StickerAgent) AI() *ai.Client {
	sa.mutex.RLock()
	defer sa.mutex.RUnlock()

	return sa.ai
}

// SchemaVersion reports the applied metadata schema version.
func (sa *StickerAgent) SchemaVersion(ctx context.Context) (int, error) {
	sa.mutex.RLock()
	defer sa.mutex.RUnlock()

	if sa.metadata == nil {
		return 0, store.ErrNotInitialized
	}
	return sa.metadata.SchemaVersion(ctx)
}

func (sa *StickerAgent) Logger() log.LoggerService {
	return sa.log
}

// Close runs the container cleanup and closes the metadata store.
func (sa *StickerAgent) Close(ctx context.Context) error {
	sa.mutex.Lock()
	defer sa.mutex.Unlock()

	if sa.library == nil {
		return nil
	}
	sa.library = nil

	errs := container.Errors{}
	if err := sa.sc.Cleanup(ctx); err != nil {
		errs.Add(fmt.Errorf("failed to complete service container cleanup: %w", err))
	}
	errs.Add(sa.metadata.Close())

	return errs.Errors()
}

// Serve opens the agent and watches the inbox, if enabled, until ctx ends or
// the process is interrupted.
func (sa *StickerAgent) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := sa.Open(ctx); err != nil {
		return err
	}

	if sa.cfg.Inbox.Enabled {
		watcher, err := inbox.New(inbox.Options{
			Path:        sa.cfg.Inbox.Path,
			SettleDelay: config.ParseDuration(sa.cfg.Inbox.SettleDelay, inbox.DefaultSettleDelay),
			Tags:        library.NormalizeTags(sa.cfg.Inbox.Tags),
		}, sa.Library(), sa.loggers.Inbox)
		if err != nil {
			sa.Close(context.Background())
			return err
		}

		sa.wait.Add(1)
		go func() {
			defer sa.wait.Done()
			if err := watcher.Run(ctx); err != nil {
				sa.log.Error("Inbox watcher stopped: %v", err)
			}
		}()
	}

	sa.log.Info("Agent ready, library at '%s'", sa.cfg.Storage.DataDir)
	<-ctx.Done()

	timeout := config.ParseDuration(sa.cfg.ShutdownTimeout, 60*time.Second)

	shutdown, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		sa.wait.Wait()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-shutdown.Done():
		sa.log.Warn("Inbox did not stop within %s", timeout)
	}

	return sa.Close(shutdown)
}
