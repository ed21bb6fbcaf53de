package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/mwantia/stickerbox/pkg/db/migrations"
	"github.com/mwantia/stickerbox/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const stickerOrder = "is_pinned DESC, created_at DESC"

// SQLiteStore implements MetadataStore using SQLite
type SQLiteStore struct {
	mutex  sync.Mutex
	ready  bool
	closed bool

	db   *gorm.DB
	path string
	now  func() time.Time
}

// SQLiteConfig holds SQLite-specific configuration
type SQLiteConfig struct {
	Path     string
	LogLevel logger.LogLevel
}

// NewSQLiteStore opens the database file with foreign keys enforced.
// Nothing is usable until Connect and Migrate succeed.
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	if cfg.LogLevel == 0 {
		cfg.LogLevel = logger.Silent
	}

	db, err := gorm.Open(sqlite.Open(dsn(cfg.Path)), &gorm.Config{
		Logger: logger.Default.LogMode(cfg.LogLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	return &SQLiteStore{
		db:   db,
		path: cfg.Path,
		now:  time.Now,
	}, nil
}

func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)"
}

// ParseLogLevel maps the database.log_level config value onto GORM levels.
func ParseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "error":
		return logger.Error
	case "warn", "warning":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return logger.Silent
	}
}

// DB returns the underlying GORM database instance
func (s *SQLiteStore) DB() *gorm.DB {
	return s.db
}

func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) Connect(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	// One connection: SQLite has a single writer and the pragma is per connection.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	return sqlDB.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.ready = false
	if s.closed {
		return nil
	}
	s.closed = true

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}

// Cleanup lets the service container close the store on shutdown.
func (s *SQLiteStore) Cleanup(ctx context.Context) error {
	return s.Close()
}

// Migrate brings the schema up to date and marks the store ready.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, err := migrations.NewMigrator(s.db).Migrate(ctx); err != nil {
		return err
	}

	s.ready = true
	return nil
}

// SchemaVersion reports the highest applied schema version.
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.ready {
		return 0, ErrNotInitialized
	}
	return migrations.NewMigrator(s.db).Version(ctx)
}

func (s *SQLiteStore) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// lock acquires the store and fails when the schema is not in place yet.
func (s *SQLiteStore) lock() error {
	s.mutex.Lock()
	if !s.ready {
		s.mutex.Unlock()
		return ErrNotInitialized
	}
	return nil
}

// Sticker writes

func (s *SQLiteStore) InsertSticker(ctx context.Context, sticker *models.Sticker) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mutex.Unlock()

	return s.insert(ctx, sticker)
}

// InsertStickers inserts sequentially, each sticker in its own transaction.
// It stops at the first failure; stickers inserted before it stay committed.
func (s *SQLiteStore) InsertStickers(ctx context.Context, stickers []*models.Sticker) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mutex.Unlock()

	for _, sticker := range stickers {
		if err := s.insert(ctx, sticker); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) insert(ctx context.Context, sticker *models.Sticker) error {
	if sticker == nil {
		return fmt.Errorf("sticker is nil")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(sticker).Error; err != nil {
			return err
		}
		return s.attachTags(tx, sticker.ID, sticker.Tags)
	})
	if err != nil {
		return fmt.Errorf("failed to insert sticker '%s': %w", sticker.ID, err)
	}
	return nil
}

// UpdateSticker writes every mutable column and replaces the tag set.
// Re-attached tags have their usage count incremented again.
func (s *SQLiteStore) UpdateSticker(ctx context.Context, sticker *models.Sticker) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mutex.Unlock()

	if sticker == nil {
		return fmt.Errorf("sticker is nil")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Sticker{}).
			Where("id = ?", sticker.ID).
			Updates(map[string]any{
				"filename":    sticker.Filename,
				"file_path":   sticker.RelativePath,
				"file_size":   sticker.FileSize,
				"width":       sticker.Width,
				"height":      sticker.Height,
				"format":      sticker.Format,
				"modified_at": sticker.ModifiedAt,
				"is_pinned":   sticker.IsPinned,
				"is_favorite": sticker.IsFavorite,
				"usage_count": sticker.UsageCount,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrStickerNotFound
		}

		if err := tx.Where("sticker_id = ?", sticker.ID).Delete(&models.StickerTag{}).Error; err != nil {
			return err
		}
		return s.attachTags(tx, sticker.ID, sticker.Tags)
	})
	if err != nil {
		return fmt.Errorf("failed to update sticker '%s': %w", sticker.ID, err)
	}
	return nil
}

// DeleteSticker removes the row; its associations cascade. Deleting an
// unknown id is not an error.
func (s *SQLiteStore) DeleteSticker(ctx context.Context, id string) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mutex.Unlock()

	if err := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Sticker{}).Error; err != nil {
		return fmt.Errorf("failed to delete sticker '%s': %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) attachTags(tx *gorm.DB, stickerID string, tags []string) error {
	now := s.now().Unix()
	for _, name := range tags {
		tagID, err := s.getOrCreateTag(tx, name, now)
		if err != nil {
			return fmt.Errorf("failed to resolve tag '%s': %w", name, err)
		}

		link := models.StickerTag{
			StickerID: stickerID,
			TagID:     tagID,
			CreatedAt: now,
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error; err != nil {
			return err
		}
	}
	return nil
}

// getOrCreateTag bumps the usage count of an existing tag or inserts it with
// a count of one.
func (s *SQLiteStore) getOrCreateTag(tx *gorm.DB, name string, now int64) (int64, error) {
	var tag models.Tag
	err := tx.Where("name = ?", name).Take(&tag).Error
	if err == nil {
		err = tx.Model(&models.Tag{}).
			Where("id = ?", tag.ID).
			UpdateColumn("usage_count", gorm.Expr("usage_count + 1")).Error
		return tag.ID, err
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}

	tag = models.Tag{
		Name:       name,
		UsageCount: 1,
		CreatedAt:  now,
	}
	if err := tx.Create(&tag).Error; err != nil {
		return 0, err
	}
	return tag.ID, nil
}

// Sticker reads

func (s *SQLiteStore) FetchAllStickers(ctx context.Context) ([]*models.Sticker, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mutex.Unlock()

	var stickers []*models.Sticker
	if err := s.db.WithContext(ctx).Order(stickerOrder).Find(&stickers).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch stickers: %w", err)
	}

	return stickers, s.loadTags(ctx, stickers)
}

// FetchSticker returns nil without error when no sticker has the id.
func (s *SQLiteStore) FetchSticker(ctx context.Context, id string) (*models.Sticker, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mutex.Unlock()

	var stickers []*models.Sticker
	if err := s.db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&stickers).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch sticker '%s': %w", id, err)
	}
	if len(stickers) == 0 {
		return nil, nil
	}

	if err := s.loadTags(ctx, stickers); err != nil {
		return nil, err
	}
	return stickers[0], nil
}

// FilenameExists reports whether another sticker already uses filename.
// An empty excludingID checks against every sticker.
func (s *SQLiteStore) FilenameExists(ctx context.Context, filename, excludingID string) (bool, error) {
	if err := s.lock(); err != nil {
		return false, err
	}
	defer s.mutex.Unlock()

	query := s.db.WithContext(ctx).Model(&models.Sticker{}).Where("filename = ?", filename)
	if excludingID != "" {
		query = query.Where("id <> ?", excludingID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check filename '%s': %w", filename, err)
	}
	return count > 0, nil
}

// SearchStickers matches stickers whose filename or any tag name contains
// query. Matching is case-sensitive.
func (s *SQLiteStore) SearchStickers(ctx context.Context, query string) ([]*models.Sticker, error) {
	return s.search(ctx, query, true)
}

// SearchStickersByTag is SearchStickers without the filename match.
func (s *SQLiteStore) SearchStickersByTag(ctx context.Context, query string) ([]*models.Sticker, error) {
	return s.search(ctx, query, false)
}

func (s *SQLiteStore) search(ctx context.Context, query string, withFilename bool) ([]*models.Sticker, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mutex.Unlock()

	var stickers []*models.Sticker
	tx := s.db.WithContext(ctx)

	if query == "" {
		tx = tx.Order(stickerOrder).Find(&stickers)
	} else {
		where := "instr(tags.name, ?) > 0"
		args := []any{query}
		if withFilename {
			where += " OR instr(stickers.filename, ?) > 0"
			args = append(args, query)
		}

		tx = tx.Raw(`SELECT DISTINCT stickers.* FROM stickers
			LEFT JOIN sticker_tags ON sticker_tags.sticker_id = stickers.id
			LEFT JOIN tags ON tags.id = sticker_tags.tag_id
			WHERE `+where+`
			ORDER BY stickers.is_pinned DESC, stickers.created_at DESC`, args...).Scan(&stickers)
	}
	if tx.Error != nil {
		return nil, fmt.Errorf("failed to search stickers for '%s': %w", query, tx.Error)
	}

	return stickers, s.loadTags(ctx, stickers)
}

type stickerTagName struct {
	StickerID string
	Name      string
}

// loadTags fills Tags on every sticker in association insertion order.
func (s *SQLiteStore) loadTags(ctx context.Context, stickers []*models.Sticker) error {
	if len(stickers) == 0 {
		return nil
	}

	byID := make(map[string]*models.Sticker, len(stickers))
	ids := make([]string, 0, len(stickers))
	for _, sticker := range stickers {
		sticker.Tags = []string{}
		byID[sticker.ID] = sticker
		ids = append(ids, sticker.ID)
	}

	var rows []stickerTagName
	err := s.db.WithContext(ctx).Raw(`SELECT sticker_tags.sticker_id AS sticker_id, tags.name AS name
		FROM sticker_tags
		JOIN tags ON tags.id = sticker_tags.tag_id
		WHERE sticker_tags.sticker_id IN ?
		ORDER BY sticker_tags.rowid`, ids).Scan(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to load sticker tags: %w", err)
	}

	for _, row := range rows {
		if sticker, ok := byID[row.StickerID]; ok {
			sticker.Tags = append(sticker.Tags, row.Name)
		}
	}
	return nil
}

// Tag reads

// SearchTagNames returns up to limit tag names containing query, most used first.
func (s *SQLiteStore) SearchTagNames(ctx context.Context, query string, limit int) ([]string, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mutex.Unlock()

	tx := s.db.WithContext(ctx).Model(&models.Tag{}).Order("usage_count DESC, id ASC")
	if query != "" {
		tx = tx.Where("instr(name, ?) > 0", query)
	}
	if limit > 0 {
		tx = tx.Limit(limit)
	}

	names := []string{}
	if err := tx.Pluck("name", &names).Error; err != nil {
		return nil, fmt.Errorf("failed to search tags for '%s': %w", query, err)
	}
	return names, nil
}

func (s *SQLiteStore) FetchAllTags(ctx context.Context) ([]models.Tag, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mutex.Unlock()

	tags := []models.Tag{}
	if err := s.db.WithContext(ctx).Order("usage_count DESC, id ASC").Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch tags: %w", err)
	}
	return tags, nil
}

// ClearAllData empties all three tables, associations first.
func (s *SQLiteStore) ClearAllData(ctx context.Context) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mutex.Unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range []string{"sticker_tags", "stickers", "tags"} {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		return nil
	})
}
