package models

import "slices"

// Sticker is one stored image. Tags is not a column: it is rebuilt from the
// sticker_tags association table on every read.
type Sticker struct {
	ID           string `gorm:"column:id;primaryKey;type:text"`
	Filename     string `gorm:"column:filename;type:text;not null"`
	RelativePath string `gorm:"column:file_path;type:text;not null"`
	FileSize     int64  `gorm:"column:file_size;not null"`
	Width        int    `gorm:"column:width;not null"`
	Height       int    `gorm:"column:height;not null"`
	Format       string `gorm:"column:format;type:text;not null"`

	// Unix seconds
	CreatedAt  int64 `gorm:"column:created_at;not null;autoCreateTime:false"`
	ModifiedAt int64 `gorm:"column:modified_at;not null"`

	IsPinned   bool `gorm:"column:is_pinned;not null"`
	IsFavorite bool `gorm:"column:is_favorite;not null"`
	// Reserved, nothing increments it yet.
	UsageCount int `gorm:"column:usage_count;not null"`

	Tags []string `gorm:"-"`
}

func (Sticker) TableName() string {
	return "stickers"
}

// ThumbnailName is the thumbnail blob name, stable for the sticker's lifetime.
func (s *Sticker) ThumbnailName() string {
	return ThumbnailName(s.ID)
}

func ThumbnailName(id string) string {
	return id + "_thumb.jpg"
}

// HasTag reports whether name is among the sticker's tags.
func (s *Sticker) HasTag(name string) bool {
	return slices.Contains(s.Tags, name)
}

// Clone returns a deep copy so callers can mutate tags without aliasing.
func (s *Sticker) Clone() *Sticker {
	c := *s
	c.Tags = slices.Clone(s.Tags)
	return &c
}
