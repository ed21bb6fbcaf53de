package models

// Tag is a normalised label. UsageCount counts association writes, so a
// sticker re-saved with the same tag bumps it again.
type Tag struct {
	ID         int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Name       string `gorm:"column:name;type:text;not null;uniqueIndex"`
	UsageCount int    `gorm:"column:usage_count;not null"`
	CreatedAt  int64  `gorm:"column:created_at;not null;autoCreateTime:false"`
}

func (Tag) TableName() string {
	return "tags"
}

// StickerTag links a sticker to a tag. Both foreign keys cascade on delete.
type StickerTag struct {
	StickerID string `gorm:"column:sticker_id;primaryKey;type:text"`
	TagID     int64  `gorm:"column:tag_id;primaryKey"`
	CreatedAt int64  `gorm:"column:created_at;not null;autoCreateTime:false"`
}

func (StickerTag) TableName() string {
	return "sticker_tags"
}
