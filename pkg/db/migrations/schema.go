package migrations

// The DDL matches the layout of existing stickers.db files so a library
// created by the mobile app opens unchanged. IF NOT EXISTS keeps the first
// migration harmless against such a database.
var schemaV1Up = []string{
	`CREATE TABLE IF NOT EXISTS "stickers" (
		"id" TEXT PRIMARY KEY NOT NULL,
		"filename" TEXT NOT NULL,
		"file_path" TEXT NOT NULL,
		"file_size" INTEGER NOT NULL,
		"width" INTEGER NOT NULL,
		"height" INTEGER NOT NULL,
		"format" TEXT NOT NULL,
		"created_at" INTEGER NOT NULL,
		"modified_at" INTEGER NOT NULL,
		"is_pinned" INTEGER NOT NULL DEFAULT (0),
		"is_favorite" INTEGER NOT NULL DEFAULT (0),
		"usage_count" INTEGER NOT NULL DEFAULT (0)
	)`,
	`CREATE INDEX IF NOT EXISTS "index_stickers_on_created_at" ON "stickers" ("created_at")`,
	`CREATE INDEX IF NOT EXISTS "index_stickers_on_is_pinned" ON "stickers" ("is_pinned")`,
	`CREATE TABLE IF NOT EXISTS "tags" (
		"id" INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL,
		"name" TEXT UNIQUE NOT NULL,
		"usage_count" INTEGER NOT NULL DEFAULT (0),
		"created_at" INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS "index_tags_on_name" ON "tags" ("name")`,
	`CREATE INDEX IF NOT EXISTS "index_tags_on_usage_count" ON "tags" ("usage_count")`,
	`CREATE TABLE IF NOT EXISTS "sticker_tags" (
		"sticker_id" TEXT NOT NULL,
		"tag_id" INTEGER NOT NULL,
		"created_at" INTEGER NOT NULL,
		PRIMARY KEY ("sticker_id", "tag_id"),
		FOREIGN KEY ("sticker_id") REFERENCES "stickers" ("id") ON DELETE CASCADE,
		FOREIGN KEY ("tag_id") REFERENCES "tags" ("id") ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS "index_sticker_tags_on_sticker_id" ON "sticker_tags" ("sticker_id")`,
	`CREATE INDEX IF NOT EXISTS "index_sticker_tags_on_tag_id" ON "sticker_tags" ("tag_id")`,
}

var schemaV1Down = []string{
	`DROP TABLE IF EXISTS "sticker_tags"`,
	`DROP TABLE IF EXISTS "tags"`,
	`DROP TABLE IF EXISTS "stickers"`,
}
