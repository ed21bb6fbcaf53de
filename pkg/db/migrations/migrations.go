package migrations

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"gorm.io/gorm"
)

var ErrNothingToRollback = errors.New("no applied schema version to roll back")

// Step is one versioned schema change expressed as plain SQL. Down must undo Up.
type Step struct {
	Version     int
	Description string
	Up          []string
	Down        []string
}

// schemaVersion records an applied step.
type schemaVersion struct {
	Version     int    `gorm:"primaryKey;autoIncrement:false"`
	Description string `gorm:"type:text;not null"`
	AppliedAt   int64  `gorm:"autoCreateTime"`
}

func (schemaVersion) TableName() string {
	return "schema_versions"
}

type Status struct {
	Version     int
	Description string
	Applied     bool
}

type Migrator struct {
	db    *gorm.DB
	steps []Step
}

func NewMigrator(db *gorm.DB) *Migrator {
	return &Migrator{
		db:    db,
		steps: steps(),
	}
}

// Migrate applies every pending step in version order, each inside its own
// transaction, and returns how many were applied.
func (m *Migrator) Migrate(ctx context.Context) (int, error) {
	pending, err := m.Pending(ctx)
	if err != nil {
		return 0, err
	}

	for i, step := range pending {
		if err := m.apply(ctx, step); err != nil {
			return i, fmt.Errorf("schema version %d (%s) failed: %w", step.Version, step.Description, err)
		}
	}
	return len(pending), nil
}

func (m *Migrator) Pending(ctx context.Context) ([]Step, error) {
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	var pending []Step
	for _, step := range m.steps {
		if !applied[step.Version] {
			pending = append(pending, step)
		}
	}
	return pending, nil
}

// Version returns the highest applied version, or 0 for an empty database.
func (m *Migrator) Version(ctx context.Context) (int, error) {
	applied, err := m.applied(ctx)
	if err != nil {
		return 0, err
	}

	version := 0
	for v := range applied {
		version = max(version, v)
	}
	return version, nil
}

func (m *Migrator) Status(ctx context.Context) ([]Status, error) {
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	statuses := make([]Status, 0, len(m.steps))
	for _, step := range m.steps {
		statuses = append(statuses, Status{
			Version:     step.Version,
			Description: step.Description,
			Applied:     applied[step.Version],
		})
	}
	return statuses, nil
}

// Rollback reverts the most recently applied step.
func (m *Migrator) Rollback(ctx context.Context) error {
	version, err := m.Version(ctx)
	if err != nil {
		return err
	}
	if version == 0 {
		return ErrNothingToRollback
	}

	idx := slices.IndexFunc(m.steps, func(s Step) bool { return s.Version == version })
	if idx < 0 {
		return fmt.Errorf("schema version %d is applied but unknown", version)
	}
	step := m.steps[idx]

	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := execAll(tx, step.Down); err != nil {
			return fmt.Errorf("rollback of version %d failed: %w", version, err)
		}
		return tx.Delete(&schemaVersion{}, version).Error
	})
}

func (m *Migrator) applied(ctx context.Context) (map[int]bool, error) {
	db := m.db.WithContext(ctx)
	if err := db.AutoMigrate(&schemaVersion{}); err != nil {
		return nil, fmt.Errorf("failed to create schema_versions table: %w", err)
	}

	var rows []schemaVersion
	if err := db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to read schema versions: %w", err)
	}

	applied := make(map[int]bool, len(rows))
	for _, row := range rows {
		applied[row.Version] = true
	}
	return applied, nil
}

func (m *Migrator) apply(ctx context.Context, step Step) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := execAll(tx, step.Up); err != nil {
			return err
		}
		return tx.Create(&schemaVersion{
			Version:     step.Version,
			Description: step.Description,
		}).Error
	})
}

func steps() []Step {
	return []Step{
		{
			Version:     1,
			Description: "sticker library schema",
			Up:          schemaV1Up,
			Down:        schemaV1Down,
		},
	}
}

func execAll(db *gorm.DB, statements []string) error {
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			head, _, _ := strings.Cut(stmt, "\n")
			return fmt.Errorf("failed to execute %q: %w", head, err)
		}
	}
	return nil
}
