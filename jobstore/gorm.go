package jobstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormStore is the durable job store backed by an embedded sqlite database.
// Sqlite serializes writers, so a poller either sees the previous complete
// record or the new one, never a partial write.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens (or creates) the sqlite database at path and migrates
// the job table. Concurrent jobs write milestones in parallel: immediate
// transactions take the write lock at BEGIN and the busy timeout queues
// waiting writers, instead of a mid-transaction lock upgrade failing with
// SQLITE_BUSY and dropping the write.
func NewGormStore(path string) (*GormStore, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open job database: %w", err)
	}
	if err := db.AutoMigrate(&Job{}); err != nil {
		return nil, fmt.Errorf("migrate job table: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Create(ctx context.Context, id string) error {
	now := time.Now()
	job := Job{
		ID:        id,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s.db.WithContext(ctx).Create(&job).Error
}

func (s *GormStore) Write(ctx context.Context, id string, status Status, details string, opts ...WriteOption) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Job
		if err := tx.First(&existing, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if existing.Status.IsTerminal() {
			return ErrTerminal
		}

		job := Job{
			ID:        id,
			Status:    status,
			Details:   details,
			CreatedAt: existing.CreatedAt,
			UpdatedAt: time.Now(),
		}
		for _, opt := range opts {
			opt(&job)
		}
		// Save with explicit column selection so cleared lists overwrite
		// instead of being skipped as zero values.
		return tx.Model(&Job{}).Where("id = ?", id).
			Select("status", "details", "generated_files", "generated_clips", "updated_at").
			Updates(&job).Error
	})
}

func (s *GormStore) Read(ctx context.Context, id string) (*Job, error) {
	var job Job
	err := s.db.WithContext(ctx).First(&job, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}
