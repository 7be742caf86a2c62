package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vladimiradmaev/tacticmap/internal/database"
	apperrors "github.com/vladimiradmaev/tacticmap/internal/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Postgres stores records in the kv_records table
type Postgres struct {
	db *gorm.DB
}

// NewPostgres wraps a migrated gorm connection
func NewPostgres(db *gorm.DB) *Postgres {
	return &Postgres{db: db}
}

// Get reads the record stored under key
func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var record database.KVRecord
	err := p.db.WithContext(ctx).Where("key = ?", key).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperrors.NewStorageError(err, "postgres_get").WithContext("key", key)
	}
	return record.Value, nil
}

// Set upserts value under key
func (p *Postgres) Set(ctx context.Context, key string, value []byte) error {
	record := database.KVRecord{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}

	err := p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&record).Error
	if err != nil {
		return apperrors.NewStorageError(err, "postgres_set").WithContext("key", key)
	}
	return nil
}

// Delete removes the record under key
func (p *Postgres) Delete(ctx context.Context, key string) error {
	if err := p.db.WithContext(ctx).Where("key = ?", key).Delete(&database.KVRecord{}).Error; err != nil {
		return apperrors.NewStorageError(err, "postgres_delete").WithContext("key", key)
	}
	return nil
}

// Close closes the underlying connection pool
func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
