package storage

import (
	"context"
	"fmt"

	"github.com/vladimiradmaev/tacticmap/internal/config"
	"github.com/vladimiradmaev/tacticmap/internal/database"
	apperrors "github.com/vladimiradmaev/tacticmap/internal/errors"
)

// ErrNotFound is returned by Get when the key holds no record
var ErrNotFound = apperrors.New(apperrors.ErrorTypeNotFound, "KEY_NOT_FOUND", "Key not found")

// KeyValue is the durable local storage used for persisted state
type KeyValue interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// New opens the backend selected in cfg
func New(ctx context.Context, cfg *config.Config) (KeyValue, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return NewMemory(), nil
	case config.BackendRedis:
		return NewRedis(ctx, cfg.Redis)
	case config.BackendPostgres:
		db, err := database.NewPostgresDB(cfg.DB)
		if err != nil {
			return nil, err
		}
		return NewPostgres(db), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
