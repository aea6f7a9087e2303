package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lumenmfb/backend/internal/config"
	"github.com/lumenmfb/backend/internal/domain/document"
)

// NewFromConfig picks the object store for STORAGE_DRIVER. The S3 store
// creates any missing buckets; a failure there is logged, not fatal.
func NewFromConfig(ctx context.Context, cfg config.Config, logger *slog.Logger) (document.ObjectStore, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	switch driver {
	case "", "s3":
		store, err := NewS3Store(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBuckets(ctx); err != nil {
			logger.Warn("could not verify storage buckets", "err", err)
		}
		return store, nil
	case "memory":
		logger.Warn("using in-memory object storage; uploads are lost on restart")
		return NewMemoryStore(fmt.Sprintf("http://localhost:%s/files", cfg.Port)), nil
	default:
		return nil, fmt.Errorf("invalid STORAGE_DRIVER: %s", cfg.StorageDriver)
	}
}
