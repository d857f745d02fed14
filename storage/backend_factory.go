package storage

import (
	"context"
	"fmt"

	"github.com/cppla/healthbbs/config"
)

// NewBackendFromConfig selects the object store named by cfg.StorageBackend.
func NewBackendFromConfig(ctx context.Context, cfg config.AppConfig) (Backend, error) {
	switch cfg.StorageBackend {
	case "s3":
		return NewS3Backend(ctx, cfg.S3BucketName, cfg.AWSRegion)
	case "filesystem", "":
		return NewFilesystemBackend(cfg.UploadDir, cfg.UploadBaseURL)
	default:
		return nil, fmt.Errorf("unsupported STORAGE_BACKEND %q", cfg.StorageBackend)
	}
}
