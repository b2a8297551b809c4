// backend-go/internal/storage/storage.go
package storage

import (
	"context"

	"github.com/andresuchdata/autoplan/backend-go/internal/config"
)

// ObjectInfo represents metadata for a remote file/object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// ObjectStorage captures the minimal S3-compatible operations planning needs:
// blueprint documents come in, decision exports go out.
type ObjectStorage interface {
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
	GetObject(ctx context.Context, key string) ([]byte, error)
	DownloadObject(ctx context.Context, key string, destPath string) error
	UploadObject(ctx context.Context, key string, data []byte, contentType string) error
}

// FromConfig returns the configured bucket, or a LocalStorage rooted at localDir when
// object storage is disabled.
func FromConfig(cfg config.StorageConfig, localDir string) (ObjectStorage, error) {
	if !cfg.Enabled {
		return NewLocalStorage(localDir), nil
	}
	client, err := NewS3Client(S3Config{
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
		UseSSL:    cfg.UseSSL,
		Prefix:    cfg.Prefix,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}
