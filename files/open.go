package files

import (
	"context"
	"io"

	"github.com/padraicbc/library/config"
)

// StoreCloser is a Store holding resources that must be released.
type StoreCloser interface {
	Store
	io.Closer
}

// FromConfig opens the backend selected by cfg.Storage.
func FromConfig(ctx context.Context, cfg *config.Config) (StoreCloser, error) {
	if cfg.Storage == config.StorageS3 {
		s, err := NewS3(ctx, S3Options{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			Prefix:    cfg.S3Prefix,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	l, err := NewLocal(cfg.UploadDir)
	if err != nil {
		return nil, err
	}
	return l, nil
}
