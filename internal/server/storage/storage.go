// Package storage keeps uploaded submissions and generated reports, either on
// local disk or in an S3-compatible object store.
package storage

import (
	"context"
	"fmt"
	"io"

	sc "github.com/dmitrijs2005/filingapi/internal/server/config"
)

// Storage is byte-level put/get keyed by a slash separated path.
type Storage interface {
	Upload(ctx context.Context, path string, content []byte) error
	Download(ctx context.Context, path string) (io.ReadCloser, error)
}

// UploadPath is where a filer's file for a period lives.
func UploadPath(period, lei, fileID, ext string) string {
	return fmt.Sprintf("upload/%s/%s/%s.%s", period, lei, fileID, ext)
}

// New builds the backend selected by cfg.FSProtocol.
func New(ctx context.Context, cfg *sc.Config) (Storage, error) {
	switch cfg.FSProtocol {
	case sc.FSProtocolFile, "":
		return NewLocal(cfg.FSRoot), nil
	case sc.FSProtocolS3:
		return NewS3(ctx, S3Options{
			Bucket:       cfg.FSRoot,
			Region:       cfg.S3Region,
			AccessKey:    cfg.S3RootUser,
			SecretKey:    cfg.S3RootPassword,
			BaseEndpoint: cfg.S3BaseEndpoint,
		})
	default:
		return nil, fmt.Errorf("unknown storage protocol %q", cfg.FSProtocol)
	}
}
