// Package filestore keeps uploaded import sources on local disk or in an
// S3-compatible bucket.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/JonMunkholm/hrpipe/internal/config"
	"github.com/JonMunkholm/hrpipe/internal/core"
)

// ErrNotExist is returned by Open for an unknown key.
var ErrNotExist = errors.New("file does not exist")

// ErrInvalidKey is returned for keys that are empty, absolute or escape the
// store root.
var ErrInvalidKey = errors.New("invalid file key")

// New selects the backend named by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig) (core.FileStore, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "local":
		return NewLocal(cfg.LocalDir)
	case "s3":
		return NewS3(ctx, S3Options{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Prefix:    cfg.S3Prefix,
		})
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

// cleanKey normalizes a slash-separated key.
func cleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	clean := path.Clean(key)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return clean, nil
}
