// Package storage provides a domain-agnostic interface for S3-compatible object storage.
// Forecasting keeps model artifacts and impact reports here.
package storage

import (
	"context"
	"errors"
)

// ErrObjectNotFound is returned when a key does not exist in the bucket.
var ErrObjectNotFound = errors.New("object not found")

// BlobStore defines the object storage operations the application needs.
type BlobStore interface {
	// PutObject writes data under key, replacing any existing object.
	PutObject(ctx context.Context, bucket, key, contentType string, data []byte) error

	// GetObject reads a whole object. Missing keys return ErrObjectNotFound.
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)

	// DeleteObject removes an object from storage.
	DeleteObject(ctx context.Context, bucket, key string) error

	// EnsureBucketExists creates the bucket if it doesn't exist.
	EnsureBucketExists(ctx context.Context, bucket string) error
}

// Config defines the configuration interface for storage.
type Config interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	IsMinIOEnabled() bool
}
