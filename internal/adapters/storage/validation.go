package storage

import (
	"fmt"
	"strings"
)

// MaxObjectSize caps a single artifact or report upload.
const MaxObjectSize int64 = 64 << 20

// AllowedContentTypes defines the MIME types accepted for uploads.
var AllowedContentTypes = map[string]bool{
	"application/json":         true,
	"application/octet-stream": true,
	"text/plain":               true,
}

// ValidateContentType checks if the content type is allowed.
func ValidateContentType(contentType string) error {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if !AllowedContentTypes[ct] {
		return fmt.Errorf("content type %s is not allowed", contentType)
	}
	return nil
}

// ValidateKey rejects empty keys and keys that escape their prefix.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("object key is required")
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return fmt.Errorf("object key %q is not allowed", key)
	}
	return nil
}

// ValidateObject checks key, content type and size together.
func ValidateObject(key, contentType string, size int64) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := ValidateContentType(contentType); err != nil {
		return err
	}
	if size > MaxObjectSize {
		return fmt.Errorf("object size %d exceeds maximum of %d bytes", size, MaxObjectSize)
	}
	return nil
}
