package store

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

// ErrNotFound is returned when a referenced object does not exist in the
// remote store.
var ErrNotFound = errors.New("object not found")

// Gateway is the narrow boundary to the remote blob store. Every call is
// fallible and attempted exactly once; retry policy belongs to callers.
type Gateway interface {
	Download(ctx context.Context, ref, localPath string) error
	Upload(ctx context.Context, localPath, ref string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, ref string) error
	DeleteBatch(ctx context.Context, refs []string) error
	SignedURL(ctx context.Context, ref, method string) (string, error)
}

// Config carries the connection settings for the MinIO-backed gateway.
type Config struct {
	Endpoint     string
	AccessKey    string
	SecretKey    string
	Bucket       string
	UseSSL       bool
	SignedURLTTL time.Duration
}

// CleanRef normalizes a store reference and rejects path traversal. Refs are
// bucket-relative object names like "workspace/segments/ep1_part_001.mp4".
func CleanRef(ref string) (string, error) {
	if strings.TrimSpace(ref) == "" {
		return "", fmt.Errorf("empty object reference")
	}

	clean := path.Clean(ref)
	if strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid object reference: %s", ref)
	}

	return strings.TrimLeft(clean, "/"), nil
}
