package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/gosimple/slug"

	"github.com/nikhilbhutani/medportal/internal/config"
)

var ErrNotFound = errors.New("blob not found")

// BlobStore owns document bytes. Blobs are addressed by the public URL
// returned from Put.
type BlobStore interface {
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, url string) ([]byte, error)
	Delete(ctx context.Context, url string) error
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
}

type BlobInfo struct {
	Name       string    `json:"pathname"`
	URL        string    `json:"url"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// New returns the backend selected by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig) (BlobStore, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocalStore(cfg.LocalPath, cfg.PublicBaseURL)
	case "supabase":
		return NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseKey, cfg.Bucket), nil
	case "s3":
		return NewS3Store(ctx, S3Options{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PublicURL: cfg.S3PublicURL,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// ObjectName builds the blob name for an uploaded file. Names are grouped by
// account so a prefix listing finds every blob the account owns.
func ObjectName(accountNumber, documentID, fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	base := slug.Make(strings.TrimSuffix(fileName, path.Ext(fileName)))
	if base == "" {
		base = "document"
	}
	return fmt.Sprintf("%s/%s-%s%s", accountNumber, documentID, base, ext)
}

// nameFromURL strips base from url, returning the object name.
func nameFromURL(base, url string) (string, error) {
	prefix := strings.TrimRight(base, "/") + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", fmt.Errorf("%w: url %q is outside %s", ErrNotFound, url, prefix)
	}
	name := strings.TrimPrefix(url, prefix)
	if err := validName(name); err != nil {
		return "", err
	}
	return name, nil
}

func validName(name string) error {
	if name == "" || strings.HasPrefix(name, "/") {
		return fmt.Errorf("invalid blob name %q", name)
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("invalid blob name %q", name)
		}
	}
	return nil
}
