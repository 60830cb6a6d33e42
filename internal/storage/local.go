package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps blobs on a local filesystem tree, e.g. a mounted volume.
// URLs point at the API's /files/ route.
type LocalStore struct {
	root    string
	baseURL string
}

func NewLocalStore(root, publicBaseURL string) (*LocalStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("local storage root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(abs, stagingDir), 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalStore{
		root:    abs,
		baseURL: strings.TrimRight(publicBaseURL, "/") + "/files",
	}, nil
}

const stagingDir = "tmp"

func (s *LocalStore) URL(name string) string { return s.baseURL + "/" + name }

func (s *LocalStore) Put(ctx context.Context, name string, data []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := validName(name); err != nil {
		return "", err
	}

	dst := filepath.Join(s.root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create blob dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Join(s.root, stagingDir), "put-*")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("store blob: %w", err)
	}

	return s.URL(name), nil
}

func (s *LocalStore) Get(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.pathFromURL(url)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
	}
	return data, err
}

// Delete removes a blob. Missing files are ignored.
func (s *LocalStore) Delete(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.pathFromURL(url)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

func (s *LocalStore) List(ctx context.Context, prefix string) ([]BlobInfo, error) {
	var out []BlobInfo
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if p == filepath.Join(s.root, stagingDir) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if !strings.HasPrefix(name, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, BlobInfo{
			Name:       name,
			URL:        s.URL(name),
			Size:       info.Size(),
			UploadedAt: info.ModTime().UTC(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list blobs: %w", err)
	}
	return out, nil
}

// Open returns the blob stored under name for serving. Only names a Put could
// have produced are accepted: at least one directory level, outside the
// staging area, and never a directory.
func (s *LocalStore) Open(name string) (*os.File, fs.FileInfo, error) {
	if err := validName(name); err != nil || !strings.Contains(name, "/") ||
		strings.HasPrefix(name, stagingDir+"/") {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	f, err := os.Open(filepath.Join(s.root, filepath.FromSlash(name)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return f, info, nil
}

func (s *LocalStore) pathFromURL(url string) (string, error) {
	name, err := nameFromURL(s.baseURL, url)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(name)), nil
}
