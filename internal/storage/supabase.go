package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SupabaseStore keeps blobs in a Supabase Storage bucket. The bucket is
// expected to be public so returned URLs can be opened directly.
type SupabaseStore struct {
	baseURL    string
	serviceKey string
	bucket     string
	httpClient *http.Client
}

func NewSupabaseStore(supabaseURL, serviceKey, bucket string) *SupabaseStore {
	return &SupabaseStore{
		baseURL:    strings.TrimRight(supabaseURL, "/") + "/storage/v1",
		serviceKey: serviceKey,
		bucket:     bucket,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

func (s *SupabaseStore) publicBase() string {
	return fmt.Sprintf("%s/object/public/%s", s.baseURL, s.bucket)
}

func (s *SupabaseStore) objectURL(name string) string {
	return fmt.Sprintf("%s/object/%s/%s", s.baseURL, s.bucket, name)
}

func (s *SupabaseStore) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.objectURL(name), bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}
	s.authorize(req)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("upload failed (%d): %s", resp.StatusCode, string(body))
	}

	return s.publicBase() + "/" + name, nil
}

func (s *SupabaseStore) Get(ctx context.Context, url string) ([]byte, error) {
	name, err := nameFromURL(s.publicBase(), url)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.objectURL(name), nil)
	if err != nil {
		return nil, fmt.Errorf("create download request: %w", err)
	}
	s.authorize(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest {
		// Supabase reports missing objects as 400 with a not_found body on
		// some versions.
		return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("download failed (%d)", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

func (s *SupabaseStore) Delete(ctx context.Context, url string) error {
	name, err := nameFromURL(s.publicBase(), url)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.objectURL(name), nil)
	if err != nil {
		return fmt.Errorf("create delete request: %w", err)
	}
	s.authorize(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("delete failed (%d)", resp.StatusCode)
	}

	return nil
}

type supabaseListReq struct {
	Prefix string `json:"prefix"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

type supabaseObject struct {
	Name      string    `json:"name"`
	ID        *string   `json:"id"`
	UpdatedAt time.Time `json:"updated_at"`
	Metadata  struct {
		Size int64 `json:"size"`
	} `json:"metadata"`
}

// List returns the objects directly inside the prefix folder. Supabase lists
// one folder level at a time; folder entries come back with a null id and are
// skipped.
func (s *SupabaseStore) List(ctx context.Context, prefix string) ([]BlobInfo, error) {
	folder := strings.TrimRight(prefix, "/")
	const pageSize = 1000

	var out []BlobInfo
	for offset := 0; ; offset += pageSize {
		body, err := json.Marshal(supabaseListReq{Prefix: folder, Limit: pageSize, Offset: offset})
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			fmt.Sprintf("%s/object/list/%s", s.baseURL, s.bucket), bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create list request: %w", err)
		}
		s.authorize(req)
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("list files: %w", err)
		}

		var objects []supabaseObject
		if resp.StatusCode >= 400 {
			b, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("list failed (%d): %s", resp.StatusCode, string(b))
		}
		err = json.NewDecoder(resp.Body).Decode(&objects)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decode list: %w", err)
		}

		for _, o := range objects {
			if o.ID == nil {
				continue
			}
			name := o.Name
			if folder != "" {
				name = folder + "/" + o.Name
			}
			out = append(out, BlobInfo{
				Name:       name,
				URL:        s.publicBase() + "/" + name,
				Size:       o.Metadata.Size,
				UploadedAt: o.UpdatedAt,
			})
		}
		if len(objects) < pageSize {
			return out, nil
		}
	}
}

func (s *SupabaseStore) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("apikey", s.serviceKey)
}
