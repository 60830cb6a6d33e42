package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/nikhilbhutani/medportal/internal/models"
)

// FileRepository keeps all accounts in one JSON document on disk, keyed by
// account number. Writes replace the file atomically.
type FileRepository struct {
	path string
	mu   sync.Mutex
}

func NewFileRepository(path string) (*FileRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create accounts dir: %w", err)
	}
	r := &FileRepository{path: path}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := r.write(map[string]*models.Account{}); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *FileRepository) Get(_ context.Context, accountNumber string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.read()
	if err != nil {
		return nil, err
	}
	acc, ok := all[accountNumber]
	if !ok {
		return nil, ErrNotFound
	}
	return acc, nil
}

func (r *FileRepository) Create(_ context.Context, accountNumber string, acc *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.read()
	if err != nil {
		return err
	}
	if _, ok := all[accountNumber]; ok {
		return ErrExists
	}
	if acc.Documents == nil {
		acc.Documents = []models.Document{}
	}
	acc.Revision = 1
	all[accountNumber] = acc
	return r.write(all)
}

func (r *FileRepository) Put(_ context.Context, accountNumber string, acc *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.read()
	if err != nil {
		return err
	}
	stored, ok := all[accountNumber]
	if !ok {
		return ErrNotFound
	}
	if stored.Revision != acc.Revision {
		return ErrConflict
	}

	next := *acc
	next.Revision++
	all[accountNumber] = &next
	if err := r.write(all); err != nil {
		return err
	}
	acc.Revision = next.Revision
	return nil
}

func (r *FileRepository) Update(ctx context.Context, accountNumber string, fn func(*models.Account) error) (*models.Account, error) {
	return updateWithRetry(ctx, r, accountNumber, fn)
}

func (r *FileRepository) List(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.read()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(all))
	for k := range all {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

func (r *FileRepository) read() (map[string]*models.Account, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]*models.Account{}, nil
		}
		return nil, fmt.Errorf("read accounts: %w", err)
	}
	all := map[string]*models.Account{}
	if len(data) == 0 {
		return all, nil
	}
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("decode accounts: %w", err)
	}
	return all, nil
}

func (r *FileRepository) write(all map[string]*models.Account) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("encode accounts: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".accounts-*")
	if err != nil {
		return fmt.Errorf("write accounts: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write accounts: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write accounts: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write accounts: %w", err)
	}
	return nil
}
