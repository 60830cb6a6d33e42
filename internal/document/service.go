package document

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nikhilbhutani/medportal/internal/account"
	"github.com/nikhilbhutani/medportal/internal/models"
	"github.com/nikhilbhutani/medportal/internal/storage"
)

const blobDeleteConcurrency = 4

// Job identifies one detached processing run.
type Job struct {
	DocumentID    string `json:"document_id"`
	AccountNumber string `json:"account_number"`
}

// Queue hands a processing job to a worker.
type Queue interface {
	EnqueueProcess(ctx context.Context, job Job) error
}

// Cache stores fetched report bodies. A nil Cache disables caching.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type Options struct {
	MaxUploadBytes int64
	// StaleAfter is how long a document may sit in processing before a new
	// process request is allowed to restart it.
	StaleAfter time.Duration
	Cache      Cache
	ReportTTL  time.Duration
}

// Service implements the document operations for an already authenticated
// account.
type Service struct {
	repo       account.Repository
	blobs      storage.BlobStore
	queue      Queue
	cache      Cache
	maxUpload  int64
	staleAfter time.Duration
	reportTTL  time.Duration
	now        func() time.Time
}

func NewService(repo account.Repository, blobs storage.BlobStore, queue Queue, opts Options) *Service {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 4 << 20
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 15 * time.Minute
	}
	if opts.ReportTTL <= 0 {
		opts.ReportTTL = time.Hour
	}
	return &Service{
		repo:       repo,
		blobs:      blobs,
		queue:      queue,
		cache:      opts.Cache,
		maxUpload:  opts.MaxUploadBytes,
		staleAfter: opts.StaleAfter,
		reportTTL:  opts.ReportTTL,
		now:        time.Now,
	}
}

type UploadRequest struct {
	FileName string
	FileSize int64
	FileType string
	// DataBase64 may carry a data: URL prefix.
	DataBase64  string
	Description string
}

// Upload stores the file bytes and appends an all-pending document to the
// account. The blob is removed again if the account cannot be saved.
func (s *Service) Upload(ctx context.Context, accountNumber string, req UploadRequest) (*models.Document, error) {
	if strings.TrimSpace(req.FileName) == "" {
		return nil, fmt.Errorf("%w: file name is required", ErrValidation)
	}
	if req.FileSize > s.maxUpload {
		return nil, ErrFileTooLarge
	}

	encoded := req.DataBase64
	if i := strings.Index(encoded, ";base64,"); strings.HasPrefix(encoded, "data:") && i >= 0 {
		encoded = encoded[i+len(";base64,"):]
	}
	if int64(base64.StdEncoding.DecodedLen(len(encoded))) > s.maxUpload+2 {
		return nil, ErrFileTooLarge
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: file data is not valid base64", ErrValidation)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: file data is required", ErrValidation)
	}
	if int64(len(data)) > s.maxUpload {
		return nil, ErrFileTooLarge
	}

	mimetype := req.FileType
	if mimetype == "" {
		mimetype = http.DetectContentType(data)
	}

	id := uuid.NewString()
	url, err := s.blobs.Put(ctx, storage.ObjectName(accountNumber, id, req.FileName), data, mimetype)
	if err != nil {
		return nil, fmt.Errorf("store file: %w", err)
	}

	doc := models.NewDocument(id, req.FileName, mimetype, int64(len(data)), s.now().UTC())
	doc.Description = req.Description
	doc.BlobURL = &url

	_, err = s.repo.Update(ctx, accountNumber, func(acc *models.Account) error {
		acc.Documents = append(acc.Documents, doc)
		return nil
	})
	if err != nil {
		if delErr := s.blobs.Delete(ctx, url); delErr != nil {
			slog.Error("rollback uploaded blob", "document_id", id, "error", delErr)
		}
		return nil, fmt.Errorf("save document: %w", err)
	}

	slog.Info("document uploaded",
		"account", account.Mask(accountNumber),
		"document_id", id,
		"size", len(data),
		"mimetype", mimetype,
	)
	return &doc, nil
}

func (s *Service) List(ctx context.Context, accountNumber string) ([]models.Document, error) {
	acc, err := s.repo.Get(ctx, accountNumber)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	docs := make([]models.Document, len(acc.Documents))
	copy(docs, acc.Documents)
	for i := range docs {
		docs[i].Normalize()
	}
	return docs, nil
}

// Delete removes the document from the account and then its blob and
// generated reports. Blob failures are logged only.
func (s *Service) Delete(ctx context.Context, accountNumber, documentID string) (*models.Document, error) {
	var removed models.Document
	_, err := s.repo.Update(ctx, accountNumber, func(acc *models.Account) error {
		_, idx := acc.FindDocument(documentID)
		if idx < 0 {
			return ErrNotFound
		}
		removed = acc.RemoveDocument(idx)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.deleteBlobs(ctx, removed); err != nil {
		slog.Warn("delete document blob", "document_id", documentID, "error", err)
	}
	slog.Info("document deleted", "account", account.Mask(accountNumber), "document_id", documentID)
	return &removed, nil
}

type BlobDeleteError struct {
	DocumentID string `json:"documentId"`
	Error      string `json:"error"`
}

type BatchDeleteResult struct {
	Deleted          []models.Document
	BlobDeleteErrors []BlobDeleteError
}

// BatchDelete removes every listed document in one account write. Unknown
// ids are ignored.
func (s *Service) BatchDelete(ctx context.Context, accountNumber string, documentIDs []string) (*BatchDeleteResult, error) {
	if len(documentIDs) == 0 {
		return nil, fmt.Errorf("%w: document ids are required", ErrValidation)
	}
	wanted := make(map[string]bool, len(documentIDs))
	for _, id := range documentIDs {
		wanted[id] = true
	}

	var removed []models.Document
	_, err := s.repo.Update(ctx, accountNumber, func(acc *models.Account) error {
		removed = removed[:0]
		kept := make([]models.Document, 0, len(acc.Documents))
		for _, d := range acc.Documents {
			if wanted[d.ID] {
				removed = append(removed, d)
				continue
			}
			kept = append(kept, d)
		}
		acc.Documents = kept
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := &BatchDeleteResult{Deleted: removed}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(blobDeleteConcurrency)
	for _, d := range removed {
		g.Go(func() error {
			if err := s.deleteBlobs(gctx, d); err != nil {
				mu.Lock()
				res.BlobDeleteErrors = append(res.BlobDeleteErrors, BlobDeleteError{DocumentID: d.ID, Error: err.Error()})
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	slog.Info("documents deleted",
		"account", account.Mask(accountNumber),
		"requested", len(documentIDs),
		"deleted", len(removed),
		"blob_errors", len(res.BlobDeleteErrors),
	)
	return res, nil
}

func (s *Service) deleteBlobs(ctx context.Context, d models.Document) error {
	var errs []error
	if d.HasBlob() {
		if err := s.blobs.Delete(ctx, *d.BlobURL); err != nil && !errors.Is(err, storage.ErrNotFound) {
			errs = append(errs, err)
		}
	}

	pv := d.ProcessedVersions
	seen := map[string]bool{}
	var keys []string
	for _, u := range []*string{pv.MarkdownOriginal, pv.JSONOriginal, pv.MarkdownEnglish, pv.JSONEnglish} {
		if u == nil || *u == "" || seen[*u] {
			continue
		}
		seen[*u] = true
		keys = append(keys, reportCacheKey(*u))
		if err := s.blobs.Delete(ctx, *u); err != nil && !errors.Is(err, storage.ErrNotFound) {
			errs = append(errs, err)
		}
	}
	if s.cache != nil && len(keys) > 0 {
		if err := s.cache.Delete(ctx, keys...); err != nil {
			slog.Warn("invalidate report cache", "document_id", d.ID, "error", err)
		}
	}
	return errors.Join(errs...)
}

// StartProcessing moves the document to processing, persists that, and then
// enqueues the detached run. A document already processing is rejected
// unless it has been stuck for longer than the stale window.
func (s *Service) StartProcessing(ctx context.Context, accountNumber, documentID string) error {
	now := s.now().UTC()
	_, err := s.repo.Update(ctx, accountNumber, func(acc *models.Account) error {
		doc, _ := acc.FindDocument(documentID)
		if doc == nil {
			return ErrNotFound
		}
		if !doc.HasBlob() {
			return ErrNoBlob
		}
		if doc.IsProcessing() {
			started := doc.ProcessingStatus.OCR.StartTime
			if started == nil || now.Sub(*started) < s.staleAfter {
				return ErrAlreadyProcessing
			}
			slog.Warn("restarting stale processing", "document_id", documentID, "started", started)
		}
		doc.MarkProcessing(now)
		return nil
	})
	if err != nil {
		return err
	}

	job := Job{DocumentID: documentID, AccountNumber: accountNumber}
	if err := s.queue.EnqueueProcess(ctx, job); err != nil {
		msg := fmt.Sprintf("enqueue processing: %v", err)
		if _, uerr := s.repo.Update(ctx, accountNumber, func(acc *models.Account) error {
			doc, _ := acc.FindDocument(documentID)
			if doc == nil {
				return ErrNotFound
			}
			doc.MarkFailed(msg)
			return nil
		}); uerr != nil {
			slog.Error("record enqueue failure", "document_id", documentID, "error", uerr)
		}
		return fmt.Errorf("enqueue processing: %w", err)
	}

	slog.Info("processing started", "account", account.Mask(accountNumber), "document_id", documentID)
	return nil
}
