package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nikhilbhutani/medportal/internal/account"
	"github.com/nikhilbhutani/medportal/internal/models"
	"github.com/nikhilbhutani/medportal/internal/storage"
)

var errUnchanged = errors.New("unchanged")

type MigrationStats struct {
	Accounts          int `json:"accounts"`
	TotalDocuments    int `json:"totalDocuments"`
	MigratedDocuments int `json:"migratedDocuments"`
	AlreadyMigrated   int `json:"alreadyMigrated"`
}

// MigrateDocuments backfills processing fields on documents written by older
// versions. Accounts with nothing to fix are not rewritten.
func MigrateDocuments(ctx context.Context, repo account.Repository) (*MigrationStats, error) {
	numbers, err := repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	stats := &MigrationStats{Accounts: len(numbers)}
	for _, number := range numbers {
		var total, migrated int
		_, err := repo.Update(ctx, number, func(acc *models.Account) error {
			total, migrated = len(acc.Documents), 0
			for i := range acc.Documents {
				if acc.Documents[i].Normalize() {
					migrated++
				}
			}
			if acc.Documents == nil {
				acc.Documents = []models.Document{}
				migrated++
			}
			if migrated == 0 {
				return errUnchanged
			}
			return nil
		})
		if err != nil && !errors.Is(err, errUnchanged) {
			return stats, fmt.Errorf("migrate account %s: %w", account.Mask(number), err)
		}
		stats.TotalDocuments += total
		stats.MigratedDocuments += migrated
	}
	stats.AlreadyMigrated = stats.TotalDocuments - stats.MigratedDocuments
	if stats.AlreadyMigrated < 0 {
		stats.AlreadyMigrated = 0
	}

	slog.Info("document migration finished",
		"accounts", stats.Accounts,
		"documents", stats.TotalDocuments,
		"migrated", stats.MigratedDocuments,
	)
	return stats, nil
}

type BrokenDocument struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	BlobURL string `json:"blobUrl"`
}

type CleanupError struct {
	Type  string `json:"type"`
	URL   string `json:"url,omitempty"`
	Error string `json:"error"`
}

type CleanupReport struct {
	TotalBlobs         int                `json:"totalBlobs"`
	TotalDocuments     int                `json:"totalDocuments"`
	DocumentsWithBlobs int                `json:"documentsWithBlobs"`
	OrphanedBlobs      []storage.BlobInfo `json:"orphanedBlobs"`
	BrokenMetadata     []BrokenDocument   `json:"brokenMetadata"`

	Applied              bool           `json:"applied"`
	OrphanedBlobsDeleted int            `json:"orphanedBlobsDeleted"`
	BrokenMetadataFixed  int            `json:"brokenMetadataFixed"`
	Errors               []CleanupError `json:"errors,omitempty"`
}

// CleanupStorage compares the blobs under the account's prefix with the
// account's documents. Orphaned blobs are stored but unreferenced; broken
// metadata references a blob that no longer exists. With apply set, orphans
// are deleted and broken references cleared.
func CleanupStorage(ctx context.Context, repo account.Repository, blobs storage.BlobStore, accountNumber string, apply bool) (*CleanupReport, error) {
	acc, err := repo.Get(ctx, accountNumber)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	listed, err := blobs.List(ctx, accountNumber+"/")
	if err != nil {
		return nil, fmt.Errorf("list blobs: %w", err)
	}

	stored := make(map[string]bool, len(listed))
	for _, b := range listed {
		stored[b.URL] = true
	}
	referenced := map[string]bool{}
	rep := &CleanupReport{
		TotalBlobs:     len(listed),
		TotalDocuments: len(acc.Documents),
		OrphanedBlobs:  []storage.BlobInfo{},
		BrokenMetadata: []BrokenDocument{},
	}
	for _, d := range acc.Documents {
		if !d.HasBlob() {
			continue
		}
		rep.DocumentsWithBlobs++
		referenced[*d.BlobURL] = true
		if !stored[*d.BlobURL] {
			rep.BrokenMetadata = append(rep.BrokenMetadata, BrokenDocument{ID: d.ID, Name: d.OriginalName, BlobURL: *d.BlobURL})
		}
	}
	for _, b := range listed {
		if !referenced[b.URL] {
			rep.OrphanedBlobs = append(rep.OrphanedBlobs, b)
		}
	}

	if !apply {
		return rep, nil
	}
	rep.Applied = true

	for _, b := range rep.OrphanedBlobs {
		if err := blobs.Delete(ctx, b.URL); err != nil {
			rep.Errors = append(rep.Errors, CleanupError{Type: "blob_deletion", URL: b.URL, Error: err.Error()})
			continue
		}
		rep.OrphanedBlobsDeleted++
	}

	if len(rep.BrokenMetadata) > 0 {
		fixed := 0
		_, err := repo.Update(ctx, accountNumber, func(acc *models.Account) error {
			fixed = 0
			for i := range acc.Documents {
				d := &acc.Documents[i]
				if d.HasBlob() && !stored[*d.BlobURL] {
					d.BlobURL = nil
					fixed++
				}
			}
			if fixed == 0 {
				return errUnchanged
			}
			return nil
		})
		if err != nil && !errors.Is(err, errUnchanged) {
			rep.Errors = append(rep.Errors, CleanupError{Type: "metadata_update", Error: err.Error()})
		} else {
			rep.BrokenMetadataFixed = fixed
		}
	}

	slog.Info("storage cleanup applied",
		"account", account.Mask(accountNumber),
		"orphans_deleted", rep.OrphanedBlobsDeleted,
		"metadata_fixed", rep.BrokenMetadataFixed,
		"errors", len(rep.Errors),
	)
	return rep, nil
}
