package document

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/nikhilbhutani/medportal/internal/models"
)

func TestViewOriginalIsRepeatable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.upload(t, "scan.png", "png")

	before, _ := f.repo.Get(ctx, testAccount)
	first, err := f.svc.View(ctx, testAccount, doc.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.svc.View(ctx, testAccount, doc.ID, VersionOriginal)
	if err != nil {
		t.Fatal(err)
	}
	after, _ := f.repo.Get(ctx, testAccount)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("views differ: %+v vs %+v", first, second)
	}
	if first.RedirectURL != *doc.BlobURL {
		t.Errorf("redirect = %q", first.RedirectURL)
	}
	if before.Revision != after.Revision {
		t.Error("view must not write the account")
	}
}

func TestViewPlaceholders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.upload(t, "scan.png", "png")

	_, _ = f.repo.Update(ctx, testAccount, func(acc *models.Account) error {
		acc.Documents = append(acc.Documents, models.NewDocument("legacy", "old.pdf", "application/pdf", 2048, f.clock))
		return nil
	})

	tests := []struct {
		name    string
		id      string
		version string
		setup   func()
		want    string
	}{
		{"missing blob", "legacy", VersionOriginal, nil, "File Preview Not Available"},
		{"not processed", doc.ID, VersionProcessed, nil, "Not yet processed"},
		{"in progress", doc.ID, VersionTranslated, func() {
			_ = f.svc.StartProcessing(ctx, testAccount, doc.ID)
		}, "Processing in Progress"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}
			v, err := f.svc.View(ctx, testAccount, tt.id, tt.version)
			if err != nil {
				t.Fatal(err)
			}
			if v.RedirectURL != "" || !strings.Contains(v.Content, tt.want) {
				t.Errorf("view = %+v", v)
			}
		})
	}
}

func TestViewErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.upload(t, "scan.png", "png")

	if _, err := f.svc.View(ctx, testAccount, doc.ID, "thumbnail"); !errors.Is(err, ErrUnknownVersion) {
		t.Errorf("unknown version err = %v", err)
	}
	if _, err := f.svc.View(ctx, testAccount, "nope", VersionOriginal); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing doc err = %v", err)
	}
}

type mapCache struct {
	data map[string]string
	gets int
}

func (c *mapCache) Get(_ context.Context, key string, dest any) (bool, error) {
	c.gets++
	v, ok := c.data[key]
	if ok {
		*dest.(*string) = v
	}
	return ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	c.data[key] = value.(string)
	return nil
}

func (c *mapCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func TestViewCachesReports(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cache := &mapCache{data: map[string]string{}}
	f.svc.cache = cache

	doc := startedDocument(t, f)
	if err := f.processor(succeedWith(reportText)).Run(ctx, f.queue.jobs[0]); err != nil {
		t.Fatal(err)
	}

	getsBefore := f.blobs.gets
	for i := 0; i < 3; i++ {
		if _, err := f.svc.View(ctx, testAccount, doc.ID, VersionTranslated); err != nil {
			t.Fatal(err)
		}
	}
	if n := f.blobs.gets - getsBefore; n != 1 {
		t.Errorf("blob reads = %d, want 1", n)
	}
	if len(cache.data) != 1 {
		t.Errorf("cache entries = %d", len(cache.data))
	}

	if _, err := f.svc.Delete(ctx, testAccount, doc.ID); err != nil {
		t.Fatal(err)
	}
	if len(cache.data) != 0 {
		t.Error("delete should invalidate cached reports")
	}
}
