package storage

import (
	"context"
	"errors"
	"testing"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir(), "http://localhost:3000/")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	url, err := s.Put(ctx, "12-34/doc-report.pdf", []byte("%PDF-1.4"), "application/pdf")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if want := "http://localhost:3000/files/12-34/doc-report.pdf"; url != want {
		t.Errorf("url = %q, want %q", url, want)
	}

	got, err := s.Get(ctx, url)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "%PDF-1.4" {
		t.Errorf("get = %q", got)
	}

	if _, err := s.Put(ctx, "12-34/other.png", []byte("png"), "image/png"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Put(ctx, "processed/x-translated.md", []byte("# r"), "text/markdown"); err != nil {
		t.Fatal(err)
	}

	blobs, err := s.List(ctx, "12-34/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(blobs) != 2 {
		t.Fatalf("list = %+v, want 2 entries", blobs)
	}
	for _, b := range blobs {
		if b.Size == 0 || b.URL != s.URL(b.Name) {
			t.Errorf("blob = %+v", b)
		}
	}

	if err := s.Delete(ctx, url); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, url); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}
	if _, err := s.Get(ctx, url); !errors.Is(err, ErrNotFound) {
		t.Errorf("get after delete err = %v, want ErrNotFound", err)
	}
}

func TestLocalStoreRejectsEscapes(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir(), "http://h")
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"../x", "a/../../x", "/etc/passwd", "", "a//b"} {
		if _, err := s.Put(ctx, name, []byte("x"), "text/plain"); err == nil {
			t.Errorf("put %q: expected error", name)
		}
	}
	if _, err := s.Get(ctx, "http://h/files/../secret"); err == nil {
		t.Error("get with traversal should fail")
	}
	if _, err := s.Get(ctx, "https://elsewhere/files/a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign url err = %v", err)
	}
}

func TestObjectName(t *testing.T) {
	tests := []struct {
		file string
		want string
	}{
		{"Blood Test Results.PDF", "11-22/doc-1-blood-test-results.pdf"},
		{"Résumé médical.jpg", "11-22/doc-1-resume-medical.jpg"},
		{".png", "11-22/doc-1-document.png"},
		{"noext", "11-22/doc-1-noext"},
	}
	for _, tt := range tests {
		if got := ObjectName("11-22", "doc-1", tt.file); got != tt.want {
			t.Errorf("ObjectName(%q) = %q, want %q", tt.file, got, tt.want)
		}
	}
}

func TestLocalStoreOpen(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir(), "http://localhost:3000")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Put(ctx, "12-34/doc.png", []byte("png"), "image/png"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Put(ctx, "tmp/leftover", []byte("x"), ""); err != nil {
		t.Fatal(err)
	}

	f, info, err := s.Open("12-34/doc.png")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	f.Close()
	if info.Size() != 3 {
		t.Errorf("size = %d", info.Size())
	}

	for _, name := range []string{"", "12-34", "12-34/", "tmp/leftover", "../etc/passwd", "12-34/missing.png", "toplevel.json"} {
		if f, _, err := s.Open(name); !errors.Is(err, ErrNotFound) {
			if f != nil {
				f.Close()
			}
			t.Errorf("Open(%q) err = %v, want ErrNotFound", name, err)
		}
	}
}
