package services

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"multi-model-summarizer/internal/extractor"
	"multi-model-summarizer/internal/logger"
)

func newTestStore(t *testing.T, maxSize int64) *UploadStore {
	t.Helper()
	store, err := NewUploadStore(filepath.Join(t.TempDir(), "uploads"), maxSize, logger.Discard())
	if err != nil {
		t.Fatalf("NewUploadStore: %v", err)
	}
	return store
}

func TestSaveKeepsExtensionAndContent(t *testing.T) {
	store := newTestStore(t, 1024)

	up, err := store.Save(strings.NewReader("hello"), "Quarterly Report.TXT")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if filepath.Ext(up.Path) != ".txt" || up.Ext != ".txt" {
		t.Fatalf("path = %s ext = %s", up.Path, up.Ext)
	}
	if filepath.Dir(up.Path) != store.Dir() {
		t.Fatalf("saved outside upload dir: %s", up.Path)
	}
	data, err := os.ReadFile(up.Path)
	if err != nil || string(data) != "hello" {
		t.Fatalf("content = %q, %v", data, err)
	}
	if up.Size != 5 || len(up.Hash) != 64 {
		t.Fatalf("size = %d hash = %q", up.Size, up.Hash)
	}

	store.Remove(up.Path)
	if _, err := os.Stat(up.Path); !os.IsNotExist(err) {
		t.Fatalf("file not removed: %v", err)
	}
	store.Remove(up.Path)
}

func TestSaveRejectsUnsupportedExtension(t *testing.T) {
	store := newTestStore(t, 1024)

	for _, name := range []string{"sheet.csv", "legacy.doc", "noext"} {
		_, err := store.Save(strings.NewReader("x"), name)
		if !errors.Is(err, extractor.ErrUnsupportedFileType) {
			t.Fatalf("%s: expected unsupported type, got %v", name, err)
		}
	}
}

func TestSaveEnforcesSizeLimit(t *testing.T) {
	store := newTestStore(t, 4)

	_, err := store.Save(strings.NewReader("too large"), "big.txt")
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
	entries, _ := os.ReadDir(filepath.Join(store.Dir(), ".tmp"))
	if len(entries) != 0 {
		t.Fatalf("temp files left behind: %d", len(entries))
	}
}

func TestSweepRemovesStaleUploads(t *testing.T) {
	store := newTestStore(t, 1024)

	stale, err := store.Save(strings.NewReader("old"), "old.pdf")
	if err != nil {
		t.Fatal(err)
	}
	fresh, err := store.Save(strings.NewReader("new"), "new.pdf")
	if err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(stale.Path, past, past); err != nil {
		t.Fatal(err)
	}

	janitor, err := NewJanitor(store, time.Hour, time.Hour, logger.Discard())
	if err != nil {
		t.Fatalf("NewJanitor: %v", err)
	}
	if err := janitor.Sweep(); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	if _, err := os.Stat(stale.Path); !os.IsNotExist(err) {
		t.Fatal("stale upload survived")
	}
	if _, err := os.Stat(fresh.Path); err != nil {
		t.Fatalf("fresh upload removed: %v", err)
	}
}
