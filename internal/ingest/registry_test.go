package ingest

import (
	"errors"
	"os"
	"strings"
	"testing"
)

func TestDocumentID(t *testing.T) {
	id := DocumentID([]byte("hello"))
	if id != "2cf24dba5fb0a30e" {
		t.Errorf("DocumentID() = %q", id)
	}
}

func TestRegistry_SaveAndReplace(t *testing.T) {
	r := NewRegistry(t.TempDir())

	first, err := r.Save("", "paper.pdf", []byte("%PDF-1 one"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if first.DocumentID != DocumentID([]byte("%PDF-1 one")) {
		t.Errorf("DocumentID = %q, want content hash", first.DocumentID)
	}
	if first.SizeBytes != 10 || first.Filename != "paper.pdf" {
		t.Errorf("Upload = %+v", first)
	}
	if !strings.Contains(first.Path, "scilab_"+first.DocumentID+"_") || !strings.HasSuffix(first.Path, ".pdf") {
		t.Errorf("Path = %q", first.Path)
	}

	second, err := r.Save(first.DocumentID, "paper-v2.pdf", []byte("%PDF-1 two"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(first.Path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("replaced file still exists: %v", err)
	}
	path, err := r.Path(first.DocumentID)
	if err != nil || path != second.Path {
		t.Errorf("Path() = %q, %v, want %q", path, err, second.Path)
	}
	if r.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", r.Pending())
	}
}

func TestRegistry_PathErrors(t *testing.T) {
	r := NewRegistry(t.TempDir())
	if _, err := r.Path("nope"); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("Path(unknown) error = %v, want ErrDocumentNotFound", err)
	}

	up, err := r.Save("doc", "a.pdf", []byte("x"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	os.Remove(up.Path)
	if _, err := r.Path("doc"); !errors.Is(err, ErrFileMissing) {
		t.Errorf("Path(missing file) error = %v, want ErrFileMissing", err)
	}
}

func TestRegistry_RemoveKeepsNewerUpload(t *testing.T) {
	r := NewRegistry(t.TempDir())
	old, _ := r.Save("doc", "a.pdf", []byte("old"))
	newer, _ := r.Save("doc", "a.pdf", []byte("new"))

	r.Remove("doc", old.Path)
	if path, err := r.Path("doc"); err != nil || path != newer.Path {
		t.Errorf("Path() = %q, %v, want newer upload", path, err)
	}

	r.Remove("doc", newer.Path)
	if r.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", r.Pending())
	}
	if _, err := os.Stat(newer.Path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("file not removed: %v", err)
	}
}
