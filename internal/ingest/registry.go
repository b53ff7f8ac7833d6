package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/scilab-ai/scilab/backend/pkg/logger"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrFileMissing      = errors.New("document file missing")
)

// Upload describes a document waiting for ingestion.
type Upload struct {
	DocumentID string
	Filename   string
	Path       string
	SizeBytes  int
}

// Registry maps document ids to uploaded temp files. The last upload for an
// id wins and removes the file it replaces.
type Registry struct {
	mu   sync.Mutex
	dir  string
	docs map[string]string
}

// NewRegistry stores uploads in dir, or in the OS temp dir when dir is empty.
func NewRegistry(dir string) *Registry {
	return &Registry{dir: dir, docs: make(map[string]string)}
}

// DocumentID is the first 16 hex characters of the SHA-256 of content.
func DocumentID(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])[:16]
}

// Save writes content to a new temp file under id, or under its content
// hash when id is empty.
func (r *Registry) Save(id, filename string, content []byte) (Upload, error) {
	if id == "" {
		id = DocumentID(content)
	}

	f, err := os.CreateTemp(r.dir, fmt.Sprintf("scilab_%s_*.pdf", id))
	if err != nil {
		return Upload{}, fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(f.Name())
		return Upload{}, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return Upload{}, fmt.Errorf("failed to close temp file: %w", err)
	}

	r.mu.Lock()
	old, replaced := r.docs[id]
	r.docs[id] = f.Name()
	r.mu.Unlock()

	if replaced {
		removeFile(old)
	}

	logger.Debug("[Ingest] Stored upload", "document_id", id, "path", f.Name(), "replaced", replaced)
	return Upload{DocumentID: id, Filename: filename, Path: f.Name(), SizeBytes: len(content)}, nil
}

// Path returns the temp file of id, checking that it still exists.
func (r *Registry) Path(id string) (string, error) {
	r.mu.Lock()
	path, ok := r.docs[id]
	r.mu.Unlock()

	if !ok {
		return "", ErrDocumentNotFound
	}
	if _, err := os.Stat(path); err != nil {
		return "", ErrFileMissing
	}
	return path, nil
}

// Remove deletes the entry of id and its file, but only while the entry
// still points at path. A newer upload under the same id is kept.
func (r *Registry) Remove(id, path string) {
	r.mu.Lock()
	current, ok := r.docs[id]
	if ok && current == path {
		delete(r.docs, id)
	}
	r.mu.Unlock()

	removeFile(path)
}

// Pending returns the number of uploads waiting for ingestion.
func (r *Registry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.docs)
}

// Close removes every pending temp file.
func (r *Registry) Close() {
	r.mu.Lock()
	docs := r.docs
	r.docs = make(map[string]string)
	r.mu.Unlock()

	for _, path := range docs {
		removeFile(path)
	}
}

func removeFile(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("[Ingest] Failed to remove temp file", "path", path, "err", err)
	}
}
