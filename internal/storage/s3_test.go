package storage

import "testing"

func TestDocumentKey(t *testing.T) {
	tests := []struct {
		id, filename, want string
	}{
		{"abc", "paper.pdf", "documents/abc.pdf"},
		{"abc", "Paper.PDF", "documents/abc.PDF"},
		{"abc", "noext", "documents/abc.pdf"},
	}
	for _, tt := range tests {
		if got := DocumentKey(tt.id, tt.filename); got != tt.want {
			t.Errorf("DocumentKey(%q, %q) = %q, want %q", tt.id, tt.filename, got, tt.want)
		}
	}
}
