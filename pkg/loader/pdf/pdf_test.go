package pdf

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/scilab-ai/scilab/backend/pkg/loader"
)

type staticLoader struct {
	content []byte
	calls   atomic.Int32
}

func (l *staticLoader) GetFileText(ctx context.Context, file loader.GraphFile) ([]byte, error) {
	l.calls.Add(1)
	return l.content, nil
}

type prefixParser struct{}

func (prefixParser) ParseText(ctx context.Context, content []byte) (string, error) {
	return "parsed:" + string(content), nil
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"  \n\n", ""},
		{"a\r\nb", "a\nb\n"},
		{"a\n\n\n\n\nb\n", "a\n\nb\n"},
	}
	for _, tt := range tests {
		if got := normalizeText(tt.in); got != tt.want {
			t.Errorf("normalizeText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParser_RejectsNonPDF(t *testing.T) {
	_, err := NewParser().ParseText(context.Background(), []byte("hello"))
	if !errors.Is(err, ErrNotPDF) {
		t.Fatalf("ParseText() error = %v, want ErrNotPDF", err)
	}
}

func TestPDFGraphLoader_CachesText(t *testing.T) {
	src := &staticLoader{content: []byte("%PDF-1.7 body")}
	l := NewPDFGraphLoaderWithParser(src, prefixParser{})
	file := loader.NewGraphDocumentFile(loader.NewGraphFileParams{ID: "doc", FilePath: "/tmp/doc.pdf", Loader: l})

	for i := 0; i < 3; i++ {
		text, err := file.GetText(context.Background())
		if err != nil {
			t.Fatalf("GetText() error = %v", err)
		}
		if string(text) != "parsed:%PDF-1.7 body" {
			t.Fatalf("GetText() = %q", text)
		}
	}
	if got := src.calls.Load(); got != 1 {
		t.Errorf("source reads = %d, want 1", got)
	}

	l.Forget(file)
	if _, err := file.GetText(context.Background()); err != nil {
		t.Fatalf("GetText() error = %v", err)
	}
	if got := src.calls.Load(); got != 2 {
		t.Errorf("source reads after Forget = %d, want 2", got)
	}
}
