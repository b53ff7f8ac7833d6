package pdf

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/scilab-ai/scilab/backend/pkg/loader"

	"golang.org/x/sync/singleflight"
)

var ErrNotPDF = errors.New("content is not a PDF")

// Parser converts PDF bytes to text with pdftotext.
type Parser struct {
	Timeout time.Duration
}

var _ loader.DocumentParser = (*Parser)(nil)

func NewParser() *Parser {
	return &Parser{Timeout: DefaultTimeout}
}

func (p *Parser) ParseText(ctx context.Context, content []byte) (string, error) {
	if !loader.IsPDF(content) {
		return "", ErrNotPDF
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return parsePDF(ctx, content, timeout)
}

// PDFGraphLoader loads PDF files through another loader and extracts their
// text. Concurrent requests for the same file share one conversion.
type PDFGraphLoader struct {
	loader loader.GraphFileLoader
	parser loader.DocumentParser

	cache   map[string][]byte
	cacheMu sync.RWMutex
	group   singleflight.Group
}

// NewPDFGraphLoader creates a PDF loader reading raw bytes from l.
func NewPDFGraphLoader(l loader.GraphFileLoader) *PDFGraphLoader {
	return NewPDFGraphLoaderWithParser(l, NewParser())
}

func NewPDFGraphLoaderWithParser(l loader.GraphFileLoader, parser loader.DocumentParser) *PDFGraphLoader {
	return &PDFGraphLoader{
		loader: l,
		parser: parser,
		cache:  make(map[string][]byte),
	}
}

// GetFileText extracts text from a PDF file.
func (l *PDFGraphLoader) GetFileText(ctx context.Context, file loader.GraphFile) ([]byte, error) {
	key := loader.CacheKey(file)

	l.cacheMu.RLock()
	if cached, ok := l.cache[key]; ok {
		l.cacheMu.RUnlock()
		return cached, nil
	}
	l.cacheMu.RUnlock()

	result, err, _ := l.group.Do(key, func() (any, error) {
		l.cacheMu.RLock()
		if cached, ok := l.cache[key]; ok {
			l.cacheMu.RUnlock()
			return cached, nil
		}
		l.cacheMu.RUnlock()

		content, err := l.loader.GetFileText(ctx, file)
		if err != nil {
			return nil, err
		}

		text, err := l.parser.ParseText(ctx, content)
		if err != nil {
			return nil, err
		}
		result := []byte(text)

		l.cacheMu.Lock()
		l.cache[key] = result
		l.cacheMu.Unlock()

		return result, nil
	})

	if err != nil {
		return nil, err
	}

	return result.([]byte), nil
}

// Forget drops the cached text of file.
func (l *PDFGraphLoader) Forget(file loader.GraphFile) {
	l.cacheMu.Lock()
	delete(l.cache, loader.CacheKey(file))
	l.cacheMu.Unlock()
}
