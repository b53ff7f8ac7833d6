package io

import (
	"context"
	"os"

	"github.com/scilab-ai/scilab/backend/pkg/loader"
)

// IOGraphFileLoader loads files directly from the local filesystem.
type IOGraphFileLoader struct{}

// NewIOGraphFileLoader creates a new filesystem-based file loader.
func NewIOGraphFileLoader() *IOGraphFileLoader {
	return &IOGraphFileLoader{}
}

// GetFileText reads the file content from the filesystem.
func (l *IOGraphFileLoader) GetFileText(ctx context.Context, file loader.GraphFile) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(file.FilePath)
}
