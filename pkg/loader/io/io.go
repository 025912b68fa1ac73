package io

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/OFFIS-RIT/graphlearn/pkg/loader"

	"golang.org/x/sync/singleflight"
)

// LocalBlobLoader reads documents from a directory on the local filesystem.
type LocalBlobLoader struct {
	root     string
	maxBytes int64

	group singleflight.Group
}

// NewLocalBlobLoader serves locations relative to root.
func NewLocalBlobLoader(root string, maxBytes int64) *LocalBlobLoader {
	return &LocalBlobLoader{root: root, maxBytes: maxBytes}
}

func (l *LocalBlobLoader) resolve(location string) (string, error) {
	rel := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(location, "/")))
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid storage location %q", location)
	}
	return filepath.Join(l.root, rel), nil
}

// Download implements loader.BlobLoader.
func (l *LocalBlobLoader) Download(ctx context.Context, location string) ([]byte, error) {
	p, err := l.resolve(location)
	if err != nil {
		return nil, err
	}

	result, err, _ := l.group.Do(p, func() (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := os.Open(p)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", loader.ErrBlobNotFound, location)
			}
			return nil, fmt.Errorf("failed to open %s: %w", location, err)
		}
		defer f.Close()

		return loader.ReadAllLimited(f, l.maxBytes)
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}
