package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/OFFIS-RIT/graphlearn/internal/util"
	"github.com/OFFIS-RIT/graphlearn/pkg/logger"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// tempDocument is the local copy of a downloaded document. Its name carries
// the document id plus a random suffix, so concurrent runs never share a path.
type tempDocument struct {
	*os.File
	size int64
}

func (p *DocumentPipeline) materialize(documentID string, data []byte) (*tempDocument, func(), error) {
	suffix, err := gonanoid.New(12)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate temp file id: %w", err)
	}
	dir := p.tempDir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, fmt.Sprintf("graphlearn-%s-%s.pdf", util.SafeFileComponent(documentID), suffix))

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	cleanup := func() {
		_ = f.Close()
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Warn("[Pipeline] Failed to remove temp file", "path", path, "err", err)
		}
	}

	if _, err := f.Write(data); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	return &tempDocument{File: f, size: int64(len(data))}, cleanup, nil
}
