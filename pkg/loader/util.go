package loader

import (
	"fmt"
	"io"
)

// ReadAllLimited reads r completely, failing with ErrBlobTooLarge past limit
// bytes. A limit <= 0 selects DefaultMaxBlobBytes.
func ReadAllLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultMaxBlobBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w (%d bytes)", ErrBlobTooLarge, limit)
	}
	return data, nil
}
