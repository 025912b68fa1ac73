package loader

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrBlobNotFound is returned when a storage location does not exist.
	ErrBlobNotFound = errors.New("blob not found")
	// ErrBlobTooLarge is returned when a blob exceeds the loader's size limit.
	ErrBlobTooLarge = errors.New("blob exceeds size limit")
)

// DefaultMaxBlobBytes bounds a single downloaded document.
const DefaultMaxBlobBytes int64 = 100 << 20

// BlobLoader fetches raw document bytes from a storage location.
type BlobLoader interface {
	Download(ctx context.Context, location string) ([]byte, error)
}

// TextExtractor turns a paginated binary document into plain text. It never
// fails: unreadable input yields "".
type TextExtractor interface {
	ExtractText(ctx context.Context, r io.ReaderAt, size int64) string
}

// TopicScraper fetches bounded reference text about a topic. It never fails:
// any problem yields "".
type TopicScraper interface {
	Scrape(ctx context.Context, topic string) string
}
