package pdf

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestExtractText_InvalidInputYieldsEmpty(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{name: "empty", input: nil},
		{name: "not a pdf", input: []byte("this is plain text, not a PDF document")},
		{name: "truncated header", input: []byte("%PDF-1.4\n1 0 obj\n<<")},
	}

	e := NewPDFTextExtractor(false)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.ExtractText(context.Background(), bytes.NewReader(tt.input), int64(len(tt.input)))
			if got != "" {
				t.Fatalf("ExtractText() = %q, want empty", got)
			}
		})
	}
}

func TestExtractText_JoinsPagesWithNewline(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "three_pages.pdf"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	e := NewPDFTextExtractor(false)
	got := e.ExtractText(context.Background(), bytes.NewReader(data), int64(len(data)))

	// Page two only draws a line and has no text layer.
	want := "page one\n\npage three\n"
	if got != want {
		t.Fatalf("ExtractText() = %q, want %q", got, want)
	}
}

func TestExtractText_CancelledContextYieldsEmpty(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "three_pages.pdf"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := NewPDFTextExtractor(false).ExtractText(ctx, bytes.NewReader(data), int64(len(data)))
	if got != "" {
		t.Fatalf("ExtractText() = %q, want empty", got)
	}
}
