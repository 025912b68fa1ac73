package pdf

import (
	"context"
	"io"
	"strings"

	"github.com/OFFIS-RIT/graphlearn/pkg/logger"

	"github.com/ledongthuc/pdf"
)

// PDFTextExtractor reads the text layer of PDF documents page by page.
type PDFTextExtractor struct {
	// PdftotextFallback runs poppler's pdftotext when the text layer yields
	// nothing, if the binary is installed.
	PdftotextFallback bool
}

func NewPDFTextExtractor(pdftotextFallback bool) *PDFTextExtractor {
	return &PDFTextExtractor{PdftotextFallback: pdftotextFallback}
}

// ExtractText implements loader.TextExtractor. Each page contributes its
// trimmed text followed by "\n"; pages without a text layer contribute "".
func (e *PDFTextExtractor) ExtractText(ctx context.Context, r io.ReaderAt, size int64) string {
	text := extractPages(ctx, r, size)
	if strings.TrimSpace(text) != "" || !e.PdftotextFallback {
		return text
	}

	out, err := runPdftotext(ctx, io.NewSectionReader(r, 0, size))
	if err != nil {
		logger.Debug("[PDF] pdftotext fallback failed", "err", err)
		return text
	}
	return out
}

func extractPages(ctx context.Context, r io.ReaderAt, size int64) (text string) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Warn("[PDF] Recovered from panic while reading document", "panic", rec)
			text = ""
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		logger.Warn("[PDF] Failed to open document", "err", err)
		return ""
	}

	var b strings.Builder
	pages := reader.NumPage()
	for i := 1; i <= pages; i++ {
		if ctx.Err() != nil {
			logger.Warn("[PDF] Extraction cancelled", "page", i, "pages", pages)
			return ""
		}
		b.WriteString(pageText(reader, i))
		b.WriteString("\n")
	}
	return b.String()
}

func pageText(reader *pdf.Reader, num int) (text string) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Debug("[PDF] Page unreadable", "page", num, "panic", rec)
			text = ""
		}
	}()

	page := reader.Page(num)
	if page.V.IsNull() {
		return ""
	}
	content, err := page.GetPlainText(nil)
	if err != nil {
		logger.Debug("[PDF] Page has no extractable text", "page", num, "err", err)
		return ""
	}
	return strings.TrimSpace(content)
}
