// -----------------------------------------------------------------------
// PDF Text Extractor - page text via ledongthuc/pdf, structure via pdfcpu
// -----------------------------------------------------------------------

package pdf

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/earningsear/internal/interfaces"
)

// Extractor implements interfaces.PDFTextExtractor
type Extractor struct {
	logger arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.PDFTextExtractor = (*Extractor)(nil)

// NewExtractor creates a new PDF text extractor
func NewExtractor(logger arbor.ILogger) *Extractor {
	return &Extractor{logger: logger}
}

// Pages extracts the plain text of each page in order. A page whose content
// stream cannot be decoded yields an empty string rather than failing the document.
func (e *Extractor) Pages(ctx context.Context, data []byte) ([]string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	count := reader.NumPage()
	pages := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pages = append(pages, e.pageText(reader, i))
	}

	e.logger.Debug().Int("pages", count).Int("bytes", len(data)).Msg("Extracted PDF text")
	return pages, nil
}

// pageText recovers from decoder panics on malformed content streams.
func (e *Extractor) pageText(reader *pdf.Reader, n int) (text string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn().Int("page", n).Str("panic", fmt.Sprintf("%v", r)).Msg("PDF page decode failed")
			text = ""
		}
	}()

	page := reader.Page(n)
	if page.V.IsNull() {
		return ""
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		e.logger.Warn().Err(err).Int("page", n).Msg("Failed to read PDF page text")
		return ""
	}
	return text
}

// Metadata reads the page tree and encryption dictionary with pdfcpu.
func (e *Extractor) Metadata(ctx context.Context, data []byte) (*interfaces.PDFMetadata, error) {
	pdfCtx, err := api.ReadContext(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}
	if err := pdfCtx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("failed to count PDF pages: %w", err)
	}

	metadata := &interfaces.PDFMetadata{
		PageCount:   pdfCtx.PageCount,
		FileSize:    int64(len(data)),
		IsEncrypted: pdfCtx.Encrypt != nil,
	}

	e.logger.Debug().
		Int("page_count", metadata.PageCount).
		Int64("file_size", metadata.FileSize).
		Bool("encrypted", metadata.IsEncrypted).
		Msg("Read PDF metadata")

	return metadata, nil
}
