// -----------------------------------------------------------------------
// PDF Extractor Interface - turn a PDF byte stream into page text
// -----------------------------------------------------------------------

package interfaces

import (
	"context"
)

// PDFMetadata contains structural facts about a PDF document
type PDFMetadata struct {
	PageCount   int   `json:"page_count"`
	FileSize    int64 `json:"file_size"`
	IsEncrypted bool  `json:"is_encrypted"`
}

// PDFTextExtractor extracts plain text from PDF bytes.
type PDFTextExtractor interface {
	// Pages returns the text of each page in order. Pages without a text
	// layer yield empty strings.
	Pages(ctx context.Context, data []byte) ([]string, error)

	// Metadata inspects the document without extracting text.
	Metadata(ctx context.Context, data []byte) (*PDFMetadata, error)
}
