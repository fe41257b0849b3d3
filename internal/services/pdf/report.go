package pdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// glyphWords replaces the digest's status glyphs, which the core PDF fonts cannot draw.
var glyphWords = strings.NewReplacer(
	"🟢", "(up)",
	"🔴", "(down)",
	"🟡", "(flat)",
)

// ReportRenderer turns a digest message into a one-document PDF report.
type ReportRenderer struct {
	logger arbor.ILogger
	md     goldmark.Markdown
}

// NewReportRenderer creates a new report renderer
func NewReportRenderer(logger arbor.ILogger) *ReportRenderer {
	return &ReportRenderer{
		logger: logger,
		md:     goldmark.New(),
	}
}

// Render lays out digest markdown (headings, paragraphs and bullet lists) on A4 pages.
func (r *ReportRenderer) Render(digest, title string) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetTitle(title, false)
	doc.SetMargins(12, 12, 12)
	doc.SetAutoPageBreak(true, 12)
	doc.AddPage()
	doc.SetFont("Helvetica", "", 10)

	source := []byte(glyphWords.Replace(digest))
	root := r.md.Parser().Parse(text.NewReader(source))

	w := &reportWriter{doc: doc, source: source, tr: doc.UnicodeTranslatorFromDescriptor("")}
	if err := ast.Walk(root, w.walk); err != nil {
		return nil, fmt.Errorf("failed to lay out report: %w", err)
	}
	if err := doc.Error(); err != nil {
		return nil, fmt.Errorf("failed to build report: %w", err)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write report: %w", err)
	}

	r.logger.Debug().Int("pdf_size", buf.Len()).Str("title", title).Msg("Rendered digest report")
	return buf.Bytes(), nil
}

type reportWriter struct {
	doc    *fpdf.Fpdf
	source []byte
	tr     func(string) string
}

func (w *reportWriter) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}

	switch node := n.(type) {
	case *ast.Heading:
		size := 14.0
		if node.Level > 2 {
			size = 12
		}
		w.doc.Ln(2)
		w.doc.SetFont("Helvetica", "B", size)
		w.doc.MultiCell(0, 7, w.tr(w.inline(node)), "", "L", false)
		w.doc.SetFont("Helvetica", "", 10)
		return ast.WalkSkipChildren, nil

	case *ast.Paragraph:
		w.block(w.inline(node), "")
		return ast.WalkSkipChildren, nil

	case *ast.ListItem:
		w.block(w.inline(node), "- ")
		return ast.WalkSkipChildren, nil
	}

	return ast.WalkContinue, nil
}

// block writes each source line of a paragraph on its own line.
func (w *reportWriter) block(content, prefix string) {
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		w.doc.MultiCell(0, 5, w.tr(prefix+line), "", "L", false)
		prefix = ""
	}
	w.doc.Ln(1)
}

// inline flattens a node's text, keeping soft line breaks.
func (w *reportWriter) inline(n ast.Node) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := c.(*ast.Text); ok {
			sb.Write(t.Segment.Value(w.source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})
	return sb.String()
}
