package content

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/earningsear/internal/common"
	"github.com/ternarybob/earningsear/internal/interfaces"
	"github.com/ternarybob/earningsear/internal/models"
	"github.com/ternarybob/earningsear/internal/services/renderer"
	"github.com/ternarybob/earningsear/internal/services/retry"
)

// maxDocumentSize caps PDF downloads.
const maxDocumentSize = 50 << 20

// Config is the extractor's retry budget.
type Config struct {
	Attempts      int
	ReturnAfter   int // attempt index after which an empty result is returned as-is
	NavShort      time.Duration
	NavLong       time.Duration
	TextShort     time.Duration
	TextLong      time.Duration
	EscalateAfter int
	UserAgent     string
}

// ConfigFrom reads the budget from the service configuration.
func ConfigFrom(run common.RunConfig, browser common.BrowserConfig) Config {
	attempts := run.ExtractAttempts
	if attempts <= 0 {
		attempts = 8
	}
	return Config{
		Attempts:      attempts,
		ReturnAfter:   attempts - 2,
		NavShort:      common.Duration(run.NavTimeout, 5*time.Second),
		NavLong:       common.Duration(run.NavTimeoutLong, 10*time.Second),
		TextShort:     common.Duration(run.TextTimeout, 10*time.Second),
		TextLong:      common.Duration(run.TextTimeoutLong, 20*time.Second),
		EscalateAfter: run.ShortTimeoutCount,
		UserAgent:     browser.UserAgent,
	}
}

// Extractor reads the text of a located release, either from a PDF download
// or from a rendered HTML region.
type Extractor struct {
	policy    interfaces.RendererPolicy
	pdf       interfaces.PDFTextExtractor
	client    *http.Client
	retry     *retry.Policy
	config    Config
	converter *md.Converter
	logger    arbor.ILogger
}

// NewExtractor creates a content extractor
func NewExtractor(policy interfaces.RendererPolicy, pdf interfaces.PDFTextExtractor, client *http.Client, retryPolicy *retry.Policy, config Config, logger arbor.ILogger) *Extractor {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if retryPolicy == nil {
		retryPolicy = retry.NewPolicy()
	}
	return &Extractor{
		policy:    policy,
		pdf:       pdf,
		client:    client,
		retry:     retryPolicy,
		config:    config,
		converter: md.NewConverter("", true, nil),
		logger:    logger,
	}
}

// ResolveLink makes a root-relative href absolute against base's scheme and
// host. Any other href is returned unchanged.
func ResolveLink(base, link string) (string, error) {
	if !strings.HasPrefix(link, "/") {
		return link, nil
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", base, err)
	}
	return u.Scheme + "://" + u.Host + link, nil
}

// Extract returns the release text for link. An empty result is ErrEmptyContent.
func (e *Extractor) Extract(ctx context.Context, cfg models.WorkflowConfig, link string) (string, error) {
	target, err := ResolveLink(cfg.BaseURL, link)
	if err != nil {
		return "", err
	}

	e.logger.Info().
		Str("url", target).
		Str("method", string(cfg.ExtractionMethod)).
		Msg("Extracting release content")

	var text string
	switch cfg.ExtractionMethod {
	case models.ExtractionPDF:
		text, err = e.extractPDF(ctx, target)
	default:
		text, err = e.extractHTML(ctx, cfg, target)
	}
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: %s", models.ErrEmptyContent, target)
	}

	e.logger.Info().Int("length", len(text)).Msg("Extracted release content")
	return text, nil
}

func (e *Extractor) extractPDF(ctx context.Context, target string) (string, error) {
	data, err := e.download(ctx, target)
	if err != nil {
		return "", err
	}

	pages, err := e.pdf.Pages(ctx, data)
	if err != nil {
		return "", fmt.Errorf("failed to read PDF %s: %w", target, err)
	}
	e.inspect(ctx, target, data, len(pages))

	var sb strings.Builder
	for _, page := range pages {
		sb.WriteString(page)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// inspect logs the structural page count and warns when the text layer
// disagrees with it. Inspection failures do not stop extraction.
func (e *Extractor) inspect(ctx context.Context, target string, data []byte, textPages int) {
	meta, err := e.pdf.Metadata(ctx, data)
	if err != nil {
		e.logger.Warn().Err(err).Str("url", target).Msg("Failed to inspect PDF structure")
		return
	}

	e.logger.Info().
		Str("url", target).
		Int("page_count", meta.PageCount).
		Int64("file_size", meta.FileSize).
		Bool("encrypted", meta.IsEncrypted).
		Msg("Inspected PDF")

	if err := checkPageCount(meta, textPages); err != nil {
		e.logger.Warn().Err(err).Str("url", target).Msg("PDF page count mismatch")
	}
}

// checkPageCount compares the structural page count with the number of
// pages the text extractor returned.
func checkPageCount(meta *interfaces.PDFMetadata, textPages int) error {
	if meta.PageCount != textPages {
		return fmt.Errorf("document has %d pages but %d were read", meta.PageCount, textPages)
	}
	return nil
}

// download fetches target with retries. A final non-2xx status is an error.
func (e *Extractor) download(ctx context.Context, target string) ([]byte, error) {
	var body []byte
	status, err := e.retry.Do(ctx, e.logger, func(int) (int, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return 0, err
		}
		if e.config.UserAgent != "" {
			req.Header.Set("User-Agent", e.config.UserAgent)
		}

		resp, err := e.client.Do(req)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return resp.StatusCode, nil
		}
		body, err = io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
		return resp.StatusCode, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", target, err)
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("failed to download %s: status %d", target, status)
	}
	return body, nil
}

func (e *Extractor) extractHTML(ctx context.Context, cfg models.WorkflowConfig, target string) (string, error) {
	nav := renderer.NewEscalation(e.config.NavShort, e.config.NavLong, e.config.EscalateAfter)
	read := renderer.NewEscalation(e.config.TextShort, e.config.TextLong, e.config.EscalateAfter)

	s := renderer.NewSession(e.logger)
	defer s.Close()

	markdown := cfg.ContentFormat == models.ContentFormatMarkdown

	var text string
	for attempt := 0; attempt < e.config.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		page, err := s.PageFor(ctx, e.policy.ForAttempt(attempt))
		if err != nil {
			e.logger.Warn().Err(err).Int("attempt", attempt+1).Msg("Failed to open renderer session")
			continue
		}

		if err := page.Navigate(ctx, target, nav.Current()); err != nil {
			if nav.Observe(err) {
				e.logger.Warn().Int("attempt", attempt+1).Msg("Navigation timed out, reading partial page")
			} else {
				e.logger.Warn().Err(err).Int("attempt", attempt+1).Msg("Navigation failed")
			}
		}

		text, err = e.readRegion(ctx, page, cfg.PageContentSelector, read.Current(), markdown)
		if err != nil {
			if read.Observe(err) {
				e.logger.Warn().Int("attempt", attempt+1).Int("timeouts", read.Timeouts()).Msg("Content region timed out")
			} else {
				e.logger.Warn().Err(err).Int("attempt", attempt+1).Msg("Failed to read content region")
			}
		}

		if strings.TrimSpace(text) != "" || attempt > e.config.ReturnAfter {
			return text, nil
		}
	}
	return text, nil
}

func (e *Extractor) readRegion(ctx context.Context, page interfaces.Page, selector string, timeout time.Duration, markdown bool) (string, error) {
	if !markdown {
		return page.Text(ctx, selector, timeout)
	}

	html, err := page.HTML(ctx, selector, timeout)
	if err != nil {
		return "", err
	}
	out, err := e.converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("failed to convert content to markdown: %w", err)
	}
	return out, nil
}
