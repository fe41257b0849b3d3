// -----------------------------------------------------------------------
// Static Renderer - plain HTTP fetch parsed with goquery, no JavaScript
// -----------------------------------------------------------------------

package renderer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"golang.org/x/net/html"

	"github.com/ternarybob/earningsear/internal/interfaces"
	"github.com/ternarybob/earningsear/internal/models"
)

// ErrNoDocument is returned when a static page is queried before a successful navigation.
var ErrNoDocument = errors.New("no document loaded")

// StaticRenderer fetches pages over HTTP. It cannot run scripts, so it only
// sees links present in the server-rendered markup.
type StaticRenderer struct {
	client    *http.Client
	userAgent string
	logger    arbor.ILogger
}

var _ interfaces.PageRenderer = (*StaticRenderer)(nil)

// NewStaticRenderer creates a renderer backed by client
func NewStaticRenderer(client *http.Client, userAgent string, logger arbor.ILogger) *StaticRenderer {
	if client == nil {
		client = http.DefaultClient
	}
	return &StaticRenderer{client: client, userAgent: userAgent, logger: logger}
}

func (r *StaticRenderer) Engine() string {
	return models.BrowserStatic
}

func (r *StaticRenderer) Open(ctx context.Context) (interfaces.Page, error) {
	return &staticPage{renderer: r}, nil
}

type staticPage struct {
	renderer *StaticRenderer
	doc      *goquery.Document
}

// Navigate replaces the loaded document. A failed navigation leaves no document.
func (p *staticPage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	p.doc = nil

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if p.renderer.userAgent != "" {
		req.Header.Set("User-Agent", p.renderer.userAgent)
	}
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := p.renderer.client.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("navigate %s: %w", url, context.DeadlineExceeded)
		}
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("navigate %s: unexpected status %d", url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return fmt.Errorf("parse %s: %w", url, err)
	}
	p.doc = doc
	return nil
}

func (p *staticPage) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	if p.doc == nil {
		return ErrNoDocument
	}
	if p.doc.Find(selector).Length() == 0 {
		return fmt.Errorf("wait for %q: no match in static document", selector)
	}
	return nil
}

func (p *staticPage) QueryAll(ctx context.Context, selector string) ([]models.Anchor, error) {
	if p.doc == nil {
		return nil, ErrNoDocument
	}

	var anchors []models.Anchor
	p.doc.Find(selector).Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		anchors = append(anchors, models.Anchor{
			Href: href,
			Text: strings.TrimSpace(s.Text()),
		})
	})
	return anchors, nil
}

func (p *staticPage) Text(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	if p.doc == nil {
		return "", fmt.Errorf("text of %q: %w", selector, models.ErrExtractionTimeout)
	}
	sel := p.doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", fmt.Errorf("text of %q: %w", selector, models.ErrExtractionTimeout)
	}
	return VisibleText(sel.Nodes[0]), nil
}

func (p *staticPage) HTML(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	if p.doc == nil {
		return "", fmt.Errorf("html of %q: %w", selector, models.ErrExtractionTimeout)
	}
	sel := p.doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", fmt.Errorf("html of %q: %w", selector, models.ErrExtractionTimeout)
	}
	return goquery.OuterHtml(sel)
}

func (p *staticPage) Close() error {
	p.doc = nil
	return nil
}

var hiddenElements = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true, "head": true, "svg": true,
}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true, "table": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"section": true, "article": true, "header": true, "footer": true, "ul": true, "ol": true,
}

// VisibleText approximates innerText: script and style content is dropped,
// block elements break lines and runs of whitespace collapse.
func VisibleText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			if hiddenElements[n.Data] {
				return
			}
		}
		isBlock := n.Type == html.ElementNode && blockElements[n.Data]
		if isBlock {
			b.WriteString("\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if isBlock {
			b.WriteString("\n")
		}
	}
	walk(n)

	var lines []string
	for _, line := range strings.Split(b.String(), "\n") {
		if collapsed := strings.Join(strings.Fields(line), " "); collapsed != "" {
			lines = append(lines, collapsed)
		}
	}
	return strings.Join(lines, "\n")
}
