// -----------------------------------------------------------------------
// Chrome Renderer - headless chromium sessions via chromedp
// -----------------------------------------------------------------------

package renderer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/earningsear/internal/common"
	"github.com/ternarybob/earningsear/internal/interfaces"
	"github.com/ternarybob/earningsear/internal/models"
)

// queryTimeout bounds the anchor query once the page has been waited on.
const queryTimeout = 5 * time.Second

// blockedResources are aborted before they load; they never carry release links.
var blockedResources = map[network.ResourceType]bool{
	network.ResourceTypeImage:      true,
	network.ResourceTypeStylesheet: true,
	network.ResourceTypeFont:       true,
}

// ChromeRenderer launches one headless chromium per session.
type ChromeRenderer struct {
	config common.BrowserConfig
	logger arbor.ILogger
}

var _ interfaces.PageRenderer = (*ChromeRenderer)(nil)

// NewChromeRenderer creates a chromium-backed renderer
func NewChromeRenderer(config common.BrowserConfig, logger arbor.ILogger) *ChromeRenderer {
	return &ChromeRenderer{config: config, logger: logger}
}

func (r *ChromeRenderer) Engine() string {
	return models.BrowserChromium
}

// Open launches a browser and a blank tab. The session is bound to ctx.
func (r *ChromeRenderer) Open(ctx context.Context) (interfaces.Page, error) {
	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", r.config.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-software-rasterizer", true),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.Flag("lang", "en-US"),
		chromedp.UserAgent(r.config.UserAgent),
	)
	if r.config.ExecPath != "" {
		allocatorOpts = append(allocatorOpts, chromedp.ExecPath(r.config.ExecPath))
	}

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(ctx, allocatorOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocatorCtx)

	p := &chromePage{
		ctx:    tabCtx,
		logger: r.logger,
		cancel: func() {
			tabCancel()
			allocatorCancel()
		},
	}

	if r.config.BlockResources {
		chromedp.ListenTarget(tabCtx, func(ev interface{}) {
			paused, ok := ev.(*fetch.EventRequestPaused)
			if !ok {
				return
			}
			go p.route(paused)
		})
	}

	startActions := []chromedp.Action{
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(
				`Object.defineProperty(navigator, 'webdriver', { get: () => undefined, configurable: true });`,
			).Do(ctx)
			return err
		}),
	}
	if r.config.BlockResources {
		startActions = append(startActions, fetch.Enable())
	}

	if err := chromedp.Run(tabCtx, startActions...); err != nil {
		p.cancel()
		return nil, fmt.Errorf("failed to start chromium: %w", err)
	}

	r.logger.Debug().
		Bool("headless", r.config.Headless).
		Bool("block_resources", r.config.BlockResources).
		Msg("Chromium session started")

	return p, nil
}

type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger arbor.ILogger
}

// route aborts heavy resources and lets everything else through.
func (p *chromePage) route(ev *fetch.EventRequestPaused) {
	c := chromedp.FromContext(p.ctx)
	if c == nil || c.Target == nil {
		return
	}
	execCtx := cdp.WithExecutor(p.ctx, c.Target)

	var err error
	if blockedResources[ev.ResourceType] {
		err = fetch.FailRequest(ev.RequestID, network.ErrorReasonBlockedByClient).Do(execCtx)
	} else {
		err = fetch.ContinueRequest(ev.RequestID).Do(execCtx)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Trace().Err(err).Str("url", ev.Request.URL).Msg("Failed to route request")
	}
}

// scoped derives a per-operation context from the tab. Cancelling it does not
// close the tab; caller cancellation still propagates.
func (p *chromePage) scoped(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	opCtx, cancel := context.WithTimeout(p.ctx, timeout)
	stop := context.AfterFunc(ctx, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}
}

func (p *chromePage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	opCtx, cancel := p.scoped(ctx, timeout)
	defer cancel()

	if err := chromedp.Run(opCtx, chromedp.Navigate(url)); err != nil {
		if errors.Is(opCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("navigate %s: %w", url, context.DeadlineExceeded)
		}
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (p *chromePage) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	opCtx, cancel := p.scoped(ctx, timeout)
	defer cancel()

	if err := chromedp.Run(opCtx, chromedp.WaitReady(selector, chromedp.ByQuery)); err != nil {
		if errors.Is(opCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("wait for %q: %w", selector, context.DeadlineExceeded)
		}
		return fmt.Errorf("wait for %q: %w", selector, err)
	}
	return nil
}

func (p *chromePage) QueryAll(ctx context.Context, selector string) ([]models.Anchor, error) {
	opCtx, cancel := p.scoped(ctx, queryTimeout)
	defer cancel()

	sel, err := json.Marshal(selector)
	if err != nil {
		return nil, err
	}
	script := fmt.Sprintf(`Array.from(document.querySelectorAll(%s)).map(e => ({
		href: e.getAttribute('href') || '',
		text: (e.innerText || e.textContent || '').trim()
	}))`, sel)

	var anchors []models.Anchor
	if err := chromedp.Run(opCtx, chromedp.Evaluate(script, &anchors)); err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	return anchors, nil
}

func (p *chromePage) Text(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	opCtx, cancel := p.scoped(ctx, timeout)
	defer cancel()

	var text string
	err := chromedp.Run(opCtx,
		chromedp.WaitReady(selector, chromedp.ByQuery),
		chromedp.Text(selector, &text, chromedp.ByQuery),
	)
	if err != nil {
		if errors.Is(opCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("text of %q: %w", selector, models.ErrExtractionTimeout)
		}
		return "", fmt.Errorf("text of %q: %w", selector, err)
	}
	return text, nil
}

func (p *chromePage) HTML(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	opCtx, cancel := p.scoped(ctx, timeout)
	defer cancel()

	var html string
	err := chromedp.Run(opCtx,
		chromedp.WaitReady(selector, chromedp.ByQuery),
		chromedp.OuterHTML(selector, &html, chromedp.ByQuery),
	)
	if err != nil {
		if errors.Is(opCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("html of %q: %w", selector, models.ErrExtractionTimeout)
		}
		return "", fmt.Errorf("html of %q: %w", selector, err)
	}
	return html, nil
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}
