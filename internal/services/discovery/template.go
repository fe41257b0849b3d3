package discovery

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/earningsear/internal/models"
	"github.com/ternarybob/earningsear/internal/services/retry"
)

// TemplateUserAgent is sent with the HEAD probe. Some IR hosts reject
// requests without a browser agent.
const TemplateUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64)"

var placeholderPattern = regexp.MustCompile(`\{(\w+)\}`)

// RenderLinkTemplate fills {year}, {current_year} and {quarter} in tmpl.
// A placeholder the url_keywords flags do not enable is an error.
func RenderLinkTemplate(tmpl string, kw models.URLKeywords, quarter, year int, now time.Time) (string, error) {
	values := map[string]string{}
	if kw.RequiresYear {
		values["year"] = strconv.Itoa(year)
	}
	if kw.RequiresCurrentYear {
		values["current_year"] = strconv.Itoa(now.Year())
	}
	if kw.RequiresQuarter {
		switch {
		case kw.QuarterAsString:
			word := QuarterWord(quarter)
			if kw.QuarterIsTitleCase && word != "" {
				word = strings.ToUpper(word[:1]) + word[1:]
			}
			values["quarter"] = word
		case kw.QuarterWithQ:
			values["quarter"] = fmt.Sprintf("Q%d", quarter)
		default:
			values["quarter"] = strconv.Itoa(quarter)
		}
	}

	var missing string
	out := placeholderPattern.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := values[name]
		if !ok && missing == "" {
			missing = name
		}
		return v
	})
	if missing != "" {
		return "", fmt.Errorf("link template placeholder {%s} is not enabled by url_keywords", missing)
	}
	return out, nil
}

// Finder resolves the release link, trying the site's link template before
// falling back to the locator.
type Finder struct {
	locator *Locator
	client  *http.Client
	retry   *retry.Policy
	logger  arbor.ILogger
	now     func() time.Time
}

// NewFinder creates a finder. client is used for the template HEAD probe.
func NewFinder(locator *Locator, client *http.Client, policy *retry.Policy, logger arbor.ILogger) *Finder {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if policy == nil {
		policy = retry.NewPolicy()
	}
	return &Finder{
		locator: locator,
		client:  client,
		retry:   policy,
		logger:  logger,
		now:     time.Now,
	}
}

// Find returns a Found or Exhausted outcome for cfg.
func (f *Finder) Find(ctx context.Context, cfg models.WorkflowConfig) Outcome {
	if cfg.LinkTemplate != "" {
		if link, ok := f.tryTemplate(ctx, cfg); ok {
			return Outcome{Status: Found, Link: link, Candidate: models.LinkCandidate{Href: link}}
		}
	}
	return f.locator.Locate(ctx, cfg)
}

func (f *Finder) tryTemplate(ctx context.Context, cfg models.WorkflowConfig) (string, bool) {
	link, err := RenderLinkTemplate(cfg.LinkTemplate, cfg.URLKeywords, cfg.Quarter.Int(), cfg.Year.Int(), f.now())
	if err != nil {
		f.logger.Warn().Err(err).Msg("Failed to render link template")
		return "", false
	}

	reachable, err := f.probe(ctx, link)
	if err != nil {
		f.logger.Warn().Err(err).Str("url", link).Msg("Link template probe failed")
		return "", false
	}
	if !reachable {
		f.logger.Info().Str("url", link).Msg("Link template not live yet, scanning listing page")
		return "", false
	}

	f.logger.Info().Str("url", link).Msg("Link template is reachable")
	return link, true
}

// probe sends a HEAD request and reports whether the status is below 400.
func (f *Finder) probe(ctx context.Context, link string) (bool, error) {
	status, err := f.retry.Do(ctx, f.logger, func(int) (int, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, link, nil)
		if err != nil {
			return 0, err
		}
		req.Header.Set("User-Agent", TemplateUserAgent)

		resp, err := f.client.Do(req)
		if err != nil {
			return 0, err
		}
		resp.Body.Close()
		return resp.StatusCode, nil
	})
	if err != nil {
		return false, err
	}
	return status > 0 && status < http.StatusBadRequest, nil
}
