package discovery

import (
	"sort"
	"strings"

	"github.com/ternarybob/earningsear/internal/models"
)

// ScoreOptions are the per-site filters applied before scoring.
type ScoreOptions struct {
	Method      models.ExtractionMethod
	IgnoreURLs  []string
	IgnoreWords []string

	// KeyPhrase, when set, keeps only anchors whose text contains it.
	KeyPhrase string
	// Refine scores the key-phrase matches instead of taking the first one.
	Refine bool
}

// ScoreOptionsFor extracts the filters from a site configuration.
func ScoreOptionsFor(cfg models.WorkflowConfig) ScoreOptions {
	return ScoreOptions{
		Method:      cfg.ExtractionMethod,
		IgnoreURLs:  cfg.URLIgnoreList,
		IgnoreWords: cfg.HrefIgnoreWords,
		KeyPhrase:   cfg.KeyPhrase,
		Refine:      cfg.RefineLinkList,
	}
}

// FirstWithPhrase returns the first anchor with an href whose text contains
// phrase, case-insensitively.
func FirstWithPhrase(anchors []models.Anchor, phrase string) (models.LinkCandidate, bool) {
	phrase = strings.ToLower(phrase)
	for i, a := range anchors {
		if a.Href != "" && strings.Contains(strings.ToLower(a.Text), phrase) {
			return models.LinkCandidate{Index: i, Href: a.Href, Text: a.Text}, true
		}
	}
	return models.LinkCandidate{}, false
}

// Score filters anchors and ranks the survivors by how many keywords their
// href contains. Filters run in order: key phrase in the anchor text (when
// set), empty href, exact ignore-list match, missing pdf suffix (pdf method
// only), ignore-word substring. Equal scores keep document order.
func Score(anchors []models.Anchor, keywords []string, opts ScoreOptions) []models.LinkCandidate {
	phrase := strings.ToLower(opts.KeyPhrase)
	ignored := make(map[string]bool, len(opts.IgnoreURLs))
	for _, u := range opts.IgnoreURLs {
		ignored[u] = true
	}
	ignoreWords := make([]string, 0, len(opts.IgnoreWords))
	for _, w := range opts.IgnoreWords {
		if w != "" {
			ignoreWords = append(ignoreWords, strings.ToLower(w))
		}
	}

	var candidates []models.LinkCandidate
	for i, a := range anchors {
		if phrase != "" && !strings.Contains(strings.ToLower(a.Text), phrase) {
			continue
		}
		href := a.Href
		if href == "" || ignored[href] {
			continue
		}
		if opts.Method == models.ExtractionPDF && !strings.HasSuffix(href, string(models.ExtractionPDF)) {
			continue
		}

		hrefLower := strings.ToLower(href)
		if containsAny(hrefLower, ignoreWords) {
			continue
		}

		score := 0
		for _, kw := range keywords {
			if strings.Contains(hrefLower, kw) {
				score++
			}
		}

		candidates = append(candidates, models.LinkCandidate{
			Index: i,
			Href:  href,
			Text:  a.Text,
			Score: score,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}

// Best returns the first top-ranked candidate when it matched at least one keyword.
func Best(candidates []models.LinkCandidate) (models.LinkCandidate, bool) {
	if len(candidates) == 0 || candidates[0].Score <= 0 {
		return models.LinkCandidate{}, false
	}
	return candidates[0], true
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
