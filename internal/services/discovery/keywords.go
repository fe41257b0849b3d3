package discovery

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ternarybob/earningsear/internal/models"
)

var quarterWords = map[int]string{
	1: "first",
	2: "second",
	3: "third",
	4: "fourth",
}

// QuarterWord returns "first".."fourth", or "" outside 1-4.
func QuarterWord(quarter int) string {
	return quarterWords[quarter]
}

// BuildKeywords derives the lowercase terms a release href is expected to
// contain. The result depends only on its inputs.
func BuildKeywords(policy models.VerifyKeywords, quarter, year int) []string {
	var terms []string

	if policy.RequiresYear && year != 0 {
		y := strconv.Itoa(year)
		if policy.YearAsTwoDigits && len(y) > 2 {
			y = y[len(y)-2:]
		}
		terms = append(terms, y)
	}

	if policy.RequiresQuarter && quarter != 0 {
		var q string
		switch {
		case policy.QuarterAsString:
			q = QuarterWord(quarter)
		case policy.QuarterWithQ:
			q = fmt.Sprintf("Q%d", quarter)
		default:
			q = strconv.Itoa(quarter)
		}
		terms = append(terms, q)
	}

	terms = append(terms, policy.FixedTerms...)

	keywords := make([]string, 0, len(terms))
	for _, term := range terms {
		if term == "" {
			continue
		}
		keywords = append(keywords, strings.ToLower(term))
	}
	return keywords
}
