package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/earningsear/internal/models"
)

func TestBuildKeywords(t *testing.T) {
	tests := []struct {
		name    string
		policy  models.VerifyKeywords
		quarter int
		year    int
		want    []string
	}{
		{
			name:    "year and quarter word",
			policy:  models.VerifyKeywords{RequiresYear: true, RequiresQuarter: true, QuarterAsString: true, FixedTerms: []string{"Results"}},
			quarter: 4,
			year:    2024,
			want:    []string{"2024", "fourth", "results"},
		},
		{
			name:    "two digit year with Q prefix",
			policy:  models.VerifyKeywords{RequiresYear: true, YearAsTwoDigits: true, RequiresQuarter: true, QuarterWithQ: true},
			quarter: 2,
			year:    2025,
			want:    []string{"25", "q2"},
		},
		{
			name:    "quarter as digit",
			policy:  models.VerifyKeywords{RequiresQuarter: true},
			quarter: 3,
			year:    2024,
			want:    []string{"3"},
		},
		{
			name:    "quarter string wins over Q prefix",
			policy:  models.VerifyKeywords{RequiresQuarter: true, QuarterAsString: true, QuarterWithQ: true},
			quarter: 1,
			want:    []string{"first"},
		},
		{
			name:   "empty fixed terms dropped",
			policy: models.VerifyKeywords{FixedTerms: []string{"", "Earnings", ""}},
			want:   []string{"earnings"},
		},
		{
			name:   "nothing required",
			policy: models.VerifyKeywords{},
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildKeywords(tt.policy, tt.quarter, tt.year)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildKeywordsIsDeterministic(t *testing.T) {
	policy := models.VerifyKeywords{RequiresYear: true, RequiresQuarter: true, QuarterWithQ: true, FixedTerms: []string{"press"}}
	assert.Equal(t, BuildKeywords(policy, 4, 2024), BuildKeywords(policy, 4, 2024))
}
