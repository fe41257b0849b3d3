package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ArtifactTimeFormat is the timestamp layout used in artifact keys.
const ArtifactTimeFormat = "20060102_150405"

// Artifact captures everything a run saw so a bad digest can be replayed.
type Artifact struct {
	Key            string          `json:"-" badgerhold:"key"`
	Ticker         string          `json:"ticker" badgerhold:"index"`
	Timestamp      string          `json:"timestamp"`
	ScrapedURL     string          `json:"scraped_url"`
	ScrapedContent string          `json:"scraped_content"`
	LLMResponse    json.RawMessage `json:"llm_response"`
	Message        string          `json:"message"`
	Config         json.RawMessage `json:"config"`
}

// ArtifactKey names an artifact {ticker}_{YYYYmmdd_HHMMSS}.json.
func ArtifactKey(ticker string, at time.Time) string {
	return fmt.Sprintf("%s_%s.json", ticker, at.UTC().Format(ArtifactTimeFormat))
}

// SiteConfigRecord is a stored site configuration keyed by ticker.
type SiteConfigRecord struct {
	Ticker    string          `json:"ticker" badgerhold:"key"`
	Config    json.RawMessage `json:"config"`
	UpdatedAt time.Time       `json:"updated_at"`
}
