package models

import "errors"

var (
	// ErrLinkNotFound means the locator spent its attempt budget without a winning candidate.
	ErrLinkNotFound = errors.New("earnings link not found")
	// ErrExtractionTimeout means a page region could not be read within its timeout.
	ErrExtractionTimeout = errors.New("extraction timed out")
	// ErrEmptyContent means the located release produced no text.
	ErrEmptyContent = errors.New("content was not able to be scraped")
	// ErrMetricParse means the model never returned usable JSON.
	ErrMetricParse = errors.New("failed to parse metrics")
	// ErrWrongDocument means every metric group came back empty, so the link was likely a decoy.
	ErrWrongDocument = errors.New("earnings were extracted from the wrong document")
	// ErrInvalidConfig means a site configuration failed validation.
	ErrInvalidConfig = errors.New("invalid workflow config")
	// ErrNotFound is returned by stores when a key does not exist.
	ErrNotFound = errors.New("not found")
)
