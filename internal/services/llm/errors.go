package llm

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// StatusError is a non-2xx response from a completion endpoint.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// statusPattern matches SDK error strings such as "Error 400, Message: ...".
var statusPattern = regexp.MustCompile(`(?i)\berror (\d{3})\b`)

// StatusCode extracts an HTTP status from a provider error, or 0.
func StatusCode(err error) int {
	if err == nil {
		return 0
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}

	if m := statusPattern.FindStringSubmatch(err.Error()); len(m) == 2 {
		code, _ := strconv.Atoi(m[1])
		return code
	}
	return 0
}

// IsBadRequestError reports a 400 response. Providers return 400 when JSON
// mode fails to produce a valid object, which is worth retrying.
func IsBadRequestError(err error) bool {
	return StatusCode(err) == 400
}

// IsRateLimitError checks for 429 status codes and RESOURCE_EXHAUSTED errors.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	if StatusCode(err) == 429 {
		return true
	}
	return strings.Contains(err.Error(), "RESOURCE_EXHAUSTED")
}
