package confluence

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// AuthMode selects how outbound requests authenticate.
type AuthMode string

const (
	// AuthBasic authenticates with email plus API token.
	AuthBasic AuthMode = "basic"
	// AuthOAuth authenticates with a managed OAuth bearer token.
	AuthOAuth AuthMode = "oauth"
)

// APIError describes a non-2xx response from the Confluence REST API.
type APIError struct {
	// Status is the HTTP status code returned by Confluence.
	Status int
	// Path is the request path that failed.
	Path string
	// Body contains the raw response body bytes for diagnostics.
	Body []byte
	// RetryAfter is the parsed retry delay hint from headers, when provided.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("confluence: status %d on %s", e.Status, e.Path)
}

// FriendlyMessage renders the failure for tool output: a plain-language
// cause, the request path, and a response excerpt.
func (e *APIError) FriendlyMessage(mode AuthMode) string {
	var msg string
	switch {
	case e.Status == http.StatusUnauthorized:
		if mode == AuthOAuth {
			msg = "Authentication failed — OAuth access token may be expired or invalid."
		} else {
			msg = "Authentication failed — check WIKID_EMAIL and WIKID_API_TOKEN."
		}
	case e.Status == http.StatusForbidden:
		msg = "Permission denied — your account lacks access to this resource."
	case e.Status == http.StatusNotFound:
		msg = "Not found — the page, space, or resource does not exist."
	case e.Status == http.StatusTooManyRequests:
		msg = "Rate limited — Confluence is throttling requests. Try again shortly."
	case e.Status >= 500:
		msg = fmt.Sprintf("Confluence server error (%d).", e.Status)
	default:
		msg = fmt.Sprintf("HTTP %d error.", e.Status)
	}
	if e.Path != "" {
		msg += fmt.Sprintf(" (path: %s)", e.Path)
	}
	body := string(e.Body)
	if len(body) > 200 {
		body = body[:200]
	}
	if body = strings.TrimSpace(body); body != "" {
		msg += "\nResponse: " + body
	}
	return msg
}

// IsNotFound reports whether err is a Confluence 404.
func IsNotFound(err error) bool {
	return statusIs(err, http.StatusNotFound)
}

// IsConflict reports whether err is a Confluence 409 version conflict.
func IsConflict(err error) bool {
	return statusIs(err, http.StatusConflict)
}

func statusIs(err error, status int) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == status
	}
	return false
}

func parseRetryAfterHeader(raw string) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if seconds, err := strconv.ParseFloat(raw, 64); err == nil {
		if seconds <= 0 {
			return 0
		}
		return time.Duration(seconds * float64(time.Second))
	}
	if ts, err := http.ParseTime(raw); err == nil {
		delay := time.Until(ts)
		if delay <= 0 {
			return 0
		}
		return delay
	}
	return 0
}
