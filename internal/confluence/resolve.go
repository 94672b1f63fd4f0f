package confluence

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
)

// ResolveError reports an input that could not be mapped to a page ID.
type ResolveError struct {
	Input string
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("confluence: could not resolve page ID from: %s", e.Input)
}

var pagePathPattern = regexp.MustCompile(`/pages/(\d+)`)

// ResolvePageID maps a page reference to its numeric ID. Accepted
// forms: a bare numeric ID, any URL containing /pages/{id}, and short
// links (/wiki/x/... or tinyurl) which are resolved by following their
// redirect and matching the landing URL.
func (c *Client) ResolvePageID(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if isDigits(ref) {
		return ref, nil
	}
	if m := pagePathPattern.FindStringSubmatch(ref); m != nil {
		return m[1], nil
	}
	if strings.Contains(ref, "/x/") || strings.Contains(ref, "tinyurl") {
		target := ref
		if strings.HasPrefix(target, "/") {
			target = c.base + target
		}
		req, err := c.newRequest(ctx, http.MethodGet, target, nil, nil)
		if err != nil {
			return "", err
		}
		resp, err := c.do(c.httpClient, req)
		if err != nil {
			return "", err
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		if m := pagePathPattern.FindStringSubmatch(resp.Request.URL.String()); m != nil {
			return m[1], nil
		}
	}
	return "", &ResolveError{Input: ref}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
