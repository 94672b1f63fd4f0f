package confluence

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"pkt.systems/pslog"

	"pkt.systems/wikid/internal/clock"
	"pkt.systems/wikid/internal/oauth"
)

const (
	// DefaultThrottleRetries is how many times a 429 response is retried
	// before being surfaced to the caller.
	DefaultThrottleRetries = 2
	// DefaultThrottleWait applies when Confluence sends no Retry-After hint.
	DefaultThrottleWait = 2 * time.Second
	// DefaultThrottleMaxWait caps the per-attempt wait regardless of how
	// large a Retry-After hint the server sends.
	DefaultThrottleMaxWait = 10 * time.Second
)

// throttleTransport retries requests that Confluence rate-limits with 429,
// sleeping out the (capped) Retry-After hint between attempts. Requests
// whose body cannot be replayed are never retried.
type throttleTransport struct {
	base    http.RoundTripper
	retries int
	maxWait time.Duration
	clk     clock.Clock
	logger  pslog.Logger
	onRetry func()
}

func (t *throttleTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	resp, err := t.baseTransport().RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusTooManyRequests {
		return resp, err
	}
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}
	for attempt := 1; attempt <= t.retries; attempt++ {
		wait := parseRetryAfterHeader(resp.Header.Get("Retry-After"))
		if wait <= 0 {
			wait = DefaultThrottleWait
		}
		if wait > t.maxWait {
			wait = t.maxWait
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		t.logger.Debug("client.http.throttled",
			"path", req.URL.Path, "attempt", attempt, "wait", wait.String())
		if t.onRetry != nil {
			t.onRetry()
		}
		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-t.clk.After(wait):
		}
		retry := req.Clone(req.Context())
		if req.GetBody != nil {
			body, bodyErr := req.GetBody()
			if bodyErr != nil {
				return nil, fmt.Errorf("confluence: rewind request body: %w", bodyErr)
			}
			retry.Body = body
		}
		resp, err = t.baseTransport().RoundTrip(retry)
		if err != nil || resp.StatusCode != http.StatusTooManyRequests {
			return resp, err
		}
	}
	return resp, nil
}

func (t *throttleTransport) baseTransport() http.RoundTripper {
	if t.base != nil {
		return t.base
	}
	return http.DefaultTransport
}

// authTransport injects credentials on every outbound request: basic
// email+token, or a bearer token resolved from the OAuth manager so a
// throttle retry after token expiry still authenticates.
type authTransport struct {
	base   http.RoundTripper
	mode   AuthMode
	email  string
	token  string
	tokens *oauth.Manager
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	clone := req.Clone(req.Context())
	if t.mode == AuthOAuth {
		bearer, err := t.tokens.Token(req.Context())
		if err != nil {
			return nil, fmt.Errorf("confluence: acquire bearer token: %w", err)
		}
		clone.Header.Set("Authorization", "Bearer "+bearer)
	} else {
		clone.SetBasicAuth(t.email, t.token)
	}
	return t.baseTransport().RoundTrip(clone)
}

func (t *authTransport) baseTransport() http.RoundTripper {
	if t.base != nil {
		return t.base
	}
	return http.DefaultTransport
}
