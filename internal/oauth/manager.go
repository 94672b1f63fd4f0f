package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"pkt.systems/pslog"

	"pkt.systems/wikid/internal/clock"
)

const (
	// DefaultTokenURL is the Atlassian account token endpoint.
	DefaultTokenURL = "https://auth.atlassian.com/oauth/token"

	// ExpiryBuffer is how far ahead of the recorded expiry a cached
	// access token is already treated as expired.
	ExpiryBuffer = 5 * time.Minute

	defaultHTTPTimeout = 30 * time.Second
	maxResponseBody    = 1 << 20
)

// Config configures a token Manager.
type Config struct {
	ClientID     string
	ClientSecret string
	// RefreshToken seeds the manager when the token file holds none.
	RefreshToken string
	TokenURL     string
	TokenFile    string
	HTTPClient   *http.Client
	Logger       pslog.Logger
	Clock        clock.Clock
	// OnRefresh is invoked after each successful token refresh.
	OnRefresh func()
}

// RefreshError reports a non-2xx response from the token endpoint.
type RefreshError struct {
	Status int
	Body   string
}

func (e *RefreshError) Error() string {
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("oauth: token refresh failed: status %d", e.Status)
	}
	return fmt.Sprintf("oauth: token refresh failed: status %d: %s", e.Status, strings.TrimSpace(e.Body))
}

// storedToken is the on-disk token file payload. The expiry is kept as
// fractional unix seconds so files written by other tooling stay usable.
type storedToken struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	ExpiresAt    float64 `json:"expires_at"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Manager caches an Atlassian access token, refreshing it through the
// configured refresh token before it expires. Concurrent callers share a
// single refresh request.
type Manager struct {
	clientID     string
	clientSecret string
	tokenURL     string
	tokenFile    string
	httpClient   *http.Client
	logger       pslog.Logger
	clk          clock.Clock
	onRefresh    func()

	group singleflight.Group

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

// NewManager creates a manager backed by the configured token file. A
// missing or unreadable file falls back to the seed refresh token from
// the configuration.
func NewManager(cfg Config) (*Manager, error) {
	clientID := strings.TrimSpace(cfg.ClientID)
	if clientID == "" {
		return nil, errors.New("oauth: client id required")
	}
	clientSecret := strings.TrimSpace(cfg.ClientSecret)
	if clientSecret == "" {
		return nil, errors.New("oauth: client secret required")
	}
	tokenFile := strings.TrimSpace(cfg.TokenFile)
	if tokenFile == "" {
		return nil, errors.New("oauth: token file path required")
	}
	tokenFile, err := filepath.Abs(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("resolve token file %q: %w", cfg.TokenFile, err)
	}
	m := &Manager{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     strings.TrimSpace(cfg.TokenURL),
		tokenFile:    tokenFile,
		httpClient:   cfg.HTTPClient,
		logger:       cfg.Logger,
		clk:          cfg.Clock,
		onRefresh:    cfg.OnRefresh,
		refreshToken: strings.TrimSpace(cfg.RefreshToken),
	}
	if m.tokenURL == "" {
		m.tokenURL = DefaultTokenURL
	}
	if m.httpClient == nil {
		m.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if m.logger == nil {
		m.logger = pslog.NoopLogger()
	}
	if m.clk == nil {
		m.clk = clock.Real{}
	}
	m.load()
	return m, nil
}

// TokenFile returns the backing token file path.
func (m *Manager) TokenFile() string {
	return m.tokenFile
}

// ExpiresAt returns the recorded expiry of the cached access token, or
// the zero time when none is cached.
func (m *Manager) ExpiresAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.expiresAt
}

// Token returns an access token that is valid for at least ExpiryBuffer,
// refreshing first when the cached one is absent or about to expire.
// Concurrent callers are collapsed into one refresh request.
func (m *Manager) Token(ctx context.Context) (string, error) {
	m.mu.RLock()
	if m.validLocked(m.clk.Now()) {
		token := m.accessToken
		m.mu.RUnlock()
		return token, nil
	}
	m.mu.RUnlock()

	v, err, _ := m.group.Do("refresh", func() (any, error) {
		m.mu.RLock()
		if m.validLocked(m.clk.Now()) {
			token := m.accessToken
			m.mu.RUnlock()
			return token, nil
		}
		m.mu.RUnlock()
		return m.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (m *Manager) validLocked(now time.Time) bool {
	if m.accessToken == "" {
		return false
	}
	return now.Before(m.expiresAt.Add(-ExpiryBuffer))
}

func (m *Manager) refresh(ctx context.Context) (string, error) {
	m.mu.RLock()
	refreshToken := m.refreshToken
	m.mu.RUnlock()
	if refreshToken == "" {
		return "", errors.New("oauth: no refresh token available")
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", m.clientID)
	form.Set("client_secret", m.clientSecret)
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("refresh token: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return "", fmt.Errorf("read refresh response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		m.logger.Warn("oauth.refresh.failed", "status", resp.StatusCode)
		return "", &RefreshError{Status: resp.StatusCode, Body: string(body)}
	}
	var payload tokenResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("decode refresh response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", errors.New("oauth: refresh response missing access_token")
	}

	now := m.clk.Now()
	m.mu.Lock()
	m.accessToken = payload.AccessToken
	if strings.TrimSpace(payload.RefreshToken) != "" {
		m.refreshToken = payload.RefreshToken
	}
	m.expiresAt = now.Add(time.Duration(payload.ExpiresIn) * time.Second)
	saveErr := m.saveLocked()
	token := m.accessToken
	expires := m.expiresAt
	m.mu.Unlock()
	if saveErr != nil {
		return "", saveErr
	}
	m.logger.Debug("oauth.refresh.ok", "expires_at", expires)
	if m.onRefresh != nil {
		m.onRefresh()
	}
	return token, nil
}

// load seeds in-memory state from the token file. Any read or decode
// failure leaves the configuration seed in place so the next refresh
// can recover.
func (m *Manager) load() {
	raw, err := os.ReadFile(m.tokenFile)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			m.logger.Warn("oauth.store.read_failed", "path", m.tokenFile, "error", err)
		}
		return
	}
	var stored storedToken
	if err := json.Unmarshal(raw, &stored); err != nil {
		m.logger.Warn("oauth.store.corrupt", "path", m.tokenFile, "error", err)
		return
	}
	m.mu.Lock()
	m.accessToken = stored.AccessToken
	if strings.TrimSpace(stored.RefreshToken) != "" {
		m.refreshToken = stored.RefreshToken
	}
	m.expiresAt = timeFromUnixFloat(stored.ExpiresAt)
	m.mu.Unlock()
	m.logger.Debug("oauth.store.loaded", "path", m.tokenFile)
}

func (m *Manager) saveLocked() error {
	payload := storedToken{
		AccessToken:  m.accessToken,
		RefreshToken: m.refreshToken,
		ExpiresAt:    unixFloat(m.expiresAt),
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode token store: %w", err)
	}
	if err := writeFileAtomic(m.tokenFile, encoded, 0o600); err != nil {
		return fmt.Errorf("persist token store: %w", err)
	}
	return nil
}

func timeFromUnixFloat(sec float64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	whole := int64(sec)
	frac := int64((sec - float64(whole)) * float64(time.Second))
	return time.Unix(whole, frac).UTC()
}

func unixFloat(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / float64(time.Second)
}

func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, mode); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
