package wikid

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pkt.systems/wikid/internal/confluence"
	"pkt.systems/wikid/internal/oauth"
)

// Auth mode selectors for Config.AuthMode.
const (
	// AuthModeBasic authenticates with an Atlassian account email and API token.
	AuthModeBasic = "basic"
	// AuthModeOAuth authenticates with OAuth 2.0 refresh-token rotation.
	AuthModeOAuth = "oauth"
)

const (
	// DefaultListen is the default TCP endpoint the MCP server binds to.
	DefaultListen = "127.0.0.1:8711"
	// DefaultMCPPath is the HTTP path serving the streamable MCP endpoint.
	DefaultMCPPath = "/mcp"
	// DefaultCacheDSN points the snapshot store at the per-user disk cache.
	DefaultCacheDSN = "disk://~/.wikid/cache"
	// DefaultTokenFile persists rotated OAuth tokens between runs.
	DefaultTokenFile = "~/.wikid/tokens.json"
	// DefaultMaxUploadBytes caps attachment uploads read from disk.
	DefaultMaxUploadBytes = int64(25 << 20)
	// DefaultOAuthAPIBase is the gateway origin for OAuth-mode API calls;
	// the site cloud ID is appended per request base.
	DefaultOAuthAPIBase = "https://api.atlassian.com/ex/confluence"
	// DefaultConfigFileName is the config file searched for when --config is omitted.
	DefaultConfigFileName = "config.yaml"
)

// Config controls wikid gateway runtime behaviour.
type Config struct {
	// BaseURL is the Confluence site base, for example
	// "https://yoursite.atlassian.net/wiki". In OAuth mode it is derived
	// from OAuthCloudID when empty.
	BaseURL string
	// AuthMode selects "basic" or "oauth"; inferred from which credentials
	// are present when empty.
	AuthMode string
	// Email is the Atlassian account email for basic auth.
	Email string
	// APIToken is the Atlassian API token for basic auth.
	APIToken string
	// OAuthClientID identifies the OAuth app.
	OAuthClientID string
	// OAuthClientSecret is the OAuth app secret.
	OAuthClientSecret string
	// OAuthRefreshToken seeds the token manager when no token file exists yet.
	OAuthRefreshToken string
	// OAuthCloudID selects the Confluence site behind api.atlassian.com.
	OAuthCloudID string
	// OAuthTokenURL overrides the token endpoint.
	OAuthTokenURL string
	// OAuthTokenFile is where rotated tokens persist between runs.
	OAuthTokenFile string
	// CacheDSN selects the snapshot backend (disk://, mem://, s3://).
	CacheDSN string
	// WatchCache logs external modifications to disk-cached snapshots.
	WatchCache bool
	// Listen is the MCP HTTP bind address.
	Listen string
	// MCPPath is the HTTP path serving the MCP endpoint.
	MCPPath string
	// Stdio serves MCP over stdin/stdout instead of HTTP.
	Stdio bool
	// ThrottleRetries caps 429 retries per request.
	ThrottleRetries int
	// ThrottleMaxWait caps a single Retry-After wait.
	ThrottleMaxWait time.Duration
	// RequestTimeout bounds ordinary API calls.
	RequestTimeout time.Duration
	// AttachmentTimeout bounds attachment upload and download calls.
	AttachmentTimeout time.Duration
	// MaxUploadBytes caps attachment uploads read from disk.
	MaxUploadBytes int64
	// OTLPEndpoint enables trace export when set (host:port, grpc:// or http(s):// URL).
	OTLPEndpoint string
	// MetricsListen is the Prometheus scrape endpoint; empty disables metrics.
	MetricsListen string
	// PprofListen is the pprof debug listener; empty disables.
	PprofListen string
	// EnableProfilingMetrics adds Go runtime metrics to the metrics endpoint.
	EnableProfilingMetrics bool
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Listen) == "" {
		cfg.Listen = DefaultListen
	}
	if strings.TrimSpace(cfg.MCPPath) == "" {
		cfg.MCPPath = DefaultMCPPath
	}
	if strings.TrimSpace(cfg.CacheDSN) == "" {
		cfg.CacheDSN = DefaultCacheDSN
	}
	if strings.TrimSpace(cfg.OAuthTokenURL) == "" {
		cfg.OAuthTokenURL = oauth.DefaultTokenURL
	}
	if strings.TrimSpace(cfg.OAuthTokenFile) == "" {
		cfg.OAuthTokenFile = DefaultTokenFile
	}
	if cfg.ThrottleRetries <= 0 {
		cfg.ThrottleRetries = confluence.DefaultThrottleRetries
	}
	if cfg.ThrottleMaxWait <= 0 {
		cfg.ThrottleMaxWait = confluence.DefaultThrottleMaxWait
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = confluence.DefaultRequestTimeout
	}
	if cfg.AttachmentTimeout <= 0 {
		cfg.AttachmentTimeout = confluence.DefaultAttachmentTimeout
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	mode := strings.ToLower(strings.TrimSpace(cfg.AuthMode))
	if mode == "" {
		if strings.TrimSpace(cfg.OAuthClientID) != "" {
			mode = AuthModeOAuth
		} else {
			mode = AuthModeBasic
		}
	}
	cfg.AuthMode = mode
	if strings.TrimSpace(cfg.BaseURL) == "" && mode == AuthModeOAuth {
		if cloudID := strings.TrimSpace(cfg.OAuthCloudID); cloudID != "" {
			cfg.BaseURL = DefaultOAuthAPIBase + "/" + cloudID + "/wiki"
		}
	}
}

func validateConfig(cfg Config) error {
	switch cfg.AuthMode {
	case AuthModeBasic:
		if strings.TrimSpace(cfg.BaseURL) == "" {
			return fmt.Errorf("config: base url required (e.g. https://yoursite.atlassian.net/wiki)")
		}
		if strings.TrimSpace(cfg.Email) == "" || strings.TrimSpace(cfg.APIToken) == "" {
			return fmt.Errorf("config: basic auth requires email and api token")
		}
	case AuthModeOAuth:
		if strings.TrimSpace(cfg.OAuthClientID) == "" || strings.TrimSpace(cfg.OAuthClientSecret) == "" {
			return fmt.Errorf("config: oauth requires client id and client secret")
		}
		if strings.TrimSpace(cfg.BaseURL) == "" {
			return fmt.Errorf("config: oauth requires cloud id or explicit base url")
		}
	default:
		return fmt.Errorf("config: auth mode must be %q or %q", AuthModeBasic, AuthModeOAuth)
	}
	if !strings.HasPrefix(cfg.BaseURL, "http://") && !strings.HasPrefix(cfg.BaseURL, "https://") {
		return fmt.Errorf("config: base url must start with http:// or https://")
	}
	if cfg.EnableProfilingMetrics && strings.TrimSpace(cfg.MetricsListen) == "" {
		return fmt.Errorf("config: profiling metrics require metrics-listen")
	}
	return nil
}

// DefaultConfigDir resolves the per-user wikid directory, honoring the
// WIKID_CONFIG_DIR override.
func DefaultConfigDir() (string, error) {
	if override := strings.TrimSpace(os.Getenv("WIKID_CONFIG_DIR")); override != "" {
		if filepath.IsAbs(override) {
			return override, nil
		}
		abs, err := filepath.Abs(override)
		if err != nil {
			return "", err
		}
		return abs, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".wikid"), nil
}

// expandUserPath expands environment tokens and a leading "~/" in p.
func expandUserPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", nil
	}
	p = os.ExpandEnv(p)
	if strings.HasPrefix(p, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		if len(p) == 1 {
			p = home
		} else if p[1] == '/' || p[1] == '\\' {
			p = filepath.Join(home, p[2:])
		}
	}
	return p, nil
}
