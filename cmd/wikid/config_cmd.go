package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pkt.systems/wikid"
	"pkt.systems/wikid/internal/confluence"
	"pkt.systems/wikid/internal/oauth"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage wikid configuration files",
	}
	cmd.AddCommand(newConfigGenCommand())
	return cmd
}

func newConfigGenCommand() *cobra.Command {
	var outPath string
	var force bool
	var stdout bool
	defaultOutput := "$HOME/.wikid/" + wikid.DefaultConfigFileName
	if dir, err := wikid.DefaultConfigDir(); err == nil {
		defaultOutput = filepath.Join(dir, wikid.DefaultConfigFileName)
	}

	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate a default wikid configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if stdout && outPath != "" {
				return fmt.Errorf("--stdout and --out are mutually exclusive")
			}
			if outPath == "" {
				dir, err := wikid.DefaultConfigDir()
				if err != nil {
					return fmt.Errorf("resolve config dir: %w", err)
				}
				outPath = filepath.Join(dir, wikid.DefaultConfigFileName)
			}

			data, err := defaultConfigYAML()
			if err != nil {
				return err
			}

			if stdout {
				fmt.Print(string(data))
				return nil
			}

			if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
				return fmt.Errorf("create config dir: %w", err)
			}
			if !force {
				if _, err := os.Stat(outPath); err == nil {
					return fmt.Errorf("config file %s already exists (use --force to overwrite)", outPath)
				} else if !errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("stat config file: %w", err)
				}
			}
			if err := os.WriteFile(outPath, data, 0o600); err != nil {
				return fmt.Errorf("write config file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote default config to %s\n", outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&outPath, "out", "", fmt.Sprintf("output path for generated config (defaults to %s)", defaultOutput))
	cmd.Flags().BoolVar(&force, "force", false, "overwrite the target file if it already exists")
	cmd.Flags().BoolVar(&stdout, "stdout", false, "print the config to stdout instead of writing a file")
	return cmd
}

type configDefaults struct {
	Listen                 string `yaml:"listen"`
	MCPPath                string `yaml:"mcp-path"`
	Stdio                  bool   `yaml:"stdio"`
	BaseURL                string `yaml:"base-url"`
	AuthMode               string `yaml:"auth-mode"`
	Email                  string `yaml:"email"`
	APIToken               string `yaml:"api-token"`
	OAuthClientID          string `yaml:"oauth-client-id"`
	OAuthClientSecret      string `yaml:"oauth-client-secret"`
	OAuthRefreshToken      string `yaml:"oauth-refresh-token"`
	OAuthCloudID           string `yaml:"oauth-cloud-id"`
	OAuthTokenURL          string `yaml:"oauth-token-url"`
	OAuthTokenFile         string `yaml:"oauth-token-file"`
	Cache                  string `yaml:"cache"`
	WatchCache             bool   `yaml:"watch-cache"`
	MaxUpload              string `yaml:"max-upload"`
	RequestTimeout         string `yaml:"request-timeout"`
	AttachmentTimeout      string `yaml:"attachment-timeout"`
	ThrottleRetries        int    `yaml:"throttle-retries"`
	ThrottleMaxWait        string `yaml:"throttle-max-wait"`
	MetricsListen          string `yaml:"metrics-listen"`
	PprofListen            string `yaml:"pprof-listen"`
	EnableProfilingMetrics bool   `yaml:"enable-profiling-metrics"`
	OTLPEndpoint           string `yaml:"otlp-endpoint"`
	LogLevel               string `yaml:"log-level"`
}

func defaultConfigYAML(overrides ...func(*configDefaults)) ([]byte, error) {
	defaults := configDefaults{
		Listen:                 wikid.DefaultListen,
		MCPPath:                wikid.DefaultMCPPath,
		Stdio:                  false,
		BaseURL:                "",
		AuthMode:               "",
		Email:                  "",
		APIToken:               "",
		OAuthClientID:          "",
		OAuthClientSecret:      "",
		OAuthRefreshToken:      "",
		OAuthCloudID:           "",
		OAuthTokenURL:          oauth.DefaultTokenURL,
		OAuthTokenFile:         wikid.DefaultTokenFile,
		Cache:                  wikid.DefaultCacheDSN,
		WatchCache:             false,
		MaxUpload:              humanizeBytes(wikid.DefaultMaxUploadBytes),
		RequestTimeout:         confluence.DefaultRequestTimeout.String(),
		AttachmentTimeout:      confluence.DefaultAttachmentTimeout.String(),
		ThrottleRetries:        confluence.DefaultThrottleRetries,
		ThrottleMaxWait:        confluence.DefaultThrottleMaxWait.String(),
		MetricsListen:          "",
		PprofListen:            "",
		EnableProfilingMetrics: false,
		OTLPEndpoint:           "",
		LogLevel:               "info",
	}
	for _, fn := range overrides {
		if fn != nil {
			fn(&defaults)
		}
	}

	out, err := yaml.Marshal(&defaults)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return out, nil
}
