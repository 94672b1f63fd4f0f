package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"pkt.systems/pslog"
	"pkt.systems/wikid"
	"pkt.systems/wikid/internal/confluence"
	"pkt.systems/wikid/internal/svcfields"
)

func submain(ctx context.Context) int {
	baseLogger := pslog.LoggerFromEnv(context.Background(),
		pslog.WithEnvPrefix("WIKID_LOG_"),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeStructured, MinLevel: pslog.InfoLevel}),
		pslog.WithEnvWriter(os.Stderr),
	).With("app", "wikid")
	cmd := newRootCommand(baseLogger)
	rootInvocation := invocationTargetsRootCommand(cmd, os.Args[1:])
	ctx = withSignalCancel(ctx)
	if _, err := cmd.ExecuteContextC(ctx); err != nil {
		if err != context.Canceled {
			if rootInvocation {
				svcfields.WithSubsystem(baseLogger, "cli.root").Error("command failed", "error", err)
			} else {
				fmt.Fprintf(os.Stderr, "%s\n", err)
			}
		}
		return 1
	}
	return 0
}

// invocationTargetsRootCommand reports whether the arguments run the root
// (server) command rather than a subcommand. Root failures go to the
// structured logger; subcommand failures print plainly for humans.
func invocationTargetsRootCommand(root *cobra.Command, args []string) bool {
	lookupLong := func(name string) *pflag.Flag {
		if flag := root.Flags().Lookup(name); flag != nil {
			return flag
		}
		return root.PersistentFlags().Lookup(name)
	}
	lookupShort := func(shorthand string) *pflag.Flag {
		if flag := root.Flags().ShorthandLookup(shorthand); flag != nil {
			return flag
		}
		return root.PersistentFlags().ShorthandLookup(shorthand)
	}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--":
			return true
		case strings.HasPrefix(arg, "--"):
			if strings.IndexByte(arg, '=') >= 0 {
				continue
			}
			if flag := lookupLong(strings.TrimPrefix(arg, "--")); flag != nil && flag.NoOptDefVal == "" {
				i++
			}
		case strings.HasPrefix(arg, "-") && arg != "-":
			shorthand := strings.TrimPrefix(arg, "-")
			if flag := lookupShort(shorthand[len(shorthand)-1:]); flag != nil && flag.NoOptDefVal == "" {
				i++
			}
		default:
			return !isSubcommandToken(root, arg)
		}
	}
	return true
}

func isSubcommandToken(root *cobra.Command, token string) bool {
	for _, sub := range root.Commands() {
		if token == sub.Name() {
			return true
		}
		for _, alias := range sub.Aliases {
			if token == alias {
				return true
			}
		}
	}
	return false
}

func humanizeBytes(n int64) string {
	return strings.ReplaceAll(humanize.Bytes(uint64(n)), " ", "")
}

func loadConfigFile() (string, error) {
	cfgPath := strings.TrimSpace(viper.GetString("config"))
	explicit := cfgPath != ""

	if cfgPath == "" {
		if dir, err := wikid.DefaultConfigDir(); err == nil {
			candidate := filepath.Join(dir, wikid.DefaultConfigFileName)
			if _, err := os.Stat(candidate); err == nil {
				cfgPath = candidate
			}
		}
	}

	if cfgPath == "" {
		return "", nil
	}

	expanded, err := expandPath(cfgPath)
	if err != nil {
		return "", fmt.Errorf("expand config path %q: %w", cfgPath, err)
	}
	info, err := os.Stat(expanded)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return "", nil
		}
		return "", fmt.Errorf("config file %q: %w", expanded, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("config file %q is a directory", expanded)
	}

	viper.SetConfigFile(expanded)
	if err := viper.ReadInConfig(); err != nil {
		return "", fmt.Errorf("read config file %q: %w", expanded, err)
	}
	return expanded, nil
}

func expandPath(p string) (string, error) {
	if p == "" {
		return "", nil
	}
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
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return abs, nil
}

func newRootCommand(baseLogger pslog.Logger) *cobra.Command {
	var cfg wikid.Config

	cmd := &cobra.Command{
		Use:           "wikid",
		Short:         "wikid is an MCP gateway to Confluence Cloud with an editable page cache and conflict-safe pushes",
		SilenceErrors: true,
		Example: `
  # Basic auth: account email + API token against your Atlassian site
  WIKID_API_TOKEN=s3cret wikid --base-url https://yoursite.atlassian.net/wiki --email you@example.com

  # OAuth 2.0 with rotating refresh tokens persisted under ~/.wikid
  WIKID_OAUTH_CLIENT_SECRET=s3cret wikid --auth-mode oauth --oauth-client-id abc123 --oauth-cloud-id 0f44f6b4-1b22-4460-a96b-2b5f44cf3f3f

  # Serve MCP over stdio for agents that spawn the gateway directly
  WIKID_API_TOKEN=s3cret wikid --stdio --base-url https://yoursite.atlassian.net/wiki --email you@example.com

  # Keep page snapshots in MinIO instead of the local disk cache
  WIKID_S3_ACCESS_KEY_ID=minioadmin WIKID_S3_SECRET_ACCESS_KEY=minioadmin wikid --cache "s3://localhost:9000/wikid-cache?insecure=1"
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := baseLogger
			cliLogger := svcfields.WithSubsystem(logger, "cli.root")
			ctx := cmd.Context()
			cmd.SilenceUsage = true
			svcfields.WithSubsystem(logger, "server.lifecycle.init").WithLogLevel().Info(
				"welcome to wikid",
				"app", "wikid",
				"pid", os.Getpid(),
				"uid", os.Getuid(),
				"gid", os.Getgid(),
			)

			configFile, err := loadConfigFile()
			if err != nil {
				return err
			}
			if configFile != "" {
				cliLogger.Info("loaded config file", "path", configFile)
			}

			if err := bindConfig(&cfg); err != nil {
				return err
			}

			logLevel := strings.TrimSpace(viper.GetString("log-level"))
			if logLevel == "" {
				logLevel = "info"
			}
			if level, ok := pslog.ParseLevel(logLevel); ok {
				logger = logger.LogLevel(level)
			}

			server, err := wikid.NewServer(wikid.NewServerRequest{Config: cfg, Logger: logger})
			if err != nil {
				return err
			}
			return server.Run(ctx)
		},
	}

	persistentFlags := cmd.PersistentFlags()
	persistentFlags.StringP("config", "c", "", "path to YAML config file (defaults to $HOME/.wikid/"+wikid.DefaultConfigFileName+")")
	persistentFlags.String("log-level", "info", "log level (trace|debug|info|warn|error)")

	maxUploadDefault := humanizeBytes(wikid.DefaultMaxUploadBytes)
	flags := cmd.Flags()
	flags.String("listen", wikid.DefaultListen, "MCP HTTP listen address")
	flags.String("mcp-path", wikid.DefaultMCPPath, "HTTP path serving the MCP endpoint")
	flags.Bool("stdio", false, "serve MCP over stdin/stdout instead of HTTP")
	flags.String("base-url", "", "Confluence site base URL (e.g. https://yoursite.atlassian.net/wiki)")
	flags.String("auth-mode", "", "authentication mode (basic or oauth; inferred from credentials when empty)")
	flags.String("email", "", "Atlassian account email for basic auth")
	flags.String("api-token", "", "Atlassian API token for basic auth (or WIKID_API_TOKEN)")
	flags.String("oauth-client-id", "", "OAuth app client ID")
	flags.String("oauth-client-secret", "", "OAuth app client secret (or WIKID_OAUTH_CLIENT_SECRET)")
	flags.String("oauth-refresh-token", "", "seed refresh token, used once when no token file exists yet")
	flags.String("oauth-cloud-id", "", "Confluence cloud ID selecting the site behind api.atlassian.com")
	flags.String("oauth-token-url", "", "override the OAuth token endpoint (defaults to Atlassian's)")
	flags.String("oauth-token-file", wikid.DefaultTokenFile, "path where rotated OAuth tokens persist between runs")
	flags.String("cache", wikid.DefaultCacheDSN, "snapshot cache DSN (disk:///path, mem://, s3://host[:port]/bucket)")
	flags.Bool("watch-cache", false, "log external modifications to disk-cached snapshots")
	flags.String("max-upload", maxUploadDefault, "maximum attachment upload size read from disk")
	flags.Duration("request-timeout", confluence.DefaultRequestTimeout, "timeout for ordinary Confluence API calls")
	flags.Duration("attachment-timeout", confluence.DefaultAttachmentTimeout, "timeout for attachment upload and download calls")
	flags.Int("throttle-retries", confluence.DefaultThrottleRetries, "maximum retries after Confluence 429 responses")
	flags.Duration("throttle-max-wait", confluence.DefaultThrottleMaxWait, "longest single Retry-After wait honoured before giving up")
	flags.String("metrics-listen", "", "metrics listen address (Prometheus scrape endpoint; empty disables)")
	flags.String("pprof-listen", "", "pprof listen address (debug/pprof endpoints; empty disables)")
	flags.Bool("enable-profiling-metrics", false, "enable Go runtime profiling metrics on the Prometheus endpoint")
	flags.String("otlp-endpoint", "", "OTLP collector endpoint (e.g. grpc://localhost:4317)")

	bindFlag := func(name string) {
		flag := flags.Lookup(name)
		if flag == nil {
			flag = persistentFlags.Lookup(name)
		}
		if flag == nil {
			panic(fmt.Sprintf("flag %q not found", name))
		}
		if err := viper.BindPFlag(name, flag); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("WIKID")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	names := []string{
		"config", "log-level",
		"listen", "mcp-path", "stdio",
		"base-url", "auth-mode", "email", "api-token",
		"oauth-client-id", "oauth-client-secret", "oauth-refresh-token", "oauth-cloud-id", "oauth-token-url", "oauth-token-file",
		"cache", "watch-cache", "max-upload",
		"request-timeout", "attachment-timeout", "throttle-retries", "throttle-max-wait",
		"metrics-listen", "pprof-listen", "enable-profiling-metrics", "otlp-endpoint",
	}
	for _, name := range names {
		bindFlag(name)
	}

	cmd.AddCommand(newConfigCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func bindConfig(cfg *wikid.Config) error {
	cfg.BaseURL = strings.TrimSpace(viper.GetString("base-url"))
	cfg.AuthMode = viper.GetString("auth-mode")
	cfg.Email = viper.GetString("email")
	cfg.APIToken = viper.GetString("api-token")
	cfg.OAuthClientID = viper.GetString("oauth-client-id")
	cfg.OAuthClientSecret = viper.GetString("oauth-client-secret")
	cfg.OAuthRefreshToken = viper.GetString("oauth-refresh-token")
	cfg.OAuthCloudID = viper.GetString("oauth-cloud-id")
	cfg.OAuthTokenURL = viper.GetString("oauth-token-url")
	cfg.OAuthTokenFile = viper.GetString("oauth-token-file")
	cfg.CacheDSN = viper.GetString("cache")
	cfg.WatchCache = viper.GetBool("watch-cache")
	cfg.Listen = viper.GetString("listen")
	cfg.MCPPath = viper.GetString("mcp-path")
	cfg.Stdio = viper.GetBool("stdio")
	cfg.RequestTimeout = viper.GetDuration("request-timeout")
	cfg.AttachmentTimeout = viper.GetDuration("attachment-timeout")
	cfg.ThrottleRetries = viper.GetInt("throttle-retries")
	cfg.ThrottleMaxWait = viper.GetDuration("throttle-max-wait")
	if maxUpload := viper.GetString("max-upload"); maxUpload != "" {
		size, err := humanize.ParseBytes(maxUpload)
		if err != nil {
			return fmt.Errorf("parse max-upload: %w", err)
		}
		cfg.MaxUploadBytes = int64(size)
	}
	cfg.MetricsListen = viper.GetString("metrics-listen")
	cfg.PprofListen = viper.GetString("pprof-listen")
	cfg.EnableProfilingMetrics = viper.GetBool("enable-profiling-metrics")
	cfg.OTLPEndpoint = viper.GetString("otlp-endpoint")
	return nil
}

func withSignalCancel(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(signals)
	}()
	return ctx
}
