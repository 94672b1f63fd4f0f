package wikid

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"pkt.systems/pslog"
	"pkt.systems/wikid/internal/adf"
	"pkt.systems/wikid/internal/confluence"
	"pkt.systems/wikid/internal/oauth"
	"pkt.systems/wikid/internal/snapshot"
	"pkt.systems/wikid/internal/svcfields"
)

// Server is the wikid gateway service contract.
type Server interface {
	Run(context.Context) error
}

// NewServerRequest wraps constructor inputs.
type NewServerRequest struct {
	Config Config
	Logger pslog.Logger
}

type server struct {
	cfg          Config
	logger       pslog.Logger
	toolsLog     pslog.Logger
	lifecycleLog pslog.Logger
	cacheLog     pslog.Logger
	client       *confluence.Client
	store        snapshot.Store
	cacheDir     string
	tokens       *oauth.Manager
	watcher      *snapshot.Watcher
	metrics      *serverMetrics
	mcp          *mcpsdk.Server
	httpServer   *http.Server
	mcpHTTPPath  string
}

// NewServer constructs the wikid MCP gateway.
func NewServer(req NewServerRequest) (Server, error) {
	cfg := req.Config
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	logger := req.Logger
	if logger == nil {
		logger = pslog.NewStructured(context.Background(), os.Stderr).With("app", "wikid")
	}

	s := &server{
		cfg:          cfg,
		logger:       logger,
		toolsLog:     svcfields.WithSubsystem(logger, "mcp.tools"),
		lifecycleLog: svcfields.WithSubsystem(logger, "server.lifecycle"),
		cacheLog:     svcfields.WithSubsystem(logger, "snapshot.store"),
		metrics:      newServerMetrics(logger),
		mcpHTTPPath:  cleanHTTPPath(cfg.MCPPath),
	}

	if cfg.AuthMode == AuthModeOAuth {
		tokenFile, err := expandUserPath(cfg.OAuthTokenFile)
		if err != nil {
			return nil, fmt.Errorf("resolve token file path: %w", err)
		}
		tokens, err := oauth.NewManager(oauth.Config{
			ClientID:     cfg.OAuthClientID,
			ClientSecret: cfg.OAuthClientSecret,
			RefreshToken: cfg.OAuthRefreshToken,
			TokenURL:     cfg.OAuthTokenURL,
			TokenFile:    tokenFile,
			Logger:       svcfields.WithSubsystem(logger, "oauth.manager"),
			OnRefresh:    s.metrics.recordRefresh,
		})
		if err != nil {
			return nil, err
		}
		s.tokens = tokens
	}

	clientOpts := []confluence.Option{
		confluence.WithLogger(svcfields.WithSubsystem(logger, "confluence.client")),
		confluence.WithThrottle(cfg.ThrottleRetries, cfg.ThrottleMaxWait),
		confluence.WithTimeouts(cfg.RequestTimeout, cfg.AttachmentTimeout),
		confluence.WithTracing(strings.TrimSpace(cfg.OTLPEndpoint) != ""),
		confluence.WithThrottleObserver(s.metrics.recordThrottleRetry),
		confluence.WithConflictObserver(s.metrics.recordConflict),
	}
	if s.tokens != nil {
		clientOpts = append(clientOpts, confluence.WithTokenManager(s.tokens))
	} else {
		clientOpts = append(clientOpts, confluence.WithBasicAuth(cfg.Email, cfg.APIToken))
	}
	client, err := confluence.New(cfg.BaseURL, clientOpts...)
	if err != nil {
		return nil, err
	}
	s.client = client

	store, cacheDir, err := openSnapshotStore(cfg.CacheDSN, s.cacheLog)
	if err != nil {
		return nil, err
	}
	s.store = store
	s.cacheDir = cacheDir

	if cfg.WatchCache && cacheDir != "" {
		watcher, err := snapshot.WatchDir(cacheDir, s.cacheLog)
		if err != nil {
			return nil, fmt.Errorf("watch cache directory: %w", err)
		}
		s.watcher = watcher
	}

	s.mcp = s.buildMCPServer()
	s.httpServer = &http.Server{
		Addr:    cfg.Listen,
		Handler: s.buildMux(),
	}

	return s, nil
}

func (s *server) Run(ctx context.Context) error {
	telemetry, err := setupTelemetry(ctx, s.cfg.OTLPEndpoint, s.cfg.MetricsListen, s.cfg.PprofListen, s.cfg.EnableProfilingMetrics, s.logger)
	if err != nil {
		return err
	}
	defer func() {
		if telemetry != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := telemetry.Shutdown(shutdownCtx); err != nil {
				s.lifecycleLog.Warn("telemetry.shutdown_failed", "error", err)
			}
		}
		if s.watcher != nil {
			_ = s.watcher.Close()
		}
		if err := s.store.Close(); err != nil {
			s.cacheLog.Warn("cache.close_failed", "error", err)
		}
	}()

	if s.watcher != nil {
		go s.consumeWatchEvents()
	}

	if s.cfg.Stdio {
		s.lifecycleLog.Info("starting wikid MCP gateway", "transport", "stdio", "auth_mode", s.cfg.AuthMode, "cache", s.cfg.CacheDSN)
		return s.mcp.Run(ctx, &mcpsdk.StdioTransport{})
	}

	s.lifecycleLog.Info("starting wikid MCP gateway", "listen", s.cfg.Listen, "mcp_path", s.mcpHTTPPath, "auth_mode", s.cfg.AuthMode, "cache", s.cfg.CacheDSN)
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *server) consumeWatchEvents() {
	for id := range s.watcher.Events() {
		s.cacheLog.Info("cache.snapshot.modified", "page_id", id)
	}
}

func (s *server) buildMCPServer() *mcpsdk.Server {
	srv := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    "wikid",
		Version: Version(),
	}, &mcpsdk.ServerOptions{
		Instructions:       serverInstructions(s.cfg),
		InitializedHandler: s.handleInitialized,
	})
	s.registerTools(srv)
	return srv
}

func (s *server) buildMux() *http.ServeMux {
	streamable := mcpsdk.NewStreamableHTTPHandler(func(_ *http.Request) *mcpsdk.Server {
		return s.mcp
	}, nil)

	mux := http.NewServeMux()
	mux.Handle(s.mcpHTTPPath, streamable)
	return mux
}

func (s *server) handleInitialized(_ context.Context, req *mcpsdk.InitializedRequest) {
	if req == nil || req.Session == nil {
		return
	}
	s.lifecycleLog.Debug("mcp.session.initialized", "session_id", req.Session.ID())
}

func (s *server) authMode() confluence.AuthMode {
	if s.cfg.AuthMode == AuthModeOAuth {
		return confluence.AuthOAuth
	}
	return confluence.AuthBasic
}

// wrapTool decorates a handler with per-tool metrics and the friendly
// error translation every tool shares: handler errors come back to the
// client as a single readable message with IsError set.
func wrapTool[In any](s *server, name string, h mcpsdk.ToolHandlerFor[In, any]) mcpsdk.ToolHandlerFor[In, any] {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input In) (*mcpsdk.CallToolResult, any, error) {
		start := time.Now()
		res, out, err := h(ctx, req, input)
		s.metrics.recordTool(ctx, name, err != nil, time.Since(start).Milliseconds())
		if err != nil {
			s.toolsLog.Debug("tools.call_failed", "tool", name, "error", err)
			return nil, nil, toolMessageError{msg: friendlyToolMessage(err, s.authMode())}
		}
		return res, out, nil
	}
}

func (s *server) registerTools(srv *mcpsdk.Server) {
	descriptions := buildToolDescriptions(s.cfg)
	desc := func(name string) string {
		description, ok := descriptions[name]
		if !ok {
			panic(fmt.Sprintf("missing MCP tool description for %q", name))
		}
		return description
	}

	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolGetPage,
		Description: desc(toolGetPage),
	}, wrapTool(s, toolGetPage, s.handleGetPageTool))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolEditPage,
		Description: desc(toolEditPage),
	}, wrapTool(s, toolEditPage, s.handleEditPageTool))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolPushPage,
		Description: desc(toolPushPage),
	}, wrapTool(s, toolPushPage, s.handlePushPageTool))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolFindReplace,
		Description: desc(toolFindReplace),
	}, wrapTool(s, toolFindReplace, s.handleFindReplaceTool))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolCreatePage,
		Description: desc(toolCreatePage),
	}, wrapTool(s, toolCreatePage, s.handleCreatePageTool))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolExtractText,
		Description: desc(toolExtractText),
	}, wrapTool(s, toolExtractText, s.handleExtractTextTool))

	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolRegexReplace,
		Description: desc(toolRegexReplace),
	}, wrapTool(s, toolRegexReplace, s.handleRegexReplaceTool))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolReplaceMention,
		Description: desc(toolReplaceMention),
	}, wrapTool(s, toolReplaceMention, s.handleReplaceMentionTool))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolUpdateTask,
		Description: desc(toolUpdateTask),
	}, wrapTool(s, toolUpdateTask, s.handleUpdateTaskTool))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolUpdateTableCell,
		Description: desc(toolUpdateTableCell),
	}, wrapTool(s, toolUpdateTableCell, s.handleUpdateTableCellTool))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolInsertTableRow,
		Description: desc(toolInsertTableRow),
	}, wrapTool(s, toolInsertTableRow, s.handleInsertTableRowTool))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolDeleteTableRow,
		Description: desc(toolDeleteTableRow),
	}, wrapTool(s, toolDeleteTableRow, s.handleDeleteTableRowTool))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolAddLink,
		Description: desc(toolAddLink),
	}, wrapTool(s, toolAddLink, s.handleAddLinkTool))

	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolSearchPages,
		Description: desc(toolSearchPages),
	}, wrapTool(s, toolSearchPages, s.handleSearchPagesTool))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolListPages,
		Description: desc(toolListPages),
	}, wrapTool(s, toolListPages, s.handleListPagesTool))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolGetChildPages,
		Description: desc(toolGetChildPages),
	}, wrapTool(s, toolGetChildPages, s.handleGetChildPagesTool))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolGetAncestors,
		Description: desc(toolGetAncestors),
	}, wrapTool(s, toolGetAncestors, s.handleGetAncestorsTool))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolListSpaces,
		Description: desc(toolListSpaces),
	}, wrapTool(s, toolListSpaces, s.handleListSpacesTool))

	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolGetLabels,
		Description: desc(toolGetLabels),
	}, wrapTool(s, toolGetLabels, s.handleGetLabelsTool))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolAddLabels,
		Description: desc(toolAddLabels),
	}, wrapTool(s, toolAddLabels, s.handleAddLabelsTool))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolRemoveLabel,
		Description: desc(toolRemoveLabel),
	}, wrapTool(s, toolRemoveLabel, s.handleRemoveLabelTool))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolAddComment,
		Description: desc(toolAddComment),
	}, wrapTool(s, toolAddComment, s.handleAddCommentTool))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolListComments,
		Description: desc(toolListComments),
	}, wrapTool(s, toolListComments, s.handleListCommentsTool))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolListInlineComments,
		Description: desc(toolListInlineComments),
	}, wrapTool(s, toolListInlineComments, s.handleListInlineCommentsTool))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolAddInlineComment,
		Description: desc(toolAddInlineComment),
	}, wrapTool(s, toolAddInlineComment, s.handleAddInlineCommentTool))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolGetPageProperties,
		Description: desc(toolGetPageProperties),
	}, wrapTool(s, toolGetPageProperties, s.handleGetPagePropertiesTool))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolSetPageProperty,
		Description: desc(toolSetPageProperty),
	}, wrapTool(s, toolSetPageProperty, s.handleSetPagePropertyTool))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolSetRestrictions,
		Description: desc(toolSetRestrictions),
	}, wrapTool(s, toolSetRestrictions, s.handleSetRestrictionsTool))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolWatchPage,
		Description: desc(toolWatchPage),
	}, wrapTool(s, toolWatchPage, s.handleWatchPageTool))

	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolListVersions,
		Description: desc(toolListVersions),
	}, wrapTool(s, toolListVersions, s.handleListVersionsTool))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolCompareVersions,
		Description: desc(toolCompareVersions),
	}, wrapTool(s, toolCompareVersions, s.handleCompareVersionsTool))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolRevertPage,
		Description: desc(toolRevertPage),
	}, wrapTool(s, toolRevertPage, s.handleRevertPageTool))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolGetContributors,
		Description: desc(toolGetContributors),
	}, wrapTool(s, toolGetContributors, s.handleGetContributorsTool))

	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolListAttachments,
		Description: desc(toolListAttachments),
	}, wrapTool(s, toolListAttachments, s.handleListAttachmentsTool))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolUploadAttachment,
		Description: desc(toolUploadAttachment),
	}, wrapTool(s, toolUploadAttachment, s.handleUploadAttachmentTool))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolDownloadAttachment,
		Description: desc(toolDownloadAttachment),
	}, wrapTool(s, toolDownloadAttachment, s.handleDownloadAttachmentTool))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolDeleteAttachment,
		Description: desc(toolDeleteAttachment),
	}, wrapTool(s, toolDeleteAttachment, s.handleDeleteAttachmentTool))

	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolArchivePage,
		Description: desc(toolArchivePage),
	}, wrapTool(s, toolArchivePage, s.handleArchivePageTool))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolMovePage,
		Description: desc(toolMovePage),
	}, wrapTool(s, toolMovePage, s.handleMovePageTool))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolCopyPage,
		Description: desc(toolCopyPage),
	}, wrapTool(s, toolCopyPage, s.handleCopyPageTool))

	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolGetUser,
		Description: desc(toolGetUser),
	}, wrapTool(s, toolGetUser, s.handleGetUserTool))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolListCache,
		Description: desc(toolListCache),
	}, wrapTool(s, toolListCache, s.handleListCacheTool))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolClearCache,
		Description: desc(toolClearCache),
	}, wrapTool(s, toolClearCache, s.handleClearCacheTool))
}

func serverInstructions(cfg Config) string {
	return strings.TrimSpace(fmt.Sprintf(`
wikid Confluence gateway operating manual:
- Edit workflow: confluence_get_page caches a snapshot, confluence_edit_page mutates the snapshot (repeatable), confluence_push_page publishes it with optimistic concurrency.
- One-shot edits: confluence_find_replace and the mutation tools (regex, mentions, tasks, tables, links) fetch fresh, mutate, and push in a single call.
- Page references: tools accept a numeric page ID, a full page URL, or a short /wiki/x/ link.
- Destructive tools (archive, move, delete attachment) run in preview mode by default; show the preview to the user and call again with confirm=true only after explicit approval.
- Pagination: list tools end with "Next cursor: ..." when more results exist; pass the cursor back to continue.
- Version safety: pushes retry a version conflict once with the latest server version; a second conflict means someone else is editing the page.
- Auth mode: %s. Cache backend: %s
`, cfg.AuthMode, cfg.CacheDSN))
}

// cleanHTTPPath normalizes the MCP endpoint path.
func cleanHTTPPath(raw string) string {
	p := strings.TrimSpace(raw)
	if p == "" {
		return DefaultMCPPath
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// clampLimit applies the tool default when the caller omits limit and
// the server-side page cap otherwise.
func clampLimit(requested, def, max int) int {
	if requested <= 0 {
		return def
	}
	if requested > max {
		return max
	}
	return requested
}

// boolOrTrue reads an optional boolean input whose omitted value means true.
func boolOrTrue(v *bool) bool {
	return v == nil || *v
}

// elapsedMS reports milliseconds since start for tool timing lines.
func elapsedMS(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

// truncate clips s to at most max runes.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// orUnknown substitutes the listing placeholder for fields the API
// left empty.
func orUnknown(s string) string {
	if s == "" {
		return "?"
	}
	return s
}

// pageBody returns the page's document tree, substituting an empty doc
// when the API response carried no body.
func pageBody(p *confluence.Page) *adf.Node {
	if p.Body != nil {
		return p.Body
	}
	return adf.NewDoc()
}
