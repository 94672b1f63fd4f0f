// Package wikid exposes the Go APIs behind the MCP gateway that puts a
// Confluence Cloud wiki within reach of editing agents: pages pull into a
// local snapshot cache as ADF documents, mutate through targeted tools, and
// push back under optimistic concurrency so parallel editors never silently
// overwrite each other.
//
// Copyright (C) 2025 Michel Blomgren <https://pkt.systems>
//
// # Running the gateway
//
// The server speaks Model Context Protocol over streamable HTTP (default
// `127.0.0.1:8711` at `/mcp`) or over stdio for agents that spawn the
// process directly (`Config.Stdio`).
//
//	cfg := wikid.Config{
//	    BaseURL:  "https://yoursite.atlassian.net/wiki",
//	    Email:    "you@example.com",
//	    APIToken: os.Getenv("WIKID_API_TOKEN"),
//	    CacheDSN: "disk:///var/lib/wikid-cache",
//	}
//	srv, err := wikid.NewServer(wikid.NewServerRequest{Config: cfg})
//	if err != nil { log.Fatal(err) }
//	if err := srv.Run(ctx); err != nil { log.Fatal(err) }
//
// Run blocks until the context cancels, then drains the HTTP listener and
// closes the snapshot store. The `wikid` CLI wires every Config field to
// flags, `WIKID_*` environment variables, and a YAML config file
// (`wikid config gen` writes the defaults to `~/.wikid/config.yaml`).
//
// # Authentication
//
// Basic mode pairs an Atlassian account email with an API token. OAuth 2.0
// mode trades a client ID and secret plus a seed refresh token for rotating
// access tokens; rotated pairs persist to `Config.OAuthTokenFile` (default
// `~/.wikid/tokens.json`, mode 0600) so restarts never burn the refresh
// chain. Access tokens renew five minutes before expiry and concurrent tool
// calls share a single in-flight refresh. When `Config.AuthMode` is empty
// the mode is inferred: a configured client ID selects "oauth", anything
// else falls back to "basic". In OAuth mode `Config.OAuthCloudID` selects
// the site behind api.atlassian.com when no explicit base URL is given.
//
// # Editing workflow
//
// `get_page` pulls a page (by ID, URL, or short link) into the snapshot
// cache together with its version number. Mutation tools such as
// `edit_page`, `find_replace`, `update_table_cell`, and `update_task`
// rewrite the cached ADF document only; nothing touches the remote site
// until `push_page` uploads the draft with its base version. When Confluence
// answers 409 the push re-reads the remote version and retries exactly once,
// after which the conflict is reported so the caller can pull and merge.
// Destructive operations (`archive_page`, `move_page`, `delete_attachment`)
// return a preview first and require a second call with `confirm=true`.
//
// # Snapshot cache backends
//
// Configure the cache via `Config.CacheDSN`:
//
//   - `mem://` – in-memory (tests and throwaway sessions)
//   - `disk://~/.wikid/cache` – pretty-printed JSON files, one per page
//   - `s3://host:port/bucket[/prefix]` – MinIO or other S3-compatible stores
//     (TLS on unless `?insecure=1`; credentials via `WIKID_S3_ACCESS_KEY_ID`
//     and `WIKID_S3_SECRET_ACCESS_KEY`)
//
// With `Config.WatchCache` enabled on a disk cache, edits made to snapshot
// files by other programs are logged as `cache.snapshot.modified` events so
// an operator can spot drafts changing underneath a session.
//
// # Throttling and observability
//
// Confluence 429 responses are retried with the server's Retry-After hint
// (capped by `Config.ThrottleMaxWait`) up to `Config.ThrottleRetries` times
// before surfacing a friendly rate-limit message. Set `Config.OTLPEndpoint`
// to export traces for every Confluence round trip, `Config.MetricsListen`
// to expose tool-call counters and durations for Prometheus scrapes, and
// `Config.PprofListen` for the usual debug endpoints.
package wikid
