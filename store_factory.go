package wikid

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/wikid/internal/snapshot"
)

// openSnapshotStore builds the snapshot backend selected by the cache DSN.
// The returned directory is non-empty only for disk-backed stores, where it
// names the resolved cache root (used by the fsnotify watcher).
func openSnapshotStore(dsn string, logger pslog.Logger) (snapshot.Store, string, error) {
	u, err := url.Parse(strings.TrimSpace(dsn))
	if err != nil {
		return nil, "", fmt.Errorf("parse cache DSN: %w", err)
	}
	switch u.Scheme {
	case "memory", "mem":
		return snapshot.NewMemory(), "", nil
	case "disk", "":
		dir, err := diskCacheDir(u)
		if err != nil {
			return nil, "", err
		}
		store, err := snapshot.NewDisk(snapshot.DiskConfig{Dir: dir, Logger: logger})
		if err != nil {
			return nil, "", err
		}
		return store, dir, nil
	case "s3":
		cfg, err := buildS3CacheConfig(u, logger)
		if err != nil {
			return nil, "", err
		}
		store, err := snapshot.NewS3(cfg)
		if err != nil {
			return nil, "", err
		}
		probeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.Ready(probeCtx); err != nil {
			_ = store.Close()
			return nil, "", err
		}
		return store, "", nil
	default:
		return nil, "", fmt.Errorf("cache scheme %q not supported (disk://, mem://, s3://)", u.Scheme)
	}
}

// diskCacheDir merges the host and path components of a disk:// DSN so both
// disk:///abs/path and disk://~/.wikid/cache parse the way people write them.
func diskCacheDir(u *url.URL) (string, error) {
	pathPart := strings.TrimSpace(u.Path)
	host := strings.TrimSpace(u.Host)
	if host != "" {
		pathPart = host + pathPart
	}
	if pathPart == "" || pathPart == "/" {
		return "", fmt.Errorf("disk cache path required (e.g. disk://~/.wikid/cache)")
	}
	expanded, err := expandUserPath(pathPart)
	if err != nil {
		return "", fmt.Errorf("expand cache path: %w", err)
	}
	return filepath.Clean(expanded), nil
}

func buildS3CacheConfig(u *url.URL, logger pslog.Logger) (snapshot.S3Config, error) {
	endpoint := strings.TrimSpace(u.Host)
	if endpoint == "" {
		return snapshot.S3Config{}, fmt.Errorf("s3 cache missing host (expected s3://host[:port]/bucket[/prefix])")
	}
	trimmed := strings.Trim(strings.TrimPrefix(u.Path, "/"), "/")
	if trimmed == "" {
		return snapshot.S3Config{}, fmt.Errorf("s3 cache missing bucket (expected s3://host[:port]/bucket[/prefix])")
	}
	parts := strings.SplitN(trimmed, "/", 2)
	cfg := snapshot.S3Config{
		Endpoint: endpoint,
		Bucket:   parts[0],
		Logger:   logger,
	}
	if len(parts) == 2 {
		cfg.Prefix = strings.Trim(parts[1], "/")
	}
	query := u.Query()
	cfg.Region = strings.TrimSpace(query.Get("region"))
	if v := query.Get("insecure"); v != "" {
		if ok, err := strconv.ParseBool(v); err == nil {
			cfg.Insecure = ok
		}
	}
	if v := query.Get("path-style"); v != "" {
		if ok, err := strconv.ParseBool(v); err == nil {
			cfg.PathStyle = ok
		}
	}
	cfg.AccessKey = strings.TrimSpace(os.Getenv("WIKID_S3_ACCESS_KEY_ID"))
	cfg.SecretKey = strings.TrimSpace(os.Getenv("WIKID_S3_SECRET_ACCESS_KEY"))
	return cfg, nil
}
