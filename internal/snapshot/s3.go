package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"sort"
	"strings"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"pkt.systems/pslog"
)

// S3Config controls the S3-compatible snapshot backend.
type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
	Insecure  bool
	// PathStyle forces path-style bucket addressing, which MinIO and
	// most self-hosted gateways require.
	PathStyle bool
	Transport http.RoundTripper
	Logger    pslog.Logger
}

// S3 stores snapshots as JSON objects in an S3-compatible bucket so a
// cache can be shared between gateway replicas.
type S3 struct {
	client *minio.Client
	cfg    S3Config
	logger pslog.Logger
}

// NewS3 constructs an S3 snapshot store. When no static credentials are
// configured the usual AWS environment and IAM chains apply.
func NewS3(cfg S3Config) (*S3, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("snapshot: s3 bucket required")
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		if cfg.Region != "" {
			endpoint = fmt.Sprintf("s3.%s.amazonaws.com", cfg.Region)
		} else {
			endpoint = "s3.amazonaws.com"
		}
	}
	var creds *credentials.Credentials
	if cfg.AccessKey != "" || cfg.SecretKey != "" {
		creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	} else {
		creds = credentials.NewChainCredentials([]credentials.Provider{
			&credentials.EnvAWS{},
			&credentials.EnvMinio{},
			&credentials.FileAWSCredentials{},
			&credentials.IAM{},
		})
	}
	options := &minio.Options{
		Creds:     creds,
		Secure:    !cfg.Insecure,
		Region:    cfg.Region,
		Transport: cfg.Transport,
	}
	if cfg.PathStyle {
		options.BucketLookup = minio.BucketLookupPath
	}
	client, err := minio.New(endpoint, options)
	if err != nil {
		return nil, fmt.Errorf("snapshot: create s3 client: %w", err)
	}
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")
	logger := cfg.Logger
	if logger == nil {
		logger = pslog.NoopLogger()
	}
	return &S3{client: client, cfg: cfg, logger: logger}, nil
}

func (s *S3) object(id string) string {
	return path.Join(s.cfg.Prefix, id+".json")
}

// Location returns the s3:// URI for a page snapshot.
func (s *S3) Location(id string) string {
	return "s3://" + path.Join(s.cfg.Bucket, s.object(id))
}

// Read loads the snapshot object for a page.
func (s *S3) Read(ctx context.Context, id string) (*Snapshot, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.cfg.Bucket, s.object(id), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("snapshot: get page %s: %w", id, err)
	}
	defer obj.Close()
	raw, err := io.ReadAll(obj)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("snapshot: read page %s: %w", id, err)
	}
	snap, err := decodeSnapshot(raw)
	if err != nil {
		return nil, fmt.Errorf("snapshot: page %s: %w", id, err)
	}
	return snap, nil
}

// Write stores the snapshot object for a page.
func (s *S3) Write(ctx context.Context, snap *Snapshot) (string, error) {
	if err := validateID(snap.ID); err != nil {
		return "", err
	}
	data, err := snap.encode()
	if err != nil {
		return "", err
	}
	opts := minio.PutObjectOptions{ContentType: "application/json"}
	if _, err := s.client.PutObject(ctx, s.cfg.Bucket, s.object(snap.ID), bytes.NewReader(data), int64(len(data)), opts); err != nil {
		return "", fmt.Errorf("snapshot: put page %s: %w", snap.ID, err)
	}
	s.logger.Debug("cache.snapshot.written", "id", snap.ID, "object", s.object(snap.ID), "version", snap.Version)
	return s.Location(snap.ID), nil
}

// Delete removes the snapshot object for a page. S3 deletes are silent
// for missing keys, so absence is detected with a stat first.
func (s *S3) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	if _, err := s.client.StatObject(ctx, s.cfg.Bucket, s.object(id), minio.StatObjectOptions{}); err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("snapshot: stat page %s: %w", id, err)
	}
	if err := s.client.RemoveObject(ctx, s.cfg.Bucket, s.object(id), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("snapshot: remove page %s: %w", id, err)
	}
	return nil
}

// List enumerates snapshot objects sorted by page ID.
func (s *S3) List(ctx context.Context) ([]Entry, error) {
	prefix := ""
	if s.cfg.Prefix != "" {
		prefix = s.cfg.Prefix + "/"
	}
	opts := minio.ListObjectsOptions{Prefix: prefix, Recursive: true}
	var entries []Entry
	for object := range s.client.ListObjects(ctx, s.cfg.Bucket, opts) {
		if object.Err != nil {
			return nil, fmt.Errorf("snapshot: list objects: %w", object.Err)
		}
		rel := strings.TrimPrefix(object.Key, prefix)
		if !strings.HasSuffix(rel, ".json") || strings.Contains(rel, "/") {
			continue
		}
		id := strings.TrimSuffix(rel, ".json")
		snap, err := s.Read(ctx, id)
		if err != nil {
			s.logger.Warn("cache.snapshot.list_read_failed", "object", object.Key, "error", err)
			continue
		}
		entries = append(entries, Entry{
			ID:      id,
			Title:   snap.Title,
			Version: snap.Version,
			ModTime: object.LastModified,
			Size:    object.Size,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

// Clear removes every snapshot object and reports the count.
func (s *S3) Clear(ctx context.Context) (int, error) {
	prefix := ""
	if s.cfg.Prefix != "" {
		prefix = s.cfg.Prefix + "/"
	}
	opts := minio.ListObjectsOptions{Prefix: prefix, Recursive: true}
	removed := 0
	for object := range s.client.ListObjects(ctx, s.cfg.Bucket, opts) {
		if object.Err != nil {
			return removed, fmt.Errorf("snapshot: list objects: %w", object.Err)
		}
		rel := strings.TrimPrefix(object.Key, prefix)
		if !strings.HasSuffix(rel, ".json") || strings.Contains(rel, "/") {
			continue
		}
		if err := s.client.RemoveObject(ctx, s.cfg.Bucket, object.Key, minio.RemoveObjectOptions{}); err != nil {
			return removed, fmt.Errorf("snapshot: remove %s: %w", object.Key, err)
		}
		removed++
	}
	return removed, nil
}

// Ready probes the configured bucket so misconfiguration surfaces at
// startup instead of on the first tool call.
func (s *S3) Ready(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("snapshot: s3 connectivity check failed: %w", err)
	}
	if !exists {
		return fmt.Errorf("snapshot: s3 bucket %s does not exist", s.cfg.Bucket)
	}
	return nil
}

// Close satisfies Store and is a no-op for the S3 client.
func (s *S3) Close() error { return nil }

func isNotFound(err error) bool {
	errResp := minio.ErrorResponse{}
	if errors.As(err, &errResp) {
		return errResp.StatusCode == http.StatusNotFound
	}
	return false
}
