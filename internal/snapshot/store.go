// Package snapshot persists local working copies of Confluence pages.
// A snapshot holds the page identity, the version the body was read at,
// and the full document tree. Mutating tools edit the snapshot and push
// it back with optimistic concurrency, so the store is the unit agents
// inspect and hand-edit between pulls and pushes.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"pkt.systems/wikid/internal/adf"
)

// ErrNotFound is returned when no snapshot exists for a page ID.
var ErrNotFound = errors.New("snapshot: not found")

// Snapshot is one cached page. The JSON layout is what editing tools
// read and write on disk, so field names stay wire-stable.
type Snapshot struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	Version int64     `json:"version"`
	SpaceID string    `json:"spaceId"`
	Body    *adf.Node `json:"adf"`
}

// Entry describes a stored snapshot without its body.
type Entry struct {
	ID      string
	Title   string
	Version int64
	ModTime time.Time
	Size    int64
}

// Store is the snapshot persistence contract shared by the disk, memory,
// and S3 backends.
type Store interface {
	// Read loads the snapshot for a page, or ErrNotFound.
	Read(ctx context.Context, id string) (*Snapshot, error)
	// Write persists the snapshot and returns its location, the path or
	// URI reported back to the caller for hand editing.
	Write(ctx context.Context, snap *Snapshot) (string, error)
	// Delete removes the snapshot for a page, or ErrNotFound.
	Delete(ctx context.Context, id string) error
	// List enumerates stored snapshots sorted by page ID.
	List(ctx context.Context) ([]Entry, error)
	// Clear removes every snapshot and reports how many were removed.
	Clear(ctx context.Context) (int, error)
	// Location reports where the snapshot for a page lives, whether or
	// not one has been written yet.
	Location(id string) string
	Close() error
}

// encode renders the snapshot in the stable on-disk form: two-space
// indented JSON with a trailing newline, friendly to hand edits and
// line-oriented diffs.
func (s *Snapshot) encode() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode page %s: %w", s.ID, err)
	}
	return append(data, '\n'), nil
}

func decodeSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("snapshot: decode: %w", err)
	}
	return &snap, nil
}

func validateID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("snapshot: page id required")
	}
	if strings.ContainsAny(id, "/\\") || strings.Contains(id, "..") {
		return fmt.Errorf("snapshot: invalid page id %q", id)
	}
	return nil
}
