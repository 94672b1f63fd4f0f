package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"pkt.systems/pslog"
)

// DiskConfig controls the disk-backed snapshot store.
type DiskConfig struct {
	Dir    string
	Logger pslog.Logger
}

// Disk stores one pretty-printed JSON file per page under a directory.
type Disk struct {
	dir    string
	logger pslog.Logger
}

// NewDisk creates the snapshot directory if needed and returns a store
// rooted there.
func NewDisk(cfg DiskConfig) (*Disk, error) {
	dir := strings.TrimSpace(cfg.Dir)
	if dir == "" {
		return nil, errors.New("snapshot: directory required")
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("snapshot: resolve directory %q: %w", cfg.Dir, err)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("snapshot: create directory: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = pslog.NoopLogger()
	}
	return &Disk{dir: dir, logger: logger}, nil
}

// Dir returns the absolute snapshot directory.
func (d *Disk) Dir() string {
	return d.dir
}

// Location returns the absolute file path for a page's snapshot.
func (d *Disk) Location(id string) string {
	return filepath.Join(d.dir, id+".json")
}

// Read loads the snapshot file for a page.
func (d *Disk) Read(_ context.Context, id string) (*Snapshot, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(d.Location(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
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

// Write atomically replaces the snapshot file for a page.
func (d *Disk) Write(_ context.Context, snap *Snapshot) (string, error) {
	if err := validateID(snap.ID); err != nil {
		return "", err
	}
	data, err := snap.encode()
	if err != nil {
		return "", err
	}
	path := d.Location(snap.ID)
	if err := writeFileAtomic(path, data, 0o600); err != nil {
		return "", fmt.Errorf("snapshot: write page %s: %w", snap.ID, err)
	}
	d.logger.Debug("cache.snapshot.written", "id", snap.ID, "path", path, "version", snap.Version)
	return path, nil
}

// Delete removes the snapshot file for a page.
func (d *Disk) Delete(_ context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	if err := os.Remove(d.Location(id)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("snapshot: delete page %s: %w", id, err)
	}
	return nil
}

// List enumerates snapshot files sorted by page ID. Files that fail to
// decode are skipped with a warning so one corrupt snapshot does not
// hide the rest.
func (d *Disk) List(_ context.Context) ([]Entry, error) {
	dirEntries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("snapshot: list directory: %w", err)
	}
	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(de.Name(), ".json")
		path := filepath.Join(d.dir, de.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			d.logger.Warn("cache.snapshot.list_read_failed", "path", path, "error", err)
			continue
		}
		snap, err := decodeSnapshot(raw)
		if err != nil {
			d.logger.Warn("cache.snapshot.list_decode_failed", "path", path, "error", err)
			continue
		}
		entry := Entry{ID: id, Title: snap.Title, Version: snap.Version, Size: int64(len(raw))}
		if info, err := de.Info(); err == nil {
			entry.ModTime = info.ModTime()
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

// Clear removes every snapshot file and reports the count.
func (d *Disk) Clear(_ context.Context) (int, error) {
	dirEntries, err := os.ReadDir(d.dir)
	if err != nil {
		return 0, fmt.Errorf("snapshot: list directory: %w", err)
	}
	removed := 0
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".json") {
			continue
		}
		if err := os.Remove(filepath.Join(d.dir, de.Name())); err != nil {
			return removed, fmt.Errorf("snapshot: clear: %w", err)
		}
		removed++
	}
	return removed, nil
}

// Close satisfies Store and is a no-op for the disk backend.
func (d *Disk) Close() error { return nil }

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
