package snapshot

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory keeps snapshots in process memory. It backs the mem:// cache
// DSN and most tests.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	data    []byte
	modTime time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry)}
}

// Location returns a mem:// URI for a page snapshot.
func (m *Memory) Location(id string) string {
	return "mem://pages/" + id + ".json"
}

// Read loads the snapshot for a page.
func (m *Memory) Read(_ context.Context, id string) (*Snapshot, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	m.mu.RLock()
	entry, ok := m.entries[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return decodeSnapshot(entry.data)
}

// Write stores the snapshot for a page.
func (m *Memory) Write(_ context.Context, snap *Snapshot) (string, error) {
	if err := validateID(snap.ID); err != nil {
		return "", err
	}
	data, err := snap.encode()
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.entries[snap.ID] = memoryEntry{data: data, modTime: time.Now().UTC()}
	m.mu.Unlock()
	return m.Location(snap.ID), nil
}

// Delete removes the snapshot for a page.
func (m *Memory) Delete(_ context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return ErrNotFound
	}
	delete(m.entries, id)
	return nil
}

// List enumerates stored snapshots sorted by page ID.
func (m *Memory) List(_ context.Context) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]Entry, 0, len(m.entries))
	for id, entry := range m.entries {
		snap, err := decodeSnapshot(entry.data)
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			ID:      id,
			Title:   snap.Title,
			Version: snap.Version,
			ModTime: entry.modTime,
			Size:    int64(len(entry.data)),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

// Clear removes every snapshot and reports the count.
func (m *Memory) Clear(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := len(m.entries)
	m.entries = make(map[string]memoryEntry)
	return removed, nil
}

// Close satisfies Store and is a no-op for the memory backend.
func (m *Memory) Close() error { return nil }
