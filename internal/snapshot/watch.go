package snapshot

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"pkt.systems/pslog"
)

// Watcher reports changes to snapshot files in a disk-backed store.
// Pulled pages are meant to be hand-edited between pull and push, so
// edits made outside the gateway are logged and surfaced as events.
type Watcher struct {
	watcher *fsnotify.Watcher
	logger  pslog.Logger
	events  chan string
	stop    chan struct{}
	once    sync.Once
}

// WatchDir registers a filesystem watcher on a snapshot directory.
func WatchDir(dir string, logger pslog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = pslog.NoopLogger()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("snapshot: create watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("snapshot: watch directory %q: %w", dir, err)
	}
	w := &Watcher{
		watcher: fsw,
		logger:  logger,
		events:  make(chan string, 16),
		stop:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Events delivers the page IDs of written snapshots. Events are dropped
// rather than queued without bound when nobody is draining.
func (w *Watcher) Events() <-chan string {
	return w.events
}

// Close stops the watcher. The events channel is closed afterwards.
func (w *Watcher) Close() error {
	w.once.Do(func() {
		close(w.stop)
		w.watcher.Close()
	})
	return nil
}

func (w *Watcher) run() {
	defer close(w.events)
	for {
		select {
		case <-w.stop:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			name := filepath.Base(event.Name)
			if !strings.HasSuffix(name, ".json") {
				continue
			}
			id := strings.TrimSuffix(name, ".json")
			w.logger.Debug("cache.snapshot.modified", "id", id, "path", event.Name)
			w.signal(id)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("cache.snapshot.watch_error", "error", err)
		}
	}
}

func (w *Watcher) signal(id string) {
	select {
	case w.events <- id:
	default:
	}
}
