// Package watcher reports changes to the documents directory so the index
// can be rebuilt.
package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Event is a batch of changed document paths, emitted once the directory
// has been quiet for the debounce interval.
type Event struct {
	Paths []string
}

// FSNotifyWatcher watches one directory non-recursively.
type FSNotifyWatcher struct {
	watcher    *fsnotify.Watcher
	extensions []string
	debounce   time.Duration
	log        *slog.Logger
}

func NewFSNotifyWatcher(extensions []string, debounce time.Duration, log *slog.Logger) (*FSNotifyWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	exts := make([]string, len(extensions))
	for i, e := range extensions {
		exts[i] = strings.ToLower(e)
	}
	return &FSNotifyWatcher{watcher: w, extensions: exts, debounce: debounce, log: log}, nil
}

// Watch starts monitoring dir. The channel is closed when ctx is done or the
// watcher is closed.
func (w *FSNotifyWatcher) Watch(ctx context.Context, dir string) (<-chan Event, error) {
	if err := w.watcher.Add(dir); err != nil {
		return nil, err
	}
	events := make(chan Event, 1)

	go func() {
		defer close(events)
		pending := map[string]struct{}{}
		timer := time.NewTimer(w.debounce)
		timer.Stop()
		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if !w.isWatchedExtension(event.Name) {
					continue
				}
				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
					!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
					continue
				}
				w.log.Debug("document changed", "path", event.Name, "op", event.Op.String())
				pending[event.Name] = struct{}{}
				timer.Reset(w.debounce)
			case <-timer.C:
				if len(pending) == 0 {
					continue
				}
				batch := Event{Paths: make([]string, 0, len(pending))}
				for p := range pending {
					batch.Paths = append(batch.Paths, p)
				}
				sort.Strings(batch.Paths)
				pending = map[string]struct{}{}
				select {
				case events <- batch:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.log.Warn("watch error", "err", err)
			}
		}
	}()

	return events, nil
}

// Close stops the watcher.
func (w *FSNotifyWatcher) Close() error {
	return w.watcher.Close()
}

func (w *FSNotifyWatcher) isWatchedExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range w.extensions {
		if ext == e {
			return true
		}
	}
	return false
}
