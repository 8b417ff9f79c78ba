package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports manifest changes in a cache directory.
type Watcher struct {
	dir string
	w   *fsnotify.Watcher
}

// NewWatcher starts watching dir, creating it when missing.
func NewWatcher(dir string) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: watch: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("cache: watch: %w", err)
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("cache: watch %s: %w", dir, err)
	}
	return &Watcher{dir: dir, w: w}, nil
}

// Run calls fn for every create, write, rename or removal of the manifest
// until ctx is done or the watcher fails. It closes the watcher on return.
func (w *Watcher) Run(ctx context.Context, fn func(fsnotify.Event)) error {
	defer w.w.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != ManifestFile {
				continue
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Remove) {
				fn(ev)
			}
		case err, ok := <-w.w.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("cache: watch %s: %w", w.dir, err)
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error { return w.w.Close() }
