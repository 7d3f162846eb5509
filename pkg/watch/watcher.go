// Package watch reports batches of changed source files under a directory.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/projectdiscovery/gologger"
)

const (
	defaultDebounce = 500 * time.Millisecond
	pollInterval    = 100 * time.Millisecond
)

// Options configures a Watcher. Nil filters accept everything.
type Options struct {
	// Debounce is how long a file must stay quiet before it is reported.
	Debounce time.Duration
	// SkipDir reports directory names that are not watched.
	SkipDir func(name string) bool
	// Accept reports whether a changed file is relevant.
	Accept func(path string) bool
}

// Watcher monitors a directory tree. Changes settle for the debounce
// period and are then reported together, so one burst of saves triggers
// one callback.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	root      string
	debounce  time.Duration
	skipDir   func(string) bool
	accept    func(string) bool
	callback  func(paths []string)
	mu        sync.Mutex
	pending   map[string]time.Time
}

// NewWatcher creates a watcher for root. Nothing is watched until Start.
func NewWatcher(root string, opts Options) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	if opts.SkipDir == nil {
		opts.SkipDir = func(string) bool { return false }
	}
	if opts.Accept == nil {
		opts.Accept = func(string) bool { return true }
	}

	return &Watcher{
		fsWatcher: fsWatcher,
		root:      root,
		debounce:  opts.Debounce,
		skipDir:   opts.SkipDir,
		accept:    opts.Accept,
		pending:   make(map[string]time.Time),
	}, nil
}

// SetCallback sets the function called with each settled batch of
// changed paths, sorted. Calls never overlap.
func (w *Watcher) SetCallback(cb func(paths []string)) {
	w.callback = cb
}

// addTree watches dir and every directory below it that is not skipped.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != dir && w.skipDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

// Start watches until ctx is done or the watcher is stopped.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTree(w.root); err != nil {
		return err
	}

	go w.processDebounced(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			gologger.Warning().Msgf("watch error: %v", err)
		}
	}
}

// handleEvent records a change. New directories are watched as they appear;
// removed and renamed files count as changes since their clones disappear.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	path := event.Name
	if event.Has(fsnotify.Create) && isDir(path) {
		if !w.skipDir(filepath.Base(path)) {
			if err := w.addTree(path); err != nil {
				gologger.Warning().Msgf("cannot watch %s: %v", path, err)
			}
		}
		return
	}
	if !w.accept(path) {
		return
	}

	w.mu.Lock()
	w.pending[path] = time.Now()
	w.mu.Unlock()
}

// processDebounced flushes settled changes until ctx is done.
func (w *Watcher) processDebounced(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ready := w.ready(time.Now()); len(ready) > 0 && w.callback != nil {
				w.callback(ready)
			}
		}
	}
}

// ready removes and returns the paths that have been quiet for the
// debounce period at now.
func (w *Watcher) ready(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []string
	for path, last := range w.pending {
		if now.Sub(last) >= w.debounce {
			out = append(out, path)
			delete(w.pending, path)
		}
	}
	sort.Strings(out)
	return out
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.fsWatcher.Close()
}

// WatchedDirs returns the directories being watched.
func (w *Watcher) WatchedDirs() []string {
	return w.fsWatcher.WatchList()
}
