// Package watch re-runs batch generation when its inputs change.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last event before a change
// is reported.
const DefaultDebounce = 500 * time.Millisecond

// Watcher monitors input files and directories. Bursts of events are
// collapsed into one OnChange call after the debounce period.
type Watcher struct {
	watcher  *fsnotify.Watcher
	files    map[string]*fileState
	dirs     map[string]struct{}
	ignore   map[string]struct{}
	mu       sync.RWMutex
	debounce time.Duration
	running  sync.Mutex

	// OnChange is called with the path that triggered the run.
	OnChange func(path string) error
	// OnError receives watcher errors and OnChange failures.
	OnError func(path string, err error)
	// Filter, when set, limits which entries of a watched directory count.
	Filter func(path string) bool
}

type fileState struct {
	lastModified time.Time
	size         int64
}

// NewWatcher creates a watcher. A non-positive debounce uses DefaultDebounce.
func NewWatcher(debounce time.Duration) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return &Watcher{
		watcher:  fsWatcher,
		files:    make(map[string]*fileState),
		dirs:     make(map[string]struct{}),
		ignore:   make(map[string]struct{}),
		debounce: debounce,
	}, nil
}

// WatchFile reports changes to the content of a single file.
func (w *Watcher) WatchFile(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	stat, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	w.mu.Lock()
	w.files[absPath] = &fileState{
		lastModified: stat.ModTime(),
		size:         stat.Size(),
	}
	w.mu.Unlock()

	// Watch the directory containing the file (fsnotify works better this way)
	if err := w.watcher.Add(filepath.Dir(absPath)); err != nil {
		return fmt.Errorf("failed to watch directory: %w", err)
	}
	return nil
}

// WatchDir reports entries created, removed, renamed or written in dir.
func (w *Watcher) WatchDir(dir string) error {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	w.mu.Lock()
	w.dirs[absPath] = struct{}{}
	w.mu.Unlock()

	if err := w.watcher.Add(absPath); err != nil {
		return fmt.Errorf("failed to watch directory: %w", err)
	}
	return nil
}

// Ignore excludes path, typically a generated file, from triggering runs.
func (w *Watcher) Ignore(path string) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return
	}
	w.mu.Lock()
	w.ignore[absPath] = struct{}{}
	w.mu.Unlock()
}

// Run starts the watch loop. Blocks until context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	var (
		timer   *time.Timer
		timerMu sync.Mutex
	)
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			w.watcher.Close()
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}

			absPath, err := filepath.Abs(event.Name)
			if err != nil || !w.relevant(absPath, event.Op) {
				continue
			}

			// Debounce rapid changes
			timerMu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				w.handleChange(absPath)
			})
			timerMu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.reportError("", err)
		}
	}
}

func (w *Watcher) relevant(path string, op fsnotify.Op) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if _, skip := w.ignore[path]; skip {
		return false
	}

	if _, ok := w.files[path]; ok {
		return op&(fsnotify.Write|fsnotify.Create) != 0
	}

	if _, ok := w.dirs[filepath.Dir(path)]; ok {
		if op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
			return false
		}
		return w.Filter == nil || w.Filter(path)
	}
	return false
}

// handleChange runs OnChange unless a watched file's size and modification
// time are unchanged. Calls never overlap.
func (w *Watcher) handleChange(path string) {
	w.running.Lock()
	defer w.running.Unlock()

	w.mu.Lock()
	state, isFile := w.files[path]
	w.mu.Unlock()

	if isFile {
		stat, err := os.Stat(path)
		if err != nil {
			w.reportError(path, err)
			return
		}

		w.mu.Lock()
		unchanged := stat.ModTime().Equal(state.lastModified) && stat.Size() == state.size
		state.lastModified = stat.ModTime()
		state.size = stat.Size()
		w.mu.Unlock()

		if unchanged {
			return
		}
	}

	if w.OnChange != nil {
		if err := w.OnChange(path); err != nil {
			w.reportError(path, err)
		}
	}
}

func (w *Watcher) reportError(path string, err error) {
	if w.OnError != nil {
		w.OnError(path, err)
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
