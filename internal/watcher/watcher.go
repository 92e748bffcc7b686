// Package watcher reports when a Calibre library database under the library root changes.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors library databases with fsnotify and debounces the bursts of writes a
// single Calibre transaction produces into one event per file.
type Watcher struct {
	logger *slog.Logger
	fs     *fsnotify.Watcher
	opts   Options

	mu      sync.Mutex
	roots   []string
	pending map[string]*pendingEvent
	known   map[string]struct{}
	stopped bool

	events   chan Event
	errors   chan error
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// pendingEvent tracks a file that may still be changing.
type pendingEvent struct {
	modTime time.Time
	timer   *time.Timer
	size    int64
}

// New creates a watcher. Call Watch for each root, then Start.
func New(logger *slog.Logger, opts Options) (*Watcher, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	opts.setDefaults()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		logger:  logger,
		fs:      fsw,
		opts:    opts,
		pending: make(map[string]*pendingEvent),
		known:   make(map[string]struct{}),
		events:  make(chan Event, 16),
		errors:  make(chan error, 4),
		done:    make(chan struct{}),
	}, nil
}

// Watch adds root and every directory up to MaxDepth below it.
func (w *Watcher) Watch(root string) error {
	root = filepath.Clean(root)

	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("failed to stat path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", root)
	}

	w.mu.Lock()
	w.roots = append(w.roots, root)
	w.mu.Unlock()

	return w.watchTree(root, root)
}

// watchTree adds dir and its subdirectories that are still within MaxDepth of root.
func (w *Watcher) watchTree(root, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("failed to access path", "path", p, "error", err)
			return nil
		}

		if w.opts.shouldIgnore(relative(root, p)) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if !d.IsDir() {
			if w.opts.isTarget(p) {
				w.mu.Lock()
				w.known[p] = struct{}{}
				w.mu.Unlock()
			}
			return nil
		}

		if err := w.fs.Add(p); err != nil {
			w.logger.Error("failed to add watch", "path", p, "error", err)
			return nil
		}
		w.logger.Debug("added watch", "path", p)

		if depth(root, p) >= w.opts.MaxDepth {
			return fs.SkipDir
		}
		return nil
	})
}

// Start processes filesystem events until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.wg.Add(1)
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.done:
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			select {
			case w.errors <- err:
			default:
				w.logger.Warn("dropping watcher error", "error", err)
			}
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	path := event.Name

	if event.Op&fsnotify.Create != 0 {
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			if root, ok := w.rootOf(path); ok && depth(root, path) <= w.opts.MaxDepth {
				if !w.opts.shouldIgnore(relative(root, path)) {
					if err := w.watchTree(root, path); err != nil {
						w.logger.Warn("failed to watch new directory", "path", path, "error", err)
					}
					w.announceExisting(path)
				}
			}
			return
		}
	}

	if !w.opts.isTarget(path) {
		return
	}

	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		w.cancelPending(path)
		w.mu.Lock()
		_, wasKnown := w.known[path]
		delete(w.known, path)
		w.mu.Unlock()
		if wasKnown {
			w.emit(Event{Type: EventRemoved, Path: path, Library: filepath.Dir(path)})
		}
		return
	}

	if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
		w.startSettling(path)
	}
}

// announceExisting settles database files already present in a freshly created directory,
// which happens when a library is moved into place rather than built in place.
func (w *Watcher) announceExisting(dir string) {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() && w.opts.isTarget(p) {
			w.mu.Lock()
			delete(w.known, p)
			w.mu.Unlock()
			w.startSettling(p)
		}
		return nil
	})
}

// startSettling (re)arms the settle timer for path.
func (w *Watcher) startSettling(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	if pending, exists := w.pending[path]; exists {
		pending.timer.Stop()
	}

	info, err := os.Stat(path)
	if err != nil {
		delete(w.pending, path)
		return
	}

	pending := &pendingEvent{size: info.Size(), modTime: info.ModTime()}
	pending.timer = time.AfterFunc(w.opts.SettleDelay, func() {
		w.checkSettled(path)
	})
	w.pending[path] = pending
}

// checkSettled emits an event once size and mtime stop moving.
func (w *Watcher) checkSettled(path string) {
	if event, ok := w.settle(path); ok {
		w.emit(event)
	}
}

// settle updates the pending state for path and returns the event to emit, if any.
// It must not send: emit runs after w.mu is released.
func (w *Watcher) settle(path string) (Event, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return Event{}, false
	}
	pending, exists := w.pending[path]
	if !exists {
		return Event{}, false
	}

	info, err := os.Stat(path)
	if err != nil {
		delete(w.pending, path)
		if _, wasKnown := w.known[path]; wasKnown {
			delete(w.known, path)
			return Event{Type: EventRemoved, Path: path, Library: filepath.Dir(path)}, true
		}
		return Event{}, false
	}

	if info.Size() != pending.size || !info.ModTime().Equal(pending.modTime) {
		pending.size = info.Size()
		pending.modTime = info.ModTime()
		pending.timer = time.AfterFunc(w.opts.SettleDelay, func() {
			w.checkSettled(path)
		})
		return Event{}, false
	}

	delete(w.pending, path)

	eventType := EventAdded
	if _, wasKnown := w.known[path]; wasKnown {
		eventType = EventModified
	}
	w.known[path] = struct{}{}

	return Event{
		Type:    eventType,
		Path:    path,
		Library: filepath.Dir(path),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, true
}

func (w *Watcher) cancelPending(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if pending, exists := w.pending[path]; exists {
		pending.timer.Stop()
		delete(w.pending, path)
	}
}

// emit sends an event unless the watcher is shutting down.
func (w *Watcher) emit(event Event) {
	w.logger.Debug("library change", "type", event.Type.String(), "path", event.Path)
	select {
	case w.events <- event:
	case <-w.done:
	}
}

func (w *Watcher) rootOf(path string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, root := range w.roots {
		rel, err := filepath.Rel(root, path)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return root, true
		}
	}
	return "", false
}

// Events returns the channel of settled library changes. The channel is never closed;
// consumers select on it alongside their own context.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel of fsnotify errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Stop stops the watcher and releases resources. It is safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)

		w.mu.Lock()
		w.stopped = true
		for _, pending := range w.pending {
			pending.timer.Stop()
		}
		clear(w.pending)
		w.mu.Unlock()

		err = w.fs.Close()
		w.wg.Wait()
	})
	return err
}

func relative(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return rel
}

func depth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(filepath.ToSlash(rel), "/") + 1
}
