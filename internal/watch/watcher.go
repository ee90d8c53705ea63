package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mabhi256/dumpdiag/internal/logging"
	"github.com/mabhi256/dumpdiag/utils"
)

const DefaultDebounce = 300 * time.Millisecond

// Handler is invoked once per settled file. Calls are serialized.
type Handler func(ctx context.Context, path string)

type Config struct {
	// Dir is the directory to watch (not recursive)
	Dir string

	// Extensions limits which files trigger the handler, e.g. ".json"
	Extensions []string

	// Debounce coalesces bursts of write events for the same file
	Debounce time.Duration

	// ScanExisting runs the handler over matching files already present at start
	ScanExisting bool
}

// Watcher reports snapshot files created or rewritten in a directory.
type Watcher struct {
	config  Config
	handler Handler
	logger  *logging.Logger
	ready   chan struct{}

	mu      sync.Mutex
	timers  map[string]*time.Timer
	pending sync.WaitGroup

	// runMu serializes handler calls
	runMu sync.Mutex
}

func New(config Config, handler Handler) (*Watcher, error) {
	if config.Dir == "" {
		return nil, fmt.Errorf("directory cannot be empty")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler cannot be nil")
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}
	if len(config.Extensions) == 0 {
		config.Extensions = utils.SnapshotExtensions
	}

	info, err := os.Stat(config.Dir)
	if err != nil {
		return nil, fmt.Errorf("cannot watch %s: %w", config.Dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", config.Dir)
	}

	return &Watcher{
		config:  config,
		handler: handler,
		logger:  logging.GetLogger("watch").WithField("dir", config.Dir),
		ready:   make(chan struct{}),
		timers:  make(map[string]*time.Timer),
	}, nil
}

// Ready is closed once the directory is being watched.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run blocks until ctx is cancelled or the underlying watcher fails. Pending
// debounced calls are dropped on shutdown; a call already running is awaited.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.config.Dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.config.Dir, err)
	}
	close(w.ready)

	w.logger.Info("Watching for snapshots (debounce: %s)", w.config.Debounce)

	if w.config.ScanExisting {
		w.scanExisting(ctx)
	}

	defer w.shutdown()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				w.schedule(ctx, event.Name)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Warn("watcher error: %v", err)
		}
	}
}

func (w *Watcher) matches(path string) bool {
	if !utils.HasExtension(path, w.config.Extensions) {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func (w *Watcher) scanExisting(ctx context.Context) {
	entries, err := os.ReadDir(w.config.Dir)
	if err != nil {
		w.logger.Warn("failed to list %s: %v", w.config.Dir, err)
		return
	}

	var paths []string
	for _, e := range entries {
		path := filepath.Join(w.config.Dir, e.Name())
		if w.matches(path) {
			paths = append(paths, path)
		}
	}
	slices.Sort(paths)

	for _, path := range paths {
		if ctx.Err() != nil {
			return
		}
		w.invoke(ctx, path)
	}
}

// schedule (re)arms the debounce timer for path
func (w *Watcher) schedule(ctx context.Context, path string) {
	if !utils.HasExtension(path, w.config.Extensions) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		if t.Stop() {
			w.pending.Done()
		}
	}

	// t is assigned while mu is held, and the callback takes mu before reading it
	var t *time.Timer
	w.pending.Add(1)
	t = time.AfterFunc(w.config.Debounce, func() {
		defer w.pending.Done()

		w.mu.Lock()
		if w.timers[path] == t {
			delete(w.timers, path)
		}
		w.mu.Unlock()

		if ctx.Err() != nil || !w.matches(path) {
			return
		}
		w.invoke(ctx, path)
	})
	w.timers[path] = t
}

func (w *Watcher) invoke(ctx context.Context, path string) {
	w.runMu.Lock()
	defer w.runMu.Unlock()

	w.logger.Debug("processing %s", path)
	w.handler(ctx, path)
}

func (w *Watcher) shutdown() {
	w.mu.Lock()
	for path, t := range w.timers {
		if t.Stop() {
			w.pending.Done()
		}
		delete(w.timers, path)
	}
	w.mu.Unlock()

	w.pending.Wait()
}
