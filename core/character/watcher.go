package character

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
)

// DefaultDebounce is the default quiet interval before a directory's
// manifest is rebuilt after external edits.
const DefaultDebounce = 200 * time.Millisecond

var (
	// ErrNoDirsConfigured indicates no character directories were given.
	ErrNoDirsConfigured = errors.New("no character directories configured")

	// ErrDirNotExist indicates a watched directory does not exist.
	ErrDirNotExist = errors.New("character directory does not exist")

	// ErrInvalidPattern indicates an exclude pattern could not be compiled.
	ErrInvalidPattern = errors.New("invalid exclude pattern")
)

// WatchConfig configures a manifest watcher.
type WatchConfig struct {
	// Dirs are the character directories to watch. Not recursive; each
	// character directory is flat.
	Dirs []string

	// ExcludePatterns are glob patterns for filenames to ignore, in
	// addition to the manifest and temp files which are always ignored.
	ExcludePatterns []string

	// Debounce is the quiet interval before rebuilding. Zero uses the
	// default.
	Debounce time.Duration
}

// Watcher rebuilds a directory's cast manifest when record files change
// underneath it, narrowing the staleness window for long-lived processes.
// The self-healing List remains the correctness mechanism; a watcher is
// never required for the index to converge.
type Watcher struct {
	store    *Store
	config   WatchConfig
	logger   *slog.Logger
	watcher  *fsnotify.Watcher
	excludes []glob.Glob

	mu       sync.Mutex
	pending  map[string]*time.Timer
	stopOnce sync.Once
	done     chan struct{}
}

// NewWatcher creates a manifest watcher backed by the given store.
func NewWatcher(store *Store, config WatchConfig, logger *slog.Logger) (*Watcher, error) {
	if len(config.Dirs) == 0 {
		return nil, ErrNoDirsConfigured
	}
	for _, dir := range config.Dirs {
		info, err := os.Stat(dir)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, ErrDirNotExist
			}
			return nil, err
		}
		if !info.IsDir() {
			return nil, ErrDirNotExist
		}
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}

	excludes, err := compileExcludes(config.ExcludePatterns)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		store:    store,
		config:   config,
		logger:   logger,
		watcher:  fsw,
		excludes: excludes,
		pending:  make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}, nil
}

func compileExcludes(patterns []string) ([]glob.Glob, error) {
	excludes := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, errors.Join(ErrInvalidPattern, err)
		}
		excludes = append(excludes, g)
	}
	return excludes, nil
}

// Start begins watching. It returns once the directories are registered;
// rebuilds run on a background goroutine until the context is cancelled
// or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	for _, dir := range w.config.Dirs {
		if err := w.watcher.Add(dir); err != nil {
			return err
		}
	}

	go w.loop(ctx)
	return nil
}

// Stop halts the watcher and cancels pending rebuilds.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()

		w.mu.Lock()
		defer w.mu.Unlock()
		for dir, timer := range w.pending {
			timer.Stop()
			delete(w.pending, dir)
		}
	})
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("manifest watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if !recordFile(name) || w.isExcluded(name) {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	w.scheduleRebuild(filepath.Dir(event.Name))
}

func (w *Watcher) isExcluded(name string) bool {
	for _, g := range w.excludes {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// scheduleRebuild debounces per directory: each new event resets the
// timer, and the rebuild fires after a quiet interval.
func (w *Watcher) scheduleRebuild(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[dir]; ok {
		timer.Reset(w.config.Debounce)
		return
	}

	w.pending[dir] = time.AfterFunc(w.config.Debounce, func() {
		w.mu.Lock()
		delete(w.pending, dir)
		w.mu.Unlock()

		select {
		case <-w.done:
			return
		default:
		}

		if _, err := w.store.List(dir); err != nil {
			w.logger.Warn("manifest rebuild failed", "dir", dir, "error", err)
		}
	})
}
