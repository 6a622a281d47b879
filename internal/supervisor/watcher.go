package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ChangeCallback is called after report files changed
type ChangeCallback func(changed []string)

// Watcher monitors the agent output directory and the context file and
// reports batches of changes after a quiet period.
type Watcher struct {
	watcher  *fsnotify.Watcher
	callback ChangeCallback
	debounce time.Duration
	logger   *zap.Logger

	// base names that trigger a callback, per watched directory
	interesting map[string]map[string]struct{}

	pending map[string]struct{}
	timer   *time.Timer
	mu      sync.Mutex
}

// NewWatcher watches the supervisor inputs of opts
func NewWatcher(opts Options, callback ChangeCallback, logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:     fw,
		callback:    callback,
		debounce:    500 * time.Millisecond,
		logger:      logger.Named("watcher"),
		interesting: make(map[string]map[string]struct{}),
		pending:     make(map[string]struct{}),
	}

	for _, name := range ReportFiles {
		w.track(opts.OutputDir, name)
	}
	if opts.ContextPath != "" {
		w.track(filepath.Dir(opts.ContextPath), filepath.Base(opts.ContextPath))
	}

	// watch directories, not files, so atomic renames are seen
	for dir := range w.interesting {
		if _, err := os.Stat(dir); err != nil {
			w.logger.Warn("not watching missing directory", zap.String("dir", dir))
			continue
		}
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) track(dir, name string) {
	dir = filepath.Clean(dir)
	if w.interesting[dir] == nil {
		w.interesting[dir] = make(map[string]struct{})
	}
	w.interesting[dir][name] = struct{}{}
}

// Run processes events until ctx is done, then closes the watcher
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
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
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
		return
	}

	dir, name := filepath.Split(event.Name)
	names, ok := w.interesting[filepath.Clean(dir)]
	if !ok {
		return
	}
	if _, ok := names[name]; !ok {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[event.Name] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	pending := w.pending
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	if w.callback == nil || len(pending) == 0 {
		return
	}
	files := make([]string, 0, len(pending))
	for f := range pending {
		files = append(files, f)
	}
	w.callback(files)
}

// SetDebounce sets the quiet period before a callback
func (w *Watcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounce = d
}
