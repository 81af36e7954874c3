// Package watch reacts to document files changing on disk.
package watch

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultQuietPeriod is how long a directory must stay unchanged before a
// batch is reported
const DefaultQuietPeriod = 100 * time.Millisecond

// Option configures a Watcher
type Option func(*Watcher)

// WithQuietPeriod replaces DefaultQuietPeriod
func WithQuietPeriod(d time.Duration) Option {
	return func(w *Watcher) { w.quiet = d }
}

// WithFilter reports only files for which keep returns true
func WithFilter(keep func(path string) bool) Option {
	return func(w *Watcher) { w.keep = keep }
}

// WithExtension reports only files with extension ext, e.g. ".json"
func WithExtension(ext string) Option {
	return WithFilter(func(path string) bool { return filepath.Ext(path) == ext })
}

func WithLogger(logger *zap.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// Watcher reports written or created files of one directory in sorted,
// de-duplicated batches. Batches are handled one at a time on the watch
// goroutine.
type Watcher struct {
	fs     *fsnotify.Watcher
	dir    string
	quiet  time.Duration
	keep   func(string) bool
	handle func([]string) error
	logger *zap.Logger

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWatcher creates a watcher for dir; nothing is reported before Start
func NewWatcher(dir string, handle func([]string) error, opts ...Option) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w := &Watcher{
		fs:     fs,
		dir:    dir,
		quiet:  DefaultQuietPeriod,
		keep:   func(string) bool { return true },
		handle: handle,
		logger: zap.NewNop(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start begins watching; dir must exist
func (w *Watcher) Start() error {
	if err := w.fs.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", w.dir, err)
	}
	w.logger.Info("watching directory", zap.String("dir", w.dir))

	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop waits for a running batch and drops pending changes. Later calls
// are no-ops.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
		err = w.fs.Close()
	})
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.quiet)
	timer.Stop()

	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			// Atomic saves arrive as a create of the final name
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !w.relevant(event.Name) {
				continue
			}
			w.logger.Debug("file changed", zap.String("file", event.Name))
			pending[event.Name] = struct{}{}
			timer.Reset(w.quiet)

		case <-timer.C:
			batch := make([]string, 0, len(pending))
			for name := range pending {
				batch = append(batch, name)
			}
			clear(pending)
			sort.Strings(batch)
			if err := w.handle(batch); err != nil {
				w.logger.Warn("error handling file changes", zap.Error(err))
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))

		case <-w.done:
			timer.Stop()
			return
		}
	}
}

// relevant drops hidden files, editor backups and filtered names
func (w *Watcher) relevant(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") || strings.HasSuffix(base, ".swp") {
		return false
	}
	return w.keep(path)
}
