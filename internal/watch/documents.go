package watch

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/pagecraft-dev/pagecraft/internal/appdom"
	"github.com/pagecraft-dev/pagecraft/internal/compiler/cache"
	"github.com/pagecraft-dev/pagecraft/internal/store"
)

// Change is a document file that changed on disk.
type Change struct {
	Ref      store.AppVersion
	Path     string
	Document *appdom.Document
	// Err is set when the file could not be loaded; Document is nil then.
	Err error
}

// DocumentWatcher reports changed documents of a file store. Saves that
// leave a file's content unchanged are not reported again.
type DocumentWatcher struct {
	files  *Watcher
	store  *store.FileStore
	handle func(Change)
	logger *zap.Logger

	hasher cache.Hasher
	// seen holds the content hash of the last document loaded per path;
	// only the watch goroutine touches it
	seen map[string]string
}

// NewDocumentWatcher calls handle for every document of s saved while it
// runs. opts tune the underlying Watcher.
func NewDocumentWatcher(s *store.FileStore, handle func(Change), logger *zap.Logger, opts ...Option) (*DocumentWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &DocumentWatcher{store: s, handle: handle, logger: logger}
	opts = append([]Option{WithExtension(".json"), WithLogger(logger)}, opts...)
	fw, err := NewWatcher(s.Dir(), w.process, opts...)
	if err != nil {
		return nil, err
	}
	w.files = fw
	return w, nil
}

// Start creates the document directory if needed and begins watching.
func (w *DocumentWatcher) Start() error {
	if err := os.MkdirAll(w.store.Dir(), 0o755); err != nil {
		return fmt.Errorf("create document directory: %w", err)
	}
	return w.files.Start()
}

// Stop stops watching.
func (w *DocumentWatcher) Stop() error {
	return w.files.Stop()
}

func (w *DocumentWatcher) process(paths []string) error {
	if w.seen == nil {
		w.seen = make(map[string]string)
	}
	var errs []error
	for _, path := range paths {
		ref, ok := store.ParsePath(path)
		if !ok {
			w.logger.Debug("ignoring file", zap.String("file", path))
			continue
		}
		sum, hashErr := w.hasher.HashFile(path)
		if hashErr == nil && w.seen[path] == sum {
			w.logger.Debug("document unchanged", zap.String("file", path))
			continue
		}
		doc, err := w.store.Load(context.Background(), ref.AppID, ref.Version)
		switch {
		case err != nil:
			errs = append(errs, err)
			delete(w.seen, path)
		case hashErr == nil:
			w.seen[path] = sum
		}
		w.handle(Change{Ref: ref, Path: path, Document: doc, Err: err})
	}
	return errors.Join(errs...)
}
