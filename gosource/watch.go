package gosource

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/jhump/validgen/processor"
)

// DefaultDebounce is how long a Watcher waits for edits to settle.
const DefaultDebounce = 100 * time.Millisecond

// Watcher is a processor.Feed that reloads packages whenever their Go files
// change. The first call to Next loads immediately.
type Watcher struct {
	loader   *Loader
	patterns []string
	log      *zap.Logger

	fsw       *fsnotify.Watcher
	debouncer *Debouncer
	changes   chan []string
	errs      chan error
	stopChan  chan struct{}
	wg        sync.WaitGroup
	loaded    bool
	watching  map[string]struct{}
}

// NewWatcher creates a feed that loads the packages matching patterns. A
// debounce of zero means DefaultDebounce.
func NewWatcher(loader *Loader, debounce time.Duration, patterns ...string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create file watcher")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w := &Watcher{
		loader:    loader,
		patterns:  patterns,
		log:       loader.cfg.logger().With(zap.String(processor.FieldComponent, "watcher")),
		fsw:       fsw,
		debouncer: NewDebouncer(debounce),
		changes:   make(chan []string, 1),
		errs:      make(chan error, 1),
		stopChan:  make(chan struct{}),
		watching:  map[string]struct{}{},
	}
	w.debouncer.SetCallback(w.changed)
	w.wg.Add(1)
	go w.watch()
	return w, nil
}

// Next implements processor.Feed. It returns io.EOF once the watcher is
// closed.
func (w *Watcher) Next(ctx context.Context) (*processor.Snapshot, error) {
	if !w.loaded {
		w.loaded = true
		return w.load(ctx)
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-w.stopChan:
		return nil, io.EOF
	case err := <-w.errs:
		return nil, err
	case files := <-w.changes:
		if len(files) > 0 {
			w.log.Info("files changed", zap.Strings("files", files))
		}
		return w.load(ctx)
	}
}

func (w *Watcher) load(ctx context.Context) (*processor.Snapshot, error) {
	snap, err := w.loader.Load(ctx, w.patterns...)
	if err != nil {
		return nil, err
	}
	// packages can appear between loads; watching is idempotent
	for _, dir := range Dirs(snap) {
		if _, ok := w.watching[dir]; ok {
			continue
		}
		if err := w.fsw.Add(dir); err != nil {
			return nil, errors.Wrapf(err, "failed to watch directory %s", dir)
		}
		w.watching[dir] = struct{}{}
		w.log.Debug("watching directory", zap.String("dir", dir))
	}
	return snap, nil
}

func (w *Watcher) watch() {
	defer w.wg.Done()
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if shouldIgnore(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.debouncer.Add(event.Name)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.watchError(err)
		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) changed(files []string) {
	select {
	case w.changes <- files:
	default:
		// a reload is already pending and will pick these up
	}
}

// watchError hands an error from the file watcher to Next. Dropped events
// only cost a full reload.
func (w *Watcher) watchError(err error) {
	if errors.Is(err, fsnotify.ErrEventOverflow) {
		w.log.Warn("file events were dropped; reloading", zap.Error(err))
		w.changed(nil)
		return
	}
	select {
	case w.errs <- errors.Wrap(err, "watching files"):
	default:
		w.log.Warn("watch error", zap.Error(err))
	}
}

// shouldIgnore filters out everything but hand-written Go sources; generated
// files would otherwise trigger a reload after every write.
func shouldIgnore(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return true
	}
	return filepath.Ext(base) != ".go" || strings.HasSuffix(base, processor.FileSuffix)
}

// Close stops watching. Pending and future calls to Next return io.EOF.
func (w *Watcher) Close() error {
	select {
	case <-w.stopChan:
		return nil
	default:
		close(w.stopChan)
	}
	w.debouncer.Stop()
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}
