package vector

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const reloadDebounce = 500 * time.Millisecond

// Reloader watches the store's snapshot file and reloads it when an external
// indexer atomically replaces it, so long-running servers pick up corpus
// rebuilds without a restart. Reloads are debounced; reloading after the
// store's own writes is harmless since Load is idempotent.
type Reloader struct {
	store    *Store
	logger   *zap.Logger
	debounce time.Duration

	mu       sync.Mutex
	timer    *time.Timer
	stopOnce sync.Once
	done     chan struct{}
}

// NewReloader creates a reloader for store. The store must have a snapshot path.
func NewReloader(store *Store, logger *zap.Logger) *Reloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reloader{
		store:    store,
		logger:   logger,
		debounce: reloadDebounce,
		done:     make(chan struct{}),
	}
}

// Start watches the snapshot directory until ctx is cancelled or Stop is called.
func (r *Reloader) Start(ctx context.Context) error {
	if r.store.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(r.store.path)); err != nil {
		_ = watcher.Close()
		return err
	}
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != r.store.path {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				r.scheduleReload()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				r.logger.Warn("snapshot watch error", zap.Error(err))
			}
		}
	}()
	return nil
}

// Stop stops the reloader.
func (r *Reloader) Stop() {
	r.stopOnce.Do(func() { close(r.done) })
}

func (r *Reloader) scheduleReload() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.debounce, func() {
		if err := r.store.Load(); err != nil {
			r.logger.Warn("snapshot reload failed", zap.Error(err))
		}
	})
}
