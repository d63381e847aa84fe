package preferences

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 200 * time.Millisecond

// Watcher reloads the preferences file when it changes on disk and applies
// the result. Bursts of events are debounced into one reload.
type Watcher struct {
	watcher  *fsnotify.Watcher
	store    *Store
	target   Applier
	logger   *zap.SugaredLogger
	debounce time.Duration

	timer   *time.Timer
	timerMu sync.Mutex

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewWatcher watches the directory holding the store's file. Saves replace
// the file by rename, so the file itself cannot be watched.
func NewWatcher(store *Store, target Applier, logger *zap.SugaredLogger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	dir := filepath.Dir(store.Path())
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	return &Watcher{
		watcher:  w,
		store:    store,
		target:   target,
		logger:   logger,
		debounce: defaultDebounce,
		stopCh:   make(chan struct{}),
	}, nil
}

// Start launches the event loop goroutine.
func (w *Watcher) Start() {
	go w.eventLoop()
	w.logger.Infow("watching preferences", "path", w.store.Path())
}

// Stop closes the watcher and cancels a pending reload. Safe to call
// multiple times.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.watcher.Close()

		w.timerMu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.timerMu.Unlock()
	})
}

func (w *Watcher) eventLoop() {
	target := filepath.Clean(w.store.Path())
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.resetDebounce()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warnw("preferences watcher error", "error", err)
		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) resetDebounce() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	select {
	case <-w.stopCh:
		return
	default:
	}
	p, err := w.store.Load()
	if err != nil {
		w.logger.Warnw("failed to reload preferences", "error", err)
		return
	}
	if err := Apply(p, w.target, w.store.Floor()); err != nil {
		w.logger.Warnw("ignoring invalid preferences", "error", err)
		return
	}
	w.logger.Infow("preferences reloaded", "repositories", len(p.SelectedRepos), "polling_interval_ms", p.PollingIntervalMS)
}
