package main

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	lmbridge "github.com/Paranoid-AF/lmbridge"
)

const defaultDebounce = 200 * time.Millisecond

// ConfigWatcher reloads the store when its file changes on disk.
type ConfigWatcher struct {
	store    *lmbridge.Store
	watcher  *fsnotify.Watcher
	debounce time.Duration

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewConfigWatcher watches the directory holding the store's file. Editors
// often replace the file instead of writing it, so the directory is
// watched rather than the file itself.
func NewConfigWatcher(store *lmbridge.Store, debounce time.Duration) (*ConfigWatcher, error) {
	path := store.Path()
	if path == "" {
		return nil, errors.New("config store has no backing file")
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}

	cw := &ConfigWatcher{
		store:    store,
		watcher:  w,
		debounce: debounce,
		done:     make(chan struct{}),
	}
	cw.wg.Add(1)
	go cw.run(filepath.Clean(path))
	return cw, nil
}

// Close stops watching.
func (cw *ConfigWatcher) Close() {
	cw.closeOnce.Do(func() {
		close(cw.done)
		cw.wg.Wait()
		cw.watcher.Close()
	})
}

func (cw *ConfigWatcher) run(path string) {
	defer cw.wg.Done()

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-cw.done:
			return

		case ev, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(cw.debounce)
			} else {
				timer.Reset(cw.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			cw.reload()

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher error", "error", err)
		}
	}
}

func (cw *ConfigWatcher) reload() {
	before := cw.store.BaseURL()
	if err := cw.store.Reload(); err != nil {
		slog.Warn("config reload failed, keeping previous config", "error", err)
		return
	}
	cfg := cw.store.Config()
	if env := os.Getenv("LMBRIDGE_BASE_URL"); env != "" && before == env && cfg.Endpoint.BaseURL != env {
		slog.Warn("config file base_url overrides $LMBRIDGE_BASE_URL", "env", env, "base_url", cfg.Endpoint.BaseURL)
	}
	for _, w := range lmbridge.ValidateConfig(&cfg) {
		slog.Warn("config", "warning", w)
	}
	slog.Info("config reloaded", "base_url", cfg.Endpoint.BaseURL)
}
