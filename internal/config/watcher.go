package config

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"

	"github.com/srediag/telemetry-shm/pkg/layout"
)

// SettingsWatcher reloads a settings file whenever it is written or
// replaced and hands the result to a callback.
type SettingsWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func(layout.Settings)
	log      hclog.Logger

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSettingsWatcher watches the directory holding path, so editors that
// save by rename are seen too.
func NewSettingsWatcher(path string, onChange func(layout.Settings), log hclog.Logger) (*SettingsWatcher, error) {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		return nil, err
	}
	return &SettingsWatcher{
		path:     filepath.Clean(path),
		watcher:  w,
		onChange: onChange,
		log:      log,
		done:     make(chan struct{}),
	}, nil
}

// Start runs the event loop in a goroutine.
func (w *SettingsWatcher) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop()
	}()
}

func (w *SettingsWatcher) loop() {
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			s, err := LoadSettings(w.path)
			if err != nil {
				// Partially written files fail to parse; the next write event
				// retries.
				w.log.Warn("settings reload failed", "path", w.path, "error", err)
				continue
			}
			w.log.Debug("settings reloaded", "path", w.path)
			w.onChange(s)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("settings watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

// Stop ends the loop and releases the watcher. It is idempotent.
func (w *SettingsWatcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
		w.wg.Wait()
	})
	return err
}
