// Package watcher notifies the daemon's event bus when one of the
// config-store's JSON files changes on disk outside of a JSON-RPC
// request — a hand-edited window-rules.json, or app-classes.json
// rewritten by an external generator.
package watcher

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vpittamp/i3pm-daemon/internal/eventbus"
	"github.com/vpittamp/i3pm-daemon/internal/log"
)

// relevantFiles is the config-store's set of top-level JSON files whose
// changes are worth a config_reload notification. Per-project files
// under ConfigDir/projects/ are deliberately not watched — they're only
// ever written by this daemon's own project.create/edit/delete RPC
// handlers, which already reload in-process without needing fsnotify.
var relevantFiles = map[string]bool{
	"active-project.json":   true,
	"app-classes.json":      true,
	"window-rules.json":     true,
	"discovery-config.json": true,
	"repos.json":            true,
}

// Watcher monitors a config-store directory for changes and publishes one
// debounced eventbus.KindConfigReload event per settled batch of relevant
// file changes, naming the files that changed.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	configDir string
	debounce  time.Duration
	bus       *eventbus.Bus
	done      chan struct{}
}

// Config holds watcher configuration options.
type Config struct {
	ConfigDir   string
	DebounceDur time.Duration
	Bus         *eventbus.Bus
}

// DefaultConfig returns sensible defaults for the watcher.
func DefaultConfig(configDir string, bus *eventbus.Bus) Config {
	return Config{
		ConfigDir:   configDir,
		DebounceDur: 200 * time.Millisecond,
		Bus:         bus,
	}
}

// New creates a new config-directory watcher.
func New(cfg Config) (*Watcher, error) {
	log.Debug(log.CatWatcher, "creating config watcher", "configDir", cfg.ConfigDir, "debounce", cfg.DebounceDur)
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		log.ErrorErr(log.CatWatcher, "failed to create fsnotify watcher", err)
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	return &Watcher{
		fsWatcher: fsw,
		configDir: cfg.ConfigDir,
		debounce:  cfg.DebounceDur,
		bus:       cfg.Bus,
		done:      make(chan struct{}),
	}, nil
}

// Start begins watching the config directory and publishing
// KindConfigReload events to the bus for every relevant file change.
func (w *Watcher) Start() error {
	if err := w.fsWatcher.Add(w.configDir); err != nil {
		log.ErrorErr(log.CatWatcher, "failed to watch config directory", err, "dir", w.configDir)
		return fmt.Errorf("watching directory %s: %w", w.configDir, err)
	}

	log.Info(log.CatWatcher, "started watching config directory", "dir", w.configDir)
	log.SafeGo("config-watcher", w.loop)
	return nil
}

// Stop terminates the watcher and releases resources.
func (w *Watcher) Stop() error {
	log.Debug(log.CatWatcher, "stopping config watcher")
	close(w.done)
	return w.fsWatcher.Close()
}

// loop processes file system events with debouncing, publishing one
// KindConfigReload event per settled batch of changes naming the files
// that changed.
func (w *Watcher) loop() {
	var (
		timer   *time.Timer
		pending map[string]bool
	)

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !w.isRelevantEvent(event) {
				continue
			}

			log.Debug(log.CatWatcher, "config file event received", "file", event.Name, "op", event.Op.String())
			if pending == nil {
				pending = map[string]bool{}
			}
			pending[filepath.Base(event.Name)] = true

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case <-timerChan(timer):
			if len(pending) > 0 {
				files := make([]string, 0, len(pending))
				for f := range pending {
					files = append(files, f)
				}
				log.Debug(log.CatWatcher, "debounce complete, publishing config reload", "files", files)
				if w.bus != nil {
					w.bus.Publish(eventbus.DaemonEvent{
						Kind:   eventbus.KindConfigReload,
						Detail: map[string]any{"files": files},
					})
				}
				pending = nil
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.ErrorErr(log.CatWatcher, "config watcher error", err)

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// timerChan returns t's channel, or nil (which blocks forever in a
// select) when t hasn't been started yet.
func timerChan(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

// isRelevantEvent reports whether event names one of the config-store's
// watched JSON files and is a write or create (a rewrite-via-rename, as
// configstore's atomic writer performs, shows up as a create at the
// final path).
func (w *Watcher) isRelevantEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return false
	}
	return relevantFiles[filepath.Base(event.Name)]
}
