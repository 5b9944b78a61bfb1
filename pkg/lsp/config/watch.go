package config

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/grindlemire/gsxls/pkg/lsp/log"
	"github.com/grindlemire/gsxls/pkg/lsp/mapping"
)

// Watcher serves the current configuration and reloads it when the file
// changes. A reload that fails to parse or validate keeps the previous
// configuration. Readers always see a complete Config.
type Watcher struct {
	path     string
	current  atomic.Pointer[Config]
	onReload func(*Config)

	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher serves initial, which was loaded from path. onReload, if set,
// runs after each successful reload.
func NewWatcher(path string, initial *Config, onReload func(*Config)) *Watcher {
	w := &Watcher{
		path:     path,
		onReload: onReload,
		done:     make(chan struct{}),
	}
	w.current.Store(initial)
	return w
}

// Current returns the configuration in effect.
func (w *Watcher) Current() *Config {
	return w.current.Load()
}

// Enabled reports whether a feature is on in the current configuration.
func (w *Watcher) Enabled(feature string) bool {
	return w.Current().Features.Enabled(feature)
}

// TriggerAllowed consults the current configuration.
func (w *Watcher) TriggerAllowed(lang mapping.Language, ch string) bool {
	return w.Current().TriggerAllowed(lang, ch)
}

// Start watches the configuration file until ctx is done or Close is
// called. Without a file it does nothing.
func (w *Watcher) Start(ctx context.Context) error {
	if w.path == "" {
		return nil
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Editors save by rename, so watch the directory rather than the file.
	if err := fs.Add(filepath.Dir(w.path)); err != nil {
		fs.Close()
		return err
	}

	target := filepath.Clean(w.path)
	go func() {
		defer fs.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.done:
				return
			case ev, ok := <-fs.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
					continue
				}
				w.reload()
			case err, ok := <-fs.Errors:
				if !ok {
					return
				}
				log.Error("config", "Config watcher error: %v", err)
			}
		}
	}()
	return nil
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		log.Error("config", "Keeping previous configuration: %v", err)
		return
	}
	w.current.Store(cfg)
	log.Server("Reloaded configuration from %s", w.path)
	if w.onReload != nil {
		w.onReload(cfg)
	}
}

// Close stops watching.
func (w *Watcher) Close() {
	w.stopOnce.Do(func() { close(w.done) })
}
