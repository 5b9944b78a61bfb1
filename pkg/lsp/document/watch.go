package document

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/grindlemire/gsxls/pkg/lsp/log"
	"github.com/grindlemire/gsxls/pkg/lsp/mapping"
)

// ArtifactWatcher reports when the transpiler rewrites the artifacts of an
// open document, so the server can load the new mapping table.
type ArtifactWatcher struct {
	watcher  *fsnotify.Watcher
	onChange func(authoredURI string)

	mu        sync.Mutex
	artifacts map[string]string // artifact path -> authored URI
	dirs      map[string]int    // watched dir -> open documents in it

	done     chan struct{}
	stopOnce sync.Once
}

// NewArtifactWatcher creates a watcher that calls onChange with the authored
// URI whose artifacts changed. onChange runs on the watcher goroutine.
func NewArtifactWatcher(onChange func(authoredURI string)) (*ArtifactWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &ArtifactWatcher{
		watcher:   w,
		onChange:  onChange,
		artifacts: make(map[string]string),
		dirs:      make(map[string]int),
		done:      make(chan struct{}),
	}, nil
}

// Watch starts watching the artifacts of an authored document.
func (w *ArtifactWatcher) Watch(authoredURI string) error {
	path := URIToPath(authoredURI)
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.artifacts[w.key(dir, base, mapping.LanguageGo)]; ok {
		return nil
	}
	if w.dirs[dir] == 0 {
		if err := w.watcher.Add(dir); err != nil {
			return err
		}
	}
	w.dirs[dir]++

	for _, lang := range mapping.Languages {
		w.artifacts[w.key(dir, base, lang)] = authoredURI
	}
	return nil
}

// Unwatch stops watching the artifacts of an authored document.
func (w *ArtifactWatcher) Unwatch(authoredURI string) {
	path := URIToPath(authoredURI)
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.artifacts[w.key(dir, base, mapping.LanguageGo)]; !ok {
		return
	}
	for _, lang := range mapping.Languages {
		delete(w.artifacts, w.key(dir, base, lang))
	}
	w.dirs[dir]--
	if w.dirs[dir] <= 0 {
		delete(w.dirs, dir)
		if err := w.watcher.Remove(dir); err != nil {
			log.Server("Failed to unwatch %s: %v", dir, err)
		}
	}
}

func (w *ArtifactWatcher) key(dir, base string, lang mapping.Language) string {
	return filepath.Join(dir, mapping.ArtifactName(mapping.GeneratedName(base, lang)))
}

// Start processes file events until ctx is done or Close is called.
func (w *ArtifactWatcher) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.done:
				return
			case ev, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				w.mu.Lock()
				uri, watched := w.artifacts[filepath.Clean(ev.Name)]
				w.mu.Unlock()
				if watched {
					log.Server("Mapping artifact changed: %s", ev.Name)
					w.onChange(uri)
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				log.Server("Artifact watcher error: %v", err)
			}
		}
	}()
}

// Close stops the watcher.
func (w *ArtifactWatcher) Close() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}
