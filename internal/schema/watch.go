package schema

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a Registry whenever its schema file changes on disk.
type Watcher struct {
	Path     string
	Registry *Registry
	// Build turns the decoded file into the full entry set, typically by
	// composing it onto Builtin. Nil uses the file as is.
	Build func(file []Entry) []Entry
	// OnReload is called after every attempt; err is nil on success.
	OnReload func(version uint64, err error)
}

// Run blocks until ctx is done. The directory is watched rather than the
// file so that editors which replace the file on save are still seen.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	target := filepath.Clean(w.Path)
	if err := fw.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.reload()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.report(err)
		}
	}
}

func (w *Watcher) reload() {
	entries, err := LoadFile(w.Path)
	if err != nil {
		w.report(err)
		return
	}
	if w.Build != nil {
		entries = w.Build(entries)
	}
	if err := w.Registry.Reload(entries); err != nil {
		w.report(err)
		return
	}
	w.report(nil)
}

func (w *Watcher) report(err error) {
	if w.OnReload != nil {
		w.OnReload(w.Registry.Version(), err)
	}
}
