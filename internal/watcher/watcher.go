// Package watcher keeps workspace indexes fresh: it watches indexed
// source trees with fsnotify and re-indexes changed Python files after a
// short debounce, so editors see up-to-date declarations without
// re-running a full index.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/liasis/introspector/internal/indexer"
)

// debounceWindow is how long a file must stay quiet before re-indexing.
// Editors often write a file several times in quick succession (swap,
// truncate, rename); one index run at the end covers them all.
const debounceWindow = 500 * time.Millisecond

// Watcher re-indexes files as they change on disk.
type Watcher struct {
	idx *indexer.Indexer
	log *slog.Logger
	fsw *fsnotify.Watcher

	mu     sync.Mutex
	roots  []string               // workspace roots, longest first
	timers map[string]*time.Timer // pending re-index per file path
}

// New creates a Watcher that re-indexes through idx.
func New(idx *indexer.Indexer, log *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &Watcher{
		idx:    idx,
		log:    log,
		fsw:    fsw,
		timers: make(map[string]*time.Timer),
	}, nil
}

// WatchWorkspace registers every directory under root with the
// filesystem watcher. Hidden and __pycache__ directories are skipped.
func (w *Watcher) WatchWorkspace(root string) error {
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		name := info.Name()
		if path != root && (strings.HasPrefix(name, ".") || name == "__pycache__") {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
	if err != nil {
		return fmt.Errorf("failed to watch workspace %s: %w", root, err)
	}

	w.mu.Lock()
	w.roots = append(w.roots, root)
	sort.Slice(w.roots, func(i, j int) bool { return len(w.roots[i]) > len(w.roots[j]) })
	w.mu.Unlock()

	w.log.Info("watching workspace", "root", root)
	return nil
}

// Run processes filesystem events until the context is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher error", "error", err)
		}
	}
}

// Close stops the underlying filesystem watcher and cancels pending
// re-index timers.
func (w *Watcher) Close() error {
	w.mu.Lock()
	for _, t := range w.timers {
		t.Stop()
	}
	w.timers = make(map[string]*time.Timer)
	w.mu.Unlock()
	return w.fsw.Close()
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	// New directories need their own watch for events below them.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			base := filepath.Base(event.Name)
			if !strings.HasPrefix(base, ".") && base != "__pycache__" {
				if err := w.fsw.Add(event.Name); err != nil {
					w.log.Warn("failed to watch new directory", "path", event.Name, "error", err)
				}
			}
			return
		}
	}

	if !strings.HasSuffix(event.Name, ".py") {
		return
	}

	root, rel, ok := w.resolve(event.Name)
	if !ok {
		return
	}

	switch {
	case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
		w.cancelPending(event.Name)
		if err := w.idx.RemoveFile(ctx, root, rel); err != nil {
			w.log.Warn("failed to remove file from index", "path", rel, "error", err)
		} else {
			w.log.Debug("removed from index", "path", rel)
		}
	case event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create):
		w.scheduleReindex(ctx, event.Name, root, rel)
	}
}

// resolve maps an absolute event path to its workspace root and
// root-relative path. Longest root wins for nested workspaces.
func (w *Watcher) resolve(path string) (root, rel string, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, r := range w.roots {
		if candidate, err := filepath.Rel(r, path); err == nil && !strings.HasPrefix(candidate, "..") {
			return r, candidate, true
		}
	}
	return "", "", false
}

// scheduleReindex (re)arms the debounce timer for a file.
func (w *Watcher) scheduleReindex(ctx context.Context, path, root, rel string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(debounceWindow, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		if err := w.idx.IndexSingle(ctx, root, rel); err != nil {
			w.log.Warn("failed to re-index file", "path", rel, "error", err)
			return
		}
		w.log.Debug("re-indexed", "path", rel)
	})
}

func (w *Watcher) cancelPending(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
		delete(w.timers, path)
	}
}
