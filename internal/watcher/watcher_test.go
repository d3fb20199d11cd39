package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liasis/introspector/internal/indexer"
	"github.com/liasis/introspector/internal/logging"
	"github.com/liasis/introspector/internal/storage"
)

func newTestWatcher(t *testing.T) (*Watcher, *indexer.Indexer, *storage.SQLiteStorage) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	idx := indexer.New(store)
	w, err := New(idx, logging.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w, idx, store
}

func TestResolve_LongestRootWins(t *testing.T) {
	w, _, _ := newTestWatcher(t)
	outer := t.TempDir()
	inner := filepath.Join(outer, "nested")
	require.NoError(t, os.MkdirAll(inner, 0755))

	require.NoError(t, w.WatchWorkspace(outer))
	require.NoError(t, w.WatchWorkspace(inner))

	root, rel, ok := w.resolve(filepath.Join(inner, "a.py"))
	require.True(t, ok)
	assert.Equal(t, inner, root)
	assert.Equal(t, "a.py", rel)

	root, rel, ok = w.resolve(filepath.Join(outer, "b.py"))
	require.True(t, ok)
	assert.Equal(t, outer, root)
	assert.Equal(t, "b.py", rel)

	_, _, ok = w.resolve("/somewhere/else/c.py")
	assert.False(t, ok)
}

func TestWatcher_ReindexesOnWrite(t *testing.T) {
	w, idx, store := newTestWatcher(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.py"), []byte("def f():\n    pass\n"), 0644))
	_, err := idx.IndexWorkspace(ctx, root, nil)
	require.NoError(t, err)

	require.NoError(t, w.WatchWorkspace(root))
	go func() { _ = w.Run(ctx) }()

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.py"), []byte("def f():\n    pass\ndef g():\n    pass\n"), 0644))

	ws, err := store.GetWorkspace(ctx, root)
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		results, err := store.SearchDeclarations(ctx, ws.ID, "g", 10)
		return err == nil && len(results) == 1
	}, 10*time.Second, 100*time.Millisecond)
}

func TestWatcher_RemovesDeletedFiles(t *testing.T) {
	w, idx, store := newTestWatcher(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	root := t.TempDir()
	path := filepath.Join(root, "gone.py")
	require.NoError(t, os.WriteFile(path, []byte("x = 1\n"), 0644))
	_, err := idx.IndexWorkspace(ctx, root, nil)
	require.NoError(t, err)

	require.NoError(t, w.WatchWorkspace(root))
	go func() { _ = w.Run(ctx) }()

	require.NoError(t, os.Remove(path))

	ws, err := store.GetWorkspace(ctx, root)
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		_, err := store.GetFile(ctx, ws.ID, "gone.py")
		return err == storage.ErrNotFound
	}, 10*time.Second, 100*time.Millisecond)
}

func TestWatcher_IgnoresNonPythonFiles(t *testing.T) {
	w, idx, store := newTestWatcher(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.py"), []byte("x = 1\n"), 0644))
	_, err := idx.IndexWorkspace(ctx, root, nil)
	require.NoError(t, err)

	require.NoError(t, w.WatchWorkspace(root))
	go func() { _ = w.Run(ctx) }()

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("not python"), 0644))

	// The text file never enters the index
	time.Sleep(debounceWindow * 2)
	ws, err := store.GetWorkspace(ctx, root)
	require.NoError(t, err)
	_, err = store.GetFile(ctx, ws.ID, "notes.txt")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
