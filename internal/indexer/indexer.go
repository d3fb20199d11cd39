package indexer

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	ignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"

	"github.com/liasis/introspector/internal/source"
	"github.com/liasis/introspector/internal/storage"
	"github.com/liasis/introspector/pkg/engine"
)

// Indexer coordinates the indexing pipeline: discover -> parse -> store
type Indexer struct {
	storage storage.Storage

	// Worker pool configuration
	workers int
	force   bool
}

// Config contains configuration for the indexer
type Config struct {
	Workers      int  // Number of concurrent workers (default: runtime.NumCPU())
	BatchSize    int  // Number of files to commit per transaction (default: 20)
	IncludeEnvs  bool // Whether to index venv/virtualenv directories (default: false)
	ForceReindex bool // Whether to re-parse files with unchanged hashes (default: false)
}

// Statistics contains statistics about one indexing run
type Statistics struct {
	FilesIndexed          int
	FilesSkipped          int
	FilesFailed           int
	FilesWithParseErrors  int
	DeclarationsExtracted int
	Duration              time.Duration
	ErrorMessages         []string
}

// New creates a new Indexer instance
func New(store storage.Storage) *Indexer {
	return &Indexer{
		storage: store,
		workers: runtime.NumCPU(),
	}
}

// IndexWorkspace indexes every Python file under rootPath. Files whose
// content hash is unchanged are skipped; files that fail to parse are
// recorded with their error and never abort the run.
func (idx *Indexer) IndexWorkspace(ctx context.Context, rootPath string, config *Config) (*Statistics, error) {
	if config == nil {
		config = &Config{}
	}
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	idx.workers = config.Workers
	idx.force = config.ForceReindex

	startTime := time.Now()
	stats := &Statistics{
		ErrorMessages: make([]string, 0),
	}

	ws, err := idx.getOrCreateWorkspace(ctx, rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create workspace: %w", err)
	}

	files, err := idx.discoverFiles(rootPath, config)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}

	if err := idx.indexFiles(ctx, ws, files, config, stats); err != nil {
		return nil, fmt.Errorf("failed to index files: %w", err)
	}

	if err := idx.updateWorkspaceStats(ctx, ws); err != nil {
		return nil, fmt.Errorf("failed to update workspace stats: %w", err)
	}

	stats.Duration = time.Since(startTime)
	return stats, nil
}

// IndexSingle re-indexes one file inside an already known workspace. The
// watcher calls this on file change events.
func (idx *Indexer) IndexSingle(ctx context.Context, rootPath, relPath string) error {
	ws, err := idx.storage.GetWorkspace(ctx, rootPath)
	if err != nil {
		return fmt.Errorf("failed to load workspace: %w", err)
	}

	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var indexed, skipped, parseErrs, decls int32
	if err := idx.indexFile(ctx, tx, ws, filepath.Join(rootPath, relPath), &indexed, &skipped, &parseErrs, &decls); err != nil {
		return err
	}
	return tx.Commit()
}

// RemoveFile drops a file and its declarations from the index. The
// watcher calls this on file removal events.
func (idx *Indexer) RemoveFile(ctx context.Context, rootPath, relPath string) error {
	ws, err := idx.storage.GetWorkspace(ctx, rootPath)
	if err != nil {
		return fmt.Errorf("failed to load workspace: %w", err)
	}
	return idx.storage.DeleteFile(ctx, ws.ID, relPath)
}

// getOrCreateWorkspace retrieves an existing workspace or creates one
func (idx *Indexer) getOrCreateWorkspace(ctx context.Context, rootPath string) (*storage.Workspace, error) {
	ws, err := idx.storage.GetWorkspace(ctx, rootPath)
	if err == nil {
		return ws, nil
	}
	if err != storage.ErrNotFound {
		return nil, err
	}

	ws = &storage.Workspace{
		RootPath:     rootPath,
		IndexVersion: storage.CurrentSchemaVersion,
	}
	if err := idx.storage.CreateWorkspace(ctx, ws); err != nil {
		return nil, err
	}
	return ws, nil
}

// discoverFiles finds all Python files under the root, honoring the
// workspace's .gitignore and skipping hidden and environment directories.
func (idx *Indexer) discoverFiles(rootPath string, config *Config) ([]string, error) {
	var matcher *ignore.GitIgnore
	if gi, err := ignore.CompileIgnoreFile(filepath.Join(rootPath, ".gitignore")); err == nil {
		matcher = gi
	}

	var files []string
	err := filepath.Walk(rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, relErr := filepath.Rel(rootPath, path)
		if relErr != nil {
			return relErr
		}

		if info.IsDir() {
			if rel == "." {
				return nil
			}
			if strings.HasPrefix(info.Name(), ".") || info.Name() == "__pycache__" {
				return filepath.SkipDir
			}
			if !config.IncludeEnvs && isEnvDir(info.Name()) {
				return filepath.SkipDir
			}
			if matcher != nil && matcher.MatchesPath(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		if !strings.HasSuffix(path, ".py") {
			return nil
		}
		if matcher != nil && matcher.MatchesPath(rel) {
			return nil
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

// isEnvDir reports whether a directory name looks like a Python
// environment directory.
func isEnvDir(name string) bool {
	switch name {
	case "venv", "env", "virtualenv", "site-packages", "node_modules":
		return true
	}
	return false
}

// indexFiles indexes files concurrently in per-batch transactions
func (idx *Indexer) indexFiles(ctx context.Context, ws *storage.Workspace, files []string, config *Config, stats *Statistics) error {
	semaphore := make(chan struct{}, idx.workers)

	var (
		indexed   int32
		skipped   int32
		failed    int32
		parseErrs int32
		decls     int32
	)

	batchSize := config.BatchSize
	if batchSize <= 0 {
		batchSize = 20
	}

	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex // protects stats.ErrorMessages

	for i := 0; i < len(files); i += batchSize {
		end := i + batchSize
		if end > len(files) {
			end = len(files)
		}
		batch := files[i:end]

		g.Go(func() error {
			return idx.indexBatch(gctx, ws, batch, semaphore, &indexed, &skipped, &failed, &parseErrs, &decls, &mu, stats)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	stats.FilesIndexed = int(indexed)
	stats.FilesSkipped = int(skipped)
	stats.FilesFailed = int(failed)
	stats.FilesWithParseErrors = int(parseErrs)
	stats.DeclarationsExtracted = int(decls)

	return nil
}

// indexBatch indexes a batch of files within a single transaction
func (idx *Indexer) indexBatch(ctx context.Context, ws *storage.Workspace, files []string,
	semaphore chan struct{}, indexed, skipped, failed, parseErrs, decls *int32,
	mu *sync.Mutex, stats *Statistics) error {

	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, filePath := range files {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case semaphore <- struct{}{}:
		}

		err := idx.indexFile(ctx, tx, ws, filePath, indexed, skipped, parseErrs, decls)
		<-semaphore

		if err != nil {
			atomic.AddInt32(failed, 1)
			mu.Lock()
			stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", filePath, err))
			mu.Unlock()
			continue
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// indexFile indexes a single Python file. A parse failure is recorded on
// the file row, with any previously stored declarations cleared, and is
// not an indexing error.
func (idx *Indexer) indexFile(ctx context.Context, store storage.Storage, ws *storage.Workspace,
	filePath string, indexed, skipped, parseErrs, decls *int32) error {

	relPath, err := filepath.Rel(ws.RootPath, filePath)
	if err != nil {
		return err
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	info, err := os.Stat(filePath)
	if err != nil {
		return err
	}
	hash := sha256.Sum256(content)

	unchanged, err := idx.checkUnchanged(ctx, store, ws.ID, relPath, hash, skipped)
	if err != nil {
		return err
	}
	if unchanged {
		return nil
	}

	file := &storage.File{
		WorkspaceID: ws.ID,
		Path:        relPath,
		ContentHash: hash,
		ModTime:     info.ModTime(),
		SizeBytes:   info.Size(),
	}

	eng := engine.New()
	if parseErr := eng.Parse(string(content)); parseErr != nil {
		msg := parseErr.Error()
		file.ParseError = &msg
		atomic.AddInt32(parseErrs, 1)
		if err := store.UpsertFile(ctx, file); err != nil {
			return err
		}
		if err := store.ReplaceDeclarations(ctx, file.ID, nil); err != nil {
			return err
		}
		atomic.AddInt32(indexed, 1)
		return nil
	}

	if err := store.UpsertFile(ctx, file); err != nil {
		return err
	}

	declarations, err := extractDeclarations(eng, string(content))
	if err != nil {
		return fmt.Errorf("failed to extract declarations: %w", err)
	}
	if err := store.ReplaceDeclarations(ctx, file.ID, declarations); err != nil {
		return err
	}

	atomic.AddInt32(indexed, 1)
	atomic.AddInt32(decls, int32(len(declarations)))
	return nil
}

// extractDeclarations converts the engine's navigation index into
// storage declarations with line spans and docstrings.
func extractDeclarations(eng *engine.Engine, text string) ([]*storage.Declaration, error) {
	navEntries, err := eng.Navigation()
	if err != nil {
		return nil, err
	}
	docRecords, err := eng.Docstrings()
	if err != nil {
		return nil, err
	}

	buf := source.New(text)
	declarations := make([]*storage.Declaration, 0, len(navEntries))
	for rng, entry := range navEntries {
		d := &storage.Declaration{
			Name:        entry.Name,
			Title:       entry.Title,
			Kind:        string(entry.Kind),
			StartLine:   buf.LineAt(rng.Start),
			EndLine:     buf.LineAt(rng.End - 1),
			StartOffset: rng.Start,
			EndOffset:   rng.End,
		}
		if rec, ok := docRecords[rng]; ok {
			d.Docstring = rec.Text
		}
		declarations = append(declarations, d)
	}
	return declarations, nil
}

// checkUnchanged reports whether the stored hash matches, skipping the
// file when it does.
func (idx *Indexer) checkUnchanged(ctx context.Context, store storage.Storage, workspaceID int64,
	relPath string, hash [32]byte, skipped *int32) (bool, error) {

	if idx.force {
		return false, nil
	}

	existing, err := store.GetFile(ctx, workspaceID, relPath)
	if err == storage.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if existing.ContentHash == hash {
		atomic.AddInt32(skipped, 1)
		return true, nil
	}
	return false, nil
}

// updateWorkspaceStats refreshes the workspace's file count and
// last-indexed timestamp
func (idx *Indexer) updateWorkspaceStats(ctx context.Context, ws *storage.Workspace) error {
	files, err := idx.storage.ListFiles(ctx, ws.ID)
	if err != nil {
		return err
	}

	ws.TotalFiles = len(files)
	ws.LastIndexedAt = time.Now()

	return idx.storage.UpdateWorkspace(ctx, ws)
}
