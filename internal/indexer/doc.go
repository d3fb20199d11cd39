// Package indexer coordinates the end-to-end indexing pipeline for
// Python workspaces.
//
// The indexer discovers source files, parses them with the introspection
// engine, and persists the extracted declarations, managing concurrency
// and error handling along the way.
//
// # Basic Usage
//
//	idx := indexer.New(store)
//
//	stats, err := idx.IndexWorkspace(ctx, "/path/to/project", nil)
//
//	fmt.Printf("Indexed %d files in %v\n", stats.FilesIndexed, stats.Duration)
//
// # Indexing Pipeline
//
// The indexer executes a multi-stage pipeline:
//
//  1. Discovery: Find all .py files, honoring .gitignore and skipping
//     hidden, __pycache__, and environment directories
//  2. Incremental decision: Compare SHA-256 content hashes, skip
//     unchanged files
//  3. Parse: Run the engine over each changed file (parallel)
//  4. Store: Persist file records and declarations in per-batch
//     transactions
//
// # Incremental Indexing
//
// By default, the indexer only processes changed files:
//
//	// First index: processes all files
//	stats1, _ := idx.IndexWorkspace(ctx, root, nil)
//	// Files: 247 indexed, 0 skipped
//
//	// Subsequent index: only changed files
//	stats2, _ := idx.IndexWorkspace(ctx, root, nil)
//	// Files: 3 indexed, 244 skipped
//
// # Concurrent Processing
//
// Files are processed by an errgroup-backed worker pool bounded by a
// semaphore; the default worker count is runtime.NumCPU(). Batches of
// files share one transaction so a crash never leaves a half-written
// file record.
//
// # Error Handling
//
// A file that fails to parse is not an indexing failure: its row is
// stored with the parse error message and its stale declarations are
// cleared, so editors can surface the error while the rest of the
// workspace stays searchable. Only I/O and storage failures count toward
// Statistics.FilesFailed.
//
// # Serialization
//
// Concurrent indexing runs over the same database are serialized with
// IndexLock, a non-blocking try-lock; callers that lose the race report
// indexing-in-progress instead of queueing.
package indexer
