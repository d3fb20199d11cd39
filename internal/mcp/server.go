package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/mark3labs/mcp-go/server"

	"github.com/liasis/introspector/internal/indexer"
	"github.com/liasis/introspector/internal/storage"
	"github.com/liasis/introspector/internal/watcher"
	"github.com/liasis/introspector/pkg/engine"
)

const (
	// ServerName is the MCP server name
	ServerName = "introspector"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
	// DefaultDBPath is the default location for the index database
	DefaultDBPath = "~/.introspector"
)

// Server wraps the MCP server with application dependencies. Parsed
// buffers live in memory per server instance, keyed by a caller-supplied
// buffer id; workspace indexes persist in SQLite.
type Server struct {
	mcp     *server.MCPServer
	storage storage.Storage
	indexer *indexer.Indexer
	log     *slog.Logger

	indexLock indexer.IndexLock

	buffersMu sync.RWMutex
	buffers   map[string]*engine.Engine
}

// NewServer creates a new MCP server instance
func NewServer(dbPath string, log *slog.Logger) (*Server, error) {
	if dbPath == "" || dbPath == DefaultDBPath {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".introspector")
	}

	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dbFile := filepath.Join(dbPath, "introspector.db")

	store, err := storage.NewSQLiteStorage(dbFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	idx := indexer.New(store)

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
	)

	s := &Server{
		mcp:     mcpServer,
		storage: store,
		indexer: idx,
		log:     log,
		buffers: make(map[string]*engine.Engine),
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.storage.Close() }()
	return server.ServeStdio(s.mcp)
}

// WatchWorkspaces starts a background filesystem watcher that keeps the
// index fresh for the given workspace roots. Re-indexing runs on the
// watcher's goroutine until ctx is canceled.
func (s *Server) WatchWorkspaces(ctx context.Context, roots []string) error {
	w, err := watcher.New(s.indexer, s.log)
	if err != nil {
		return err
	}
	for _, root := range roots {
		if err := w.WatchWorkspace(root); err != nil {
			_ = w.Close()
			return err
		}
	}
	go func() {
		defer func() { _ = w.Close() }()
		if err := w.Run(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("watcher stopped", "error", err)
		}
	}()
	return nil
}

// registerTools registers all MCP tools
func (s *Server) registerTools() error {
	// Buffer tools
	s.mcp.AddTool(parseSourceTool(), s.handleParseSource)
	s.mcp.AddTool(foldingRangesTool(), s.handleFoldingRanges)
	s.mcp.AddTool(getOutlineTool(), s.handleGetOutline)
	s.mcp.AddTool(variablesAtTool(), s.handleVariablesAt)
	s.mcp.AddTool(occurrencesAtTool(), s.handleOccurrencesAt)
	s.mcp.AddTool(getDocumentationTool(), s.handleGetDocumentation)

	// Workspace tools
	s.mcp.AddTool(indexWorkspaceTool(), s.handleIndexWorkspace)
	s.mcp.AddTool(searchSymbolsTool(), s.handleSearchSymbols)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)

	return nil
}

// buffer returns the engine for a buffer id, creating it when establish
// is set.
func (s *Server) buffer(id string, establish bool) (*engine.Engine, bool) {
	if establish {
		s.buffersMu.Lock()
		defer s.buffersMu.Unlock()
		eng, ok := s.buffers[id]
		if !ok {
			eng = engine.New()
			s.buffers[id] = eng
		}
		return eng, true
	}
	s.buffersMu.RLock()
	defer s.buffersMu.RUnlock()
	eng, ok := s.buffers[id]
	return eng, ok
}
