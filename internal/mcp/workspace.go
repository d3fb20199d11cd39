package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/liasis/introspector/internal/indexer"
	"github.com/liasis/introspector/internal/storage"
)

// handleIndexWorkspace handles the index_workspace tool invocation
func (s *Server) handleIndexWorkspace(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, missingParam("path")
	}
	if err := validatePath(path); err != nil {
		return nil, newMCPError(ErrorCodeWorkspaceNotFound, "invalid workspace path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	forceReindex := getBoolDefault(args, "force_reindex", false)

	if !s.indexLock.TryAcquire() {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "another indexing operation is in progress", nil)
	}
	defer s.indexLock.Release()

	config := &indexer.Config{
		ForceReindex: forceReindex,
	}

	stats, err := s.indexer.IndexWorkspace(ctx, path, config)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	s.log.Info("workspace indexed",
		"path", path,
		"indexed", stats.FilesIndexed,
		"skipped", stats.FilesSkipped,
		"duration", stats.Duration)

	response := map[string]interface{}{
		"indexed":                true,
		"files_indexed":          stats.FilesIndexed,
		"files_skipped":          stats.FilesSkipped,
		"files_failed":           stats.FilesFailed,
		"files_with_parse_errors": stats.FilesWithParseErrors,
		"declarations_extracted": stats.DeclarationsExtracted,
		"duration_ms":            stats.Duration.Milliseconds(),
	}

	if len(stats.ErrorMessages) > 0 {
		errorCount := len(stats.ErrorMessages)
		if errorCount > 5 {
			response["errors"] = stats.ErrorMessages[:5]
			response["error_count"] = errorCount
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchSymbols handles the search_symbols tool invocation
func (s *Server) handleSearchSymbols(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, missingParam("path")
	}
	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, missingParam("query")
	}
	limit := getIntDefault(args, "limit", 10)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	ws, err := s.storage.GetWorkspace(ctx, path)
	if err == storage.ErrNotFound {
		return nil, newMCPError(ErrorCodeNotIndexed, "workspace not indexed", map[string]interface{}{
			"path": path,
			"hint": "use the index_workspace tool first",
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to load workspace", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results, err := s.storage.SearchDeclarations(ctx, ws.ID, query, limit)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	out := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		entry := map[string]interface{}{
			"name":       r.Name,
			"title":      r.Title,
			"kind":       r.Kind,
			"file":       r.FilePath,
			"start_line": r.StartLine,
			"end_line":   r.EndLine,
		}
		if r.Docstring != "" {
			entry["docstring"] = r.Docstring
		}
		out = append(out, entry)
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"query":   query,
		"results": out,
	})), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, missingParam("path")
	}

	ws, err := s.storage.GetWorkspace(ctx, path)
	if err == storage.ErrNotFound {
		response := map[string]interface{}{
			"indexed": false,
			"path":    path,
			"message": "Workspace not indexed. Use the index_workspace tool to index it.",
		}
		return mcp.NewToolResultText(formatJSON(response)), nil
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to load workspace", map[string]interface{}{
			"error": err.Error(),
		})
	}

	status, err := s.storage.GetStatus(ctx, ws.ID)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"indexed": true,
		"workspace": map[string]interface{}{
			"path":            ws.RootPath,
			"index_version":   ws.IndexVersion,
			"last_indexed_at": ws.LastIndexedAt.Format("2006-01-02T15:04:05Z07:00"),
		},
		"statistics": map[string]interface{}{
			"files_count":        status.FilesCount,
			"declarations_count": status.DeclarationsCount,
			"parse_error_count":  status.ParseErrorCount,
			"index_size_mb":      fmt.Sprintf("%.2f", status.IndexSizeMB),
		},
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// validatePath checks that a path is an absolute, readable directory
// containing at least one Python file
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()

	hasPythonFiles := false
	_ = filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if hasPythonFiles {
			return filepath.SkipAll
		}
		if !info.IsDir() && strings.HasSuffix(p, ".py") {
			hasPythonFiles = true
		}
		return nil
	})

	if !hasPythonFiles {
		return ErrNoPythonFiles
	}
	return nil
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := asInt(args[key]); ok {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
	ErrNoPythonFiles   = errors.New("directory does not contain Python files")
)
