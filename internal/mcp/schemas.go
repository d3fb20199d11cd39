package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// bufferProperty is the schema shared by every buffer-scoped tool.
func bufferProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Buffer id established by parse_source (typically the editor's file path)",
	}
}

// offsetProperty is the schema for 0-indexed byte offsets.
func offsetProperty(desc string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"description": desc,
		"minimum":     0,
	}
}

// parseSourceTool returns the tool definition for parse_source
func parseSourceTool() mcp.Tool {
	return mcp.Tool{
		Name:        "parse_source",
		Description: "Parse Python source text and establish (or refresh) a queryable buffer. On a parse failure the buffer keeps its previous good state.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"buffer": bufferProperty(),
				"text": map[string]interface{}{
					"type":        "string",
					"description": "Full Python source text",
				},
			},
			Required: []string{"buffer", "text"},
		},
	}
}

// foldingRangesTool returns the tool definition for folding_ranges
func foldingRangesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "folding_ranges",
		Description: "Return the foldable line ranges (indentation blocks) of a parsed buffer",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"buffer": bufferProperty(),
			},
			Required: []string{"buffer"},
		},
	}
}

// getOutlineTool returns the tool definition for get_outline
func getOutlineTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_outline",
		Description: "Return the navigation outline (functions, classes, methods) of a parsed buffer",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"buffer": bufferProperty(),
			},
			Required: []string{"buffer"},
		},
	}
}

// variablesAtTool returns the tool definition for variables_at
func variablesAtTool() mcp.Tool {
	return mcp.Tool{
		Name:        "variables_at",
		Description: "Return every name visible at a byte offset, mapped to its first-binding offset",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"buffer": bufferProperty(),
				"offset": offsetProperty("0-indexed byte offset into the buffer text"),
			},
			Required: []string{"buffer", "offset"},
		},
	}
}

// occurrencesAtTool returns the tool definition for occurrences_at
func occurrencesAtTool() mcp.Tool {
	return mcp.Tool{
		Name:        "occurrences_at",
		Description: "Return every occurrence range of the identifier at a byte offset",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"buffer": bufferProperty(),
				"offset": offsetProperty("0-indexed byte offset on the identifier"),
			},
			Required: []string{"buffer", "offset"},
		},
	}
}

// getDocumentationTool returns the tool definition for get_documentation
func getDocumentationTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_documentation",
		Description: "Return the module docstring, or with an offset, the docstring of the enclosing declaration",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"buffer": bufferProperty(),
				"offset": offsetProperty("Optional 0-indexed byte offset; omit for the module docstring"),
			},
			Required: []string{"buffer"},
		},
	}
}

// indexWorkspaceTool returns the tool definition for index_workspace
func indexWorkspaceTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_workspace",
		Description: "Index a Python workspace to make its declarations searchable",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the workspace root (must contain .py files)",
				},
				"force_reindex": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, re-parse all files ignoring content hashes (full rebuild)",
					"default":     false,
				},
			},
			Required: []string{"path"},
		},
	}
}

// searchSymbolsTool returns the tool definition for search_symbols
func searchSymbolsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_symbols",
		Description: "Search indexed declarations (functions, classes, methods) by name",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to an indexed workspace",
				},
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Name or name fragment to search for (case-insensitive)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
			},
			Required: []string{"path", "query"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Query indexing status and statistics for a workspace",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the workspace root",
				},
			},
			Required: []string{"path"},
		},
	}
}
