package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/liasis/introspector/internal/source"
	"github.com/liasis/introspector/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeWorkspaceNotFound  = -32001 // Path is not a usable Python workspace
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeNotIndexed         = -32003 // Workspace not indexed
	ErrorCodeNotParsed          = -32010 // Buffer unknown or never successfully parsed
	ErrorCodeParseFailed        = -32011 // Source failed to parse; data locates the error
)

// handleParseSource handles the parse_source tool invocation
func (s *Server) handleParseSource(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	bufferID, ok := args["buffer"].(string)
	if !ok || bufferID == "" {
		return nil, missingParam("buffer")
	}
	text, ok := args["text"].(string)
	if !ok {
		return nil, missingParam("text")
	}

	eng, _ := s.buffer(bufferID, true)
	if err := eng.Parse(text); err != nil {
		return nil, parseFailure(err)
	}

	buf := source.New(text)
	response := map[string]interface{}{
		"parsed": true,
		"buffer": bufferID,
		"bytes":  buf.Len(),
		"lines":  buf.LineCount(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleFoldingRanges handles the folding_ranges tool invocation
func (s *Server) handleFoldingRanges(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	eng, err := s.bufferFromArgs(request)
	if err != nil {
		return nil, err
	}

	ranges, qerr := eng.NestableLines()
	if qerr != nil {
		return nil, queryFailure(qerr)
	}

	out := make([]map[string]interface{}, 0, len(ranges))
	for _, r := range ranges {
		out = append(out, map[string]interface{}{
			"start_line": r.StartLine,
			"end_line":   r.EndLine,
		})
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{"ranges": out})), nil
}

// handleGetOutline handles the get_outline tool invocation
func (s *Server) handleGetOutline(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	eng, err := s.bufferFromArgs(request)
	if err != nil {
		return nil, err
	}

	entries, qerr := eng.Navigation()
	if qerr != nil {
		return nil, queryFailure(qerr)
	}
	text, qerr := eng.Source()
	if qerr != nil {
		return nil, queryFailure(qerr)
	}
	buf := source.New(text)

	sorted := make([]types.NavigationEntry, 0, len(entries))
	for _, e := range entries {
		sorted = append(sorted, e)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Range.Start < sorted[j].Range.Start })

	out := make([]map[string]interface{}, 0, len(sorted))
	for _, e := range sorted {
		out = append(out, map[string]interface{}{
			"name":         e.Name,
			"title":        e.Title,
			"kind":         string(e.Kind),
			"start_offset": e.Range.Start,
			"end_offset":   e.Range.End,
			"start_line":   buf.LineAt(e.Range.Start),
			"end_line":     buf.LineAt(e.Range.End - 1),
		})
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{"outline": out})), nil
}

// handleVariablesAt handles the variables_at tool invocation
func (s *Server) handleVariablesAt(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	eng, offset, err := s.bufferAndOffsetFromArgs(request)
	if err != nil {
		return nil, err
	}

	vars, qerr := eng.VariablesAt(offset)
	if qerr != nil {
		return nil, queryFailure(qerr)
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{"variables": vars})), nil
}

// handleOccurrencesAt handles the occurrences_at tool invocation
func (s *Server) handleOccurrencesAt(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	eng, offset, err := s.bufferAndOffsetFromArgs(request)
	if err != nil {
		return nil, err
	}

	occurrences, qerr := eng.OccurrencesAt(offset)
	if qerr != nil {
		return nil, queryFailure(qerr)
	}

	out := make([]map[string]interface{}, 0, len(occurrences))
	for _, r := range occurrences {
		out = append(out, map[string]interface{}{
			"start": r.Start,
			"end":   r.End,
		})
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{"occurrences": out})), nil
}

// handleGetDocumentation handles the get_documentation tool invocation.
// Without an offset it returns the module docstring; with one, the
// docstring of the innermost documented declaration at that offset.
func (s *Server) handleGetDocumentation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	bufferID, ok := args["buffer"].(string)
	if !ok || bufferID == "" {
		return nil, missingParam("buffer")
	}
	eng, ok := s.buffer(bufferID, false)
	if !ok {
		return nil, unknownBuffer(bufferID)
	}

	var (
		text  string
		found bool
		qerr  error
	)
	if raw, present := args["offset"]; present {
		offset, ok := asInt(raw)
		if !ok {
			return nil, newMCPError(ErrorCodeInvalidParams, "offset must be an integer", map[string]interface{}{
				"param": "offset",
			})
		}
		text, found, qerr = eng.DocumentationAt(offset)
	} else {
		text, found, qerr = eng.Documentation()
	}
	if qerr != nil {
		return nil, queryFailure(qerr)
	}

	response := map[string]interface{}{"found": found}
	if found {
		response["text"] = text
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Shared argument plumbing

func (s *Server) bufferFromArgs(request mcp.CallToolRequest) (bufferEngine, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	bufferID, ok := args["buffer"].(string)
	if !ok || bufferID == "" {
		return nil, missingParam("buffer")
	}
	eng, ok := s.buffer(bufferID, false)
	if !ok {
		return nil, unknownBuffer(bufferID)
	}
	return eng, nil
}

func (s *Server) bufferAndOffsetFromArgs(request mcp.CallToolRequest) (bufferEngine, int, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, 0, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	bufferID, ok := args["buffer"].(string)
	if !ok || bufferID == "" {
		return nil, 0, missingParam("buffer")
	}
	offset, ok := asInt(args["offset"])
	if !ok {
		return nil, 0, missingParam("offset")
	}
	eng, ok := s.buffer(bufferID, false)
	if !ok {
		return nil, 0, unknownBuffer(bufferID)
	}
	return eng, offset, nil
}

// bufferEngine is the slice of the engine API the buffer tools use.
type bufferEngine interface {
	NestableLines() ([]types.LineRange, error)
	VariablesAt(offset int) (map[string]int, error)
	OccurrencesAt(offset int) ([]types.Range, error)
	Documentation() (string, bool, error)
	DocumentationAt(offset int) (string, bool, error)
	Navigation() (map[types.Range]types.NavigationEntry, error)
	Source() (string, error)
}

// Error mapping

// parseFailure converts a lex or parse error into a located MCP error.
func parseFailure(err error) error {
	var lexErr *types.LexError
	if errors.As(err, &lexErr) {
		return newMCPError(ErrorCodeParseFailed, "source failed to lex", map[string]interface{}{
			"offset":  lexErr.Offset,
			"line":    lexErr.Line,
			"message": lexErr.Message,
		})
	}
	var parseErr *types.ParseError
	if errors.As(err, &parseErr) {
		return newMCPError(ErrorCodeParseFailed, "source failed to parse", map[string]interface{}{
			"offset":  parseErr.Offset,
			"line":    parseErr.Line,
			"message": parseErr.Message,
		})
	}
	return newMCPError(ErrorCodeInternalError, "parse failed", map[string]interface{}{
		"error": err.Error(),
	})
}

// queryFailure maps engine query errors onto MCP error codes.
func queryFailure(err error) error {
	switch {
	case errors.Is(err, types.ErrNotParsed):
		return newMCPError(ErrorCodeNotParsed, "buffer has no successful parse", nil)
	case errors.Is(err, types.ErrOffsetOutOfRange):
		return newMCPError(ErrorCodeInvalidParams, "offset out of range", map[string]interface{}{
			"param": "offset",
		})
	}
	return newMCPError(ErrorCodeInternalError, "query failed", map[string]interface{}{
		"error": err.Error(),
	})
}

func unknownBuffer(id string) error {
	return newMCPError(ErrorCodeNotParsed, "unknown buffer", map[string]interface{}{
		"buffer": id,
	})
}

func missingParam(name string) error {
	return newMCPError(ErrorCodeInvalidParams, name+" parameter is required", map[string]interface{}{
		"param":  name,
		"reason": "missing or empty",
	})
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// asInt extracts an integer from a JSON-decoded argument value.
func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	}
	return 0, false
}
