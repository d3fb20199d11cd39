// Package mcp implements the Model Context Protocol server for the
// introspector.
//
// The server exposes two tool families over stdio:
//
// Buffer tools operate on in-memory parses of Python source. A caller
// establishes a buffer with parse_source, then queries it with
// folding_ranges, get_outline, variables_at, occurrences_at, and
// get_documentation. Buffers are keyed by a caller-supplied id and live
// for the duration of the server process; a failed re-parse leaves the
// previous good parse queryable.
//
// Workspace tools operate on the persistent SQLite index. index_workspace
// walks a directory tree, parses every Python file, and stores the
// declarations it finds; search_symbols and get_status query the result.
// Only one indexing run may be in flight at a time.
//
// Errors are returned as *MCPError values with JSON-RPC style codes:
// -32602 for bad parameters, -32010/-32011 for buffer and parse problems,
// and -3200x codes for workspace problems. The Data field carries
// machine-readable context such as the byte offset of a lex error.
package mcp
