package types

import (
	"errors"
	"fmt"
)

// Query misuse errors. These are returned by engine queries, never by Parse.
var (
	// ErrNotParsed is returned by queries issued before any successful parse
	ErrNotParsed = errors.New("no source has been parsed")
	// ErrOffsetOutOfRange is returned when a query offset lies outside the source
	ErrOffsetOutOfRange = errors.New("offset out of range")
)

// LexError reports a malformed token: an unterminated literal, an invalid
// character, or inconsistent indentation. Offset locates the problem in the
// source; for unterminated literals it points at the opening delimiter.
type LexError struct {
	Offset  int
	Line    int
	Message string
}

// Error implements the error interface
func (e *LexError) Error() string {
	return fmt.Sprintf("lex error at offset %d (line %d): %s", e.Offset, e.Line, e.Message)
}

// ParseError reports structurally invalid source. A parse error aborts the
// whole build; no partial tree is ever exposed.
type ParseError struct {
	Offset  int
	Line    int
	Message string
}

// Error implements the error interface
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d (line %d): %s", e.Offset, e.Line, e.Message)
}
