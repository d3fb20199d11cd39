// Package source holds the immutable text of one parse session together
// with a line-offset index for O(log n) offset/line conversion.
package source

import (
	"sort"
	"strings"

	"github.com/liasis/introspector/pkg/types"
)

// Buffer is the immutable source text of a parse session. A Buffer is built
// once per parse and shared read-only by everything derived from it.
type Buffer struct {
	text string
	// lineStarts[i] is the byte offset of the first character of line i+1.
	// lineStarts[0] is always 0.
	lineStarts []int
}

// New builds a Buffer and its line index from raw source text.
func New(text string) *Buffer {
	starts := make([]int, 0, strings.Count(text, "\n")+1)
	starts = append(starts, 0)
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &Buffer{text: text, lineStarts: starts}
}

// Text returns the full source text.
func (b *Buffer) Text() string {
	return b.text
}

// Len returns the source length in bytes.
func (b *Buffer) Len() int {
	return len(b.text)
}

// LineCount returns the number of lines. The empty buffer has one line.
func (b *Buffer) LineCount() int {
	return len(b.lineStarts)
}

// LineAt returns the 1-indexed line number containing the byte offset.
// Offsets at or past the end of the text map to the last line.
func (b *Buffer) LineAt(offset int) int {
	if offset < 0 {
		return 1
	}
	// First line whose start is strictly beyond the offset.
	i := sort.Search(len(b.lineStarts), func(i int) bool {
		return b.lineStarts[i] > offset
	})
	return i
}

// OffsetOf returns the byte offset of the first character of the 1-indexed
// line, or -1 when the line does not exist.
func (b *Buffer) OffsetOf(line int) int {
	if line < 1 || line > len(b.lineStarts) {
		return -1
	}
	return b.lineStarts[line-1]
}

// Slice returns the source text covered by the range, clamped to bounds.
func (b *Buffer) Slice(r types.Range) string {
	start, end := r.Start, r.End
	if start < 0 {
		start = 0
	}
	if end > len(b.text) {
		end = len(b.text)
	}
	if start >= end {
		return ""
	}
	return b.text[start:end]
}

// Line returns the text of the 1-indexed line without its trailing newline.
func (b *Buffer) Line(line int) string {
	start := b.OffsetOf(line)
	if start < 0 {
		return ""
	}
	end := len(b.text)
	if line < len(b.lineStarts) {
		end = b.lineStarts[line] - 1 // drop the '\n'
	}
	return b.text[start:end]
}

// WordAt returns the identifier-character run covering the offset, or the
// zero Range when the offset is out of bounds or sits on a boundary
// character. An offset on the first character of an identifier yields the
// whole identifier.
func (b *Buffer) WordAt(offset int) types.Range {
	if offset < 0 || offset >= len(b.text) || !isWordByte(b.text[offset]) {
		return types.Range{}
	}
	start := offset
	for start > 0 && isWordByte(b.text[start-1]) {
		start--
	}
	end := offset + 1
	for end < len(b.text) && isWordByte(b.text[end]) {
		end++
	}
	return types.Range{Start: start, End: end}
}

func isWordByte(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}
