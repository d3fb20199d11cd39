// Package folding computes nestable line ranges from the token stream: the
// spans of contiguous lines forming one indentation-delimited block, used
// by editors for code folding.
package folding

import (
	"sort"

	"github.com/liasis/introspector/internal/source"
	"github.com/liasis/introspector/pkg/types"
)

// Extract returns the line ranges of all indentation blocks in the token
// stream, sorted by start line. Each range starts at the line of the
// statement introducing the block (the "def f():" line, not the first body
// line) and ends at the last content line of the block. Ranges nest
// strictly; blocks are maximal.
func Extract(buf *source.Buffer, tokens []types.Token) []types.LineRange {
	var (
		ranges      []types.LineRange
		openStarts  []int // introducing line per open block
		stmtLine    int   // first line of the current logical line
		prevStmt    int   // first line of the previous logical line
		lastContent int   // last line holding token text
		haveStmt    bool
	)

	for _, tok := range tokens {
		switch tok.Kind {
		case types.KindIndent:
			openStarts = append(openStarts, prevStmt)
		case types.KindDedent:
			if len(openStarts) > 0 {
				start := openStarts[len(openStarts)-1]
				openStarts = openStarts[:len(openStarts)-1]
				ranges = append(ranges, types.LineRange{StartLine: start, EndLine: lastContent})
			}
		case types.KindNewline:
			if haveStmt {
				prevStmt = stmtLine
				haveStmt = false
			}
		case types.KindEOF:
			// dedents were emitted before EOF; nothing to do
		default:
			if !haveStmt {
				stmtLine = tok.Line
				haveStmt = true
			}
			// Multi-line tokens (triple-quoted strings, bracketed
			// continuations) extend the block to their final line.
			if end := buf.LineAt(tok.End - 1); end > lastContent {
				lastContent = end
			}
		}
	}

	sort.Slice(ranges, func(i, j int) bool {
		if ranges[i].StartLine != ranges[j].StartLine {
			return ranges[i].StartLine < ranges[j].StartLine
		}
		return ranges[i].EndLine > ranges[j].EndLine
	})
	return ranges
}
