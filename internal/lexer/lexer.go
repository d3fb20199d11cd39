package lexer

import (
	"fmt"
	"strings"

	"github.com/liasis/introspector/pkg/types"
)

// tabSize is the column multiple a tab advances indentation to.
const tabSize = 8

// keywords is the Python 3 keyword set.
var keywords = map[string]bool{
	"False": true, "None": true, "True": true,
	"and": true, "as": true, "assert": true, "async": true, "await": true,
	"break": true, "class": true, "continue": true, "def": true, "del": true,
	"elif": true, "else": true, "except": true, "finally": true, "for": true,
	"from": true, "global": true, "if": true, "import": true, "in": true,
	"is": true, "lambda": true, "nonlocal": true, "not": true, "or": true,
	"pass": true, "raise": true, "return": true, "try": true, "while": true,
	"with": true, "yield": true,
}

// multi-character operators, longest first so maximal munch works.
var multiOps = []string{
	"**=", "//=", "<<=", ">>=", "...",
	"**", "//", "<<", ">>", "<=", ">=", "==", "!=", "->", ":=",
	"+=", "-=", "*=", "/=", "%=", "@=", "&=", "|=", "^=",
}

// IsKeyword reports whether the name is a Python keyword.
func IsKeyword(name string) bool {
	return keywords[name]
}

// Lexer scans Python source text into a token stream with explicit indent
// and dedent markers, so downstream consumers need no column counting.
type Lexer struct {
	src    string
	cur    int
	line   int // 1-based line of cur
	tokens []types.Token

	atLineStart bool
	indents     []int // indentation width stack; always starts with 0
	openBracket []int // offsets of currently unclosed ( [ {
}

// New creates a lexer for the given source text.
func New(src string) *Lexer {
	return &Lexer{
		src:         src,
		line:        1,
		atLineStart: true,
		indents:     []int{0},
	}
}

// Scan tokenizes the entire source. On success the returned stream ends
// with balanced dedents and a single EOF token. On failure it returns a
// *types.LexError locating the offending offset; no tokens are returned.
func (l *Lexer) Scan() ([]types.Token, error) {
	for {
		if l.atLineStart && len(l.openBracket) == 0 {
			if err := l.scanIndentation(); err != nil {
				return nil, err
			}
		}
		if l.cur >= len(l.src) {
			break
		}

		c := l.src[l.cur]
		switch {
		case c == '\n':
			l.scanNewline()
		case c == ' ' || c == '\t' || c == '\r':
			l.cur++
		case c == '#':
			l.skipComment()
		case c == '\\' && l.cur+1 < len(l.src) && l.src[l.cur+1] == '\n':
			// explicit line joining
			l.cur += 2
			l.line++
		case c == '\\' && l.cur+2 < len(l.src) && l.src[l.cur+1] == '\r' && l.src[l.cur+2] == '\n':
			l.cur += 3
			l.line++
		case isIdentStart(c):
			if err := l.scanIdentifier(); err != nil {
				return nil, err
			}
		case isDigit(c) || (c == '.' && l.cur+1 < len(l.src) && isDigit(l.src[l.cur+1])):
			l.scanNumber()
		case c == '"' || c == '\'':
			if err := l.scanString(l.cur); err != nil {
				return nil, err
			}
		default:
			if err := l.scanOperator(); err != nil {
				return nil, err
			}
		}
	}

	if len(l.openBracket) > 0 {
		open := l.openBracket[len(l.openBracket)-1]
		return nil, l.errAt(open, fmt.Sprintf("unexpected end of file: unclosed %q", l.src[open]))
	}
	if !l.atLineStart {
		l.emit(types.KindNewline, l.cur, l.cur)
	}
	for len(l.indents) > 1 {
		l.indents = l.indents[:len(l.indents)-1]
		l.emit(types.KindDedent, l.cur, l.cur)
	}
	l.emit(types.KindEOF, l.cur, l.cur)
	return l.tokens, nil
}

// scanIndentation measures the indentation of the next significant line,
// emitting indent/dedent tokens against the indentation stack. Blank and
// comment-only lines are consumed without affecting indentation.
func (l *Lexer) scanIndentation() error {
	for {
		width := 0
		sawSpace := false
		for l.cur < len(l.src) {
			switch l.src[l.cur] {
			case ' ':
				width++
				sawSpace = true
				l.cur++
				continue
			case '\t':
				if sawSpace {
					return l.errAt(l.cur, "inconsistent use of tabs and spaces in indentation")
				}
				width = (width/tabSize + 1) * tabSize
				l.cur++
				continue
			case '\r':
				l.cur++
				continue
			}
			break
		}
		if l.cur >= len(l.src) {
			// Trailing whitespace before EOF; closing dedents are emitted
			// by Scan. atLineStart stays set so no newline is synthesized.
			return nil
		}
		switch l.src[l.cur] {
		case '\n':
			l.cur++
			l.line++
			continue
		case '#':
			l.skipComment()
			continue
		}

		top := l.indents[len(l.indents)-1]
		if width > top {
			l.indents = append(l.indents, width)
			l.emit(types.KindIndent, l.cur, l.cur)
		} else {
			for width < l.indents[len(l.indents)-1] {
				l.indents = l.indents[:len(l.indents)-1]
				l.emit(types.KindDedent, l.cur, l.cur)
			}
			if width != l.indents[len(l.indents)-1] {
				return l.errAt(l.cur, "unindent does not match any outer indentation level")
			}
		}
		l.atLineStart = false
		return nil
	}
}

func (l *Lexer) scanNewline() {
	if len(l.openBracket) > 0 {
		// Implicit line joining inside brackets.
		l.cur++
		l.line++
		return
	}
	l.emit(types.KindNewline, l.cur, l.cur+1)
	l.cur++
	l.line++
	l.atLineStart = true
}

func (l *Lexer) skipComment() {
	for l.cur < len(l.src) && l.src[l.cur] != '\n' {
		l.cur++
	}
}

// scanIdentifier scans an identifier or keyword. An identifier that forms a
// valid string prefix (r, b, u, f and two-letter combinations) immediately
// followed by a quote is rescanned as a string literal.
func (l *Lexer) scanIdentifier() error {
	start := l.cur
	for l.cur < len(l.src) && isIdentByte(l.src[l.cur]) {
		l.cur++
	}
	name := l.src[start:l.cur]

	if l.cur < len(l.src) && (l.src[l.cur] == '"' || l.src[l.cur] == '\'') && isStringPrefix(name) {
		return l.scanString(start)
	}
	if keywords[name] {
		l.emit(types.KindKeyword, start, l.cur)
	} else {
		l.emit(types.KindIdentifier, start, l.cur)
	}
	return nil
}

// scanString scans a string literal starting at the opening quote (or at
// the start of its prefix letters). Handles single- and triple-quoted
// forms; the token covers the whole literal including quotes and prefix.
func (l *Lexer) scanString(start int) error {
	startLine := l.line
	quote := l.src[l.cur]
	openOffset := l.cur

	triple := l.cur+2 < len(l.src) && l.src[l.cur+1] == quote && l.src[l.cur+2] == quote
	if triple {
		l.cur += 3
	} else {
		l.cur++
	}

	for l.cur < len(l.src) {
		c := l.src[l.cur]
		if c == '\\' && l.cur+1 < len(l.src) {
			if l.src[l.cur+1] == '\n' {
				l.line++
			}
			l.cur += 2
			continue
		}
		if c == '\n' {
			if !triple {
				return l.errAtLine(openOffset, startLine, "unterminated string literal")
			}
			l.line++
			l.cur++
			continue
		}
		if c == quote {
			if !triple {
				l.cur++
				l.emitAtLine(types.KindString, start, l.cur, startLine)
				return nil
			}
			if l.cur+2 < len(l.src) && l.src[l.cur+1] == quote && l.src[l.cur+2] == quote {
				l.cur += 3
				l.emitAtLine(types.KindString, start, l.cur, startLine)
				return nil
			}
			// Lone quote inside a triple-quoted string; check the tail case
			// where exactly the closing quotes remain.
			if l.cur+2 == len(l.src) && l.src[l.cur+1] == quote {
				break
			}
			l.cur++
			continue
		}
		l.cur++
	}
	return l.errAtLine(openOffset, startLine, "unterminated string literal")
}

// scanNumber scans a numeric literal. The engine only needs the span, so
// the scan is permissive about the exact grammar.
func (l *Lexer) scanNumber() {
	start := l.cur
	if l.src[l.cur] == '0' && l.cur+1 < len(l.src) &&
		(l.src[l.cur+1] == 'x' || l.src[l.cur+1] == 'X' ||
			l.src[l.cur+1] == 'o' || l.src[l.cur+1] == 'O' ||
			l.src[l.cur+1] == 'b' || l.src[l.cur+1] == 'B') {
		l.cur += 2
		for l.cur < len(l.src) && (isHexDigit(l.src[l.cur]) || l.src[l.cur] == '_') {
			l.cur++
		}
		l.emit(types.KindNumber, start, l.cur)
		return
	}
	for l.cur < len(l.src) && (isDigit(l.src[l.cur]) || l.src[l.cur] == '_') {
		l.cur++
	}
	if l.cur < len(l.src) && l.src[l.cur] == '.' {
		l.cur++
		for l.cur < len(l.src) && (isDigit(l.src[l.cur]) || l.src[l.cur] == '_') {
			l.cur++
		}
	}
	if l.cur < len(l.src) && (l.src[l.cur] == 'e' || l.src[l.cur] == 'E') {
		next := l.cur + 1
		if next < len(l.src) && (l.src[next] == '+' || l.src[next] == '-') {
			next++
		}
		if next < len(l.src) && isDigit(l.src[next]) {
			l.cur = next
			for l.cur < len(l.src) && isDigit(l.src[l.cur]) {
				l.cur++
			}
		}
	}
	if l.cur < len(l.src) && (l.src[l.cur] == 'j' || l.src[l.cur] == 'J') {
		l.cur++
	}
	l.emit(types.KindNumber, start, l.cur)
}

func (l *Lexer) scanOperator() error {
	rest := l.src[l.cur:]
	for _, op := range multiOps {
		if strings.HasPrefix(rest, op) {
			l.emit(types.KindOperator, l.cur, l.cur+len(op))
			l.cur += len(op)
			return nil
		}
	}

	c := l.src[l.cur]
	switch c {
	case '(', '[', '{':
		l.openBracket = append(l.openBracket, l.cur)
	case ')', ']', '}':
		if len(l.openBracket) == 0 {
			return l.errAt(l.cur, fmt.Sprintf("unmatched %q", c))
		}
		if !bracketsMatch(l.src[l.openBracket[len(l.openBracket)-1]], c) {
			return l.errAt(l.cur, fmt.Sprintf("closing %q does not match opening %q",
				c, l.src[l.openBracket[len(l.openBracket)-1]]))
		}
		l.openBracket = l.openBracket[:len(l.openBracket)-1]
	case '+', '-', '*', '/', '%', '@', '&', '|', '^', '~',
		'<', '>', '=', '.', ',', ':', ';':
		// single-character operator
	default:
		return l.errAt(l.cur, fmt.Sprintf("invalid character %q", c))
	}
	l.emit(types.KindOperator, l.cur, l.cur+1)
	l.cur++
	return nil
}

func (l *Lexer) emit(kind types.TokenKind, start, end int) {
	l.emitAtLine(kind, start, end, l.line)
}

func (l *Lexer) emitAtLine(kind types.TokenKind, start, end, line int) {
	l.tokens = append(l.tokens, types.Token{Kind: kind, Start: start, End: end, Line: line})
}

func (l *Lexer) errAt(offset int, msg string) error {
	return l.errAtLine(offset, l.line, msg)
}

func (l *Lexer) errAtLine(offset, line int, msg string) error {
	return &types.LexError{Offset: offset, Line: line, Message: msg}
}

// helpers

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentByte(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isStringPrefix(name string) bool {
	if len(name) > 2 {
		return false
	}
	lower := strings.ToLower(name)
	switch lower {
	case "r", "b", "u", "f", "rb", "br", "fr", "rf":
		return true
	}
	return false
}

func bracketsMatch(open, close byte) bool {
	switch open {
	case '(':
		return close == ')'
	case '[':
		return close == ']'
	case '{':
		return close == '}'
	}
	return false
}
