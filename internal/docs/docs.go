// Package docs extracts and decodes docstrings: the bare string literal
// opening the module or a def/class body, with quotes stripped and escape
// sequences processed for non-raw forms.
package docs

import (
	"strings"

	"github.com/liasis/introspector/internal/scope"
	"github.com/liasis/introspector/internal/source"
	"github.com/liasis/introspector/pkg/types"
)

// Index holds the decoded docstrings of one parse, addressable by scope
// and by declaration range.
type Index struct {
	byScope map[int]string
	records map[types.Range]types.DocumentationRecord
}

// Extract decodes the docstring of every scope that has one.
func Extract(buf *source.Buffer, tree *scope.Tree) *Index {
	d := &Index{
		byScope: make(map[int]string),
		records: make(map[types.Range]types.DocumentationRecord),
	}
	tree.Walk(func(idx int, s *scope.Scope) {
		if s.DocRange.IsZero() {
			return
		}
		text := Decode(buf.Slice(s.DocRange))
		d.byScope[idx] = text
		d.records[s.Range] = types.DocumentationRecord{Range: s.DocRange, Text: text}
	})
	return d
}

// ForScope returns the decoded docstring of the scope at the arena index.
func (d *Index) ForScope(idx int) (string, bool) {
	text, ok := d.byScope[idx]
	return text, ok
}

// Module returns the module docstring.
func (d *Index) Module() (string, bool) {
	return d.ForScope(scope.Root)
}

// Records returns every docstring keyed by its declaration's range. The
// module's record is keyed by the whole-source range.
func (d *Index) Records() map[types.Range]types.DocumentationRecord {
	return d.records
}

// Decode turns a string literal token, prefixes and quotes included, into
// its text. Raw literals keep their backslashes; all other forms have
// escape sequences processed.
func Decode(literal string) string {
	raw := false
	i := 0
	for i < len(literal) {
		switch literal[i] {
		case 'r', 'R':
			raw = true
		case 'b', 'B', 'u', 'U', 'f', 'F':
		default:
			goto prefixDone
		}
		i++
	}
prefixDone:
	body := literal[i:]
	for _, q := range []string{`"""`, "'''", `"`, "'"} {
		if strings.HasPrefix(body, q) {
			body = strings.TrimPrefix(body, q)
			body = strings.TrimSuffix(body, q)
			break
		}
	}
	if raw {
		return body
	}
	return processEscapes(body)
}

var simpleEscapes = map[byte]byte{
	'n': '\n', 't': '\t', 'r': '\r', 'a': '\a', 'b': '\b',
	'f': '\f', 'v': '\v', '\\': '\\', '\'': '\'', '"': '"',
}

// processEscapes resolves backslash escapes the way Python does for
// non-raw literals: unknown escapes keep their backslash.
func processEscapes(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var out strings.Builder
	out.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			out.WriteByte(s[i])
			continue
		}
		c := s[i+1]
		if b, ok := simpleEscapes[c]; ok {
			out.WriteByte(b)
			i++
			continue
		}
		switch {
		case c == '\n':
			i++ // line continuation
		case c == 'x' && i+3 < len(s) && isHex(s[i+2]) && isHex(s[i+3]):
			out.WriteByte(hexVal(s[i+2])<<4 | hexVal(s[i+3]))
			i += 3
		case c >= '0' && c <= '7':
			v, n := 0, 0
			for n < 3 && i+1+n < len(s) && s[i+1+n] >= '0' && s[i+1+n] <= '7' {
				v = v<<3 | int(s[i+1+n]-'0')
				n++
			}
			out.WriteByte(byte(v))
			i += n
		case (c == 'u' && hexRun(s, i+2, 4)) || (c == 'U' && hexRun(s, i+2, 8)):
			n := 4
			if c == 'U' {
				n = 8
			}
			v := 0
			for j := 0; j < n; j++ {
				v = v<<4 | int(hexVal(s[i+2+j]))
			}
			out.WriteRune(rune(v))
			i += 1 + n
		default:
			out.WriteByte('\\')
		}
	}
	return out.String()
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexVal(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

func hexRun(s string, from, n int) bool {
	if from+n > len(s) {
		return false
	}
	for j := 0; j < n; j++ {
		if !isHex(s[from+j]) {
			return false
		}
	}
	return true
}
