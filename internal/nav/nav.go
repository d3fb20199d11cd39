// Package nav builds the flat navigation index editors use for outline
// views: one entry per function, class, or method declaration, keyed by
// the declaration's source range so hierarchy stays reconstructable from
// containment.
package nav

import (
	"strings"

	"github.com/liasis/introspector/internal/scope"
	"github.com/liasis/introspector/internal/source"
	"github.com/liasis/introspector/pkg/types"
)

// Extract walks the scope tree and returns one NavigationEntry per
// declaration scope. Comprehension scopes never appear.
func Extract(buf *source.Buffer, tree *scope.Tree) map[types.Range]types.NavigationEntry {
	entries := make(map[types.Range]types.NavigationEntry)
	tree.Walk(func(idx int, s *scope.Scope) {
		var kind types.NavKind
		switch s.Kind {
		case types.ScopeClass:
			kind = types.NavClass
		case types.ScopeFunction:
			if tree.At(s.Parent).Kind == types.ScopeClass {
				kind = types.NavMethod
			} else {
				kind = types.NavFunction
			}
		default:
			return
		}
		entries[s.Range] = types.NavigationEntry{
			Name:  s.Name,
			Title: title(buf, s),
			Kind:  kind,
			Range: s.Range,
		}
	})
	return entries
}

// title renders the outline label for a declaration: the name plus the
// parenthesized list from the header's first line, with "..." marking
// headers that continue past it.
func title(buf *source.Buffer, s *scope.Scope) string {
	line := buf.LineAt(s.HeaderRange.Start)
	lineEnd := buf.OffsetOf(line) + len(buf.Line(line))
	if s.HeaderRange.End <= lineEnd {
		t := buf.Slice(types.Range{Start: s.NameRange.Start, End: s.HeaderRange.End})
		return strings.TrimSuffix(strings.TrimSpace(t), ":")
	}
	t := buf.Slice(types.Range{Start: s.NameRange.Start, End: lineEnd})
	return strings.TrimSpace(t) + " ..."
}
