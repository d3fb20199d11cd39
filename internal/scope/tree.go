package scope

import (
	"fmt"

	"github.com/liasis/introspector/pkg/types"
)

// Root is the arena index of the module scope.
const Root = 0

// SymbolEntry records one name defined in one scope: where it was first
// bound and every occurrence (binding or use) that resolved to it, in
// source order. Occurrences from descendant scopes that do not rebind the
// name resolve here too.
type SymbolEntry struct {
	Name        string
	Scope       int // arena index of the defining scope
	DefOffset   int // byte offset of the first binding occurrence
	Occurrences []types.Range
}

// Scope is one lexical block. Scopes live in the Tree's arena and refer to
// each other by index, so parent back-references cannot form ownership
// cycles.
type Scope struct {
	Kind types.ScopeKind
	Name string // empty for module and comprehension scopes

	// Range covers the whole scope: for declarations, from the def/class
	// keyword through the last token of the indented body.
	Range types.Range
	// NameRange covers the declaration identifier; zero for module and
	// comprehension scopes.
	NameRange types.Range
	// HeaderRange covers the declaration header through its colon; zero
	// for module and comprehension scopes.
	HeaderRange types.Range
	// DocRange covers the scope's docstring literal, quotes included;
	// zero when the scope has none.
	DocRange types.Range

	Parent   int // arena index; -1 for the module scope
	Children []int

	Symbols map[string]*SymbolEntry
}

// Tree is the arena-backed scope tree produced by one parse. It is
// immutable after Build returns; all queries are read-only.
type Tree struct {
	scopes []Scope
}

// Len returns the number of scopes in the tree.
func (t *Tree) Len() int {
	return len(t.scopes)
}

// At returns the scope at the given arena index.
func (t *Tree) At(idx int) *Scope {
	return &t.scopes[idx]
}

// InnermostAt returns the arena index of the innermost scope whose range
// contains the offset. Offsets outside every declaration resolve to the
// module scope, which spans the whole source.
func (t *Tree) InnermostAt(offset int) int {
	idx := Root
	for {
		descended := false
		for _, child := range t.scopes[idx].Children {
			if t.scopes[child].Range.Contains(offset) {
				idx = child
				descended = true
				break
			}
		}
		if !descended {
			return idx
		}
	}
}

// Lookup resolves a name from the given scope outward and returns the
// entry of the innermost enclosing scope defining it, or nil.
func (t *Tree) Lookup(idx int, name string) *SymbolEntry {
	for idx >= 0 {
		if entry, ok := t.scopes[idx].Symbols[name]; ok {
			return entry
		}
		idx = t.scopes[idx].Parent
	}
	return nil
}

// VisibleAt returns every name visible at the offset mapped to its
// first-definition offset: the union of the containing scope's own
// definitions and all ancestor definitions, inner shadowing outer.
func (t *Tree) VisibleAt(offset int) map[string]int {
	visible := make(map[string]int)
	for idx := t.InnermostAt(offset); idx >= 0; idx = t.scopes[idx].Parent {
		for name, entry := range t.scopes[idx].Symbols {
			if entry.DefOffset < 0 {
				continue // unresolved name, not a binding
			}
			if _, shadowed := visible[name]; !shadowed {
				visible[name] = entry.DefOffset
			}
		}
	}
	return visible
}

// Walk calls fn for every scope in depth-first source order, starting at
// the module scope.
func (t *Tree) Walk(fn func(idx int, s *Scope)) {
	t.walk(Root, fn)
}

func (t *Tree) walk(idx int, fn func(idx int, s *Scope)) {
	fn(idx, &t.scopes[idx])
	for _, child := range t.scopes[idx].Children {
		t.walk(child, fn)
	}
}

// validate checks the structural invariants of the tree: the module scope
// is the root, child ranges nest inside their parents, and sibling ranges
// do not overlap. A violation is a defect in the builder, not in the
// input, so it surfaces as an internal error.
func (t *Tree) validate() error {
	if len(t.scopes) == 0 || t.scopes[Root].Kind != types.ScopeModule {
		return fmt.Errorf("internal: tree has no module root")
	}
	for idx := range t.scopes {
		s := &t.scopes[idx]
		for i, child := range s.Children {
			c := &t.scopes[child]
			if c.Parent != idx {
				return fmt.Errorf("internal: scope %d has wrong parent link", child)
			}
			if !s.Range.ContainsRange(c.Range) {
				return fmt.Errorf("internal: scope %d range %v escapes parent %v", child, c.Range, s.Range)
			}
			if i > 0 {
				prev := &t.scopes[s.Children[i-1]]
				if c.Range.Start < prev.Range.End {
					return fmt.Errorf("internal: sibling scopes %d and %d overlap", s.Children[i-1], child)
				}
			}
		}
	}
	return nil
}
