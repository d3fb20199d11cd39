package scope

import (
	"sort"

	"github.com/liasis/introspector/internal/source"
	"github.com/liasis/introspector/pkg/types"
)

// occEvent is one identifier occurrence observed during the structural
// pass, before name resolution.
type occEvent struct {
	scope   int
	name    string
	rng     types.Range
	binding bool
}

// openScope is one entry of the builder's scope stack.
type openScope struct {
	idx       int
	bodyDepth int // indentation depth of the scope body
}

type builder struct {
	buf    *source.Buffer
	tokens []types.Token

	scopes  []Scope
	stack   []openScope
	events  []occEvent
	globals map[int]map[string]bool // scope -> names declared global

	depth       int  // current indentation depth
	pending     bool // a declaration header awaits its indented body
	lastColon   bool // the previous logical line ended with ':'
	lastEnd     int  // end offset of the last content token
	awaitingDoc map[int]bool
}

// Build constructs the scope tree, symbol tables, and occurrence index
// from a token stream. A structural error aborts the whole build with a
// *types.ParseError; no partial tree is returned.
func Build(buf *source.Buffer, tokens []types.Token) (*Tree, error) {
	b := &builder{
		buf:         buf,
		tokens:      tokens,
		globals:     make(map[int]map[string]bool),
		awaitingDoc: make(map[int]bool),
	}
	b.scopes = append(b.scopes, Scope{
		Kind:    types.ScopeModule,
		Range:   types.Range{Start: 0, End: buf.Len()},
		Parent:  -1,
		Symbols: make(map[string]*SymbolEntry),
	})
	b.stack = []openScope{{idx: Root, bodyDepth: 0}}
	b.awaitingDoc[Root] = true

	if err := b.run(); err != nil {
		return nil, err
	}

	tree := &Tree{scopes: b.scopes}
	b.resolve(tree)
	if err := tree.validate(); err != nil {
		return nil, err
	}
	return tree, nil
}

func (b *builder) run() error {
	i := 0
	for i < len(b.tokens) {
		tok := b.tokens[i]
		switch tok.Kind {
		case types.KindIndent:
			b.depth++
			switch {
			case b.pending:
				b.stack[len(b.stack)-1].bodyDepth = b.depth
				b.pending = false
			case b.lastColon:
				// anonymous block (if/for/while/try body); no scope
			default:
				return b.parseErr(tok.Start, "unexpected indent")
			}
			i++
		case types.KindDedent:
			b.depth--
			for len(b.stack) > 1 && b.stack[len(b.stack)-1].bodyDepth > b.depth {
				b.closeScope(b.lastEnd)
			}
			i++
		case types.KindNewline:
			i++
		case types.KindEOF:
			if b.pending {
				return b.parseErr(tok.Start, "expected an indented block")
			}
			for len(b.stack) > 1 {
				b.closeScope(b.lastEnd)
			}
			i++
		default:
			if b.pending {
				return b.parseErr(tok.Start, "expected an indented block")
			}
			j := i
			for j < len(b.tokens) &&
				b.tokens[j].Kind != types.KindNewline &&
				b.tokens[j].Kind != types.KindEOF {
				if b.tokens[j].End > b.lastEnd {
					b.lastEnd = b.tokens[j].End
				}
				j++
			}
			stmt := b.tokens[i:j]
			if err := b.processStatement(stmt, b.current()); err != nil {
				return err
			}
			b.lastColon = len(stmt) > 0 && b.text(stmt[len(stmt)-1]) == ":"
			i = j
		}
	}
	return nil
}

func (b *builder) current() int {
	return b.stack[len(b.stack)-1].idx
}

func (b *builder) closeScope(end int) {
	idx := b.stack[len(b.stack)-1].idx
	b.scopes[idx].Range.End = end
	b.stack = b.stack[:len(b.stack)-1]
}

func (b *builder) text(tok types.Token) string {
	return b.buf.Slice(types.Range{Start: tok.Start, End: tok.End})
}

func (b *builder) parseErr(offset int, msg string) error {
	return &types.ParseError{Offset: offset, Line: b.buf.LineAt(offset), Message: msg}
}

func (b *builder) emit(scopeIdx int, tok types.Token, binding bool) {
	b.events = append(b.events, occEvent{
		scope:   scopeIdx,
		name:    b.text(tok),
		rng:     types.Range{Start: tok.Start, End: tok.End},
		binding: binding,
	})
}

// processStatement handles one logical line: docstring bookkeeping, then
// each ';'-separated simple statement.
func (b *builder) processStatement(stmt []types.Token, cur int) error {
	if b.awaitingDoc[cur] {
		if len(stmt) == 1 && stmt[0].Kind == types.KindString {
			b.scopes[cur].DocRange = types.Range{Start: stmt[0].Start, End: stmt[0].End}
		}
		b.awaitingDoc[cur] = false
	}

	depth := 0
	start := 0
	for i, tok := range stmt {
		if tok.Kind != types.KindOperator {
			continue
		}
		switch b.text(tok) {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
		case ";":
			if depth == 0 {
				if err := b.processSimple(stmt[start:i], cur); err != nil {
					return err
				}
				start = i + 1
			}
		}
	}
	return b.processSimple(stmt[start:], cur)
}

// processSimple handles one simple or compound statement head.
func (b *builder) processSimple(stmt []types.Token, cur int) error {
	if len(stmt) == 0 {
		return nil
	}

	k := 0
	if stmt[0].Kind == types.KindKeyword && b.text(stmt[0]) == "async" && len(stmt) > 1 {
		k = 1
	}

	tok := stmt[k]
	if tok.Kind == types.KindKeyword {
		switch b.text(tok) {
		case "def":
			return b.processDef(stmt, k, cur)
		case "class":
			return b.processClass(stmt, k, cur)
		case "import":
			b.processImport(stmt[k+1:], cur)
			return nil
		case "from":
			b.processFromImport(stmt[k+1:], cur)
			return nil
		case "global":
			b.processGlobal(stmt[k+1:], cur)
			return nil
		case "nonlocal":
			// approximate: occurrences resolve outward like any use
			b.scanUses(stmt[k+1:], cur)
			return nil
		case "for":
			return b.processFor(stmt, k, cur)
		case "if", "elif", "while", "with", "except", "else", "try", "finally":
			return b.processCompoundHead(stmt, k, cur)
		case "pass", "break", "continue":
			return nil
		case "return", "raise", "assert", "del", "yield", "await", "not", "lambda":
			b.scanUses(stmt[k:], cur)
			return nil
		}
	}
	b.scanAssign(stmt[k:], cur)
	return nil
}

// processCompoundHead handles if/while/with/except/... heads: the
// condition is an expression scan (the 'as' rule binds targets), and any
// tokens after the top-level colon form an inline body in the same scope.
func (b *builder) processCompoundHead(stmt []types.Token, k, cur int) error {
	colon := b.topLevelColon(stmt, k+1)
	if colon < 0 {
		b.scanUses(stmt[k+1:], cur)
		return nil
	}
	b.scanUses(stmt[k+1:colon], cur)
	if colon+1 < len(stmt) {
		return b.processSimple(stmt[colon+1:], cur)
	}
	return nil
}

// processFor handles a statement-level for loop: targets bind in the
// current scope, the iterable and inline body scan normally.
func (b *builder) processFor(stmt []types.Token, k, cur int) error {
	pos := k + 1
	depth := 0
	for pos < len(stmt) {
		tok := stmt[pos]
		if tok.Kind == types.KindKeyword && depth == 0 && b.text(tok) == "in" {
			break
		}
		if tok.Kind == types.KindOperator {
			switch b.text(tok) {
			case "(", "[", "{":
				depth++
			case ")", "]", "}":
				depth--
			}
		}
		if tok.Kind == types.KindIdentifier && !b.precededByDot(stmt, pos) {
			b.emit(cur, tok, true)
		}
		pos++
	}
	colon := b.topLevelColon(stmt, pos)
	if colon < 0 {
		b.scanUses(stmt[pos:], cur)
		return nil
	}
	b.scanUses(stmt[pos:colon], cur)
	if colon+1 < len(stmt) {
		return b.processSimple(stmt[colon+1:], cur)
	}
	return nil
}

// processDef handles a function definition header.
func (b *builder) processDef(stmt []types.Token, k, cur int) error {
	if k+1 >= len(stmt) || stmt[k+1].Kind != types.KindIdentifier {
		return b.parseErr(stmt[k].End, "expected function name after 'def'")
	}
	name := stmt[k+1]
	b.emit(cur, name, true)

	idx := b.newScope(types.ScopeFunction, b.text(name), stmt[k].Start, name, cur)

	if k+2 >= len(stmt) || b.text(stmt[k+2]) != "(" {
		return b.parseErr(name.End, "expected '(' after function name")
	}

	// Parameter list: names at paren depth 1 in parameter position bind in
	// the new scope; defaults and annotations evaluate in the enclosing
	// scope.
	var rest []types.Token
	pos := k + 3
	pdepth := 1
	expectParam := true
	for pos < len(stmt) && pdepth > 0 {
		tok := stmt[pos]
		if tok.Kind == types.KindOperator {
			switch b.text(tok) {
			case "(", "[", "{":
				pdepth++
				rest = append(rest, tok)
			case ")", "]", "}":
				pdepth--
				if pdepth > 0 {
					rest = append(rest, tok)
				}
			case ",":
				if pdepth == 1 {
					expectParam = true
				} else {
					rest = append(rest, tok)
				}
			case "*", "**":
				if pdepth != 1 {
					rest = append(rest, tok)
				}
			default:
				rest = append(rest, tok)
			}
			pos++
			continue
		}
		if tok.Kind == types.KindIdentifier && pdepth == 1 && expectParam {
			b.emit(idx, tok, true)
			expectParam = false
		} else {
			rest = append(rest, tok)
		}
		pos++
	}
	if pdepth > 0 {
		return b.parseErr(b.lastEnd, "expected ')'")
	}
	b.scanExpr(rest, cur, idx)

	colon := b.topLevelColon(stmt, pos)
	if colon < 0 {
		return b.parseErr(stmt[len(stmt)-1].End, "expected ':'")
	}
	// return annotation between ')' and ':'
	b.scanExpr(stmt[pos:colon], cur, idx)
	b.scopes[idx].HeaderRange = types.Range{Start: stmt[k].Start, End: stmt[colon].End}

	return b.finishHeader(stmt, colon, idx)
}

// processClass handles a class definition header.
func (b *builder) processClass(stmt []types.Token, k, cur int) error {
	if k+1 >= len(stmt) || stmt[k+1].Kind != types.KindIdentifier {
		return b.parseErr(stmt[k].End, "expected class name after 'class'")
	}
	name := stmt[k+1]
	b.emit(cur, name, true)

	idx := b.newScope(types.ScopeClass, b.text(name), stmt[k].Start, name, cur)

	pos := k + 2
	if pos < len(stmt) && b.text(stmt[pos]) == "(" {
		depth := 1
		pos++
		start := pos
		for pos < len(stmt) && depth > 0 {
			switch b.text(stmt[pos]) {
			case "(", "[", "{":
				depth++
			case ")", "]", "}":
				depth--
			}
			pos++
		}
		if depth > 0 {
			return b.parseErr(b.lastEnd, "expected ')'")
		}
		b.scanExpr(stmt[start:pos-1], cur, idx)
	}

	colon := b.topLevelColon(stmt, pos)
	if colon < 0 {
		return b.parseErr(stmt[len(stmt)-1].End, "expected ':'")
	}
	b.scopes[idx].HeaderRange = types.Range{Start: stmt[k].Start, End: stmt[colon].End}

	return b.finishHeader(stmt, colon, idx)
}

// finishHeader closes an inline body or leaves the new scope pending its
// indented block.
func (b *builder) finishHeader(stmt []types.Token, colon, idx int) error {
	b.awaitingDoc[idx] = true
	if colon+1 < len(stmt) {
		// one-line body: "def f(): return x"
		b.scopes[idx].Range.End = stmt[len(stmt)-1].End
		if err := b.processStatement(stmt[colon+1:], idx); err != nil {
			return err
		}
		return nil
	}
	b.stack = append(b.stack, openScope{idx: idx, bodyDepth: -1})
	b.pending = true
	return nil
}

func (b *builder) newScope(kind types.ScopeKind, name string, start int, nameTok types.Token, parent int) int {
	idx := len(b.scopes)
	b.scopes = append(b.scopes, Scope{
		Kind:      kind,
		Name:      name,
		Range:     types.Range{Start: start, End: start},
		NameRange: types.Range{Start: nameTok.Start, End: nameTok.End},
		Parent:    parent,
		Symbols:   make(map[string]*SymbolEntry),
	})
	b.scopes[parent].Children = append(b.scopes[parent].Children, idx)
	return idx
}

// processImport handles "import a.b.c as d, e": each clause binds its
// alias, or the first component of the dotted path.
func (b *builder) processImport(rest []types.Token, cur int) {
	first := true
	afterAs := false
	for i, tok := range rest {
		switch {
		case tok.Kind == types.KindOperator && b.text(tok) == ",":
			first = true
			afterAs = false
		case tok.Kind == types.KindKeyword && b.text(tok) == "as":
			afterAs = true
		case tok.Kind == types.KindIdentifier && afterAs:
			b.emit(cur, tok, true)
			afterAs = false
			b.retractClauseBinding(rest, i, cur)
		case tok.Kind == types.KindIdentifier && first:
			b.emit(cur, tok, true)
			first = false
		}
	}
}

// retractClauseBinding drops the binding emitted for a dotted path when an
// alias supersedes it ("import os.path as p" binds only p).
func (b *builder) retractClauseBinding(rest []types.Token, asPos, cur int) {
	if len(b.events) < 2 {
		return
	}
	prev := b.events[len(b.events)-2]
	if prev.scope == cur && prev.binding && prev.rng.End <= rest[asPos].Start {
		b.events = append(b.events[:len(b.events)-2], b.events[len(b.events)-1])
	}
}

// processFromImport handles "from m import a as b, c": imported names (or
// their aliases) bind; the module path produces no occurrences.
func (b *builder) processFromImport(rest []types.Token, cur int) {
	pos := 0
	for pos < len(rest) {
		if rest[pos].Kind == types.KindKeyword && b.text(rest[pos]) == "import" {
			pos++
			break
		}
		pos++
	}
	pending := -1 // index of the clause name, awaiting a possible alias
	flush := func() {
		if pending >= 0 {
			b.emit(cur, rest[pending], true)
			pending = -1
		}
	}
	for ; pos < len(rest); pos++ {
		tok := rest[pos]
		switch {
		case tok.Kind == types.KindKeyword && b.text(tok) == "as":
			pending = -1 // alias supersedes the imported name
		case tok.Kind == types.KindIdentifier:
			flush()
			pending = pos
		case tok.Kind == types.KindOperator && b.text(tok) == ",":
			flush()
		}
	}
	flush()
}

// processGlobal records "global x, y": bindings in this scope redirect to
// the module scope for the declared names.
func (b *builder) processGlobal(rest []types.Token, cur int) {
	if b.globals[cur] == nil {
		b.globals[cur] = make(map[string]bool)
	}
	for _, tok := range rest {
		if tok.Kind == types.KindIdentifier {
			b.globals[cur][b.text(tok)] = true
			b.emit(cur, tok, false)
		}
	}
}

// topLevelColon returns the index of the first ':' operator at bracket
// depth 0 at or after pos, or -1.
func (b *builder) topLevelColon(stmt []types.Token, pos int) int {
	depth := 0
	for i := pos; i < len(stmt); i++ {
		if stmt[i].Kind != types.KindOperator {
			continue
		}
		switch b.text(stmt[i]) {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
		case ":":
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func (b *builder) precededByDot(stmt []types.Token, pos int) bool {
	return pos > 0 && stmt[pos-1].Kind == types.KindOperator && b.text(stmt[pos-1]) == "."
}

// resolve runs the two-phase name resolution over the collected events:
// first bindings establish each scope's symbol table, then every
// occurrence attaches to the innermost enclosing definition.
func (b *builder) resolve(tree *Tree) {
	for _, ev := range b.events {
		if !ev.binding {
			continue
		}
		scopeIdx := ev.scope
		if b.globals[ev.scope][ev.name] {
			scopeIdx = Root
		}
		s := &tree.scopes[scopeIdx]
		if _, ok := s.Symbols[ev.name]; !ok {
			s.Symbols[ev.name] = &SymbolEntry{
				Name:      ev.name,
				Scope:     scopeIdx,
				DefOffset: ev.rng.Start,
			}
		}
	}
	for _, ev := range b.events {
		entry := tree.Lookup(ev.scope, ev.name)
		if entry == nil {
			// never bound anywhere on the chain: builtins and typos land
			// in the module table with a sentinel definition offset
			entry = &SymbolEntry{Name: ev.name, Scope: Root, DefOffset: -1}
			tree.scopes[Root].Symbols[ev.name] = entry
		}
		entry.Occurrences = append(entry.Occurrences, ev.rng)
	}
	for idx := range tree.scopes {
		for _, entry := range tree.scopes[idx].Symbols {
			sort.Slice(entry.Occurrences, func(i, j int) bool {
				return entry.Occurrences[i].Start < entry.Occurrences[j].Start
			})
		}
	}
}
