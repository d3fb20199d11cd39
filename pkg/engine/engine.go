package engine

import (
	"sync"
	"sync/atomic"

	"github.com/liasis/introspector/internal/docs"
	"github.com/liasis/introspector/internal/folding"
	"github.com/liasis/introspector/internal/lexer"
	"github.com/liasis/introspector/internal/nav"
	"github.com/liasis/introspector/internal/scope"
	"github.com/liasis/introspector/internal/source"
	"github.com/liasis/introspector/pkg/types"
)

// parseResult is the immutable output of one successful parse. Queries
// read whichever result was current when they started; a concurrent Parse
// never mutates a published result.
type parseResult struct {
	buf    *source.Buffer
	tokens []types.Token
	folds  []types.LineRange
	tree   *scope.Tree
	nav    map[types.Range]types.NavigationEntry
	docs   *docs.Index
}

// Engine is the query facade over the introspection pipeline. The zero
// value is ready to use; queries before the first successful Parse return
// ErrNotParsed.
type Engine struct {
	result  atomic.Pointer[parseResult]
	parseMu sync.Mutex
}

// New returns an empty Engine.
func New() *Engine {
	return &Engine{}
}

// Parse runs the full pipeline over the text and atomically replaces the
// current result. On failure the previous result stays untouched and the
// error is a *types.LexError or *types.ParseError locating the failure.
func (e *Engine) Parse(text string) error {
	e.parseMu.Lock()
	defer e.parseMu.Unlock()

	buf := source.New(text)
	tokens, err := lexer.New(text).Scan()
	if err != nil {
		return err
	}
	tree, err := scope.Build(buf, tokens)
	if err != nil {
		return err
	}
	res := &parseResult{
		buf:    buf,
		tokens: tokens,
		folds:  folding.Extract(buf, tokens),
		tree:   tree,
		nav:    nav.Extract(buf, tree),
		docs:   docs.Extract(buf, tree),
	}
	e.result.Store(res)
	return nil
}

// current returns the latest result or ErrNotParsed.
func (e *Engine) current() (*parseResult, error) {
	res := e.result.Load()
	if res == nil {
		return nil, types.ErrNotParsed
	}
	return res, nil
}

// NestableLines returns the foldable line ranges of the current parse,
// sorted by start line. Sources without blocks yield an empty slice.
func (e *Engine) NestableLines() ([]types.LineRange, error) {
	res, err := e.current()
	if err != nil {
		return nil, err
	}
	out := make([]types.LineRange, len(res.folds))
	copy(out, res.folds)
	return out, nil
}

// VariablesAt returns every name visible at the byte offset mapped to the
// offset of its first binding, inner scopes shadowing outer ones.
//
// Valid offsets run from 0 through len(source) inclusive: the end-of-source
// offset is the cursor position after the last byte, which editors query
// constantly. The same rule applies to every offset-taking query.
func (e *Engine) VariablesAt(offset int) (map[string]int, error) {
	res, err := e.current()
	if err != nil {
		return nil, err
	}
	if offset < 0 || offset > res.buf.Len() {
		return nil, types.ErrOffsetOutOfRange
	}
	return res.tree.VisibleAt(offset), nil
}

// OccurrencesAt returns the source ranges of every occurrence of the
// identifier at the byte offset, bindings and uses alike, resolved in the
// offset's scope chain. Offsets not on an identifier, and names never
// bound anywhere on the chain (builtins, typos), yield an empty slice.
func (e *Engine) OccurrencesAt(offset int) ([]types.Range, error) {
	res, err := e.current()
	if err != nil {
		return nil, err
	}
	if offset < 0 || offset > res.buf.Len() {
		return nil, types.ErrOffsetOutOfRange
	}
	word := res.buf.WordAt(offset)
	if word.IsZero() {
		return []types.Range{}, nil
	}
	name := res.buf.Slice(word)
	entry := res.tree.Lookup(res.tree.InnermostAt(offset), name)
	if entry == nil || entry.DefOffset < 0 {
		return []types.Range{}, nil
	}
	out := make([]types.Range, len(entry.Occurrences))
	copy(out, entry.Occurrences)
	return out, nil
}

// Documentation returns the module docstring. A module without one
// reports ok=false with no error.
func (e *Engine) Documentation() (string, bool, error) {
	res, err := e.current()
	if err != nil {
		return "", false, err
	}
	text, ok := res.docs.Module()
	return text, ok, nil
}

// DocumentationAt returns the docstring of the innermost documented
// declaration containing the byte offset, walking outward through
// undocumented scopes up to the module.
func (e *Engine) DocumentationAt(offset int) (string, bool, error) {
	res, err := e.current()
	if err != nil {
		return "", false, err
	}
	if offset < 0 || offset > res.buf.Len() {
		return "", false, types.ErrOffsetOutOfRange
	}
	for idx := res.tree.InnermostAt(offset); idx >= 0; idx = res.tree.At(idx).Parent {
		if text, ok := res.docs.ForScope(idx); ok {
			return text, true, nil
		}
	}
	return "", false, nil
}

// Navigation returns one entry per function, class, and method, keyed by
// the declaration's source range.
func (e *Engine) Navigation() (map[types.Range]types.NavigationEntry, error) {
	res, err := e.current()
	if err != nil {
		return nil, err
	}
	out := make(map[types.Range]types.NavigationEntry, len(res.nav))
	for k, v := range res.nav {
		out[k] = v
	}
	return out, nil
}

// Docstrings returns every docstring keyed by its declaration's range,
// decoded. The module docstring is keyed by the whole-source range.
func (e *Engine) Docstrings() (map[types.Range]types.DocumentationRecord, error) {
	res, err := e.current()
	if err != nil {
		return nil, err
	}
	records := res.docs.Records()
	out := make(map[types.Range]types.DocumentationRecord, len(records))
	for k, v := range records {
		out[k] = v
	}
	return out, nil
}

// Source returns the text of the current parse.
func (e *Engine) Source() (string, error) {
	res, err := e.current()
	if err != nil {
		return "", err
	}
	return res.buf.Text(), nil
}
