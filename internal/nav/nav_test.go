package nav

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liasis/introspector/internal/lexer"
	"github.com/liasis/introspector/internal/scope"
	"github.com/liasis/introspector/internal/source"
	"github.com/liasis/introspector/pkg/types"
)

func extract(t *testing.T, src string) map[types.Range]types.NavigationEntry {
	t.Helper()
	tokens, err := lexer.New(src).Scan()
	require.NoError(t, err)
	buf := source.New(src)
	tree, err := scope.Build(buf, tokens)
	require.NoError(t, err)
	return Extract(buf, tree)
}

func byName(entries map[types.Range]types.NavigationEntry) map[string]types.NavigationEntry {
	out := make(map[string]types.NavigationEntry, len(entries))
	for _, e := range entries {
		out[e.Name] = e
	}
	return out
}

func TestExtract_ClassAndMethod(t *testing.T) {
	src := "class C:\n    def m(self):\n        pass\n"
	entries := extract(t, src)
	require.Len(t, entries, 2)

	named := byName(entries)
	c := named["C"]
	assert.Equal(t, types.NavClass, c.Kind)
	assert.Equal(t, "C", c.Title)
	assert.Equal(t, types.Range{Start: 0, End: 38}, c.Range)

	m := named["m"]
	assert.Equal(t, types.NavMethod, m.Kind)
	assert.Equal(t, "m(self)", m.Title)
	assert.Equal(t, 13, m.Range.Start)
}

func TestExtract_TopLevelFunction(t *testing.T) {
	src := "def process(data, limit=10):\n    return data[:limit]\n"
	entries := extract(t, src)
	require.Len(t, entries, 1)

	e := byName(entries)["process"]
	assert.Equal(t, types.NavFunction, e.Kind)
	assert.Equal(t, "process(data, limit=10)", e.Title)
	require.NoError(t, e.Validate())
}

func TestExtract_NestedFunctionIsFunction(t *testing.T) {
	src := "def outer():\n    def inner():\n        pass\n"
	entries := extract(t, src)

	named := byName(entries)
	assert.Equal(t, types.NavFunction, named["outer"].Kind)
	// nested defs are functions, not methods
	assert.Equal(t, types.NavFunction, named["inner"].Kind)
}

func TestExtract_MultilineHeaderTitle(t *testing.T) {
	src := "def f(a,\n      b):\n    pass\n"
	entries := extract(t, src)

	e := byName(entries)["f"]
	assert.Equal(t, "f(a, ...", e.Title)
}

func TestExtract_ClassWithBasesTitle(t *testing.T) {
	src := "class Handler(Base, Mixin):\n    pass\n"
	entries := extract(t, src)

	e := byName(entries)["Handler"]
	assert.Equal(t, types.NavClass, e.Kind)
	assert.Equal(t, "Handler(Base, Mixin)", e.Title)
}

func TestExtract_ComprehensionsExcluded(t *testing.T) {
	src := "def f(xs):\n    return [x for x in xs]\n"
	entries := extract(t, src)
	assert.Len(t, entries, 1)
}

func TestExtract_EmptySource(t *testing.T) {
	entries := extract(t, "x = 1\n")
	assert.Empty(t, entries)
}
