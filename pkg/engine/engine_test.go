package engine

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liasis/introspector/pkg/types"
)

func parsed(t *testing.T, src string) *Engine {
	t.Helper()
	e := New()
	require.NoError(t, e.Parse(src))
	return e
}

func TestQueriesBeforeParse(t *testing.T) {
	e := New()

	_, err := e.NestableLines()
	assert.ErrorIs(t, err, types.ErrNotParsed)
	_, err = e.VariablesAt(0)
	assert.ErrorIs(t, err, types.ErrNotParsed)
	_, err = e.OccurrencesAt(0)
	assert.ErrorIs(t, err, types.ErrNotParsed)
	_, _, err = e.Documentation()
	assert.ErrorIs(t, err, types.ErrNotParsed)
	_, err = e.Navigation()
	assert.ErrorIs(t, err, types.ErrNotParsed)
	_, err = e.Source()
	assert.ErrorIs(t, err, types.ErrNotParsed)
}

func TestFunctionWithLocal(t *testing.T) {
	src := "def f():\n    x = 1\n    return x\n"
	e := parsed(t, src)

	folds, err := e.NestableLines()
	require.NoError(t, err)
	assert.Equal(t, []types.LineRange{{StartLine: 1, EndLine: 3}}, folds)

	xOffset := strings.Index(src, "x = 1")
	vars, err := e.VariablesAt(xOffset)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"x": xOffset, "f": 4}, vars)

	occs, err := e.OccurrencesAt(xOffset)
	require.NoError(t, err)
	assert.Equal(t, []types.Range{
		{Start: xOffset, End: xOffset + 1},
		{Start: strings.LastIndex(src, "x"), End: strings.LastIndex(src, "x") + 1},
	}, occs)
}

func TestClassNavigation(t *testing.T) {
	src := "class C:\n    def m(self):\n        pass\n"
	e := parsed(t, src)

	entries, err := e.Navigation()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var class, method types.NavigationEntry
	for _, entry := range entries {
		switch entry.Kind {
		case types.NavClass:
			class = entry
		case types.NavMethod:
			method = entry
		}
	}
	assert.Equal(t, "C", class.Name)
	assert.Equal(t, 0, class.Range.Start)
	assert.Equal(t, "m", method.Name)
	assert.Equal(t, strings.Index(src, "def"), method.Range.Start)
}

func TestModuleDocumentation(t *testing.T) {
	e := parsed(t, "'''module doc'''\nx = 1\n")

	text, ok, err := e.Documentation()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "module doc", text)
}

func TestParseFailureKeepsPreviousResult(t *testing.T) {
	e := parsed(t, "x = 1\n")

	err := e.Parse("y = \"abc")
	var lexErr *types.LexError
	require.ErrorAs(t, err, &lexErr)
	assert.Equal(t, 4, lexErr.Offset)

	// The previous good parse stays queryable
	vars, qerr := e.VariablesAt(0)
	require.NoError(t, qerr)
	assert.Equal(t, map[string]int{"x": 0}, vars)

	text, qerr := e.Source()
	require.NoError(t, qerr)
	assert.Equal(t, "x = 1\n", text)
}

func TestParseFailureWithNoPriorResult(t *testing.T) {
	e := New()
	require.Error(t, e.Parse("def f(:\n"))

	_, err := e.NestableLines()
	assert.ErrorIs(t, err, types.ErrNotParsed)
}

func TestReparseReplacesResult(t *testing.T) {
	e := parsed(t, "x = 1\n")
	require.NoError(t, e.Parse("y = 2\n"))

	vars, err := e.VariablesAt(0)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"y": 0}, vars)
}

func TestParseIsIdempotent(t *testing.T) {
	src := "def f():\n    return 1\n"
	e := parsed(t, src)
	first, err := e.NestableLines()
	require.NoError(t, err)

	require.NoError(t, e.Parse(src))
	second, err := e.NestableLines()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestOffsetBounds(t *testing.T) {
	e := parsed(t, "x = 1\n")

	_, err := e.VariablesAt(-1)
	assert.ErrorIs(t, err, types.ErrOffsetOutOfRange)
	_, err = e.VariablesAt(7)
	assert.ErrorIs(t, err, types.ErrOffsetOutOfRange)
	// The end-of-source offset is valid
	_, err = e.VariablesAt(6)
	assert.NoError(t, err)

	_, err = e.OccurrencesAt(99)
	assert.ErrorIs(t, err, types.ErrOffsetOutOfRange)
	_, _, err = e.DocumentationAt(-5)
	assert.ErrorIs(t, err, types.ErrOffsetOutOfRange)
}

func TestOccurrencesAt_NonIdentifier(t *testing.T) {
	e := parsed(t, "x = 1\n")

	occs, err := e.OccurrencesAt(1) // the space after x
	require.NoError(t, err)
	assert.Empty(t, occs)
}

func TestParse_ComprehensionInHeader(t *testing.T) {
	e := parsed(t, "def f(x=[i for i in range(3)]):\n    pass\n")
	vars, err := e.VariablesAt(36)
	require.NoError(t, err)
	assert.Equal(t, 6, vars["x"])

	require.NoError(t, e.Parse("class C(*[b for b in bs]):\n    pass\n"))
}

func TestOccurrencesAt_UndefinedName(t *testing.T) {
	src := "y = print(1)\n"
	e := parsed(t, src)

	// a name never bound anywhere reports no occurrences
	occs, err := e.OccurrencesAt(strings.Index(src, "print"))
	require.NoError(t, err)
	assert.Empty(t, occs)
}

func TestOccurrencesAt_SharedAcrossScopes(t *testing.T) {
	src := "total = 0\ndef add(n):\n    return total + n\n"
	e := parsed(t, src)

	use := strings.LastIndex(src, "total")
	occs, err := e.OccurrencesAt(use)
	require.NoError(t, err)
	assert.Equal(t, []types.Range{
		{Start: 0, End: 5},
		{Start: use, End: use + 5},
	}, occs)
}

func TestDocumentationAt_WalksOutward(t *testing.T) {
	src := "'''mod doc'''\ndef f():\n    '''f doc'''\n    def g():\n        pass\n"
	e := parsed(t, src)

	// inside g, which has no docstring, the nearest documented ancestor wins
	inG := strings.Index(src, "pass")
	text, ok, err := e.DocumentationAt(inG)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "f doc", text)

	// at module level the module docstring wins
	text, ok, err = e.DocumentationAt(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "mod doc", text)
}

func TestDocumentationAt_NoneFound(t *testing.T) {
	e := parsed(t, "x = 1\n")
	_, ok, err := e.DocumentationAt(0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDocstrings(t *testing.T) {
	src := "def f():\n    '''doc'''\n    pass\n"
	e := parsed(t, src)

	records, err := e.Docstrings()
	require.NoError(t, err)
	require.Len(t, records, 1)
	for _, rec := range records {
		assert.Equal(t, "doc", rec.Text)
	}
}

func TestConcurrentQueriesDuringReparse(t *testing.T) {
	e := parsed(t, "x = 1\n")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if _, err := e.VariablesAt(0); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	for j := 0; j < 50; j++ {
		require.NoError(t, e.Parse("x = 1\n"))
	}
	wg.Wait()
}
