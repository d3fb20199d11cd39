package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liasis/introspector/internal/lexer"
	"github.com/liasis/introspector/internal/source"
	"github.com/liasis/introspector/pkg/types"
)

func build(t *testing.T, src string) *Tree {
	t.Helper()
	tokens, err := lexer.New(src).Scan()
	require.NoError(t, err)
	tree, err := Build(source.New(src), tokens)
	require.NoError(t, err)
	return tree
}

func buildErr(t *testing.T, src string) *types.ParseError {
	t.Helper()
	tokens, err := lexer.New(src).Scan()
	require.NoError(t, err)
	_, err = Build(source.New(src), tokens)
	var parseErr *types.ParseError
	require.ErrorAs(t, err, &parseErr)
	return parseErr
}

func TestBuild_ModuleOnly(t *testing.T) {
	src := "x = 1\n"
	tree := build(t, src)

	require.Equal(t, 1, tree.Len())
	root := tree.At(Root)
	assert.Equal(t, types.ScopeModule, root.Kind)
	assert.Equal(t, types.Range{Start: 0, End: 6}, root.Range)
	assert.Equal(t, -1, root.Parent)

	x := root.Symbols["x"]
	require.NotNil(t, x)
	assert.Equal(t, 0, x.DefOffset)
	assert.Equal(t, []types.Range{{Start: 0, End: 1}}, x.Occurrences)
}

func TestBuild_FunctionScope(t *testing.T) {
	src := "def f():\n    x = 1\n    return x\n"
	tree := build(t, src)

	require.Equal(t, 2, tree.Len())
	fn := tree.At(1)
	assert.Equal(t, types.ScopeFunction, fn.Kind)
	assert.Equal(t, "f", fn.Name)
	assert.Equal(t, Root, fn.Parent)
	assert.Equal(t, types.Range{Start: 0, End: 31}, fn.Range)
	assert.Equal(t, types.Range{Start: 4, End: 5}, fn.NameRange)
	assert.Equal(t, types.Range{Start: 0, End: 8}, fn.HeaderRange)

	f := tree.At(Root).Symbols["f"]
	require.NotNil(t, f)
	assert.Equal(t, 4, f.DefOffset)

	x := fn.Symbols["x"]
	require.NotNil(t, x)
	assert.Equal(t, 13, x.DefOffset)
	assert.Equal(t, []types.Range{{Start: 13, End: 14}, {Start: 30, End: 31}}, x.Occurrences)

	// The function body does not leak into the module table
	assert.Nil(t, tree.At(Root).Symbols["x"])
}

func TestBuild_Shadowing(t *testing.T) {
	src := "x = 1\ndef f():\n    x = 2\n    return x\n"
	tree := build(t, src)

	mod := tree.At(Root).Symbols["x"]
	require.NotNil(t, mod)
	assert.Equal(t, 0, mod.DefOffset)
	assert.Equal(t, []types.Range{{Start: 0, End: 1}}, mod.Occurrences)

	fn := tree.At(1).Symbols["x"]
	require.NotNil(t, fn)
	assert.Equal(t, 19, fn.DefOffset)
	assert.Equal(t, []types.Range{{Start: 19, End: 20}, {Start: 36, End: 37}}, fn.Occurrences)

	// Inside the function the local binding shadows the module one
	assert.Equal(t, 19, tree.VisibleAt(19)["x"])
	assert.Equal(t, 0, tree.VisibleAt(0)["x"])
}

func TestBuild_GlobalRedirectsBindings(t *testing.T) {
	src := "x = 1\ndef f():\n    global x\n    x = 2\n"
	tree := build(t, src)

	fn := tree.At(1)
	assert.Nil(t, fn.Symbols["x"])

	mod := tree.At(Root).Symbols["x"]
	require.NotNil(t, mod)
	assert.Equal(t, 0, mod.DefOffset)
	// module binding, the global statement's mention, the rebinding
	assert.Equal(t, []types.Range{
		{Start: 0, End: 1}, {Start: 26, End: 27}, {Start: 32, End: 33},
	}, mod.Occurrences)
}

func TestBuild_ClassWithMethod(t *testing.T) {
	src := "class C:\n    def m(self):\n        pass\n"
	tree := build(t, src)

	require.Equal(t, 3, tree.Len())
	cls := tree.At(1)
	assert.Equal(t, types.ScopeClass, cls.Kind)
	assert.Equal(t, "C", cls.Name)
	assert.Equal(t, Root, cls.Parent)

	m := tree.At(2)
	assert.Equal(t, types.ScopeFunction, m.Kind)
	assert.Equal(t, "m", m.Name)
	assert.Equal(t, 1, m.Parent)

	// C binds in the module, m in the class, self in the method
	assert.NotNil(t, tree.At(Root).Symbols["C"])
	assert.NotNil(t, cls.Symbols["m"])
	assert.NotNil(t, m.Symbols["self"])
	assert.Nil(t, tree.At(Root).Symbols["m"])
}

func TestBuild_ClassBases(t *testing.T) {
	src := "class Base:\n    pass\nclass C(Base):\n    pass\n"
	tree := build(t, src)

	base := tree.At(Root).Symbols["Base"]
	require.NotNil(t, base)
	// definition plus the base-list mention
	assert.Len(t, base.Occurrences, 2)
}

func TestBuild_ForLoopTargets(t *testing.T) {
	src := "for i, v in items:\n    total = i\n"
	tree := build(t, src)

	root := tree.At(Root)
	require.NotNil(t, root.Symbols["i"])
	require.NotNil(t, root.Symbols["v"])
	require.NotNil(t, root.Symbols["total"])
	assert.Equal(t, 4, root.Symbols["i"].DefOffset)
	assert.Equal(t, 7, root.Symbols["v"].DefOffset)
	assert.Len(t, root.Symbols["i"].Occurrences, 2)

	// items is never bound: it lands in the module table unresolved and
	// stays invisible to VisibleAt
	items := root.Symbols["items"]
	require.NotNil(t, items)
	assert.Equal(t, -1, items.DefOffset)
	_, visible := tree.VisibleAt(0)["items"]
	assert.False(t, visible)
}

func TestBuild_Imports(t *testing.T) {
	src := "import os.path as p\nimport sys\n"
	tree := build(t, src)

	root := tree.At(Root)
	require.NotNil(t, root.Symbols["p"])
	require.NotNil(t, root.Symbols["sys"])
	assert.Equal(t, 18, root.Symbols["p"].DefOffset)

	// The alias supersedes the dotted path
	assert.Nil(t, root.Symbols["os"])
	assert.Nil(t, root.Symbols["path"])
}

func TestBuild_FromImports(t *testing.T) {
	src := "from os import path as p, sep\n"
	tree := build(t, src)

	root := tree.At(Root)
	assert.NotNil(t, root.Symbols["p"])
	assert.NotNil(t, root.Symbols["sep"])
	assert.Nil(t, root.Symbols["os"])
	assert.Nil(t, root.Symbols["path"])
}

func TestBuild_DefParameters(t *testing.T) {
	src := "def f(a, b=c, *args, **kw) -> int:\n    return a\n"
	tree := build(t, src)

	fn := tree.At(1)
	for _, name := range []string{"a", "b", "args", "kw"} {
		assert.NotNil(t, fn.Symbols[name], name)
	}

	// The default value and return annotation evaluate in the enclosing
	// scope and stay unresolved here
	root := tree.At(Root)
	require.NotNil(t, root.Symbols["c"])
	assert.Equal(t, -1, root.Symbols["c"].DefOffset)
	require.NotNil(t, root.Symbols["int"])
	assert.Equal(t, -1, root.Symbols["int"].DefOffset)
	assert.Nil(t, fn.Symbols["c"])
}

func TestBuild_InlineBody(t *testing.T) {
	src := "def f(): return x\n"
	tree := build(t, src)

	require.Equal(t, 2, tree.Len())
	fn := tree.At(1)
	assert.Equal(t, types.Range{Start: 0, End: 17}, fn.Range)

	// x resolves through the function into the module, unresolved
	x := tree.At(Root).Symbols["x"]
	require.NotNil(t, x)
	assert.Equal(t, -1, x.DefOffset)
	assert.Equal(t, []types.Range{{Start: 16, End: 17}}, x.Occurrences)
}

func TestBuild_Comprehension(t *testing.T) {
	src := "ys = [x for x in xs]\n"
	tree := build(t, src)

	require.Equal(t, 2, tree.Len())
	comp := tree.At(1)
	assert.Equal(t, types.ScopeComprehension, comp.Kind)
	assert.Equal(t, types.Range{Start: 8, End: 20}, comp.Range)

	x := comp.Symbols["x"]
	require.NotNil(t, x)
	assert.Equal(t, 12, x.DefOffset)

	// Inside the comprehension the loop variable is visible
	assert.Equal(t, 12, tree.VisibleAt(17)["x"])
	// Outside it is not
	_, visible := tree.VisibleAt(0)["x"]
	assert.False(t, visible)
}

func TestBuild_NestedComprehensions(t *testing.T) {
	src := "m = [[y for y in row] for row in grid]\n"
	tree := build(t, src)

	// one scope per 'for' clause at its own bracket depth
	require.Equal(t, 3, tree.Len())
	for _, idx := range []int{1, 2} {
		assert.Equal(t, types.ScopeComprehension, tree.At(idx).Kind)
	}
}

func TestBuild_ComprehensionInParameterDefault(t *testing.T) {
	src := "def f(x=[i for i in range(3)]):\n    pass\n"
	tree := build(t, src)

	require.Equal(t, 3, tree.Len())
	fn := tree.At(1)
	assert.Equal(t, types.ScopeFunction, fn.Kind)
	assert.Equal(t, types.Range{Start: 0, End: 40}, fn.Range)
	assert.Equal(t, 6, fn.Symbols["x"].DefOffset)

	// The default's comprehension nests inside the declaration
	comp := tree.At(2)
	assert.Equal(t, types.ScopeComprehension, comp.Kind)
	assert.Equal(t, 1, comp.Parent)
	assert.Equal(t, types.Range{Start: 11, End: 29}, comp.Range)
	require.NotNil(t, comp.Symbols["i"])
	assert.Equal(t, 15, comp.Symbols["i"].DefOffset)
}

func TestBuild_ComprehensionInClassBases(t *testing.T) {
	src := "class C(*[b for b in bs]):\n    pass\n"
	tree := build(t, src)

	require.Equal(t, 3, tree.Len())
	cls := tree.At(1)
	assert.Equal(t, types.ScopeClass, cls.Kind)
	assert.Equal(t, types.Range{Start: 0, End: 35}, cls.Range)

	comp := tree.At(2)
	assert.Equal(t, types.ScopeComprehension, comp.Kind)
	assert.Equal(t, 1, comp.Parent)
	assert.Equal(t, types.Range{Start: 12, End: 24}, comp.Range)
	require.NotNil(t, comp.Symbols["b"])
	assert.Equal(t, 16, comp.Symbols["b"].DefOffset)
}

func TestBuild_AssignmentTargets(t *testing.T) {
	src := "a.b = 1\nc[0] = 2\nd, e = 3, 4\n"
	tree := build(t, src)

	root := tree.At(Root)
	assert.NotNil(t, root.Symbols["d"])
	assert.NotNil(t, root.Symbols["e"])

	// Attribute and subscript targets are uses of the base object
	require.NotNil(t, root.Symbols["a"])
	assert.Equal(t, -1, root.Symbols["a"].DefOffset)
	require.NotNil(t, root.Symbols["c"])
	assert.Equal(t, -1, root.Symbols["c"].DefOffset)
}

func TestBuild_AnnotatedAssignment(t *testing.T) {
	src := "x: int = 5\n"
	tree := build(t, src)

	root := tree.At(Root)
	require.NotNil(t, root.Symbols["x"])
	assert.Equal(t, 0, root.Symbols["x"].DefOffset)
	require.NotNil(t, root.Symbols["int"])
	assert.Equal(t, -1, root.Symbols["int"].DefOffset)
}

func TestBuild_AugmentedAssignmentIsUse(t *testing.T) {
	src := "x = 1\nx += 2\n"
	tree := build(t, src)

	x := tree.At(Root).Symbols["x"]
	require.NotNil(t, x)
	assert.Equal(t, 0, x.DefOffset)
	assert.Equal(t, []types.Range{{Start: 0, End: 1}, {Start: 6, End: 7}}, x.Occurrences)
}

func TestBuild_SemicolonStatements(t *testing.T) {
	src := "a = 1; b = 2\n"
	tree := build(t, src)

	root := tree.At(Root)
	assert.NotNil(t, root.Symbols["a"])
	assert.NotNil(t, root.Symbols["b"])
	assert.Equal(t, 7, root.Symbols["b"].DefOffset)
}

func TestBuild_WithAs(t *testing.T) {
	src := "with open(path) as fh:\n    data = fh.read()\n"
	tree := build(t, src)

	root := tree.At(Root)
	fh := root.Symbols["fh"]
	require.NotNil(t, fh)
	assert.Equal(t, 19, fh.DefOffset)
	assert.Len(t, fh.Occurrences, 2)
}

func TestBuild_LambdaParamsProduceNoOccurrences(t *testing.T) {
	src := "f = lambda a, b: g\n"
	tree := build(t, src)

	root := tree.At(Root)
	assert.NotNil(t, root.Symbols["f"])
	assert.Nil(t, root.Symbols["a"])
	assert.Nil(t, root.Symbols["b"])
	require.NotNil(t, root.Symbols["g"])
	assert.Equal(t, -1, root.Symbols["g"].DefOffset)
}

func TestBuild_KeywordArgumentsSkipped(t *testing.T) {
	src := "r = call(timeout=1, retries=n)\n"
	tree := build(t, src)

	root := tree.At(Root)
	assert.Nil(t, root.Symbols["timeout"])
	assert.Nil(t, root.Symbols["retries"])
	assert.NotNil(t, root.Symbols["n"])
}

func TestBuild_Docstrings(t *testing.T) {
	src := "'''module doc'''\ndef f():\n    \"doc of f\"\n    pass\nx = '''not a docstring'''\n"
	tree := build(t, src)

	assert.Equal(t, types.Range{Start: 0, End: 16}, tree.At(Root).DocRange)

	fn := tree.At(1)
	assert.False(t, fn.DocRange.IsZero())
	assert.Equal(t, `"doc of f"`, src[fn.DocRange.Start:fn.DocRange.End])
}

func TestBuild_NoDocstring(t *testing.T) {
	tree := build(t, "x = 1\n'''late string'''\n")
	assert.True(t, tree.At(Root).DocRange.IsZero())
}

func TestBuild_Errors(t *testing.T) {
	cases := []struct {
		name    string
		src     string
		message string
	}{
		{"unexpected indent", "x = 1\n    y = 2\n", "unexpected indent"},
		{"missing body at eof", "def f():\n", "expected an indented block"},
		{"missing body before stmt", "def f():\nx = 1\n", "expected an indented block"},
		{"def without name", "def ():\n    pass\n", "expected function name after 'def'"},
		{"def without parens", "def f:\n    pass\n", "expected '(' after function name"},
		{"class without name", "class :\n    pass\n", "expected class name after 'class'"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			perr := buildErr(t, tc.src)
			assert.Contains(t, perr.Message, tc.message)
			assert.GreaterOrEqual(t, perr.Offset, 0)
		})
	}
}

func TestInnermostAt(t *testing.T) {
	src := "def f():\n    x = 1\n    return x\ny = 2\n"
	tree := build(t, src)

	assert.Equal(t, 1, tree.InnermostAt(13)) // inside the body
	assert.Equal(t, 1, tree.InnermostAt(0))  // the def keyword opens the range
	assert.Equal(t, Root, tree.InnermostAt(32))
}

func TestLookup_WalksOutward(t *testing.T) {
	src := "x = 1\ndef f():\n    return x\n"
	tree := build(t, src)

	entry := tree.Lookup(1, "x")
	require.NotNil(t, entry)
	assert.Equal(t, Root, entry.Scope)
	assert.Len(t, entry.Occurrences, 2)

	assert.Nil(t, tree.Lookup(1, "nope"))
}

func TestVisibleAt_HidesUnresolved(t *testing.T) {
	src := "y = undefined_name\n"
	tree := build(t, src)

	visible := tree.VisibleAt(0)
	assert.Contains(t, visible, "y")
	assert.NotContains(t, visible, "undefined_name")
}
