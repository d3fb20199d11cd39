package folding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liasis/introspector/internal/lexer"
	"github.com/liasis/introspector/internal/source"
	"github.com/liasis/introspector/pkg/types"
)

func extract(t *testing.T, src string) []types.LineRange {
	t.Helper()
	tokens, err := lexer.New(src).Scan()
	require.NoError(t, err)
	return Extract(source.New(src), tokens)
}

func TestExtract_SingleBlock(t *testing.T) {
	ranges := extract(t, "def f():\n    x = 1\n    return x\n")
	assert.Equal(t, []types.LineRange{{StartLine: 1, EndLine: 3}}, ranges)
}

func TestExtract_NestedBlocks(t *testing.T) {
	ranges := extract(t, "class C:\n    def m(self):\n        pass\n")
	assert.Equal(t, []types.LineRange{
		{StartLine: 1, EndLine: 3},
		{StartLine: 2, EndLine: 3},
	}, ranges)
}

func TestExtract_NoBlocks(t *testing.T) {
	ranges := extract(t, "x = 1\ny = 2\n")
	assert.Empty(t, ranges)
}

func TestExtract_IfElse(t *testing.T) {
	src := "if a:\n    b = 1\nelse:\n    b = 2\n"
	ranges := extract(t, src)
	assert.Equal(t, []types.LineRange{
		{StartLine: 1, EndLine: 2},
		{StartLine: 3, EndLine: 4},
	}, ranges)
}

func TestExtract_BlockEndsAtLastContentLine(t *testing.T) {
	// Trailing blank lines do not extend the block
	src := "def f():\n    return 1\n\n\nx = 2\n"
	ranges := extract(t, src)
	assert.Equal(t, []types.LineRange{{StartLine: 1, EndLine: 2}}, ranges)
}

func TestExtract_MultilineStringExtendsBlock(t *testing.T) {
	src := "def f():\n    s = \"\"\"a\nb\nc\"\"\"\n"
	ranges := extract(t, src)
	assert.Equal(t, []types.LineRange{{StartLine: 1, EndLine: 4}}, ranges)
}

func TestExtract_BracketContinuationExtendsBlock(t *testing.T) {
	src := "def f():\n    return (1 +\n            2)\n"
	ranges := extract(t, src)
	assert.Equal(t, []types.LineRange{{StartLine: 1, EndLine: 3}}, ranges)
}

func TestExtract_SiblingBlocksSorted(t *testing.T) {
	src := "def a():\n    pass\n\ndef b():\n    pass\n"
	ranges := extract(t, src)
	assert.Equal(t, []types.LineRange{
		{StartLine: 1, EndLine: 2},
		{StartLine: 4, EndLine: 5},
	}, ranges)
}

func TestExtract_DeepNestingOrder(t *testing.T) {
	src := "def f():\n    if a:\n        if b:\n            c()\n    d()\n"
	ranges := extract(t, src)
	assert.Equal(t, []types.LineRange{
		{StartLine: 1, EndLine: 5},
		{StartLine: 2, EndLine: 4},
		{StartLine: 3, EndLine: 4},
	}, ranges)
}
