package source

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/liasis/introspector/pkg/types"
)

func TestNew_LineIndex(t *testing.T) {
	buf := New("a\nbb\nccc\n")
	assert.Equal(t, 9, buf.Len())
	assert.Equal(t, 4, buf.LineCount())

	assert.Equal(t, 0, buf.OffsetOf(1))
	assert.Equal(t, 2, buf.OffsetOf(2))
	assert.Equal(t, 5, buf.OffsetOf(3))
	assert.Equal(t, 9, buf.OffsetOf(4))
	assert.Equal(t, -1, buf.OffsetOf(5))
	assert.Equal(t, -1, buf.OffsetOf(0))
}

func TestNew_EmptyBufferHasOneLine(t *testing.T) {
	buf := New("")
	assert.Equal(t, 0, buf.Len())
	assert.Equal(t, 1, buf.LineCount())
	assert.Equal(t, 1, buf.LineAt(0))
}

func TestLineAt(t *testing.T) {
	buf := New("a\nbb\nccc\n")

	assert.Equal(t, 1, buf.LineAt(0))
	assert.Equal(t, 1, buf.LineAt(1)) // the newline belongs to line 1
	assert.Equal(t, 2, buf.LineAt(2))
	assert.Equal(t, 2, buf.LineAt(3))
	assert.Equal(t, 3, buf.LineAt(5))
	assert.Equal(t, 3, buf.LineAt(7))

	// Past the end maps to the last line
	assert.Equal(t, 4, buf.LineAt(9))
	assert.Equal(t, 4, buf.LineAt(100))
	assert.Equal(t, 1, buf.LineAt(-1))
}

func TestLine(t *testing.T) {
	buf := New("a\nbb\nccc")
	assert.Equal(t, "a", buf.Line(1))
	assert.Equal(t, "bb", buf.Line(2))
	assert.Equal(t, "ccc", buf.Line(3))
	assert.Equal(t, "", buf.Line(4))
}

func TestSlice_Clamps(t *testing.T) {
	buf := New("hello")
	assert.Equal(t, "ell", buf.Slice(types.Range{Start: 1, End: 4}))
	assert.Equal(t, "hello", buf.Slice(types.Range{Start: -2, End: 99}))
	assert.Equal(t, "", buf.Slice(types.Range{Start: 3, End: 3}))
	assert.Equal(t, "", buf.Slice(types.Range{Start: 4, End: 2}))
}

func TestWordAt(t *testing.T) {
	//             0123456789
	buf := New("foo = bar_1")

	assert.Equal(t, types.Range{Start: 0, End: 3}, buf.WordAt(0))
	assert.Equal(t, types.Range{Start: 0, End: 3}, buf.WordAt(2))
	assert.Equal(t, types.Range{Start: 6, End: 11}, buf.WordAt(8))

	// Boundary characters and out-of-range offsets yield the zero range
	assert.True(t, buf.WordAt(3).IsZero())  // space
	assert.True(t, buf.WordAt(4).IsZero())  // '='
	assert.True(t, buf.WordAt(-1).IsZero())
	assert.True(t, buf.WordAt(11).IsZero())
}
