package types

// TokenKind represents the lexical class of a token
type TokenKind string

const (
	KindIdentifier TokenKind = "identifier"
	KindKeyword    TokenKind = "keyword"
	KindString     TokenKind = "string"
	KindNumber     TokenKind = "number"
	KindOperator   TokenKind = "operator"
	KindNewline    TokenKind = "newline"
	KindIndent     TokenKind = "indent"
	KindDedent     TokenKind = "dedent"
	KindEOF        TokenKind = "eof"
)

// Token is a single lexical token. Offsets are 0-indexed byte positions
// into the source, with the usual half-open [Start, End) convention.
// Indent, dedent, and EOF tokens are zero-width.
type Token struct {
	Kind  TokenKind
	Start int
	End   int
	Line  int // 1-indexed line of Start
}

// Width returns the number of source bytes the token covers.
func (t Token) Width() int {
	return t.End - t.Start
}

// IsSynthetic reports whether the token marks structure rather than text
// (indent, dedent, EOF).
func (t Token) IsSynthetic() bool {
	switch t.Kind {
	case KindIndent, KindDedent, KindEOF:
		return true
	default:
		return false
	}
}
