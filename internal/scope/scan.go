package scope

import "github.com/liasis/introspector/pkg/types"

// compFrame is one open comprehension scope during an expression scan.
type compFrame struct {
	idx   int
	depth int // bracket depth of the comprehension's 'for' keyword
}

// scanUses scans an expression: every plain identifier is a use, names
// after 'as' bind, comprehension clauses open nested scopes, attribute
// names and keyword arguments produce no occurrences.
func (b *builder) scanUses(toks []types.Token, cur int) {
	b.scanExpr(toks, cur, cur)
}

// scanExpr is scanUses with the comprehension parent made explicit.
// Declaration headers pass the new declaration scope as compParent so a
// comprehension in a default or base list nests inside the declaration's
// range instead of becoming an overlapping sibling.
func (b *builder) scanExpr(toks []types.Token, cur, compParent int) {
	mask := b.lambdaMask(toks)
	depth := 0
	var comps []compFrame
	bindingTargets := false

	scopeAt := func() int {
		if len(comps) > 0 {
			return comps[len(comps)-1].idx
		}
		return cur
	}

	for i := 0; i < len(toks); i++ {
		tok := toks[i]
		if tok.Kind == types.KindOperator {
			switch b.text(tok) {
			case "(", "[", "{":
				depth++
			case ")", "]", "}":
				depth--
				for len(comps) > 0 && depth < comps[len(comps)-1].depth {
					b.scopes[comps[len(comps)-1].idx].Range.End = tok.End
					comps = comps[:len(comps)-1]
					bindingTargets = false
				}
			}
			continue
		}
		if mask[i] {
			continue
		}
		if tok.Kind == types.KindKeyword {
			switch b.text(tok) {
			case "for":
				// a generator or comprehension clause; a second 'for' at
				// the same depth extends the existing comprehension scope
				if depth > 0 {
					if len(comps) == 0 || comps[len(comps)-1].depth != depth {
						parent := compParent
						if len(comps) > 0 {
							parent = comps[len(comps)-1].idx
						}
						idx := b.newScope(types.ScopeComprehension, "", tok.Start, types.Token{}, parent)
						comps = append(comps, compFrame{idx: idx, depth: depth})
					}
					bindingTargets = true
				}
			case "in":
				if len(comps) > 0 && depth == comps[len(comps)-1].depth {
					bindingTargets = false
				}
			}
			continue
		}
		if tok.Kind != types.KindIdentifier {
			continue
		}
		if b.precededByDot(toks, i) {
			continue
		}
		if b.isKeywordArg(toks, i, depth) {
			continue
		}
		switch {
		case i > 0 && toks[i-1].Kind == types.KindKeyword && b.text(toks[i-1]) == "as":
			b.emit(scopeAt(), tok, true)
		case bindingTargets:
			b.emit(comps[len(comps)-1].idx, tok, true)
		default:
			b.emit(scopeAt(), tok, false)
		}
	}

	for len(comps) > 0 {
		top := comps[len(comps)-1]
		b.scopes[top.idx].Range.End = toks[len(toks)-1].End
		comps = comps[:len(comps)-1]
	}
}

// scanAssign scans a statement that may be an assignment. Targets before
// the last top-level '=' bind; the value side and augmented assignments
// scan as plain expressions.
func (b *builder) scanAssign(toks []types.Token, cur int) {
	mask := b.lambdaMask(toks)
	depth := 0
	lastEq := -1
	augmented := false
	for i, tok := range toks {
		if tok.Kind != types.KindOperator {
			continue
		}
		switch txt := b.text(tok); txt {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
		default:
			if depth == 0 && !mask[i] {
				if txt == "=" {
					lastEq = i
				} else if isAugAssign(txt) {
					augmented = true
				}
			}
		}
	}
	if lastEq < 0 || augmented {
		b.scanUses(toks, cur)
		return
	}
	b.scanTargets(toks[:lastEq], cur)
	b.scanUses(toks[lastEq+1:], cur)
}

// scanTargets scans the left side of an assignment. An identifier binds
// unless it is part of an attribute access, a subscript, or an
// annotation; those occurrences are uses.
func (b *builder) scanTargets(toks []types.Token, cur int) {
	// flags tracks whether identifiers at the current bracket level are in
	// binding position; subscripts, calls, and dict displays are not.
	flags := []bool{true}
	annotation := false
	for i, tok := range toks {
		if tok.Kind == types.KindOperator {
			switch txt := b.text(tok); txt {
			case "(", "[", "{":
				callLike := i > 0 && b.isValueEnd(toks[i-1])
				flags = append(flags, flags[len(flags)-1] && !callLike && txt != "{")
			case ")", "]", "}":
				if len(flags) > 1 {
					flags = flags[:len(flags)-1]
				}
			case ":":
				if len(flags) == 1 {
					annotation = true
				}
			case "=":
				if len(flags) == 1 {
					annotation = false
				}
			}
			continue
		}
		if tok.Kind != types.KindIdentifier {
			continue
		}
		if b.precededByDot(toks, i) {
			b.emit(cur, tok, false)
			continue
		}
		accessed := i+1 < len(toks) && toks[i+1].Kind == types.KindOperator &&
			(b.text(toks[i+1]) == "." || b.text(toks[i+1]) == "(" || b.text(toks[i+1]) == "[")
		if flags[len(flags)-1] && !annotation && !accessed {
			b.emit(cur, tok, true)
		} else {
			b.emit(cur, tok, false)
		}
	}
}

// lambdaMask marks the tokens of every lambda parameter list, from the
// 'lambda' keyword through its colon, so they produce no occurrences.
func (b *builder) lambdaMask(toks []types.Token) []bool {
	mask := make([]bool, len(toks))
	depth := 0
	lambdaDepth := -1
	for i, tok := range toks {
		if tok.Kind == types.KindOperator {
			switch b.text(tok) {
			case "(", "[", "{":
				depth++
			case ")", "]", "}":
				depth--
				if lambdaDepth >= 0 && depth < lambdaDepth {
					lambdaDepth = -1
				}
			case ":":
				if lambdaDepth >= 0 && depth == lambdaDepth {
					mask[i] = true
					lambdaDepth = -1
					continue
				}
			}
		}
		if tok.Kind == types.KindKeyword && b.text(tok) == "lambda" && lambdaDepth < 0 {
			lambdaDepth = depth
			mask[i] = true
			continue
		}
		if lambdaDepth >= 0 {
			mask[i] = true
		}
	}
	return mask
}

// isKeywordArg reports whether the identifier at pos is the name of a
// keyword argument in a call: "name=" directly after '(' or ','.
func (b *builder) isKeywordArg(toks []types.Token, pos, depth int) bool {
	if depth == 0 || pos == 0 || pos+1 >= len(toks) {
		return false
	}
	if toks[pos+1].Kind != types.KindOperator || b.text(toks[pos+1]) != "=" {
		return false
	}
	prev := toks[pos-1]
	return prev.Kind == types.KindOperator && (b.text(prev) == "(" || b.text(prev) == ",")
}

// isValueEnd reports whether a token can end a value expression, making a
// following bracket a call or subscript rather than a display.
func (b *builder) isValueEnd(tok types.Token) bool {
	if tok.Kind == types.KindIdentifier || tok.Kind == types.KindString {
		return true
	}
	if tok.Kind == types.KindOperator {
		txt := b.text(tok)
		return txt == ")" || txt == "]"
	}
	return false
}

// isAugAssign reports whether an operator is an augmented assignment.
func isAugAssign(op string) bool {
	switch op {
	case "+=", "-=", "*=", "/=", "//=", "%=", "**=", ">>=", "<<=", "&=", "|=", "^=", "@=":
		return true
	}
	return false
}
