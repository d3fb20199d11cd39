// Package types provides shared type definitions for the introspector engine.
//
// This package defines the domain types exchanged between the lexer, the
// scope-tree builder, the navigation and documentation indexes, and the
// query facade in pkg/engine.
//
// # Conventions
//
// Byte offsets are 0-indexed and ranges are half-open [Start, End), so a
// zero-length range is unambiguous. Line numbers are 1-indexed everywhere
// they cross the package boundary; LineRange spans are inclusive on both
// ends because that is how editors consume folding information.
//
// # Core Types
//
// Token is one lexical unit with its source span:
//
//	tok := types.Token{
//	    Kind:  types.KindIdentifier,
//	    Start: 4,
//	    End:   5,
//	    Line:  2,
//	}
//
// NavigationEntry is one outline item, keyed by the byte range of the whole
// declaration:
//
//	entry := types.NavigationEntry{
//	    Name:  "m",
//	    Title: "m(self)",
//	    Kind:  types.NavMethod,
//	    Range: types.Range{Start: 9, End: 42},
//	}
//
// # Error Taxonomy
//
// All failures are explicit result values; the engine never panics on
// malformed input:
//
//   - LexError: malformed tokens (unterminated literal, invalid character,
//     inconsistent indentation), carrying the offending offset.
//   - ParseError: structurally invalid source (unexpected token, unbalanced
//     block). A parse error aborts the whole build.
//   - ErrNotParsed / ErrOffsetOutOfRange: caller misuse of the query facade.
package types
