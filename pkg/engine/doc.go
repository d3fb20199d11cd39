// Package engine is the public query facade of the introspector: parse
// Python source once, then answer editor queries against the immutable
// result.
//
// # Lifecycle
//
// An Engine starts empty. Parse runs the whole pipeline over one source
// text:
//
//	lexing -> folding ranges + scope tree -> navigation + documentation
//
// and publishes the result with a single atomic pointer swap. Every query
// before the first successful Parse returns types.ErrNotParsed. When a
// re-parse fails, the previous result stays published, so an editor keeps
// its last good outline while the user types through a syntax error.
//
// # Queries
//
//	NestableLines()        foldable line ranges, outermost first per line
//	VariablesAt(offset)    visible names -> first-binding offset
//	OccurrencesAt(offset)  all ranges of the identifier under the cursor
//	Documentation()        the module docstring
//	DocumentationAt(offset) docstring of the enclosing declaration
//	Navigation()           outline entries keyed by declaration range
//
// Offsets are 0-indexed byte offsets into the parsed text; ranges are
// half-open. Offset-taking queries accept 0 through len(source) inclusive
// and return types.ErrOffsetOutOfRange beyond that.
//
// # Concurrency
//
// Queries are safe to call concurrently with each other and with Parse:
// each query loads the current result pointer once and reads only
// immutable data. Parse itself is serialized by an internal mutex, so at
// most one pipeline runs per Engine at a time.
//
// # Usage
//
//	eng := engine.New()
//	if err := eng.Parse(src); err != nil {
//		var lexErr *types.LexError
//		if errors.As(err, &lexErr) {
//			// report lexErr.Offset / lexErr.Line to the user
//		}
//		return err
//	}
//	folds, _ := eng.NestableLines()
package engine
