package types

// ScopeKind represents the kind of a lexical scope
type ScopeKind string

const (
	ScopeModule        ScopeKind = "module"
	ScopeFunction      ScopeKind = "function"
	ScopeClass         ScopeKind = "class"
	ScopeComprehension ScopeKind = "comprehension"
)
