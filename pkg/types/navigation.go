package types

import "errors"

// NavKind represents the kind of a navigable declaration
type NavKind string

const (
	NavFunction NavKind = "function"
	NavClass    NavKind = "class"
	NavMethod   NavKind = "method"
)

// NavigationEntry is one named declaration surfaced for outline-style
// browsing. Range covers the whole declaration, from the def/class keyword
// through the end of the indented body, and doubles as the lookup key.
type NavigationEntry struct {
	// Name is the bare declaration identifier ("m").
	Name string
	// Title is the header as an outline renders it, including the
	// parenthesized parameter or base list ("m(self)"). Headers that
	// continue onto further lines end with an ellipsis.
	Title string
	Kind  NavKind
	Range Range
}

// Validate checks the entry's internal consistency.
func (e *NavigationEntry) Validate() error {
	if e.Name == "" {
		return errors.New("navigation entry name is required")
	}
	switch e.Kind {
	case NavFunction, NavClass, NavMethod:
	default:
		return errors.New("invalid navigation kind")
	}
	if e.Range.Start < 0 || e.Range.End < e.Range.Start {
		return errors.New("invalid navigation range")
	}
	return nil
}

// DocumentationRecord associates a declaration (or the module, when Range
// covers the whole source) with its extracted docstring.
type DocumentationRecord struct {
	Range Range
	Text  string
}
