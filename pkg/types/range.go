package types

// Range is a half-open [Start, End) span of byte offsets into the source.
// The zero Range is the canonical "no range" value.
type Range struct {
	Start int
	End   int
}

// Len returns the number of bytes the range covers.
func (r Range) Len() int {
	return r.End - r.Start
}

// IsZero reports whether the range is the empty zero value.
func (r Range) IsZero() bool {
	return r.Start == 0 && r.End == 0
}

// Contains reports whether the offset lies inside the range.
func (r Range) Contains(offset int) bool {
	return offset >= r.Start && offset < r.End
}

// ContainsRange reports whether other is fully contained in r.
func (r Range) ContainsRange(other Range) bool {
	return other.Start >= r.Start && other.End <= r.End
}

// LineRange is an inclusive span of 1-indexed line numbers, the external
// representation of one indentation-delimited (foldable) block.
type LineRange struct {
	StartLine int
	EndLine   int
}
