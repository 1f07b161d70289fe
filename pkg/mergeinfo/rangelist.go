// Package mergeinfo models merge tracking: which revision ranges of which
// source paths have already been merged into a node.
//
// A RangeList is a normalized set of revision ranges, a MergeInfo maps source
// paths to RangeLists and a Catalog maps working-copy relative paths to
// MergeInfo. All operations are pure: inputs are never modified and every
// result is a new value, so values can be shared freely between goroutines.
package mergeinfo

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
)

// Range validation errors.
var (
	ErrReverseRange = errors.New("reverse revision range")
	ErrEmptyRange   = errors.New("empty revision range")
	ErrNegativeRev  = errors.New("negative revision in range")
)

// Range covers the revisions Start+1 through End. The textual form "5-8"
// is Range{Start: 4, End: 8}; the single revision "8" is Range{Start: 7, End: 8}.
// A range with Start > End is a reverse (un-merge) range; only the display
// helpers accept those.
type Range struct {
	Start       vcs.Revnum
	End         vcs.Revnum
	Inheritable bool
}

// NewRange creates an inheritable range covering revisions first through last.
func NewRange(first, last vcs.Revnum) Range {
	return Range{Start: first - 1, End: last, Inheritable: true}
}

// IsReverse reports whether the range runs backwards.
func (r Range) IsReverse() bool {
	return r.Start > r.End
}

// Validate checks that the range is a non-empty forward range.
func (r Range) Validate() error {
	switch {
	case r.Start == r.End:
		return fmt.Errorf("%w: %d-%d", ErrEmptyRange, r.Start, r.End)
	case r.IsReverse():
		return fmt.Errorf("%w: %d-%d", ErrReverseRange, r.Start, r.End)
	case r.Start < 0:
		return fmt.Errorf("%w: %d-%d", ErrNegativeRev, r.Start, r.End)
	}

	return nil
}

// Contains reports whether rev is one of the covered revisions.
func (r Range) Contains(rev vcs.Revnum) bool {
	if r.IsReverse() {
		return rev > r.End && rev <= r.Start
	}

	return rev > r.Start && rev <= r.End
}

// Count returns the number of revisions covered.
func (r Range) Count() int64 {
	if r.IsReverse() {
		return int64(r.Start - r.End)
	}

	return int64(r.End - r.Start)
}

// Reverse returns the same span running the other way.
func (r Range) Reverse() Range {
	return Range{Start: r.End, End: r.Start, Inheritable: r.Inheritable}
}

// String renders the range in mergeinfo syntax. Reverse ranges are shown
// with a leading minus, the way reverse merges are displayed.
func (r Range) String() string {
	var sb strings.Builder

	lo, hi := r.Start, r.End
	if r.IsReverse() {
		sb.WriteByte('-')

		lo, hi = r.End, r.Start
	}

	if hi-lo == 1 {
		sb.WriteString(strconv.FormatInt(int64(hi), 10))
	} else {
		sb.WriteString(strconv.FormatInt(int64(lo+1), 10))
		sb.WriteByte('-')
		sb.WriteString(strconv.FormatInt(int64(hi), 10))
	}

	if !r.Inheritable {
		sb.WriteByte('*')
	}

	return sb.String()
}

// RangeList is an ordered, coalesced, non-overlapping set of forward ranges.
// The zero value is the empty list.
type RangeList struct {
	ranges []Range
}

// NewRangeList normalizes ranges into a RangeList. Overlapping ranges are
// combined; where an inheritable and a non-inheritable range overlap the
// inheritable one wins. Reverse and empty ranges are rejected.
func NewRangeList(ranges ...Range) (RangeList, error) {
	for _, r := range ranges {
		if err := r.Validate(); err != nil {
			return RangeList{}, err
		}
	}

	return RangeList{ranges: sweep(ranges, nil, unionRule)}, nil
}

// MustRangeList is NewRangeList for ranges known to be valid; it panics otherwise.
func MustRangeList(ranges ...Range) RangeList {
	rl, err := NewRangeList(ranges...)
	if err != nil {
		panic("mergeinfo: " + err.Error())
	}

	return rl
}

// Ranges returns a copy of the normalized ranges.
func (rl RangeList) Ranges() []Range {
	return slices.Clone(rl.ranges)
}

// Len returns the number of ranges.
func (rl RangeList) Len() int {
	return len(rl.ranges)
}

// IsEmpty reports whether the list covers no revision.
func (rl RangeList) IsEmpty() bool {
	return len(rl.ranges) == 0
}

// Count returns the number of revisions covered.
func (rl RangeList) Count() int64 {
	var total int64

	for _, r := range rl.ranges {
		total += r.Count()
	}

	return total
}

// Contains reports whether rev is covered.
func (rl RangeList) Contains(rev vcs.Revnum) bool {
	idx, _ := slices.BinarySearchFunc(rl.ranges, rev, func(r Range, target vcs.Revnum) int {
		return cmp.Compare(r.End, target)
	})

	return idx < len(rl.ranges) && rl.ranges[idx].Contains(rev)
}

// Endpoints returns the oldest Start and youngest End, or two invalid
// revisions for an empty list.
func (rl RangeList) Endpoints() (oldest, youngest vcs.Revnum) {
	if rl.IsEmpty() {
		return vcs.InvalidRevnum, vcs.InvalidRevnum
	}

	return rl.ranges[0].Start, rl.ranges[len(rl.ranges)-1].End
}

// Inheritable returns only the inheritable ranges.
func (rl RangeList) Inheritable() RangeList {
	kept := make([]Range, 0, len(rl.ranges))

	for _, r := range rl.ranges {
		if r.Inheritable {
			kept = append(kept, r)
		}
	}

	return RangeList{ranges: normalized(kept)}
}

// WithInheritance returns the list with every range flagged inheritable or not.
func (rl RangeList) WithInheritance(inheritable bool) RangeList {
	out := make([]Range, len(rl.ranges))

	for i, r := range rl.ranges {
		r.Inheritable = inheritable
		out[i] = r
	}

	return RangeList{ranges: sweep(out, nil, unionRule)}
}

// Reverse returns the ranges as reverse ranges, youngest first, for
// displaying a reverse merge. The result is not a RangeList.
func (rl RangeList) Reverse() []Range {
	out := make([]Range, 0, len(rl.ranges))

	for i := len(rl.ranges) - 1; i >= 0; i-- {
		out = append(out, rl.ranges[i].Reverse())
	}

	return out
}

// Equal reports whether both lists cover the same revisions. With
// considerInheritance the inheritability of each revision must match too.
func (rl RangeList) Equal(other RangeList, considerInheritance bool) bool {
	if considerInheritance {
		return slices.Equal(rl.ranges, other.ranges)
	}

	return slices.Equal(rl.WithInheritance(true).ranges, other.WithInheritance(true).ranges)
}

// String renders the list in mergeinfo syntax, e.g. "1-5,7,9-10*".
func (rl RangeList) String() string {
	parts := make([]string, len(rl.ranges))

	for i, r := range rl.ranges {
		parts[i] = r.String()
	}

	return strings.Join(parts, ",")
}

// MergeRanges returns the union of a and b. Where an inheritable and a
// non-inheritable range cover the same revisions the result is inheritable.
func MergeRanges(a, b RangeList) RangeList {
	switch {
	case a.IsEmpty():
		return b
	case b.IsEmpty():
		return a
	}

	return RangeList{ranges: sweep(a.ranges, b.ranges, unionRule)}
}

// RemoveRanges returns a minus b. Without considerInheritance any overlap removes
// the covered revisions; with it, revisions are only removed where the
// inheritability in a and b matches.
func RemoveRanges(a, b RangeList, considerInheritance bool) RangeList {
	if a.IsEmpty() || b.IsEmpty() {
		return a
	}

	rule := func(c coverage) (bool, bool) {
		if !c.inA {
			return false, false
		}

		if c.inB && (!considerInheritance || c.inhA == c.inhB) {
			return false, false
		}

		return true, c.inhA
	}

	return RangeList{ranges: sweep(a.ranges, b.ranges, rule)}
}

// IntersectRanges returns the revisions present in both a and b. Without
// considerInheritance ranges of differing inheritability still intersect and
// the result is non-inheritable only where both inputs were; with it only
// matching inheritability intersects.
func IntersectRanges(a, b RangeList, considerInheritance bool) RangeList {
	if a.IsEmpty() || b.IsEmpty() {
		return RangeList{}
	}

	rule := func(c coverage) (bool, bool) {
		if !c.inA || !c.inB {
			return false, false
		}

		if considerInheritance && c.inhA != c.inhB {
			return false, false
		}

		return true, c.inhA || c.inhB
	}

	return RangeList{ranges: sweep(a.ranges, b.ranges, rule)}
}

// FilterRanges keeps (includeRange) or drops the revisions in
// oldest+1 through youngest. Inheritability is preserved.
func FilterRanges(rl RangeList, oldest, youngest vcs.Revnum, includeRange bool) RangeList {
	if oldest >= youngest || rl.IsEmpty() {
		if includeRange {
			return RangeList{}
		}

		return rl
	}

	window := []Range{{Start: max(oldest, 0), End: youngest, Inheritable: true}}
	rule := func(c coverage) (bool, bool) {
		return c.inA && c.inB == includeRange, c.inhA
	}

	return RangeList{ranges: sweep(rl.ranges, window, rule)}
}

// coverage describes which inputs cover an elementary revision span.
type coverage struct {
	inA, inhA bool
	inB, inhB bool
}

// combineRule decides whether a span is kept and whether it is inheritable.
type combineRule func(c coverage) (present, inheritable bool)

func unionRule(c coverage) (bool, bool) {
	return c.inA || c.inB, c.inhA || c.inhB
}

type boundary struct {
	at          vcs.Revnum
	side        int
	inheritable bool
	delta       int
}

// sweep walks the sorted boundaries of a and b and emits the spans rule
// keeps, coalescing neighbours of equal inheritability.
func sweep(a, b []Range, rule combineRule) []Range {
	events := make([]boundary, 0, 2*(len(a)+len(b)))

	for side, list := range [][]Range{a, b} {
		for _, r := range list {
			events = append(events,
				boundary{at: r.Start, side: side, inheritable: r.Inheritable, delta: 1},
				boundary{at: r.End, side: side, inheritable: r.Inheritable, delta: -1},
			)
		}
	}

	if len(events) == 0 {
		return nil
	}

	slices.SortStableFunc(events, func(x, y boundary) int {
		return cmp.Compare(x.at, y.at)
	})

	var (
		counts [2][2]int
		out    []Range
	)

	prev := events[0].at

	for i := 0; i < len(events); {
		at := events[i].at

		if at > prev {
			c := coverage{
				inA:  counts[0][0]+counts[0][1] > 0,
				inhA: counts[0][1] > 0,
				inB:  counts[1][0]+counts[1][1] > 0,
				inhB: counts[1][1] > 0,
			}

			if present, inh := rule(c); present {
				out = appendCoalesced(out, Range{Start: prev, End: at, Inheritable: inh})
			}
		}

		for ; i < len(events) && events[i].at == at; i++ {
			ev := events[i]
			counts[ev.side][boolIndex(ev.inheritable)] += ev.delta
		}

		prev = at
	}

	return out
}

func appendCoalesced(out []Range, r Range) []Range {
	if n := len(out); n > 0 && out[n-1].End == r.Start && out[n-1].Inheritable == r.Inheritable {
		out[n-1].End = r.End

		return out
	}

	return append(out, r)
}

func normalized(ranges []Range) []Range {
	if len(ranges) == 0 {
		return nil
	}

	return sweep(ranges, nil, unionRule)
}

func boolIndex(b bool) int {
	if b {
		return 1
	}

	return 0
}
