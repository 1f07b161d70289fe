package mergeinfo

import (
	"maps"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
)

// MergeInfo maps repository-absolute source paths ("/trunk") to the revision
// ranges merged from them. Empty range lists are never stored.
type MergeInfo map[string]RangeList

// String serializes the mergeinfo in canonical form: one "path:ranges" entry
// per line, sorted by path.
func (m MergeInfo) String() string {
	lines := make([]string, 0, len(m))

	for _, p := range m.Paths() {
		lines = append(lines, p+":"+m[p].String())
	}

	return strings.Join(lines, "\n")
}

// Paths returns the source paths in sorted order.
func (m MergeInfo) Paths() []string {
	return slices.Sorted(maps.Keys(m))
}

// IsEmpty reports whether no source path is recorded.
func (m MergeInfo) IsEmpty() bool {
	return len(m) == 0
}

// Clone returns a copy. RangeLists are immutable and shared.
func (m MergeInfo) Clone() MergeInfo {
	if m == nil {
		return MergeInfo{}
	}

	return maps.Clone(m)
}

// Inheritable drops every non-inheritable range.
func (m MergeInfo) Inheritable() MergeInfo {
	out := MergeInfo{}

	for p, rl := range m {
		out.set(p, rl.Inheritable())
	}

	return out
}

// Count returns the number of merged revisions across all sources.
func (m MergeInfo) Count() int64 {
	var total int64

	for _, rl := range m {
		total += rl.Count()
	}

	return total
}

func (m MergeInfo) set(path string, rl RangeList) {
	if rl.IsEmpty() {
		delete(m, path)

		return
	}

	m[path] = rl
}

// Merge returns the per-path union of a and b.
func Merge(a, b MergeInfo) MergeInfo {
	out := a.Clone()

	for p, rl := range b {
		out.set(p, MergeRanges(out[p], rl))
	}

	return out
}

// Remove returns a minus b per path.
func Remove(a, b MergeInfo, considerInheritance bool) MergeInfo {
	out := MergeInfo{}

	for p, rl := range a {
		out.set(p, RemoveRanges(rl, b[p], considerInheritance))
	}

	return out
}

// Intersect returns the per-path intersection of a and b.
func Intersect(a, b MergeInfo, considerInheritance bool) MergeInfo {
	out := MergeInfo{}

	for p, rl := range a {
		other, ok := b[p]
		if !ok {
			continue
		}

		out.set(p, IntersectRanges(rl, other, considerInheritance))
	}

	return out
}

// FilterByRange keeps (include) or drops the revisions oldest+1 through
// youngest in every path.
func FilterByRange(m MergeInfo, oldest, youngest vcs.Revnum, include bool) MergeInfo {
	out := MergeInfo{}

	for p, rl := range m {
		out.set(p, FilterRanges(rl, oldest, youngest, include))
	}

	return out
}

// AdjustSourcePaths appends suffix to every source path. This is how a
// descendant sees mergeinfo it inherits from an ancestor.
func AdjustSourcePaths(m MergeInfo, suffix string) MergeInfo {
	if suffix == "" {
		return m.Clone()
	}

	out := make(MergeInfo, len(m))

	for p, rl := range m {
		out[joinFSPath(p, suffix)] = rl
	}

	return out
}

// Equal reports whether a and b record the same sources and revisions.
func Equal(a, b MergeInfo, considerInheritance bool) bool {
	if len(a) != len(b) {
		return false
	}

	for p, rl := range a {
		other, ok := b[p]
		if !ok || !rl.Equal(other, considerInheritance) {
			return false
		}
	}

	return true
}

// Endpoints returns the smallest Start and largest End over every range,
// or two invalid revisions when m is empty.
func Endpoints(m MergeInfo) (oldest, youngest vcs.Revnum) {
	oldest, youngest = vcs.InvalidRevnum, vcs.InvalidRevnum

	for _, rl := range m {
		lo, hi := rl.Endpoints()
		if !lo.IsValid() {
			continue
		}

		if !oldest.IsValid() || lo < oldest {
			oldest = lo
		}

		if hi > youngest {
			youngest = hi
		}
	}

	return oldest, youngest
}

// FromSegments converts a line of history into mergeinfo: every path the
// node occupied maps to the revisions it occupied it. Gap segments are
// skipped, so an interrupted history simply has a hole.
func FromSegments(segments []vcs.Segment) MergeInfo {
	out := MergeInfo{}

	for _, seg := range segments {
		if seg.IsGap() || seg.End < seg.Start {
			continue
		}

		start := max(seg.Start-1, 0)
		if start >= seg.End {
			continue
		}

		rl := MustRangeList(Range{Start: start, End: seg.End, Inheritable: true})
		p := vcs.ToFSPath(seg.Path)
		out.set(p, MergeRanges(out[p], rl))
	}

	return out
}

func joinFSPath(base, suffix string) string {
	suffix = strings.Trim(suffix, "/")
	if suffix == "" {
		return base
	}

	if base == "/" {
		return "/" + suffix
	}

	return strings.TrimRight(base, "/") + "/" + suffix
}
