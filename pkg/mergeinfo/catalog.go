package mergeinfo

import (
	"maps"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
)

// Catalog maps paths relative to a tree root ("" is the root itself) to the
// mergeinfo recorded on that node.
type Catalog map[string]MergeInfo

// SortedPaths returns the catalog keys in depth-first order.
func (c Catalog) SortedPaths() []string {
	return slices.Sorted(maps.Keys(c))
}

// Clone returns a shallow copy.
func (c Catalog) Clone() Catalog {
	if c == nil {
		return Catalog{}
	}

	return maps.Clone(c)
}

// String renders every entry as a "path" header followed by its mergeinfo.
func (c Catalog) String() string {
	var sb strings.Builder

	for _, p := range c.SortedPaths() {
		name := p
		if name == "" {
			name = "."
		}

		sb.WriteString(name)
		sb.WriteString("\n")

		for _, line := range strings.Split(c[p].String(), "\n") {
			sb.WriteString("  ")
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

func (c Catalog) set(path string, m MergeInfo) {
	if m.IsEmpty() {
		delete(c, path)

		return
	}

	c[path] = m
}

// MergeCatalogs returns the per-path union of a and b.
func MergeCatalogs(a, b Catalog) Catalog {
	out := a.Clone()

	for p, m := range b {
		out.set(p, Merge(out[p], m))
	}

	return out
}

// IntersectCatalog intersects every entry of c with info.
func IntersectCatalog(c Catalog, info MergeInfo, considerInheritance bool) Catalog {
	out := Catalog{}

	for p, m := range c {
		out.set(p, Intersect(m, info, considerInheritance))
	}

	return out
}

// FilterCatalogByRange applies FilterByRange to every entry.
func FilterCatalogByRange(c Catalog, oldest, youngest vcs.Revnum, include bool) Catalog {
	out := Catalog{}

	for p, m := range c {
		out.set(p, FilterByRange(m, oldest, youngest, include))
	}

	return out
}

// AddPrefix re-roots every key under prefix.
func AddPrefix(c Catalog, prefix string) Catalog {
	out := make(Catalog, len(c))

	for p, m := range c {
		out[vcs.JoinRelpath(prefix, p)] = m
	}

	return out
}

// RemovePrefix re-roots every key from prefix to "". Keys outside prefix are
// dropped.
func RemovePrefix(c Catalog, prefix string) Catalog {
	out := make(Catalog, len(c))

	for p, m := range c {
		if rest, ok := vcs.SkipAncestor(prefix, p); ok {
			out[rest] = m
		}
	}

	return out
}

// ShouldElide reports whether child mergeinfo adds nothing over what it
// inherits from parent, which sits suffix levels above it.
func ShouldElide(parent, child MergeInfo, suffix string) bool {
	if child.IsEmpty() {
		return parent.IsEmpty()
	}

	if parent.IsEmpty() {
		return false
	}

	inherited := AdjustSourcePaths(parent.Inheritable(), suffix)

	return Equal(inherited, child, true)
}

// Elide removes catalog entries whose mergeinfo equals what they would
// inherit from their nearest ancestor entry. Entries without an ancestor in
// the catalog are compared with parentInfo, the mergeinfo the catalog root
// inherits from above. A root entry equal to parentInfo elides too.
func Elide(c Catalog, parentInfo MergeInfo) Catalog {
	out := Catalog{}

	for _, p := range c.SortedPaths() {
		anchor, info, found := nearestAncestor(c, p)

		var keep bool

		switch {
		case found:
			rest, _ := vcs.SkipAncestor(anchor, p)
			keep = !ShouldElide(info, c[p], rest)
		case parentInfo != nil:
			keep = !ShouldElide(parentInfo, c[p], p)
		default:
			keep = true
		}

		if keep {
			out[p] = c[p]
		}
	}

	return out
}

func nearestAncestor(c Catalog, path string) (string, MergeInfo, bool) {
	if path == "" {
		return "", nil, false
	}

	for cur := vcs.ParentRelpath(path); ; cur = vcs.ParentRelpath(cur) {
		if m, ok := c[cur]; ok {
			return cur, m, true
		}

		if cur == "" {
			return "", nil, false
		}
	}
}
