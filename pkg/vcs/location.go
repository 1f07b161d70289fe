package vcs

import (
	"fmt"
	"path"
	"strconv"
	"strings"
)

// Location pins a repository-relative path at a revision.
type Location struct {
	Path string
	Rev  Revnum
}

// String renders the location as path@rev.
func (l Location) String() string {
	return "^/" + l.Path + "@" + l.Rev.String()
}

// ParseLocation reads "path@rev". A leading "^/" or "/" is dropped; a
// missing or "HEAD" revision yields InvalidRevnum, left for the caller to
// resolve against the youngest revision.
func ParseLocation(text string) (Location, error) {
	rel, rev, hasRev := strings.Cut(text, "@")

	rel = strings.TrimPrefix(rel, "^")
	loc := Location{Path: strings.Trim(rel, "/"), Rev: InvalidRevnum}

	if !hasRev || rev == "" || strings.EqualFold(rev, "HEAD") {
		return loc, nil
	}

	n, err := strconv.ParseInt(rev, 10, 64)
	if err != nil || n < 0 {
		return Location{}, fmt.Errorf("%w: %q", ErrInvalidLocation, text)
	}

	loc.Rev = Revnum(n)

	return loc, nil
}

// FSPath returns the path in the leading-slash form used as mergeinfo keys.
func (l Location) FSPath() string {
	return ToFSPath(l.Path)
}

// Segment is one span of a node's line of history: the node lived at Path for
// every revision in [Start, End]. An empty Path marks a gap in the history.
type Segment struct {
	Path  string
	Start Revnum
	End   Revnum
}

// IsGap reports whether the segment has no path.
func (s Segment) IsGap() bool {
	return s.Path == ""
}

// Contains reports whether rev falls inside the segment.
func (s Segment) Contains(rev Revnum) bool {
	return rev >= s.Start && rev <= s.End
}

// ToFSPath converts a repository-relative path into "/path" form.
func ToFSPath(relpath string) string {
	return "/" + strings.Trim(relpath, "/")
}

// FromFSPath converts "/path" into a repository-relative path.
func FromFSPath(fspath string) string {
	return strings.Trim(fspath, "/")
}

// JoinRelpath joins relpath components, ignoring empty parts.
func JoinRelpath(parts ...string) string {
	kept := make([]string, 0, len(parts))

	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			kept = append(kept, p)
		}
	}

	return strings.Join(kept, "/")
}

// ParentRelpath returns the parent of relpath; the root's parent is "".
func ParentRelpath(relpath string) string {
	dir := path.Dir(relpath)
	if dir == "." || dir == "/" {
		return ""
	}

	return dir
}

// BaseName returns the final component of relpath.
func BaseName(relpath string) string {
	if relpath == "" {
		return ""
	}

	return path.Base(relpath)
}

// SkipAncestor returns the remainder of child below ancestor and whether
// ancestor is ancestor-or-self of child.
func SkipAncestor(ancestor, child string) (string, bool) {
	if ancestor == "" {
		return child, true
	}

	if child == ancestor {
		return "", true
	}

	if strings.HasPrefix(child, ancestor+"/") {
		return child[len(ancestor)+1:], true
	}

	return "", false
}

// IsAncestor reports whether ancestor is a proper ancestor of child.
func IsAncestor(ancestor, child string) bool {
	rest, ok := SkipAncestor(ancestor, child)

	return ok && rest != ""
}
