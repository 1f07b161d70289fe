// Package ra defines the repository-access session the diff and merge
// engines read the repository through.
package ra

import (
	"context"
	"errors"

	"github.com/Sumatoshi-tech/treemerge/pkg/delta"
	"github.com/Sumatoshi-tech/treemerge/pkg/mergeinfo"
	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
)

// Errors returned by sessions.
var (
	// ErrNoSuchRevision is returned for revisions beyond the youngest.
	ErrNoSuchRevision = errors.New("no such revision")
	// ErrNotAFile is returned by GetFile on a directory.
	ErrNotAFile = errors.New("path is not a file")
	// ErrNotADirectory is returned by GetDir on a file.
	ErrNotADirectory = errors.New("path is not a directory")
)

// Inheritance selects which mergeinfo MergeInfo reports.
type Inheritance int

const (
	// Explicit reports only mergeinfo set on the path itself.
	Explicit Inheritance = iota
	// Inherited falls back to the nearest ancestor's inheritable mergeinfo.
	Inherited
	// NearestAncestor always uses the nearest ancestor, ignoring the path itself.
	NearestAncestor
)

// DirEntry is one child of a directory.
type DirEntry struct {
	Name string
	Kind vcs.NodeKind
}

// InheritedProps is the property list of one ancestor of a path.
type InheritedProps struct {
	Path  string
	Props vcs.Props
}

// DiffRequest asks for the delta that turns Left into Right.
type DiffRequest struct {
	Left           vcs.Location
	Right          vcs.Location
	Depth          vcs.Depth
	IgnoreAncestry bool
}

// Session reads one repository. Paths are repository-relative ("" is the root).
type Session interface {
	// LatestRevision returns the youngest revision.
	LatestRevision(ctx context.Context) (vcs.Revnum, error)
	// CheckPath returns the kind of the node at path@rev, KindNone if absent.
	CheckPath(ctx context.Context, path string, rev vcs.Revnum) (vcs.NodeKind, error)
	// GetFile returns the text and properties of a file.
	GetFile(ctx context.Context, path string, rev vcs.Revnum) ([]byte, vcs.Props, error)
	// GetDir returns the sorted children and properties of a directory.
	GetDir(ctx context.Context, path string, rev vcs.Revnum) ([]DirEntry, vcs.Props, error)
	// LocationSegments returns the line of history of path@peg between
	// start and end (inclusive), oldest first. Spans where the node did not
	// exist are returned as gap segments.
	LocationSegments(ctx context.Context, path string, peg, start, end vcs.Revnum) ([]vcs.Segment, error)
	// InheritedProps returns the properties of every ancestor of path@rev,
	// root first.
	InheritedProps(ctx context.Context, path string, rev vcs.Revnum) ([]InheritedProps, error)
	// MergeInfo returns the mergeinfo of each path at rev, keyed by path.
	// With includeDescendants, explicit mergeinfo below each path is added.
	MergeInfo(
		ctx context.Context, paths []string, rev vcs.Revnum, inherit Inheritance, includeDescendants bool,
	) (mergeinfo.Catalog, error)
	// Diff drives editor with the delta described by req.
	Diff(ctx context.Context, req DiffRequest, editor delta.Editor) error
}
