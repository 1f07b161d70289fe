// Package vcs holds the value types shared by the diff and merge engines:
// revision numbers, node kinds, recursion depth, repository locations,
// content checksums, property maps and the fatal error taxonomy.
package vcs

import (
	"fmt"
	"strconv"
)

// Revnum is a repository revision number.
type Revnum int64

// InvalidRevnum marks an unknown or unset revision.
const InvalidRevnum Revnum = -1

// IsValid reports whether r names a real revision.
func (r Revnum) IsValid() bool {
	return r >= 0
}

// String returns the decimal form, or "?" for an invalid revision.
func (r Revnum) String() string {
	if !r.IsValid() {
		return "?"
	}

	return strconv.FormatInt(int64(r), 10)
}

// RevisionKind distinguishes numbered revisions from the working state.
type RevisionKind int

const (
	// RevisionNumber is a committed repository revision.
	RevisionNumber RevisionKind = iota
	// RevisionWorking is the local, possibly modified, working state.
	RevisionWorking
)

// Revision refers to one side of a comparison: either a revision number or
// the working state of a working copy.
type Revision struct {
	Kind   RevisionKind
	Number Revnum
}

// Number returns a Revision for a committed revision.
func Number(rev Revnum) Revision {
	return Revision{Kind: RevisionNumber, Number: rev}
}

// Working returns the working-state sentinel.
func Working() Revision {
	return Revision{Kind: RevisionWorking, Number: InvalidRevnum}
}

// IsWorking reports whether the revision is the working-state sentinel.
func (r Revision) IsWorking() bool {
	return r.Kind == RevisionWorking
}

// String renders the revision the way diff headers show it.
func (r Revision) String() string {
	if r.IsWorking() {
		return "working copy"
	}

	return "revision " + r.Number.String()
}

// NodeKind is the kind of a versioned node.
type NodeKind int

const (
	// KindNone means no node exists.
	KindNone NodeKind = iota
	// KindFile is a versioned file.
	KindFile
	// KindDir is a versioned directory.
	KindDir
	// KindUnknown is used when the kind could not be determined.
	KindUnknown
)

// String returns the lower-case kind name.
func (k NodeKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	case KindUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Depth limits how far a diff recurses below its anchor.
type Depth int

const (
	// DepthUnknown is the zero value; treated as DepthInfinity by the engines.
	DepthUnknown Depth = iota
	// DepthEmpty covers the node itself only.
	DepthEmpty
	// DepthFiles covers the node and its immediate file children.
	DepthFiles
	// DepthImmediates covers the node and all its immediate children.
	DepthImmediates
	// DepthInfinity recurses without limit.
	DepthInfinity
)

// ParseDepth converts the command-line spelling of a depth.
func ParseDepth(s string) (Depth, error) {
	switch s {
	case "empty":
		return DepthEmpty, nil
	case "files":
		return DepthFiles, nil
	case "immediates":
		return DepthImmediates, nil
	case "infinity", "":
		return DepthInfinity, nil
	default:
		return DepthUnknown, fmt.Errorf("%w: %q", ErrInvalidDepth, s)
	}
}

// String returns the command-line spelling.
func (d Depth) String() string {
	switch d {
	case DepthEmpty:
		return "empty"
	case DepthFiles:
		return "files"
	case DepthImmediates:
		return "immediates"
	case DepthInfinity, DepthUnknown:
		return "infinity"
	default:
		return fmt.Sprintf("depth(%d)", int(d))
	}
}

// Normalize maps DepthUnknown onto DepthInfinity.
func (d Depth) Normalize() Depth {
	if d == DepthUnknown {
		return DepthInfinity
	}

	return d
}

// AllowsChild reports whether a child of the given kind is inside the depth.
func (d Depth) AllowsChild(kind NodeKind) bool {
	switch d.Normalize() {
	case DepthEmpty:
		return false
	case DepthFiles:
		return kind == KindFile
	default:
		return true
	}
}

// ForChild returns the depth a child directory is walked with.
func (d Depth) ForChild() Depth {
	if d.Normalize() == DepthImmediates {
		return DepthEmpty
	}

	return d.Normalize()
}
