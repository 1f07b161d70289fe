// Package wc describes the working-copy metadata store the diff and merge
// engines read local state from and the merge driver writes results into.
// Paths are relative to the working-copy root ("" is the root itself).
package wc

import (
	"context"
	"errors"

	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
)

// Errors returned by working-copy stores.
var (
	// ErrNotVersioned is returned for paths the working copy does not track.
	ErrNotVersioned = errors.New("path is not under version control")
	// ErrObstructed is returned when an add collides with an existing node.
	ErrObstructed = errors.New("path is obstructed by an existing node")
	// ErrNoParent is returned when the parent of a new node is not a directory.
	ErrNoParent = errors.New("parent is not a versioned directory")
)

// Status is the local state of a node relative to its BASE.
type Status int

const (
	// StatusNormal is a node present in BASE and in the working tree.
	StatusNormal Status = iota
	// StatusAdded is scheduled for addition and has no BASE.
	StatusAdded
	// StatusDeleted is present in BASE but scheduled for deletion.
	StatusDeleted
	// StatusReplaced has a BASE node that was deleted and re-added locally.
	StatusReplaced
	// StatusNotPresent marks a BASE path recorded as absent at the base revision.
	StatusNotPresent
	// StatusExcluded marks a path the user excluded from the working copy.
	StatusExcluded
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusNormal:
		return "normal"
	case StatusAdded:
		return "added"
	case StatusDeleted:
		return "deleted"
	case StatusReplaced:
		return "replaced"
	case StatusNotPresent:
		return "not-present"
	case StatusExcluded:
		return "excluded"
	default:
		return "unknown"
	}
}

// Hidden reports whether a node with this status is invisible to diffs.
func (s Status) Hidden() bool {
	return s == StatusNotPresent || s == StatusExcluded
}

// BaseInfo describes the BASE (checked-out) version of a node.
type BaseInfo struct {
	ReposPath string
	Rev       vcs.Revnum
	Kind      vcs.NodeKind
	Checksum  vcs.Checksum
}

// Location returns the repository location of the BASE node.
func (b *BaseInfo) Location() vcs.Location {
	return vcs.Location{Path: b.ReposPath, Rev: b.Rev}
}

// Node is the metadata of one working-copy path.
type Node struct {
	Path string
	// Kind is the working kind; KindNone when the node is deleted locally.
	Kind   vcs.NodeKind
	Status Status
	// Base is nil for nodes with no BASE version.
	Base *BaseInfo
	// Origin is the copy source of a node added with history.
	Origin *vcs.Location
}

// Reader reads working-copy metadata and content.
type Reader interface {
	// ReadNode returns the metadata of path, or an error wrapping
	// ErrNotVersioned.
	ReadNode(ctx context.Context, path string) (Node, error)
	// ReadChildren returns the sorted names of every child recorded below
	// dir in BASE or in the working tree.
	ReadChildren(ctx context.Context, dir string) ([]string, error)
	// ReadBaseProps returns the pristine properties of the BASE node.
	ReadBaseProps(ctx context.Context, path string) (vcs.Props, error)
	// ReadProps returns the working properties; nil for deleted nodes.
	ReadProps(ctx context.Context, path string) (vcs.Props, error)
	// TranslatedWorkingFile returns the working text of a file in its
	// repository-normal form.
	TranslatedWorkingFile(ctx context.Context, path string) ([]byte, error)
}

// Writer schedules local modifications.
type Writer interface {
	Reader
	// WriteFile replaces the working text of a file.
	WriteFile(ctx context.Context, path string, content []byte) error
	// AddFile schedules a new file, with history when copyFrom is set.
	AddFile(ctx context.Context, path string, content []byte, props vcs.Props, copyFrom *vcs.Location) error
	// AddDirectory schedules a new directory, with history when copyFrom is set.
	AddDirectory(ctx context.Context, path string, props vcs.Props, copyFrom *vcs.Location) error
	// Delete schedules path and everything below it for deletion.
	Delete(ctx context.Context, path string) error
	// SetProps replaces the working properties of a node.
	SetProps(ctx context.Context, path string, props vcs.Props) error
}
