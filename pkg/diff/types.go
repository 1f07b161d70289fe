// Package diff is the tree-diff engine. A Walker consumes a tree delta,
// classifies every node it touches as added, deleted, changed or unchanged,
// and reports the result to a Callback. It compares two repository trees,
// or a repository tree against a working copy, honouring node ancestry:
// the same path holding an unrelated node is a delete plus an add, never a
// modification.
package diff

import (
	"bytes"

	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
)

// Source describes one side of a comparison for a single node.
type Source struct {
	Revision vcs.Revision
	// Path is the repository path, or the working-copy path on the
	// working side.
	Path string
	// CopyFrom is set when the node was added with history.
	CopyFrom *vcs.Location
}

// Result is what a callback returns when a node is opened.
type Result struct {
	// Skip suppresses the final report for this node only.
	Skip bool
	// SkipChildren suppresses everything below this node.
	SkipChildren bool
}

// FileEvent carries one file of the comparison. Left or Right is nil when the
// file is absent on that side.
type FileEvent struct {
	Path        string
	Left, Right *Source
	LeftText    []byte
	RightText   []byte
	LeftProps   vcs.Props
	RightProps  vcs.Props
	// PropChanges turn LeftProps into RightProps.
	PropChanges []vcs.PropChange
	// CopyFromText and CopyFromProps hold the copy source of a file added
	// with history, so consumers can tell a plain copy from an edited one.
	CopyFromText  []byte
	CopyFromProps vcs.Props
}

// TextChanged reports whether the two texts differ.
func (e *FileEvent) TextChanged() bool {
	return !bytes.Equal(e.LeftText, e.RightText)
}

// CopiedUnchanged reports whether an added-with-history file still has the
// text and properties of its copy source.
func (e *FileEvent) CopiedUnchanged() bool {
	if e.Right == nil || e.Right.CopyFrom == nil {
		return false
	}

	return bytes.Equal(e.CopyFromText, e.RightText) && len(vcs.DiffProps(e.CopyFromProps, e.RightProps)) == 0
}

// DirEvent carries one directory of the comparison.
type DirEvent struct {
	Path        string
	Left, Right *Source
	LeftProps   vcs.Props
	RightProps  vcs.Props
	PropChanges []vcs.PropChange
}

// Action names the final report of a node.
type Action string

// Actions reported for nodes.
const (
	ActionAdded     Action = "added"
	ActionDeleted   Action = "deleted"
	ActionChanged   Action = "changed"
	ActionUnchanged Action = "unchanged"
	ActionAbsent    Action = "absent"
)

func newFileEvent(path string, left, right *Source) *FileEvent {
	return &FileEvent{Path: path, Left: left, Right: right}
}

func (e *FileEvent) finish() Action {
	e.PropChanges = vcs.DiffProps(e.LeftProps, e.RightProps)

	switch {
	case e.Left == nil:
		return ActionAdded
	case e.Right == nil:
		return ActionDeleted
	case e.TextChanged() || len(e.PropChanges) > 0:
		return ActionChanged
	default:
		return ActionUnchanged
	}
}

func (e *DirEvent) finish() Action {
	e.PropChanges = vcs.DiffProps(e.LeftProps, e.RightProps)

	switch {
	case e.Left == nil:
		return ActionAdded
	case e.Right == nil:
		return ActionDeleted
	case len(e.PropChanges) > 0:
		return ActionChanged
	default:
		return ActionUnchanged
	}
}
