// Package delta defines the tree-delta editor protocol: the ordered stream of
// open/add/delete/change/close events that describes how one tree becomes
// another. Paths are relative to the edit root ("" is the root itself) and
// events arrive depth-first, with every directory closed after its children.
package delta

import (
	"context"

	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
)

// Editor receives a tree delta. A driver calls SetTargetRevision first and
// CloseEdit last. When the two trees are identical a driver may skip
// OpenRoot entirely and go straight to CloseEdit.
type Editor interface {
	SetTargetRevision(ctx context.Context, rev vcs.Revnum) error
	OpenRoot(ctx context.Context, baseRev vcs.Revnum) error
	DeleteEntry(ctx context.Context, path string, kind vcs.NodeKind) error
	AddDirectory(ctx context.Context, path string, copyFrom *vcs.Location) error
	OpenDirectory(ctx context.Context, path string) error
	ChangeDirProp(ctx context.Context, path string, change vcs.PropChange) error
	CloseDirectory(ctx context.Context, path string) error
	AbsentDirectory(ctx context.Context, path string) error
	AddFile(ctx context.Context, path string, copyFrom *vcs.Location) error
	OpenFile(ctx context.Context, path string) error
	// ApplyText replaces the file text. baseChecksum is the checksum of the
	// text being replaced (zero for a plain add).
	ApplyText(ctx context.Context, path string, baseChecksum vcs.Checksum, content []byte) error
	ChangeFileProp(ctx context.Context, path string, change vcs.PropChange) error
	// CloseFile ends the file; checksum is the expected final text checksum.
	CloseFile(ctx context.Context, path string, checksum vcs.Checksum) error
	AbsentFile(ctx context.Context, path string) error
	CloseEdit(ctx context.Context) error
}

// NopEditor ignores every event. Embed it to implement part of Editor.
type NopEditor struct{}

// SetTargetRevision implements Editor.
func (NopEditor) SetTargetRevision(context.Context, vcs.Revnum) error { return nil }

// OpenRoot implements Editor.
func (NopEditor) OpenRoot(context.Context, vcs.Revnum) error { return nil }

// DeleteEntry implements Editor.
func (NopEditor) DeleteEntry(context.Context, string, vcs.NodeKind) error { return nil }

// AddDirectory implements Editor.
func (NopEditor) AddDirectory(context.Context, string, *vcs.Location) error { return nil }

// OpenDirectory implements Editor.
func (NopEditor) OpenDirectory(context.Context, string) error { return nil }

// ChangeDirProp implements Editor.
func (NopEditor) ChangeDirProp(context.Context, string, vcs.PropChange) error { return nil }

// CloseDirectory implements Editor.
func (NopEditor) CloseDirectory(context.Context, string) error { return nil }

// AbsentDirectory implements Editor.
func (NopEditor) AbsentDirectory(context.Context, string) error { return nil }

// AddFile implements Editor.
func (NopEditor) AddFile(context.Context, string, *vcs.Location) error { return nil }

// OpenFile implements Editor.
func (NopEditor) OpenFile(context.Context, string) error { return nil }

// ApplyText implements Editor.
func (NopEditor) ApplyText(context.Context, string, vcs.Checksum, []byte) error { return nil }

// ChangeFileProp implements Editor.
func (NopEditor) ChangeFileProp(context.Context, string, vcs.PropChange) error { return nil }

// CloseFile implements Editor.
func (NopEditor) CloseFile(context.Context, string, vcs.Checksum) error { return nil }

// AbsentFile implements Editor.
func (NopEditor) AbsentFile(context.Context, string) error { return nil }

// CloseEdit implements Editor.
func (NopEditor) CloseEdit(context.Context) error { return nil }
