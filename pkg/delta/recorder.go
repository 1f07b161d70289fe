package delta

import (
	"context"
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
)

// Op names one editor call.
type Op string

// Editor operations.
const (
	OpSetTargetRevision Op = "set-target-revision"
	OpOpenRoot          Op = "open-root"
	OpDeleteEntry       Op = "delete-entry"
	OpAddDirectory      Op = "add-directory"
	OpOpenDirectory     Op = "open-directory"
	OpChangeDirProp     Op = "change-dir-prop"
	OpCloseDirectory    Op = "close-directory"
	OpAbsentDirectory   Op = "absent-directory"
	OpAddFile           Op = "add-file"
	OpOpenFile          Op = "open-file"
	OpApplyText         Op = "apply-text"
	OpChangeFileProp    Op = "change-file-prop"
	OpCloseFile         Op = "close-file"
	OpAbsentFile        Op = "absent-file"
	OpCloseEdit         Op = "close-edit"
)

// Event is one recorded editor call. Only the fields the operation uses are set.
type Event struct {
	Op       Op
	Path     string
	Rev      vcs.Revnum
	Kind     vcs.NodeKind
	CopyFrom *vcs.Location
	Change   *vcs.PropChange
	Checksum vcs.Checksum
	Content  []byte
}

// String renders the event compactly, e.g. "add-file A/f2 from ^/A/f@2".
func (e Event) String() string {
	var sb strings.Builder

	sb.WriteString(string(e.Op))

	if e.Path != "" || e.Op != OpSetTargetRevision && e.Op != OpOpenRoot && e.Op != OpCloseEdit {
		sb.WriteString(" ")
		sb.WriteString(displayPath(e.Path))
	}

	switch {
	case e.CopyFrom != nil:
		sb.WriteString(" from ")
		sb.WriteString(e.CopyFrom.String())
	case e.Change != nil && e.Change.IsDelete():
		fmt.Fprintf(&sb, " -%s", e.Change.Name)
	case e.Change != nil:
		fmt.Fprintf(&sb, " %s=%q", e.Change.Name, *e.Change.Value)
	case e.Op == OpSetTargetRevision || e.Op == OpOpenRoot:
		sb.WriteString(" r")
		sb.WriteString(e.Rev.String())
	}

	return sb.String()
}

func displayPath(p string) string {
	if p == "" {
		return "."
	}

	return p
}

// Recorder is an Editor that keeps every call, optionally forwarding to a
// wrapped editor. It is used to trace and replay deltas.
type Recorder struct {
	Events []Event
	next   Editor
}

// NewRecorder records events and forwards them to next, which may be nil.
func NewRecorder(next Editor) *Recorder {
	return &Recorder{next: next}
}

func (r *Recorder) record(ev Event, forward func(Editor) error) error {
	r.Events = append(r.Events, ev)

	if r.next == nil {
		return nil
	}

	return forward(r.next)
}

// Strings returns the String form of every event.
func (r *Recorder) Strings() []string {
	out := make([]string, len(r.Events))

	for i, ev := range r.Events {
		out[i] = ev.String()
	}

	return out
}

// SetTargetRevision implements Editor.
func (r *Recorder) SetTargetRevision(ctx context.Context, rev vcs.Revnum) error {
	return r.record(Event{Op: OpSetTargetRevision, Rev: rev}, func(e Editor) error {
		return e.SetTargetRevision(ctx, rev)
	})
}

// OpenRoot implements Editor.
func (r *Recorder) OpenRoot(ctx context.Context, baseRev vcs.Revnum) error {
	return r.record(Event{Op: OpOpenRoot, Rev: baseRev}, func(e Editor) error {
		return e.OpenRoot(ctx, baseRev)
	})
}

// DeleteEntry implements Editor.
func (r *Recorder) DeleteEntry(ctx context.Context, path string, kind vcs.NodeKind) error {
	return r.record(Event{Op: OpDeleteEntry, Path: path, Kind: kind}, func(e Editor) error {
		return e.DeleteEntry(ctx, path, kind)
	})
}

// AddDirectory implements Editor.
func (r *Recorder) AddDirectory(ctx context.Context, path string, copyFrom *vcs.Location) error {
	return r.record(Event{Op: OpAddDirectory, Path: path, Kind: vcs.KindDir, CopyFrom: copyFrom}, func(e Editor) error {
		return e.AddDirectory(ctx, path, copyFrom)
	})
}

// OpenDirectory implements Editor.
func (r *Recorder) OpenDirectory(ctx context.Context, path string) error {
	return r.record(Event{Op: OpOpenDirectory, Path: path, Kind: vcs.KindDir}, func(e Editor) error {
		return e.OpenDirectory(ctx, path)
	})
}

// ChangeDirProp implements Editor.
func (r *Recorder) ChangeDirProp(ctx context.Context, path string, change vcs.PropChange) error {
	return r.record(Event{Op: OpChangeDirProp, Path: path, Change: &change}, func(e Editor) error {
		return e.ChangeDirProp(ctx, path, change)
	})
}

// CloseDirectory implements Editor.
func (r *Recorder) CloseDirectory(ctx context.Context, path string) error {
	return r.record(Event{Op: OpCloseDirectory, Path: path}, func(e Editor) error {
		return e.CloseDirectory(ctx, path)
	})
}

// AbsentDirectory implements Editor.
func (r *Recorder) AbsentDirectory(ctx context.Context, path string) error {
	return r.record(Event{Op: OpAbsentDirectory, Path: path}, func(e Editor) error {
		return e.AbsentDirectory(ctx, path)
	})
}

// AddFile implements Editor.
func (r *Recorder) AddFile(ctx context.Context, path string, copyFrom *vcs.Location) error {
	return r.record(Event{Op: OpAddFile, Path: path, Kind: vcs.KindFile, CopyFrom: copyFrom}, func(e Editor) error {
		return e.AddFile(ctx, path, copyFrom)
	})
}

// OpenFile implements Editor.
func (r *Recorder) OpenFile(ctx context.Context, path string) error {
	return r.record(Event{Op: OpOpenFile, Path: path, Kind: vcs.KindFile}, func(e Editor) error {
		return e.OpenFile(ctx, path)
	})
}

// ApplyText implements Editor.
func (r *Recorder) ApplyText(ctx context.Context, path string, baseChecksum vcs.Checksum, content []byte) error {
	ev := Event{Op: OpApplyText, Path: path, Checksum: baseChecksum, Content: content}

	return r.record(ev, func(e Editor) error {
		return e.ApplyText(ctx, path, baseChecksum, content)
	})
}

// ChangeFileProp implements Editor.
func (r *Recorder) ChangeFileProp(ctx context.Context, path string, change vcs.PropChange) error {
	return r.record(Event{Op: OpChangeFileProp, Path: path, Change: &change}, func(e Editor) error {
		return e.ChangeFileProp(ctx, path, change)
	})
}

// CloseFile implements Editor.
func (r *Recorder) CloseFile(ctx context.Context, path string, checksum vcs.Checksum) error {
	return r.record(Event{Op: OpCloseFile, Path: path, Checksum: checksum}, func(e Editor) error {
		return e.CloseFile(ctx, path, checksum)
	})
}

// AbsentFile implements Editor.
func (r *Recorder) AbsentFile(ctx context.Context, path string) error {
	return r.record(Event{Op: OpAbsentFile, Path: path}, func(e Editor) error {
		return e.AbsentFile(ctx, path)
	})
}

// CloseEdit implements Editor.
func (r *Recorder) CloseEdit(ctx context.Context) error {
	return r.record(Event{Op: OpCloseEdit}, func(e Editor) error {
		return e.CloseEdit(ctx)
	})
}

// Replay drives editor with recorded events, stopping at the first error.
func Replay(ctx context.Context, events []Event, editor Editor) error {
	for _, ev := range events {
		if err := vcs.CheckCancelled(ctx); err != nil {
			return err
		}

		if err := replayOne(ctx, ev, editor); err != nil {
			return fmt.Errorf("replay %s: %w", ev.Op, err)
		}
	}

	return nil
}

//nolint:cyclop // one case per editor operation.
func replayOne(ctx context.Context, ev Event, editor Editor) error {
	switch ev.Op {
	case OpSetTargetRevision:
		return editor.SetTargetRevision(ctx, ev.Rev)
	case OpOpenRoot:
		return editor.OpenRoot(ctx, ev.Rev)
	case OpDeleteEntry:
		return editor.DeleteEntry(ctx, ev.Path, ev.Kind)
	case OpAddDirectory:
		return editor.AddDirectory(ctx, ev.Path, ev.CopyFrom)
	case OpOpenDirectory:
		return editor.OpenDirectory(ctx, ev.Path)
	case OpChangeDirProp:
		return editor.ChangeDirProp(ctx, ev.Path, *ev.Change)
	case OpCloseDirectory:
		return editor.CloseDirectory(ctx, ev.Path)
	case OpAbsentDirectory:
		return editor.AbsentDirectory(ctx, ev.Path)
	case OpAddFile:
		return editor.AddFile(ctx, ev.Path, ev.CopyFrom)
	case OpOpenFile:
		return editor.OpenFile(ctx, ev.Path)
	case OpApplyText:
		return editor.ApplyText(ctx, ev.Path, ev.Checksum, ev.Content)
	case OpChangeFileProp:
		return editor.ChangeFileProp(ctx, ev.Path, *ev.Change)
	case OpCloseFile:
		return editor.CloseFile(ctx, ev.Path, ev.Checksum)
	case OpAbsentFile:
		return editor.AbsentFile(ctx, ev.Path)
	case OpCloseEdit:
		return editor.CloseEdit(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOp, ev.Op)
	}
}
