package diff

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Sumatoshi-tech/treemerge/pkg/delta"
	"github.com/Sumatoshi-tech/treemerge/pkg/observability"
	"github.com/Sumatoshi-tech/treemerge/pkg/pristine"
	"github.com/Sumatoshi-tech/treemerge/pkg/ra"
	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
	"github.com/Sumatoshi-tech/treemerge/pkg/wc"
)

type walkMode int

const (
	// reposMode compares two repository trees: the delta turns left into right.
	reposMode walkMode = iota
	// localMode compares a repository tree against a working copy: the
	// delta turns BASE into the left tree and the right side is local.
	localMode
)

// nodeEntry is the walker's state for one open node. Entries form a stack
// with one frame per open directory plus the open file, if any.
type nodeEntry struct {
	path string
	kind vcs.NodeKind
	part Participation
	// ignored entries sit below a node whose children were skipped.
	ignored bool
	result  Result
	depth   vcs.Depth

	added    bool
	replaced bool
	copyFrom *vcs.Location

	// pre is the node before the delta is applied, post after it.
	preText   []byte
	preProps  vcs.Props
	postText  []byte
	postProps vcs.Props

	local *wc.Node

	compared map[string]bool
	pending  *pendingDelete
}

type pendingDelete struct {
	name string
	kind vcs.NodeKind
}

// Walker is the tree-diff state machine. It implements delta.Editor: drive
// it with the delta between the two trees and it reports every node to its
// Callback. A Walker runs one walk and is not safe for concurrent use.
type Walker struct {
	cb      Callback
	opts    Options
	logger  *slog.Logger
	metrics *observability.DiffMetrics
	mode    walkMode
	session ra.Session

	// left is the left anchor. In local mode its revision is the BASE
	// revision the delta starts from and target is the left revision.
	left, right vcs.Location
	target      vcs.Revnum

	local wc.Reader
	store pristine.Store

	stack      []*nodeEntry
	rootOpened bool
	stats      Stats
}

var _ delta.Editor = (*Walker)(nil)

// NewReposWalker creates a walker comparing left with right, both
// repository directories. The session serves the content of unchanged and
// deleted nodes.
func NewReposWalker(session ra.Session, left, right vcs.Location, cb Callback, opts Options) *Walker {
	return &Walker{
		cb:      opts.wrap(cb),
		opts:    opts,
		logger:  opts.logger(),
		metrics: opts.Metrics,
		mode:    reposMode,
		session: session,
		left:    left,
		right:   right,
		target:  right.Rev,
	}
}

// NewLocalWalker creates a walker comparing the repository tree the delta
// produces from BASE against the working copy. base is the repository
// location of the working-copy root at its BASE revision.
func NewLocalWalker(
	session ra.Session, local wc.Reader, store pristine.Store, base vcs.Location, cb Callback, opts Options,
) *Walker {
	return &Walker{
		cb:      opts.wrap(cb),
		opts:    opts,
		logger:  opts.logger(),
		metrics: opts.Metrics,
		mode:    localMode,
		session: session,
		left:    base,
		target:  base.Rev,
		local:   local,
		store:   store,
	}
}

// Stats returns the counts of reported nodes.
func (w *Walker) Stats() Stats {
	return w.stats
}

func (w *Walker) top() *nodeEntry {
	if len(w.stack) == 0 {
		return nil
	}

	return w.stack[len(w.stack)-1]
}

func (w *Walker) push(e *nodeEntry) {
	w.stack = append(w.stack, e)
}

func (w *Walker) pop(path string, kind vcs.NodeKind) (*nodeEntry, error) {
	e := w.top()
	if e == nil || e.path != path || e.kind != kind {
		return nil, fmt.Errorf("close %s '%s': %w", kind, path, ErrUnexpectedPath)
	}

	w.stack = w.stack[:len(w.stack)-1]

	return e, nil
}

func (w *Walker) current(path string) (*nodeEntry, error) {
	e := w.top()
	if e == nil || e.path != path {
		return nil, fmt.Errorf("edit '%s': %w", path, ErrUnexpectedPath)
	}

	return e, nil
}

// leftPath is the repository path of rel on the left side.
func (w *Walker) leftPath(rel string) string {
	return vcs.JoinRelpath(w.left.Path, rel)
}

// leftRev is the revision of the left side.
func (w *Walker) leftRev() vcs.Revnum {
	if w.mode == reposMode {
		return w.left.Rev
	}

	return w.target
}

func (w *Walker) leftSource(rel string) *Source {
	return &Source{Revision: vcs.Number(w.leftRev()), Path: w.leftPath(rel)}
}

func (w *Walker) rightSource(rel string, copyFrom *vcs.Location) *Source {
	if w.mode == localMode {
		return &Source{Revision: vcs.Working(), Path: rel, CopyFrom: copyFrom}
	}

	return &Source{Revision: vcs.Number(w.right.Rev), Path: vcs.JoinRelpath(w.right.Path, rel), CopyFrom: copyFrom}
}

// SetTargetRevision implements delta.Editor.
func (w *Walker) SetTargetRevision(ctx context.Context, rev vcs.Revnum) error {
	if err := vcs.CheckCancelled(ctx); err != nil {
		return err
	}

	w.target = rev

	return nil
}

// OpenRoot implements delta.Editor.
func (w *Walker) OpenRoot(ctx context.Context, _ vcs.Revnum) error {
	if err := vcs.CheckCancelled(ctx); err != nil {
		return err
	}

	w.rootOpened = true

	e := &nodeEntry{kind: vcs.KindDir, part: Both, depth: w.opts.Depth.Normalize(), compared: map[string]bool{}}

	if err := w.attachLocal(ctx, e); err != nil {
		return err
	}

	if err := w.loadBase(ctx, e); err != nil {
		return err
	}

	return w.openDir(ctx, e)
}

// childOf validates that path is a child of the open directory, settles a
// pending delete of a different sibling and marks the child compared.
func (w *Walker) childOf(ctx context.Context, path string) (*nodeEntry, error) {
	if err := vcs.CheckCancelled(ctx); err != nil {
		return nil, err
	}

	parent := w.top()
	if parent == nil || parent.kind != vcs.KindDir || vcs.ParentRelpath(path) != parent.path || path == "" {
		return nil, fmt.Errorf("child '%s': %w", path, ErrUnexpectedPath)
	}

	name := vcs.BaseName(path)

	if parent.pending != nil && parent.pending.name != name {
		if err := w.flushPending(ctx, parent); err != nil {
			return nil, err
		}
	}

	parent.compared[name] = true

	return parent, nil
}

func (parent *nodeEntry) skipsChildren() bool {
	return parent.ignored || parent.result.SkipChildren
}

// DeleteEntry implements delta.Editor.
func (w *Walker) DeleteEntry(ctx context.Context, path string, kind vcs.NodeKind) error {
	parent, err := w.childOf(ctx, path)
	if err != nil {
		return err
	}

	if parent.skipsChildren() {
		return nil
	}

	if w.mode == reposMode {
		return w.reportLeftDeleted(ctx, path, kind, parent.depth.ForChild())
	}

	// Deleted below a repository-only directory: absent on both sides.
	if parent.part == Both {
		parent.pending = &pendingDelete{name: vcs.BaseName(path), kind: kind}
	}

	return nil
}

// flushPending settles a repository delete that was not followed by an add
// of the same name: whatever exists locally is local-only.
func (w *Walker) flushPending(ctx context.Context, parent *nodeEntry) error {
	p := parent.pending
	parent.pending = nil

	rel := vcs.JoinRelpath(parent.path, p.name)

	node, err := w.readLocal(ctx, rel)
	if err != nil {
		return err
	}

	if Classify(Sides{Local: node}, w.opts.IgnoreAncestry) != LocalOnly {
		return nil
	}

	return w.reportLocalAdded(ctx, rel, parent.depth.ForChild())
}

// AddDirectory implements delta.Editor.
func (w *Walker) AddDirectory(ctx context.Context, path string, copyFrom *vcs.Location) error {
	return w.add(ctx, path, vcs.KindDir, copyFrom)
}

// AddFile implements delta.Editor.
func (w *Walker) AddFile(ctx context.Context, path string, copyFrom *vcs.Location) error {
	return w.add(ctx, path, vcs.KindFile, copyFrom)
}

func (w *Walker) add(ctx context.Context, path string, kind vcs.NodeKind, copyFrom *vcs.Location) error {
	parent, err := w.childOf(ctx, path)
	if err != nil {
		return err
	}

	e := &nodeEntry{path: path, kind: kind, added: true, copyFrom: copyFrom, compared: map[string]bool{}}

	if parent.pending != nil {
		e.replaced = true
		parent.pending = nil
	}

	if parent.skipsChildren() {
		e.ignored = true
		w.push(e)

		return nil
	}

	e.depth = parent.depth.ForChild()

	if copyFrom != nil {
		if err := w.loadCopySource(ctx, e); err != nil {
			return err
		}
	}

	e.postText = bytes.Clone(e.preText)
	e.postProps = e.preProps.Clone()

	if err := w.attachLocal(ctx, e); err != nil {
		return err
	}

	w.classify(e, parent, true)

	return w.enter(ctx, e)
}

// OpenDirectory implements delta.Editor.
func (w *Walker) OpenDirectory(ctx context.Context, path string) error {
	return w.open(ctx, path, vcs.KindDir)
}

// OpenFile implements delta.Editor.
func (w *Walker) OpenFile(ctx context.Context, path string) error {
	return w.open(ctx, path, vcs.KindFile)
}

func (w *Walker) open(ctx context.Context, path string, kind vcs.NodeKind) error {
	parent, err := w.childOf(ctx, path)
	if err != nil {
		return err
	}

	e := &nodeEntry{path: path, kind: kind, compared: map[string]bool{}}

	if parent.skipsChildren() {
		e.ignored = true
		w.push(e)

		return nil
	}

	e.depth = parent.depth.ForChild()

	if err := w.attachLocal(ctx, e); err != nil {
		return err
	}

	if err := w.loadBase(ctx, e); err != nil {
		return err
	}

	w.classify(e, parent, false)

	return w.enter(ctx, e)
}

// attachLocal reads the working-copy node of a frame in local mode.
func (w *Walker) attachLocal(ctx context.Context, e *nodeEntry) error {
	if w.mode != localMode {
		return nil
	}

	node, err := w.readLocal(ctx, e.path)
	if err != nil {
		return err
	}

	e.local = node

	return nil
}

// classify settles the participation of a node the delta touches. Below a
// node that is not on both sides, everything is repository-only.
func (w *Walker) classify(e, parent *nodeEntry, added bool) {
	switch {
	case w.mode == reposMode:
		e.part = Both
	case parent.part != Both:
		e.part = ReposOnly
	default:
		left := vcs.Location{Path: w.leftPath(e.path), Rev: w.target}
		e.part = Classify(Sides{
			Local:            e.local,
			Left:             &left,
			LeftKind:         e.kind,
			LeftReplacesBase: added || e.replaced,
		}, w.opts.IgnoreAncestry)
	}
}

func (w *Walker) enter(ctx context.Context, e *nodeEntry) error {
	if e.kind == vcs.KindFile {
		w.push(e)

		return nil
	}

	return w.openDir(ctx, e)
}

// openDir pushes a directory frame and reports it opened. The local half of
// a split directory goes first when local nodes are reported before remote
// ones.
func (w *Walker) openDir(ctx context.Context, e *nodeEntry) error {
	if e.part == Split && w.opts.LocalBeforeRemote {
		if err := w.reportLocalAdded(ctx, e.path, e.depth); err != nil {
			return err
		}
	}

	w.push(e)

	ev := w.dirEvent(e)

	res, err := w.cb.DirOpened(ctx, ev)
	if err != nil {
		return callbackError(e.path, "dir opened", err)
	}

	e.result = res

	return nil
}

// dirEvent describes a frame; the right side props of a local node are read
// from the working copy.
func (w *Walker) dirEvent(e *nodeEntry) *DirEvent {
	ev := &DirEvent{Path: e.path}

	switch w.mode {
	case reposMode:
		if !e.added {
			ev.Left = w.leftSource(e.path)
			ev.LeftProps = e.preProps
		}

		ev.Right = w.rightSource(e.path, e.copyFrom)
		ev.RightProps = e.postProps
	case localMode:
		ev.Left = w.leftSource(e.path)
		ev.LeftProps = e.postProps

		if e.part == Both {
			ev.Right = w.rightSource(e.path, e.local.Origin)
		}
	}

	return ev
}

// ChangeDirProp implements delta.Editor.
func (w *Walker) ChangeDirProp(ctx context.Context, path string, change vcs.PropChange) error {
	return w.changeProp(ctx, path, change)
}

// ChangeFileProp implements delta.Editor.
func (w *Walker) ChangeFileProp(ctx context.Context, path string, change vcs.PropChange) error {
	return w.changeProp(ctx, path, change)
}

func (w *Walker) changeProp(ctx context.Context, path string, change vcs.PropChange) error {
	if err := vcs.CheckCancelled(ctx); err != nil {
		return err
	}

	e, err := w.current(path)
	if err != nil {
		return err
	}

	e.postProps = vcs.ApplyPropChanges(e.postProps, []vcs.PropChange{change})

	return nil
}

// ApplyText implements delta.Editor. The text being replaced must match
// baseChecksum.
func (w *Walker) ApplyText(ctx context.Context, path string, baseChecksum vcs.Checksum, content []byte) error {
	if err := vcs.CheckCancelled(ctx); err != nil {
		return err
	}

	e, err := w.current(path)
	if err != nil {
		return err
	}

	if e.ignored {
		return nil
	}

	if !baseChecksum.IsZero() {
		if actual := vcs.ContentChecksum(e.preText); actual != baseChecksum {
			return vcs.NewChecksumMismatchError(path, baseChecksum, actual)
		}
	}

	e.postText = bytes.Clone(content)

	return nil
}

// CloseFile implements delta.Editor. The resulting text must match checksum.
func (w *Walker) CloseFile(ctx context.Context, path string, checksum vcs.Checksum) error {
	if err := vcs.CheckCancelled(ctx); err != nil {
		return err
	}

	e, err := w.pop(path, vcs.KindFile)
	if err != nil {
		return err
	}

	if e.ignored {
		return nil
	}

	if !checksum.IsZero() {
		if actual := vcs.ContentChecksum(e.postText); actual != checksum {
			return vcs.NewChecksumMismatchError(path, checksum, actual)
		}
	}

	if w.mode == reposMode {
		ev := newFileEvent(path, nil, w.rightSource(path, e.copyFrom))
		if !e.added {
			ev.Left = w.leftSource(path)
			ev.LeftText = e.preText
			ev.LeftProps = e.preProps
		}

		ev.RightText = e.postText
		ev.RightProps = e.postProps

		if e.copyFrom != nil {
			ev.CopyFromText = e.preText
			ev.CopyFromProps = e.preProps
		}

		return w.reportFile(ctx, ev)
	}

	return w.closeLocalFile(ctx, e)
}

// CloseDirectory implements delta.Editor.
func (w *Walker) CloseDirectory(ctx context.Context, path string) error {
	if err := vcs.CheckCancelled(ctx); err != nil {
		return err
	}

	e := w.top()
	if e == nil || e.path != path || e.kind != vcs.KindDir {
		return fmt.Errorf("close dir '%s': %w", path, ErrUnexpectedPath)
	}

	if !e.ignored {
		if err := w.finishDir(ctx, e); err != nil {
			return err
		}
	}

	_, err := w.pop(path, vcs.KindDir)

	return err
}

func (w *Walker) finishDir(ctx context.Context, e *nodeEntry) error {
	if e.pending != nil {
		if err := w.flushPending(ctx, e); err != nil {
			return err
		}
	}

	if w.mode == localMode && !e.result.SkipChildren {
		if err := w.sweep(ctx, e); err != nil {
			return err
		}
	}

	ev := w.dirEvent(e)

	if w.mode == localMode && e.part == Both {
		props, err := w.local.ReadProps(ctx, e.path)
		if err != nil {
			return fmt.Errorf("diff '%s': %w", e.path, err)
		}

		ev.RightProps = props
	}

	if !e.result.Skip {
		if err := w.reportDir(ctx, ev); err != nil {
			return err
		}
	}

	if e.part == Split && !w.opts.LocalBeforeRemote {
		return w.reportLocalAdded(ctx, e.path, e.depth)
	}

	return nil
}

// AbsentDirectory implements delta.Editor.
func (w *Walker) AbsentDirectory(ctx context.Context, path string) error {
	return w.absent(ctx, path)
}

// AbsentFile implements delta.Editor.
func (w *Walker) AbsentFile(ctx context.Context, path string) error {
	return w.absent(ctx, path)
}

func (w *Walker) absent(ctx context.Context, path string) error {
	parent, err := w.childOf(ctx, path)
	if err != nil {
		return err
	}

	if parent.skipsChildren() {
		return nil
	}

	if err := w.cb.NodeAbsent(ctx, path); err != nil {
		return callbackError(path, "node absent", err)
	}

	w.record(ctx, path, vcs.KindUnknown, ActionAbsent)

	return nil
}

// CloseEdit implements delta.Editor. In local mode a delta that never
// opened the root means the repository side equals BASE, so the whole
// working copy is compared against BASE.
func (w *Walker) CloseEdit(ctx context.Context) error {
	if err := vcs.CheckCancelled(ctx); err != nil {
		return err
	}

	if len(w.stack) != 0 {
		return fmt.Errorf("close edit with '%s' open: %w", w.top().path, ErrUnexpectedPath)
	}

	if w.rootOpened || w.mode != localMode {
		return nil
	}

	node, err := w.readLocal(ctx, "")
	if err != nil {
		return err
	}

	if node == nil {
		return fmt.Errorf("%w: working copy root is not versioned", vcs.ErrCorruptMetadata)
	}

	return w.compareLocalDir(ctx, "", node, w.opts.Depth.Normalize())
}

// loadBase fills the pre state of an opened node. In local mode the BASE
// text comes from the pristine store; nodes the working copy holds no BASE
// for are read from the repository at the BASE revision.
func (w *Walker) loadBase(ctx context.Context, e *nodeEntry) error {
	var err error

	switch {
	case w.mode == localMode && e.local != nil && e.local.Base != nil:
		e.preText, e.preProps, err = w.readBase(ctx, e.path, e.local.Base)
	case e.kind == vcs.KindDir:
		_, e.preProps, err = w.session.GetDir(ctx, w.leftPath(e.path), w.left.Rev)
	default:
		e.preText, e.preProps, err = w.session.GetFile(ctx, w.leftPath(e.path), w.left.Rev)
	}

	if err != nil {
		return fmt.Errorf("diff '%s': %w", e.path, err)
	}

	e.postText = bytes.Clone(e.preText)
	e.postProps = e.preProps.Clone()

	return nil
}

func (w *Walker) loadCopySource(ctx context.Context, e *nodeEntry) error {
	var err error

	if e.kind == vcs.KindDir {
		_, e.preProps, err = w.session.GetDir(ctx, e.copyFrom.Path, e.copyFrom.Rev)
	} else {
		e.preText, e.preProps, err = w.session.GetFile(ctx, e.copyFrom.Path, e.copyFrom.Rev)
	}

	if err != nil {
		return fmt.Errorf("copy source of '%s': %w", e.path, err)
	}

	return nil
}

func (w *Walker) reportFile(ctx context.Context, ev *FileEvent) error {
	action := ev.finish()

	res, err := w.cb.FileOpened(ctx, ev)
	if err != nil {
		return callbackError(ev.Path, "file opened", err)
	}

	if res.Skip {
		return nil
	}

	var name string

	switch action {
	case ActionAdded:
		name, err = "file added", w.cb.FileAdded(ctx, ev)
	case ActionDeleted:
		name, err = "file deleted", w.cb.FileDeleted(ctx, ev)
	case ActionChanged:
		name, err = "file changed", w.cb.FileChanged(ctx, ev)
	default:
		name, err = "file closed", w.cb.FileClosed(ctx, ev)
	}

	if err != nil {
		return callbackError(ev.Path, name, err)
	}

	w.record(ctx, ev.Path, vcs.KindFile, action)

	return nil
}

// reportDir sends the final report of a directory that was already opened.
func (w *Walker) reportDir(ctx context.Context, ev *DirEvent) error {
	action := ev.finish()

	var (
		name string
		err  error
	)

	switch action {
	case ActionAdded:
		name, err = "dir added", w.cb.DirAdded(ctx, ev)
	case ActionDeleted:
		name, err = "dir deleted", w.cb.DirDeleted(ctx, ev)
	case ActionChanged:
		name, err = "dir changed", w.cb.DirChanged(ctx, ev)
	default:
		name, err = "dir closed", w.cb.DirClosed(ctx, ev)
	}

	if err != nil {
		return callbackError(ev.Path, name, err)
	}

	w.record(ctx, ev.Path, vcs.KindDir, action)

	return nil
}

func (w *Walker) record(ctx context.Context, path string, kind vcs.NodeKind, action Action) {
	w.stats.add(action)
	w.metrics.RecordNode(ctx, kind.String(), string(action))
	w.logger.DebugContext(ctx, "diff node", "path", path, "kind", kind.String(), "action", string(action))
}

func callbackError(path, event string, err error) error {
	var cbErr *CallbackError
	if errors.As(err, &cbErr) || errors.Is(err, vcs.ErrCancelled) {
		return err
	}

	return &CallbackError{Path: path, Event: event, Err: err}
}
