package merge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/Sumatoshi-tech/treemerge/pkg/diff"
	"github.com/Sumatoshi-tech/treemerge/pkg/mergeinfo"
	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
	"github.com/Sumatoshi-tech/treemerge/pkg/wc"
)

// ConflictKind classifies a change the applier could not make.
type ConflictKind string

// Conflict kinds.
const (
	// ConflictText means the working text no longer matches the merge-left text.
	ConflictText ConflictKind = "text"
	// ConflictProp means a property was edited locally to a different value.
	ConflictProp ConflictKind = "property"
	// ConflictTree means the node to change is missing, obstructed or edited.
	ConflictTree ConflictKind = "tree"
)

// Conflict is one skipped change.
type Conflict struct {
	Path   string
	Kind   ConflictKind
	Reason string
}

func (c Conflict) String() string {
	return fmt.Sprintf("%s conflict on '%s': %s", c.Kind, c.Path, c.Reason)
}

// Applier is a diff.Callback that applies a repository diff to a working
// copy. Changes that do not fit the local state are skipped and recorded as
// conflicts; the merge carries on.
type Applier struct {
	diff.Base

	wc wc.Writer
	// target is the repository path the working-copy root was checked out
	// from; incoming mergeinfo naming the target itself is dropped.
	target    string
	logger    *slog.Logger
	conflicts []Conflict
	// kept holds paths a conflict left untouched; their ancestors must
	// survive incoming deletes.
	kept map[string]bool
}

var _ diff.Callback = (*Applier)(nil)

// NewApplier creates an Applier writing into w, whose root holds the
// repository path target. A nil logger means slog.Default().
func NewApplier(w wc.Writer, target string, logger *slog.Logger) *Applier {
	if logger == nil {
		logger = slog.Default()
	}

	return &Applier{wc: w, target: vcs.FromFSPath(target), logger: logger, kept: map[string]bool{}}
}

// Conflicts returns the changes skipped so far, in the order they were met.
func (a *Applier) Conflicts() []Conflict {
	return append([]Conflict(nil), a.conflicts...)
}

func (a *Applier) conflict(ctx context.Context, path string, kind ConflictKind, reason string) {
	c := Conflict{Path: path, Kind: kind, Reason: reason}
	a.conflicts = append(a.conflicts, c)
	a.kept[path] = true

	a.logger.WarnContext(ctx, "merge conflict, change skipped",
		"path", path, "kind", string(kind), "reason", reason)
}

// readNode returns the working node at path; ok is false when nothing is
// there in the working tree.
func (a *Applier) readNode(ctx context.Context, path string) (wc.Node, bool, error) {
	node, err := a.wc.ReadNode(ctx, path)
	if errors.Is(err, wc.ErrNotVersioned) {
		return wc.Node{}, false, nil
	}

	if err != nil {
		return wc.Node{}, false, err
	}

	return node, node.Kind != vcs.KindNone, nil
}

// DirOpened adds a directory the diff adds before its children arrive.
func (a *Applier) DirOpened(ctx context.Context, ev *diff.DirEvent) (diff.Result, error) {
	if ev.Left != nil || ev.Right == nil {
		return diff.Result{}, nil
	}

	if node, exists, err := a.readNode(ctx, ev.Path); err != nil {
		return diff.Result{}, err
	} else if exists {
		a.conflict(ctx, ev.Path, ConflictTree, fmt.Sprintf("local %s obstructs an incoming directory", node.Kind))

		return diff.Result{Skip: true, SkipChildren: true}, nil
	}

	err := a.wc.AddDirectory(ctx, ev.Path, nil, ev.Right.CopyFrom)
	if errors.Is(err, wc.ErrNoParent) || errors.Is(err, wc.ErrObstructed) {
		a.conflict(ctx, ev.Path, ConflictTree, err.Error())

		return diff.Result{Skip: true, SkipChildren: true}, nil
	}

	if err != nil {
		return diff.Result{}, err
	}

	a.logger.DebugContext(ctx, "merge added directory", "path", ev.Path)

	return diff.Result{}, nil
}

// DirAdded sets the properties of a directory added in DirOpened.
func (a *Applier) DirAdded(ctx context.Context, ev *diff.DirEvent) error {
	return a.mergeProps(ctx, ev.Path, nil, ev.PropChanges)
}

// DirDeleted removes a directory whose children were already handled. A
// directory that still holds a kept or local node stays in place.
func (a *Applier) DirDeleted(ctx context.Context, ev *diff.DirEvent) error {
	node, exists, err := a.readNode(ctx, ev.Path)
	if err != nil {
		return err
	}

	switch {
	case !exists:
		a.conflict(ctx, ev.Path, ConflictTree, "incoming delete of a directory that is missing locally")

		return nil
	case node.Kind != vcs.KindDir:
		a.conflict(ctx, ev.Path, ConflictTree, fmt.Sprintf("incoming directory delete meets a local %s", node.Kind))

		return nil
	}

	survivor, err := a.survivingChild(ctx, ev.Path)
	if err != nil {
		return err
	}

	if survivor != "" {
		a.conflict(ctx, ev.Path, ConflictTree,
			fmt.Sprintf("incoming directory delete would remove local '%s'", survivor))

		return nil
	}

	a.logger.DebugContext(ctx, "merge deleted directory", "path", ev.Path)

	return a.wc.Delete(ctx, ev.Path)
}

// survivingChild returns a path below dir that a delete of dir would
// lose: one a conflict kept in place, or a child still present after the
// incoming deletes of its children were applied.
func (a *Applier) survivingChild(ctx context.Context, dir string) (string, error) {
	for _, p := range slices.Sorted(maps.Keys(a.kept)) {
		if _, below := vcs.SkipAncestor(dir, p); !below || p == dir {
			continue
		}

		if _, exists, err := a.readNode(ctx, p); err != nil {
			return "", err
		} else if exists {
			return p, nil
		}
	}

	names, err := a.wc.ReadChildren(ctx, dir)
	if err != nil {
		return "", err
	}

	for _, name := range names {
		child := vcs.JoinRelpath(dir, name)

		if _, exists, err := a.readNode(ctx, child); err != nil {
			return "", err
		} else if exists {
			return child, nil
		}
	}

	return "", nil
}

// DirChanged merges property changes into a directory.
func (a *Applier) DirChanged(ctx context.Context, ev *diff.DirEvent) error {
	if _, exists, err := a.readNode(ctx, ev.Path); err != nil {
		return err
	} else if !exists {
		a.conflict(ctx, ev.Path, ConflictTree, "incoming property edit on a directory that is missing locally")

		return nil
	}

	return a.mergeProps(ctx, ev.Path, ev.LeftProps, ev.PropChanges)
}

// FileAdded schedules an incoming file for addition.
func (a *Applier) FileAdded(ctx context.Context, ev *diff.FileEvent) error {
	if node, exists, err := a.readNode(ctx, ev.Path); err != nil {
		return err
	} else if exists {
		a.conflict(ctx, ev.Path, ConflictTree, fmt.Sprintf("local %s obstructs an incoming file", node.Kind))

		return nil
	}

	var copyFrom *vcs.Location
	if ev.Right != nil {
		copyFrom = ev.Right.CopyFrom
	}

	err := a.wc.AddFile(ctx, ev.Path, ev.RightText, ev.RightProps, copyFrom)
	if errors.Is(err, wc.ErrNoParent) || errors.Is(err, wc.ErrObstructed) {
		a.conflict(ctx, ev.Path, ConflictTree, err.Error())

		return nil
	}

	if err != nil {
		return err
	}

	a.logger.DebugContext(ctx, "merge added file", "path", ev.Path)

	return nil
}

// FileDeleted removes a file unless it was edited locally.
func (a *Applier) FileDeleted(ctx context.Context, ev *diff.FileEvent) error {
	node, exists, err := a.readNode(ctx, ev.Path)
	if err != nil {
		return err
	}

	switch {
	case !exists:
		a.conflict(ctx, ev.Path, ConflictTree, "incoming delete of a file that is missing locally")

		return nil
	case node.Kind != vcs.KindFile:
		a.conflict(ctx, ev.Path, ConflictTree, fmt.Sprintf("incoming file delete meets a local %s", node.Kind))

		return nil
	}

	working, err := a.wc.TranslatedWorkingFile(ctx, ev.Path)
	if err != nil {
		return err
	}

	if !bytes.Equal(working, ev.LeftText) {
		a.conflict(ctx, ev.Path, ConflictTree, "incoming delete of a file that differs from the merge-left text")

		return nil
	}

	a.logger.DebugContext(ctx, "merge deleted file", "path", ev.Path)

	return a.wc.Delete(ctx, ev.Path)
}

// FileChanged merges text and property changes into a file.
func (a *Applier) FileChanged(ctx context.Context, ev *diff.FileEvent) error {
	node, exists, err := a.readNode(ctx, ev.Path)
	if err != nil {
		return err
	}

	if !exists || node.Kind != vcs.KindFile {
		a.conflict(ctx, ev.Path, ConflictTree, "incoming edit of a file that is missing locally")

		return nil
	}

	if ev.TextChanged() {
		working, err := a.wc.TranslatedWorkingFile(ctx, ev.Path)
		if err != nil {
			return err
		}

		switch {
		case bytes.Equal(working, ev.LeftText):
			if err := a.wc.WriteFile(ctx, ev.Path, ev.RightText); err != nil {
				return err
			}
		case bytes.Equal(working, ev.RightText):
		default:
			a.conflict(ctx, ev.Path, ConflictText, "working text differs from the merge-left text")
		}
	}

	return a.mergeProps(ctx, ev.Path, ev.LeftProps, ev.PropChanges)
}

// NodeAbsent notes a node the repository withheld from the merge.
func (a *Applier) NodeAbsent(ctx context.Context, path string) error {
	a.logger.InfoContext(ctx, "merge skipped absent node", "path", path)

	return nil
}

// mergeProps applies changes to the working properties of path. A change
// applies when the working value still matches the merge-left value;
// mergeinfo is unioned instead.
func (a *Applier) mergeProps(ctx context.Context, path string, left vcs.Props, changes []vcs.PropChange) error {
	if len(changes) == 0 {
		return nil
	}

	working, err := a.wc.ReadProps(ctx, path)
	if err != nil {
		return err
	}

	out := working.Clone()
	if out == nil {
		out = vcs.Props{}
	}

	for _, c := range changes {
		if c.Name == vcs.PropMergeInfo {
			self := vcs.ToFSPath(vcs.JoinRelpath(a.target, path))
			if err := unionMergeinfoProp(out, c, self); err != nil {
				return fmt.Errorf("merge mergeinfo of '%s': %w", path, err)
			}

			continue
		}

		leftVal, inLeft := left[c.Name]
		workVal, inWork := working[c.Name]

		switch {
		case inLeft == inWork && leftVal == workVal:
			out = vcs.ApplyPropChanges(out, []vcs.PropChange{c})
		case c.IsDelete() && !inWork, !c.IsDelete() && inWork && workVal == *c.Value:
		default:
			a.conflict(ctx, path, ConflictProp, fmt.Sprintf("property '%s' was changed locally", c.Name))
		}
	}

	return a.wc.SetProps(ctx, path, out)
}

func unionMergeinfoProp(props vcs.Props, c vcs.PropChange, self string) error {
	if c.IsDelete() {
		return nil
	}

	incoming, err := mergeinfo.Parse(*c.Value)
	if err != nil {
		return err
	}

	existing, err := mergeinfo.Parse(props[vcs.PropMergeInfo])
	if err != nil {
		return err
	}

	delete(incoming, self)

	merged := mergeinfo.Merge(existing, incoming)
	if merged.IsEmpty() {
		return nil
	}

	props[vcs.PropMergeInfo] = merged.String()

	return nil
}
