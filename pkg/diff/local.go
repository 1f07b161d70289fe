package diff

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/treemerge/pkg/pristine"
	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
	"github.com/Sumatoshi-tech/treemerge/pkg/wc"
)

// readLocal returns the working-copy node at rel, or nil when the path is
// not versioned.
func (w *Walker) readLocal(ctx context.Context, rel string) (*wc.Node, error) {
	node, err := w.local.ReadNode(ctx, rel)
	if errors.Is(err, wc.ErrNotVersioned) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("diff '%s': %w", rel, err)
	}

	return &node, nil
}

// readBase reads the BASE text and properties of rel.
func (w *Walker) readBase(ctx context.Context, rel string, base *wc.BaseInfo) ([]byte, vcs.Props, error) {
	var text []byte

	if base.Kind == vcs.KindFile {
		data, err := pristine.ReadVerified(ctx, w.store, rel, base.Checksum)
		if err != nil {
			return nil, nil, err
		}

		text = data
	}

	props, err := w.local.ReadBaseProps(ctx, rel)
	if err != nil {
		return nil, nil, err
	}

	return text, props, nil
}

// readWorking reads the working text and properties of a local file.
func (w *Walker) readWorking(ctx context.Context, rel string) ([]byte, vcs.Props, error) {
	text, err := w.local.TranslatedWorkingFile(ctx, rel)
	if err != nil {
		return nil, nil, fmt.Errorf("diff '%s': %w", rel, err)
	}

	props, err := w.local.ReadProps(ctx, rel)
	if err != nil {
		return nil, nil, fmt.Errorf("diff '%s': %w", rel, err)
	}

	return text, props, nil
}

// attachCopySource fills the copy source of a local file added with history.
func (w *Walker) attachCopySource(ctx context.Context, ev *FileEvent, origin *vcs.Location) error {
	if origin == nil {
		return nil
	}

	text, props, err := w.session.GetFile(ctx, origin.Path, origin.Rev)
	if err != nil {
		return fmt.Errorf("copy source of '%s': %w", ev.Path, err)
	}

	ev.CopyFromText = text
	ev.CopyFromProps = props

	return nil
}

// closeLocalFile reports a file the delta touched in local mode.
func (w *Walker) closeLocalFile(ctx context.Context, e *nodeEntry) error {
	switch e.part {
	case Both:
		text, props, err := w.readWorking(ctx, e.path)
		if err != nil {
			return err
		}

		ev := newFileEvent(e.path, w.leftSource(e.path), w.rightSource(e.path, e.local.Origin))
		ev.LeftText, ev.LeftProps = e.postText, e.postProps
		ev.RightText, ev.RightProps = text, props

		if err := w.attachCopySource(ctx, ev, e.local.Origin); err != nil {
			return err
		}

		return w.reportFile(ctx, ev)
	case ReposOnly:
		return w.reportFile(ctx, w.reposOnlyFile(e))
	case Split:
		if w.opts.LocalBeforeRemote {
			if err := w.reportLocalAdded(ctx, e.path, e.depth); err != nil {
				return err
			}

			return w.reportFile(ctx, w.reposOnlyFile(e))
		}

		if err := w.reportFile(ctx, w.reposOnlyFile(e)); err != nil {
			return err
		}

		return w.reportLocalAdded(ctx, e.path, e.depth)
	default:
		return nil
	}
}

func (w *Walker) reposOnlyFile(e *nodeEntry) *FileEvent {
	ev := newFileEvent(e.path, w.leftSource(e.path), nil)
	ev.LeftText, ev.LeftProps = e.postText, e.postProps

	return ev
}

// sweep reports the children of a closing directory the delta did not
// touch. Below a directory on both sides those are compared with their
// working versions; below a directory missing locally they exist on the
// left side only.
func (w *Walker) sweep(ctx context.Context, e *nodeEntry) error {
	switch {
	case e.part == Both:
		return w.sweepLocal(ctx, e.path, e.depth, e.compared)
	case (e.part == ReposOnly || e.part == Split) && !e.added:
		return w.sweepLeft(ctx, e.path, e.depth, e.compared)
	default:
		return nil
	}
}

func (w *Walker) sweepLocal(ctx context.Context, dir string, depth vcs.Depth, compared map[string]bool) error {
	names, err := w.local.ReadChildren(ctx, dir)
	if err != nil {
		return fmt.Errorf("diff '%s': %w", dir, err)
	}

	for _, name := range names {
		if compared[name] {
			continue
		}

		if err := vcs.CheckCancelled(ctx); err != nil {
			return err
		}

		rel := vcs.JoinRelpath(dir, name)

		node, err := w.readLocal(ctx, rel)
		if err != nil {
			return err
		}

		if node == nil || !depth.AllowsChild(localKind(node)) {
			continue
		}

		if err := w.compareUntouched(ctx, rel, node, depth.ForChild()); err != nil {
			return err
		}
	}

	return nil
}

func (w *Walker) sweepLeft(ctx context.Context, dir string, depth vcs.Depth, compared map[string]bool) error {
	entries, _, err := w.session.GetDir(ctx, w.leftPath(dir), w.leftRev())
	if err != nil {
		return fmt.Errorf("diff '%s': %w", dir, err)
	}

	for _, entry := range entries {
		if compared[entry.Name] || !depth.AllowsChild(entry.Kind) {
			continue
		}

		err := w.reportLeftDeleted(ctx, vcs.JoinRelpath(dir, entry.Name), entry.Kind, depth.ForChild())
		if err != nil {
			return err
		}
	}

	return nil
}

// localKind is the kind a node has on either side, for depth filtering.
func localKind(node *wc.Node) vcs.NodeKind {
	if node.Kind != vcs.KindNone {
		return node.Kind
	}

	if node.Base != nil {
		return node.Base.Kind
	}

	return vcs.KindNone
}

// compareUntouched compares a working-copy node whose left version is its
// BASE version.
func (w *Walker) compareUntouched(ctx context.Context, rel string, node *wc.Node, depth vcs.Depth) error {
	sides := Sides{Local: node}

	if node.Base != nil {
		sides.Left = &vcs.Location{Path: node.Base.ReposPath, Rev: w.leftRev()}
		sides.LeftKind = node.Base.Kind
	}

	switch Classify(sides, w.opts.IgnoreAncestry) {
	case ReposOnly:
		return w.reportLeftDeleted(ctx, rel, sides.LeftKind, depth)
	case LocalOnly:
		return w.reportLocalAdded(ctx, rel, depth)
	case Both:
		if node.Kind == vcs.KindDir {
			return w.compareLocalDir(ctx, rel, node, depth)
		}

		return w.compareLocalFile(ctx, rel, node)
	case Split:
		if w.opts.LocalBeforeRemote {
			if err := w.reportLocalAdded(ctx, rel, depth); err != nil {
				return err
			}

			return w.reportLeftDeleted(ctx, rel, sides.LeftKind, depth)
		}

		if err := w.reportLeftDeleted(ctx, rel, sides.LeftKind, depth); err != nil {
			return err
		}

		return w.reportLocalAdded(ctx, rel, depth)
	default:
		return nil
	}
}

// compareLocalFile reports a file against its BASE version when the two
// differ.
func (w *Walker) compareLocalFile(ctx context.Context, rel string, node *wc.Node) error {
	leftText, leftProps, err := w.readBase(ctx, rel, node.Base)
	if err != nil {
		return err
	}

	rightText, rightProps, err := w.readWorking(ctx, rel)
	if err != nil {
		return err
	}

	ev := newFileEvent(rel, w.leftSource(rel), w.rightSource(rel, node.Origin))
	ev.LeftText, ev.LeftProps = leftText, leftProps
	ev.RightText, ev.RightProps = rightText, rightProps

	if !ev.TextChanged() && len(vcs.DiffProps(leftProps, rightProps)) == 0 {
		return nil
	}

	if err := w.attachCopySource(ctx, ev, node.Origin); err != nil {
		return err
	}

	return w.reportFile(ctx, ev)
}

// compareLocalDir walks a directory present on both sides whose left
// version is BASE.
func (w *Walker) compareLocalDir(ctx context.Context, rel string, node *wc.Node, depth vcs.Depth) error {
	if node.Base == nil {
		return fmt.Errorf("%w: '%s' has no BASE node", vcs.ErrCorruptMetadata, rel)
	}

	leftProps, err := w.local.ReadBaseProps(ctx, rel)
	if err != nil {
		return fmt.Errorf("diff '%s': %w", rel, err)
	}

	rightProps, err := w.local.ReadProps(ctx, rel)
	if err != nil {
		return fmt.Errorf("diff '%s': %w", rel, err)
	}

	ev := &DirEvent{
		Path:       rel,
		Left:       w.leftSource(rel),
		Right:      w.rightSource(rel, node.Origin),
		LeftProps:  leftProps,
		RightProps: rightProps,
	}

	res, err := w.cb.DirOpened(ctx, ev)
	if err != nil {
		return callbackError(rel, "dir opened", err)
	}

	if !res.SkipChildren {
		if err := w.sweepLocal(ctx, rel, depth, nil); err != nil {
			return err
		}
	}

	if res.Skip {
		return nil
	}

	return w.reportDir(ctx, ev)
}

// reportLeftDeleted reports a left-side subtree as deleted, reading it from
// the repository.
func (w *Walker) reportLeftDeleted(ctx context.Context, rel string, kind vcs.NodeKind, depth vcs.Depth) error {
	if err := vcs.CheckCancelled(ctx); err != nil {
		return err
	}

	path := w.leftPath(rel)

	if kind != vcs.KindFile && kind != vcs.KindDir {
		k, err := w.session.CheckPath(ctx, path, w.leftRev())
		if err != nil {
			return fmt.Errorf("diff '%s': %w", rel, err)
		}

		kind = k
	}

	if kind == vcs.KindFile {
		text, props, err := w.session.GetFile(ctx, path, w.leftRev())
		if err != nil {
			return fmt.Errorf("diff '%s': %w", rel, err)
		}

		ev := newFileEvent(rel, w.leftSource(rel), nil)
		ev.LeftText, ev.LeftProps = text, props

		return w.reportFile(ctx, ev)
	}

	if kind != vcs.KindDir {
		return nil
	}

	entries, props, err := w.session.GetDir(ctx, path, w.leftRev())
	if err != nil {
		return fmt.Errorf("diff '%s': %w", rel, err)
	}

	ev := &DirEvent{Path: rel, Left: w.leftSource(rel), LeftProps: props}

	res, err := w.cb.DirOpened(ctx, ev)
	if err != nil {
		return callbackError(rel, "dir opened", err)
	}

	if !res.SkipChildren {
		for _, entry := range entries {
			if !depth.AllowsChild(entry.Kind) {
				continue
			}

			err := w.reportLeftDeleted(ctx, vcs.JoinRelpath(rel, entry.Name), entry.Kind, depth.ForChild())
			if err != nil {
				return err
			}
		}
	}

	if res.Skip {
		return nil
	}

	return w.reportDir(ctx, ev)
}

// reportLocalAdded reports a working-copy subtree as added.
func (w *Walker) reportLocalAdded(ctx context.Context, rel string, depth vcs.Depth) error {
	if err := vcs.CheckCancelled(ctx); err != nil {
		return err
	}

	node, err := w.readLocal(ctx, rel)
	if err != nil || node == nil || node.Status.Hidden() || node.Kind == vcs.KindNone {
		return err
	}

	if node.Kind == vcs.KindFile {
		text, props, err := w.readWorking(ctx, rel)
		if err != nil {
			return err
		}

		ev := newFileEvent(rel, nil, w.rightSource(rel, node.Origin))
		ev.RightText, ev.RightProps = text, props

		if err := w.attachCopySource(ctx, ev, node.Origin); err != nil {
			return err
		}

		return w.reportFile(ctx, ev)
	}

	props, err := w.local.ReadProps(ctx, rel)
	if err != nil {
		return fmt.Errorf("diff '%s': %w", rel, err)
	}

	ev := &DirEvent{Path: rel, Right: w.rightSource(rel, node.Origin), RightProps: props}

	res, err := w.cb.DirOpened(ctx, ev)
	if err != nil {
		return callbackError(rel, "dir opened", err)
	}

	if !res.SkipChildren {
		if err := w.addLocalChildren(ctx, rel, depth); err != nil {
			return err
		}
	}

	if res.Skip {
		return nil
	}

	return w.reportDir(ctx, ev)
}

func (w *Walker) addLocalChildren(ctx context.Context, dir string, depth vcs.Depth) error {
	names, err := w.local.ReadChildren(ctx, dir)
	if err != nil {
		return fmt.Errorf("diff '%s': %w", dir, err)
	}

	for _, name := range names {
		rel := vcs.JoinRelpath(dir, name)

		node, err := w.readLocal(ctx, rel)
		if err != nil {
			return err
		}

		if node == nil || node.Kind == vcs.KindNone || !depth.AllowsChild(node.Kind) {
			continue
		}

		if err := w.reportLocalAdded(ctx, rel, depth.ForChild()); err != nil {
			return err
		}
	}

	return nil
}
