package memrepo

import (
	"bytes"
	"context"
	"fmt"
	"slices"

	"github.com/Sumatoshi-tech/treemerge/pkg/delta"
	"github.com/Sumatoshi-tech/treemerge/pkg/ra"
	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
)

// Diff implements ra.Session. Unchanged directories are never opened and an
// identical pair of trees produces no OpenRoot at all. Unless ancestry is
// ignored, a node replaced by an unrelated one is sent as delete plus add.
// Nodes that arrived by copy are added with their copy source and the text
// and property changes relative to it.
func (r *Repo) Diff(ctx context.Context, req ra.DiffRequest, editor delta.Editor) error {
	left, err := r.snapshot(req.Left.Rev)
	if err != nil {
		return err
	}

	right, err := r.snapshot(req.Right.Rev)
	if err != nil {
		return err
	}

	d := &differ{repo: r, left: left, right: right, req: req}

	lroot, rroot := cleanPath(req.Left.Path), cleanPath(req.Right.Path)

	for _, side := range []struct {
		snap snapshot
		loc  vcs.Location
		path string
	}{{left, req.Left, lroot}, {right, req.Right, rroot}} {
		n, ok := side.snap[side.path]
		if !ok {
			return fmt.Errorf("diff %s: %w", side.loc, vcs.ErrPathNotFound)
		}

		if n.kind != vcs.KindDir {
			return fmt.Errorf("diff %s: %w", side.loc, ra.ErrNotADirectory)
		}
	}

	body := d.dirBody("", lroot, rroot, req.Depth.Normalize())

	events := []delta.Event{{Op: delta.OpSetTargetRevision, Rev: req.Right.Rev}}

	if len(body) > 0 {
		events = append(events, delta.Event{Op: delta.OpOpenRoot, Rev: req.Left.Rev})
		events = append(events, body...)
		events = append(events, delta.Event{Op: delta.OpCloseDirectory, Path: ""})
	}

	events = append(events, delta.Event{Op: delta.OpCloseEdit})

	return delta.Replay(ctx, events, editor)
}

type differ struct {
	repo        *Repo
	left, right snapshot
	req         ra.DiffRequest
}

func (d *differ) related(a, b *node) bool {
	return d.req.IgnoreAncestry || a.id == b.id
}

// dirBody returns the events inside a directory present on both sides:
// property changes and child edits, without the open/close pair.
func (d *differ) dirBody(rel, lpath, rpath string, depth vcs.Depth) []delta.Event {
	var out []delta.Event

	for _, c := range vcs.DiffProps(d.left[lpath].props, d.right[rpath].props) {
		out = append(out, delta.Event{Op: delta.OpChangeDirProp, Path: rel, Change: &c})
	}

	if depth == vcs.DepthEmpty {
		return out
	}

	names := append(d.left.children(lpath), d.right.children(rpath)...)
	slices.Sort(names)
	names = slices.Compact(names)

	for _, name := range names {
		out = append(out, d.child(vcs.JoinRelpath(rel, name),
			vcs.JoinRelpath(lpath, name), vcs.JoinRelpath(rpath, name), depth)...)
	}

	return out
}

func (d *differ) child(rel, lpath, rpath string, depth vcs.Depth) []delta.Event {
	l, inLeft := d.left[lpath]
	r, inRight := d.right[rpath]

	if inLeft && !depth.AllowsChild(l.kind) {
		inLeft = false
	}

	if inRight && !depth.AllowsChild(r.kind) {
		inRight = false
	}

	switch {
	case inLeft && inRight && l.kind == r.kind && d.related(l, r):
		if l.kind == vcs.KindDir {
			body := d.dirBody(rel, lpath, rpath, depth.ForChild())
			if len(body) == 0 {
				return nil
			}

			out := []delta.Event{{Op: delta.OpOpenDirectory, Path: rel, Kind: vcs.KindDir}}
			out = append(out, body...)

			return append(out, delta.Event{Op: delta.OpCloseDirectory, Path: rel})
		}

		return d.fileEdit(rel, l, r)
	case inLeft && inRight:
		out := []delta.Event{{Op: delta.OpDeleteEntry, Path: rel, Kind: l.kind}}

		return append(out, d.add(rel, rpath, r, depth.ForChild())...)
	case inLeft:
		return []delta.Event{{Op: delta.OpDeleteEntry, Path: rel, Kind: l.kind}}
	case inRight:
		return d.add(rel, rpath, r, depth.ForChild())
	default:
		return nil
	}
}

func (d *differ) fileEdit(rel string, l, r *node) []delta.Event {
	changes := vcs.DiffProps(l.props, r.props)
	if l.checksum == r.checksum && len(changes) == 0 {
		return nil
	}

	out := []delta.Event{{Op: delta.OpOpenFile, Path: rel, Kind: vcs.KindFile}}

	if l.checksum != r.checksum {
		out = append(out, delta.Event{Op: delta.OpApplyText, Path: rel, Checksum: l.checksum, Content: bytes.Clone(r.text)})
	}

	for _, c := range changes {
		out = append(out, delta.Event{Op: delta.OpChangeFileProp, Path: rel, Change: &c})
	}

	return append(out, delta.Event{Op: delta.OpCloseFile, Path: rel, Checksum: r.checksum})
}

// add sends n, and for directories everything below it, as added. Only the
// copy root carries copy-from information; its text and properties are sent
// relative to the copy source.
func (d *differ) add(rel, rpath string, n *node, depth vcs.Depth) []delta.Event {
	var (
		copyFrom  *vcs.Location
		baseProps vcs.Props
		baseSum   vcs.Checksum
		hasBase   bool
	)

	if n.copyRoot && n.copyFrom != nil {
		if src, err := d.repo.lookup(n.copyFrom.Path, n.copyFrom.Rev); err == nil {
			loc := *n.copyFrom
			copyFrom = &loc
			baseProps = src.props
			baseSum = src.checksum
			hasBase = true
		}
	}

	propEvents := func(op delta.Op) []delta.Event {
		var out []delta.Event

		for _, c := range vcs.DiffProps(baseProps, n.props) {
			out = append(out, delta.Event{Op: op, Path: rel, Change: &c})
		}

		return out
	}

	if n.kind == vcs.KindFile {
		out := []delta.Event{{Op: delta.OpAddFile, Path: rel, Kind: vcs.KindFile, CopyFrom: copyFrom}}

		if !hasBase || baseSum != n.checksum {
			out = append(out, delta.Event{Op: delta.OpApplyText, Path: rel, Checksum: baseSum, Content: bytes.Clone(n.text)})
		}

		out = append(out, propEvents(delta.OpChangeFileProp)...)

		return append(out, delta.Event{Op: delta.OpCloseFile, Path: rel, Checksum: n.checksum})
	}

	out := []delta.Event{{Op: delta.OpAddDirectory, Path: rel, Kind: vcs.KindDir, CopyFrom: copyFrom}}
	out = append(out, propEvents(delta.OpChangeDirProp)...)

	if depth != vcs.DepthEmpty {
		for _, name := range d.right.children(rpath) {
			childPath := vcs.JoinRelpath(rpath, name)
			child := d.right[childPath]

			if !depth.AllowsChild(child.kind) {
				continue
			}

			out = append(out, d.add(vcs.JoinRelpath(rel, name), childPath, child, depth.ForChild())...)
		}
	}

	return append(out, delta.Event{Op: delta.OpCloseDirectory, Path: rel})
}
