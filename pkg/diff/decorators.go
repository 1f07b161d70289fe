package diff

import (
	"context"

	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
)

// Reverse reports the comparison the other way round: left and right swap
// and additions become deletions.
func Reverse(next Callback) Callback {
	return reverse{next: next}
}

type reverse struct {
	next Callback
}

func (r reverse) swapFile(ev *FileEvent) *FileEvent {
	out := &FileEvent{
		Path:       ev.Path,
		Left:       ev.Right,
		Right:      ev.Left,
		LeftText:   ev.RightText,
		RightText:  ev.LeftText,
		LeftProps:  ev.RightProps,
		RightProps: ev.LeftProps,
	}

	if out.Left != nil && out.Left.CopyFrom != nil {
		left := *out.Left
		left.CopyFrom = nil
		out.Left = &left
	}

	out.PropChanges = vcs.DiffProps(out.LeftProps, out.RightProps)

	return out
}

func (r reverse) swapDir(ev *DirEvent) *DirEvent {
	out := &DirEvent{
		Path:       ev.Path,
		Left:       ev.Right,
		Right:      ev.Left,
		LeftProps:  ev.RightProps,
		RightProps: ev.LeftProps,
	}

	if out.Left != nil && out.Left.CopyFrom != nil {
		left := *out.Left
		left.CopyFrom = nil
		out.Left = &left
	}

	out.PropChanges = vcs.DiffProps(out.LeftProps, out.RightProps)

	return out
}

func (r reverse) DirOpened(ctx context.Context, ev *DirEvent) (Result, error) {
	return r.next.DirOpened(ctx, r.swapDir(ev))
}

func (r reverse) DirAdded(ctx context.Context, ev *DirEvent) error {
	return r.next.DirDeleted(ctx, r.swapDir(ev))
}

func (r reverse) DirDeleted(ctx context.Context, ev *DirEvent) error {
	return r.next.DirAdded(ctx, r.swapDir(ev))
}

func (r reverse) DirChanged(ctx context.Context, ev *DirEvent) error {
	return r.next.DirChanged(ctx, r.swapDir(ev))
}

func (r reverse) DirClosed(ctx context.Context, ev *DirEvent) error {
	return r.next.DirClosed(ctx, r.swapDir(ev))
}

func (r reverse) FileOpened(ctx context.Context, ev *FileEvent) (Result, error) {
	return r.next.FileOpened(ctx, r.swapFile(ev))
}

func (r reverse) FileAdded(ctx context.Context, ev *FileEvent) error {
	return r.next.FileDeleted(ctx, r.swapFile(ev))
}

func (r reverse) FileDeleted(ctx context.Context, ev *FileEvent) error {
	return r.next.FileAdded(ctx, r.swapFile(ev))
}

func (r reverse) FileChanged(ctx context.Context, ev *FileEvent) error {
	return r.next.FileChanged(ctx, r.swapFile(ev))
}

func (r reverse) FileClosed(ctx context.Context, ev *FileEvent) error {
	return r.next.FileClosed(ctx, r.swapFile(ev))
}

func (r reverse) NodeAbsent(ctx context.Context, path string) error {
	return r.next.NodeAbsent(ctx, path)
}

// FilterPrefix passes on only the nodes at or below prefix. Directories above
// prefix are walked through without being reported.
func FilterPrefix(prefix string, next Callback) Callback {
	return filterPrefix{prefix: vcs.JoinRelpath(prefix), next: next}
}

type filterPrefix struct {
	prefix string
	next   Callback
}

func (f filterPrefix) inside(path string) bool {
	_, ok := vcs.SkipAncestor(f.prefix, path)

	return ok
}

func (f filterPrefix) DirOpened(ctx context.Context, ev *DirEvent) (Result, error) {
	switch {
	case f.inside(ev.Path):
		return f.next.DirOpened(ctx, ev)
	case vcs.IsAncestor(ev.Path, f.prefix):
		return Result{Skip: true}, nil
	default:
		return Result{Skip: true, SkipChildren: true}, nil
	}
}

func (f filterPrefix) dir(ctx context.Context, ev *DirEvent, fn func(context.Context, *DirEvent) error) error {
	if !f.inside(ev.Path) {
		return nil
	}

	return fn(ctx, ev)
}

func (f filterPrefix) file(ctx context.Context, ev *FileEvent, fn func(context.Context, *FileEvent) error) error {
	if !f.inside(ev.Path) {
		return nil
	}

	return fn(ctx, ev)
}

func (f filterPrefix) DirAdded(ctx context.Context, ev *DirEvent) error {
	return f.dir(ctx, ev, f.next.DirAdded)
}

func (f filterPrefix) DirDeleted(ctx context.Context, ev *DirEvent) error {
	return f.dir(ctx, ev, f.next.DirDeleted)
}

func (f filterPrefix) DirChanged(ctx context.Context, ev *DirEvent) error {
	return f.dir(ctx, ev, f.next.DirChanged)
}

func (f filterPrefix) DirClosed(ctx context.Context, ev *DirEvent) error {
	return f.dir(ctx, ev, f.next.DirClosed)
}

func (f filterPrefix) FileOpened(ctx context.Context, ev *FileEvent) (Result, error) {
	if !f.inside(ev.Path) {
		return Result{Skip: true}, nil
	}

	return f.next.FileOpened(ctx, ev)
}

func (f filterPrefix) FileAdded(ctx context.Context, ev *FileEvent) error {
	return f.file(ctx, ev, f.next.FileAdded)
}

func (f filterPrefix) FileDeleted(ctx context.Context, ev *FileEvent) error {
	return f.file(ctx, ev, f.next.FileDeleted)
}

func (f filterPrefix) FileChanged(ctx context.Context, ev *FileEvent) error {
	return f.file(ctx, ev, f.next.FileChanged)
}

func (f filterPrefix) FileClosed(ctx context.Context, ev *FileEvent) error {
	return f.file(ctx, ev, f.next.FileClosed)
}

func (f filterPrefix) NodeAbsent(ctx context.Context, path string) error {
	if !f.inside(path) {
		return nil
	}

	return f.next.NodeAbsent(ctx, path)
}

// CopyAsAdded reports nodes added with history as plain additions.
func CopyAsAdded(next Callback) Callback {
	return copyAsAdded{Callback: next}
}

type copyAsAdded struct {
	Callback
}

func plainSource(src *Source) *Source {
	if src == nil || src.CopyFrom == nil {
		return src
	}

	out := *src
	out.CopyFrom = nil

	return &out
}

func (c copyAsAdded) plainFile(ev *FileEvent) *FileEvent {
	out := *ev
	out.Right = plainSource(ev.Right)
	out.CopyFromText = nil
	out.CopyFromProps = nil

	return &out
}

func (c copyAsAdded) plainDir(ev *DirEvent) *DirEvent {
	out := *ev
	out.Right = plainSource(ev.Right)

	return &out
}

func (c copyAsAdded) DirOpened(ctx context.Context, ev *DirEvent) (Result, error) {
	return c.Callback.DirOpened(ctx, c.plainDir(ev))
}

func (c copyAsAdded) DirAdded(ctx context.Context, ev *DirEvent) error {
	return c.Callback.DirAdded(ctx, c.plainDir(ev))
}

func (c copyAsAdded) FileOpened(ctx context.Context, ev *FileEvent) (Result, error) {
	return c.Callback.FileOpened(ctx, c.plainFile(ev))
}

func (c copyAsAdded) FileAdded(ctx context.Context, ev *FileEvent) error {
	return c.Callback.FileAdded(ctx, c.plainFile(ev))
}

func (c copyAsAdded) FileChanged(ctx context.Context, ev *FileEvent) error {
	return c.Callback.FileChanged(ctx, c.plainFile(ev))
}

// Tee reports every node to both callbacks. A node is skipped only when both
// ask for it.
func Tee(first, second Callback) Callback {
	return tee{first: first, second: second}
}

type tee struct {
	first, second Callback
}

func both[E any](ctx context.Context, ev E, a, b func(context.Context, E) error) error {
	if err := a(ctx, ev); err != nil {
		return err
	}

	return b(ctx, ev)
}

func joinResults(a, b Result) Result {
	return Result{Skip: a.Skip && b.Skip, SkipChildren: a.SkipChildren && b.SkipChildren}
}

func (t tee) DirOpened(ctx context.Context, ev *DirEvent) (Result, error) {
	a, err := t.first.DirOpened(ctx, ev)
	if err != nil {
		return Result{}, err
	}

	b, err := t.second.DirOpened(ctx, ev)
	if err != nil {
		return Result{}, err
	}

	return joinResults(a, b), nil
}

func (t tee) DirAdded(ctx context.Context, ev *DirEvent) error {
	return both(ctx, ev, t.first.DirAdded, t.second.DirAdded)
}

func (t tee) DirDeleted(ctx context.Context, ev *DirEvent) error {
	return both(ctx, ev, t.first.DirDeleted, t.second.DirDeleted)
}

func (t tee) DirChanged(ctx context.Context, ev *DirEvent) error {
	return both(ctx, ev, t.first.DirChanged, t.second.DirChanged)
}

func (t tee) DirClosed(ctx context.Context, ev *DirEvent) error {
	return both(ctx, ev, t.first.DirClosed, t.second.DirClosed)
}

func (t tee) FileOpened(ctx context.Context, ev *FileEvent) (Result, error) {
	a, err := t.first.FileOpened(ctx, ev)
	if err != nil {
		return Result{}, err
	}

	b, err := t.second.FileOpened(ctx, ev)
	if err != nil {
		return Result{}, err
	}

	return joinResults(a, b), nil
}

func (t tee) FileAdded(ctx context.Context, ev *FileEvent) error {
	return both(ctx, ev, t.first.FileAdded, t.second.FileAdded)
}

func (t tee) FileDeleted(ctx context.Context, ev *FileEvent) error {
	return both(ctx, ev, t.first.FileDeleted, t.second.FileDeleted)
}

func (t tee) FileChanged(ctx context.Context, ev *FileEvent) error {
	return both(ctx, ev, t.first.FileChanged, t.second.FileChanged)
}

func (t tee) FileClosed(ctx context.Context, ev *FileEvent) error {
	return both(ctx, ev, t.first.FileClosed, t.second.FileClosed)
}

func (t tee) NodeAbsent(ctx context.Context, path string) error {
	return both(ctx, path, t.first.NodeAbsent, t.second.NodeAbsent)
}
