package memrepo

import (
	"bytes"
	"context"
	"fmt"

	"github.com/Sumatoshi-tech/treemerge/pkg/mergeinfo"
	"github.com/Sumatoshi-tech/treemerge/pkg/ra"
	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
)

var _ ra.Session = (*Repo)(nil)

// LatestRevision implements ra.Session.
func (r *Repo) LatestRevision(ctx context.Context) (vcs.Revnum, error) {
	if err := vcs.CheckCancelled(ctx); err != nil {
		return vcs.InvalidRevnum, err
	}

	return r.Youngest(), nil
}

// CheckPath implements ra.Session.
func (r *Repo) CheckPath(ctx context.Context, path string, rev vcs.Revnum) (vcs.NodeKind, error) {
	if err := vcs.CheckCancelled(ctx); err != nil {
		return vcs.KindNone, err
	}

	snap, err := r.snapshot(rev)
	if err != nil {
		return vcs.KindNone, err
	}

	if n, ok := snap[cleanPath(path)]; ok {
		return n.kind, nil
	}

	return vcs.KindNone, nil
}

// GetFile implements ra.Session.
func (r *Repo) GetFile(ctx context.Context, path string, rev vcs.Revnum) ([]byte, vcs.Props, error) {
	if err := vcs.CheckCancelled(ctx); err != nil {
		return nil, nil, err
	}

	n, err := r.lookup(path, rev)
	if err != nil {
		return nil, nil, err
	}

	if n.kind != vcs.KindFile {
		return nil, nil, fmt.Errorf("get file '%s'@%d: %w", path, rev, ra.ErrNotAFile)
	}

	return bytes.Clone(n.text), n.props.Clone(), nil
}

// GetDir implements ra.Session.
func (r *Repo) GetDir(ctx context.Context, path string, rev vcs.Revnum) ([]ra.DirEntry, vcs.Props, error) {
	if err := vcs.CheckCancelled(ctx); err != nil {
		return nil, nil, err
	}

	snap, err := r.snapshot(rev)
	if err != nil {
		return nil, nil, err
	}

	path = cleanPath(path)

	n, ok := snap[path]
	if !ok {
		return nil, nil, fmt.Errorf("get dir '%s'@%d: %w", path, rev, vcs.ErrPathNotFound)
	}

	if n.kind != vcs.KindDir {
		return nil, nil, fmt.Errorf("get dir '%s'@%d: %w", path, rev, ra.ErrNotADirectory)
	}

	names := snap.children(path)
	entries := make([]ra.DirEntry, len(names))

	for i, name := range names {
		entries[i] = ra.DirEntry{Name: name, Kind: snap[vcs.JoinRelpath(path, name)].kind}
	}

	return entries, n.props.Clone(), nil
}

// LocationSegments implements ra.Session. An invalid start means revision 0
// and an invalid end means peg.
func (r *Repo) LocationSegments(
	ctx context.Context, path string, peg, start, end vcs.Revnum,
) ([]vcs.Segment, error) {
	if !start.IsValid() {
		start = 0
	}

	if !end.IsValid() || end > peg {
		end = peg
	}

	n, err := r.lookup(path, peg)
	if err != nil {
		return nil, fmt.Errorf("location segments: %w", err)
	}

	var youngestFirst []vcs.Segment

	emit := func(seg vcs.Segment) {
		seg.Start = max(seg.Start, start)
		seg.End = min(seg.End, end)

		if seg.Start <= seg.End {
			youngestFirst = append(youngestFirst, seg)
		}
	}

	cur, hi := cleanPath(path), peg

	for {
		if err := vcs.CheckCancelled(ctx); err != nil {
			return nil, err
		}

		emit(vcs.Segment{Path: cur, Start: n.origin, End: hi})

		if n.origin <= start || n.copyFrom == nil {
			break
		}

		src := n.copyFrom
		if src.Rev+1 < n.origin {
			emit(vcs.Segment{Start: src.Rev + 1, End: n.origin - 1})
		}

		if n, err = r.lookup(src.Path, src.Rev); err != nil {
			return nil, fmt.Errorf("location segments of copy source: %w", err)
		}

		cur, hi = src.Path, src.Rev
	}

	segments := make([]vcs.Segment, 0, len(youngestFirst))
	for i := len(youngestFirst) - 1; i >= 0; i-- {
		segments = append(segments, youngestFirst[i])
	}

	return segments, nil
}

// InheritedProps implements ra.Session.
func (r *Repo) InheritedProps(ctx context.Context, path string, rev vcs.Revnum) ([]ra.InheritedProps, error) {
	if err := vcs.CheckCancelled(ctx); err != nil {
		return nil, err
	}

	snap, err := r.snapshot(rev)
	if err != nil {
		return nil, err
	}

	path = cleanPath(path)
	if _, ok := snap[path]; !ok {
		return nil, fmt.Errorf("inherited props '%s'@%d: %w", path, rev, vcs.ErrPathNotFound)
	}

	var out []ra.InheritedProps

	for _, anc := range ancestors(path) {
		if props := snap[anc].props; len(props) > 0 {
			out = append(out, ra.InheritedProps{Path: anc, Props: props.Clone()})
		}
	}

	return out, nil
}

// MergeInfo implements ra.Session.
func (r *Repo) MergeInfo(
	ctx context.Context, paths []string, rev vcs.Revnum, inherit ra.Inheritance, includeDescendants bool,
) (mergeinfo.Catalog, error) {
	snap, err := r.snapshot(rev)
	if err != nil {
		return nil, err
	}

	out := mergeinfo.Catalog{}

	for _, p := range paths {
		if err := vcs.CheckCancelled(ctx); err != nil {
			return nil, err
		}

		p = cleanPath(p)
		if _, ok := snap[p]; !ok {
			return nil, fmt.Errorf("mergeinfo '%s'@%d: %w", p, rev, vcs.ErrPathNotFound)
		}

		info, err := snap.mergeInfoFor(p, inherit)
		if err != nil {
			return nil, err
		}

		if !info.IsEmpty() {
			out[p] = info
		}

		if !includeDescendants {
			continue
		}

		for q, n := range snap {
			if !vcs.IsAncestor(p, q) {
				continue
			}

			text, ok := n.props[vcs.PropMergeInfo]
			if !ok {
				continue
			}

			info, err := mergeinfo.Parse(text)
			if err != nil {
				return nil, fmt.Errorf("mergeinfo on '%s'@%d: %w", q, rev, err)
			}

			out[q] = info
		}
	}

	return out, nil
}

func (s snapshot) mergeInfoFor(path string, inherit ra.Inheritance) (mergeinfo.MergeInfo, error) {
	if inherit != ra.NearestAncestor {
		if text, ok := s[path].props[vcs.PropMergeInfo]; ok {
			info, err := mergeinfo.Parse(text)
			if err != nil {
				return nil, fmt.Errorf("mergeinfo on '%s': %w", path, err)
			}

			return info, nil
		}

		if inherit == ra.Explicit {
			return mergeinfo.MergeInfo{}, nil
		}
	}

	chain := ancestors(path)
	for i := len(chain) - 1; i >= 0; i-- {
		anc := chain[i]

		text, ok := s[anc].props[vcs.PropMergeInfo]
		if !ok {
			continue
		}

		info, err := mergeinfo.Parse(text)
		if err != nil {
			return nil, fmt.Errorf("mergeinfo on '%s': %w", anc, err)
		}

		suffix, _ := vcs.SkipAncestor(anc, path)

		return mergeinfo.AdjustSourcePaths(info.Inheritable(), suffix), nil
	}

	return mergeinfo.MergeInfo{}, nil
}

// ancestors returns the proper ancestors of path, root first.
func ancestors(path string) []string {
	if path == "" {
		return nil
	}

	var chain []string

	for cur := vcs.ParentRelpath(path); ; cur = vcs.ParentRelpath(cur) {
		chain = append([]string{cur}, chain...)

		if cur == "" {
			return chain
		}
	}
}
