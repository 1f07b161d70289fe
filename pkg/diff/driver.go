package diff

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/treemerge/pkg/pristine"
	"github.com/Sumatoshi-tech/treemerge/pkg/ra"
	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
	"github.com/Sumatoshi-tech/treemerge/pkg/wc"
)

// DiffRepos compares two repository directories and reports every node that
// differs between them to cb.
func DiffRepos(
	ctx context.Context, session ra.Session, left, right vcs.Location, cb Callback, opts Options,
) (Stats, error) {
	ctx, span := opts.tracer().Start(ctx, "diff.walk", trace.WithAttributes(
		attribute.String("diff.mode", "repos"),
		attribute.String("diff.left", left.String()),
		attribute.String("diff.right", right.String()),
		attribute.String("diff.depth", opts.Depth.String()),
	))
	defer span.End()

	walker := NewReposWalker(session, left, right, cb, opts)

	err := session.Diff(ctx, ra.DiffRequest{
		Left:           left,
		Right:          right,
		Depth:          opts.Depth,
		IgnoreAncestry: opts.IgnoreAncestry,
	}, walker)

	return finishWalk(span, walker, err)
}

// DiffWorking compares the repository tree at rev with the working copy
// rooted at local. An invalid rev compares against the BASE revision, so
// only local modifications are reported.
func DiffWorking(
	ctx context.Context, session ra.Session, local wc.Reader, store pristine.Store,
	rev vcs.Revnum, cb Callback, opts Options,
) (Stats, error) {
	root, err := local.ReadNode(ctx, "")
	if err != nil {
		return Stats{}, fmt.Errorf("diff working copy: %w", err)
	}

	if root.Base == nil {
		return Stats{}, fmt.Errorf("%w: working copy root has no BASE node", vcs.ErrCorruptMetadata)
	}

	base := root.Base.Location()
	if !rev.IsValid() {
		rev = base.Rev
	}

	ctx, span := opts.tracer().Start(ctx, "diff.walk", trace.WithAttributes(
		attribute.String("diff.mode", "working"),
		attribute.String("diff.left", vcs.Location{Path: base.Path, Rev: rev}.String()),
		attribute.Int64("diff.base_revision", int64(base.Rev)),
		attribute.String("diff.depth", opts.Depth.String()),
	))
	defer span.End()

	walker := NewLocalWalker(session, local, store, base, cb, opts)

	err = session.Diff(ctx, ra.DiffRequest{
		Left:           base,
		Right:          vcs.Location{Path: base.Path, Rev: rev},
		Depth:          opts.Depth,
		IgnoreAncestry: opts.IgnoreAncestry,
	}, walker)

	return finishWalk(span, walker, err)
}

func finishWalk(span trace.Span, walker *Walker, err error) (Stats, error) {
	stats := walker.Stats()

	span.SetAttributes(
		attribute.Int("diff.added", stats.Added),
		attribute.Int("diff.deleted", stats.Deleted),
		attribute.Int("diff.changed", stats.Changed),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return stats, err
	}

	return stats, nil
}
