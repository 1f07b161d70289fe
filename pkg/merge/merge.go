package merge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/treemerge/pkg/diff"
	"github.com/Sumatoshi-tech/treemerge/pkg/mergeinfo"
	"github.com/Sumatoshi-tech/treemerge/pkg/observability"
	"github.com/Sumatoshi-tech/treemerge/pkg/ra"
	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
	"github.com/Sumatoshi-tech/treemerge/pkg/wc"
)

// Options control a merge.
type Options struct {
	Depth          vcs.Depth
	IgnoreAncestry bool

	Logger      *slog.Logger
	Tracer      trace.Tracer
	Metrics     *observability.MergeMetrics
	DiffMetrics *observability.DiffMetrics
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}

	return slog.Default()
}

func (o Options) tracer() trace.Tracer {
	if o.Tracer != nil {
		return o.Tracer
	}

	return otel.Tracer(tracerName)
}

// Result summarizes an applied merge.
type Result struct {
	Stats     diff.Stats
	Conflicts []Conflict
	// Recorded is the mergeinfo written on the working-copy root.
	Recorded mergeinfo.MergeInfo
	// Elided lists the nodes whose mergeinfo was removed as redundant.
	Elided []string
}

// Merge applies the difference between left and right to the working copy
// and records the merged revisions as mergeinfo on its root.
func Merge(ctx context.Context, session ra.Session, w wc.Writer, left, right vcs.Location, opts Options) (Result, error) {
	return runMerge(ctx, session, w, left, right, left.Rev, opts)
}

// ReintegrateMerge merges the branch at source back into the working copy,
// which must hold the branch's origin. The returned Reintegrate tells what
// was merged; when it reports NothingToMerge the working copy is untouched.
func (e *Engine) ReintegrateMerge(
	ctx context.Context, w wc.Writer, source vcs.Location, opts Options,
) (Reintegrate, Result, error) {
	if opts.Logger == nil {
		opts.Logger = e.logger
	}

	if opts.Tracer == nil {
		opts.Tracer = e.tracer
	}

	if opts.Metrics == nil {
		opts.Metrics = e.metrics
	}

	plan, err := e.PlanReintegrate(ctx, w, source)
	if err != nil || plan.NothingToMerge {
		return plan, Result{}, err
	}

	// Everything the branch did since it left the target is merged now.
	res, err := runMerge(ctx, e.session, w, plan.Left, plan.Right, plan.Ancestor.Rev, opts)

	return plan, res, err
}

// PlanReintegrate computes the reintegrate merge of source into the working
// copy without changing it. The target mergeinfo is read from the working
// copy, so uncommitted mergeinfo edits count.
func (e *Engine) PlanReintegrate(ctx context.Context, w wc.Reader, source vcs.Location) (Reintegrate, error) {
	target, err := rootLocation(ctx, w)
	if err != nil {
		return Reintegrate{}, err
	}

	catalog, err := readCatalog(ctx, w)
	if err != nil {
		return Reintegrate{}, err
	}

	return e.FindReintegrate(ctx, ReintegrateRequest{Source: source, Target: target, TargetCatalog: catalog})
}

func runMerge(
	ctx context.Context, session ra.Session, w wc.Writer, left, right vcs.Location, recordFrom vcs.Revnum, opts Options,
) (res Result, err error) {
	logger := opts.logger()

	ctx, span := opts.tracer().Start(ctx, "merge.apply", trace.WithAttributes(
		attribute.String("merge.left", left.String()),
		attribute.String("merge.right", right.String()),
	))

	defer func() {
		result := "ok"

		switch {
		case err != nil:
			result = "error"

			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case len(res.Conflicts) > 0:
			result = "conflicts"
		}

		span.SetAttributes(attribute.Int("merge.conflicts", len(res.Conflicts)))
		opts.Metrics.RecordMerge(ctx, result, len(res.Conflicts))
		span.End()
	}()

	target, err := rootLocation(ctx, w)
	if err != nil {
		return res, err
	}

	applier := NewApplier(w, target.Path, logger)

	res.Stats, err = diff.DiffRepos(ctx, session, left, right, applier, diff.Options{
		Depth:          opts.Depth,
		IgnoreAncestry: opts.IgnoreAncestry,
		Logger:         logger,
		Tracer:         opts.Tracer,
		Metrics:        opts.DiffMetrics,
	})
	res.Conflicts = applier.Conflicts()

	if err != nil {
		return res, err
	}

	res.Recorded, err = recordMergeinfo(ctx, session, w, target, right, recordFrom)
	if err != nil {
		return res, err
	}

	res.Elided, err = elideMergeinfo(ctx, w)
	if err != nil {
		return res, err
	}

	logger.InfoContext(ctx, "merge applied",
		"left", left.String(), "right", right.String(),
		"recorded", res.Recorded.String(), "conflicts", len(res.Conflicts))

	return res, nil
}

func rootLocation(ctx context.Context, w wc.Reader) (vcs.Location, error) {
	root, err := w.ReadNode(ctx, "")
	if err != nil {
		return vcs.Location{}, fmt.Errorf("read working copy root: %w", err)
	}

	if root.Base == nil {
		return vcs.Location{}, fmt.Errorf("%w: working copy root has no base", vcs.ErrCorruptMetadata)
	}

	return root.Base.Location(), nil
}

// recordMergeinfo unions the merged source revisions and the source's own
// mergeinfo into the mergeinfo of the working-copy root.
func recordMergeinfo(
	ctx context.Context, session ra.Session, w wc.Writer, target, right vcs.Location, recordFrom vcs.Revnum,
) (mergeinfo.MergeInfo, error) {
	history, err := History(ctx, session, right)
	if err != nil {
		return nil, err
	}

	merged := mergeinfo.FilterByRange(history, recordFrom, right.Rev, true)

	cat, err := session.MergeInfo(ctx, []string{right.Path}, right.Rev, ra.Inherited, false)
	if err != nil {
		return nil, fmt.Errorf("mergeinfo of %s: %w", right, err)
	}

	if inherited, ok := cat[vcs.FromFSPath(right.Path)]; ok {
		merged = mergeinfo.Merge(merged, inherited)
	}

	// Mergeinfo naming the target itself says nothing.
	delete(merged, target.FSPath())

	props, err := w.ReadProps(ctx, "")
	if err != nil {
		return nil, err
	}

	existing, err := mergeinfo.Parse(props[vcs.PropMergeInfo])
	if err != nil {
		return nil, fmt.Errorf("mergeinfo of working copy root: %w", err)
	}

	recorded := mergeinfo.Merge(existing, merged)
	if recorded.IsEmpty() {
		return recorded, nil
	}

	props = props.Clone()
	if props == nil {
		props = vcs.Props{}
	}

	props[vcs.PropMergeInfo] = recorded.String()

	if err := w.SetProps(ctx, "", props); err != nil {
		return nil, err
	}

	return recorded, nil
}

// elideMergeinfo removes subtree mergeinfo that equals what the subtree
// inherits. It only has work to do when more than one node carries mergeinfo.
func elideMergeinfo(ctx context.Context, w wc.Writer) ([]string, error) {
	catalog, err := readCatalog(ctx, w)
	if err != nil {
		return nil, err
	}

	if len(catalog) < 2 {
		return nil, nil
	}

	kept := mergeinfo.Elide(catalog, nil)

	var elided []string

	for _, path := range catalog.SortedPaths() {
		if _, ok := kept[path]; ok {
			continue
		}

		props, err := w.ReadProps(ctx, path)
		if err != nil {
			return nil, err
		}

		props = props.Clone()
		delete(props, vcs.PropMergeInfo)

		if err := w.SetProps(ctx, path, props); err != nil {
			return nil, err
		}

		elided = append(elided, path)
	}

	return elided, nil
}

// readCatalog collects the mergeinfo recorded on working nodes, keyed by
// working-copy path.
func readCatalog(ctx context.Context, r wc.Reader) (mergeinfo.Catalog, error) {
	catalog := mergeinfo.Catalog{}
	pending := []string{""}

	for len(pending) > 0 {
		path := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		node, err := r.ReadNode(ctx, path)
		if err != nil {
			return nil, err
		}

		if node.Kind == vcs.KindNone {
			continue
		}

		props, err := r.ReadProps(ctx, path)
		if err != nil {
			return nil, err
		}

		if text, ok := props[vcs.PropMergeInfo]; ok {
			info, err := mergeinfo.Parse(text)
			if err != nil {
				return nil, fmt.Errorf("mergeinfo on '%s': %w", path, err)
			}

			catalog[path] = info
		}

		if node.Kind != vcs.KindDir {
			continue
		}

		children, err := r.ReadChildren(ctx, path)
		if err != nil && !errors.Is(err, wc.ErrNotVersioned) {
			return nil, err
		}

		for _, name := range slices.Backward(children) {
			pending = append(pending, vcs.JoinRelpath(path, name))
		}
	}

	return catalog, nil
}
