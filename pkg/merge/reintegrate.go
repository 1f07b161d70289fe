package merge

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/treemerge/pkg/alg/interval"
	"github.com/Sumatoshi-tech/treemerge/pkg/alg/lru"
	"github.com/Sumatoshi-tech/treemerge/pkg/mergeinfo"
	"github.com/Sumatoshi-tech/treemerge/pkg/observability"
	"github.com/Sumatoshi-tech/treemerge/pkg/ra"
	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
)

const (
	tracerName = "treemerge.merge"

	spanLocationSegments = "merge.location_segments"

	// DefaultHistoryCacheSize is the number of location-segment lookups an
	// Engine keeps.
	DefaultHistoryCacheSize = 256
)

// EngineConfig holds the collaborators of an Engine. Zero fields get
// defaults.
type EngineConfig struct {
	Logger           *slog.Logger
	Tracer           trace.Tracer
	Metrics          *observability.MergeMetrics
	HistoryCacheSize int
}

// Engine computes reintegrate merge sources. It caches location segments,
// which never change for a given path and peg revision, and is safe for
// concurrent use.
type Engine struct {
	session  ra.Session
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *observability.MergeMetrics
	segments *lru.Cache[vcs.Location, []vcs.Segment]
}

// NewEngine creates an Engine reading the repository through session.
func NewEngine(session ra.Session, cfg EngineConfig) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer(tracerName)
	}

	if cfg.HistoryCacheSize <= 0 {
		cfg.HistoryCacheSize = DefaultHistoryCacheSize
	}

	return &Engine{
		session:  session,
		logger:   cfg.Logger,
		tracer:   cfg.Tracer,
		metrics:  cfg.Metrics,
		segments: lru.New(lru.WithMaxEntries[vcs.Location, []vcs.Segment](cfg.HistoryCacheSize)),
	}
}

// Session returns the repository session of the engine.
func (e *Engine) Session() ra.Session {
	return e.session
}

// CacheStats reports the hit and miss counts of the segment cache.
func (e *Engine) CacheStats() lru.Stats {
	return e.segments.Stats()
}

// CacheHits returns the number of segment lookups served from the cache.
func (e *Engine) CacheHits() int64 {
	return e.segments.Stats().Hits
}

// CacheMisses returns the number of segment lookups that reached the session.
func (e *Engine) CacheMisses() int64 {
	return e.segments.Stats().Misses
}

// ReintegrateRequest describes a reintegrate merge of Source into the tree
// at Target.
type ReintegrateRequest struct {
	// Source is the branch being reintegrated, at its peg revision.
	Source vcs.Location
	// Target is the repository location of the target tree at its base
	// revision.
	Target vcs.Location
	// TargetCatalog is the explicit mergeinfo of the target tree keyed by
	// target-relative path. When nil it is read from the repository.
	TargetCatalog mergeinfo.Catalog
}

// Reintegrate is the merge a reintegrate boils down to: apply the
// difference between Left and Right to the target.
type Reintegrate struct {
	Left  vcs.Location
	Right vcs.Location
	// Ancestor is the youngest common ancestor of source and target.
	Ancestor vcs.Location
	// NeverSynced is set when nothing was ever merged from the target into
	// the source; Left is then Ancestor.
	NeverSynced bool
	// YoungestMerged is the youngest target revision merged into the source.
	YoungestMerged vcs.Revnum
	// NothingToMerge is set when the source has no changes since Ancestor.
	NothingToMerge bool
}

// FindReintegrate computes the left side of a reintegrate merge: the
// youngest state of the target that was fully merged into the source.
func (e *Engine) FindReintegrate(ctx context.Context, req ReintegrateRequest) (Reintegrate, error) {
	start := time.Now()

	ctx, span := e.tracer.Start(ctx, "merge.reintegrate", trace.WithAttributes(
		attribute.String("merge.source", req.Source.String()),
		attribute.String("merge.target", req.Target.String()),
	))
	defer span.End()

	out, err := e.findReintegrate(ctx, req)

	result := "ok"

	switch {
	case err != nil:
		result = "error"

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case out.NothingToMerge:
		result = "nothing"
	}

	span.SetAttributes(
		attribute.String("merge.ancestor", out.Ancestor.String()),
		attribute.Int64("merge.youngest_merged", int64(out.YoungestMerged)),
		attribute.Bool("merge.never_synced", out.NeverSynced),
	)
	e.metrics.RecordReintegrate(ctx, result, time.Since(start))

	return out, err
}

func (e *Engine) findReintegrate(ctx context.Context, req ReintegrateRequest) (Reintegrate, error) {
	source, target := req.Source, req.Target
	out := Reintegrate{Right: source, YoungestMerged: vcs.InvalidRevnum}

	if vcs.FromFSPath(source.Path) == "" || vcs.FromFSPath(target.Path) == "" {
		return out, ErrRepositoryRoot
	}

	yca, found, err := e.youngestCommonAncestor(ctx, source, target)
	if err != nil {
		return out, err
	}

	if !found {
		return out, fmt.Errorf("%w: %s and %s", ErrUnrelatedAncestry, source, target)
	}

	out.Ancestor = yca

	if source.Rev == yca.Rev {
		out.NothingToMerge = true
		e.logger.InfoContext(ctx, "reintegrate source has no changes", "source", source.String())

		return out, nil
	}

	targetCatalog := req.TargetCatalog
	if targetCatalog == nil {
		targetCatalog, err = e.relativeCatalog(ctx, target, ra.Explicit)
		if err != nil {
			return out, err
		}
	}

	sourceCatalog, err := e.relativeCatalog(ctx, source, ra.Explicit)
	if err != nil {
		return out, err
	}

	scan, err := e.scanSubtrees(ctx, req, yca, targetCatalog, sourceCatalog)
	if err != nil {
		return out, err
	}

	out.NeverSynced = !scan.youngestMerged.IsValid()
	out.YoungestMerged = scan.youngestMerged

	if out.NeverSynced {
		out.Left = yca
		e.logger.InfoContext(ctx, "reintegrate source never synced", "ancestor", yca.String())
	} else {
		left, err := e.locationAt(ctx, target, scan.youngestMerged)
		if err != nil {
			return out, err
		}

		out.Left = left
		e.logger.InfoContext(ctx, "reintegrate left side",
			"left", left.String(), "youngest_merged", int64(scan.youngestMerged))

		holes := mergeinfo.Elide(
			mergeinfo.FilterCatalogByRange(scan.unmerged, yca.Rev, scan.youngestMerged, true), nil)
		if len(holes) > 0 {
			return out, &UnmergedError{Source: source, Target: target, Ancestor: yca, Unmerged: holes}
		}
	}

	if _, related, err := e.youngestCommonAncestor(ctx, out.Left, source); err != nil {
		return out, err
	} else if !related {
		return out, fmt.Errorf("%w: %s must be ancestrally related to %s", ErrNotReadyToMerge, out.Left, source)
	}

	return out, nil
}

type subtreeScan struct {
	youngestMerged vcs.Revnum
	// unmerged maps source-relative subtrees to target history they lack.
	unmerged mergeinfo.Catalog
}

// scanSubtrees compares, for the target root and every subtree carrying
// mergeinfo on either side, the target history since the common ancestor
// with what the source recorded as merged. Subtrees missing on either side
// contribute nothing.
func (e *Engine) scanSubtrees(
	ctx context.Context, req ReintegrateRequest, yca vcs.Location, targetCatalog, sourceCatalog mergeinfo.Catalog,
) (subtreeScan, error) {
	scan := subtreeScan{youngestMerged: vcs.InvalidRevnum, unmerged: mergeinfo.Catalog{}}

	subtrees := append([]string{""}, targetCatalog.SortedPaths()...)
	subtrees = append(subtrees, sourceCatalog.SortedPaths()...)
	slices.Sort(subtrees)
	subtrees = slices.Compact(subtrees)

	creation, err := e.creationRevision(ctx, req.Source)
	if err != nil {
		return scan, err
	}

	for _, rel := range subtrees {
		if err := vcs.CheckCancelled(ctx); err != nil {
			return scan, err
		}

		targetLoc := vcs.Location{Path: vcs.JoinRelpath(req.Target.Path, rel), Rev: req.Target.Rev}
		sourceLoc := vcs.Location{Path: vcs.JoinRelpath(req.Source.Path, rel), Rev: req.Source.Rev}

		targetHistory, ok, err := e.historyIfExists(ctx, targetLoc)
		if err != nil {
			return scan, err
		}

		if !ok {
			e.logger.DebugContext(ctx, "reintegrate subtree missing in target", "path", targetLoc.String())

			continue
		}

		sourceHistory, ok, err := e.historyIfExists(ctx, sourceLoc)
		if err != nil {
			return scan, err
		}

		if !ok {
			e.logger.DebugContext(ctx, "reintegrate subtree missing in source", "path", sourceLoc.String())

			continue
		}

		// Target history up to the ancestor is shared, so it counts as merged.
		targetHistory = mergeinfo.FilterByRange(targetHistory, yca.Rev, req.Source.Rev, true)

		recorded, err := e.recordedMergeinfo(ctx, sourceLoc, rel, sourceCatalog)
		if err != nil {
			return scan, err
		}

		merged := mergeinfo.Intersect(recorded, targetHistory, true)
		if !merged.IsEmpty() {
			if _, youngest := mergeinfo.Endpoints(merged); youngest > scan.youngestMerged {
				scan.youngestMerged = youngest
			}
		}

		unmerged := mergeinfo.Remove(targetHistory, mergeinfo.Merge(recorded, sourceHistory), false)
		unmerged = withoutRevision(unmerged, creation)

		if !unmerged.IsEmpty() {
			scan.unmerged[rel] = unmerged
		}
	}

	return scan, nil
}

// recordedMergeinfo is the mergeinfo of a source subtree: explicit when the
// source catalog has it, inherited otherwise.
func (e *Engine) recordedMergeinfo(
	ctx context.Context, loc vcs.Location, rel string, sourceCatalog mergeinfo.Catalog,
) (mergeinfo.MergeInfo, error) {
	if info, ok := sourceCatalog[rel]; ok {
		return info, nil
	}

	cat, err := e.session.MergeInfo(ctx, []string{loc.Path}, loc.Rev, ra.Inherited, false)
	if err != nil {
		return nil, fmt.Errorf("mergeinfo of %s: %w", loc, err)
	}

	if info, ok := cat[vcs.FromFSPath(loc.Path)]; ok {
		return info, nil
	}

	return mergeinfo.MergeInfo{}, nil
}

// relativeCatalog reads the mergeinfo catalog below loc keyed by path
// relative to loc.
func (e *Engine) relativeCatalog(
	ctx context.Context, loc vcs.Location, inherit ra.Inheritance,
) (mergeinfo.Catalog, error) {
	cat, err := e.session.MergeInfo(ctx, []string{loc.Path}, loc.Rev, inherit, true)
	if err != nil {
		return nil, fmt.Errorf("mergeinfo catalog of %s: %w", loc, err)
	}

	return mergeinfo.RemovePrefix(cat, vcs.FromFSPath(loc.Path)), nil
}

// creationRevision is the revision the source branch appeared at its path.
func (e *Engine) creationRevision(ctx context.Context, source vcs.Location) (vcs.Revnum, error) {
	segments, err := e.locationSegments(ctx, source)
	if err != nil {
		return vcs.InvalidRevnum, err
	}

	if len(segments) == 0 {
		return vcs.InvalidRevnum, nil
	}

	return segments[len(segments)-1].Start, nil
}

func withoutRevision(m mergeinfo.MergeInfo, rev vcs.Revnum) mergeinfo.MergeInfo {
	if !rev.IsValid() || rev == 0 {
		return m
	}

	single := mergeinfo.MergeInfo{}
	for _, p := range m.Paths() {
		single[p] = mergeinfo.MustRangeList(mergeinfo.NewRange(rev, rev))
	}

	return mergeinfo.Remove(m, single, false)
}

func (e *Engine) youngestCommonAncestor(ctx context.Context, a, b vcs.Location) (vcs.Location, bool, error) {
	histA, err := e.history(ctx, a)
	if err != nil {
		return vcs.Location{}, false, err
	}

	histB, err := e.history(ctx, b)
	if err != nil {
		return vcs.Location{}, false, err
	}

	loc, found := youngestShared(histA, histB)

	return loc, found, nil
}

func (e *Engine) history(ctx context.Context, loc vcs.Location) (mergeinfo.MergeInfo, error) {
	segments, err := e.locationSegments(ctx, loc)
	if err != nil {
		return nil, err
	}

	return mergeinfo.FromSegments(segments), nil
}

func (e *Engine) historyIfExists(ctx context.Context, loc vcs.Location) (mergeinfo.MergeInfo, bool, error) {
	kind, err := e.session.CheckPath(ctx, loc.Path, loc.Rev)
	if err != nil {
		return nil, false, fmt.Errorf("check %s: %w", loc, err)
	}

	if kind == vcs.KindNone {
		return nil, false, nil
	}

	hist, err := e.history(ctx, loc)
	if err != nil {
		return nil, false, err
	}

	return hist, true, nil
}

func (e *Engine) locationSegments(ctx context.Context, loc vcs.Location) ([]vcs.Segment, error) {
	loc.Path = vcs.FromFSPath(loc.Path)

	if segments, ok := e.segments.Get(loc); ok {
		return segments, nil
	}

	ctx, span := e.tracer.Start(ctx, spanLocationSegments, trace.WithAttributes(
		attribute.String("merge.location", loc.String()),
	))
	defer span.End()

	segments, err := e.session.LocationSegments(ctx, loc.Path, loc.Rev, vcs.InvalidRevnum, loc.Rev)
	if err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("history of %s: %w", loc, err)
	}

	e.segments.Put(loc, segments)

	return segments, nil
}

// locationAt returns where the line of history of loc was at rev.
func (e *Engine) locationAt(ctx context.Context, loc vcs.Location, rev vcs.Revnum) (vcs.Location, error) {
	segments, err := e.locationSegments(ctx, loc)
	if err != nil {
		return vcs.Location{}, err
	}

	tree := interval.New[vcs.Revnum, string]()

	for _, seg := range segments {
		if !seg.IsGap() {
			tree.Insert(seg.Start, seg.End, seg.Path)
		}
	}

	hits := tree.QueryPoint(rev)
	if len(hits) == 0 {
		return vcs.Location{}, fmt.Errorf("%w: %s did not exist at r%d", ErrNotReadyToMerge, loc, rev)
	}

	return vcs.Location{Path: hits[len(hits)-1].Value, Rev: rev}, nil
}
