package merge

import (
	"context"
	"fmt"

	"github.com/Sumatoshi-tech/treemerge/pkg/mergeinfo"
	"github.com/Sumatoshi-tech/treemerge/pkg/ra"
	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
)

// History returns the line of history of loc, from its oldest revision up to
// loc.Rev, as mergeinfo.
func History(ctx context.Context, session ra.Session, loc vcs.Location) (mergeinfo.MergeInfo, error) {
	segments, err := session.LocationSegments(ctx, loc.Path, loc.Rev, vcs.InvalidRevnum, loc.Rev)
	if err != nil {
		return nil, fmt.Errorf("history of %s: %w", loc, err)
	}

	return mergeinfo.FromSegments(segments), nil
}

// YoungestCommonAncestor returns the youngest location present in the
// history of both a and b. found is false when the histories do not meet.
func YoungestCommonAncestor(
	ctx context.Context, session ra.Session, a, b vcs.Location,
) (loc vcs.Location, found bool, err error) {
	histA, err := History(ctx, session, a)
	if err != nil {
		return vcs.Location{}, false, err
	}

	histB, err := History(ctx, session, b)
	if err != nil {
		return vcs.Location{}, false, err
	}

	loc, found = youngestShared(histA, histB)

	return loc, found, nil
}

func youngestShared(histA, histB mergeinfo.MergeInfo) (vcs.Location, bool) {
	common := mergeinfo.Intersect(histA, histB, true)

	best := vcs.Location{Rev: vcs.InvalidRevnum}

	for _, p := range common.Paths() {
		_, youngest := common[p].Endpoints()
		if youngest > best.Rev {
			best = vcs.Location{Path: vcs.FromFSPath(p), Rev: youngest}
		}
	}

	return best, best.Rev.IsValid()
}
