package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/Sumatoshi-tech/treemerge/pkg/diff"
	"github.com/Sumatoshi-tech/treemerge/pkg/diff/printer"
	"github.com/Sumatoshi-tech/treemerge/pkg/merge"
	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
)

// mergeOutputFlags are shared by merge and reintegrate.
type mergeOutputFlags struct {
	depth          string
	ignoreAncestry bool
	summarize      bool
}

func (rt *runEnv) mergeOptions(flags mergeOutputFlags, depthChanged bool) (merge.Options, error) {
	opts := merge.Options{
		IgnoreAncestry: rt.cfg.Diff.IgnoreAncestry || flags.ignoreAncestry,
		Logger:         rt.logger,
		Tracer:         rt.tracer,
		Metrics:        rt.merge,
		DiffMetrics:    rt.diff,
	}

	opts.Depth = rt.cfg.Diff.DiffOptions().Depth

	if depthChanged {
		depth, err := vcs.ParseDepth(flags.depth)
		if err != nil {
			return merge.Options{}, err
		}

		opts.Depth = depth
	}

	return opts, nil
}

// writeMergeResult prints what a merge changed, recorded and skipped.
func (rt *runEnv) writeMergeResult(w io.Writer, res merge.Result) {
	rt.status(w, color.FgGreen, "Merged: %d added, %d deleted, %d changed\n",
		res.Stats.Added, res.Stats.Deleted, res.Stats.Changed)

	if !res.Recorded.IsEmpty() {
		rt.status(w, color.FgCyan, "Recorded mergeinfo:\n")

		for _, source := range res.Recorded.Paths() {
			rt.status(w, color.FgCyan, "  %s:%s\n", source, res.Recorded[source].String())
		}
	}

	for _, path := range res.Elided {
		rt.status(w, color.FgCyan, "Elided mergeinfo on '%s'\n", displayPath(path))
	}

	for _, c := range res.Conflicts {
		rt.status(w, color.FgRed, "Skipped: %s\n", c.String())
	}
}

// writeLocalSummary prints the local modifications of the working copy.
func (rt *runEnv) writeLocalSummary(ctx context.Context, w io.Writer, fx *loadedFixture) error {
	summary := printer.NewSummarizer()

	opts := diff.Options{Logger: rt.logger, Tracer: rt.tracer, Metrics: rt.diff}

	if _, err := diff.DiffWorking(ctx, fx.Repo, fx.WC, fx.Store, vcs.InvalidRevnum, summary, opts); err != nil {
		return fmt.Errorf("summarize working copy: %w", err)
	}

	return summary.Render(w)
}

func displayPath(path string) string {
	if path == "" {
		return "."
	}

	return path
}
