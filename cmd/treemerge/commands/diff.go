package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/treemerge/pkg/diff"
	"github.com/Sumatoshi-tech/treemerge/pkg/diff/printer"
	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
)

// ErrExclusiveOutput is returned when --summarize and --stat are both set.
var ErrExclusiveOutput = errors.New("--summarize and --stat are mutually exclusive")

// DiffCommand holds the flags of the diff command.
type DiffCommand struct {
	fixture fixtureFlags

	oldLoc   string
	newLoc   string
	revision int64
	only     string

	summarize bool
	stat      bool

	depth             string
	contextLines      int
	ignoreAncestry    bool
	showCopiesAsAdds  bool
	localBeforeRemote bool
	reverse           bool
}

// NewDiffCommand creates the diff command.
func NewDiffCommand(g *Globals) *cobra.Command {
	dc := &DiffCommand{}

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Compare two repository trees, or a working copy with the repository",
		Long: `Compare two trees of a scenario.

With --old and --new the two repository locations are compared. Without them
the scenario's working copy is compared with its BASE revision, or with
--revision when given.`,
		Example: `  treemerge diff -s feature.yaml
  treemerge diff -s feature.yaml --old trunk@1 --new branches/feature@3 --summarize`,
		Args: cobra.NoArgs,
		RunE: g.run(dc.run),
	}

	dc.fixture.register(cmd)
	cmd.Flags().StringVar(&dc.oldLoc, "old", "", "left repository location (path@rev)")
	cmd.Flags().StringVar(&dc.newLoc, "new", "", "right repository location (path@rev)")
	cmd.Flags().Int64VarP(&dc.revision, "revision", "r", -1, "repository revision to compare the working copy with")
	cmd.Flags().StringVar(&dc.only, "only", "", "report only nodes at or below this path")
	cmd.Flags().BoolVar(&dc.summarize, "summarize", false, "print a status table instead of a unified diff")
	cmd.Flags().BoolVar(&dc.stat, "stat", false, "print the status table after the unified diff")
	cmd.Flags().StringVar(&dc.depth, "depth", "", "recursion depth (empty, files, immediates, infinity)")
	cmd.Flags().IntVarP(&dc.contextLines, "context", "U", 0, "unchanged lines around each change")
	cmd.Flags().BoolVar(&dc.ignoreAncestry, "ignore-ancestry", false, "compare nodes regardless of history")
	cmd.Flags().BoolVar(&dc.showCopiesAsAdds, "show-copies-as-adds", false, "report copies as plain additions")
	cmd.Flags().BoolVar(&dc.localBeforeRemote, "local-before-remote", false, "report local replacements first")
	cmd.Flags().BoolVar(&dc.reverse, "reverse", false, "swap the two sides")

	return cmd
}

func (dc *DiffCommand) run(ctx context.Context, rt *runEnv, cmd *cobra.Command, _ []string) error {
	if (dc.oldLoc == "") != (dc.newLoc == "") {
		return ErrLocationNeeded
	}

	opts, err := dc.options(rt, cmd)
	if err != nil {
		return err
	}

	fx, err := dc.fixture.load(ctx, rt, dc.oldLoc == "")
	if err != nil {
		return err
	}
	defer fx.Close()

	out := cmd.OutOrStdout()

	printOpts := rt.cfg.Diff.PrinterOptions()
	if cmd.Flags().Changed("context") {
		printOpts.ContextLines = dc.contextLines
	}

	unified := printer.NewUnified(out, printOpts)
	summary := printer.NewSummarizer()

	var cb diff.Callback

	switch {
	case dc.summarize:
		cb = summary
	case dc.stat:
		cb = diff.Tee(unified, summary)
	default:
		cb = unified
	}

	if dc.only != "" {
		cb = diff.FilterPrefix(dc.only, cb)
	}

	stats, err := dc.walk(ctx, fx, cb, opts)
	if err != nil {
		return err
	}

	if dc.summarize || dc.stat {
		if err := summary.Render(out); err != nil {
			return fmt.Errorf("render summary: %w", err)
		}
	}

	rt.logger.InfoContext(ctx, "diff complete",
		"added", stats.Added, "deleted", stats.Deleted, "changed", stats.Changed, "absent", stats.Absent)

	if stats.Absent > 0 {
		rt.status(cmd.ErrOrStderr(), color.FgYellow, "%d node(s) excluded from the comparison\n", stats.Absent)
	}

	return nil
}

func (dc *DiffCommand) walk(ctx context.Context, fx *loadedFixture, cb diff.Callback, opts diff.Options) (diff.Stats, error) {
	if dc.oldLoc == "" {
		return diff.DiffWorking(ctx, fx.Repo, fx.WC, fx.Store, vcs.Revnum(dc.revision), cb, opts)
	}

	left, err := resolveLocation(ctx, fx.Repo, dc.oldLoc)
	if err != nil {
		return diff.Stats{}, err
	}

	right, err := resolveLocation(ctx, fx.Repo, dc.newLoc)
	if err != nil {
		return diff.Stats{}, err
	}

	return diff.DiffRepos(ctx, fx.Repo, left, right, cb, opts)
}

// options merges the configured diff settings with the flags the user set.
func (dc *DiffCommand) options(rt *runEnv, cmd *cobra.Command) (diff.Options, error) {
	opts := rt.cfg.Diff.DiffOptions()

	if cmd.Flags().Changed("depth") {
		depth, err := vcs.ParseDepth(dc.depth)
		if err != nil {
			return diff.Options{}, err
		}

		opts.Depth = depth
	}

	flags := cmd.Flags()

	if flags.Changed("ignore-ancestry") {
		opts.IgnoreAncestry = dc.ignoreAncestry
	}

	if flags.Changed("show-copies-as-adds") {
		opts.ShowCopiesAsAdds = dc.showCopiesAsAdds
	}

	if flags.Changed("local-before-remote") {
		opts.LocalBeforeRemote = dc.localBeforeRemote
	}

	if flags.Changed("reverse") {
		opts.Reverse = dc.reverse
	}

	if dc.summarize && dc.stat {
		return diff.Options{}, ErrExclusiveOutput
	}

	opts.Logger = rt.logger
	opts.Tracer = rt.tracer
	opts.Metrics = rt.diff

	return opts, nil
}
