package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/treemerge/pkg/diff/printer"
	"github.com/Sumatoshi-tech/treemerge/pkg/merge"
	"github.com/Sumatoshi-tech/treemerge/pkg/observability"
)

// ReintegrateCommand holds the flags of the reintegrate command.
type ReintegrateCommand struct {
	fixture fixtureFlags
	output  mergeOutputFlags
	dryRun  bool
}

// NewReintegrateCommand creates the reintegrate command.
func NewReintegrateCommand(g *Globals) *cobra.Command {
	rc := &ReintegrateCommand{}

	cmd := &cobra.Command{
		Use:   "reintegrate <source>",
		Short: "Merge a feature branch back into the working copy it was branched from",
		Long: `Merge every change a branch made since it left the target back into the
scenario's working copy. The branch must hold all target revisions up to the
youngest one it merged; otherwise the missing ranges are listed and nothing
is changed.`,
		Example: `  treemerge reintegrate -s feature.yaml branches/feature
  treemerge reintegrate -s feature.yaml branches/feature@7 --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: g.run(rc.run),
	}

	rc.fixture.register(cmd)
	cmd.Flags().BoolVar(&rc.dryRun, "dry-run", false, "only compute the merge endpoints")
	cmd.Flags().StringVar(&rc.output.depth, "depth", "", "recursion depth (empty, files, immediates, infinity)")
	cmd.Flags().BoolVar(&rc.output.ignoreAncestry, "ignore-ancestry", false, "compare nodes regardless of history")
	cmd.Flags().BoolVar(&rc.output.summarize, "summarize", false, "print the resulting local modifications")

	return cmd
}

func (rc *ReintegrateCommand) run(ctx context.Context, rt *runEnv, cmd *cobra.Command, args []string) error {
	opts, err := rt.mergeOptions(rc.output, cmd.Flags().Changed("depth"))
	if err != nil {
		return err
	}

	fx, err := rc.fixture.load(ctx, rt, true)
	if err != nil {
		return err
	}
	defer fx.Close()

	source, err := resolveLocation(ctx, fx.Repo, args[0])
	if err != nil {
		return err
	}

	engine := merge.NewEngine(fx.Repo, merge.EngineConfig{
		Logger:           rt.logger,
		Tracer:           rt.tracer,
		Metrics:          rt.merge,
		HistoryCacheSize: rt.cfg.Merge.HistoryCacheSize,
	})

	caches := fx.caches()
	caches[cacheNameHistory] = engine

	if err := observability.RegisterCacheMetrics(rt.meter, caches); err != nil {
		return fmt.Errorf("register cache metrics: %w", err)
	}

	out := cmd.OutOrStdout()

	var (
		plan merge.Reintegrate
		res  merge.Result
	)

	if rc.dryRun {
		plan, err = engine.PlanReintegrate(ctx, fx.WC, source)
	} else {
		plan, res, err = engine.ReintegrateMerge(ctx, fx.WC, source, opts)
	}

	var unmerged *merge.UnmergedError
	if errors.As(err, &unmerged) {
		rt.status(cmd.ErrOrStderr(), color.FgRed, "%s is missing merges from %s:\n", source, unmerged.Target)
		printer.RenderCatalog(cmd.ErrOrStderr(), unmerged.Unmerged)
	}

	if err != nil {
		return fmt.Errorf("reintegrate %s: %w", source, err)
	}

	writePlan(rt, cmd, plan)

	if rc.dryRun || plan.NothingToMerge {
		return nil
	}

	rt.writeMergeResult(out, res)

	if rc.output.summarize {
		return rt.writeLocalSummary(ctx, out, fx)
	}

	return nil
}

func writePlan(rt *runEnv, cmd *cobra.Command, plan merge.Reintegrate) {
	out := cmd.OutOrStdout()

	if plan.NothingToMerge {
		rt.status(out, color.FgYellow, "Nothing to merge: the source has no changes since %s\n", plan.Ancestor)

		return
	}

	rt.status(out, color.FgCyan, "Common ancestor: %s\n", plan.Ancestor)

	if plan.NeverSynced {
		rt.status(out, color.FgCyan, "Source was never synced with the target\n")
	} else {
		rt.status(out, color.FgCyan, "Youngest merged target revision: %s\n", plan.YoungestMerged)
	}

	rt.status(out, color.FgGreen, "Merging %s through %s\n", plan.Left, plan.Right)
}
