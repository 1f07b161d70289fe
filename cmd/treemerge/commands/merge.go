package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/treemerge/pkg/merge"
)

const mergeArgCount = 2

// MergeCommand holds the flags of the merge command.
type MergeCommand struct {
	fixture fixtureFlags
	output  mergeOutputFlags
}

// NewMergeCommand creates the merge command.
func NewMergeCommand(g *Globals) *cobra.Command {
	mc := &MergeCommand{}

	cmd := &cobra.Command{
		Use:   "merge <left> <right>",
		Short: "Apply the difference between two repository locations to the working copy",
		Long: `Apply the changes between left and right (path@rev) to the scenario's
working copy and record the merged revisions as mergeinfo on its root.

Changes that do not fit the local state are skipped and reported.`,
		Example: `  treemerge merge -s feature.yaml trunk@1 trunk@4`,
		Args:    cobra.ExactArgs(mergeArgCount),
		RunE:    g.run(mc.run),
	}

	mc.fixture.register(cmd)
	cmd.Flags().StringVar(&mc.output.depth, "depth", "", "recursion depth (empty, files, immediates, infinity)")
	cmd.Flags().BoolVar(&mc.output.ignoreAncestry, "ignore-ancestry", false, "compare nodes regardless of history")
	cmd.Flags().BoolVar(&mc.output.summarize, "summarize", false, "print the resulting local modifications")

	return cmd
}

func (mc *MergeCommand) run(ctx context.Context, rt *runEnv, cmd *cobra.Command, args []string) error {
	opts, err := rt.mergeOptions(mc.output, cmd.Flags().Changed("depth"))
	if err != nil {
		return err
	}

	fx, err := mc.fixture.load(ctx, rt, true)
	if err != nil {
		return err
	}
	defer fx.Close()

	left, err := resolveLocation(ctx, fx.Repo, args[0])
	if err != nil {
		return err
	}

	right, err := resolveLocation(ctx, fx.Repo, args[1])
	if err != nil {
		return err
	}

	res, err := merge.Merge(ctx, fx.Repo, fx.WC, left, right, opts)
	if err != nil {
		return fmt.Errorf("merge %s %s: %w", left, right, err)
	}

	out := cmd.OutOrStdout()
	rt.writeMergeResult(out, res)

	if mc.output.summarize {
		return rt.writeLocalSummary(ctx, out, fx)
	}

	return nil
}
