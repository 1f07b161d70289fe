// Package commands implements the treemerge CLI commands.
package commands

import "github.com/spf13/cobra"

// NewRootCommand creates the treemerge command tree.
func NewRootCommand() *cobra.Command {
	globals := &Globals{}

	rootCmd := &cobra.Command{
		Use:   "treemerge",
		Short: "Tree diff and mergeinfo-tracking merge engine",
		Long: `treemerge compares versioned trees and merges branches while tracking which
source revisions each path has already received.

Commands:
  diff         Compare repository trees or a working copy
  merge        Apply a repository diff to a working copy
  reintegrate  Merge a feature branch back into its origin
  mergeinfo    Parse, combine and elide mergeinfo values`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	globals.Register(rootCmd)

	rootCmd.AddCommand(NewDiffCommand(globals))
	rootCmd.AddCommand(NewMergeCommand(globals))
	rootCmd.AddCommand(NewReintegrateCommand(globals))
	rootCmd.AddCommand(NewMergeinfoCommand(globals))
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}
