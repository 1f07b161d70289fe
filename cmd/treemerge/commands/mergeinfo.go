package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/treemerge/pkg/diff/printer"
	"github.com/Sumatoshi-tech/treemerge/pkg/mergeinfo"
)

const binaryArgCount = 2

// ErrCatalogEntry is returned for a catalog argument that is not path=mergeinfo.
var ErrCatalogEntry = errors.New("catalog entry must be path=mergeinfo")

// NewMergeinfoCommand creates the mergeinfo command group.
func NewMergeinfoCommand(g *Globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mergeinfo",
		Short: "Parse, combine and elide mergeinfo property values",
		Long: `Work with mergeinfo values: "path:ranges" entries separated by newlines,
or by ';' on a single line, such as "/trunk:1-5,7;/branches/b:9*".`,
	}

	cmd.AddCommand(newNormalizeCommand(g))
	cmd.AddCommand(newAlgebraCommand(g, "merge", "Union of two mergeinfo values", mergeinfoUnion))
	cmd.AddCommand(newAlgebraCommand(g, "subtract", "Revisions of the first value missing from the second", mergeinfo.Remove))
	cmd.AddCommand(newAlgebraCommand(g, "intersect", "Revisions present in both values", mergeinfo.Intersect))
	cmd.AddCommand(newElideCommand(g))

	return cmd
}

func mergeinfoUnion(a, b mergeinfo.MergeInfo, _ bool) mergeinfo.MergeInfo {
	return mergeinfo.Merge(a, b)
}

type normalizeCommand struct {
	stats bool
}

func newNormalizeCommand(g *Globals) *cobra.Command {
	nc := &normalizeCommand{}

	cmd := &cobra.Command{
		Use:   "normalize <mergeinfo>...",
		Short: "Print mergeinfo values in canonical form",
		Args:  cobra.MinimumNArgs(1),
		RunE:  g.run(nc.run),
	}

	cmd.Flags().BoolVar(&nc.stats, "stats", false, "print revision counts and endpoints")

	return cmd
}

func (nc *normalizeCommand) run(_ context.Context, _ *runEnv, cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	for _, arg := range args {
		info, err := mergeinfo.Parse(arg)
		if err != nil {
			return err
		}

		fmt.Fprintln(out, info.String())

		if nc.stats {
			writeStats(out, info)
		}
	}

	return nil
}

func writeStats(w io.Writer, info mergeinfo.MergeInfo) {
	oldest, youngest := mergeinfo.Endpoints(info)
	if !oldest.IsValid() {
		fmt.Fprintln(w, "  no revisions")

		return
	}

	fmt.Fprintf(w, "  %s revisions from %d sources, r%d through r%d\n",
		humanize.Comma(info.Count()), len(info), oldest+1, youngest)
}

type algebraCommand struct {
	considerInheritance bool
	op                  func(a, b mergeinfo.MergeInfo, considerInheritance bool) mergeinfo.MergeInfo
}

func newAlgebraCommand(
	g *Globals, name, short string, op func(a, b mergeinfo.MergeInfo, considerInheritance bool) mergeinfo.MergeInfo,
) *cobra.Command {
	ac := &algebraCommand{op: op}

	cmd := &cobra.Command{
		Use:   name + " <mergeinfo> <mergeinfo>",
		Short: short,
		Args:  cobra.ExactArgs(binaryArgCount),
		RunE:  g.run(ac.run),
	}

	cmd.Flags().BoolVar(&ac.considerInheritance, "consider-inheritance", false,
		"treat ranges that differ only in inheritability as different")

	return cmd
}

func (ac *algebraCommand) run(_ context.Context, _ *runEnv, cmd *cobra.Command, args []string) error {
	a, err := mergeinfo.Parse(args[0])
	if err != nil {
		return err
	}

	b, err := mergeinfo.Parse(args[1])
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), ac.op(a, b, ac.considerInheritance).String())

	return nil
}

type elideCommand struct {
	parent string
}

func newElideCommand(g *Globals) *cobra.Command {
	ec := &elideCommand{}

	cmd := &cobra.Command{
		Use:   "elide <path=mergeinfo>...",
		Short: "Drop subtree mergeinfo that its nearest ancestor already implies",
		Long: `Elide a catalog of explicit mergeinfo. Each argument is a path relative to
the root ("." for the root itself) and its mergeinfo value. The surviving
catalog is printed as a table.`,
		Example: `  treemerge mergeinfo elide ".=/trunk:1-10" "A=/trunk/A:1-10" "B=/trunk/B:1-10*"`,
		Args:    cobra.MinimumNArgs(1),
		RunE:    g.run(ec.run),
	}

	cmd.Flags().StringVar(&ec.parent, "parent", "", "mergeinfo inherited by the catalog root")

	return cmd
}

func (ec *elideCommand) run(ctx context.Context, rt *runEnv, cmd *cobra.Command, args []string) error {
	catalog, err := parseCatalog(args)
	if err != nil {
		return err
	}

	var parent mergeinfo.MergeInfo

	if ec.parent != "" {
		parent, err = mergeinfo.Parse(ec.parent)
		if err != nil {
			return err
		}
	}

	kept := mergeinfo.Elide(catalog, parent)

	for _, path := range catalog.SortedPaths() {
		if _, ok := kept[path]; !ok {
			rt.logger.DebugContext(ctx, "elided", "path", displayPath(path))
		}
	}

	printer.RenderCatalog(cmd.OutOrStdout(), kept)

	return nil
}

func parseCatalog(args []string) (mergeinfo.Catalog, error) {
	catalog := mergeinfo.Catalog{}

	for _, arg := range args {
		path, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrCatalogEntry, arg)
		}

		info, err := mergeinfo.Parse(value)
		if err != nil {
			return nil, err
		}

		path = strings.Trim(path, "/")
		if path == "." {
			path = ""
		}

		catalog[path] = info
	}

	return catalog, nil
}
