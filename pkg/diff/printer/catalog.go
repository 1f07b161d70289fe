package printer

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/treemerge/pkg/mergeinfo"
)

// RenderCatalog writes a mergeinfo catalog as a table of path, merge source
// and revision ranges, sorted by path then source.
func RenderCatalog(w io.Writer, catalog mergeinfo.Catalog) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false
	tbl.AppendHeader(table.Row{"Path", "Source", "Revisions"})

	for _, path := range catalog.SortedPaths() {
		info := catalog[path]

		for _, source := range info.Paths() {
			tbl.AppendRow(table.Row{displayPath(path), source, info[source].String()})
		}
	}

	tbl.Render()
}
