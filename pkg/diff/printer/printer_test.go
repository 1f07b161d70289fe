package printer_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/treemerge/pkg/diff"
	"github.com/Sumatoshi-tech/treemerge/pkg/diff/printer"
	"github.com/Sumatoshi-tech/treemerge/pkg/mergeinfo"
	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
)

func side(rev vcs.Revnum) *diff.Source {
	return &diff.Source{Revision: vcs.Number(rev), Path: "trunk/file"}
}

func changedFile() *diff.FileEvent {
	ev := &diff.FileEvent{
		Path:       "file",
		Left:       side(1),
		Right:      &diff.Source{Revision: vcs.Working(), Path: "file"},
		LeftText:   []byte("a\nb\nc\n"),
		RightText:  []byte("a\nB\nc"),
		LeftProps:  vcs.Props{"owner": "x"},
		RightProps: vcs.Props{"owner": "y"},
	}
	ev.PropChanges = vcs.DiffProps(ev.LeftProps, ev.RightProps)

	return ev
}

func TestUnified_ChangedFile(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	u := printer.NewUnified(&out, printer.Options{ContextLines: -1})
	require.NoError(t, u.FileChanged(context.Background(), changedFile()))

	assert.Equal(t, "Index: file\n"+
		"===================================================================\n"+
		"--- file\t(revision 1)\n"+
		"+++ file\t(working copy)\n"+
		"@@ -1,3 +1,3 @@\n"+
		" a\n"+
		"-b\n"+
		"-c\n"+
		"+B\n"+
		"+c\n"+
		"\\ No newline at end of file\n"+
		"\n"+
		"Property changes on: file\n"+
		"___________________________________________________________________\n"+
		"Modified: owner\n"+
		"   - x\n"+
		"   + y\n"+
		"\n", out.String())
}

func TestUnified_AddedAndDeleted(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	u := printer.NewUnified(&out, printer.Options{ContextLines: 3})
	ctx := context.Background()

	require.NoError(t, u.FileAdded(ctx, &diff.FileEvent{Path: "new", Right: side(2), RightText: []byte("x\n")}))
	require.NoError(t, u.FileDeleted(ctx, &diff.FileEvent{Path: "old", Left: side(1), LeftText: []byte("y\n")}))

	text := out.String()
	assert.Contains(t, text, "--- new\t(nonexistent)\n+++ new\t(revision 2)\n@@ -0,0 +1,1 @@\n+x\n")
	assert.Contains(t, text, "--- old\t(revision 1)\n+++ old\t(nonexistent)\n@@ -1,1 +0,0 @@\n-y\n")
}

func TestUnified_BinaryAndUnchanged(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	u := printer.NewUnified(&out, printer.Options{})
	ctx := context.Background()

	require.NoError(t, u.FileChanged(ctx, &diff.FileEvent{
		Path: "img", Left: side(1), Right: side(2),
		LeftText: []byte("\x00\x01"), RightText: []byte("\x00\x02"),
	}))
	assert.Contains(t, out.String(), "Cannot display: file marked as a binary type.")

	out.Reset()
	require.NoError(t, u.FileClosed(ctx, &diff.FileEvent{Path: "same", Left: side(1), Right: side(2)}))
	require.NoError(t, u.DirChanged(ctx, &diff.DirEvent{Path: "", Left: side(1), Right: side(2)}))
	assert.Empty(t, out.String())
}

func TestUnified_DirProps(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	u := printer.NewUnified(&out, printer.Options{})
	ev := &diff.DirEvent{
		Path: "", Left: side(1), Right: side(2),
		LeftProps:   vcs.Props{vcs.PropMergeInfo: "/branch:3"},
		PropChanges: []vcs.PropChange{{Name: vcs.PropMergeInfo}},
	}

	require.NoError(t, u.DirChanged(context.Background(), ev))
	assert.Contains(t, out.String(), "Property changes on: .\n")
	assert.Contains(t, out.String(), "Deleted: svn:mergeinfo\n   - /branch:3\n")
}

type failingWriter struct{}

var errWrite = errors.New("disk full")

func (failingWriter) Write([]byte) (int, error) { return 0, errWrite }

func TestUnified_WriteError(t *testing.T) {
	t.Parallel()

	u := printer.NewUnified(failingWriter{}, printer.Options{})

	err := u.FileChanged(context.Background(), changedFile())
	require.ErrorIs(t, err, errWrite)
}

func TestSummarizer(t *testing.T) {
	t.Parallel()

	s := printer.NewSummarizer()
	ctx := context.Background()

	require.NoError(t, s.FileAdded(ctx, &diff.FileEvent{Path: "A/new", RightText: []byte("12345")}))
	require.NoError(t, s.FileDeleted(ctx, &diff.FileEvent{Path: "A/old", LeftText: []byte("12")}))
	require.NoError(t, s.FileChanged(ctx, changedFile()))
	require.NoError(t, s.DirChanged(ctx, &diff.DirEvent{
		Path: "A", PropChanges: []vcs.PropChange{{Name: "k", Value: vcs.StringPtr("v")}},
	}))

	entries := s.Entries()
	require.Len(t, entries, 4)
	assert.Equal(t, printer.SummaryEntry{Path: "A/new", Kind: vcs.KindFile, Status: printer.StatusAdded, SizeDelta: 5}, entries[0])
	assert.Equal(t, printer.StatusDeleted, entries[1].Status)
	assert.Equal(t, int64(-2), entries[1].SizeDelta)
	assert.Equal(t, printer.StatusModified, entries[2].Status)
	assert.True(t, entries[2].PropsModified)
	assert.Equal(t, printer.StatusNone, entries[3].Status)
	assert.Equal(t, vcs.KindDir, entries[3].Kind)

	var out bytes.Buffer

	require.NoError(t, s.Render(&out))

	text := out.String()
	assert.Contains(t, text, "A/new")
	assert.Contains(t, text, "A/")
	assert.Contains(t, text, "+5 B")
	assert.Contains(t, text, "1 ADDED, 1 DELETED, 2 MODIFIED")
}

func TestRenderCatalog(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	printer.RenderCatalog(&out, mergeinfo.Catalog{
		"":  mergeinfo.MustParse("/trunk:1-5"),
		"A": mergeinfo.MustParse("/trunk/A:2\n/branch/A:7*"),
	})

	text := out.String()
	assert.Contains(t, text, "/trunk")
	assert.Contains(t, text, "1-5")
	assert.Contains(t, text, "/branch/A")
	assert.Contains(t, text, "7*")
}
