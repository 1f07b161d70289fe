package merge_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/treemerge/pkg/diff"
	"github.com/Sumatoshi-tech/treemerge/pkg/merge"
	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
	"github.com/Sumatoshi-tech/treemerge/pkg/wc"
)

func newApplier(t *testing.T) (*merge.Applier, *wc.Memory) {
	t.Helper()

	repo := newBranchRepo(t, "")
	local := checkout(t, repo, trunkAt(8))

	return merge.NewApplier(local, testTrunk, nil), local
}

func rightSource(path string) *diff.Source {
	return &diff.Source{Revision: vcs.Number(revYoungest), Path: path}
}

func TestApplier_TreeConflicts(t *testing.T) {
	t.Parallel()

	applier, local := newApplier(t)
	ctx := context.Background()

	require.NoError(t, applier.FileAdded(ctx, &diff.FileEvent{
		Path: "A/file", Right: rightSource("A/file"), RightText: []byte("new\n"),
	}))
	require.NoError(t, applier.FileAdded(ctx, &diff.FileEvent{
		Path: "Z/new", Right: rightSource("Z/new"), RightText: []byte("new\n"),
	}))
	require.NoError(t, applier.FileDeleted(ctx, &diff.FileEvent{
		Path: "A/missing", Left: rightSource("A/missing"),
	}))
	require.NoError(t, applier.FileDeleted(ctx, &diff.FileEvent{
		Path: "A/file", Left: rightSource("A/file"), LeftText: []byte("something else\n"),
	}))
	require.NoError(t, applier.FileChanged(ctx, &diff.FileEvent{
		Path: "A/missing", Left: rightSource("A/missing"), Right: rightSource("A/missing"),
		LeftText: []byte("a"), RightText: []byte("b"),
	}))

	conflicts := applier.Conflicts()
	require.Len(t, conflicts, 5)

	for _, c := range conflicts {
		assert.Equal(t, merge.ConflictTree, c.Kind, c.String())
	}

	assert.Equal(t, []string{"A/file", "Z/new", "A/missing", "A/file", "A/missing"}, conflictPaths(conflicts))
	assert.Equal(t, textFileR7, workingText(t, local, "A/file"))
}

func TestApplier_DeleteMatchingFile(t *testing.T) {
	t.Parallel()

	applier, local := newApplier(t)
	ctx := context.Background()

	require.NoError(t, applier.FileDeleted(ctx, &diff.FileEvent{
		Path: "A/file", Left: rightSource("A/file"), LeftText: []byte(textFileR7),
	}))

	node, err := local.ReadNode(ctx, "A/file")
	require.NoError(t, err)
	assert.Equal(t, wc.StatusDeleted, node.Status)
	assert.Empty(t, applier.Conflicts())
}

func TestApplier_DirDeleteSparesConflictedChild(t *testing.T) {
	t.Parallel()

	applier, local := newApplier(t)
	ctx := context.Background()

	require.NoError(t, applier.FileDeleted(ctx, &diff.FileEvent{
		Path: "B/f", Left: rightSource("B/f"), LeftText: []byte("before local edit\n"),
	}))
	require.NoError(t, applier.FileDeleted(ctx, &diff.FileEvent{
		Path: "B/g", Left: rightSource("B/g"), LeftText: []byte("g\n"),
	}))
	require.NoError(t, applier.DirDeleted(ctx, &diff.DirEvent{Path: "B", Left: rightSource("B")}))

	assert.Equal(t, []string{"B/f", "B"}, conflictPaths(applier.Conflicts()))
	assert.Equal(t, "b\n", workingText(t, local, "B/f"))

	dir, err := local.ReadNode(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, vcs.KindDir, dir.Kind)

	// Once nothing local is left, the directory goes.
	require.NoError(t, applier.DirDeleted(ctx, &diff.DirEvent{Path: "A", Left: rightSource("A")}))
	assert.Equal(t, "A", applier.Conflicts()[2].Path)

	require.NoError(t, applier.FileDeleted(ctx, &diff.FileEvent{
		Path: "A/file", Left: rightSource("A/file"), LeftText: []byte(textFileR7),
	}))
	require.NoError(t, applier.FileDeleted(ctx, &diff.FileEvent{
		Path: "A/other", Left: rightSource("A/other"), LeftText: []byte("x\n"),
	}))
	require.NoError(t, applier.DirDeleted(ctx, &diff.DirEvent{Path: "A", Left: rightSource("A")}))
	require.Len(t, applier.Conflicts(), 3)

	gone, err := local.ReadNode(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, vcs.KindNone, gone.Kind)
}

func TestApplier_TextAlreadyMerged(t *testing.T) {
	t.Parallel()

	applier, local := newApplier(t)
	ctx := context.Background()

	require.NoError(t, applier.FileChanged(ctx, &diff.FileEvent{
		Path: "A/file", Left: rightSource("A/file"), Right: rightSource("A/file"),
		LeftText: []byte(textFileR4), RightText: []byte(textFileR7),
	}))

	assert.Empty(t, applier.Conflicts())
	assert.Equal(t, textFileR7, workingText(t, local, "A/file"))
}

func TestApplier_PropertyMerge(t *testing.T) {
	t.Parallel()

	applier, local := newApplier(t)
	ctx := context.Background()

	require.NoError(t, local.SetProps(ctx, "B/f", vcs.Props{"color": "red"}))

	require.NoError(t, applier.FileChanged(ctx, &diff.FileEvent{
		Path: "B/f", Left: rightSource("B/f"), Right: rightSource("B/f"),
		LeftProps:  vcs.Props{"owner": "x"},
		RightProps: vcs.Props{"color": "blue", "owner": "y"},
		PropChanges: []vcs.PropChange{
			{Name: "color", Value: vcs.StringPtr("blue")},
			{Name: "owner", Value: vcs.StringPtr("y")},
		},
	}))

	conflicts := applier.Conflicts()
	require.Len(t, conflicts, 2)
	assert.Equal(t, merge.ConflictProp, conflicts[0].Kind)
	assert.Contains(t, conflicts[0].Reason, "color")
	assert.Contains(t, conflicts[1].Reason, "owner")

	props, err := local.ReadProps(ctx, "B/f")
	require.NoError(t, err)
	assert.Equal(t, vcs.Props{"color": "red"}, props)
}

func TestApplier_MergeinfoIsUnioned(t *testing.T) {
	t.Parallel()

	applier, local := newApplier(t)
	ctx := context.Background()

	require.NoError(t, local.SetProps(ctx, "", vcs.Props{vcs.PropMergeInfo: "/branches/x:1"}))

	require.NoError(t, applier.DirChanged(ctx, &diff.DirEvent{
		Path: "", Left: rightSource(""), Right: rightSource(""),
		PropChanges: []vcs.PropChange{
			{Name: vcs.PropMergeInfo, Value: vcs.StringPtr("/branches/x:3\n/trunk:2")},
		},
	}))

	assert.Empty(t, applier.Conflicts())
	assert.Equal(t, "/branches/x:1,3", workingMergeinfo(t, local, ""))
}

func TestApplier_MalformedIncomingMergeinfo(t *testing.T) {
	t.Parallel()

	applier, _ := newApplier(t)

	err := applier.DirChanged(context.Background(), &diff.DirEvent{
		Path: "A", Left: rightSource("A"), Right: rightSource("A"),
		PropChanges: []vcs.PropChange{{Name: vcs.PropMergeInfo, Value: vcs.StringPtr("/trunk:9-2")}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "9-2")
}

func TestApplier_AddedDirectory(t *testing.T) {
	t.Parallel()

	applier, local := newApplier(t)
	ctx := context.Background()

	ev := &diff.DirEvent{Path: "C", Right: rightSource("C")}

	res, err := applier.DirOpened(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, diff.Result{}, res)

	require.NoError(t, applier.FileAdded(ctx, &diff.FileEvent{
		Path: "C/leaf", Right: rightSource("C/leaf"), RightText: []byte("leaf\n"),
	}))

	ev.RightProps = vcs.Props{"k": "v"}
	ev.PropChanges = []vcs.PropChange{{Name: "k", Value: vcs.StringPtr("v")}}
	require.NoError(t, applier.DirAdded(ctx, ev))

	node, err := local.ReadNode(ctx, "C")
	require.NoError(t, err)
	assert.Equal(t, wc.StatusAdded, node.Status)
	assert.Equal(t, "leaf\n", workingText(t, local, "C/leaf"))

	props, err := local.ReadProps(ctx, "C")
	require.NoError(t, err)
	assert.Equal(t, vcs.Props{"k": "v"}, props)

	res, err = applier.DirOpened(ctx, &diff.DirEvent{Path: "B", Right: rightSource("B")})
	require.NoError(t, err)
	assert.Equal(t, diff.Result{Skip: true, SkipChildren: true}, res)
	require.Len(t, applier.Conflicts(), 1)
}

func conflictPaths(conflicts []merge.Conflict) []string {
	paths := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		paths = append(paths, c.Path)
	}

	return paths
}
