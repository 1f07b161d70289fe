package merge_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/treemerge/pkg/diff"
	"github.com/Sumatoshi-tech/treemerge/pkg/merge"
	"github.com/Sumatoshi-tech/treemerge/pkg/ra/memrepo"
	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
)

func TestMerge_SyncFromTrunk(t *testing.T) {
	t.Parallel()

	repo := newBranchRepo(t, "")
	local := checkout(t, repo, branchAt(8))

	res, err := merge.Merge(context.Background(), repo, local, trunkAt(revAncestor), trunkAt(8), merge.Options{})
	require.NoError(t, err)

	assert.Empty(t, res.Conflicts)
	assert.Equal(t, diff.Stats{Changed: 1, Unchanged: 2}, res.Stats)
	assert.Equal(t, textFileR7, workingText(t, local, "A/file"))
	assert.Equal(t, textBranchF, workingText(t, local, "B/f"))
	assert.Equal(t, "/trunk:6-8", res.Recorded.String())
	assert.Equal(t, "/trunk:6-8", workingMergeinfo(t, local, ""))
}

func TestMerge_RenameArrivesAsDeletePlusCopy(t *testing.T) {
	t.Parallel()

	repo := newBranchRepo(t, "")
	commit(t, repo, func(tx *memrepo.Txn) error { return tx.Move("trunk/A/other", "trunk/A/renamed") })

	local := checkout(t, repo, branchAt(8))

	res, err := merge.Merge(context.Background(), repo, local, trunkAt(revYoungest), trunkAt(revYoungest+1), merge.Options{})
	require.NoError(t, err)
	require.Empty(t, res.Conflicts)

	ctx := context.Background()

	gone, err := local.ReadNode(ctx, "A/other")
	require.NoError(t, err)
	assert.Equal(t, vcs.KindNone, gone.Kind)

	added, err := local.ReadNode(ctx, "A/renamed")
	require.NoError(t, err)
	require.NotNil(t, added.Origin)
	assert.Equal(t, vcs.Location{Path: "trunk/A/other", Rev: revYoungest}, *added.Origin)
	assert.Equal(t, "x\n", workingText(t, local, "A/renamed"))
	assert.Equal(t, "/trunk:11", res.Recorded.String())
}

func TestMerge_TextConflictIsSkipped(t *testing.T) {
	t.Parallel()

	repo := newBranchRepo(t, "")
	local := checkout(t, repo, branchAt(8))
	ctx := context.Background()

	require.NoError(t, local.WriteFile(ctx, "A/file", []byte("local\n")))

	res, err := merge.Merge(ctx, repo, local, trunkAt(revAncestor), trunkAt(8), merge.Options{})
	require.NoError(t, err)

	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, "A/file", res.Conflicts[0].Path)
	assert.Equal(t, merge.ConflictText, res.Conflicts[0].Kind)
	assert.Equal(t, "local\n", workingText(t, local, "A/file"))
}

func deleteTrunkB(t *testing.T) *memrepo.Repo {
	t.Helper()

	repo := newBranchRepo(t, "")
	commit(t, repo, func(tx *memrepo.Txn) error { return tx.Delete("trunk/B") })

	return repo
}

func TestMerge_DirectoryDeleteKeepsEditedChild(t *testing.T) {
	t.Parallel()

	repo := deleteTrunkB(t)
	local := checkout(t, repo, branchAt(8))
	ctx := context.Background()

	require.NoError(t, local.WriteFile(ctx, "B/f", []byte("local\n")))

	res, err := merge.Merge(ctx, repo, local, trunkAt(revYoungest), trunkAt(revYoungest+1), merge.Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"B/f", "B"}, conflictPaths(res.Conflicts))

	for _, c := range res.Conflicts {
		assert.Equal(t, merge.ConflictTree, c.Kind, c.String())
	}

	assert.Contains(t, res.Conflicts[1].Reason, "B/f")
	assert.Equal(t, "local\n", workingText(t, local, "B/f"))

	dir, err := local.ReadNode(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, vcs.KindDir, dir.Kind)

	gone, err := local.ReadNode(ctx, "B/g")
	require.NoError(t, err)
	assert.Equal(t, vcs.KindNone, gone.Kind)
}

func TestMerge_DirectoryDeleteKeepsLocalAddition(t *testing.T) {
	t.Parallel()

	repo := deleteTrunkB(t)
	local := checkout(t, repo, trunkAt(revYoungest))
	ctx := context.Background()

	require.NoError(t, local.AddFile(ctx, "B/new", []byte("mine\n"), nil, nil))

	res, err := merge.Merge(ctx, repo, local, trunkAt(revYoungest), trunkAt(revYoungest+1), merge.Options{})
	require.NoError(t, err)

	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, "B", res.Conflicts[0].Path)
	assert.Contains(t, res.Conflicts[0].Reason, "B/new")
	assert.Equal(t, "mine\n", workingText(t, local, "B/new"))

	for _, path := range []string{"B/f", "B/g"} {
		node, err := local.ReadNode(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, vcs.KindNone, node.Kind, path)
	}
}

func TestMerge_DirectoryDeleteWithoutLocalChanges(t *testing.T) {
	t.Parallel()

	repo := deleteTrunkB(t)
	local := checkout(t, repo, trunkAt(revYoungest))
	ctx := context.Background()

	res, err := merge.Merge(ctx, repo, local, trunkAt(revYoungest), trunkAt(revYoungest+1), merge.Options{})
	require.NoError(t, err)
	require.Empty(t, res.Conflicts)

	dir, err := local.ReadNode(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, vcs.KindNone, dir.Kind)
}

func TestMerge_ElidesRedundantSubtreeMergeinfo(t *testing.T) {
	t.Parallel()

	repo := newBranchRepo(t, "")
	local := checkout(t, repo, branchAt(8))
	ctx := context.Background()

	require.NoError(t, local.SetProps(ctx, "A", vcs.Props{vcs.PropMergeInfo: "/trunk/A:6-8"}))
	require.NoError(t, local.SetProps(ctx, "B", vcs.Props{vcs.PropMergeInfo: "/trunk/B:7"}))

	res, err := merge.Merge(ctx, repo, local, trunkAt(revAncestor), trunkAt(8), merge.Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"A"}, res.Elided)
	assert.Empty(t, workingMergeinfo(t, local, "A"))
	assert.Equal(t, "/trunk/B:7", workingMergeinfo(t, local, "B"))
}

func TestEngine_ReintegrateMerge(t *testing.T) {
	t.Parallel()

	repo := newBranchRepo(t, "/trunk:6-8")
	local := checkout(t, repo, trunkAt(revYoungest))
	engine := merge.NewEngine(repo, merge.EngineConfig{})

	plan, res, err := engine.ReintegrateMerge(context.Background(), local, branchAt(revYoungest), merge.Options{})
	require.NoError(t, err)

	assert.Equal(t, trunkAt(8), plan.Left)
	assert.Empty(t, res.Conflicts)
	assert.Equal(t, textBranchF, workingText(t, local, "B/f"))
	assert.Equal(t, textOtherR10, workingText(t, local, "A/other"))
	assert.Equal(t, textFileR7, workingText(t, local, "A/file"))
	assert.Equal(t, "/branches/feature:6-10", workingMergeinfo(t, local, ""))
}

func TestEngine_ReintegrateMergeRefusesHoles(t *testing.T) {
	t.Parallel()

	repo := newBranchRepo(t, "/trunk:8")
	local := checkout(t, repo, trunkAt(revYoungest))
	engine := merge.NewEngine(repo, merge.EngineConfig{})

	_, _, err := engine.ReintegrateMerge(context.Background(), local, branchAt(revYoungest), merge.Options{})
	require.ErrorIs(t, err, merge.ErrNotReadyToMerge)

	assert.Equal(t, "b\n", workingText(t, local, "B/f"))
	assert.Empty(t, workingMergeinfo(t, local, ""))
}

func TestEngine_PlanReintegrateLeavesWorkingCopy(t *testing.T) {
	t.Parallel()

	repo := newBranchRepo(t, "/trunk:6-8")
	local := checkout(t, repo, trunkAt(revYoungest))
	engine := merge.NewEngine(repo, merge.EngineConfig{})

	plan, err := engine.PlanReintegrate(context.Background(), local, branchAt(revYoungest))
	require.NoError(t, err)

	assert.Equal(t, trunkAt(8), plan.Left)
	assert.Equal(t, branchAt(revYoungest), plan.Right)
	assert.Equal(t, "b\n", workingText(t, local, "B/f"))
	assert.Empty(t, workingMergeinfo(t, local, ""))
}
