package memrepo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/treemerge/pkg/delta"
	"github.com/Sumatoshi-tech/treemerge/pkg/ra"
	"github.com/Sumatoshi-tech/treemerge/pkg/ra/memrepo"
	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
)

const (
	testTrunk  = "trunk"
	testBranch = "branches/b"
)

// newRenameRepo builds:
//
//	r1 trunk/A/file
//	r2 branches/b copied from trunk@1
//	r3 trunk/A/file moved to trunk/A/file2
//	r4 trunk/A/file2 edited
func newRenameRepo(t *testing.T) *memrepo.Repo {
	t.Helper()

	repo := memrepo.New()

	commit := func(fn func(tx *memrepo.Txn) error) {
		t.Helper()

		_, err := repo.Commit(fn)
		require.NoError(t, err)
	}

	commit(func(tx *memrepo.Txn) error {
		for _, dir := range []string{testTrunk, "trunk/A", "branches"} {
			if err := tx.MkDir(dir); err != nil {
				return err
			}
		}

		return tx.PutFile("trunk/A/file", []byte("one\n"))
	})
	commit(func(tx *memrepo.Txn) error { return tx.Copy(testTrunk, 1, testBranch) })
	commit(func(tx *memrepo.Txn) error { return tx.Move("trunk/A/file", "trunk/A/file2") })
	commit(func(tx *memrepo.Txn) error { return tx.PutFile("trunk/A/file2", []byte("two\n")) })

	return repo
}

func diffEvents(t *testing.T, repo *memrepo.Repo, req ra.DiffRequest) []string {
	t.Helper()

	rec := delta.NewRecorder(nil)
	require.NoError(t, repo.Diff(context.Background(), req, rec))

	return rec.Strings()
}

func TestCommit_RejectsInvalidEdits(t *testing.T) {
	t.Parallel()

	repo := memrepo.New()

	_, err := repo.Commit(func(tx *memrepo.Txn) error { return tx.PutFile("missing/file", nil) })
	require.ErrorIs(t, err, memrepo.ErrParentMissing)

	_, err = repo.Commit(func(tx *memrepo.Txn) error {
		if err := tx.MkDir("a"); err != nil {
			return err
		}

		return tx.MkDir("a")
	})
	require.ErrorIs(t, err, memrepo.ErrPathExists)

	_, err = repo.Commit(func(tx *memrepo.Txn) error { return tx.Delete("nope") })
	require.ErrorIs(t, err, vcs.ErrPathNotFound)

	assert.Equal(t, vcs.Revnum(0), repo.Youngest(), "failed commits publish nothing")
}

func TestSession_ReadNodes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newRenameRepo(t)

	kind, err := repo.CheckPath(ctx, "trunk/A/file", 2)
	require.NoError(t, err)
	assert.Equal(t, vcs.KindFile, kind)

	kind, err = repo.CheckPath(ctx, "trunk/A/file", 3)
	require.NoError(t, err)
	assert.Equal(t, vcs.KindNone, kind)

	text, _, err := repo.GetFile(ctx, "trunk/A/file2", 4)
	require.NoError(t, err)
	assert.Equal(t, "two\n", string(text))

	_, _, err = repo.GetFile(ctx, "trunk/A", 4)
	require.ErrorIs(t, err, ra.ErrNotAFile)

	entries, _, err := repo.GetDir(ctx, "", 4)
	require.NoError(t, err)
	assert.Equal(t, []ra.DirEntry{{Name: "branches", Kind: vcs.KindDir}, {Name: "trunk", Kind: vcs.KindDir}}, entries)

	_, err = repo.CheckPath(ctx, "", 9)
	require.ErrorIs(t, err, ra.ErrNoSuchRevision)
}

func TestLocationSegments_FollowsCopies(t *testing.T) {
	t.Parallel()

	repo := newRenameRepo(t)

	segments, err := repo.LocationSegments(context.Background(), "trunk/A/file2", 4, vcs.InvalidRevnum, vcs.InvalidRevnum)
	require.NoError(t, err)

	assert.Equal(t, []vcs.Segment{
		{Path: "trunk/A/file", Start: 1, End: 2},
		{Path: "trunk/A/file2", Start: 3, End: 4},
	}, segments)

	segments, err = repo.LocationSegments(context.Background(), testBranch, 4, 2, vcs.InvalidRevnum)
	require.NoError(t, err)
	assert.Equal(t, []vcs.Segment{{Path: testBranch, Start: 2, End: 4}}, segments)
}

func TestLocationSegments_Gap(t *testing.T) {
	t.Parallel()

	repo := memrepo.New()

	for _, fn := range []func(tx *memrepo.Txn) error{
		func(tx *memrepo.Txn) error { return tx.MkDir("x") },
		func(tx *memrepo.Txn) error { return tx.MkDir("y") },
		func(tx *memrepo.Txn) error { return tx.MkDir("z") },
		func(tx *memrepo.Txn) error { return tx.Copy("x", 1, "x2") },
	} {
		_, err := repo.Commit(fn)
		require.NoError(t, err)
	}

	segments, err := repo.LocationSegments(context.Background(), "x2", 4, vcs.InvalidRevnum, vcs.InvalidRevnum)
	require.NoError(t, err)

	assert.Equal(t, []vcs.Segment{
		{Path: "x", Start: 1, End: 1},
		{Path: "", Start: 2, End: 3},
		{Path: "x2", Start: 4, End: 4},
	}, segments)
}

func TestMergeInfo_Inheritance(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := memrepo.New()

	_, err := repo.Commit(func(tx *memrepo.Txn) error {
		if err := tx.MkDir("t"); err != nil {
			return err
		}

		if err := tx.MkDir("t/sub"); err != nil {
			return err
		}

		if err := tx.MkDir("t/sub/deep"); err != nil {
			return err
		}

		if err := tx.SetProp("t", vcs.PropMergeInfo, vcs.StringPtr("/src:1-4,6*")); err != nil {
			return err
		}

		return tx.SetProp("t/sub/deep", vcs.PropMergeInfo, vcs.StringPtr("/src/sub/deep:2"))
	})
	require.NoError(t, err)

	catalog, err := repo.MergeInfo(ctx, []string{"t/sub"}, 1, ra.Explicit, false)
	require.NoError(t, err)
	assert.Empty(t, catalog)

	catalog, err = repo.MergeInfo(ctx, []string{"t/sub"}, 1, ra.Inherited, false)
	require.NoError(t, err)
	assert.Equal(t, "/src/sub:1-4", catalog["t/sub"].String())

	catalog, err = repo.MergeInfo(ctx, []string{"t"}, 1, ra.Explicit, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"t", "t/sub/deep"}, catalog.SortedPaths())

	props, err := repo.InheritedProps(ctx, "t/sub/deep", 1)
	require.NoError(t, err)
	require.Len(t, props, 1)
	assert.Equal(t, "t", props[0].Path)
}

func TestDiff_RenameIsDeleteAndCopy(t *testing.T) {
	t.Parallel()

	repo := newRenameRepo(t)

	got := diffEvents(t, repo, ra.DiffRequest{
		Left:  vcs.Location{Path: testTrunk, Rev: 2},
		Right: vcs.Location{Path: testTrunk, Rev: 4},
	})

	assert.Equal(t, []string{
		"set-target-revision r4",
		"open-root r2",
		"open-directory A",
		"delete-entry A/file",
		"add-file A/file2 from ^/trunk/A/file@2",
		"apply-text A/file2",
		"close-file A/file2",
		"close-directory A",
		"close-directory .",
		"close-edit",
	}, got)
}

func TestDiff_NoChangesSkipsRoot(t *testing.T) {
	t.Parallel()

	repo := newRenameRepo(t)

	got := diffEvents(t, repo, ra.DiffRequest{
		Left:  vcs.Location{Path: testBranch, Rev: 2},
		Right: vcs.Location{Path: testBranch, Rev: 4},
	})

	assert.Equal(t, []string{"set-target-revision r4", "close-edit"}, got)
}

func TestDiff_ReplacementRespectsAncestry(t *testing.T) {
	t.Parallel()

	repo := memrepo.New()

	for _, fn := range []func(tx *memrepo.Txn) error{
		func(tx *memrepo.Txn) error { return tx.PutFile("f", []byte("same\n")) },
		func(tx *memrepo.Txn) error {
			if err := tx.Delete("f"); err != nil {
				return err
			}

			return tx.PutFile("f", []byte("same\n"))
		},
	} {
		_, err := repo.Commit(fn)
		require.NoError(t, err)
	}

	req := ra.DiffRequest{Left: vcs.Location{Rev: 1}, Right: vcs.Location{Rev: 2}}

	assert.Equal(t, []string{
		"set-target-revision r2",
		"open-root r1",
		"delete-entry f",
		"add-file f",
		"apply-text f",
		"close-file f",
		"close-directory .",
		"close-edit",
	}, diffEvents(t, repo, req))

	req.IgnoreAncestry = true
	assert.Equal(t, []string{"set-target-revision r2", "close-edit"}, diffEvents(t, repo, req))
}

func TestDiff_DepthAndProps(t *testing.T) {
	t.Parallel()

	repo := memrepo.New()

	for _, fn := range []func(tx *memrepo.Txn) error{
		func(tx *memrepo.Txn) error { return tx.MkDir("d") },
		func(tx *memrepo.Txn) error {
			if err := tx.PutFile("top", []byte("x")); err != nil {
				return err
			}

			if err := tx.PutFile("d/inner", []byte("y")); err != nil {
				return err
			}

			return tx.SetProp("", "color", vcs.StringPtr("blue"))
		},
	} {
		_, err := repo.Commit(fn)
		require.NoError(t, err)
	}

	req := ra.DiffRequest{Left: vcs.Location{Rev: 1}, Right: vcs.Location{Rev: 2}, Depth: vcs.DepthFiles}

	assert.Equal(t, []string{
		"set-target-revision r2",
		"open-root r1",
		`change-dir-prop . color="blue"`,
		"add-file top",
		"apply-text top",
		"close-file top",
		"close-directory .",
		"close-edit",
	}, diffEvents(t, repo, req))

	req.Depth = vcs.DepthEmpty
	assert.Equal(t, []string{
		"set-target-revision r2",
		"open-root r1",
		`change-dir-prop . color="blue"`,
		"close-directory .",
		"close-edit",
	}, diffEvents(t, repo, req))
}

func TestDiff_ReplayReproducesEdit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newRenameRepo(t)
	req := ra.DiffRequest{Left: vcs.Location{Rev: 1}, Right: vcs.Location{Rev: 4}}

	first := delta.NewRecorder(nil)
	require.NoError(t, repo.Diff(ctx, req, first))

	second := delta.NewRecorder(delta.NopEditor{})
	require.NoError(t, delta.Replay(ctx, first.Events, second))

	assert.Equal(t, first.Strings(), second.Strings())
	assert.Contains(t, first.Strings(), "add-directory branches/b from ^/trunk@1")
}

func TestDiff_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newRenameRepo(t).Diff(ctx, ra.DiffRequest{Left: vcs.Location{Rev: 1}, Right: vcs.Location{Rev: 4}}, delta.NopEditor{})
	require.ErrorIs(t, err, vcs.ErrCancelled)
}
