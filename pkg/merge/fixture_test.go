package merge_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/treemerge/pkg/pristine"
	"github.com/Sumatoshi-tech/treemerge/pkg/ra/memrepo"
	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
	"github.com/Sumatoshi-tech/treemerge/pkg/wc"
)

const (
	testTrunk  = "trunk"
	testBranch = "branches/feature"

	textFileR4   = "one\ntwo\nthree\n"
	textFileR7   = "one\ntwo\nthree\nfour\n"
	textBranchF  = "b\nbranch\n"
	textOtherR10 = "x\ny\n"

	// Revision the branch was copied at, and its source revision.
	revBranched vcs.Revnum = 6
	revAncestor vcs.Revnum = 5
	revYoungest vcs.Revnum = 10
)

func commit(t *testing.T, repo *memrepo.Repo, fn func(tx *memrepo.Txn) error) {
	t.Helper()

	_, err := repo.Commit(fn)
	require.NoError(t, err)
}

// newBranchRepo builds:
//
//	r1     trunk/A/file, trunk/B/f, branches, other
//	r2-r5  trunk edits
//	r6     branches/feature copied from trunk@5
//	r7     trunk/A/file edited
//	r8     branches/feature/B/f edited
//	r9     trunk r7 change applied to the branch; syncInfo recorded when set
//	r10    branches/feature/A/other edited
func newBranchRepo(t *testing.T, syncInfo string) *memrepo.Repo {
	t.Helper()

	repo := memrepo.New()

	commit(t, repo, func(tx *memrepo.Txn) error {
		for _, dir := range []string{testTrunk, "trunk/A", "trunk/B", "branches", "other"} {
			if err := tx.MkDir(dir); err != nil {
				return err
			}
		}

		if err := tx.PutFile("trunk/B/f", []byte("b\n")); err != nil {
			return err
		}

		return tx.PutFile("trunk/A/file", []byte("one\n"))
	})
	commit(t, repo, func(tx *memrepo.Txn) error { return tx.PutFile("trunk/A/file", []byte("one\ntwo\n")) })
	commit(t, repo, func(tx *memrepo.Txn) error { return tx.PutFile("trunk/A/other", []byte("x\n")) })
	commit(t, repo, func(tx *memrepo.Txn) error { return tx.PutFile("trunk/A/file", []byte(textFileR4)) })
	commit(t, repo, func(tx *memrepo.Txn) error { return tx.PutFile("trunk/B/g", []byte("g\n")) })
	commit(t, repo, func(tx *memrepo.Txn) error { return tx.Copy(testTrunk, revAncestor, testBranch) })
	commit(t, repo, func(tx *memrepo.Txn) error { return tx.PutFile("trunk/A/file", []byte(textFileR7)) })
	commit(t, repo, func(tx *memrepo.Txn) error {
		return tx.PutFile("branches/feature/B/f", []byte(textBranchF))
	})
	commit(t, repo, func(tx *memrepo.Txn) error {
		if syncInfo != "" {
			if err := tx.SetProp(testBranch, vcs.PropMergeInfo, vcs.StringPtr(syncInfo)); err != nil {
				return err
			}
		}

		return tx.PutFile("branches/feature/A/file", []byte(textFileR7))
	})
	commit(t, repo, func(tx *memrepo.Txn) error {
		return tx.PutFile("branches/feature/A/other", []byte(textOtherR10))
	})

	return repo
}

func trunkAt(rev vcs.Revnum) vcs.Location {
	return vcs.Location{Path: testTrunk, Rev: rev}
}

func branchAt(rev vcs.Revnum) vcs.Location {
	return vcs.Location{Path: testBranch, Rev: rev}
}

func checkout(t *testing.T, repo *memrepo.Repo, loc vcs.Location) *wc.Memory {
	t.Helper()

	local, err := wc.Checkout(context.Background(), repo, pristine.NewMemory(), loc.Path, loc.Rev)
	require.NoError(t, err)

	return local
}

func workingText(t *testing.T, local wc.Reader, path string) string {
	t.Helper()

	text, err := local.TranslatedWorkingFile(context.Background(), path)
	require.NoError(t, err)

	return string(text)
}

func workingMergeinfo(t *testing.T, local wc.Reader, path string) string {
	t.Helper()

	props, err := local.ReadProps(context.Background(), path)
	require.NoError(t, err)

	return props[vcs.PropMergeInfo]
}
