package wc_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/treemerge/pkg/pristine"
	"github.com/Sumatoshi-tech/treemerge/pkg/ra/memrepo"
	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
	"github.com/Sumatoshi-tech/treemerge/pkg/wc"
)

const testFileText = "hello\n"

func checkout(t *testing.T) *wc.Memory {
	t.Helper()

	repo := memrepo.New()

	_, err := repo.Commit(func(tx *memrepo.Txn) error {
		if err := tx.MkDir("trunk"); err != nil {
			return err
		}

		if err := tx.MkDir("trunk/A"); err != nil {
			return err
		}

		if err := tx.PutFile("trunk/A/f", []byte(testFileText)); err != nil {
			return err
		}

		return tx.SetProp("trunk/A/f", "k", vcs.StringPtr("v"))
	})
	require.NoError(t, err)

	m, err := wc.Checkout(context.Background(), repo, pristine.NewMemory(), "trunk", 1)
	require.NoError(t, err)

	return m
}

func TestCheckout_RecordsBase(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := checkout(t)

	node, err := m.ReadNode(ctx, "A/f")
	require.NoError(t, err)

	assert.Equal(t, wc.StatusNormal, node.Status)
	assert.Equal(t, vcs.KindFile, node.Kind)
	require.NotNil(t, node.Base)
	assert.Equal(t, "trunk/A/f", node.Base.ReposPath)
	assert.Equal(t, vcs.Revnum(1), node.Base.Rev)
	assert.Equal(t, vcs.ContentChecksum([]byte(testFileText)), node.Base.Checksum)

	text, err := pristine.ReadVerified(ctx, m.Store(), "A/f", node.Base.Checksum)
	require.NoError(t, err)
	assert.Equal(t, testFileText, string(text))

	props, err := m.ReadBaseProps(ctx, "A/f")
	require.NoError(t, err)
	assert.Equal(t, vcs.Props{"k": "v"}, props)

	names, err := m.ReadChildren(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, names)
}

func TestMemory_LocalEditsChangeStatus(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := checkout(t)

	require.NoError(t, m.AddFile(ctx, "A/new", []byte("n"), nil, nil))
	require.NoError(t, m.Delete(ctx, "A/f"))

	node, err := m.ReadNode(ctx, "A/f")
	require.NoError(t, err)
	assert.Equal(t, wc.StatusDeleted, node.Status)
	assert.Equal(t, vcs.KindNone, node.Kind)

	props, err := m.ReadProps(ctx, "A/f")
	require.NoError(t, err)
	assert.Nil(t, props)

	copyFrom := &vcs.Location{Path: "trunk/A/f", Rev: 1}
	require.NoError(t, m.AddFile(ctx, "A/f", []byte("copied"), nil, copyFrom))

	node, err = m.ReadNode(ctx, "A/f")
	require.NoError(t, err)
	assert.Equal(t, wc.StatusReplaced, node.Status)
	assert.Equal(t, copyFrom, node.Origin)

	node, err = m.ReadNode(ctx, "A/new")
	require.NoError(t, err)
	assert.Equal(t, wc.StatusAdded, node.Status)
	assert.Nil(t, node.Base)

	require.NoError(t, m.Delete(ctx, "A/new"))

	_, err = m.ReadNode(ctx, "A/new")
	require.ErrorIs(t, err, wc.ErrNotVersioned)
}

func TestMemory_AddErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := checkout(t)

	require.ErrorIs(t, m.AddFile(ctx, "A/f", nil, nil, nil), wc.ErrObstructed)
	require.ErrorIs(t, m.AddFile(ctx, "missing/f", nil, nil, nil), wc.ErrNoParent)
	require.ErrorIs(t, m.AddFile(ctx, "A/f/g", nil, nil, nil), wc.ErrNoParent)
	require.ErrorIs(t, m.WriteFile(ctx, "A", nil), wc.ErrNotVersioned)
}

func TestMemory_HiddenNodes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := checkout(t)

	require.NoError(t, m.Exclude("A"))

	node, err := m.ReadNode(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, wc.StatusExcluded, node.Status)
	assert.True(t, node.Status.Hidden())
	assert.Nil(t, node.Base)

	_, err = m.ReadNode(ctx, "A/f")
	require.ErrorIs(t, err, wc.ErrNotVersioned)

	require.NoError(t, m.AddDirectory(ctx, "A", nil, nil))

	node, err = m.ReadNode(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, wc.StatusAdded, node.Status)
}

func TestMemory_WorkingText(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := checkout(t)

	require.NoError(t, m.WriteFile(ctx, "A/f", []byte("changed")))
	require.NoError(t, m.SetProps(ctx, "A/f", vcs.Props{"k": "w"}))

	text, err := m.TranslatedWorkingFile(ctx, "A/f")
	require.NoError(t, err)
	assert.Equal(t, "changed", string(text))

	props, err := m.ReadProps(ctx, "A/f")
	require.NoError(t, err)
	assert.Equal(t, "w", props["k"])

	base, err := m.ReadBaseProps(ctx, "A/f")
	require.NoError(t, err)
	assert.Equal(t, "v", base["k"])
}
