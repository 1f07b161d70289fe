package scenario_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/treemerge/pkg/ra/memrepo"
	"github.com/Sumatoshi-tech/treemerge/pkg/scenario"
	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
	"github.com/Sumatoshi-tech/treemerge/pkg/wc"
)

const featureFixture = "testdata/feature.yaml"

func TestLoadFile_Feature(t *testing.T) {
	t.Parallel()

	sc, err := scenario.LoadFile(featureFixture)
	require.NoError(t, err)

	require.Len(t, sc.Revisions, 3)
	assert.Equal(t, "layout", sc.Revisions[0].Log)
	require.NotNil(t, sc.Revisions[1].Ops[0].Copy)
	assert.Equal(t, vcs.Revnum(1), sc.Revisions[1].Ops[0].Copy.Rev)

	require.NotNil(t, sc.WorkingCopy)
	assert.Equal(t, "trunk", sc.WorkingCopy.Path)
	assert.Equal(t, vcs.Revnum(0), sc.WorkingCopy.Rev)
	assert.Len(t, sc.WorkingCopy.Edits, 5)
}

func TestParse_SchemaViolations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		text  string
		field string
	}{
		{"no revisions", "description: x\n", "revisions"},
		{"two ops in one entry", "revisions:\n  - ops:\n      - {mkdir: a, delete: b}\n", "revisions.0.ops.0"},
		{"unknown op", "revisions:\n  - ops:\n      - {chmod: a}\n", "revisions.0.ops.0"},
		{"negative revision", "revisions:\n  - ops:\n      - copy: {from: a, rev: -1, to: b}\n", "rev"},
		{"working copy without path", "revisions:\n  - ops:\n      - mkdir: a\nworking_copy: {rev: 1}\n", "working_copy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := scenario.Parse([]byte(tt.text))
			require.Error(t, err)
			require.ErrorIs(t, err, scenario.ErrInvalidScenario)

			var verr *scenario.ValidationError

			require.True(t, errors.As(err, &verr))
			require.NotEmpty(t, verr.Problems)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestParse_BadYAML(t *testing.T) {
	t.Parallel()

	_, err := scenario.Load(strings.NewReader("revisions: [\n"))
	require.ErrorIs(t, err, scenario.ErrDecode)
}

func TestBuild_Feature(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	sc, err := scenario.LoadFile(featureFixture)
	require.NoError(t, err)

	fx, err := sc.Build(ctx)
	require.NoError(t, err)

	assert.Equal(t, vcs.Revnum(3), fx.Repo.Youngest())

	text, props, err := fx.Repo.GetFile(ctx, "branches/feature/A/file", 3)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(text))
	assert.NotContains(t, props, "color")

	require.NotNil(t, fx.WC)
	require.NotNil(t, fx.Store)

	working, err := fx.WC.TranslatedWorkingFile(ctx, "A/file")
	require.NoError(t, err)
	assert.Equal(t, "one\nlocal\n", string(working))

	node, err := fx.WC.ReadNode(ctx, "B/new")
	require.NoError(t, err)
	assert.Equal(t, wc.StatusAdded, node.Status)

	copied, err := fx.WC.ReadNode(ctx, "C/file")
	require.NoError(t, err)
	require.NotNil(t, copied.Origin)
	assert.Equal(t, vcs.Location{Path: "branches/feature/A/file", Rev: 3}, *copied.Origin)

	dirProps, err := fx.WC.ReadProps(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, "ops", dirProps["owner"])
}

func TestBuild_RepositoryOnly(t *testing.T) {
	t.Parallel()

	sc, err := scenario.Parse([]byte(
		"revisions:\n  - ops:\n      - mkdir: trunk\n  - ops:\n      - move: {from: trunk, to: main}\n",
	))
	require.NoError(t, err)

	fx, err := sc.Build(context.Background())
	require.NoError(t, err)

	assert.Nil(t, fx.WC)

	kind, err := fx.Repo.CheckPath(context.Background(), "main", 2)
	require.NoError(t, err)
	assert.Equal(t, vcs.KindDir, kind)

	kind, err = fx.Repo.CheckPath(context.Background(), "trunk", 2)
	require.NoError(t, err)
	assert.Equal(t, vcs.KindNone, kind)
}

func TestBuild_FailingOperation(t *testing.T) {
	t.Parallel()

	sc, err := scenario.Parse([]byte("revisions:\n  - ops:\n      - put: {path: missing/f, text: x}\n"))
	require.NoError(t, err)

	_, err = sc.Build(context.Background())
	require.ErrorIs(t, err, memrepo.ErrParentMissing)
	assert.Contains(t, err.Error(), "commit r1: op 1: ")
	assert.Contains(t, err.Error(), "missing/f")
}
