package delta_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/treemerge/pkg/delta"
	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
)

var errStop = errors.New("stop")

// stopEditor fails on the first file it is asked to open.
type stopEditor struct {
	delta.NopEditor
}

func (stopEditor) OpenFile(context.Context, string) error {
	return errStop
}

func TestEvent_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ev   delta.Event
		want string
	}{
		{"target", delta.Event{Op: delta.OpSetTargetRevision, Rev: 7}, "set-target-revision r7"},
		{"root", delta.Event{Op: delta.OpOpenRoot, Rev: 3}, "open-root r3"},
		{"close root", delta.Event{Op: delta.OpCloseDirectory}, "close-directory ."},
		{
			"copy",
			delta.Event{Op: delta.OpAddFile, Path: "A/f2", CopyFrom: &vcs.Location{Path: "A/f", Rev: 2}},
			"add-file A/f2 from ^/A/f@2",
		},
		{
			"prop set",
			delta.Event{Op: delta.OpChangeFileProp, Path: "f", Change: &vcs.PropChange{Name: "k", Value: vcs.StringPtr("v")}},
			`change-file-prop f k="v"`,
		},
		{"prop delete", delta.Event{Op: delta.OpChangeDirProp, Path: "d", Change: &vcs.PropChange{Name: "k"}}, "change-dir-prop d -k"},
		{"end", delta.Event{Op: delta.OpCloseEdit}, "close-edit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.ev.String())
		})
	}
}

func TestRecorder_ForwardsAndRecords(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	inner := delta.NewRecorder(nil)
	outer := delta.NewRecorder(inner)

	require.NoError(t, outer.SetTargetRevision(ctx, 2))
	require.NoError(t, outer.OpenRoot(ctx, 1))
	require.NoError(t, outer.AddFile(ctx, "f", nil))
	require.NoError(t, outer.ApplyText(ctx, "f", vcs.Checksum{}, []byte("x")))
	require.NoError(t, outer.CloseFile(ctx, "f", vcs.ContentChecksum([]byte("x"))))
	require.NoError(t, outer.CloseDirectory(ctx, ""))
	require.NoError(t, outer.CloseEdit(ctx))

	assert.Len(t, outer.Events, 7)
	assert.Equal(t, outer.Strings(), inner.Strings())
	assert.Equal(t, []byte("x"), inner.Events[3].Content)
}

func TestReplay_StopsAtFirstError(t *testing.T) {
	t.Parallel()

	events := []delta.Event{
		{Op: delta.OpOpenRoot, Rev: 1},
		{Op: delta.OpOpenFile, Path: "f"},
		{Op: delta.OpCloseFile, Path: "f"},
	}

	rec := delta.NewRecorder(stopEditor{})

	err := delta.Replay(context.Background(), events, rec)
	require.ErrorIs(t, err, errStop)
	assert.Len(t, rec.Events, 2)
}

func TestReplay_UnknownOp(t *testing.T) {
	t.Parallel()

	err := delta.Replay(context.Background(), []delta.Event{{Op: "bogus"}}, delta.NopEditor{})
	require.ErrorIs(t, err, delta.ErrUnknownOp)
}
