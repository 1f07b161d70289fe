package wc

import (
	"context"
	"fmt"

	"github.com/Sumatoshi-tech/treemerge/pkg/pristine"
	"github.com/Sumatoshi-tech/treemerge/pkg/ra"
	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
)

// Checkout creates a working copy of reposPath@rev. Every node gets the same
// base revision; file texts are installed in store.
func Checkout(
	ctx context.Context, session ra.Session, store pristine.Store, reposPath string, rev vcs.Revnum,
) (*Memory, error) {
	kind, err := session.CheckPath(ctx, reposPath, rev)
	if err != nil {
		return nil, fmt.Errorf("checkout: %w", err)
	}

	if kind != vcs.KindDir {
		return nil, fmt.Errorf("checkout %s: %w", vcs.Location{Path: reposPath, Rev: rev}, ra.ErrNotADirectory)
	}

	m := NewMemory(store)

	if err := m.checkoutDir(ctx, session, "", reposPath, rev); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Memory) checkoutDir(ctx context.Context, session ra.Session, path, reposPath string, rev vcs.Revnum) error {
	entries, props, err := session.GetDir(ctx, reposPath, rev)
	if err != nil {
		return fmt.Errorf("checkout '%s': %w", reposPath, err)
	}

	info := BaseInfo{ReposPath: reposPath, Rev: rev, Kind: vcs.KindDir}
	if err := m.SetBase(ctx, path, info, nil, props); err != nil {
		return err
	}

	for _, ent := range entries {
		childPath := vcs.JoinRelpath(path, ent.Name)
		childRepos := vcs.JoinRelpath(reposPath, ent.Name)

		if ent.Kind == vcs.KindDir {
			if err := m.checkoutDir(ctx, session, childPath, childRepos, rev); err != nil {
				return err
			}

			continue
		}

		text, fileProps, err := session.GetFile(ctx, childRepos, rev)
		if err != nil {
			return fmt.Errorf("checkout '%s': %w", childRepos, err)
		}

		info := BaseInfo{ReposPath: childRepos, Rev: rev, Kind: vcs.KindFile}
		if err := m.SetBase(ctx, childPath, info, text, fileProps); err != nil {
			return err
		}
	}

	return nil
}
