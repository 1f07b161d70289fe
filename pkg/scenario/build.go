package scenario

import (
	"context"
	"fmt"

	"github.com/Sumatoshi-tech/treemerge/pkg/pristine"
	"github.com/Sumatoshi-tech/treemerge/pkg/ra"
	"github.com/Sumatoshi-tech/treemerge/pkg/ra/memrepo"
	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
	"github.com/Sumatoshi-tech/treemerge/pkg/wc"
)

// Fixture is a built scenario.
type Fixture struct {
	Repo *memrepo.Repo
	// WC and Store are nil when the scenario has no working copy.
	WC    *wc.Memory
	Store pristine.Store
}

// Build commits every revision into a new repository and, when the scenario
// has one, checks out and edits the working copy with an in-memory pristine
// store.
func (s *Scenario) Build(ctx context.Context) (*Fixture, error) {
	return s.BuildWithStore(ctx, pristine.NewMemory())
}

// BuildWithStore is Build installing pristine texts in store.
func (s *Scenario) BuildWithStore(ctx context.Context, store pristine.Store) (*Fixture, error) {
	repo := memrepo.New()

	for _, rev := range s.Revisions {
		_, err := repo.Commit(func(tx *memrepo.Txn) error {
			for j, op := range rev.Ops {
				if err := applyReposOp(tx, op); err != nil {
					return fmt.Errorf("op %d: %w", j+1, err)
				}
			}

			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("build repository: %w", err)
		}
	}

	fx := &Fixture{Repo: repo}

	if s.WorkingCopy == nil {
		return fx, nil
	}

	rev := s.WorkingCopy.Rev
	if rev == 0 {
		rev = repo.Youngest()
	}

	fx.Store = store

	local, err := wc.Checkout(ctx, repo, fx.Store, s.WorkingCopy.Path, rev)
	if err != nil {
		return nil, err
	}

	fx.WC = local

	for i, op := range s.WorkingCopy.Edits {
		if err := applyLocalOp(ctx, repo, local, op); err != nil {
			return nil, fmt.Errorf("working copy edit %d: %w", i+1, err)
		}
	}

	return fx, nil
}

func applyReposOp(tx *memrepo.Txn, op ReposOp) error {
	switch {
	case op.MkDir != "":
		return tx.MkDir(op.MkDir)
	case op.Put != nil:
		return tx.PutFile(op.Put.Path, []byte(op.Put.Text))
	case op.Copy != nil:
		return tx.Copy(op.Copy.From, op.Copy.Rev, op.Copy.To)
	case op.Move != nil:
		return tx.Move(op.Move.From, op.Move.To)
	case op.Delete != "":
		return tx.Delete(op.Delete)
	case op.PropSet != nil:
		return tx.SetProp(op.PropSet.Path, op.PropSet.Name, vcs.StringPtr(op.PropSet.Value))
	case op.PropDel != nil:
		return tx.SetProp(op.PropDel.Path, op.PropDel.Name, nil)
	default:
		return fmt.Errorf("%w: empty repository operation", ErrInvalidScenario)
	}
}

func applyLocalOp(ctx context.Context, session ra.Session, local *wc.Memory, op LocalOp) error {
	switch {
	case op.Write != nil:
		return local.WriteFile(ctx, op.Write.Path, []byte(op.Write.Text))
	case op.AddFile != nil:
		return local.AddFile(ctx, op.AddFile.Path, []byte(op.AddFile.Text), vcs.Props{}, nil)
	case op.AddDir != "":
		return local.AddDirectory(ctx, op.AddDir, vcs.Props{}, nil)
	case op.Copy != nil:
		return copyFromRepos(ctx, session, local, op.Copy)
	case op.Delete != "":
		return local.Delete(ctx, op.Delete)
	case op.PropSet != nil:
		return setLocalProp(ctx, local, op.PropSet.Path, op.PropSet.Name, vcs.StringPtr(op.PropSet.Value))
	case op.PropDel != nil:
		return setLocalProp(ctx, local, op.PropDel.Path, op.PropDel.Name, nil)
	case op.Exclude != "":
		return local.Exclude(op.Exclude)
	default:
		return fmt.Errorf("%w: empty working copy edit", ErrInvalidScenario)
	}
}

func setLocalProp(ctx context.Context, local *wc.Memory, path, name string, value *string) error {
	props, err := local.ReadProps(ctx, path)
	if err != nil {
		return err
	}

	props = vcs.ApplyPropChanges(props, []vcs.PropChange{{Name: name, Value: value}})

	return local.SetProps(ctx, path, props)
}

// copyFromRepos schedules From@Rev, with everything below it, for addition
// at To with history.
func copyFromRepos(ctx context.Context, session ra.Session, local *wc.Memory, op *CopyOp) error {
	origin := vcs.Location{Path: op.From, Rev: op.Rev}

	kind, err := session.CheckPath(ctx, origin.Path, origin.Rev)
	if err != nil {
		return err
	}

	switch kind {
	case vcs.KindFile:
		text, props, err := session.GetFile(ctx, origin.Path, origin.Rev)
		if err != nil {
			return err
		}

		return local.AddFile(ctx, op.To, text, props, &origin)
	case vcs.KindDir:
		entries, props, err := session.GetDir(ctx, origin.Path, origin.Rev)
		if err != nil {
			return err
		}

		if err := local.AddDirectory(ctx, op.To, props, &origin); err != nil {
			return err
		}

		for _, entry := range entries {
			child := &CopyOp{
				From: vcs.JoinRelpath(op.From, entry.Name),
				Rev:  op.Rev,
				To:   vcs.JoinRelpath(op.To, entry.Name),
			}

			if err := copyFromRepos(ctx, session, local, child); err != nil {
				return err
			}
		}

		return nil
	default:
		return fmt.Errorf("copy %s: %w", origin, vcs.ErrPathNotFound)
	}
}
