package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/treemerge/pkg/observability"
	"github.com/Sumatoshi-tech/treemerge/pkg/pristine/gitstore"
	"github.com/Sumatoshi-tech/treemerge/pkg/ra"
	"github.com/Sumatoshi-tech/treemerge/pkg/scenario"
	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
)

const (
	scenarioFlag      = "scenario"
	scenarioShort     = "s"
	scenarioUsage     = "YAML scenario describing the repository and working copy"
	pristineGitFlag   = "pristine-git"
	pristineGitUsage  = "store pristine texts in a git object database at this directory"
	cacheNameHistory  = "history"
	cacheNamePristine = "pristine"
)

// Fixture loading errors.
var (
	ErrNoScenario     = errors.New("a scenario is required (use --scenario)")
	ErrNoWorkingCopy  = errors.New("scenario has no working copy")
	ErrLocationNeeded = errors.New("both --old and --new are required for a repository diff")
)

// fixtureFlags selects the scenario a command runs against.
type fixtureFlags struct {
	scenarioPath string
	pristineGit  string
}

func (f *fixtureFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.scenarioPath, scenarioFlag, scenarioShort, "", scenarioUsage)
	cmd.Flags().StringVar(&f.pristineGit, pristineGitFlag, "", pristineGitUsage)
}

// loadedFixture is a built scenario plus the resources backing it.
type loadedFixture struct {
	*scenario.Fixture

	gitStore *gitstore.Store
}

// Close releases the git pristine store, if any.
func (lf *loadedFixture) Close() {
	if lf.gitStore != nil {
		lf.gitStore.Close()
	}
}

// caches returns the caches worth reporting for this fixture.
func (lf *loadedFixture) caches() map[string]observability.CacheStatsProvider {
	caches := map[string]observability.CacheStatsProvider{}

	if lf.gitStore != nil {
		caches[cacheNamePristine] = lf.gitStore
	}

	return caches
}

func (f *fixtureFlags) load(ctx context.Context, rt *runEnv, needWC bool) (*loadedFixture, error) {
	if f.scenarioPath == "" {
		return nil, ErrNoScenario
	}

	sc, err := scenario.LoadFile(f.scenarioPath)
	if err != nil {
		return nil, err
	}

	if needWC && sc.WorkingCopy == nil {
		return nil, fmt.Errorf("%s: %w", f.scenarioPath, ErrNoWorkingCopy)
	}

	lf := &loadedFixture{}

	if f.pristineGit != "" {
		lf.gitStore, err = gitstore.Open(f.pristineGit)
		if err != nil {
			return nil, err
		}

		lf.Fixture, err = sc.BuildWithStore(ctx, lf.gitStore)
	} else {
		lf.Fixture, err = sc.Build(ctx)
	}

	if err != nil {
		lf.Close()

		return nil, fmt.Errorf("build scenario %s: %w", f.scenarioPath, err)
	}

	rt.logger.DebugContext(ctx, "scenario built",
		"scenario", f.scenarioPath, "youngest", lf.Repo.Youngest(), "working_copy", lf.WC != nil)

	return lf, nil
}

// resolveLocation parses path@rev, defaulting the revision to the youngest.
func resolveLocation(ctx context.Context, session ra.Session, text string) (vcs.Location, error) {
	loc, err := vcs.ParseLocation(text)
	if err != nil {
		return vcs.Location{}, err
	}

	if loc.Rev.IsValid() {
		return loc, nil
	}

	loc.Rev, err = session.LatestRevision(ctx)
	if err != nil {
		return vcs.Location{}, fmt.Errorf("resolve %s: %w", text, err)
	}

	return loc, nil
}
