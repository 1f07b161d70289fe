package merge

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/treemerge/pkg/mergeinfo"
	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
)

// Sentinel errors for merges.
var (
	// ErrNotReadyToMerge means the reintegrate source is missing merges from
	// the target, or the computed merge endpoints are not related.
	ErrNotReadyToMerge = errors.New("not ready to merge")
	// ErrUnrelatedAncestry means two locations share no history.
	ErrUnrelatedAncestry = errors.New("locations are not ancestrally related")
	// ErrRepositoryRoot is returned when a reintegrate source or target is
	// the repository root.
	ErrRepositoryRoot = errors.New("reintegrate needs a proper subtree, not the repository root")
)

// UnmergedError lists the target revisions that were never merged into the
// reintegrate source although younger ones were.
type UnmergedError struct {
	Source   vcs.Location
	Target   vcs.Location
	Ancestor vcs.Location
	// Unmerged maps source subtrees to the target history they lack.
	Unmerged mergeinfo.Catalog
}

func (e *UnmergedError) Error() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "reintegrate can only be used if revisions %d through %d were previously merged from %s to the reintegrate source, but this is not the case:\n",
		e.Ancestor.Rev+1, e.Source.Rev, e.Target.FSPath())
	sb.WriteString(e.Unmerged.String())

	return strings.TrimRight(sb.String(), "\n")
}

// Is matches ErrNotReadyToMerge.
func (e *UnmergedError) Is(target error) bool {
	return target == ErrNotReadyToMerge
}
