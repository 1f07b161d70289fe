package diff

import (
	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
	"github.com/Sumatoshi-tech/treemerge/pkg/wc"
)

// Participation is how a node takes part in a comparison.
type Participation int

const (
	// Skip means the node exists on neither side.
	Skip Participation = iota
	// ReposOnly means the node exists only on the repository (left) side.
	ReposOnly
	// LocalOnly means the node exists only on the local (right) side.
	LocalOnly
	// Both means the two sides are versions of the same node.
	Both
	// Split means each side holds a node unrelated to the other: the left
	// one is reported deleted and the right one added.
	Split
)

// String returns the participation name.
func (p Participation) String() string {
	switch p {
	case Skip:
		return "skip"
	case ReposOnly:
		return "repos-only"
	case LocalOnly:
		return "local-only"
	case Both:
		return "both"
	case Split:
		return "split"
	default:
		return "unknown"
	}
}

// Sides is the input of Classify.
type Sides struct {
	// Local is the working-copy node, nil when the path is unversioned.
	Local *wc.Node
	// Left is the repository node on the left side, nil when absent.
	Left *vcs.Location
	// LeftKind is the kind of the left node.
	LeftKind vcs.NodeKind
	// LeftReplacesBase is set when the left node is not a version of the
	// node the working copy has as BASE.
	LeftReplacesBase bool
}

// Classify decides how a node takes part in a repository-against-working
// comparison.
func Classify(s Sides, ignoreAncestry bool) Participation {
	local := s.Local != nil && !s.Local.Status.Hidden() && s.Local.Kind != vcs.KindNone

	switch {
	case !local && s.Left == nil:
		return Skip
	case !local:
		return ReposOnly
	case s.Left == nil:
		return LocalOnly
	case s.Local.Kind != s.LeftKind:
		return Split
	case ignoreAncestry || related(s):
		return Both
	default:
		return Split
	}
}

// related reports whether the local node descends from the left node.
func related(s Sides) bool {
	switch s.Local.Status {
	case wc.StatusNormal:
		return !s.LeftReplacesBase && s.Local.Base != nil && s.Local.Base.ReposPath == s.Left.Path
	case wc.StatusAdded, wc.StatusReplaced:
		return s.Local.Origin != nil && s.Local.Origin.Path == s.Left.Path
	default:
		return false
	}
}
