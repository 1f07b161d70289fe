// Package memrepo is an in-memory versioned repository implementing
// ra.Session. Every revision is an immutable snapshot; nodes carry a lineage
// id so copies stay related to their source while a delete followed by an
// add at the same path produces an unrelated node.
package memrepo

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/Sumatoshi-tech/treemerge/pkg/ra"
	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
)

// Commit errors.
var (
	// ErrPathExists is returned when creating a node over an existing one.
	ErrPathExists = errors.New("path already exists")
	// ErrParentMissing is returned when the parent of a new node is not a directory.
	ErrParentMissing = errors.New("parent directory does not exist")
	// ErrKindMismatch is returned when an operation targets the wrong node kind.
	ErrKindMismatch = errors.New("node has the wrong kind")
)

type node struct {
	kind     vcs.NodeKind
	text     []byte
	checksum vcs.Checksum
	props    vcs.Props
	id       int
	// origin is the revision in which the node appeared at its current path.
	origin vcs.Revnum
	// copyFrom is set on every node that arrived by copy; copyRoot marks
	// the node the copy was requested on.
	copyFrom *vcs.Location
	copyRoot bool
}

func (n *node) clone() *node {
	c := *n
	c.props = n.props.Clone()

	return &c
}

type snapshot map[string]*node

// Repo is an in-memory repository. It is safe for concurrent use.
type Repo struct {
	mu     sync.RWMutex
	revs   []snapshot
	nextID int
}

// New creates a repository whose revision 0 holds an empty root directory.
func New() *Repo {
	root := &node{kind: vcs.KindDir, props: vcs.Props{}, id: 1, origin: 0}

	return &Repo{revs: []snapshot{{"": root}}, nextID: 2}
}

// Youngest returns the youngest revision.
func (r *Repo) Youngest() vcs.Revnum {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return vcs.Revnum(len(r.revs) - 1)
}

// Commit runs fn against a transaction based on the youngest revision and,
// when fn succeeds, publishes the result as a new revision.
func (r *Repo) Commit(fn func(tx *Txn) error) (vcs.Revnum, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	youngest := vcs.Revnum(len(r.revs) - 1)
	tx := &Txn{
		repo: r,
		rev:  youngest + 1,
		tree: maps.Clone(r.revs[youngest]),
	}

	if err := fn(tx); err != nil {
		return vcs.InvalidRevnum, fmt.Errorf("commit r%d: %w", tx.rev, err)
	}

	r.revs = append(r.revs, tx.tree)

	return tx.rev, nil
}

func (r *Repo) snapshot(rev vcs.Revnum) (snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if rev < 0 || int(rev) >= len(r.revs) {
		return nil, fmt.Errorf("%w: r%d", ra.ErrNoSuchRevision, rev)
	}

	return r.revs[rev], nil
}

func (r *Repo) lookup(path string, rev vcs.Revnum) (*node, error) {
	snap, err := r.snapshot(rev)
	if err != nil {
		return nil, err
	}

	n, ok := snap[cleanPath(path)]
	if !ok {
		return nil, fmt.Errorf("%w: '%s' in r%d", vcs.ErrPathNotFound, path, rev)
	}

	return n, nil
}

// Txn is an uncommitted revision.
type Txn struct {
	repo *Repo
	rev  vcs.Revnum
	tree snapshot
}

// Revision returns the revision number the transaction will commit as.
func (tx *Txn) Revision() vcs.Revnum {
	return tx.rev
}

// MkDir creates an empty directory.
func (tx *Txn) MkDir(path string) error {
	path = cleanPath(path)
	if err := tx.checkCreatable(path); err != nil {
		return err
	}

	tx.tree[path] = &node{kind: vcs.KindDir, props: vcs.Props{}, id: tx.newID(), origin: tx.rev}

	return nil
}

// PutFile creates a file or replaces the text of an existing one.
func (tx *Txn) PutFile(path string, text []byte) error {
	path = cleanPath(path)

	if n, ok := tx.tree[path]; ok {
		if n.kind != vcs.KindFile {
			return fmt.Errorf("put '%s': %w", path, ErrKindMismatch)
		}

		c := n.clone()
		c.text = bytes.Clone(text)
		c.checksum = vcs.ContentChecksum(text)
		tx.tree[path] = c

		return nil
	}

	if err := tx.checkCreatable(path); err != nil {
		return err
	}

	tx.tree[path] = &node{
		kind:     vcs.KindFile,
		text:     bytes.Clone(text),
		checksum: vcs.ContentChecksum(text),
		props:    vcs.Props{},
		id:       tx.newID(),
		origin:   tx.rev,
	}

	return nil
}

// SetProp sets a property, or deletes it when value is nil.
func (tx *Txn) SetProp(path, name string, value *string) error {
	path = cleanPath(path)

	n, ok := tx.tree[path]
	if !ok {
		return fmt.Errorf("set property on '%s': %w", path, vcs.ErrPathNotFound)
	}

	c := n.clone()
	c.props = vcs.ApplyPropChanges(c.props, []vcs.PropChange{{Name: name, Value: value}})
	tx.tree[path] = c

	return nil
}

// Delete removes a node and everything below it.
func (tx *Txn) Delete(path string) error {
	path = cleanPath(path)
	if path == "" {
		return fmt.Errorf("delete repository root: %w", ErrKindMismatch)
	}

	if _, ok := tx.tree[path]; !ok {
		return fmt.Errorf("delete '%s': %w", path, vcs.ErrPathNotFound)
	}

	for p := range tx.tree {
		if _, below := vcs.SkipAncestor(path, p); below {
			delete(tx.tree, p)
		}
	}

	return nil
}

// Copy copies src@srcRev, with everything below it, to dst. The copies keep
// their lineage, so they stay related to the source.
func (tx *Txn) Copy(src string, srcRev vcs.Revnum, dst string) error {
	src, dst = cleanPath(src), cleanPath(dst)

	if srcRev >= tx.rev {
		return fmt.Errorf("copy from r%d: %w", srcRev, ra.ErrNoSuchRevision)
	}

	from := tx.repo.revs[srcRev]
	if _, ok := from[src]; !ok {
		return fmt.Errorf("copy '%s'@%d: %w", src, srcRev, vcs.ErrPathNotFound)
	}

	if err := tx.checkCreatable(dst); err != nil {
		return err
	}

	for p, n := range from {
		rest, below := vcs.SkipAncestor(src, p)
		if !below {
			continue
		}

		c := n.clone()
		c.origin = tx.rev
		c.copyFrom = &vcs.Location{Path: p, Rev: srcRev}
		c.copyRoot = rest == ""
		tx.tree[vcs.JoinRelpath(dst, rest)] = c
	}

	return nil
}

// Move copies src from the youngest revision to dst and deletes src.
func (tx *Txn) Move(src, dst string) error {
	if err := tx.Copy(src, tx.rev-1, dst); err != nil {
		return err
	}

	return tx.Delete(src)
}

func (tx *Txn) checkCreatable(path string) error {
	if _, exists := tx.tree[path]; exists || path == "" {
		return fmt.Errorf("create '%s': %w", path, ErrPathExists)
	}

	parent, ok := tx.tree[vcs.ParentRelpath(path)]
	if !ok || parent.kind != vcs.KindDir {
		return fmt.Errorf("create '%s': %w", path, ErrParentMissing)
	}

	return nil
}

func (tx *Txn) newID() int {
	id := tx.repo.nextID
	tx.repo.nextID++

	return id
}

func cleanPath(p string) string {
	return strings.Trim(p, "/")
}

// children returns the sorted names of the entries directly below dir.
func (s snapshot) children(dir string) []string {
	var names []string

	for p := range s {
		if p != "" && p != dir && vcs.ParentRelpath(p) == dir {
			names = append(names, vcs.BaseName(p))
		}
	}

	slices.Sort(names)

	return names
}
